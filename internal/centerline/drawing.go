package centerline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

// DrawingState is the drawing manager's state machine state.
type DrawingState string

const (
	StateIdle      DrawingState = "idle"
	StateDrawing   DrawingState = "drawing"
	StateComplete  DrawingState = "complete"
	StateCancelled DrawingState = "cancelled"
)

var (
	// ErrNotDrawing is returned by mutations that require an active
	// drawing.
	ErrNotDrawing = errors.New("no drawing in progress")
	// ErrAlreadyDrawing is returned by StartDrawing while a drawing is
	// active.
	ErrAlreadyDrawing = errors.New("drawing already in progress")
	// ErrTooFewPoints is returned by CompleteDrawing when the centerline
	// has fewer than two points.
	ErrTooFewPoints = errors.New("centerline needs at least two points")
	// ErrNothingToUndo and ErrNothingToRedo signal empty history.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo signals an empty redo stack.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DrawingManager turns a sequence of (possibly snapped) points into a
// Centerline. One manager handles one drawing at a time; completed
// centerlines are handed to the caller and the manager returns to idle.
type DrawingManager struct {
	state      DrawingState
	current    *Centerline
	validation ValidationConfig

	// Point-append history for undo/redo, valid only while drawing.
	undone []Point

	now func() time.Time
}

// NewDrawingManager creates an idle manager with the given SMACNA
// validation thresholds.
func NewDrawingManager(validation ValidationConfig) *DrawingManager {
	return &DrawingManager{
		state:      StateIdle,
		validation: validation,
		now:        time.Now,
	}
}

// State returns the current state machine state.
func (m *DrawingManager) State() DrawingState {
	return m.state
}

// Current returns the in-progress centerline, or nil when idle.
func (m *DrawingManager) Current() *Centerline {
	return m.current
}

// StartDrawing transitions idle→drawing and creates a new segmented
// centerline with a single point.
func (m *DrawingManager) StartDrawing(p geom.Point2D) (*Centerline, error) {
	if m.state == StateDrawing {
		return nil, ErrAlreadyDrawing
	}
	if err := geom.ValidatePoint(p); err != nil {
		return nil, err
	}

	now := m.now()
	m.current = &Centerline{
		ID:     typeid.NewCenterlineID(),
		Type:   TypeSegmented,
		Points: []Point{{X: p.X, Y: p.Y}},
		Metadata: Metadata{
			CreatedAt: now,
		},
	}
	m.state = StateDrawing
	m.undone = nil
	m.revalidate()
	return m.current, nil
}

// AddPoint appends a point to the active drawing, recomputing metadata
// and SMACNA validation.
func (m *DrawingManager) AddPoint(p geom.Point2D) error {
	if m.state != StateDrawing {
		return ErrNotDrawing
	}
	if err := geom.ValidatePoint(p); err != nil {
		return err
	}
	m.current.Points = append(m.current.Points, Point{X: p.X, Y: p.Y})
	m.undone = nil
	m.revalidate()
	return nil
}

// Undo removes the most recently appended point. The first point cannot
// be undone; cancel the drawing instead.
func (m *DrawingManager) Undo() error {
	if m.state != StateDrawing {
		return ErrNotDrawing
	}
	if len(m.current.Points) <= 1 {
		return ErrNothingToUndo
	}
	last := m.current.Points[len(m.current.Points)-1]
	m.current.Points = m.current.Points[:len(m.current.Points)-1]
	m.undone = append(m.undone, last)
	m.revalidate()
	return nil
}

// Redo re-appends the most recently undone point.
func (m *DrawingManager) Redo() error {
	if m.state != StateDrawing {
		return ErrNotDrawing
	}
	if len(m.undone) == 0 {
		return ErrNothingToRedo
	}
	p := m.undone[len(m.undone)-1]
	m.undone = m.undone[:len(m.undone)-1]
	m.current.Points = append(m.current.Points, p)
	m.revalidate()
	return nil
}

// CompleteDrawing transitions drawing→complete, requiring at least two
// points, and returns the finished centerline. The manager returns to
// idle for the next drawing.
func (m *DrawingManager) CompleteDrawing() (*Centerline, error) {
	if m.state != StateDrawing {
		return nil, ErrNotDrawing
	}
	if len(m.current.Points) < 2 {
		return nil, ErrTooFewPoints
	}
	m.current.IsComplete = true
	m.revalidate()
	done := m.current
	m.current = nil
	m.undone = nil
	m.state = StateIdle
	return done, nil
}

// CancelDrawing discards the in-progress centerline.
func (m *DrawingManager) CancelDrawing() error {
	if m.state != StateDrawing {
		return ErrNotDrawing
	}
	m.current = nil
	m.undone = nil
	m.state = StateIdle
	return nil
}

// revalidate recomputes metadata and SMACNA compliance after any
// mutation.
func (m *DrawingManager) revalidate() {
	m.current.RecomputeMetadata(m.now())
	m.current.IsSMACNACompliant, m.current.Warnings = Validate(m.current, m.validation)
}

// ConvertToArc converts a segmented centerline to arc type, inserting a
// control point at each interior corner. Straight-through corners get no
// control point. The original main points are preserved.
func ConvertToArc(c *Centerline, now time.Time) error {
	if c == nil || len(c.Points) == 0 {
		return errors.New("empty centerline")
	}
	if c.Type == TypeArc {
		return nil
	}
	main := c.Points

	// Insert a control point after each interior corner that actually
	// turns, carrying the corner tangent.
	rebuilt := make([]Point, 0, len(main)*2)
	for i := 0; i < len(main); i++ {
		if i > 0 && i < len(main)-1 {
			prev, cur, next := main[i-1].Pos(), main[i].Pos(), main[i+1].Pos()
			if geom.AngleBetweenDeg(cur.Sub(prev), next.Sub(cur)) > 1e-6 {
				ctrl := controlPointFor(prev, cur, next)
				rebuilt = append(rebuilt, main[i])
				rebuilt = append(rebuilt, ctrl)
				continue
			}
		}
		rebuilt = append(rebuilt, main[i])
	}

	c.Type = TypeArc
	c.Points = rebuilt
	c.RecomputeMetadata(now)
	return nil
}

// ConvertToSegmented strips control points, returning the centerline to
// straight segments between its main points.
func ConvertToSegmented(c *Centerline, now time.Time) error {
	if c == nil || len(c.Points) == 0 {
		return errors.New("empty centerline")
	}
	if c.Type == TypeSegmented {
		return nil
	}
	c.Points = c.MainPoints()
	c.Type = TypeSegmented
	c.RecomputeMetadata(now)
	return nil
}

// controlPointFor places an arc control point just past a corner, on the
// bisector of the turn, with the outgoing tangent recorded.
func controlPointFor(prev, cur, next geom.Point2D) Point {
	in := cur.Sub(prev).Normalize()
	out := next.Sub(cur).Normalize()
	tangent := geom.Vector2{X: in.X + out.X, Y: in.Y + out.Y}.Normalize()

	// Offset proportional to the shorter adjacent segment, capped so the
	// control point stays near the corner.
	offset := math.Min(cur.DistanceTo(prev), cur.DistanceTo(next)) * 0.25
	pos := cur.Add(out.Scale(offset))
	return Point{
		X:              pos.X,
		Y:              pos.Y,
		IsControlPoint: true,
		Tangent:        &tangent,
	}
}

// Describe returns a short human-readable summary, used in logs.
func Describe(c *Centerline) string {
	if c == nil {
		return "<nil centerline>"
	}
	return fmt.Sprintf("%s(%s, %d points, %.1f long)", c.ID, c.Type, len(c.Points), c.Metadata.TotalLength)
}
