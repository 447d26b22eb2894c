// Package centerline models user-drawn duct run paths and the drawing
// state machine that produces them.
package centerline

import (
	"time"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

// Type distinguishes straight-segment runs from runs with arc corners.
type Type string

const (
	TypeArc       Type = "arc"
	TypeSegmented Type = "segmented"
)

// Point is one vertex of a centerline. Control points exist only on
// arc-type centerlines; they carry the tangent of the arc at the corner
// and are not user-addressable.
type Point struct {
	X              float64       `json:"x"`
	Y              float64       `json:"y"`
	IsControlPoint bool          `json:"isControlPoint,omitempty"`
	Tangent        *geom.Vector2 `json:"tangent,omitempty"`
}

// Pos returns the point's coordinate.
func (p Point) Pos() geom.Point2D {
	return geom.Point2D{X: p.X, Y: p.Y}
}

// Metadata is derived from the point sequence. It is recomputed after
// every mutation, never hand-patched.
type Metadata struct {
	TotalLength  float64   `json:"totalLength"`
	SegmentCount int       `json:"segmentCount"`
	HasArcs      bool      `json:"hasArcs"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Centerline is a drawn duct run path. While drawing it may hold any
// number of points; a complete centerline has at least two.
type Centerline struct {
	ID                string   `json:"id"`
	Type              Type     `json:"type"`
	Points            []Point  `json:"points"`
	IsComplete        bool     `json:"isComplete"`
	IsSMACNACompliant bool     `json:"isSMACNACompliant"`
	Warnings          []string `json:"warnings,omitempty"`
	Metadata          Metadata `json:"metadata"`
}

// MainPoints returns the user-drawn vertices, excluding arc control
// points.
func (c *Centerline) MainPoints() []Point {
	if c.Type != TypeArc {
		return c.Points
	}
	out := make([]Point, 0, len(c.Points))
	for _, p := range c.Points {
		if !p.IsControlPoint {
			out = append(out, p)
		}
	}
	return out
}

// MainPositions returns the coordinates of the main points.
func (c *Centerline) MainPositions() []geom.Point2D {
	main := c.MainPoints()
	out := make([]geom.Point2D, len(main))
	for i, p := range main {
		out[i] = p.Pos()
	}
	return out
}

// RecomputeMetadata rebuilds the derived metadata from the current point
// sequence. CreatedAt is preserved; LastModified is stamped with now.
func (c *Centerline) RecomputeMetadata(now time.Time) {
	positions := c.MainPositions()
	c.Metadata.TotalLength = geom.PolylineLength(positions)
	if len(positions) > 1 {
		c.Metadata.SegmentCount = len(positions) - 1
	} else {
		c.Metadata.SegmentCount = 0
	}
	hasArcs := false
	for _, p := range c.Points {
		if p.IsControlPoint {
			hasArcs = true
			break
		}
	}
	c.Metadata.HasArcs = hasArcs
	c.Metadata.LastModified = now
}

// Segment returns the i-th main segment's endpoints.
func (c *Centerline) Segment(i int) (geom.Point2D, geom.Point2D) {
	main := c.MainPositions()
	return main[i], main[i+1]
}
