package ductwork

import (
	"fmt"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

// BranchInsertion is a branch-point fitting request handed to the
// converter. The engine maps branch manager output into this form so the
// converter stays decoupled from branch analysis.
type BranchInsertion struct {
	Position     geom.Point2D `json:"position"`
	CenterlineID string       `json:"centerlineId"`
	Fitting      FittingType  `json:"fitting"`
	AngleDeg     float64      `json:"angleDeg"`
}

// ConverterConfig controls segment defaults and optional pipeline steps.
type ConverterConfig struct {
	DefaultShape      Shape
	DefaultDimensions Dimensions
	DefaultMaterial   string
	DefaultAirflowCFM float64

	// AutoInsertFittings scans for direction changes between consecutive
	// segments and inserts elbows.
	AutoInsertFittings bool
	// ValidateConnections collects still-open connection points and
	// isolated segments into the result.
	ValidateConnections bool

	// AngleToleranceDeg is the direction change below which consecutive
	// segments are treated as straight-through.
	AngleToleranceDeg float64
	// RequiredElbowDeg is the direction change above which an inserted
	// elbow is flagged required rather than advisory.
	RequiredElbowDeg float64
}

// DefaultConverterConfig returns the standard conversion defaults.
func DefaultConverterConfig() ConverterConfig {
	return ConverterConfig{
		DefaultShape:        ShapeRectangular,
		DefaultDimensions:   Dimensions{Width: 12, Height: 8},
		DefaultMaterial:     "galvanized_steel",
		DefaultAirflowCFM:   400,
		AutoInsertFittings:  true,
		ValidateConnections: true,
		AngleToleranceDeg:   5,
		RequiredElbowDeg:    15,
	}
}

// Converter walks finished centerlines and emits duct segments and
// fittings with connection points.
type Converter struct {
	cfg ConverterConfig
}

// NewConverter creates a converter with the given defaults.
func NewConverter(cfg ConverterConfig) *Converter {
	return &Converter{cfg: cfg}
}

// Convert turns centerlines and branch insertions into 3D ductwork.
// A single malformed centerline degrades to a warning and is skipped;
// validation errors (non-finite geometry) mark the whole result
// unsuccessful. Warnings never flip success.
func (cv *Converter) Convert(centerlines []*centerline.Centerline, branches []BranchInsertion) (result ConversionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ConversionResult{
				Success: false,
				Errors:  []string{fmt.Sprintf("internal conversion error: %v", r)},
			}
		}
	}()

	result.Success = true

	byCenterline := make(map[string][]int)
	for i, b := range branches {
		byCenterline[b.CenterlineID] = append(byCenterline[b.CenterlineID], i)
	}
	placed := make([]bool, len(branches))

	for _, cl := range centerlines {
		positions := cl.MainPositions()
		if len(positions) < 2 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("centerline %s has fewer than 2 points, skipped", cl.ID))
			continue
		}
		if err := validatePositions(cl.ID, positions); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		// A mid-span branch splits its host run at the takeoff position so
		// the fitting can be linked through like any other joint.
		positions, joints := spliceBranchPoints(positions, branches, byCenterline[cl.ID], placed)

		segments := cv.segmentsFor(cl, positions)

		// Link consecutive segments, inserting fittings at branch joints
		// and elbows at direction changes.
		for i := 1; i < len(segments); i++ {
			prev, cur := segments[i-1], segments[i]
			if b, ok := joints[i]; ok {
				fitting := cv.branchFitting(b)
				link(&prev.Outlet, &fitting.Connections[0])
				link(&fitting.Connections[1], &cur.Inlet)
				prev.ConnectionRelationships = append(prev.ConnectionRelationships, fitting.ID)
				cur.ConnectionRelationships = append(cur.ConnectionRelationships, fitting.ID)
				result.Fittings = append(result.Fittings, fitting)
				continue
			}
			turn := geom.AngleBetweenDeg(
				prev.End.Sub(prev.Start),
				cur.End.Sub(cur.Start),
			)
			if cv.cfg.AutoInsertFittings && turn > cv.cfg.AngleToleranceDeg {
				elbow := cv.elbowAt(cur.Start, turn)
				link(&prev.Outlet, &elbow.Connections[0])
				link(&elbow.Connections[1], &cur.Inlet)
				prev.ConnectionRelationships = append(prev.ConnectionRelationships, elbow.ID)
				cur.ConnectionRelationships = append(cur.ConnectionRelationships, elbow.ID)
				result.Fittings = append(result.Fittings, elbow)
			} else {
				link(&prev.Outlet, &cur.Inlet)
				prev.ConnectionRelationships = append(prev.ConnectionRelationships, cur.ID)
				cur.ConnectionRelationships = append(cur.ConnectionRelationships, prev.ID)
			}
		}

		result.DuctSegments = append(result.DuctSegments, segments...)
	}

	// Branches that landed on no converted run still produce a fitting, left
	// unattached with both main-run connections open.
	for i, b := range branches {
		if placed[i] {
			continue
		}
		if err := geom.ValidatePoint(b.Position); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("branch on centerline %s: %v", b.CenterlineID, err))
			continue
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("branch at (%.1f, %.1f) is not on centerline %s, fitting left unattached",
				b.Position.X, b.Position.Y, b.CenterlineID))
		result.Fittings = append(result.Fittings, cv.branchFitting(b))
	}

	if cv.cfg.ValidateConnections {
		cv.validateConnections(&result)
	}

	result.SystemStats = cv.stats(result.DuctSegments, result.Fittings)
	if len(result.Errors) > 0 {
		result.Success = false
	}
	return result
}

// segmentsFor emits one duct segment per consecutive point pair.
func (cv *Converter) segmentsFor(cl *centerline.Centerline, positions []geom.Point2D) []*DuctSegment {
	segments := make([]*DuctSegment, 0, len(positions)-1)
	for i := 1; i < len(positions); i++ {
		start, end := positions[i-1], positions[i]
		dir := geom.Direction3(start, end)
		seg := &DuctSegment{
			ID:           typeid.NewSegmentID(),
			CenterlineID: cl.ID,
			Shape:        cv.cfg.DefaultShape,
			Dimensions:   cv.cfg.DefaultDimensions,
			Material:     cv.cfg.DefaultMaterial,
			Start:        start,
			End:          end,
			Length:       start.DistanceTo(end),
			Inlet: ConnectionPoint{
				ID:         typeid.NewConnectionID(),
				Position:   start,
				Direction:  dir.Reverse(),
				Shape:      cv.cfg.DefaultShape,
				Dimensions: cv.cfg.DefaultDimensions,
				Status:     ConnectionAvailable,
			},
			Outlet: ConnectionPoint{
				ID:         typeid.NewConnectionID(),
				Position:   end,
				Direction:  dir,
				Shape:      cv.cfg.DefaultShape,
				Dimensions: cv.cfg.DefaultDimensions,
				Status:     ConnectionAvailable,
			},
			FlowProperties: FlowProperties{
				AirflowCFM: cv.cfg.DefaultAirflowCFM,
			},
			ConnectionRelationships: []string{},
			CalculationState:        CalcNeedsRecalculation,
		}
		segments = append(segments, seg)
	}
	return segments
}

// elbowAt creates an elbow fitting at a direction change.
func (cv *Converter) elbowAt(pos geom.Point2D, turnDeg float64) *DuctFitting {
	return &DuctFitting{
		ID:         typeid.NewFittingID(),
		Type:       FittingElbow,
		Position:   pos,
		AngleDeg:   turnDeg,
		Required:   turnDeg > cv.cfg.RequiredElbowDeg,
		Shape:      cv.cfg.DefaultShape,
		Dimensions: cv.cfg.DefaultDimensions,
		Material:   cv.cfg.DefaultMaterial,
		Connections: []ConnectionPoint{
			cv.connectionAt(pos),
			cv.connectionAt(pos),
		},
		CalculationState: CalcNeedsRecalculation,
	}
}

// branchFitting creates the fitting requested at a branch point. The two
// main-run connections come first; takeoff ports for the branch run go in
// BranchPorts and stay open for the downstream calculation engine.
func (cv *Converter) branchFitting(b BranchInsertion) *DuctFitting {
	takeoffs := 1
	switch b.Fitting {
	case FittingCross, FittingDoubleWye:
		takeoffs = 2
	case "":
		b.Fitting = FittingTee
	}
	ports := make([]ConnectionPoint, takeoffs)
	for i := range ports {
		ports[i] = cv.connectionAt(b.Position)
	}
	return &DuctFitting{
		ID:         typeid.NewFittingID(),
		Type:       b.Fitting,
		Position:   b.Position,
		AngleDeg:   b.AngleDeg,
		Required:   true,
		Shape:      cv.cfg.DefaultShape,
		Dimensions: cv.cfg.DefaultDimensions,
		Material:   cv.cfg.DefaultMaterial,
		Connections: []ConnectionPoint{
			cv.connectionAt(b.Position),
			cv.connectionAt(b.Position),
		},
		BranchPorts:      ports,
		CalculationState: CalcNeedsRecalculation,
	}
}

// spliceBranchPoints inserts each branch takeoff position as a new vertex
// in its host polyline, so segment emission splits the run there. The
// returned map keys are vertex indices carrying a branch fitting. Branches
// whose position does not lie on the polyline are left unmarked in placed.
func spliceBranchPoints(positions []geom.Point2D, branches []BranchInsertion, indices []int, placed []bool) ([]geom.Point2D, map[int]BranchInsertion) {
	const onSegmentEps = 1e-6

	joints := make(map[int]BranchInsertion)
	for _, bi := range indices {
		b := branches[bi]
		for i := 1; i < len(positions); i++ {
			a, c := positions[i-1], positions[i]
			closest, t := geom.ClosestPointOnSegment(b.Position, a, c)
			if closest.DistanceTo(b.Position) > onSegmentEps {
				continue
			}
			// A takeoff at an existing vertex would collide with elbow
			// insertion there, so only strict mid-segment hits split.
			if t*a.DistanceTo(c) <= onSegmentEps || (1-t)*a.DistanceTo(c) <= onSegmentEps {
				continue
			}
			positions = append(positions[:i], append([]geom.Point2D{b.Position}, positions[i:]...)...)
			for j := len(positions) - 2; j >= i; j-- {
				if _, ok := joints[j]; ok {
					joints[j+1] = joints[j]
					delete(joints, j)
				}
			}
			joints[i] = b
			placed[bi] = true
			break
		}
	}
	return positions, joints
}

func (cv *Converter) connectionAt(pos geom.Point2D) ConnectionPoint {
	return ConnectionPoint{
		ID:         typeid.NewConnectionID(),
		Position:   pos,
		Shape:      cv.cfg.DefaultShape,
		Dimensions: cv.cfg.DefaultDimensions,
		Status:     ConnectionAvailable,
	}
}

// validateConnections collects open connection points and isolated
// segments as warnings. The model stays usable; the flags tell the
// caller it is incomplete.
func (cv *Converter) validateConnections(result *ConversionResult) {
	for _, seg := range result.DuctSegments {
		if seg.Inlet.Status == ConnectionAvailable {
			result.OpenConnections = append(result.OpenConnections, seg.Inlet)
		}
		if seg.Outlet.Status == ConnectionAvailable {
			result.OpenConnections = append(result.OpenConnections, seg.Outlet)
		}
		if len(seg.ConnectionRelationships) == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("segment %s is isolated (no upstream/downstream relationships)", seg.ID))
		}
	}
	for _, f := range result.Fittings {
		for _, c := range f.Connections {
			if c.Status == ConnectionAvailable {
				result.OpenConnections = append(result.OpenConnections, c)
			}
		}
	}
	if len(result.OpenConnections) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d connection points remain open", len(result.OpenConnections)))
	}
}

// stats sums segment lengths and counts connection points by
// construction (two per segment or fitting port pair), not by how many
// are actually closed.
func (cv *Converter) stats(segments []*DuctSegment, fittings []*DuctFitting) SystemStats {
	s := SystemStats{
		SegmentCount:    len(segments),
		FittingCount:    len(fittings),
		ConnectionCount: 2 * (len(segments) + len(fittings)),
	}
	for _, seg := range segments {
		s.TotalLength += seg.Length
	}
	return s
}

// link marks two connection points as connected to each other.
func link(a, b *ConnectionPoint) {
	a.Status = ConnectionConnected
	a.ConnectedTo = b.ID
	b.Status = ConnectionConnected
	b.ConnectedTo = a.ID
}

func validatePositions(id string, positions []geom.Point2D) error {
	for _, p := range positions {
		if !p.Valid() {
			return fmt.Errorf("centerline %s has non-finite coordinates", id)
		}
	}
	return nil
}
