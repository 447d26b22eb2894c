// Package branch finds valid branch insertion points along centerlines,
// suggests fitting types from branch geometry, and analyzes complex
// multi-branch intersections.
package branch

import (
	"errors"
	"fmt"
	"math"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/ductwork"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

// ErrSegmentTooShort is returned when a branch is requested on a segment
// that cannot hold one at the required spacing.
var ErrSegmentTooShort = errors.New("segment too short for branch")

// ErrAngleOutOfBounds is returned for branch angles outside the absolute
// 0–180° range.
var ErrAngleOutOfBounds = errors.New("branch angle out of bounds")

// BranchPoint is a validated branch insertion location on a parent
// centerline.
type BranchPoint struct {
	ID                 string               `json:"id"`
	Position           geom.Point2D         `json:"position"`
	ParentCenterlineID string               `json:"parentCenterlineId"`
	SegmentIndex       int                  `json:"segmentIndex"`
	SegmentPosition    float64              `json:"segmentPosition"`
	AngleDeg           float64              `json:"angleDeg"`
	SuggestedFitting   ductwork.FittingType `json:"suggestedFitting"`
	IsValidLocation    bool                 `json:"isValidLocation"`
	ValidationWarnings []string             `json:"validationWarnings,omitempty"`
}

// Suggestion is the fitting recommendation for a branch point.
type Suggestion struct {
	Fitting         ductwork.FittingType `json:"fitting"`
	Confidence      float64              `json:"confidence"`
	SMACNACompliant bool                 `json:"smacnaCompliant"`
	Warnings        []string             `json:"warnings,omitempty"`
	// NeedsComplexAnalysis flags 3+ nearby branches for the
	// multi-branch analyzer.
	NeedsComplexAnalysis bool `json:"needsComplexAnalysis,omitempty"`
}

// Candidate is one sampled branch location along a segment.
type Candidate struct {
	Position        geom.Point2D `json:"position"`
	SegmentIndex    int          `json:"segmentIndex"`
	SegmentPosition float64      `json:"segmentPosition"`
}

// Config carries branch validation bounds, in degrees and world units.
type Config struct {
	// MinAngleDeg and MaxAngleDeg bound acceptable branch angles.
	MinAngleDeg float64
	// MaxAngleDeg is the upper branch angle bound.
	MaxAngleDeg float64
	// PreferredAngleDeg is the angle fabricators prefer.
	PreferredAngleDeg float64
	// EndMargin is the fraction of a segment's length at each end where
	// branches are rejected.
	EndMargin float64
	// NearbyRadius groups branch points for cross/double-wye escalation.
	NearbyRadius float64
	// AngleTolerance is the window around 90° and 45° treated as an
	// exact tee/wye match.
	AngleTolerance float64
}

// DefaultConfig returns the SMACNA-aligned branch bounds.
func DefaultConfig() Config {
	return Config{
		MinAngleDeg:       30,
		MaxAngleDeg:       90,
		PreferredAngleDeg: 45,
		EndMargin:         0.2,
		NearbyRadius:      24,
		AngleTolerance:    7.5,
	}
}

// Manager owns the branch points for one drawing session, keyed by id
// with a per-centerline index so deleting a centerline cascades.
type Manager struct {
	cfg          Config
	points       map[string]*BranchPoint
	byCenterline map[string][]string
}

// NewManager creates an empty branch manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:          cfg,
		points:       make(map[string]*BranchPoint),
		byCenterline: make(map[string][]string),
	}
}

// FindValidBranchLocations samples evenly spaced candidates along each
// segment of the centerline. Segments shorter than twice minSpacing are
// skipped; candidates inside the end margins are rejected.
func (m *Manager) FindValidBranchLocations(cl *centerline.Centerline, minSpacing float64) []Candidate {
	if cl == nil || minSpacing <= 0 {
		return nil
	}
	positions := cl.MainPositions()
	var out []Candidate
	for i := 1; i < len(positions); i++ {
		a, b := positions[i-1], positions[i]
		length := a.DistanceTo(b)
		if length < 2*minSpacing {
			continue
		}
		steps := int(length / minSpacing)
		for s := 1; s < steps; s++ {
			t := float64(s) / float64(steps)
			if t < m.cfg.EndMargin || t > 1-m.cfg.EndMargin {
				continue
			}
			out = append(out, Candidate{
				Position:        a.Lerp(b, t),
				SegmentIndex:    i - 1,
				SegmentPosition: t,
			})
		}
	}
	return out
}

// CreateBranchPoint validates and registers a branch at the given
// parametric position on a centerline segment. Angle bounds outside
// 0–180° are rejected outright; angles outside the SMACNA 30–90° window
// only warn.
func (m *Manager) CreateBranchPoint(cl *centerline.Centerline, segmentIndex int, t, angleDeg float64) (*BranchPoint, error) {
	if cl == nil {
		return nil, errors.New("nil centerline")
	}
	positions := cl.MainPositions()
	if segmentIndex < 0 || segmentIndex >= len(positions)-1 {
		return nil, fmt.Errorf("segment index %d out of range", segmentIndex)
	}
	if angleDeg <= 0 || angleDeg >= 180 {
		return nil, fmt.Errorf("%w: %.1f°", ErrAngleOutOfBounds, angleDeg)
	}
	if t < 0 || t > 1 {
		return nil, fmt.Errorf("segment position %g out of [0,1]", t)
	}

	a, b := positions[segmentIndex], positions[segmentIndex+1]
	valid := true
	var warnings []string
	if t < m.cfg.EndMargin || t > 1-m.cfg.EndMargin {
		valid = false
		warnings = append(warnings, fmt.Sprintf(
			"branch at %.0f%% of segment is within the %.0f%% end margin",
			t*100, m.cfg.EndMargin*100))
	}
	if angleDeg < m.cfg.MinAngleDeg || angleDeg > m.cfg.MaxAngleDeg {
		warnings = append(warnings, fmt.Sprintf(
			"branch angle %.1f° outside SMACNA range %.0f–%.0f°",
			angleDeg, m.cfg.MinAngleDeg, m.cfg.MaxAngleDeg))
	}

	bp := &BranchPoint{
		ID:                 typeid.NewBranchID(),
		Position:           a.Lerp(b, t),
		ParentCenterlineID: cl.ID,
		SegmentIndex:       segmentIndex,
		SegmentPosition:    t,
		AngleDeg:           angleDeg,
		IsValidLocation:    valid,
		ValidationWarnings: warnings,
	}
	suggestion := m.SuggestFittingType(bp)
	bp.SuggestedFitting = suggestion.Fitting

	m.points[bp.ID] = bp
	m.byCenterline[cl.ID] = append(m.byCenterline[cl.ID], bp.ID)
	return bp, nil
}

// SuggestFittingType maps a branch point's angle to a fitting type, and
// escalates to cross/double-wye/custom when other branch points sit
// within the nearby radius.
func (m *Manager) SuggestFittingType(bp *BranchPoint) Suggestion {
	nearby := m.nearbyPoints(bp)
	if len(nearby) >= 3 {
		return Suggestion{
			Fitting:              ductwork.FittingCustom,
			Confidence:           0.3,
			SMACNACompliant:      false,
			Warnings:             []string{fmt.Sprintf("%d branches converge here; needs multi-branch analysis", len(nearby)+1)},
			NeedsComplexAnalysis: true,
		}
	}
	if len(nearby) > 0 {
		other := nearby[0]
		diff := geom.AngleDiffDeg(bp.AngleDeg, other.AngleDeg)
		switch {
		case diff >= 150:
			return Suggestion{Fitting: ductwork.FittingCross, Confidence: 0.8, SMACNACompliant: true}
		case diff >= 60 && diff <= 120:
			return Suggestion{Fitting: ductwork.FittingDoubleWye, Confidence: 0.75, SMACNACompliant: true}
		default:
			return Suggestion{
				Fitting:         ductwork.FittingCustom,
				Confidence:      0.4,
				SMACNACompliant: false,
				Warnings:        []string{fmt.Sprintf("adjacent branch %.1f° apart needs custom fitting", diff)},
			}
		}
	}
	return m.suggestByAngle(bp.AngleDeg)
}

// suggestByAngle is the single-branch angle policy.
func (m *Manager) suggestByAngle(angleDeg float64) Suggestion {
	switch {
	case math.Abs(angleDeg-90) <= m.cfg.AngleTolerance:
		return Suggestion{Fitting: ductwork.FittingTee, Confidence: 0.95, SMACNACompliant: true}
	case math.Abs(angleDeg-45) <= m.cfg.AngleTolerance:
		return Suggestion{Fitting: ductwork.FittingWye, Confidence: 0.9, SMACNACompliant: true}
	case angleDeg >= 30 && angleDeg <= 60:
		return Suggestion{Fitting: ductwork.FittingWye, Confidence: 0.7, SMACNACompliant: true}
	case angleDeg > 60 && angleDeg <= 90:
		return Suggestion{Fitting: ductwork.FittingTee, Confidence: 0.65, SMACNACompliant: true}
	default:
		return Suggestion{
			Fitting:         ductwork.FittingTee,
			Confidence:      0.4,
			SMACNACompliant: false,
			Warnings: []string{fmt.Sprintf(
				"branch angle %.1f° requires custom fabrication and is not SMACNA standard", angleDeg)},
		}
	}
}

// nearbyPoints returns other branch points within the nearby radius of
// bp, regardless of parent centerline.
func (m *Manager) nearbyPoints(bp *BranchPoint) []*BranchPoint {
	var out []*BranchPoint
	for _, other := range m.points {
		if other.ID == bp.ID {
			continue
		}
		if other.Position.DistanceTo(bp.Position) <= m.cfg.NearbyRadius {
			out = append(out, other)
		}
	}
	return out
}

// Get returns a branch point by id.
func (m *Manager) Get(id string) (*BranchPoint, bool) {
	bp, ok := m.points[id]
	return bp, ok
}

// Points returns all live branch points.
func (m *Manager) Points() []*BranchPoint {
	out := make([]*BranchPoint, 0, len(m.points))
	for _, bp := range m.points {
		out = append(out, bp)
	}
	return out
}

// Remove deletes one branch point.
func (m *Manager) Remove(id string) bool {
	bp, ok := m.points[id]
	if !ok {
		return false
	}
	delete(m.points, id)
	ids := m.byCenterline[bp.ParentCenterlineID]
	for i, have := range ids {
		if have == id {
			m.byCenterline[bp.ParentCenterlineID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true
}

// RemoveForCenterline cascades a centerline delete to its branch
// points and returns how many were removed.
func (m *Manager) RemoveForCenterline(centerlineID string) int {
	ids := m.byCenterline[centerlineID]
	for _, id := range ids {
		delete(m.points, id)
	}
	delete(m.byCenterline, centerlineID)
	return len(ids)
}
