package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/ductwork"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

func line(points ...[2]float64) *centerline.Centerline {
	cl := &centerline.Centerline{
		ID:   typeid.NewCenterlineID(),
		Type: centerline.TypeSegmented,
	}
	for _, p := range points {
		cl.Points = append(cl.Points, centerline.Point{X: p[0], Y: p[1]})
	}
	return cl
}

func TestFindValidBranchLocations(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})

	candidates := m.FindValidBranchLocations(cl, 10)
	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		assert.Equal(t, 0, c.SegmentIndex)
		assert.GreaterOrEqual(t, c.SegmentPosition, 0.2)
		assert.LessOrEqual(t, c.SegmentPosition, 0.8)
		assert.InDelta(t, 0.0, c.Position.Y, 1e-9)
	}
}

func TestFindValidBranchLocationsSkipsShortSegments(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	// 15-unit segment cannot hold a branch at 10-unit spacing.
	cl := line([2]float64{0, 0}, [2]float64{15, 0})
	assert.Empty(t, m.FindValidBranchLocations(cl, 10))
}

func TestCreateBranchPoint(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})

	bp, err := m.CreateBranchPoint(cl, 0, 0.5, 90)
	require.NoError(t, err)
	assert.True(t, bp.IsValidLocation)
	assert.Empty(t, bp.ValidationWarnings)
	assert.InDelta(t, 50, bp.Position.X, 1e-9)
	assert.Equal(t, cl.ID, bp.ParentCenterlineID)
	assert.Equal(t, ductwork.FittingTee, bp.SuggestedFitting)
}

func TestCreateBranchPointEndMargin(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})

	bp, err := m.CreateBranchPoint(cl, 0, 0.1, 45)
	require.NoError(t, err)
	assert.False(t, bp.IsValidLocation)
	assert.NotEmpty(t, bp.ValidationWarnings)
}

func TestCreateBranchPointRejectsAbsurdAngles(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})

	_, err := m.CreateBranchPoint(cl, 0, 0.5, 0)
	assert.ErrorIs(t, err, ErrAngleOutOfBounds)
	_, err = m.CreateBranchPoint(cl, 0, 0.5, 180)
	assert.ErrorIs(t, err, ErrAngleOutOfBounds)
}

func TestAngleClassification(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())

	t.Run("90 degrees is a high confidence tee", func(t *testing.T) {
		s := m.suggestByAngle(90)
		assert.Equal(t, ductwork.FittingTee, s.Fitting)
		assert.GreaterOrEqual(t, s.Confidence, 0.9)
		assert.True(t, s.SMACNACompliant)
	})

	t.Run("45 degrees is a high confidence wye", func(t *testing.T) {
		s := m.suggestByAngle(45)
		assert.Equal(t, ductwork.FittingWye, s.Fitting)
		assert.GreaterOrEqual(t, s.Confidence, 0.85)
		assert.True(t, s.SMACNACompliant)
	})

	t.Run("20 degrees needs custom fabrication", func(t *testing.T) {
		s := m.suggestByAngle(20)
		assert.Equal(t, ductwork.FittingTee, s.Fitting)
		assert.False(t, s.SMACNACompliant)
		assert.NotEmpty(t, s.Warnings)
	})

	t.Run("shallow wye range keeps compliance at lower confidence", func(t *testing.T) {
		s := m.suggestByAngle(35)
		assert.Equal(t, ductwork.FittingWye, s.Fitting)
		assert.Less(t, s.Confidence, 0.85)
		assert.True(t, s.SMACNACompliant)
	})
}

func TestNearbyBranchEscalation(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})

	first, err := m.CreateBranchPoint(cl, 0, 0.5, 90)
	require.NoError(t, err)

	// Opposite-side branch at nearly the same station escalates to a cross.
	second := &BranchPoint{
		ID:       typeid.NewBranchID(),
		Position: first.Position,
		AngleDeg: 270,
	}
	s := m.SuggestFittingType(second)
	assert.Equal(t, ductwork.FittingCross, s.Fitting)
}

func TestThreeNearbyBranchesFlagComplexAnalysis(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})

	for _, angle := range []float64{45, 90, 135} {
		_, err := m.CreateBranchPoint(cl, 0, 0.5, angle)
		require.NoError(t, err)
	}

	probe := &BranchPoint{
		ID:       typeid.NewBranchID(),
		Position: cl.MainPositions()[0].Lerp(cl.MainPositions()[1], 0.5),
		AngleDeg: 60,
	}
	s := m.SuggestFittingType(probe)
	assert.True(t, s.NeedsComplexAnalysis)
	assert.Equal(t, ductwork.FittingCustom, s.Fitting)
}

func TestRemoveForCenterlineCascades(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	kept := line([2]float64{0, 100}, [2]float64{100, 100})
	doomed := line([2]float64{0, 0}, [2]float64{100, 0})

	_, err := m.CreateBranchPoint(kept, 0, 0.5, 90)
	require.NoError(t, err)
	_, err = m.CreateBranchPoint(doomed, 0, 0.4, 45)
	require.NoError(t, err)
	_, err = m.CreateBranchPoint(doomed, 0, 0.6, 45)
	require.NoError(t, err)

	removed := m.RemoveForCenterline(doomed.ID)
	assert.Equal(t, 2, removed)
	assert.Len(t, m.Points(), 1)
	assert.Equal(t, kept.ID, m.Points()[0].ParentCenterlineID)

	assert.Equal(t, 0, m.RemoveForCenterline(doomed.ID))
}

func TestRemoveSingleBranchPoint(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	cl := line([2]float64{0, 0}, [2]float64{100, 0})
	bp, err := m.CreateBranchPoint(cl, 0, 0.5, 90)
	require.NoError(t, err)

	assert.True(t, m.Remove(bp.ID))
	_, ok := m.Get(bp.ID)
	assert.False(t, ok)
	assert.False(t, m.Remove(bp.ID))
}
