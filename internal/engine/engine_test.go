package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductline/ductline/backend-go/internal/branch"
	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/document"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/snap"
)

func TestDrawCompleteConvert(t *testing.T) {
	t.Parallel()

	e := NewEngine()

	st, err := e.StartDrawing(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, centerline.StateDrawing, st.State)

	_, err = e.AddPoint(geom.Point2D{X: 100, Y: 0})
	require.NoError(t, err)

	st, err = e.CompleteDrawing()
	require.NoError(t, err)
	assert.Equal(t, centerline.StateComplete, st.State)
	require.NotNil(t, st.Centerline)
	assert.InDelta(t, 100, st.Centerline.Metadata.TotalLength, 1e-9)
	require.Len(t, e.Design().Centerlines, 1)

	result := e.ConvertToDuctwork()
	assert.True(t, result.Success)
	assert.Len(t, result.DuctSegments, 1)
	assert.Empty(t, result.Fittings)
	assert.Len(t, result.OpenConnections, 2)
	assert.InDelta(t, 100, result.SystemStats.TotalLength, 1e-9)

	// A successful conversion lands in the document and bumps the version.
	assert.Len(t, e.Design().Segments, 1)
	assert.Equal(t, 2, e.Design().Version)
}

func TestClickDrawingFlow(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	// Identity viewport keeps screen and world coordinates equal.
	e.SetViewport(geom.Viewport{Scale: 1})

	st, err := e.OnPointerClick(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, centerline.StateDrawing, st.State)
	assert.Equal(t, 1, st.PointCount)

	st, err = e.OnPointerClick(geom.Point2D{X: 50, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, st.PointCount)

	st, err = e.OnPointerDoubleClick(geom.Point2D{X: 50, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, centerline.StateComplete, st.State)
}

func TestPointerClickSnapsToRoomCorner(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.AddRoom(document.Room{
		ID:     "room-1",
		Name:   "Mech",
		Bounds: geom.Rect{X: 0, Y: 0, Width: 100, Height: 100},
	})

	// Click 5px from the (100,100) corner; attraction pulls onto it.
	st, err := e.OnPointerClick(geom.Point2D{X: 105, Y: 103})
	require.NoError(t, err)
	require.NotNil(t, st.Centerline)
	got := st.Centerline.MainPositions()[0]
	assert.InDelta(t, 100, got.X, 1e-9)
	assert.InDelta(t, 100, got.Y, 1e-9)
}

func TestCompletedCenterlineBecomesSnappable(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	before := e.snapSvc.PointCount()

	_, err := e.StartDrawing(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = e.AddPoint(geom.Point2D{X: 100, Y: 0})
	require.NoError(t, err)
	_, err = e.CompleteDrawing()
	require.NoError(t, err)

	assert.Greater(t, e.snapSvc.PointCount(), before)
}

func TestUndoRedoWhileDrawing(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	_, err := e.StartDrawing(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = e.AddPoint(geom.Point2D{X: 50, Y: 0})
	require.NoError(t, err)

	st, err := e.Undo()
	require.NoError(t, err)
	assert.Equal(t, 1, st.PointCount)

	st, err = e.Redo()
	require.NoError(t, err)
	assert.Equal(t, 2, st.PointCount)
}

func TestRemoveCenterlineCascadesBranchPoints(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	_, err := e.StartDrawing(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = e.AddPoint(geom.Point2D{X: 100, Y: 0})
	require.NoError(t, err)
	st, err := e.CompleteDrawing()
	require.NoError(t, err)
	id := st.Centerline.ID

	_, err = e.CreateBranchPoint(id, 0, 0.5, 90)
	require.NoError(t, err)
	require.Len(t, e.BranchPoints(), 1)

	assert.True(t, e.RemoveCenterline(id))
	assert.Empty(t, e.BranchPoints())
	assert.Empty(t, e.Design().Centerlines)

	assert.False(t, e.RemoveCenterline(id))
}

func TestAnalyzeIntersection(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	draw := func(from, to geom.Point2D) string {
		_, err := e.StartDrawing(from)
		require.NoError(t, err)
		_, err = e.AddPoint(to)
		require.NoError(t, err)
		st, err := e.CompleteDrawing()
		require.NoError(t, err)
		return st.Centerline.ID
	}

	mainID := draw(geom.Point2D{X: -100, Y: 0}, geom.Point2D{X: 100, Y: 0})
	b1 := draw(geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 0, Y: 100})
	b2 := draw(geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 80, Y: 100})
	b3 := draw(geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: -80, Y: 100})

	sols, err := e.AnalyzeIntersection(mainID, []string{b1, b2, b3}, geom.Point2D{}, branch.DefaultRequirements())
	require.NoError(t, err)
	require.NotEmpty(t, sols)
	assert.Equal(t, branch.TripleBranch, sols[0].Type)

	_, err = e.AnalyzeIntersection("cl_missing", nil, geom.Point2D{}, branch.DefaultRequirements())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadDesignRoundTrip(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.LoadSampleDesign("proj_test")
	data := e.DesignJSON()

	other := NewEngine()
	require.NoError(t, other.LoadDesign(data))
	assert.Equal(t, "proj_test", other.Design().ProjectID)
	assert.Greater(t, other.snapSvc.PointCount(), 0)

	assert.Error(t, other.LoadDesign("not json"))
}

func TestMetricsAccumulate(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	for i := 0; i < 10; i++ {
		_, err := e.OnPointerMove(geom.Point2D{X: float64(i), Y: 0})
		require.NoError(t, err)
	}

	got := e.Metrics()
	assert.Equal(t, int64(10), got.Perf.SnapQueryCount)
}

func TestGestureTogglesSnapping(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	assert.True(t, e.snapSvc.Enabled())
	e.OnGesture(snap.Gesture{Type: snap.GestureThreeFingerTap})
	assert.False(t, e.snapSvc.Enabled())
}

func TestGridSnappingWhenConfigured(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	assert.Equal(t, 0, e.snapSvc.PointCount(), "empty design yields no snap points")

	e.SetGridSpacing(10)
	assert.Greater(t, e.snapSvc.PointCount(), 0, "grid points cover the visible region")

	res, err := e.OnPointerMove(geom.Point2D{X: 103, Y: 98})
	require.NoError(t, err)
	assert.True(t, res.IsAttracted)
	require.NotNil(t, res.TargetSnapPoint)
	assert.Equal(t, snap.PointGrid, res.TargetSnapPoint.Type)
	assert.Equal(t, geom.Point2D{X: 100, Y: 100}, res.TargetSnapPoint.Position)
}

func TestGridFollowsViewport(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.SetGridSpacing(10)

	// Pan far outside the original region; the grid regenerates for the
	// newly visible world rect.
	e.SetViewport(geom.Viewport{OffsetX: -50000, OffsetY: -50000, Scale: 1})

	res, err := e.OnPointerMove(geom.Point2D{X: 2, Y: 4})
	require.NoError(t, err)
	require.NotNil(t, res.TargetSnapPoint)
	assert.Equal(t, snap.PointGrid, res.TargetSnapPoint.Type)
	assert.Equal(t, geom.Point2D{X: 50000, Y: 50000}, res.TargetSnapPoint.Position)
}
