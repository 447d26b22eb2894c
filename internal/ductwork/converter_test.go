package ductwork

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/geom"
)

func segmentedCenterline(id string, pts ...geom.Point2D) *centerline.Centerline {
	cl := &centerline.Centerline{
		ID:         id,
		Type:       centerline.TypeSegmented,
		IsComplete: true,
	}
	for _, p := range pts {
		cl.Points = append(cl.Points, centerline.Point{X: p.X, Y: p.Y})
	}
	return cl
}

func openCount(result ConversionResult) int {
	return len(result.OpenConnections)
}

// linkedPairs counts connection points marked connected, in pairs.
func linkedPairs(result ConversionResult) int {
	connected := 0
	for _, s := range result.DuctSegments {
		if s.Inlet.Status == ConnectionConnected {
			connected++
		}
		if s.Outlet.Status == ConnectionConnected {
			connected++
		}
	}
	for _, f := range result.Fittings {
		for _, c := range f.Connections {
			if c.Status == ConnectionConnected {
				connected++
			}
		}
	}
	return connected / 2
}

func TestLinearCenterlineConversion(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cl := segmentedCenterline("cl_linear", geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 100, Y: 0})
	result := cv.Convert([]*centerline.Centerline{cl}, nil)

	assert.True(t, result.Success)
	require.Len(t, result.DuctSegments, 1)
	assert.Empty(t, result.Fittings)
	assert.Len(t, result.OpenConnections, 2)
	assert.Equal(t, 100.0, result.SystemStats.TotalLength)
	assert.Equal(t, 2, result.SystemStats.ConnectionCount)

	seg := result.DuctSegments[0]
	assert.Equal(t, geom.Vector3{X: 1, Y: 0, Z: 0}, seg.Outlet.Direction)
	assert.Equal(t, geom.Vector3{X: -1, Y: 0, Z: 0}, seg.Inlet.Direction)
	assert.Equal(t, CalcNeedsRecalculation, seg.CalculationState)
	// A single unconnected segment is also flagged isolated.
	assert.NotEmpty(t, result.Warnings)
}

func TestElbowInsertedAtDirectionChange(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cl := segmentedCenterline("cl_turn",
		geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 100, Y: 0}, geom.Point2D{X: 100, Y: 100})
	result := cv.Convert([]*centerline.Centerline{cl}, nil)

	assert.True(t, result.Success)
	require.Len(t, result.DuctSegments, 2)
	require.Len(t, result.Fittings, 1)

	elbow := result.Fittings[0]
	assert.Equal(t, FittingElbow, elbow.Type)
	assert.InDelta(t, 90, elbow.AngleDeg, 1e-9)
	assert.True(t, elbow.Required, "90° turn exceeds the required-elbow threshold")
	assert.Equal(t, geom.Point2D{X: 100, Y: 0}, elbow.Position)

	// Segments connect through the elbow: only the two run ends stay open.
	assert.Len(t, result.OpenConnections, 2)
}

func TestShallowTurnLinksDirectly(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	// ~2.9° direction change, below the 5° tolerance.
	cl := segmentedCenterline("cl_shallow",
		geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 100, Y: 0}, geom.Point2D{X: 200, Y: 5})
	result := cv.Convert([]*centerline.Centerline{cl}, nil)

	assert.Empty(t, result.Fittings)
	require.Len(t, result.DuctSegments, 2)
	assert.Len(t, result.OpenConnections, 2)
	assert.Contains(t, result.DuctSegments[0].ConnectionRelationships, result.DuctSegments[1].ID)
}

func TestClosureInvariant(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cls := []*centerline.Centerline{
		segmentedCenterline("cl_a",
			geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 100, Y: 0}, geom.Point2D{X: 100, Y: 100}),
		segmentedCenterline("cl_b",
			geom.Point2D{X: 300, Y: 0}, geom.Point2D{X: 400, Y: 0}),
	}
	branches := []BranchInsertion{
		{Position: geom.Point2D{X: 50, Y: 0}, CenterlineID: "cl_a", Fitting: FittingTee, AngleDeg: 90},
	}
	result := cv.Convert(cls, branches)

	segs := len(result.DuctSegments)
	fits := len(result.Fittings)
	assert.Equal(t, openCount(result), 2*segs+2*fits-2*linkedPairs(result))

	// The tee splits cl_a at (50,0): three segments plus cl_b's one, the
	// tee and the 90° elbow, and only the three run ends plus cl_b's start
	// stay open.
	assert.Equal(t, 4, segs)
	assert.Equal(t, 2, fits)
	assert.Equal(t, 4, linkedPairs(result))
	assert.Equal(t, 4, openCount(result))
	assert.Equal(t, 2*(segs+fits), result.SystemStats.ConnectionCount)
}

func TestBranchFittingLinkedIntoRun(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cl := segmentedCenterline("cl_main", geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 200, Y: 0})
	branches := []BranchInsertion{
		{Position: geom.Point2D{X: 80, Y: 0}, CenterlineID: "cl_main", Fitting: FittingTee, AngleDeg: 90},
	}
	result := cv.Convert(cl2slice(cl), branches)

	require.Len(t, result.DuctSegments, 2)
	require.Len(t, result.Fittings, 1)

	tee := result.Fittings[0]
	require.Len(t, tee.Connections, 2)
	assert.Equal(t, ConnectionConnected, tee.Connections[0].Status)
	assert.Equal(t, ConnectionConnected, tee.Connections[1].Status)
	assert.Equal(t, result.DuctSegments[0].Outlet.ConnectedTo, tee.Connections[0].ID)
	assert.Equal(t, result.DuctSegments[1].Inlet.ConnectedTo, tee.Connections[1].ID)
	assert.Contains(t, result.DuctSegments[0].ConnectionRelationships, tee.ID)

	// The takeoff stays open for the branch run but sits outside the
	// main-run closure accounting.
	require.Len(t, tee.BranchPorts, 1)
	assert.Equal(t, ConnectionAvailable, tee.BranchPorts[0].Status)
	assert.Len(t, result.OpenConnections, 2)
	assert.Equal(t, 2, linkedPairs(result))
}

func TestBranchOffRunLeftUnattached(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cl := segmentedCenterline("cl_main", geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 200, Y: 0})
	branches := []BranchInsertion{
		{Position: geom.Point2D{X: 80, Y: 50}, CenterlineID: "cl_main", Fitting: FittingTee},
	}
	result := cv.Convert(cl2slice(cl), branches)

	require.Len(t, result.DuctSegments, 1)
	require.Len(t, result.Fittings, 1)
	assert.Equal(t, ConnectionAvailable, result.Fittings[0].Connections[0].Status)

	var warned bool
	for _, w := range result.Warnings {
		if strings.Contains(w, "left unattached") {
			warned = true
		}
	}
	assert.True(t, warned, "off-run branch should warn")

	segs, fits := len(result.DuctSegments), len(result.Fittings)
	assert.Equal(t, openCount(result), 2*segs+2*fits-2*linkedPairs(result))
}

func TestBranchInsertionPorts(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cl := segmentedCenterline("cl_main", geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: 200, Y: 0})
	branches := []BranchInsertion{
		{Position: geom.Point2D{X: 50, Y: 0}, CenterlineID: "cl_main", Fitting: FittingTee},
		{Position: geom.Point2D{X: 100, Y: 0}, CenterlineID: "cl_main", Fitting: FittingCross},
	}
	result := cv.Convert(cl2slice(cl), branches)

	// Both branches split the run: three segments joined through the two
	// fittings, each with exactly two main-run connections.
	require.Len(t, result.DuctSegments, 3)
	require.Len(t, result.Fittings, 2)
	assert.Len(t, result.Fittings[0].Connections, 2)
	assert.Len(t, result.Fittings[0].BranchPorts, 1)
	assert.Len(t, result.Fittings[1].Connections, 2)
	assert.Len(t, result.Fittings[1].BranchPorts, 2)
	assert.Len(t, result.OpenConnections, 2)
}

func TestTooShortCenterlineSkippedWithWarning(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	cl := segmentedCenterline("cl_short", geom.Point2D{X: 0, Y: 0})
	result := cv.Convert(cl2slice(cl), nil)

	assert.True(t, result.Success, "warnings never flip success")
	assert.Empty(t, result.DuctSegments)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "fewer than 2 points")
}

func TestNonFiniteGeometryFailsValidation(t *testing.T) {
	t.Parallel()
	cv := NewConverter(DefaultConverterConfig())

	bad := segmentedCenterline("cl_bad", geom.Point2D{X: 0, Y: 0}, geom.Point2D{X: math.NaN(), Y: 0})
	good := segmentedCenterline("cl_good", geom.Point2D{X: 0, Y: 50}, geom.Point2D{X: 100, Y: 50})
	result := cv.Convert([]*centerline.Centerline{bad, good}, nil)

	assert.False(t, result.Success, "validation errors mark the result unsuccessful")
	require.NotEmpty(t, result.Errors)
	// The good centerline still contributes its segment.
	assert.Len(t, result.DuctSegments, 1)
}

func TestEndToEndTwoPointScenario(t *testing.T) {
	t.Parallel()

	// Draw (0,0)→(100,0), complete, convert: 1 segment, 0 fittings,
	// 2 open connections, total length 100.
	m := centerline.NewDrawingManager(centerline.DefaultValidationConfig())
	_, err := m.StartDrawing(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	require.NoError(t, m.AddPoint(geom.Point2D{X: 100, Y: 0}))
	done, err := m.CompleteDrawing()
	require.NoError(t, err)

	cv := NewConverter(DefaultConverterConfig())
	result := cv.Convert([]*centerline.Centerline{done}, nil)

	assert.True(t, result.Success)
	assert.Len(t, result.DuctSegments, 1)
	assert.Empty(t, result.Fittings)
	assert.Len(t, result.OpenConnections, 2)
	assert.Equal(t, 100.0, result.SystemStats.TotalLength)
}

func cl2slice(cl *centerline.Centerline) []*centerline.Centerline {
	return []*centerline.Centerline{cl}
}
