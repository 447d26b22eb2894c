package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

func intersectionAt(p geom.Point2D, branches ...*centerlineSpec) Intersection {
	x := Intersection{
		Main:         line([2]float64{p.X - 100, p.Y}, [2]float64{p.X + 100, p.Y}),
		Point:        p,
		Requirements: DefaultRequirements(),
	}
	for _, b := range branches {
		x.Branches = append(x.Branches, line(b.from, b.to))
	}
	return x
}

type centerlineSpec struct {
	from, to [2]float64
}

func branchTo(fx, fy, tx, ty float64) *centerlineSpec {
	return &centerlineSpec{from: [2]float64{fx, fy}, to: [2]float64{tx, ty}}
}

func TestClassifyTripleBranch(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())
	x := intersectionAt(geom.Point2D{X: 50, Y: 0},
		branchTo(50, 0, 50, 100),
		branchTo(50, 0, 100, 100),
		branchTo(50, 0, 0, 100),
	)
	assert.Equal(t, TripleBranch, a.Classify(x))
}

func TestClassifySixBranchesInALine(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())
	x := intersectionAt(geom.Point2D{X: 50, Y: 0},
		branchTo(0, 0, 100, 0),
		branchTo(10, 0, 110, 0),
		branchTo(20, 0, 120, 0),
		branchTo(30, 0, -70, 0),
		branchTo(40, 0, 140, 0),
		branchTo(50, 0, -50, 0),
	)
	assert.Equal(t, LinearManifold, a.Classify(x))
}

func TestClassifyFourWay(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())

	radial := intersectionAt(geom.Point2D{X: 0, Y: 0},
		branchTo(0, 0, 100, 0),
		branchTo(0, 0, 0, 100),
		branchTo(0, 0, -100, 0),
		branchTo(0, 0, 0, -100),
	)
	assert.Equal(t, RadialManifold, a.Classify(radial))

	lopsided := intersectionAt(geom.Point2D{X: 0, Y: 0},
		branchTo(0, 0, 100, 0),
		branchTo(0, 0, 100, 10),
		branchTo(0, 0, 100, -10),
		branchTo(0, 0, 0, 100),
	)
	assert.Equal(t, QuadBranch, a.Classify(lopsided))
}

func TestAnalyzeRanksByConfidence(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())
	x := intersectionAt(geom.Point2D{X: 50, Y: 0},
		branchTo(50, 0, 50, 100),
		branchTo(50, 0, 100, 100),
		branchTo(50, 0, 0, 100),
	)

	sols, err := a.Analyze(x)
	require.NoError(t, err)
	require.NotEmpty(t, sols)
	for i := 1; i < len(sols); i++ {
		assert.GreaterOrEqual(t, sols[i-1].Confidence, sols[i].Confidence)
	}
	for _, s := range sols {
		assert.Equal(t, TripleBranch, s.Type)
		assert.GreaterOrEqual(t, s.Confidence, a.cfg.MinConfidence)
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.Components)
		assert.NotEmpty(t, s.ID)
	}
}

func TestAnalyzeTooFewBranches(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())
	x := intersectionAt(geom.Point2D{X: 0, Y: 0}, branchTo(0, 0, 0, 100))
	_, err := a.Analyze(x)
	assert.ErrorIs(t, err, ErrTooFewBranches)
}

func TestAnalyzeCaching(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())
	x := intersectionAt(geom.Point2D{X: 50, Y: 0},
		branchTo(50, 0, 50, 100),
		branchTo(50, 0, 100, 100),
		branchTo(50, 0, 0, 100),
	)

	first, err := a.Analyze(x)
	require.NoError(t, err)
	assert.Equal(t, 1, a.CacheSize())

	second, err := a.Analyze(x)
	require.NoError(t, err)
	// Cached call returns the identical solution objects.
	require.Len(t, second, len(first))
	for i := range first {
		assert.Same(t, first[i], second[i])
	}

	a.ClearCache()
	assert.Equal(t, 0, a.CacheSize())
}

func TestMinConfidenceFilter(t *testing.T) {
	t.Parallel()

	cfg := DefaultAnalyzerConfig()
	cfg.MinConfidence = 0.8
	a := NewAnalyzer(cfg)
	x := intersectionAt(geom.Point2D{X: 50, Y: 0},
		branchTo(50, 0, 50, 100),
		branchTo(50, 0, 100, 100),
		branchTo(50, 0, 0, 100),
	)

	sols, err := a.Analyze(x)
	require.NoError(t, err)
	for _, s := range sols {
		assert.GreaterOrEqual(t, s.Confidence, 0.8)
	}
}

func TestValidateSolution(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultAnalyzerConfig())

	sol := a.solution("test manifold", CustomManifold, 6, Requirements{}, 0.6, false)

	t.Run("within limits", func(t *testing.T) {
		report := a.ValidateSolution(sol, DefaultRequirements())
		assert.True(t, report.Valid())
		// Custom fabrication always draws a soft warning.
		assert.NotEmpty(t, report.Warnings)
	})

	t.Run("hard pressure limit", func(t *testing.T) {
		req := DefaultRequirements()
		req.MaxPressureLossInWG = 0.01
		report := a.ValidateSolution(sol, req)
		assert.False(t, report.Valid())
	})

	t.Run("compliance required", func(t *testing.T) {
		req := DefaultRequirements()
		req.RequireSMACNA = true
		report := a.ValidateSolution(sol, req)
		assert.False(t, report.Valid())
	})

	t.Run("nil solution", func(t *testing.T) {
		report := a.ValidateSolution(nil, DefaultRequirements())
		assert.False(t, report.Valid())
	})
}
