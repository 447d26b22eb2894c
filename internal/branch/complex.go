package branch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/ductwork"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

// ErrTooFewBranches is returned when an intersection has fewer than two
// branch centerlines.
var ErrTooFewBranches = errors.New("intersection needs at least 2 branch centerlines")

// IntersectionType classifies a multi-branch intersection.
type IntersectionType string

const (
	TripleBranch   IntersectionType = "triple_branch"
	QuadBranch     IntersectionType = "quad_branch"
	LinearManifold IntersectionType = "linear_manifold"
	RadialManifold IntersectionType = "radial_manifold"
	CustomManifold IntersectionType = "custom_manifold"
)

// Requirements are the system constraints a solution is scored against.
type Requirements struct {
	MaxPressureLossInWG float64 `json:"maxPressureLossInWg"`
	MaxNoiseDB          float64 `json:"maxNoiseDb"`
	MaxFabricationCost  float64 `json:"maxFabricationCost"`
	SpaceConstrained    bool    `json:"spaceConstrained"`
	RequireSMACNA       bool    `json:"requireSmacna"`
}

// DefaultRequirements returns permissive commercial defaults.
func DefaultRequirements() Requirements {
	return Requirements{
		MaxPressureLossInWG: 0.5,
		MaxNoiseDB:          55,
		MaxFabricationCost:  5000,
	}
}

// Intersection is one multi-branch junction to analyze.
type Intersection struct {
	Main         *centerline.Centerline
	Branches     []*centerline.Centerline
	Point        geom.Point2D
	Requirements Requirements
}

// Performance holds the estimated airflow characteristics of a solution.
type Performance struct {
	PressureLossInWG float64 `json:"pressureLossInWg"`
	MaxVelocityFPM   float64 `json:"maxVelocityFpm"`
	NoiseDB          float64 `json:"noiseDb"`
	FlowDistribution float64 `json:"flowDistribution"`
	EnergyEfficiency float64 `json:"energyEfficiency"`
}

// Fabrication holds build complexity and cost estimates.
type Fabrication struct {
	Complexity string  `json:"complexity"`
	CostUSD    float64 `json:"costUsd"`
	TimeHours  float64 `json:"timeHours"`
}

// Compliance carries the SMACNA verdict for a solution.
type Compliance struct {
	SMACNACompliant bool     `json:"smacnaCompliant"`
	Notes           []string `json:"notes,omitempty"`
}

// Component is one fitting in a composite solution.
type Component struct {
	Fitting     ductwork.FittingType `json:"fitting"`
	Description string               `json:"description"`
}

// Solution is one candidate fitting arrangement for an intersection.
// Solutions are immutable after creation.
type Solution struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        IntersectionType `json:"type"`
	Components  []Component      `json:"components"`
	Performance Performance      `json:"performance"`
	Fabrication Fabrication      `json:"fabrication"`
	Compliance  Compliance       `json:"compliance"`
	Confidence  float64          `json:"confidence"`
}

// ValidationReport is the result of re-checking a chosen solution
// against system requirements.
type ValidationReport struct {
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Valid reports whether no hard threshold was violated.
func (r ValidationReport) Valid() bool { return len(r.Errors) == 0 }

// AnalyzerConfig filters and caps analysis output.
type AnalyzerConfig struct {
	MinConfidence float64
	MaxSolutions  int
	// LinearToleranceDeg is how far a branch direction may deviate from
	// the dominant axis and still count as a linear arrangement.
	LinearToleranceDeg float64
}

// DefaultAnalyzerConfig returns the standard filtering policy.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{MinConfidence: 0.5, MaxSolutions: 3, LinearToleranceDeg: 15}
}

// Analyzer classifies multi-branch intersections and enumerates ranked
// fitting solutions. Results are cached by an input fingerprint until
// ClearCache.
type Analyzer struct {
	cfg   AnalyzerConfig
	cache map[string][]*Solution
}

// NewAnalyzer creates an analyzer with an empty solution cache.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: cfg, cache: make(map[string][]*Solution)}
}

// Analyze classifies the intersection and returns candidate solutions
// filtered by minimum confidence and ranked by confidence descending.
// A panic during analysis is converted to an error and nothing is
// cached for that fingerprint.
func (a *Analyzer) Analyze(x Intersection) (sols []*Solution, err error) {
	defer func() {
		if r := recover(); r != nil {
			sols = nil
			err = fmt.Errorf("intersection analysis failed: %v", r)
		}
	}()

	if len(x.Branches) < 2 {
		return nil, ErrTooFewBranches
	}

	key := a.fingerprint(x)
	if cached, ok := a.cache[key]; ok {
		return cached, nil
	}

	kind := a.Classify(x)
	candidates := a.generate(kind, x)

	out := make([]*Solution, 0, len(candidates))
	for _, s := range candidates {
		if s.Confidence >= a.cfg.MinConfidence {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if a.cfg.MaxSolutions > 0 && len(out) > a.cfg.MaxSolutions {
		out = out[:a.cfg.MaxSolutions]
	}

	a.cache[key] = out
	return out, nil
}

// ClearCache drops all cached analysis results.
func (a *Analyzer) ClearCache() {
	a.cache = make(map[string][]*Solution)
}

// CacheSize returns the number of cached fingerprints.
func (a *Analyzer) CacheSize() int { return len(a.cache) }

// Classify maps branch count and angular arrangement to an
// intersection type.
func (a *Analyzer) Classify(x Intersection) IntersectionType {
	n := len(x.Branches)
	angles := a.branchAngles(x)
	switch {
	case n == 3:
		return TripleBranch
	case n == 4 && a.isRadial(angles):
		return RadialManifold
	case n == 4:
		return QuadBranch
	case n >= 5 && a.isLinear(angles):
		return LinearManifold
	case n >= 5 && a.isRadial(angles):
		return RadialManifold
	default:
		return CustomManifold
	}
}

// branchAngles returns the overall direction of each branch in degrees,
// normalized to [0, 360).
func (a *Analyzer) branchAngles(x Intersection) []float64 {
	out := make([]float64, 0, len(x.Branches))
	for _, cl := range x.Branches {
		pts := cl.MainPositions()
		if len(pts) < 2 {
			continue
		}
		ang := pts[len(pts)-1].Sub(pts[0]).Angle()
		out = append(out, geom.NormalizeAngleDeg(ang))
	}
	return out
}

// isLinear reports whether every direction folds onto a single axis
// within the configured tolerance.
func (a *Analyzer) isLinear(angles []float64) bool {
	if len(angles) < 2 {
		return false
	}
	axis := math.Mod(angles[0], 180)
	for _, ang := range angles[1:] {
		folded := math.Mod(ang, 180)
		diff := math.Abs(folded - axis)
		if diff > 90 {
			diff = 180 - diff
		}
		if diff > a.cfg.LinearToleranceDeg {
			return false
		}
	}
	return true
}

// isRadial reports whether the directions are spread roughly evenly
// around the junction.
func (a *Analyzer) isRadial(angles []float64) bool {
	n := len(angles)
	if n < 3 || a.isLinear(angles) {
		return false
	}
	sorted := append([]float64(nil), angles...)
	sort.Float64s(sorted)
	ideal := 360 / float64(n)
	maxGap := 0.0
	for i := range sorted {
		next := sorted[(i+1)%n]
		gap := next - sorted[i]
		if gap < 0 {
			gap += 360
		}
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap <= ideal*1.6
}

// generate builds the named candidate solutions for a classified type.
func (a *Analyzer) generate(kind IntersectionType, x Intersection) []*Solution {
	n := len(x.Branches)
	switch kind {
	case TripleBranch:
		return []*Solution{
			a.solution("Custom fabricated triple branch", kind, n, x.Requirements, 0.85, false,
				Component{ductwork.FittingCustom, "shop-fabricated three-way branch body"}),
			a.solution("Double-wye combination", kind, n, x.Requirements, 0.75, true,
				Component{ductwork.FittingDoubleWye, "standard double wye"},
				Component{ductwork.FittingTee, "standard tee takeoff"}),
		}
	case QuadBranch:
		return []*Solution{
			a.solution("Custom fabricated quad branch", kind, n, x.Requirements, 0.8, false,
				Component{ductwork.FittingCustom, "shop-fabricated four-way branch body"}),
			a.solution("Cross plus tee combination", kind, n, x.Requirements, 0.7, true,
				Component{ductwork.FittingCross, "standard cross"},
				Component{ductwork.FittingTee, "standard tee takeoff"}),
		}
	case LinearManifold:
		comps := []Component{{ductwork.FittingCustom, "trunk manifold body"}}
		for i := 0; i < n; i++ {
			comps = append(comps, Component{ductwork.FittingTee, fmt.Sprintf("takeoff %d", i+1)})
		}
		return []*Solution{
			a.solution("Linear trunk manifold", kind, n, x.Requirements, 0.9, true, comps...),
			a.solution("Sequential tee takeoffs", kind, n, x.Requirements, 0.8, true,
				Component{ductwork.FittingTee, fmt.Sprintf("%d tees spaced along the trunk", n)}),
		}
	case RadialManifold:
		return []*Solution{
			a.solution("Radial distribution manifold", kind, n, x.Requirements, 0.85, true,
				Component{ductwork.FittingCustom, "central distribution plenum"}),
			a.solution("Custom fabricated radial plenum", kind, n, x.Requirements, 0.7, false,
				Component{ductwork.FittingCustom, "shop-fabricated radial body"}),
		}
	default:
		return []*Solution{
			a.solution("Custom fabricated manifold", kind, n, x.Requirements, 0.6, false,
				Component{ductwork.FittingCustom, fmt.Sprintf("%d-way custom manifold", n+1)}),
		}
	}
}

// solution assembles one immutable candidate with performance and
// fabrication estimates scaled by branch count.
func (a *Analyzer) solution(name string, kind IntersectionType, branches int, req Requirements, confidence float64, standard bool, comps ...Component) *Solution {
	loss := 0.05 + 0.02*float64(branches)
	noise := 30 + 3*float64(branches)
	distribution := 0.75
	complexity := "high"
	cost := 400 * float64(branches)
	hours := 2 * float64(branches)
	if standard {
		distribution = 0.85
		complexity = "moderate"
		cost *= 0.6
		hours *= 0.5
	}
	if req.SpaceConstrained && !standard {
		// Custom bodies pack tighter than fitting chains.
		confidence = math.Min(confidence+0.05, 1)
	}

	compliance := Compliance{SMACNACompliant: standard}
	if !standard {
		compliance.Notes = append(compliance.Notes,
			"custom fabrication requires engineering review under SMACNA duct construction standards")
	}

	return &Solution{
		ID:         typeid.NewSolutionID(),
		Name:       name,
		Type:       kind,
		Components: comps,
		Performance: Performance{
			PressureLossInWG: loss,
			MaxVelocityFPM:   1800,
			NoiseDB:          noise,
			FlowDistribution: distribution,
			EnergyEfficiency: math.Max(0, 1-loss),
		},
		Fabrication: Fabrication{Complexity: complexity, CostUSD: cost, TimeHours: hours},
		Compliance:  compliance,
		Confidence:  confidence,
	}
}

// ValidateSolution re-checks a chosen solution against requirements.
// Hard threshold violations become errors, soft ones warnings, and the
// report may carry tuning recommendations.
func (a *Analyzer) ValidateSolution(s *Solution, req Requirements) ValidationReport {
	var report ValidationReport
	if s == nil {
		report.Errors = append(report.Errors, "no solution selected")
		return report
	}
	if req.MaxPressureLossInWG > 0 && s.Performance.PressureLossInWG > req.MaxPressureLossInWG {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"pressure loss %.2f in. w.g. exceeds limit %.2f", s.Performance.PressureLossInWG, req.MaxPressureLossInWG))
	}
	if req.MaxNoiseDB > 0 && s.Performance.NoiseDB > req.MaxNoiseDB {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"noise %.0f dB exceeds limit %.0f dB", s.Performance.NoiseDB, req.MaxNoiseDB))
	}
	if req.MaxFabricationCost > 0 && s.Fabrication.CostUSD > req.MaxFabricationCost {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"fabrication cost $%.0f exceeds budget $%.0f", s.Fabrication.CostUSD, req.MaxFabricationCost))
	}
	if req.RequireSMACNA && !s.Compliance.SMACNACompliant {
		report.Errors = append(report.Errors, "solution is not SMACNA compliant but compliance is required")
	} else if !s.Compliance.SMACNACompliant {
		report.Warnings = append(report.Warnings, "solution requires custom fabrication outside SMACNA standards")
	}
	if s.Performance.FlowDistribution < 0.8 {
		report.Recommendations = append(report.Recommendations,
			"add balancing dampers downstream to even out flow distribution")
	}
	if s.Fabrication.Complexity == "high" {
		report.Recommendations = append(report.Recommendations,
			"request a fabrication quote before committing to this layout")
	}
	return report
}

// fingerprint keys the cache by branch count, junction location, and
// requirements.
func (a *Analyzer) fingerprint(x Intersection) string {
	return fmt.Sprintf("%d|%.1f,%.1f|%.3f|%.1f|%.0f|%t|%t",
		len(x.Branches), x.Point.X, x.Point.Y,
		x.Requirements.MaxPressureLossInWG, x.Requirements.MaxNoiseDB,
		x.Requirements.MaxFabricationCost, x.Requirements.SpaceConstrained,
		x.Requirements.RequireSMACNA)
}
