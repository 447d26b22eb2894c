package centerline

import (
	"fmt"
	"math"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

// SMACNA duct-construction checks applied after every centerline
// mutation. Violations never block drawing; they populate the
// centerline's warnings and compliance flag.

// ValidationConfig carries the SMACNA thresholds, in world units (inches)
// and degrees.
type ValidationConfig struct {
	// MinSegmentLength is the shortest fabricateable straight run.
	MinSegmentLength float64
	// AngleTolerance is the allowed deviation from 90° at a segmented
	// turn before the turn is flagged non-standard.
	AngleTolerance float64
	// MinRadiusRatio and MaxRadiusRatio bound an arc corner's
	// radius-to-duct-diameter ratio.
	MinRadiusRatio float64
	MaxRadiusRatio float64
	// DuctDiameter is the assumed duct diameter for radius ratio checks.
	DuctDiameter float64
}

// DefaultValidationConfig returns the standard SMACNA bounds.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MinSegmentLength: 12,
		AngleTolerance:   15,
		MinRadiusRatio:   0.5,
		MaxRadiusRatio:   1.5,
		DuctDiameter:     12,
	}
}

// Validate checks the centerline against SMACNA rules and returns the
// compliance flag with any warnings. A centerline with fewer than two
// main points is trivially compliant.
func Validate(c *Centerline, cfg ValidationConfig) (bool, []string) {
	positions := c.MainPositions()
	var warnings []string

	for i := 1; i < len(positions); i++ {
		length := positions[i-1].DistanceTo(positions[i])
		if length < cfg.MinSegmentLength {
			warnings = append(warnings, fmt.Sprintf(
				"segment %d length %.1f below SMACNA minimum %.1f", i-1, length, cfg.MinSegmentLength))
		}
	}

	for i := 1; i < len(positions)-1; i++ {
		turn := turnAngleDeg(positions[i-1], positions[i], positions[i+1])
		if turn == 0 {
			continue
		}
		if c.Type != TypeArc && math.Abs(turn-90) > cfg.AngleTolerance && math.Abs(turn-45) > cfg.AngleTolerance {
			warnings = append(warnings, fmt.Sprintf(
				"non-standard turn of %.1f° at point %d", turn, i))
		}
	}

	if c.Type == TypeArc {
		warnings = append(warnings, validateArcRadii(c, cfg)...)
	}

	return len(warnings) == 0, warnings
}

// turnAngleDeg returns the direction change at b along a→b→c, in
// degrees. 0 means straight through.
func turnAngleDeg(a, b, c geom.Point2D) float64 {
	in := b.Sub(a)
	out := c.Sub(b)
	return geom.AngleBetweenDeg(in, out)
}

// validateArcRadii checks each arc corner's effective radius against the
// configured radius-to-diameter bounds. The corner radius is estimated
// from the distance between the control point and its adjacent main
// points.
func validateArcRadii(c *Centerline, cfg ValidationConfig) []string {
	var warnings []string
	for i, p := range c.Points {
		if !p.IsControlPoint {
			continue
		}
		if i == 0 || i == len(c.Points)-1 {
			continue
		}
		prev := c.Points[i-1].Pos()
		next := c.Points[i+1].Pos()
		radius := (p.Pos().DistanceTo(prev) + p.Pos().DistanceTo(next)) / 2
		ratio := radius / cfg.DuctDiameter
		if ratio < cfg.MinRadiusRatio {
			warnings = append(warnings, fmt.Sprintf(
				"arc radius ratio %.2f below SMACNA minimum %.2f", ratio, cfg.MinRadiusRatio))
		} else if ratio > cfg.MaxRadiusRatio {
			warnings = append(warnings, fmt.Sprintf(
				"arc radius ratio %.2f above SMACNA maximum %.2f", ratio, cfg.MaxRadiusRatio))
		}
	}
	return warnings
}
