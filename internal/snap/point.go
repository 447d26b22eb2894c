// Package snap implements snap-point generation, priority-weighted snap
// detection, result caching, and magnetic cursor attraction.
package snap

import (
	"github.com/ductline/ductline/backend-go/internal/geom"
)

// PointType classifies a snap target. Lower priority numbers win.
type PointType string

const (
	PointEndpoint     PointType = "endpoint"
	PointIntersection PointType = "intersection"
	PointMidpoint     PointType = "midpoint"
	PointCenterline   PointType = "centerline"
	PointGrid         PointType = "grid"
)

// PriorityFor returns the default numeric priority for a point type.
// Endpoints outrank intersections, which outrank midpoints and
// centerline vertices; grid points always lose to geometry.
func PriorityFor(t PointType) int {
	switch t {
	case PointEndpoint:
		return 1
	case PointIntersection:
		return 2
	case PointMidpoint:
		return 3
	case PointCenterline:
		return 3
	case PointGrid:
		return 4
	default:
		return 5
	}
}

// Point is one candidate snap target, generated from the live model.
// Points are regenerated whenever the underlying element set changes.
type Point struct {
	ID          string       `json:"id"`
	Type        PointType    `json:"type"`
	Position    geom.Point2D `json:"position"`
	Priority    int          `json:"priority"`
	ElementID   string       `json:"elementId"`
	ElementType string       `json:"elementType"`
	IsActive    bool         `json:"isActive"`
}

// Result is the outcome of one snap query. It is ephemeral and never
// persisted.
type Result struct {
	SnapPoint        *Point       `json:"snapPoint"`
	IsSnapped        bool         `json:"isSnapped"`
	Distance         float64      `json:"distance"`
	AdjustedPosition geom.Point2D `json:"adjustedPosition"`
}

// miss returns the no-snap result for a query position.
func miss(pos geom.Point2D) Result {
	return Result{AdjustedPosition: pos}
}
