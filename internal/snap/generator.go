package snap

import (
	"fmt"
	"math"

	"github.com/ductline/ductline/backend-go/internal/document"
	"github.com/ductline/ductline/backend-go/internal/geom"
)

// Generator derives the current snap point set from the live model.
// Points are regenerated wholesale whenever the element set changes; the
// service swaps in the new set and rebuilds its index.
type Generator struct {
	// GridSpacing controls on-demand grid point generation; zero
	// disables grid snapping.
	GridSpacing float64
}

// NewGenerator returns a generator with grid snapping disabled.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate walks the design's element collections and emits snap points
// for room corners and edge midpoints, equipment connection positions,
// centerline vertices and midpoints, and centerline intersections.
func (g *Generator) Generate(d *document.Design) []*Point {
	var points []*Point

	for _, room := range d.Rooms {
		points = append(points, roomPoints(room)...)
	}
	for _, eq := range d.Equipment {
		points = append(points, &Point{
			ID:          fmt.Sprintf("sp-%s-conn", eq.ID),
			Type:        PointEndpoint,
			Position:    eq.Position,
			Priority:    PriorityFor(PointEndpoint),
			ElementID:   eq.ID,
			ElementType: "equipment",
			IsActive:    true,
		})
	}
	for _, cl := range d.Centerlines {
		points = append(points, centerlinePoints(cl.ID, clPositions(d, cl.ID))...)
	}
	points = append(points, intersectionPoints(d)...)
	return points
}

// GenerateGrid emits grid snap points covering the region at the
// configured spacing. Grid points are generated on demand for the
// visible region rather than stored with the model.
func (g *Generator) GenerateGrid(region geom.Rect) []*Point {
	if g.GridSpacing <= 0 {
		return nil
	}
	var points []*Point
	startX := snapDown(region.X, g.GridSpacing)
	startY := snapDown(region.Y, g.GridSpacing)
	for x := startX; x <= region.X+region.Width; x += g.GridSpacing {
		for y := startY; y <= region.Y+region.Height; y += g.GridSpacing {
			points = append(points, &Point{
				ID:          fmt.Sprintf("sp-grid-%g-%g", x, y),
				Type:        PointGrid,
				Position:    geom.Point2D{X: x, Y: y},
				Priority:    PriorityFor(PointGrid),
				ElementType: "grid",
				IsActive:    true,
			})
		}
	}
	return points
}

func roomPoints(room document.Room) []*Point {
	b := room.Bounds
	corners := []geom.Point2D{
		{X: b.X, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y + b.Height},
		{X: b.X, Y: b.Y + b.Height},
	}
	mids := []geom.Point2D{
		{X: b.X + b.Width/2, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y + b.Height/2},
		{X: b.X + b.Width/2, Y: b.Y + b.Height},
		{X: b.X, Y: b.Y + b.Height/2},
	}

	points := make([]*Point, 0, 8)
	for i, c := range corners {
		points = append(points, &Point{
			ID:          fmt.Sprintf("sp-%s-corner%d", room.ID, i),
			Type:        PointEndpoint,
			Position:    c,
			Priority:    PriorityFor(PointEndpoint),
			ElementID:   room.ID,
			ElementType: "room",
			IsActive:    true,
		})
	}
	for i, mp := range mids {
		points = append(points, &Point{
			ID:          fmt.Sprintf("sp-%s-mid%d", room.ID, i),
			Type:        PointMidpoint,
			Position:    mp,
			Priority:    PriorityFor(PointMidpoint),
			ElementID:   room.ID,
			ElementType: "room",
			IsActive:    true,
		})
	}
	return points
}

// centerlinePoints emits endpoints for the run ends, centerline points
// for interior vertices, and midpoints for each segment.
func centerlinePoints(clID string, positions []geom.Point2D) []*Point {
	if len(positions) == 0 {
		return nil
	}
	var points []*Point
	for i, p := range positions {
		t := PointCenterline
		if i == 0 || i == len(positions)-1 {
			t = PointEndpoint
		}
		points = append(points, &Point{
			ID:          fmt.Sprintf("sp-%s-v%d", clID, i),
			Type:        t,
			Position:    p,
			Priority:    PriorityFor(t),
			ElementID:   clID,
			ElementType: "centerline",
			IsActive:    true,
		})
	}
	for i := 1; i < len(positions); i++ {
		points = append(points, &Point{
			ID:          fmt.Sprintf("sp-%s-m%d", clID, i-1),
			Type:        PointMidpoint,
			Position:    positions[i-1].Midpoint(positions[i]),
			Priority:    PriorityFor(PointMidpoint),
			ElementID:   clID,
			ElementType: "centerline",
			IsActive:    true,
		})
	}
	return points
}

// intersectionPoints finds crossings between segments of different
// centerlines. Same-centerline self-intersections are rare in practice
// and skipped.
func intersectionPoints(d *document.Design) []*Point {
	var points []*Point
	n := 0
	for i := 0; i < len(d.Centerlines); i++ {
		a := clPositions(d, d.Centerlines[i].ID)
		for j := i + 1; j < len(d.Centerlines); j++ {
			b := clPositions(d, d.Centerlines[j].ID)
			for ai := 1; ai < len(a); ai++ {
				for bi := 1; bi < len(b); bi++ {
					p, ok := geom.SegmentIntersection(a[ai-1], a[ai], b[bi-1], b[bi])
					if !ok {
						continue
					}
					points = append(points, &Point{
						ID:          fmt.Sprintf("sp-x%d", n),
						Type:        PointIntersection,
						Position:    p,
						Priority:    PriorityFor(PointIntersection),
						ElementID:   d.Centerlines[i].ID,
						ElementType: "intersection",
						IsActive:    true,
					})
					n++
				}
			}
		}
	}
	return points
}

func clPositions(d *document.Design, id string) []geom.Point2D {
	cl := d.FindCenterline(id)
	if cl == nil {
		return nil
	}
	return cl.MainPositions()
}

func snapDown(v, step float64) float64 {
	return step * math.Floor(v/step)
}
