package geom

import (
	"fmt"
	"math"
)

// Point2D is a plain 2D coordinate in world units.
// Equality is exact; proximity checks are threshold-based.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector2 is a 2D direction/displacement.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector3 is a 3D direction, used by duct connection points.
// Z is zero for ductwork generated from a flat centerline drawing.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether p has finite coordinates.
func (p Point2D) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// DistanceTo returns the Euclidean distance to q.
func (p Point2D) DistanceTo(q Point2D) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Add returns p displaced by v.
func (p Point2D) Add(v Vector2) Point2D {
	return Point2D{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the vector from q to p.
func (p Point2D) Sub(q Point2D) Vector2 {
	return Vector2{X: p.X - q.X, Y: p.Y - q.Y}
}

// Lerp interpolates between p and q; t=0 yields p, t=1 yields q.
func (p Point2D) Lerp(q Point2D, t float64) Point2D {
	return Point2D{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// Midpoint returns the point halfway between p and q.
func (p Point2D) Midpoint(q Point2D) Point2D {
	return p.Lerp(q, 0.5)
}

// Length returns the magnitude of v.
func (v Vector2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Scale returns v scaled by s.
func (v Vector2) Scale(s float64) Vector2 {
	return Vector2{X: v.X * s, Y: v.Y * s}
}

// Dot returns the dot product of v and w.
func (v Vector2) Dot(w Vector2) float64 {
	return v.X*w.X + v.Y*w.Y
}

// Normalize returns the unit vector in the direction of v, or the zero
// vector when v has zero length.
func (v Vector2) Normalize() Vector2 {
	l := v.Length()
	if l == 0 {
		return Vector2{}
	}
	return Vector2{X: v.X / l, Y: v.Y / l}
}

// Angle returns the angle of v in degrees, in (-180, 180].
func (v Vector2) Angle() float64 {
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}

// Reverse returns the opposite unit direction.
func (v Vector3) Reverse() Vector3 {
	return Vector3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Direction3 lifts the unit vector from p toward q into 3D.
func Direction3(p, q Point2D) Vector3 {
	d := q.Sub(p).Normalize()
	return Vector3{X: d.X, Y: d.Y}
}

// AngleBetweenDeg returns the unsigned angle in degrees between two
// directions, in [0, 180].
func AngleBetweenDeg(a, b Vector2) float64 {
	la, lb := a.Length(), b.Length()
	if la == 0 || lb == 0 {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// NormalizeAngleDeg maps an angle to [0, 360).
func NormalizeAngleDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// AngleDiffDeg returns the smallest difference between two angles in
// degrees, in [0, 180].
func AngleDiffDeg(a, b float64) float64 {
	d := math.Abs(NormalizeAngleDeg(a) - NormalizeAngleDeg(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Valid reports whether the rect has finite, non-negative dimensions.
func (r Rect) Valid() bool {
	p := Point2D{X: r.X, Y: r.Y}
	return p.Valid() && !math.IsNaN(r.Width) && !math.IsNaN(r.Height) &&
		r.Width >= 0 && r.Height >= 0
}

// IsEmpty reports whether the rect has zero area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the point lies inside or on the rect.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Intersects reports whether two rects overlap (separating axis).
func (r Rect) Intersects(o Rect) bool {
	return !(o.X+o.Width < r.X || o.X > r.X+r.Width ||
		o.Y+o.Height < r.Y || o.Y > r.Y+r.Height)
}

// Union returns the smallest rect covering both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.Width, o.X+o.Width)
	maxY := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Center returns the rect's center point.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Expand returns the rect grown by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
}

// RectAround returns a square rect of half-size d centered on p.
func RectAround(p Point2D, d float64) Rect {
	return Rect{X: p.X - d, Y: p.Y - d, Width: 2 * d, Height: 2 * d}
}

// DistanceToPoint returns the distance from p to the rect, zero when p
// lies inside it.
func (r Rect) DistanceToPoint(p Point2D) float64 {
	dx := math.Max(0, math.Max(r.X-p.X, p.X-(r.X+r.Width)))
	dy := math.Max(0, math.Max(r.Y-p.Y, p.Y-(r.Y+r.Height)))
	return math.Hypot(dx, dy)
}

// ClosestPointOnSegment returns the point on segment ab closest to p,
// together with the parametric position t in [0, 1].
func ClosestPointOnSegment(p, a, b Point2D) (Point2D, float64) {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return a, 0
	}
	t := p.Sub(a).Dot(ab) / lenSq
	t = math.Max(0, math.Min(1, t))
	return a.Lerp(b, t), t
}

// SegmentIntersection returns the intersection point of segments ab and
// cd, or false when they do not cross. Collinear overlaps report no
// intersection.
func SegmentIntersection(a, b, c, d Point2D) (Point2D, bool) {
	r := b.Sub(a)
	s := d.Sub(c)
	denom := r.X*s.Y - r.Y*s.X
	if denom == 0 {
		return Point2D{}, false
	}
	ac := c.Sub(a)
	t := (ac.X*s.Y - ac.Y*s.X) / denom
	u := (ac.X*r.Y - ac.Y*r.X) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point2D{}, false
	}
	return a.Add(r.Scale(t)), true
}

// PolylineLength sums the Euclidean lengths of consecutive segments.
func PolylineLength(pts []Point2D) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += pts[i-1].DistanceTo(pts[i])
	}
	return total
}

// ValidatePoint returns a descriptive error for non-finite coordinates.
func ValidatePoint(p Point2D) error {
	if !p.Valid() {
		return fmt.Errorf("invalid point (%v, %v): coordinates must be finite", p.X, p.Y)
	}
	return nil
}
