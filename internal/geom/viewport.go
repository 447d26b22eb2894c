package geom

// Viewport describes the host canvas transform: world coordinates are
// scaled then offset to produce screen pixels. The engine never renders;
// it only needs the inverse mapping for incoming pointer events.
type Viewport struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Scale   float64 `json:"scale"`
	// Width and Height are the canvas extent in screen pixels, used to
	// bound on-demand grid snap point generation. Zero falls back to a
	// nominal 1920x1080 canvas.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

const (
	defaultCanvasWidth  = 1920.0
	defaultCanvasHeight = 1080.0
)

// ScreenToWorld maps a screen-space point into world units.
// A zero or negative scale is treated as 1 so a malformed transform
// cannot produce infinities.
func (v Viewport) ScreenToWorld(p Point2D) Point2D {
	s := v.Scale
	if s <= 0 {
		s = 1
	}
	return Point2D{X: (p.X - v.OffsetX) / s, Y: (p.Y - v.OffsetY) / s}
}

// WorldToScreen maps a world-space point back to screen pixels.
func (v Viewport) WorldToScreen(p Point2D) Point2D {
	s := v.Scale
	if s <= 0 {
		s = 1
	}
	return Point2D{X: p.X*s + v.OffsetX, Y: p.Y*s + v.OffsetY}
}

// WorldRect returns the world-space region visible through the canvas.
func (v Viewport) WorldRect() Rect {
	w, h := v.Width, v.Height
	if w <= 0 {
		w = defaultCanvasWidth
	}
	if h <= 0 {
		h = defaultCanvasHeight
	}
	tl := v.ScreenToWorld(Point2D{})
	br := v.ScreenToWorld(Point2D{X: w, Y: h})
	return Rect{X: tl.X, Y: tl.Y, Width: br.X - tl.X, Height: br.Y - tl.Y}
}

// WorldDistance converts a pixel distance (thresholds are configured in
// screen pixels) into world units at the current zoom.
func (v Viewport) WorldDistance(px float64) float64 {
	s := v.Scale
	if s <= 0 {
		s = 1
	}
	return px / s
}
