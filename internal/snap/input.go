package snap

import (
	"github.com/ductline/ductline/backend-go/internal/geom"
)

// Modifiers is the modifier-key state supplied by the host layer with
// each input event.
type Modifiers struct {
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Shift bool `json:"shift"`
}

// GestureType enumerates the touch gestures the engine understands.
// Gestures arrive through a single typed dispatch rather than a
// stringly-typed event bus.
type GestureType string

const (
	GestureTap            GestureType = "tap"
	GestureDoubleTap      GestureType = "doubleTap"
	GestureLongPress      GestureType = "longPress"
	GestureTwoFingerPan   GestureType = "twoFingerPan"
	GestureSwipeLeft      GestureType = "swipeLeft"
	GestureSwipeRight     GestureType = "swipeRight"
	GestureThreeFingerTap GestureType = "threeFingerTap"
)

// Gesture is one discrete touch gesture event.
type Gesture struct {
	Type     GestureType  `json:"type"`
	Position geom.Point2D `json:"position"`
	Delta    geom.Vector2 `json:"delta,omitempty"`
	Velocity float64      `json:"velocity,omitempty"`
	Scale    float64      `json:"scale,omitempty"`
}
