package document

import (
	"time"

	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

func rect(x, y, w, h float64) geom.Rect {
	return geom.Rect{X: x, Y: y, Width: w, Height: h}
}

func point(x, y float64) geom.Point2D {
	return geom.Point2D{X: x, Y: y}
}

// NewSampleDesign builds a small two-room layout with an air handler,
// used by the playground project and in tests.
func NewSampleDesign(projectID string) *Design {
	now := time.Now().UTC()
	d := NewEmptyDesign(projectID, "Sample Layout", now)

	d.Rooms = []Room{
		{
			ID:     typeid.NewRoomID(),
			Name:   "Office 101",
			Bounds: rect(0, 0, 240, 180),
		},
		{
			ID:     typeid.NewRoomID(),
			Name:   "Office 102",
			Bounds: rect(260, 0, 240, 180),
		},
	}
	d.Equipment = []Equipment{
		{
			ID:       typeid.NewEquipmentID(),
			Name:     "AHU-1",
			Kind:     "air_handler",
			Position: point(120, 220),
			Bounds:   rect(100, 200, 40, 40),
		},
	}
	return d
}
