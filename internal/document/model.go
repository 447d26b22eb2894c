// Package document defines the design document: the live element
// collections a drawing session operates on and the serialized form the
// project layer persists.
package document

import (
	"time"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/ductwork"
	"github.com/ductline/ductline/backend-go/internal/geom"
)

// Room is a drawn room outline. Its corners and edge midpoints become
// snap targets.
type Room struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Bounds geom.Rect `json:"bounds"`
}

// Equipment is a placed HVAC unit (AHU, VAV box, diffuser). Its
// connection position is a high-priority snap target.
type Equipment struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Position geom.Point2D `json:"position"`
	Bounds   geom.Rect    `json:"bounds"`
}

// Design is the full document for one project: the element collections
// the snap generator reads, plus converted ductwork.
type Design struct {
	ProjectID   string                   `json:"projectId"`
	Name        string                   `json:"name"`
	Version     int                      `json:"version"`
	Rooms       []Room                   `json:"rooms"`
	Equipment   []Equipment              `json:"equipment"`
	Centerlines []*centerline.Centerline `json:"centerlines"`
	Segments    []*ductwork.DuctSegment  `json:"segments"`
	Fittings    []*ductwork.DuctFitting  `json:"fittings"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// NewEmptyDesign creates an empty design for a new project.
func NewEmptyDesign(projectID, name string, now time.Time) *Design {
	return &Design{
		ProjectID:   projectID,
		Name:        name,
		Version:     1,
		Rooms:       []Room{},
		Equipment:   []Equipment{},
		Centerlines: []*centerline.Centerline{},
		Segments:    []*ductwork.DuctSegment{},
		Fittings:    []*ductwork.DuctFitting{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// RemoveCenterline deletes a centerline by id and reports whether it was
// present.
func (d *Design) RemoveCenterline(id string) bool {
	for i, cl := range d.Centerlines {
		if cl.ID == id {
			d.Centerlines = append(d.Centerlines[:i], d.Centerlines[i+1:]...)
			return true
		}
	}
	return false
}

// FindCenterline returns the centerline with the given id, or nil.
func (d *Design) FindCenterline(id string) *centerline.Centerline {
	for _, cl := range d.Centerlines {
		if cl.ID == id {
			return cl
		}
	}
	return nil
}
