package engine

import (
	"errors"
	"fmt"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/snap"
)

// ErrNotFound is returned when a referenced entity does not exist in
// the document.
var ErrNotFound = errors.New("not found")

// DrawingStatus is the state-machine snapshot returned after every
// drawing command, for live feedback in the host UI.
type DrawingStatus struct {
	State             centerline.DrawingState `json:"state"`
	Centerline        *centerline.Centerline  `json:"centerline,omitempty"`
	PointCount        int                     `json:"pointCount"`
	IsSMACNACompliant bool                    `json:"isSmacnaCompliant"`
	Warnings          []string                `json:"warnings,omitempty"`
}

// status captures the drawing manager's current state.
func (e *Engine) status() DrawingStatus {
	st := DrawingStatus{State: e.drawing.State()}
	if cl := e.drawing.Current(); cl != nil {
		st.Centerline = cl
		st.PointCount = len(cl.MainPoints())
		st.IsSMACNACompliant = cl.IsSMACNACompliant
		st.Warnings = cl.Warnings
	}
	return st
}

// DrawingStatus returns the current drawing state without mutating it.
func (e *Engine) DrawingStatus() DrawingStatus {
	return e.status()
}

// OnPointerMove processes one pointer motion event through the magnetic
// snapping pipeline. It also counts one frame toward the session's
// frame rate sampling.
func (e *Engine) OnPointerMove(screen geom.Point2D) (snap.AttractionResult, error) {
	e.monitor.RecordFrame()
	return e.magnetic.ProcessCursorMovement(screen, e.viewport)
}

// OnPointerClick adds a (snapped) point to the in-progress centerline,
// starting a new one when idle. The click position runs through the
// same attraction pipeline as pointer moves.
func (e *Engine) OnPointerClick(screen geom.Point2D) (DrawingStatus, error) {
	attraction, err := e.magnetic.ProcessCursorMovement(screen, e.viewport)
	if err != nil {
		return e.status(), err
	}
	p := attraction.AttractedPosition

	if e.drawing.State() != centerline.StateDrawing {
		if _, err := e.drawing.StartDrawing(p); err != nil {
			return e.status(), err
		}
		return e.status(), nil
	}
	if err := e.drawing.AddPoint(p); err != nil {
		return e.status(), err
	}
	return e.status(), nil
}

// OnPointerDoubleClick completes the in-progress centerline. The
// double click position itself is not appended; the preceding single
// click already placed it.
func (e *Engine) OnPointerDoubleClick(screen geom.Point2D) (DrawingStatus, error) {
	_ = screen
	return e.CompleteDrawing()
}

// OnKeyChange forwards modifier key state to the snap policy.
func (e *Engine) OnKeyChange(mods snap.Modifiers) {
	e.magnetic.OnKeyChange(mods)
}

// OnGesture forwards a discrete touch gesture to the snap policy.
func (e *Engine) OnGesture(g snap.Gesture) {
	e.magnetic.OnGesture(g)
}

// StartDrawing begins a centerline at an already world-space point,
// bypassing attraction. Host layers that resolve snapping themselves
// use this.
func (e *Engine) StartDrawing(world geom.Point2D) (DrawingStatus, error) {
	_, err := e.drawing.StartDrawing(world)
	return e.status(), err
}

// AddPoint appends a world-space point to the in-progress centerline.
func (e *Engine) AddPoint(world geom.Point2D) (DrawingStatus, error) {
	err := e.drawing.AddPoint(world)
	return e.status(), err
}

// Undo removes the most recently added point.
func (e *Engine) Undo() (DrawingStatus, error) {
	err := e.drawing.Undo()
	return e.status(), err
}

// Redo restores the most recently undone point.
func (e *Engine) Redo() (DrawingStatus, error) {
	err := e.drawing.Redo()
	return e.status(), err
}

// CompleteDrawing finishes the in-progress centerline, appends it to
// the document, and rebuilds the snap point set so the new line is
// immediately snappable.
func (e *Engine) CompleteDrawing() (DrawingStatus, error) {
	cl, err := e.drawing.CompleteDrawing()
	if err != nil {
		return e.status(), err
	}
	e.doc.Centerlines = append(e.doc.Centerlines, cl)
	e.touch()
	e.rebuildSnapPoints()
	return DrawingStatus{
		State:             centerline.StateComplete,
		Centerline:        cl,
		PointCount:        len(cl.MainPoints()),
		IsSMACNACompliant: cl.IsSMACNACompliant,
		Warnings:          cl.Warnings,
	}, nil
}

// CancelDrawing discards the in-progress centerline.
func (e *Engine) CancelDrawing() (DrawingStatus, error) {
	err := e.drawing.CancelDrawing()
	return e.status(), err
}

// ConvertCenterlineToArc converts a completed centerline to arc type.
func (e *Engine) ConvertCenterlineToArc(id string) error {
	cl := e.doc.FindCenterline(id)
	if cl == nil {
		return fmt.Errorf("centerline %s: %w", id, ErrNotFound)
	}
	if err := centerline.ConvertToArc(cl, e.now()); err != nil {
		return err
	}
	e.touch()
	e.rebuildSnapPoints()
	return nil
}

// ConvertCenterlineToSegmented strips arc control points from a
// completed centerline.
func (e *Engine) ConvertCenterlineToSegmented(id string) error {
	cl := e.doc.FindCenterline(id)
	if cl == nil {
		return fmt.Errorf("centerline %s: %w", id, ErrNotFound)
	}
	if err := centerline.ConvertToSegmented(cl, e.now()); err != nil {
		return err
	}
	e.touch()
	e.rebuildSnapPoints()
	return nil
}
