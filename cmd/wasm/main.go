//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/ductline/ductline/backend-go/internal/engine"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/snap"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine()

	// Create the engine API object
	ductEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	ductEngine.Set("loadDesign", js.FuncOf(loadDesign))
	ductEngine.Set("loadEmptyDesign", js.FuncOf(loadEmptyDesign))
	ductEngine.Set("loadSampleDesign", js.FuncOf(loadSampleDesign))
	ductEngine.Set("setViewport", js.FuncOf(setViewport))
	ductEngine.Set("setSnapConfig", js.FuncOf(setSnapConfig))
	ductEngine.Set("setSnapEnabled", js.FuncOf(setSnapEnabled))
	ductEngine.Set("pointerMove", js.FuncOf(pointerMove))
	ductEngine.Set("pointerClick", js.FuncOf(pointerClick))
	ductEngine.Set("pointerDoubleClick", js.FuncOf(pointerDoubleClick))
	ductEngine.Set("keyChange", js.FuncOf(keyChange))
	ductEngine.Set("gesture", js.FuncOf(gesture))
	ductEngine.Set("undo", js.FuncOf(undo))
	ductEngine.Set("redo", js.FuncOf(redo))
	ductEngine.Set("cancelDrawing", js.FuncOf(cancelDrawing))
	ductEngine.Set("completeDrawing", js.FuncOf(completeDrawing))
	ductEngine.Set("removeCenterline", js.FuncOf(removeCenterline))
	ductEngine.Set("createBranchPoint", js.FuncOf(createBranchPoint))

	// --- Queries (frontend ← backend) ---
	ductEngine.Set("getDesign", js.FuncOf(getDesign))
	ductEngine.Set("getDrawingState", js.FuncOf(getDrawingState))
	ductEngine.Set("getMetrics", js.FuncOf(getMetrics))
	ductEngine.Set("convertToDuctwork", js.FuncOf(convertToDuctwork))
	ductEngine.Set("getBranchCandidates", js.FuncOf(getBranchCandidates))

	// Register on global scope
	js.Global().Set("ductEngine", ductEngine)

	// Signal that WASM is ready
	js.Global().Set("ductEngineReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func jsonResult(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult(err)
	}
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

func loadDesign(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing design JSON"})
	}
	if err := eng.LoadDesign(args[0].String()); err != nil {
		return errResult(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func loadEmptyDesign(this js.Value, args []js.Value) interface{} {
	projectID, name := "proj_local", "untitled"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		projectID = args[0].String()
	}
	if len(args) > 1 && args[1].Type() == js.TypeString {
		name = args[1].String()
	}
	eng.LoadEmptyDesign(projectID, name)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func loadSampleDesign(this js.Value, args []js.Value) interface{} {
	projectID := "proj_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		projectID = args[0].String()
	}
	eng.LoadSampleDesign(projectID)
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	eng.SetViewport(geom.Viewport{
		OffsetX: args[0].Float(),
		OffsetY: args[1].Float(),
		Scale:   args[2].Float(),
	})
	return nil
}

func setSnapConfig(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var cfg snap.Config
	if err := json.Unmarshal([]byte(args[0].String()), &cfg); err != nil {
		return errResult(err)
	}
	eng.SetSnapConfig(cfg)
	return nil
}

func setSnapEnabled(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetSnapEnabled(args[0].Bool())
	return nil
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	result, err := eng.OnPointerMove(geom.Point2D{X: args[0].Float(), Y: args[1].Float()})
	if err != nil {
		return errResult(err)
	}
	return jsonResult(result)
}

func pointerClick(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	status, err := eng.OnPointerClick(geom.Point2D{X: args[0].Float(), Y: args[1].Float()})
	if err != nil {
		return errResult(err)
	}
	return jsonResult(status)
}

func pointerDoubleClick(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	status, err := eng.OnPointerDoubleClick(geom.Point2D{X: args[0].Float(), Y: args[1].Float()})
	if err != nil {
		return errResult(err)
	}
	return jsonResult(status)
}

func keyChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	eng.OnKeyChange(snap.Modifiers{
		Ctrl:  args[0].Bool(),
		Alt:   args[1].Bool(),
		Shift: args[2].Bool(),
	})
	return nil
}

func gesture(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var g snap.Gesture
	if err := json.Unmarshal([]byte(args[0].String()), &g); err != nil {
		return errResult(err)
	}
	eng.OnGesture(g)
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	status, err := eng.Undo()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(status)
}

func redo(this js.Value, args []js.Value) interface{} {
	status, err := eng.Redo()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(status)
}

func cancelDrawing(this js.Value, args []js.Value) interface{} {
	status, err := eng.CancelDrawing()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(status)
}

func completeDrawing(this js.Value, args []js.Value) interface{} {
	status, err := eng.CompleteDrawing()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(status)
}

func removeCenterline(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.RemoveCenterline(args[0].String()))
}

func createBranchPoint(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf(map[string]interface{}{"error": "expected centerlineId, segmentIndex, t, angleDeg"})
	}
	bp, err := eng.CreateBranchPoint(args[0].String(), args[1].Int(), args[2].Float(), args[3].Float())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(bp)
}

// --- Query Handlers ---

func getDesign(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.DesignJSON())
}

func getDrawingState(this js.Value, args []js.Value) interface{} {
	return jsonResult(eng.DrawingStatus())
}

func getMetrics(this js.Value, args []js.Value) interface{} {
	return jsonResult(eng.Metrics())
}

func convertToDuctwork(this js.Value, args []js.Value) interface{} {
	return jsonResult(eng.ConvertToDuctwork())
}

func getBranchCandidates(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("[]")
	}
	candidates, err := eng.BranchCandidates(args[0].String(), args[1].Float())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(candidates)
}
