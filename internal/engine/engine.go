// Package engine is the drawing session façade. One Engine owns one
// design document plus the snap, drawing, branching, conversion, and
// performance subsystems operating on it. Engines are explicitly
// constructed so multiple sessions can coexist in one process.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ductline/ductline/backend-go/internal/branch"
	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/document"
	"github.com/ductline/ductline/backend-go/internal/ductwork"
	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/perf"
	"github.com/ductline/ductline/backend-go/internal/snap"
)

// Engine processes input events and commands for one drawing session
// and answers queries about its state. All mutation is synchronous; the
// engine is single-threaded by contract and callers serialize access.
type Engine struct {
	doc      *document.Design
	viewport geom.Viewport

	generator *snap.Generator
	snapSvc   *snap.Service
	magnetic  *snap.MagneticController
	drawing   *centerline.DrawingManager
	branches  *branch.Manager
	analyzer  *branch.Analyzer
	converter *ductwork.Converter

	monitor       *perf.Monitor
	cacheAnalyzer *perf.CacheAnalyzer

	now func() time.Time
}

// NewEngine creates an engine with default configuration and an empty
// design.
func NewEngine() *Engine {
	svc := snap.NewService(defaultWorldBounds, snap.DefaultConfig())
	monitor := perf.NewMonitor(perf.DefaultThresholds())
	svc.SetRecorder(monitor)

	e := &Engine{
		generator:     snap.NewGenerator(),
		snapSvc:       svc,
		magnetic:      snap.NewMagneticController(svc),
		drawing:       centerline.NewDrawingManager(centerline.DefaultValidationConfig()),
		branches:      branch.NewManager(branch.DefaultConfig()),
		analyzer:      branch.NewAnalyzer(branch.DefaultAnalyzerConfig()),
		converter:     ductwork.NewConverter(ductwork.DefaultConverterConfig()),
		monitor:       monitor,
		cacheAnalyzer: perf.NewCacheAnalyzer(),
		now:           time.Now,
	}
	e.viewport = geom.Viewport{Scale: 1}
	e.LoadEmptyDesign("", "untitled")
	return e
}

var defaultWorldBounds = geom.Rect{X: -10000, Y: -10000, Width: 20000, Height: 20000}

// --- Commands (host → engine) ---

// LoadDesign replaces the document with one parsed from JSON.
func (e *Engine) LoadDesign(jsonData string) error {
	var doc document.Design
	if err := json.Unmarshal([]byte(jsonData), &doc); err != nil {
		return fmt.Errorf("parse design: %w", err)
	}
	e.doc = &doc
	e.resetSession()
	return nil
}

// LoadEmptyDesign starts a fresh document for a project.
func (e *Engine) LoadEmptyDesign(projectID, name string) {
	e.doc = document.NewEmptyDesign(projectID, name, e.now())
	e.resetSession()
}

// LoadSampleDesign loads the built-in sample document.
func (e *Engine) LoadSampleDesign(projectID string) {
	e.doc = document.NewSampleDesign(projectID)
	e.resetSession()
}

// resetSession clears transient drawing state after a document swap.
func (e *Engine) resetSession() {
	if e.drawing.State() == centerline.StateDrawing {
		_ = e.drawing.CancelDrawing()
	}
	e.branches = branch.NewManager(branch.DefaultConfig())
	e.analyzer.ClearCache()
	e.rebuildSnapPoints()
}

// SetViewport records the screen-to-world transform used for all
// subsequent pointer events. With grid snapping on, a changed viewport
// regenerates grid points for the newly visible region.
func (e *Engine) SetViewport(vp geom.Viewport) {
	if vp == e.viewport {
		return
	}
	e.viewport = vp
	if e.generator.GridSpacing > 0 {
		e.rebuildSnapPoints()
	}
}

// SetGridSpacing enables grid snap points at the given spacing in world
// units; zero or negative disables them.
func (e *Engine) SetGridSpacing(spacing float64) {
	e.generator.GridSpacing = spacing
	e.rebuildSnapPoints()
}

// SetSnapConfig replaces the snap configuration; the result cache is
// reset as a side effect.
func (e *Engine) SetSnapConfig(cfg snap.Config) {
	e.snapSvc.SetConfig(cfg)
}

// SetSnapEnabled toggles snapping without touching the rest of the
// configuration.
func (e *Engine) SetSnapEnabled(enabled bool) {
	e.snapSvc.SetEnabled(enabled)
}

// SetActiveTool records the drawing tool for snap-eligibility checks.
func (e *Engine) SetActiveTool(tool string) {
	e.magnetic.SetActiveTool(tool)
}

// AddRoom appends a room and rebuilds the snap point set.
func (e *Engine) AddRoom(r document.Room) {
	e.doc.Rooms = append(e.doc.Rooms, r)
	e.touch()
	e.rebuildSnapPoints()
}

// AddEquipment appends an equipment item and rebuilds the snap point
// set.
func (e *Engine) AddEquipment(eq document.Equipment) {
	e.doc.Equipment = append(e.doc.Equipment, eq)
	e.touch()
	e.rebuildSnapPoints()
}

// RemoveCenterline deletes a centerline, cascades the delete to its
// branch points, and rebuilds the snap point set. It reports whether
// the centerline existed.
func (e *Engine) RemoveCenterline(id string) bool {
	if !e.doc.RemoveCenterline(id) {
		return false
	}
	e.branches.RemoveForCenterline(id)
	e.touch()
	e.rebuildSnapPoints()
	return true
}

// touch stamps the document as modified.
func (e *Engine) touch() {
	e.doc.UpdatedAt = e.now()
}

// rebuildSnapPoints regenerates snap points from the element
// collections, plus grid points for the visible region when grid
// snapping is on, and swaps them into the detection service. The
// service clears its cache before rebuilding the index, preserving the
// model-cache-index ordering.
func (e *Engine) rebuildSnapPoints() {
	points := e.generator.Generate(e.doc)
	points = append(points, e.generator.GenerateGrid(e.viewport.WorldRect())...)
	if err := e.snapSvc.SetPoints(points); err != nil {
		slog.Warn("snap index rebuild incomplete", "project", e.doc.ProjectID, "error", err)
	}
}

// --- Queries (engine → host) ---

// Design returns the live document. Callers must not mutate it.
func (e *Engine) Design() *document.Design {
	return e.doc
}

// DesignJSON returns the full document as JSON.
func (e *Engine) DesignJSON() string {
	data, _ := json.Marshal(e.doc)
	return string(data)
}

// SnapConfig returns the active snap configuration.
func (e *Engine) SnapConfig() snap.Config {
	return e.snapSvc.Config()
}

// Metrics aggregates the session's performance counters, alerts, and
// cache tuning recommendations.
type Metrics struct {
	Perf            perf.Metrics          `json:"perf"`
	Alerts          []perf.Alert          `json:"alerts,omitempty"`
	Cache           snap.CacheStats       `json:"cache"`
	SnapPointCount  int                   `json:"snapPointCount"`
	Recommendations []perf.Recommendation `json:"recommendations,omitempty"`
}

// Metrics returns the aggregated performance snapshot.
func (e *Engine) Metrics() Metrics {
	cacheStats := e.snapSvc.CacheStats()
	return Metrics{
		Perf:            e.monitor.Snapshot(),
		Alerts:          e.monitor.Alerts(),
		Cache:           cacheStats,
		SnapPointCount:  e.snapSvc.PointCount(),
		Recommendations: e.cacheAnalyzer.Analyze(cacheStats, e.snapSvc.Config()),
	}
}

// --- Branching and conversion ---

// BranchCandidates samples valid branch locations along a centerline.
func (e *Engine) BranchCandidates(centerlineID string, minSpacing float64) ([]branch.Candidate, error) {
	cl := e.doc.FindCenterline(centerlineID)
	if cl == nil {
		return nil, fmt.Errorf("centerline %s: %w", centerlineID, ErrNotFound)
	}
	return e.branches.FindValidBranchLocations(cl, minSpacing), nil
}

// CreateBranchPoint validates and registers a branch on a centerline.
func (e *Engine) CreateBranchPoint(centerlineID string, segmentIndex int, t, angleDeg float64) (*branch.BranchPoint, error) {
	cl := e.doc.FindCenterline(centerlineID)
	if cl == nil {
		return nil, fmt.Errorf("centerline %s: %w", centerlineID, ErrNotFound)
	}
	return e.branches.CreateBranchPoint(cl, segmentIndex, t, angleDeg)
}

// BranchPoints returns the live branch points.
func (e *Engine) BranchPoints() []*branch.BranchPoint {
	return e.branches.Points()
}

// AnalyzeIntersection runs the complex fitting analyzer over a junction
// of a main centerline and 2+ branch centerlines.
func (e *Engine) AnalyzeIntersection(mainID string, branchIDs []string, point geom.Point2D, req branch.Requirements) ([]*branch.Solution, error) {
	main := e.doc.FindCenterline(mainID)
	if main == nil {
		return nil, fmt.Errorf("centerline %s: %w", mainID, ErrNotFound)
	}
	x := branch.Intersection{Main: main, Point: point, Requirements: req}
	for _, id := range branchIDs {
		cl := e.doc.FindCenterline(id)
		if cl == nil {
			return nil, fmt.Errorf("centerline %s: %w", id, ErrNotFound)
		}
		x.Branches = append(x.Branches, cl)
	}
	return e.analyzer.Analyze(x)
}

// ValidateSolution re-checks a chosen solution against requirements.
func (e *Engine) ValidateSolution(s *branch.Solution, req branch.Requirements) branch.ValidationReport {
	return e.analyzer.ValidateSolution(s, req)
}

// ConvertToDuctwork converts every completed centerline plus the valid
// branch points into duct segments and fittings. On success the
// segments and fittings replace the document's converted ductwork.
func (e *Engine) ConvertToDuctwork() ductwork.ConversionResult {
	var completed []*centerline.Centerline
	for _, cl := range e.doc.Centerlines {
		if cl.IsComplete {
			completed = append(completed, cl)
		}
	}

	var insertions []ductwork.BranchInsertion
	for _, bp := range e.branches.Points() {
		if !bp.IsValidLocation {
			continue
		}
		insertions = append(insertions, ductwork.BranchInsertion{
			Position:     bp.Position,
			CenterlineID: bp.ParentCenterlineID,
			Fitting:      bp.SuggestedFitting,
			AngleDeg:     bp.AngleDeg,
		})
	}

	result := e.converter.Convert(completed, insertions)
	if result.Success {
		e.doc.Segments = result.DuctSegments
		e.doc.Fittings = result.Fittings
		e.doc.Version++
		e.touch()
	}
	return result
}
