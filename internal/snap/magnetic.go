package snap

import (
	"time"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

// AttractionResult is returned for every processed pointer move and
// drives live cursor feedback in the host UI.
type AttractionResult struct {
	OriginalPosition   geom.Point2D `json:"originalPosition"`
	AttractedPosition  geom.Point2D `json:"attractedPosition"`
	IsAttracted        bool         `json:"isAttracted"`
	AttractionStrength float64      `json:"attractionStrength"`
	TargetSnapPoint    *Point       `json:"targetSnapPoint,omitempty"`
}

// historyLen bounds the rolling position history used for smoothing.
const historyLen = 5

// snapOverrideWindow is how long a long-press suspends snapping before
// reverting as if never activated.
const snapOverrideWindow = 3 * time.Second

// MagneticController turns raw pointer motion into an attracted,
// smoothed cursor position. It owns the modifier-key and touch-override
// policy; the detection service stays policy-free.
type MagneticController struct {
	svc  *Service
	tool string

	modifiers Modifiers
	lastWorld geom.Point2D
	history   []geom.Point2D

	overrideUntil time.Time

	now func() time.Time
}

// NewMagneticController wires a controller to a detection service.
func NewMagneticController(svc *Service) *MagneticController {
	return &MagneticController{
		svc:  svc,
		tool: "centerline",
		now:  time.Now,
	}
}

// SetActiveTool records the drawing tool in use; snapping only applies
// to tools enabled in the configuration.
func (m *MagneticController) SetActiveTool(tool string) {
	m.tool = tool
}

// ActiveTool returns the current drawing tool.
func (m *MagneticController) ActiveTool() string {
	return m.tool
}

// OnKeyChange updates the modifier-key state.
func (m *MagneticController) OnKeyChange(mods Modifiers) {
	m.modifiers = mods
}

// OnGesture applies the touch policy: a long-press arms a temporary
// snap override that expires on a wall-clock timer; a three-finger tap
// toggles the whole snap service. Other gestures are drawing-level and
// handled by the engine.
func (m *MagneticController) OnGesture(g Gesture) {
	switch g.Type {
	case GestureLongPress:
		m.overrideUntil = m.now().Add(snapOverrideWindow)
	case GestureThreeFingerTap:
		m.svc.SetEnabled(!m.svc.Enabled())
	}
}

// OverrideActive reports whether the touch snap override is in effect.
func (m *MagneticController) OverrideActive() bool {
	return m.now().Before(m.overrideUntil)
}

// ProcessCursorMovement converts a raw screen position to world space,
// applies magnetic attraction toward the best snap target, and smooths
// the result against recent history.
func (m *MagneticController) ProcessCursorMovement(screen geom.Point2D, vp geom.Viewport) (AttractionResult, error) {
	world := vp.ScreenToWorld(screen)
	passthrough := AttractionResult{
		OriginalPosition:  world,
		AttractedPosition: world,
	}

	if err := geom.ValidatePoint(world); err != nil {
		return passthrough, err
	}

	cfg := m.svc.Config()
	if !m.svc.Enabled() || !cfg.ToolEnabled(m.tool) || m.OverrideActive() {
		m.pushHistory(world)
		m.lastWorld = world
		return passthrough, nil
	}

	behavior, active := m.modifierBehavior(cfg)
	if active && behavior == ModifierDisable {
		m.pushHistory(world)
		m.lastWorld = world
		return passthrough, nil
	}

	// Thresholds are configured in pixels; convert at the current zoom.
	snapT := vp.WorldDistance(cfg.SnapThreshold)
	magT := vp.WorldDistance(cfg.MagneticThreshold)

	result, err := m.svc.FindClosestSnapPoint(world, QueryOptions{
		SearchRadius:  magT,
		SnapThreshold: magT, // attraction considers everything in the outer radius
	})
	if err != nil {
		return passthrough, err
	}
	if result.SnapPoint == nil {
		m.pushHistory(world)
		m.lastWorld = world
		return passthrough, nil
	}

	strength := m.strengthFor(result.Distance, snapT, magT, cfg)
	if active {
		switch behavior {
		case ModifierPrecision:
			strength *= cfg.PrecisionDamping
		case ModifierOverride:
			strength = 1
		}
	}
	if strength <= 0 {
		m.pushHistory(world)
		m.lastWorld = world
		return passthrough, nil
	}

	attracted := world.Lerp(result.SnapPoint.Position, strength)
	smoothed := m.smooth(attracted, cfg.SmoothingFactor)
	m.pushHistory(smoothed)
	m.lastWorld = smoothed

	return AttractionResult{
		OriginalPosition:   world,
		AttractedPosition:  smoothed,
		IsAttracted:        true,
		AttractionStrength: strength,
		TargetSnapPoint:    result.SnapPoint,
	}, nil
}

// strengthFor ramps attraction from 0 at the magnetic radius to the
// configured maximum at the snap threshold, and pins full snap inside
// the snap threshold.
func (m *MagneticController) strengthFor(dist, snapT, magT float64, cfg Config) float64 {
	switch {
	case dist <= snapT:
		return 1
	case dist >= magT || magT <= snapT:
		return 0
	default:
		ramp := 1 - (dist-snapT)/(magT-snapT)
		return ramp * cfg.AttractionStrength
	}
}

// modifierBehavior resolves the highest-precedence active modifier:
// disable beats precision beats override.
func (m *MagneticController) modifierBehavior(cfg Config) (ModifierBehavior, bool) {
	type held struct {
		down     bool
		behavior ModifierBehavior
	}
	all := []held{
		{m.modifiers.Ctrl, cfg.ModifierBehavior.Ctrl},
		{m.modifiers.Alt, cfg.ModifierBehavior.Alt},
		{m.modifiers.Shift, cfg.ModifierBehavior.Shift},
	}
	var found ModifierBehavior
	ok := false
	for _, h := range all {
		if !h.down {
			continue
		}
		switch h.behavior {
		case ModifierDisable:
			return ModifierDisable, true
		case ModifierPrecision:
			found, ok = ModifierPrecision, true
		case ModifierOverride:
			if found != ModifierPrecision {
				found, ok = ModifierOverride, true
			}
		}
	}
	return found, ok
}

// smooth exponentially blends the target position with the most recent
// smoothed position. Factor 0 disables smoothing entirely.
func (m *MagneticController) smooth(target geom.Point2D, factor float64) geom.Point2D {
	if factor <= 0 || len(m.history) == 0 {
		return target
	}
	prev := m.history[len(m.history)-1]
	return prev.Lerp(target, 1-clamp01(factor)*0.5)
}

func (m *MagneticController) pushHistory(p geom.Point2D) {
	m.history = append(m.history, p)
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
