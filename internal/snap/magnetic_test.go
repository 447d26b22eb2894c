package snap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

// identity viewport: screen == world, so pixel thresholds apply directly.
var identityVP = geom.Viewport{Scale: 1}

func newTestController(points ...*Point) (*MagneticController, *Service) {
	svc := newTestService(points...)
	cfg := svc.Config()
	cfg.SmoothingFactor = 0 // deterministic positions in tests
	svc.SetConfig(cfg)
	if err := svc.SetPoints(points); err != nil {
		panic(err)
	}
	return NewMagneticController(svc), svc
}

func TestFullSnapInsideSnapThreshold(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 105, Y: 105}, identityVP)
	require.NoError(t, err)
	assert.True(t, r.IsAttracted)
	assert.Equal(t, 1.0, r.AttractionStrength)
	assert.Equal(t, geom.Point2D{X: 100, Y: 100}, r.AttractedPosition)
	assert.Equal(t, geom.Point2D{X: 105, Y: 105}, r.OriginalPosition)
	require.NotNil(t, r.TargetSnapPoint)
	assert.Equal(t, "sp", r.TargetSnapPoint.ID)
}

func TestAttractionRampBetweenThresholds(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	// Distance 27.5 is halfway between snap (15) and magnetic (40).
	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 127.5, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.True(t, r.IsAttracted)
	assert.InDelta(t, 0.5, r.AttractionStrength, 1e-9)
	// Pulled halfway toward the target.
	assert.InDelta(t, 113.75, r.AttractedPosition.X, 1e-9)
}

func TestNoAttractionBeyondMagneticThreshold(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 145, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.False(t, r.IsAttracted)
	assert.Equal(t, geom.Point2D{X: 145, Y: 100}, r.AttractedPosition)
}

func TestDisablingModifierSuppressesSnap(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	mc.OnKeyChange(Modifiers{Ctrl: true})
	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 102, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.False(t, r.IsAttracted)
	assert.Equal(t, geom.Point2D{X: 102, Y: 100}, r.AttractedPosition)

	mc.OnKeyChange(Modifiers{})
	r, err = mc.ProcessCursorMovement(geom.Point2D{X: 102, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.True(t, r.IsAttracted)
}

func TestPrecisionModifierDampsStrength(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	mc.OnKeyChange(Modifiers{Alt: true})
	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 105, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.True(t, r.IsAttracted)
	// Full snap strength 1.0 damped by the 0.3 precision factor.
	assert.InDelta(t, 0.3, r.AttractionStrength, 1e-9)
	assert.InDelta(t, 103.5, r.AttractedPosition.X, 1e-9)
}

func TestDisabledToolPassesThrough(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	mc.SetActiveTool("pan")
	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 100, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.False(t, r.IsAttracted)
}

func TestLongPressOverrideExpires(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	current := time.Now()
	mc.now = func() time.Time { return current }

	mc.OnGesture(Gesture{Type: GestureLongPress, Position: geom.Point2D{X: 100, Y: 100}})
	assert.True(t, mc.OverrideActive())

	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 100, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.False(t, r.IsAttracted, "override suspends snapping")

	// After the window passes, behavior reverts as if never activated.
	current = current.Add(snapOverrideWindow + time.Millisecond)
	assert.False(t, mc.OverrideActive())

	r, err = mc.ProcessCursorMovement(geom.Point2D{X: 100, Y: 100}, identityVP)
	require.NoError(t, err)
	assert.True(t, r.IsAttracted)
}

func TestThreeFingerTapTogglesService(t *testing.T) {
	t.Parallel()
	mc, svc := newTestController(endpointAt("sp", 100, 100))

	mc.OnGesture(Gesture{Type: GestureThreeFingerTap})
	assert.False(t, svc.Enabled())
	mc.OnGesture(Gesture{Type: GestureThreeFingerTap})
	assert.True(t, svc.Enabled())
}

func TestViewportScaleConvertsThresholds(t *testing.T) {
	t.Parallel()
	mc, _ := newTestController(endpointAt("sp", 100, 100))

	// At 2x zoom a 15px snap threshold covers only 7.5 world units, so a
	// cursor 10 world units away attracts without fully snapping.
	vp := geom.Viewport{Scale: 2}
	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 220, Y: 200}, vp)
	require.NoError(t, err)
	assert.Equal(t, geom.Point2D{X: 110, Y: 100}, r.OriginalPosition)
	assert.True(t, r.IsAttracted)
	assert.Less(t, r.AttractionStrength, 1.0)
	assert.Greater(t, r.AttractionStrength, 0.0)
}

func TestSmoothingBlendsAgainstHistory(t *testing.T) {
	t.Parallel()
	svc := newTestService(endpointAt("sp", 100, 100))
	mc := NewMagneticController(svc)

	// Warm the history away from the target, then jump next to it.
	_, err := mc.ProcessCursorMovement(geom.Point2D{X: 200, Y: 100}, identityVP)
	require.NoError(t, err)
	r, err := mc.ProcessCursorMovement(geom.Point2D{X: 101, Y: 100}, identityVP)
	require.NoError(t, err)

	assert.True(t, r.IsAttracted)
	// With smoothing on, the reported position lags between the history
	// and the snap target instead of jumping straight to it.
	assert.Greater(t, r.AttractedPosition.X, 100.0)
	assert.Less(t, r.AttractedPosition.X, 200.0)
}
