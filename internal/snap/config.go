package snap

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ModifierBehavior selects what a held modifier key does to snapping.
type ModifierBehavior string

const (
	// ModifierDisable turns snapping off while held.
	ModifierDisable ModifierBehavior = "disable"
	// ModifierOverride forces full-strength snapping while held.
	ModifierOverride ModifierBehavior = "override"
	// ModifierPrecision damps attraction strength while held.
	ModifierPrecision ModifierBehavior = "precision"
)

// ModifierConfig maps each modifier key to its behavior.
type ModifierConfig struct {
	Ctrl  ModifierBehavior `json:"ctrl"`
	Alt   ModifierBehavior `json:"alt"`
	Shift ModifierBehavior `json:"shift"`
}

// Config is the snap subsystem configuration. Thresholds are in screen
// pixels; callers convert them to world units through the viewport.
type Config struct {
	Enabled bool `json:"enabled"`

	// SnapThreshold is the hard radius inside which a query snaps.
	SnapThreshold float64 `json:"snapThreshold"`
	// MagneticThreshold is the looser attraction radius; between it and
	// the snap threshold the cursor is pulled without fully snapping.
	MagneticThreshold float64 `json:"magneticThreshold"`
	// AttractionStrength is the maximum attraction applied at the snap
	// threshold boundary, in [0, 1].
	AttractionStrength float64 `json:"attractionStrength"`
	// SmoothingFactor exponentially smooths the attracted position
	// against recent history; 0 disables smoothing.
	SmoothingFactor float64 `json:"smoothingFactor"`

	// TieEpsilon is the distance window inside which a higher-priority
	// point beats a nearer lower-priority one.
	TieEpsilon float64 `json:"tieEpsilon"`
	// PrecisionDamping multiplies attraction strength when the precision
	// modifier is held.
	PrecisionDamping float64 `json:"precisionDamping"`

	// CacheResolution quantizes query positions for cache keys.
	CacheResolution float64 `json:"cacheResolution"`
	// CacheTTL bounds how long a cached result is served.
	CacheTTL time.Duration `json:"cacheTtl"`

	// EnabledTools lists drawing tools for which snapping is active.
	EnabledTools []string `json:"enabledTools"`

	ModifierBehavior ModifierConfig `json:"modifierBehavior"`
}

// DefaultConfig returns the interactive drawing defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		SnapThreshold:      15,
		MagneticThreshold:  40,
		AttractionStrength: 1.0,
		SmoothingFactor:    0.5,
		TieEpsilon:         5,
		PrecisionDamping:   0.3,
		CacheResolution:    1,
		CacheTTL:           2 * time.Second,
		EnabledTools:       []string{"centerline", "branch"},
		ModifierBehavior: ModifierConfig{
			Ctrl:  ModifierDisable,
			Alt:   ModifierPrecision,
			Shift: ModifierOverride,
		},
	}
}

// ToolEnabled reports whether snapping applies to the given tool.
func (c Config) ToolEnabled(tool string) bool {
	for _, t := range c.EnabledTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Fingerprint summarizes the fields that affect query results, for use
// in cache keys: a config change must never serve stale results.
func (c Config) Fingerprint() string {
	tools := append([]string(nil), c.EnabledTools...)
	sort.Strings(tools)
	return fmt.Sprintf("%t|%g|%g|%g|%s",
		c.Enabled, c.SnapThreshold, c.MagneticThreshold, c.TieEpsilon,
		strings.Join(tools, ","))
}
