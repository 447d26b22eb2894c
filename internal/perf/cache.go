package perf

import (
	"fmt"
	"time"

	"github.com/ductline/ductline/backend-go/internal/snap"
)

// Recommendation is one suggested configuration change.
type Recommendation struct {
	Parameter string `json:"parameter"`
	Current   string `json:"current"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
}

// CacheAnalyzer turns snap cache counters into tuning recommendations
// for the snap configuration.
type CacheAnalyzer struct {
	// MinRequests gates analysis until the cache has seen real traffic.
	MinRequests int64
}

// NewCacheAnalyzer returns an analyzer with the default traffic gate.
func NewCacheAnalyzer() *CacheAnalyzer {
	return &CacheAnalyzer{MinRequests: 100}
}

// Analyze inspects cache counters against the active snap config and
// returns zero or more tuning recommendations.
func (a *CacheAnalyzer) Analyze(stats snap.CacheStats, cfg snap.Config) []Recommendation {
	requests := stats.Hits + stats.Misses
	if requests < a.MinRequests {
		return nil
	}

	var out []Recommendation
	evictionRate := float64(stats.Evictions) / float64(requests)

	if stats.HitRate < 0.3 && evictionRate > 0.2 {
		out = append(out, Recommendation{
			Parameter: "cacheTTL",
			Current:   cfg.CacheTTL.String(),
			Suggested: (cfg.CacheTTL * 2).String(),
			Reason: fmt.Sprintf("hit rate %.0f%% with %.0f%% of lookups evicted; entries expire before reuse",
				stats.HitRate*100, evictionRate*100),
		})
	}
	if stats.HitRate < 0.3 && evictionRate <= 0.2 {
		out = append(out, Recommendation{
			Parameter: "cacheResolution",
			Current:   fmt.Sprintf("%g", cfg.CacheResolution),
			Suggested: fmt.Sprintf("%g", cfg.CacheResolution*2),
			Reason: fmt.Sprintf("hit rate %.0f%% with few expiries; cursor positions rarely quantize to the same key",
				stats.HitRate*100),
		})
	}
	if stats.HitRate > 0.9 && cfg.CacheTTL > time.Second {
		out = append(out, Recommendation{
			Parameter: "cacheTTL",
			Current:   cfg.CacheTTL.String(),
			Suggested: (cfg.CacheTTL / 2).String(),
			Reason:    fmt.Sprintf("hit rate %.0f%%; a shorter TTL would reduce stale results with little cost", stats.HitRate*100),
		})
	}
	return out
}
