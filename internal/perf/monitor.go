// Package perf samples frame timings, snap query latency, and cache hit
// rates, and turns them into alerts and tuning recommendations.
package perf

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// maxSamples bounds the frame and query sample rings.
const maxSamples = 512

// Thresholds are the alerting limits.
type Thresholds struct {
	MinFrameRate    float64
	MaxQueryLatency time.Duration
	MinCacheHitRate float64
	// MinSamples gates alerting until enough data exists.
	MinSamples int
}

// DefaultThresholds returns limits tuned for interactive drawing.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinFrameRate:    30,
		MaxQueryLatency: 5 * time.Millisecond,
		MinCacheHitRate: 0.5,
		MinSamples:      30,
	}
}

// AlertKind identifies what tripped an alert.
type AlertKind string

const (
	AlertLowFrameRate    AlertKind = "low_frame_rate"
	AlertSlowSnapQueries AlertKind = "slow_snap_queries"
	AlertLowCacheHitRate AlertKind = "low_cache_hit_rate"
)

// Alert is one threshold violation.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	At        time.Time `json:"at"`
}

// Metrics is an aggregated snapshot for the debug overlay.
type Metrics struct {
	FrameRate       float64   `json:"frameRate"`
	FrameTimeP95Ms  float64   `json:"frameTimeP95Ms"`
	SnapQueryCount  int64     `json:"snapQueryCount"`
	SnapQueryMeanMs float64   `json:"snapQueryMeanMs"`
	SnapQueryP95Ms  float64   `json:"snapQueryP95Ms"`
	CacheHitRate    float64   `json:"cacheHitRate"`
	SampledAt       time.Time `json:"sampledAt"`
}

// Monitor accumulates timing samples. It implements the snap package's
// QueryRecorder. Sampling never mutates drawing state.
type Monitor struct {
	thresholds Thresholds

	frameIntervals *ring
	lastFrame      time.Time

	queryMs    *ring
	queryCount int64
	cacheHits  int64

	now func() time.Time
}

// NewMonitor creates a monitor with empty sample rings.
func NewMonitor(thresholds Thresholds) *Monitor {
	return &Monitor{
		thresholds:     thresholds,
		frameIntervals: newRing(maxSamples),
		queryMs:        newRing(maxSamples),
		now:            time.Now,
	}
}

// RecordFrame marks a rendered frame. The interval since the previous
// frame becomes one sample; the first call only seeds the clock.
func (m *Monitor) RecordFrame() {
	t := m.now()
	if !m.lastFrame.IsZero() {
		m.frameIntervals.push(t.Sub(m.lastFrame).Seconds())
	}
	m.lastFrame = t
}

// RecordSnapQuery records one snap lookup's latency and cache outcome.
func (m *Monitor) RecordSnapQuery(elapsed time.Duration, cacheHit bool) {
	m.queryMs.push(float64(elapsed) / float64(time.Millisecond))
	m.queryCount++
	if cacheHit {
		m.cacheHits++
	}
}

// Reset drops all samples and counters.
func (m *Monitor) Reset() {
	m.frameIntervals = newRing(maxSamples)
	m.queryMs = newRing(maxSamples)
	m.lastFrame = time.Time{}
	m.queryCount = 0
	m.cacheHits = 0
}

// Snapshot aggregates the current samples.
func (m *Monitor) Snapshot() Metrics {
	out := Metrics{SnapQueryCount: m.queryCount, SampledAt: m.now()}

	if intervals := m.frameIntervals.sorted(); len(intervals) > 0 {
		meanInterval := stat.Mean(intervals, nil)
		if meanInterval > 0 {
			out.FrameRate = 1 / meanInterval
		}
		out.FrameTimeP95Ms = stat.Quantile(0.95, stat.Empirical, intervals, nil) * 1000
	}
	if queries := m.queryMs.sorted(); len(queries) > 0 {
		out.SnapQueryMeanMs = stat.Mean(queries, nil)
		out.SnapQueryP95Ms = stat.Quantile(0.95, stat.Empirical, queries, nil)
	}
	if m.queryCount > 0 {
		out.CacheHitRate = float64(m.cacheHits) / float64(m.queryCount)
	}
	return out
}

// Alerts evaluates the thresholds against the current snapshot. Each
// metric only alerts once it has MinSamples behind it.
func (m *Monitor) Alerts() []Alert {
	snap := m.Snapshot()
	at := snap.SampledAt
	var out []Alert

	if m.frameIntervals.len() >= m.thresholds.MinSamples && snap.FrameRate < m.thresholds.MinFrameRate {
		out = append(out, Alert{
			Kind:      AlertLowFrameRate,
			Message:   fmt.Sprintf("frame rate %.1f fps below %.0f fps", snap.FrameRate, m.thresholds.MinFrameRate),
			Value:     snap.FrameRate,
			Threshold: m.thresholds.MinFrameRate,
			At:        at,
		})
	}
	limitMs := float64(m.thresholds.MaxQueryLatency) / float64(time.Millisecond)
	if m.queryMs.len() >= m.thresholds.MinSamples && snap.SnapQueryP95Ms > limitMs {
		out = append(out, Alert{
			Kind:      AlertSlowSnapQueries,
			Message:   fmt.Sprintf("snap query p95 %.2fms above %.2fms", snap.SnapQueryP95Ms, limitMs),
			Value:     snap.SnapQueryP95Ms,
			Threshold: limitMs,
			At:        at,
		})
	}
	if m.queryCount >= int64(m.thresholds.MinSamples) && snap.CacheHitRate < m.thresholds.MinCacheHitRate {
		out = append(out, Alert{
			Kind:      AlertLowCacheHitRate,
			Message:   fmt.Sprintf("snap cache hit rate %.0f%% below %.0f%%", snap.CacheHitRate*100, m.thresholds.MinCacheHitRate*100),
			Value:     snap.CacheHitRate,
			Threshold: m.thresholds.MinCacheHitRate,
			At:        at,
		})
	}
	return out
}

// ring is a fixed-capacity sample buffer that overwrites oldest values.
type ring struct {
	data  []float64
	next  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{data: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.data[r.next] = v
	r.next = (r.next + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

func (r *ring) len() int { return r.count }

// sorted returns the live samples in ascending order, as gonum's
// quantile functions require.
func (r *ring) sorted() []float64 {
	out := make([]float64, 0, r.count)
	if r.count == len(r.data) {
		out = append(out, r.data...)
	} else {
		out = append(out, r.data[:r.count]...)
	}
	sort.Float64s(out)
	return out
}
