package snap

import (
	"fmt"
	"sort"
	"time"

	"github.com/ductline/ductline/backend-go/internal/geom"
	"github.com/ductline/ductline/backend-go/internal/spatial"
)

// pointBoundsRadius inflates zero-area snap points into indexable bounds.
const pointBoundsRadius = 0.5

// QueryOptions are per-call overrides for FindClosestSnapPoint.
type QueryOptions struct {
	// ExcludeTypes removes candidate types from consideration.
	ExcludeTypes []PointType
	// Center and Radius restrict candidates to a circular region when
	// Radius is positive.
	Center geom.Point2D
	Radius float64
	// SnapThreshold and SearchRadius override the configured thresholds
	// (already converted to world units by the caller) when positive.
	SnapThreshold float64
	SearchRadius  float64
}

// fingerprint folds the options into a cache key component.
func (o QueryOptions) fingerprint() string {
	types := make([]string, 0, len(o.ExcludeTypes))
	for _, t := range o.ExcludeTypes {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return fmt.Sprintf("%v|%g,%g,%g|%g|%g",
		types, o.Center.X, o.Center.Y, o.Radius, o.SnapThreshold, o.SearchRadius)
}

// QueryRecorder receives per-query timings; the perf monitor implements
// it. A nil recorder is valid.
type QueryRecorder interface {
	RecordSnapQuery(elapsed time.Duration, cacheHit bool)
}

// Service resolves cursor positions to snap results under the
// priority/threshold policy. It owns the spatial index over the current
// snap point set and the result cache.
type Service struct {
	cfg      Config
	enabled  bool
	index    *spatial.Index
	cache    *Cache
	points   map[string]*Point
	recorder QueryRecorder

	now func() time.Time
}

// NewService creates a detection service over the given world bounds.
func NewService(worldBounds geom.Rect, cfg Config) *Service {
	return &Service{
		cfg:     cfg,
		enabled: cfg.Enabled,
		index:   spatial.NewIndex(worldBounds, spatial.DefaultConfig()),
		cache:   NewCache(cfg.CacheResolution, cfg.CacheTTL),
		points:  make(map[string]*Point),
		now:     time.Now,
	}
}

// SetRecorder attaches a perf recorder to the service.
func (s *Service) SetRecorder(r QueryRecorder) {
	s.recorder = r
}

// SetEnabled toggles the whole service. While disabled every query
// returns an unsnapped result without consulting the index.
func (s *Service) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// Enabled reports whether the service answers queries.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Config returns the active configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// SetConfig replaces the configuration. The cache is cleared because the
// fingerprint changes with it.
func (s *Service) SetConfig(cfg Config) {
	s.cfg = cfg
	s.enabled = cfg.Enabled
	s.cache = NewCache(cfg.CacheResolution, cfg.CacheTTL)
}

// SetPoints replaces the entire snap point set: the previous index is
// discarded, the cache cleared, and a fresh index built.
func (s *Service) SetPoints(points []*Point) error {
	bounds := s.worldBoundsFor(points)
	index := spatial.NewIndex(bounds, spatial.DefaultConfig())
	byID := make(map[string]*Point, len(points))
	for _, p := range points {
		if err := geom.ValidatePoint(p.Position); err != nil {
			return fmt.Errorf("snap point %s: %w", p.ID, err)
		}
		byID[p.ID] = p
		if err := index.Insert(p.ID, geom.RectAround(p.Position, pointBoundsRadius), p); err != nil {
			return fmt.Errorf("index snap point %s: %w", p.ID, err)
		}
	}
	s.points = byID
	s.cache.Clear()
	s.index = index
	return nil
}

// AddPoint inserts or replaces one snap point, invalidating the cache
// region around it before patching the index.
func (s *Service) AddPoint(p *Point) error {
	if err := geom.ValidatePoint(p.Position); err != nil {
		return fmt.Errorf("snap point %s: %w", p.ID, err)
	}
	if old, ok := s.points[p.ID]; ok {
		s.cache.InvalidateRegion(geom.RectAround(old.Position, s.cfg.MagneticThreshold))
	}
	s.points[p.ID] = p
	s.cache.InvalidateRegion(geom.RectAround(p.Position, s.cfg.MagneticThreshold))
	return s.index.Insert(p.ID, geom.RectAround(p.Position, pointBoundsRadius), p)
}

// RemovePoint deletes one snap point and invalidates its cache region.
func (s *Service) RemovePoint(id string) error {
	p, ok := s.points[id]
	if !ok {
		return fmt.Errorf("snap point %s: %w", id, spatial.ErrNotFound)
	}
	delete(s.points, id)
	s.cache.InvalidateRegion(geom.RectAround(p.Position, s.cfg.MagneticThreshold))
	return s.index.Remove(id)
}

// PointCount returns the number of live snap points.
func (s *Service) PointCount() int {
	return len(s.points)
}

// CacheStats exposes cache counters for the perf analyzer.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// IndexStats exposes index shape for the perf analyzer.
func (s *Service) IndexStats() spatial.Stats {
	return s.index.Stats()
}

// Optimize rebalances the spatial index.
func (s *Service) Optimize() {
	s.index.Optimize()
}

// FindClosestSnapPoint resolves the best snap target for a cursor
// position. Priority is the primary sort key within the tie epsilon; raw
// distance is secondary. The result snaps only when the winner lies
// within the hard snap threshold.
func (s *Service) FindClosestSnapPoint(pos geom.Point2D, opts QueryOptions) (Result, error) {
	if !s.enabled {
		return miss(pos), nil
	}
	if err := geom.ValidatePoint(pos); err != nil {
		return miss(pos), err
	}

	start := s.now()
	fingerprint := s.cfg.Fingerprint() + "|" + opts.fingerprint()
	if cached, ok := s.cache.Get(pos, fingerprint); ok {
		s.record(start, true)
		return cached, nil
	}

	result, err := s.resolve(pos, opts)
	if err != nil {
		return miss(pos), err
	}
	s.cache.Put(pos, fingerprint, result)
	s.record(start, false)
	return result, nil
}

func (s *Service) resolve(pos geom.Point2D, opts QueryOptions) (Result, error) {
	searchRadius := opts.SearchRadius
	if searchRadius <= 0 {
		searchRadius = s.cfg.MagneticThreshold
	}
	snapThreshold := opts.SnapThreshold
	if snapThreshold <= 0 {
		snapThreshold = s.cfg.SnapThreshold
	}

	entries, err := s.index.Query(geom.RectAround(pos, searchRadius))
	if err != nil {
		return Result{}, fmt.Errorf("spatial query: %w", err)
	}

	excluded := make(map[PointType]bool, len(opts.ExcludeTypes))
	for _, t := range opts.ExcludeTypes {
		excluded[t] = true
	}

	type candidate struct {
		point *Point
		dist  float64
	}
	var candidates []candidate
	for _, e := range entries {
		p, ok := e.Data.(*Point)
		if !ok || !p.IsActive || excluded[p.Type] {
			continue
		}
		d := pos.DistanceTo(p.Position)
		if d > searchRadius {
			continue
		}
		if opts.Radius > 0 && opts.Center.DistanceTo(p.Position) > opts.Radius {
			continue
		}
		candidates = append(candidates, candidate{point: p, dist: d})
	}
	if len(candidates) == 0 {
		return miss(pos), nil
	}

	// Priority beats distance inside the tie epsilon; otherwise nearer
	// wins. The epsilon keeps a grid point from stealing a snap from an
	// endpoint that is only marginally farther away.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if s.better(c.point, c.dist, best.point, best.dist) {
			best = c
		}
	}

	if best.dist > snapThreshold {
		return miss(pos), nil
	}
	return Result{
		SnapPoint:        best.point,
		IsSnapped:        true,
		Distance:         best.dist,
		AdjustedPosition: best.point.Position,
	}, nil
}

// better reports whether candidate a beats candidate b.
func (s *Service) better(a *Point, da float64, b *Point, db float64) bool {
	diff := da - db
	if diff < -s.cfg.TieEpsilon {
		return true
	}
	if diff > s.cfg.TieEpsilon {
		return false
	}
	// Within the tie window: priority first, then raw distance.
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return da < db
}

func (s *Service) record(start time.Time, cacheHit bool) {
	if s.recorder != nil {
		s.recorder.RecordSnapQuery(s.now().Sub(start), cacheHit)
	}
}

// worldBoundsFor sizes the index to cover the point set with margin.
func (s *Service) worldBoundsFor(points []*Point) geom.Rect {
	if len(points) == 0 {
		return geom.Rect{X: -1000, Y: -1000, Width: 2000, Height: 2000}
	}
	bounds := geom.RectAround(points[0].Position, 1)
	for _, p := range points[1:] {
		bounds = bounds.Union(geom.RectAround(p.Position, 1))
	}
	return bounds.Expand(2 * s.cfg.MagneticThreshold)
}
