package snap

import (
	"fmt"
	"math"
	"time"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

// Cache is a time- and region-bounded cache of snap query results,
// keyed by quantized position plus an options/config fingerprint.
// Invalidation follows the pipeline ordering: the model mutates, the
// affected cache region is invalidated, then the index is patched.
type Cache struct {
	resolution float64
	ttl        time.Duration
	entries    map[string]*cacheEntry
	maxEntries int

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

type cacheEntry struct {
	result   Result
	position geom.Point2D
	expires  time.Time
}

// NewCache creates a cache with the given key resolution and TTL.
func NewCache(resolution float64, ttl time.Duration) *Cache {
	if resolution <= 0 {
		resolution = 1
	}
	return &Cache{
		resolution: resolution,
		ttl:        ttl,
		entries:    make(map[string]*cacheEntry),
		maxEntries: 4096,
		now:        time.Now,
	}
}

// key quantizes a position to the cache resolution and appends the
// fingerprint so config changes never serve stale results.
func (c *Cache) key(pos geom.Point2D, fingerprint string) string {
	qx := math.Round(pos.X/c.resolution) * c.resolution
	qy := math.Round(pos.Y/c.resolution) * c.resolution
	return fmt.Sprintf("%g:%g|%s", qx, qy, fingerprint)
}

// Get returns a cached result for the position, if present and fresh.
func (c *Cache) Get(pos geom.Point2D, fingerprint string) (Result, bool) {
	e, ok := c.entries[c.key(pos, fingerprint)]
	if !ok {
		c.misses++
		return Result{}, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, c.key(pos, fingerprint))
		c.evictions++
		c.misses++
		return Result{}, false
	}
	c.hits++
	return e.result, true
}

// Put stores a query result.
func (c *Cache) Put(pos geom.Point2D, fingerprint string, r Result) {
	if len(c.entries) >= c.maxEntries {
		// Drop everything rather than tracking LRU order; the cache
		// refills within a few frames.
		c.evictions += int64(len(c.entries))
		c.entries = make(map[string]*cacheEntry)
	}
	c.entries[c.key(pos, fingerprint)] = &cacheEntry{
		result:   r,
		position: pos,
		expires:  c.now().Add(c.ttl),
	}
}

// InvalidateRegion drops every cached result whose query position falls
// inside the region. Called when snap points in that region are added,
// removed, or moved.
func (c *Cache) InvalidateRegion(region geom.Rect) {
	for k, e := range c.entries {
		if region.Contains(e.position) {
			delete(c.entries, k)
			c.evictions++
		}
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.evictions += int64(len(c.entries))
	c.entries = make(map[string]*cacheEntry)
}

// Stats reports cache effectiveness for the perf analyzer.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hitRate"`
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	s := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
