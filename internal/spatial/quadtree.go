// Package spatial provides the quadtree index behind snap-point lookup.
// The index stores small bounded objects (snap points inflated by a fixed
// radius) and answers range and nearest-neighbor queries at interactive
// rates.
package spatial

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ductline/ductline/backend-go/internal/geom"
)

var (
	// ErrInvalidBounds is returned when an insert carries NaN coordinates
	// or zero-area bounds.
	ErrInvalidBounds = errors.New("invalid bounds")
	// ErrNotFound is returned by Remove for unknown ids.
	ErrNotFound = errors.New("object not found")
	// ErrRebuilding is returned when a query arrives while a synchronous
	// rebuild is in progress.
	ErrRebuilding = errors.New("index rebuild in progress")
)

// Entry is one indexed object.
type Entry struct {
	ID     string
	Bounds geom.Rect
	Data   any
}

// Config controls node splitting.
type Config struct {
	// NodeCapacity is the object count above which a node subdivides.
	NodeCapacity int
	// MaxDepth bounds subdivision; nodes at max depth store overflow unsplit.
	MaxDepth int
}

// DefaultConfig matches the interactive drawing workload: shallow trees,
// small nodes.
func DefaultConfig() Config {
	return Config{NodeCapacity: 8, MaxDepth: 8}
}

// Index is a region quadtree over bounded objects.
type Index struct {
	cfg        Config
	root       *node
	entries    map[string]*Entry
	rebuilding bool
}

type node struct {
	bounds   geom.Rect
	depth    int
	entries  []*Entry
	children *[4]*node
}

// NewIndex creates an index covering the given world bounds.
func NewIndex(worldBounds geom.Rect, cfg Config) *Index {
	if cfg.NodeCapacity <= 0 {
		cfg.NodeCapacity = DefaultConfig().NodeCapacity
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	return &Index{
		cfg:     cfg,
		root:    &node{bounds: worldBounds},
		entries: make(map[string]*Entry),
	}
}

// Len returns the number of indexed objects.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Insert adds an object under the given id, replacing any previous entry
// with the same id. Degenerate bounds are rejected.
func (ix *Index) Insert(id string, bounds geom.Rect, data any) error {
	if ix.rebuilding {
		return ErrRebuilding
	}
	if !bounds.Valid() || bounds.IsEmpty() {
		return fmt.Errorf("%w: %+v", ErrInvalidBounds, bounds)
	}
	if _, ok := ix.entries[id]; ok {
		if err := ix.Remove(id); err != nil {
			return err
		}
	}
	e := &Entry{ID: id, Bounds: bounds, Data: data}
	ix.entries[id] = e
	ix.root.insert(e, ix.cfg)
	return nil
}

// Remove deletes the object with the given id.
func (ix *Index) Remove(id string) error {
	if ix.rebuilding {
		return ErrRebuilding
	}
	e, ok := ix.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(ix.entries, id)
	ix.root.remove(e)
	return nil
}

// Query returns all objects whose bounds intersect the region. Order is
// unspecified.
func (ix *Index) Query(region geom.Rect) ([]*Entry, error) {
	if ix.rebuilding {
		return nil, ErrRebuilding
	}
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidBounds, region)
	}
	var out []*Entry
	ix.root.query(region, &out)
	return out, nil
}

// Nearest returns the object whose bounds-center is closest to p within
// maxRadius, or nil when none qualifies.
func (ix *Index) Nearest(p geom.Point2D, maxRadius float64) (*Entry, error) {
	if ix.rebuilding {
		return nil, ErrRebuilding
	}
	if err := geom.ValidatePoint(p); err != nil {
		return nil, err
	}
	if maxRadius <= 0 {
		return nil, nil
	}
	best := (*Entry)(nil)
	bestDist := maxRadius
	ix.root.nearest(p, &best, &bestDist)
	return best, nil
}

// Optimize rebuilds the tree when it has degraded: after heavy churn the
// structure can end up deeper and sparser than a fresh build of the same
// entries. Queries issued during the synchronous rebuild are rejected with
// ErrRebuilding; the single-threaded event loop never actually interleaves
// one, but the guard keeps a reentrant call from seeing a half-built tree.
func (ix *Index) Optimize() {
	if len(ix.entries) == 0 {
		return
	}
	stats := ix.Stats()
	// Rebuild when average occupancy has fallen below a quarter of node
	// capacity or the tree is at max depth with few entries.
	degraded := stats.NodeCount > 1 &&
		float64(len(ix.entries))/float64(stats.NodeCount) < float64(ix.cfg.NodeCapacity)/4
	if !degraded && stats.MaxDepth < ix.cfg.MaxDepth {
		return
	}

	ix.rebuilding = true
	root := &node{bounds: ix.root.bounds}
	for _, e := range ix.entries {
		root.insert(e, ix.cfg)
	}
	ix.root = root
	ix.rebuilding = false
}

// Stats describes tree shape, used by Optimize and the perf monitor.
type Stats struct {
	EntryCount int
	NodeCount  int
	MaxDepth   int
}

// Stats walks the tree and reports its shape.
func (ix *Index) Stats() Stats {
	s := Stats{EntryCount: len(ix.entries)}
	ix.root.stats(&s)
	return s
}

func (n *node) insert(e *Entry, cfg Config) {
	if n.children != nil {
		if c := n.childFor(e.Bounds); c != nil {
			c.insert(e, cfg)
			return
		}
		// Straddles a split line; keep at this level.
		n.entries = append(n.entries, e)
		return
	}

	n.entries = append(n.entries, e)
	if len(n.entries) > cfg.NodeCapacity && n.depth < cfg.MaxDepth {
		n.subdivide(cfg)
	}
}

func (n *node) subdivide(cfg Config) {
	hw := n.bounds.Width / 2
	hh := n.bounds.Height / 2
	var kids [4]*node
	for i := range kids {
		kids[i] = &node{
			bounds: geom.Rect{
				X:      n.bounds.X + float64(i%2)*hw,
				Y:      n.bounds.Y + float64(i/2)*hh,
				Width:  hw,
				Height: hh,
			},
			depth: n.depth + 1,
		}
	}
	n.children = &kids

	kept := n.entries[:0]
	for _, e := range n.entries {
		if c := n.childFor(e.Bounds); c != nil {
			c.insert(e, cfg)
		} else {
			kept = append(kept, e)
		}
	}
	n.entries = kept
}

// childFor returns the single child fully containing the bounds, or nil
// when the bounds straddle a split line.
func (n *node) childFor(b geom.Rect) *node {
	if n.children == nil {
		return nil
	}
	for _, c := range n.children {
		if b.X >= c.bounds.X && b.Y >= c.bounds.Y &&
			b.X+b.Width <= c.bounds.X+c.bounds.Width &&
			b.Y+b.Height <= c.bounds.Y+c.bounds.Height {
			return c
		}
	}
	return nil
}

func (n *node) remove(e *Entry) bool {
	for i, have := range n.entries {
		if have == e {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return true
		}
	}
	if n.children != nil {
		for _, c := range n.children {
			if c.bounds.Intersects(e.Bounds) && c.remove(e) {
				return true
			}
		}
	}
	return false
}

func (n *node) query(region geom.Rect, out *[]*Entry) {
	if !n.bounds.Intersects(region) {
		return
	}
	for _, e := range n.entries {
		if e.Bounds.Intersects(region) {
			*out = append(*out, e)
		}
	}
	if n.children != nil {
		for _, c := range n.children {
			c.query(region, out)
		}
	}
}

// nearest prunes subtrees whose bounds lie farther than the current best.
func (n *node) nearest(p geom.Point2D, best **Entry, bestDist *float64) {
	if n.bounds.DistanceToPoint(p) > *bestDist {
		return
	}
	for _, e := range n.entries {
		d := e.Bounds.Center().DistanceTo(p)
		if d <= *bestDist {
			*best = e
			*bestDist = d
		}
	}
	if n.children == nil {
		return
	}
	// Visit nearer children first so pruning bites sooner.
	kids := make([]*node, 0, 4)
	for _, c := range n.children {
		kids = append(kids, c)
	}
	sort.Slice(kids, func(i, j int) bool {
		return kids[i].bounds.DistanceToPoint(p) < kids[j].bounds.DistanceToPoint(p)
	})
	for _, c := range kids {
		c.nearest(p, best, bestDist)
	}
}

func (n *node) stats(s *Stats) {
	s.NodeCount++
	if n.depth > s.MaxDepth {
		s.MaxDepth = n.depth
	}
	if n.children != nil {
		for _, c := range n.children {
			c.stats(s)
		}
	}
}
