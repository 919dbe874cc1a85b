package geo

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"
)

// boundPadDeg widens the candidate box so points sitting exactly on the
// radius survive floating point error before the exact distance check.
const boundPadDeg = 1e-9

var worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// entry is what the quadtree stores; it satisfies orb.Pointer.
type entry struct {
	id string
	p  orb.Point
}

func (e *entry) Point() orb.Point { return e.p }

type layer struct {
	tree    *quadtree.Quadtree
	entries map[string]*entry
}

// MemoryIndex is a process-local Index backed by one quadtree per layer.
type MemoryIndex struct {
	mu     sync.RWMutex
	layers map[string]*layer
}

// NewMemoryIndex creates an empty index. Layers are created on first write.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{layers: make(map[string]*layer)}
}

// Upsert implements Index.
func (m *MemoryIndex) Upsert(_ context.Context, name, id string, p Point) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[name]
	if !ok {
		l = &layer{tree: quadtree.New(worldBound), entries: make(map[string]*entry)}
		m.layers[name] = l
	}

	if old, ok := l.entries[id]; ok {
		l.tree.Remove(old, func(p orb.Pointer) bool { return p.(*entry).id == id })
		delete(l.entries, id)
	}

	e := &entry{id: id, p: p.orb()}
	if err := l.tree.Add(e); err != nil {
		return fmt.Errorf("index %s: add %s: %w", name, id, err)
	}
	l.entries[id] = e
	return nil
}

// Remove implements Index.
func (m *MemoryIndex) Remove(_ context.Context, name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[name]
	if !ok {
		return nil
	}
	if old, ok := l.entries[id]; ok {
		l.tree.Remove(old, func(p orb.Pointer) bool { return p.(*entry).id == id })
		delete(l.entries, id)
	}
	return nil
}

// Lookup returns the indexed point for id, if any.
func (m *MemoryIndex) Lookup(name, id string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.layers[name]
	if !ok {
		return Point{}, false
	}
	e, ok := l.entries[id]
	if !ok {
		return Point{}, false
	}
	return fromOrb(e.p), true
}

// Within implements Index.
func (m *MemoryIndex) Within(_ context.Context, name string, center Point, radiusKm float64) ([]Hit, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if radiusKm < 0 {
		return nil, fmt.Errorf("radius %v must not be negative", radiusKm)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.layers[name]
	if !ok {
		return []Hit{}, nil
	}

	candidates := l.tree.InBound(nil, searchBound(center, radiusKm))
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		e := c.(*entry)
		p := fromOrb(e.p)
		if d := DistanceKm(center, p); d <= radiusKm {
			hits = append(hits, Hit{ID: e.id, Point: p, DistanceKm: d})
		}
	}
	sortHits(hits)
	return hits, nil
}

// searchBound is the lat/lon box containing every point within radiusKm of
// center. Boxes that wrap the antimeridian fall back to the full longitude band.
func searchBound(center Point, radiusKm float64) orb.Bound {
	b := orbgeo.NewBoundAroundPoint(center.orb(), radiusKm*1000).Pad(boundPadDeg)
	if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[0] > b.Max[0] {
		b.Min[0], b.Max[0] = -180, 180
	}
	if b.Min[1] < -90 {
		b.Min[1] = -90
	}
	if b.Max[1] > 90 {
		b.Max[1] = 90
	}
	return b
}
