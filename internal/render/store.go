package render

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"shedmap/internal/draw"
)

// Entity tags. Scene sync purges by prefix before re-adding.
const (
	tagPreview = "preview"
	tagRect    = "drawn-rectangle"
	tagHeatmap = "heatmap-"
)

// Kind orders painting: heatmap cells below the committed rectangle,
// the live preview on top.
type Kind int

const (
	KindCell Kind = iota
	KindRect
	KindPreview
)

// Entity is one renderer-owned shape in lon/lat.
type Entity struct {
	Tag   string
	Kind  Kind
	Polys []orb.Polygon
	Bound orb.Bound
	Look  look
	Label string
}

func (e *Entity) contains(p orb.Point) bool {
	if !e.Bound.Contains(p) {
		return false
	}
	for _, poly := range e.Polys {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	return false
}

// Store owns every entity a renderer creates. Handles are never reused.
type Store struct {
	next  draw.Handle
	items map[draw.Handle]*Entity
	order []draw.Handle
}

func NewStore() *Store {
	return &Store{items: map[draw.Handle]*Entity{}}
}

func (s *Store) Add(e *Entity) draw.Handle {
	s.next++
	s.items[s.next] = e
	s.order = append(s.order, s.next)
	return s.next
}

func (s *Store) Get(h draw.Handle) (*Entity, bool) {
	e, ok := s.items[h]
	return e, ok
}

// Remove is a no-op for unknown handles.
func (s *Store) Remove(h draw.Handle) bool {
	if _, ok := s.items[h]; !ok {
		return false
	}
	delete(s.items, h)
	for i, id := range s.order {
		if id == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// RemovePrefix drops every entity whose tag starts with prefix.
func (s *Store) RemovePrefix(prefix string) int {
	kept := s.order[:0]
	n := 0
	for _, id := range s.order {
		if strings.HasPrefix(s.items[id].Tag, prefix) {
			delete(s.items, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n
}

// Count returns how many entities carry the tag prefix ("" counts all).
func (s *Store) Count(prefix string) int {
	n := 0
	for _, id := range s.order {
		if strings.HasPrefix(s.items[id].Tag, prefix) {
			n++
		}
	}
	return n
}

func (s *Store) Len() int { return len(s.order) }

func (s *Store) Clear() {
	s.items = map[draw.Handle]*Entity{}
	s.order = nil
}

// Each visits entities by kind, then insertion order.
func (s *Store) Each(fn func(h draw.Handle, e *Entity)) {
	for k := KindCell; k <= KindPreview; k++ {
		for _, id := range s.order {
			if e := s.items[id]; e.Kind == k {
				fn(id, e)
			}
		}
	}
}
