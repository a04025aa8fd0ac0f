// Package repeat suppresses labels that repeat too close to another label
// of the same group within a tile.
package repeat

import (
	"sync"

	"github.com/paulmach/orb"

	"vectormap/internal/label"
)

// Violation describes why a label was rejected by its repeat group
type Violation struct {
	Group string

	// OnePerGroup is set when the group already has a member
	OnePerGroup bool

	// DistanceSq is the squared distance to the nearest offending anchor
	DistanceSq float64
}

// Tracker records the anchors of placed labels per tile and group
type Tracker struct {
	mu     sync.Mutex
	groups map[string]map[string][]orb.Point // tile -> group -> anchors
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		groups: make(map[string]map[string][]orb.Point),
	}
}

// Clear removes every entry recorded for a tile
func (t *Tracker) Clear(tile string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.groups, tile)
}

// Check returns a violation if l repeats a label already added to its group
// in the tile, or nil if it may be placed
func (t *Tracker) Check(l label.Label, tile string) *Violation {
	layout := l.Layout()
	if layout.RepeatGroup == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	anchors := t.groups[tile][layout.RepeatGroup]
	if len(anchors) == 0 {
		return nil
	}
	if layout.OnePerGroup {
		return &Violation{Group: layout.RepeatGroup, OnePerGroup: true}
	}
	if layout.RepeatDistance == 0 {
		return nil
	}

	limit := layout.RepeatDistanceSq()
	p := l.Anchor()
	for _, a := range anchors {
		dx, dy := a[0]-p[0], a[1]-p[1]
		if d := dx*dx + dy*dy; d < limit {
			return &Violation{Group: layout.RepeatGroup, DistanceSq: d}
		}
	}
	return nil
}

// Add records the anchor of a placed label
func (t *Tracker) Add(l label.Label, tile string) {
	group := l.Layout().RepeatGroup
	if group == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	byGroup, ok := t.groups[tile]
	if !ok {
		byGroup = make(map[string][]orb.Point)
		t.groups[tile] = byGroup
	}
	byGroup[group] = append(byGroup[group], l.Anchor())
}

// Groups returns the number of groups with entries in a tile
func (t *Tracker) Groups(tile string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.groups[tile])
}

// Tiles returns the number of tiles with entries
func (t *Tracker) Tiles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.groups)
}
