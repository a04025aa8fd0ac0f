// Package collision resolves label overlaps for a tile across all the styles
// that draw it.
//
// Each style registers with AddStyle, builds its candidates and submits them
// once. When the last registered style has submitted, the tile is resolved in
// a single pass: priorities ascending, then styles, then candidates in the
// order each style submitted them. Every submitter then receives the subset of
// its own candidates that were kept. AbortTile completes all waiters with an
// empty result.
package collision

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"vectormap/internal/label"
	"vectormap/internal/repeat"
)

var errNoLabel = errors.New("object has no label")

// Object is a label candidate. Linked points to another candidate of the
// same feature, such as the text of an icon; linked objects are kept or
// discarded together.
type Object struct {
	Label  label.Label
	Linked *Object
}

// Priority returns the placement priority of the object's label
func (o *Object) Priority() int {
	return o.Label.Layout().Priority
}

func (o *Object) validate() error {
	if o == nil || o.Label == nil {
		return errNoLabel
	}
	if err := o.Label.Layout().Validate(); err != nil {
		return err
	}
	if o.Linked != nil {
		if o.Linked.Label == nil {
			return errNoLabel
		}
		return o.Linked.Label.Layout().Validate()
	}
	return nil
}

// tileState is the collision state of one tile between StartTile and its
// resolution or abort
type tileState struct {
	boxes    label.Boxes
	pending  map[int]map[string][]*Object // priority -> style -> objects
	owner    map[*Object]string
	keep     map[string][]*Object
	awaiting map[string]struct{}
	signal   *signal
	started  time.Time
}

func newTileState() *tileState {
	return &tileState{
		pending:  make(map[int]map[string][]*Object),
		owner:    make(map[*Object]string),
		keep:     make(map[string][]*Object),
		awaiting: make(map[string]struct{}),
		signal:   newSignal(),
		started:  time.Now(),
	}
}

func (s *tileState) queue(obj *Object, style string) {
	p := obj.Priority()
	byStyle, ok := s.pending[p]
	if !ok {
		byStyle = make(map[string][]*Object)
		s.pending[p] = byStyle
	}
	byStyle[style] = append(byStyle[style], obj)
	s.owner[obj] = style
}

// Coordinator holds the collision state of every active tile
type Coordinator struct {
	mu     sync.Mutex
	tiles  map[string]*tileState
	repeat *repeat.Tracker
	log    *zap.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger used for diagnostics
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithRepeatTracker shares a repeat group tracker with the coordinator
func WithRepeatTracker(t *repeat.Tracker) Option {
	return func(c *Coordinator) {
		c.repeat = t
	}
}

// New creates a coordinator with no active tiles
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		tiles: make(map[string]*tileState),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.repeat == nil {
		c.repeat = repeat.NewTracker()
	}
	return c
}

// StartTile creates the collision state for a tile. It does nothing if the
// tile is already active.
func (c *Coordinator) StartTile(tile string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tiles[tile]; ok {
		return
	}
	c.tiles[tile] = newTileState()
}

// AddStyle registers a style that will submit labels for the tile. The tile
// is not resolved until every registered style has submitted.
func (c *Coordinator) AddStyle(style, tile string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.tiles[tile]
	if !ok {
		c.log.Debug("add style for unknown tile", zap.String("tile", tile), zap.String("style", style))
		return
	}
	state.awaiting[style] = struct{}{}
}

// Submit queues the candidates of a style for the tile. If this was the last
// style the tile is waiting for, the tile is resolved before Submit returns.
//
// The returned Pending yields the submitted objects that were kept. Unknown
// tiles, for example one evicted while the style was building, complete
// immediately with no objects. Malformed objects are skipped.
func (c *Coordinator) Submit(objects []*Object, style, tile string) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.tiles[tile]
	if !ok {
		c.log.Debug("collide for unknown tile",
			zap.String("tile", tile),
			zap.String("style", style),
			zap.Int("objects", len(objects)))
		return resolved(style)
	}

	skipped := 0
	for _, obj := range objects {
		if err := obj.validate(); err != nil {
			skipped++
			c.log.Warn("skipping malformed label",
				zap.String("tile", tile),
				zap.String("style", style),
				zap.Error(err))
			continue
		}
		state.queue(obj, style)
	}

	delete(state.awaiting, style)
	p := &Pending{sig: state.signal, style: style}

	if len(state.awaiting) == 0 {
		c.endTile(tile, state)
	}
	return p
}

// Collide submits the candidates of a style and waits for the tile to
// complete. The error is only set when ctx ends first.
func (c *Coordinator) Collide(ctx context.Context, objects []*Object, style, tile string) ([]*Object, error) {
	return c.Submit(objects, style, tile).Wait(ctx)
}

// ResetTile discards the tile state without completing its waiters. Use it
// only when no style is waiting on the tile.
func (c *Coordinator) ResetTile(tile string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tiles, tile)
	c.repeat.Clear(tile)
}

// AbortTile completes every waiter of the tile with an empty result and
// discards its state. Aborting an unknown tile only clears its repeat groups.
func (c *Coordinator) AbortTile(tile string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.repeat.Clear(tile)

	state, ok := c.tiles[tile]
	if !ok {
		return
	}
	delete(c.tiles, tile)
	state.signal.fulfill(nil)

	c.log.Debug("tile aborted",
		zap.String("tile", tile),
		zap.Int("awaiting", len(state.awaiting)))
}

// HasTile reports whether the tile has collision state
func (c *Coordinator) HasTile(tile string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tiles[tile]
	return ok
}

// Tiles returns the number of tiles with collision state
func (c *Coordinator) Tiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}

// RepeatTiles returns the number of tiles with repeat group entries
func (c *Coordinator) RepeatTiles() int {
	return c.repeat.Tiles()
}

// endTile resolves the tile, removes its state and wakes the waiters.
// Must be called with c.mu held.
func (c *Coordinator) endTile(tile string, state *tileState) {
	c.repeat.Clear(tile)

	for _, priority := range slices.Sorted(maps.Keys(state.pending)) {
		byStyle := state.pending[priority]
		// Styles sharing a priority have no defined order; sorting only
		// keeps runs reproducible.
		for _, style := range slices.Sorted(maps.Keys(byStyle)) {
			for _, obj := range byStyle[style] {
				c.place(state, obj, style, tile)
			}
		}
	}

	delete(c.tiles, tile)
	state.signal.fulfill(state.keep)

	if ce := c.log.Check(zap.DebugLevel, "tile resolved"); ce != nil {
		kept := 0
		for _, objs := range state.keep {
			kept += len(objs)
		}
		ce.Write(
			zap.String("tile", tile),
			zap.Int("candidates", len(state.owner)),
			zap.Int("kept", kept),
			zap.Int("repeat_groups", c.repeat.Groups(tile)),
			zap.Duration("elapsed", time.Since(state.started)))
	}
}

// place decides a single candidate and, if it has one, its linked object
func (c *Coordinator) place(state *tileState, obj *Object, style, tile string) {
	l := obj.Label
	if l.Placement() != label.Undecided {
		return
	}

	linked := obj.Linked
	var exclude label.Label
	if linked != nil {
		switch linked.Label.Placement() {
		case label.Discarded:
			l.SetPlacement(label.Discarded)
			return
		case label.Kept:
			exclude = linked.Label
		}
	}

	if !c.canBePlaced(state, l, exclude, tile) {
		l.SetPlacement(label.Discarded)
		return
	}

	if linked == nil || linked.Label.Placement() == label.Kept {
		c.accept(state, obj, style, tile)
		return
	}

	if !c.canBePlaced(state, linked.Label, l, tile) {
		l.SetPlacement(label.Discarded)
		linked.Label.SetPlacement(label.Discarded)
		return
	}
	c.accept(state, obj, style, tile)
	c.accept(state, linked, state.owner[linked], tile)
}

// canBePlaced tests a label against the placed boxes, ignoring those owned
// by exclude, and against its repeat group
func (c *Coordinator) canBePlaced(state *tileState, l label.Label, exclude label.Label, tile string) bool {
	if l.Layout().Collide && l.Discard(&state.boxes, exclude) {
		return false
	}
	if v := c.repeat.Check(l, tile); v != nil {
		c.log.Debug("label repeats",
			zap.String("tile", tile),
			zap.String("group", v.Group),
			zap.String("text", l.Text()))
		return false
	}
	return true
}

// accept places a label. Linked objects that were never submitted for the
// tile occupy space but are not returned to any style.
func (c *Coordinator) accept(state *tileState, obj *Object, style, tile string) {
	obj.Label.SetPlacement(label.Kept)
	obj.Label.Add(&state.boxes)
	c.repeat.Add(obj.Label, tile)

	if style != "" {
		state.keep[style] = append(state.keep[style], obj)
	}
}
