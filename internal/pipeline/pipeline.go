// Package pipeline drives tiles through label collision: it loads a tile,
// runs every style against it and collects the labels that survived.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vectormap/internal/collision"
	"vectormap/internal/style"
	"vectormap/internal/vectortile"
	"vectormap/pkg/tiles"
)

// ErrSuperseded is returned by Build when the tile was evicted or rebuilt
// before its labels were resolved
var ErrSuperseded = errors.New("tile superseded")

// Loader returns decoded tile data
type Loader interface {
	GetTile(ctx context.Context, coord tiles.TileCoord) (*vectortile.TileData, error)
}

type evicter interface {
	Evict(coord tiles.TileCoord)
}

// Result holds the labels each style may draw for a tile
type Result struct {
	Coord      tiles.TileCoord
	Generation uint64
	Extent     int
	Labels     map[string][]*collision.Object
	Elapsed    time.Duration
}

// Count returns the number of labels across all styles
func (r *Result) Count() int {
	n := 0
	for _, objs := range r.Labels {
		n += len(objs)
	}
	return n
}

// Manager owns the tile lifecycle around a collision coordinator. Every
// Build is a new load generation with its own collision tile id, so styles
// still working on a superseded generation find no state and get nothing.
type Manager struct {
	coord    *collision.Coordinator
	loader   Loader
	styles   []style.Style
	tileSize int
	log      *zap.Logger

	mu         sync.Mutex
	generation uint64
	active     map[string]uint64 // tile -> current generation
}

// NewManager creates a manager. tileSize is the rendered tile size in
// pixels, used to derive units per pixel from the tile extent.
func NewManager(coord *collision.Coordinator, loader Loader, styles []style.Style, tileSize int, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		coord:    coord,
		loader:   loader,
		styles:   styles,
		tileSize: tileSize,
		log:      log,
		active:   make(map[string]uint64),
	}
}

func collisionID(coord tiles.TileCoord, gen uint64) string {
	return fmt.Sprintf("%s#%d", coord, gen)
}

// Build resolves the labels of a tile. A Build for a tile that is already
// active aborts the previous generation.
func (m *Manager) Build(ctx context.Context, coord tiles.TileCoord) (*Result, error) {
	start := time.Now()

	data, err := m.loader.GetTile(ctx, coord)
	if err != nil {
		return nil, err
	}
	upp := float64(data.Extent) / float64(m.tileSize)

	styles := m.styles
	gen := m.begin(coord)
	id := collisionID(coord, gen)

	if len(styles) == 0 {
		m.coord.ResetTile(id)
	}
	for _, s := range styles {
		m.coord.AddStyle(s.Name(), id)
	}

	type styleResult struct {
		name string
		kept []*collision.Object
		err  error
	}
	results := make(chan styleResult, len(styles))

	for _, s := range styles {
		go func(s style.Style) {
			objects, err := s.Build(ctx, data, upp)
			if err != nil {
				// Still submit so the tile is not held up
				m.log.Warn("style build failed",
					zap.String("style", s.Name()),
					zap.Stringer("tile", coord),
					zap.Error(err))
				objects = nil
			}
			kept, err := m.coord.Collide(ctx, objects, s.Name(), id)
			results <- styleResult{name: s.Name(), kept: kept, err: err}
		}(s)
	}

	res := &Result{
		Coord:      coord,
		Generation: gen,
		Extent:     data.Extent,
		Labels:     make(map[string][]*collision.Object, len(styles)),
	}
	var waitErr error
	for range styles {
		r := <-results
		if r.err != nil {
			waitErr = r.err
			continue
		}
		res.Labels[r.name] = r.kept
	}

	if waitErr != nil {
		m.end(coord, gen)
		return nil, waitErr
	}
	if !m.current(coord, gen) {
		// Clears repeat groups the resolution may have left under this id
		m.coord.AbortTile(id)
		return nil, fmt.Errorf("%w: %s generation %d", ErrSuperseded, coord, gen)
	}

	res.Elapsed = time.Since(start)
	m.log.Debug("tile built",
		zap.Stringer("tile", coord),
		zap.Uint64("generation", gen),
		zap.Int("labels", res.Count()),
		zap.Duration("elapsed", res.Elapsed))

	return res, nil
}

// Evict releases a tile: waiting styles complete empty and its collision
// and repeat state is dropped
func (m *Manager) Evict(coord tiles.TileCoord) {
	m.mu.Lock()
	gen, ok := m.active[coord.String()]
	delete(m.active, coord.String())
	m.mu.Unlock()

	if ok {
		m.coord.AbortTile(collisionID(coord, gen))
	}
	if e, ok := m.loader.(evicter); ok {
		e.Evict(coord)
	}
}

// Release drops the state a served Build left behind: its repeat groups and
// the decoded tile. A newer generation of the same tile is left alone.
func (m *Manager) Release(res *Result) {
	if !m.end(res.Coord, res.Generation) {
		return
	}
	if e, ok := m.loader.(evicter); ok {
		e.Evict(res.Coord)
	}
}

// Active returns the number of tiles with a live generation
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Stats counts the state held for tiles
type Stats struct {
	Active         int `json:"active"`
	CollisionTiles int `json:"collisionTiles"`
	RepeatTiles    int `json:"repeatTiles"`
}

// Stats returns the current state counts
func (m *Manager) Stats() Stats {
	return Stats{
		Active:         m.Active(),
		CollisionTiles: m.coord.Tiles(),
		RepeatTiles:    m.coord.RepeatTiles(),
	}
}

// begin starts a new generation for the tile, aborting the previous one.
// The collision tile is started before the generation becomes visible to
// Evict.
func (m *Manager) begin(coord tiles.TileCoord) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	key := coord.String()
	if prev, ok := m.active[key]; ok {
		m.coord.AbortTile(collisionID(coord, prev))
	}
	m.coord.StartTile(collisionID(coord, m.generation))
	m.active[key] = m.generation
	return m.generation
}

// end aborts a generation and reports whether it was the current one
func (m *Manager) end(coord tiles.TileCoord, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := coord.String()
	current := m.active[key] == gen
	if current {
		delete(m.active, key)
	}
	m.coord.AbortTile(collisionID(coord, gen))
	return current
}

func (m *Manager) current(coord tiles.TileCoord, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[coord.String()] == gen
}
