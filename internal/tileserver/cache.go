package tileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"vectormap/internal/config"
	"vectormap/pkg/tiles"
)

// ErrStatus is returned when the upstream tile server answers with an error
var ErrStatus = errors.New("tile server returned status")

// TileCache fetches raw vector tiles and caches them on disk
type TileCache struct {
	cfg        config.Source
	client     *http.Client
	log        *zap.Logger
	inFlight   map[string]chan struct{}
	inFlightMu sync.Mutex
	fetchQueue chan tiles.TileCoord
	wg         sync.WaitGroup
}

// NewTileCache creates a tile cache and starts its prefetch workers
func NewTileCache(cfg config.Source, log *zap.Logger) (*TileCache, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	tc := &TileCache{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		log:        log,
		inFlight:   make(map[string]chan struct{}),
		fetchQueue: make(chan tiles.TileCoord, 1000),
	}

	for i := 0; i < cfg.Workers; i++ {
		tc.wg.Add(1)
		go tc.worker()
	}

	return tc, nil
}

func (tc *TileCache) worker() {
	defer tc.wg.Done()
	for coord := range tc.fetchQueue {
		if _, err := tc.fetchTile(context.Background(), coord); err != nil {
			tc.log.Debug("prefetch failed", zap.Stringer("tile", coord), zap.Error(err))
		}
	}
}

// Close stops the prefetch workers
func (tc *TileCache) Close() {
	close(tc.fetchQueue)
	tc.wg.Wait()
}

// tilePath returns the file path for a cached tile
func (tc *TileCache) tilePath(coord tiles.TileCoord) string {
	return filepath.Join(tc.cfg.CacheDir, fmt.Sprintf("%d_%d_%d.pbf", coord.Zoom, coord.X, coord.Y))
}

// GetTile returns raw tile bytes, fetching and caching if necessary
func (tc *TileCache) GetTile(ctx context.Context, coord tiles.TileCoord) ([]byte, error) {
	if data, err := os.ReadFile(tc.tilePath(coord)); err == nil {
		return data, nil
	}

	data, err := tc.fetchTile(ctx, coord)
	if err != nil {
		return nil, err
	}

	tc.queuePrefetch(coord)
	return data, nil
}

// fetchTile downloads a tile and caches it. Concurrent fetches of the same
// tile wait for the first one.
func (tc *TileCache) fetchTile(ctx context.Context, coord tiles.TileCoord) ([]byte, error) {
	key := coord.String()
	path := tc.tilePath(coord)

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	tc.inFlightMu.Lock()
	if ch, exists := tc.inFlight[key]; exists {
		tc.inFlightMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return os.ReadFile(path)
	}

	ch := make(chan struct{})
	tc.inFlight[key] = ch
	tc.inFlightMu.Unlock()

	defer func() {
		tc.inFlightMu.Lock()
		delete(tc.inFlight, key)
		close(ch)
		tc.inFlightMu.Unlock()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coord.URL(tc.cfg.URLTemplate), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", tc.cfg.UserAgent)

	resp, err := tc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		// We still have the data
		tc.log.Warn("failed to cache tile", zap.Stringer("tile", coord), zap.Error(err))
	}

	return data, nil
}

// queuePrefetch adds adjacent tiles to the prefetch queue
func (tc *TileCache) queuePrefetch(coord tiles.TileCoord) {
	for _, adj := range tiles.GetAdjacentTiles(coord) {
		tc.enqueue(adj)
	}
}

// PrefetchArea prefetches tiles around a viewport
func (tc *TileCache) PrefetchArea(centerLat, centerLon float64, zoom, tileSize, viewportWidth, viewportHeight int) int {
	queued := 0
	for _, coord := range tiles.GetPrefetchTiles(centerLat, centerLon, zoom, tileSize, viewportWidth, viewportHeight) {
		if tc.enqueue(coord) {
			queued++
		}
	}
	return queued
}

// enqueue is a non-blocking send; a full queue or no workers drops the tile
func (tc *TileCache) enqueue(coord tiles.TileCoord) bool {
	if tc.cfg.Workers == 0 {
		return false
	}
	select {
	case tc.fetchQueue <- coord:
		return true
	default:
		return false
	}
}

// IsCached checks if a tile is already cached
func (tc *TileCache) IsCached(coord tiles.TileCoord) bool {
	_, err := os.Stat(tc.tilePath(coord))
	return err == nil
}
