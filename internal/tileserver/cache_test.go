package tileserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vectormap/internal/config"
	"vectormap/pkg/tiles"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newCache(t *testing.T, upstream string, workers int) *TileCache {
	t.Helper()
	cfg := config.Source{
		URLTemplate: upstream + "/%d/%d/%d.pbf",
		CacheDir:    t.TempDir(),
		Workers:     workers,
		UserAgent:   "vectormap-test",
		Timeout:     5 * time.Second,
	}
	tc, err := NewTileCache(cfg, nil)
	if err != nil {
		t.Fatalf("NewTileCache() error = %v", err)
	}
	t.Cleanup(tc.Close)
	return tc
}

func TestGetTileCachesOnDisk(t *testing.T) {
	srv, hits := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "vectormap-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		fmt.Fprint(w, r.URL.Path)
	})
	tc := newCache(t, srv.URL, 0)
	coord := tiles.TileCoord{X: 525, Y: 336, Zoom: 10}

	data, err := tc.GetTile(context.Background(), coord)
	if err != nil {
		t.Fatalf("GetTile() error = %v", err)
	}
	if string(data) != "/10/525/336.pbf" {
		t.Errorf("GetTile() = %q", data)
	}
	if !tc.IsCached(coord) {
		t.Error("tile should be cached after fetch")
	}

	again, err := tc.GetTile(context.Background(), coord)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Errorf("cached tile = %q, want %q", again, data)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
}

func TestGetTileStatusError(t *testing.T) {
	srv, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	tc := newCache(t, srv.URL, 0)
	coord := tiles.TileCoord{X: 1, Y: 1, Zoom: 1}

	if _, err := tc.GetTile(context.Background(), coord); !errors.Is(err, ErrStatus) {
		t.Errorf("GetTile() error = %v, want ErrStatus", err)
	}
	if tc.IsCached(coord) {
		t.Error("failed fetch should not be cached")
	}
}

func TestConcurrentFetchesShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	srv, hits := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("tile"))
	})
	tc := newCache(t, srv.URL, 0)
	coord := tiles.TileCoord{X: 3, Y: 2, Zoom: 2}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := tc.GetTile(context.Background(), coord)
			if err == nil && string(data) != "tile" {
				err = fmt.Errorf("data = %q", data)
			}
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
}

func TestGetTileContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	tc := newCache(t, srv.URL, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := tc.GetTile(ctx, tiles.TileCoord{X: 0, Y: 0, Zoom: 0}); err == nil {
		t.Error("expected error from cancelled fetch")
	}
}

func TestPrefetchWorkers(t *testing.T) {
	srv, _ := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile"))
	})
	tc := newCache(t, srv.URL, 2)

	center := tiles.TileCoord{X: 4, Y: 4, Zoom: 4}
	if _, err := tc.GetTile(context.Background(), center); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, adj := range tiles.GetAdjacentTiles(center) {
		for !tc.IsCached(adj) {
			if time.Now().After(deadline) {
				t.Fatalf("adjacent tile %s was not prefetched", adj)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestPrefetchAreaWithoutWorkers(t *testing.T) {
	srv, hits := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	tc := newCache(t, srv.URL, 0)

	if n := tc.PrefetchArea(52.37, 4.89, 10, 512, 1024, 768); n != 0 {
		t.Errorf("PrefetchArea() queued %d tiles with no workers", n)
	}
	if hits.Load() != 0 {
		t.Error("no requests expected")
	}
}
