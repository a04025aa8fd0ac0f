package tileserver

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"vectormap/internal/collision"
	"vectormap/internal/label"
	"vectormap/internal/pipeline"
	"vectormap/pkg/tiles"
)

// Builder resolves and releases tile labels
type Builder interface {
	Build(ctx context.Context, coord tiles.TileCoord) (*pipeline.Result, error)
	Release(res *pipeline.Result)
	Evict(coord tiles.TileCoord)
	Stats() pipeline.Stats
}

// Prefetcher queues raw tiles around a viewport
type Prefetcher interface {
	PrefetchArea(centerLat, centerLon float64, zoom, tileSize, viewportWidth, viewportHeight int) int
}

// Server provides HTTP endpoints for tile labels
type Server struct {
	builder  Builder
	prefetch Prefetcher
	tileSize int
	log      *zap.Logger
	server   *http.Server
}

// NewServer creates a label server. prefetch may be nil.
func NewServer(builder Builder, prefetch Prefetcher, tileSize int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		builder:  builder,
		prefetch: prefetch,
		tileSize: tileSize,
		log:      log,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /labels/{z}/{x}/{y}", s.handleLabels)
	mux.HandleFunc("DELETE /labels/{z}/{x}/{y}", s.handleEvict)
	mux.HandleFunc("POST /prefetch", s.handlePrefetch)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called. It returns nil at once if
// Shutdown already ran.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("label server starting", zap.Stringer("addr", ln.Addr()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for requests in flight
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) tileCoord(w http.ResponseWriter, r *http.Request) (tiles.TileCoord, bool) {
	path := r.PathValue("z") + "/" + r.PathValue("x") + "/" + r.PathValue("y")
	coord, err := tiles.ParsePath(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return tiles.TileCoord{}, false
	}
	return coord, true
}

// handleLabels serves the kept labels of a tile: /labels/{z}/{x}/{y}.
// ?proj=wgs84 returns longitude/latitude instead of tile units. The tile is
// released once written, so every request resolves it afresh; DELETE only
// matters for builds still in flight.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	coord, ok := s.tileCoord(w, r)
	if !ok {
		return
	}

	res, err := s.builder.Build(r.Context(), coord)
	switch {
	case errors.Is(err, pipeline.ErrSuperseded):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		s.log.Warn("label build failed", zap.Stringer("tile", coord), zap.Error(err))
		http.Error(w, "failed to build labels", http.StatusBadGateway)
		return
	}

	fc := featureCollection(res, r.URL.Query().Get("proj") == "wgs84")
	s.builder.Release(res)

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		s.log.Debug("write labels", zap.Stringer("tile", coord), zap.Error(err))
	}
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	coord, ok := s.tileCoord(w, r)
	if !ok {
		return
	}
	s.builder.Evict(coord)
	w.WriteHeader(http.StatusNoContent)
}

// PrefetchRequest represents a prefetch request
type PrefetchRequest struct {
	CenterLat      float64 `json:"centerLat"`
	CenterLon      float64 `json:"centerLon"`
	Zoom           int     `json:"zoom"`
	ViewportWidth  int     `json:"viewportWidth"`
	ViewportHeight int     `json:"viewportHeight"`
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	if s.prefetch == nil {
		http.Error(w, "prefetch disabled", http.StatusNotImplemented)
		return
	}

	var req PrefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Zoom < tiles.MinZoom || req.Zoom > tiles.MaxZoom || req.ViewportWidth <= 0 || req.ViewportHeight <= 0 {
		http.Error(w, "invalid viewport", http.StatusBadRequest)
		return
	}

	queued := s.prefetch.PrefetchArea(req.CenterLat, req.CenterLon, req.Zoom, s.tileSize, req.ViewportWidth, req.ViewportHeight)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"status": "prefetching", "queued": queued})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		pipeline.Stats
	}{"ok", s.builder.Stats()})
}

// featureCollection turns kept labels into point features at their anchors
func featureCollection(res *pipeline.Result, wgs84 bool) *geojson.FeatureCollection {
	layers := make(mvt.Layers, 0, len(res.Labels))
	for _, name := range slices.Sorted(maps.Keys(res.Labels)) {
		objects := res.Labels[name]
		layer := &mvt.Layer{
			Name:     name,
			Version:  2,
			Extent:   uint32(res.Extent),
			Features: make([]*geojson.Feature, 0, len(objects)),
		}
		for _, o := range objects {
			layer.Features = append(layer.Features, labelFeature(name, o))
		}
		layers = append(layers, layer)
	}

	if wgs84 {
		layers.ProjectToWGS84(res.Coord.Maptile())
	}

	fc := geojson.NewFeatureCollection()
	for _, l := range layers {
		fc.Features = append(fc.Features, l.Features...)
	}
	return fc
}

func labelFeature(styleName string, o *collision.Object) *geojson.Feature {
	f := geojson.NewFeature(o.Label.Anchor())
	f.Properties["style"] = styleName
	f.Properties["text"] = o.Label.Text()
	f.Properties["priority"] = o.Priority()

	switch l := o.Label.(type) {
	case *label.LineLabel:
		f.Properties["kind"] = "line"
		f.Properties["angle"] = l.Angle
	case *label.PointLabel:
		f.Properties["kind"] = "point"
		f.Properties["angle"] = l.Angle
	default:
		f.Properties["kind"] = "other"
	}
	return f
}
