package vectortile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"vectormap/pkg/tiles"
)

var (
	// ErrNoSource is returned when the cache has nothing to load tiles from
	ErrNoSource = errors.New("no tile source")

	// ErrLoadFailed is returned to callers that waited on a failed load
	ErrLoadFailed = errors.New("tile load failed")
)

var gzipMagic = []byte{0x1f, 0x8b}

// Source returns raw, possibly gzipped, vector tile bytes
type Source interface {
	GetTile(ctx context.Context, coord tiles.TileCoord) ([]byte, error)
}

// Place represents a city/town/village from the place layer
type Place struct {
	Name     string
	Class    string // city, town, village, hamlet, etc.
	Rank     int
	Location orb.Point
}

// TransportLine represents a road/rail from the transportation layers
type TransportLine struct {
	Name     string // only set for transportation_name features
	Class    string // motorway, rail, primary, secondary, etc.
	Geometry orb.Geometry
}

// WaterFeature represents water from the water layer
type WaterFeature struct {
	Class    string
	Geometry orb.Geometry
}

// TileData holds extracted features of a vector tile in tile-local units
type TileData struct {
	Coord  tiles.TileCoord
	Extent int

	Places     []Place
	Transport  []TransportLine
	Water      []WaterFeature
	Boundaries []orb.Geometry
}

// Decode parses raw tile bytes. Geometry stays in tile units, with the
// origin at the top-left corner and y pointing down.
func Decode(raw []byte, coord tiles.TileCoord) (*TileData, error) {
	var (
		layers mvt.Layers
		err    error
	)
	if bytes.HasPrefix(raw, gzipMagic) {
		layers, err = mvt.UnmarshalGzipped(raw)
	} else {
		layers, err = mvt.Unmarshal(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("mvt parse error: %w", err)
	}

	data := extractFeatures(layers)
	data.Coord = coord
	return data, nil
}

// VectorTileCache keeps decoded tiles in memory in front of a Source
type VectorTileCache struct {
	source Source

	tiles   map[string]*TileData
	tilesMu sync.RWMutex

	inFlight   map[string]chan struct{}
	inFlightMu sync.Mutex
}

// NewVectorTileCache creates a cache reading from source
func NewVectorTileCache(source Source) *VectorTileCache {
	return &VectorTileCache{
		source:   source,
		tiles:    make(map[string]*TileData),
		inFlight: make(map[string]chan struct{}),
	}
}

// GetTile returns tile data, loading it if necessary. Concurrent calls for
// the same tile share one load.
func (vtc *VectorTileCache) GetTile(ctx context.Context, coord tiles.TileCoord) (*TileData, error) {
	key := coord.String()

	vtc.tilesMu.RLock()
	if data, ok := vtc.tiles[key]; ok {
		vtc.tilesMu.RUnlock()
		return data, nil
	}
	vtc.tilesMu.RUnlock()

	vtc.inFlightMu.Lock()
	if ch, exists := vtc.inFlight[key]; exists {
		vtc.inFlightMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		vtc.tilesMu.RLock()
		data, ok := vtc.tiles[key]
		vtc.tilesMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLoadFailed, key)
		}
		return data, nil
	}

	ch := make(chan struct{})
	vtc.inFlight[key] = ch
	vtc.inFlightMu.Unlock()

	data, err := vtc.load(ctx, coord)
	if err == nil {
		vtc.tilesMu.Lock()
		vtc.tiles[key] = data
		vtc.tilesMu.Unlock()
	}

	vtc.inFlightMu.Lock()
	delete(vtc.inFlight, key)
	close(ch)
	vtc.inFlightMu.Unlock()

	if err != nil {
		return nil, err
	}
	return data, nil
}

func (vtc *VectorTileCache) load(ctx context.Context, coord tiles.TileCoord) (*TileData, error) {
	if vtc.source == nil {
		return nil, ErrNoSource
	}
	raw, err := vtc.source.GetTile(ctx, coord)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", coord, err)
	}
	return Decode(raw, coord)
}

// HasTile checks if a tile is cached
func (vtc *VectorTileCache) HasTile(coord tiles.TileCoord) bool {
	vtc.tilesMu.RLock()
	defer vtc.tilesMu.RUnlock()
	_, ok := vtc.tiles[coord.String()]
	return ok
}

// Evict drops a decoded tile
func (vtc *VectorTileCache) Evict(coord tiles.TileCoord) {
	vtc.tilesMu.Lock()
	defer vtc.tilesMu.Unlock()
	delete(vtc.tiles, coord.String())
}

// extractFeatures extracts typed features from MVT layers
func extractFeatures(layers mvt.Layers) *TileData {
	data := &TileData{Extent: mvt.DefaultExtent}

	for _, layer := range layers {
		if layer.Extent > 0 {
			data.Extent = int(layer.Extent)
		}

		switch layer.Name {
		case "place":
			data.Places = append(data.Places, extractPlaces(layer)...)
		case "transportation", "transportation_name":
			data.Transport = append(data.Transport, extractTransport(layer)...)
		case "water":
			data.Water = append(data.Water, extractWater(layer)...)
		case "boundary":
			data.Boundaries = append(data.Boundaries, extractBoundaries(layer)...)
		}
	}

	return data
}

func extractPlaces(layer *mvt.Layer) []Place {
	places := make([]Place, 0, len(layer.Features))

	for _, f := range layer.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		places = append(places, Place{
			Name:     stringProp(f, "name"),
			Class:    stringProp(f, "class"),
			Rank:     int(numberProp(f, "rank")),
			Location: pt,
		})
	}

	return places
}

func extractTransport(layer *mvt.Layer) []TransportLine {
	lines := make([]TransportLine, 0, len(layer.Features))

	for _, f := range layer.Features {
		lines = append(lines, TransportLine{
			Name:     stringProp(f, "name"),
			Class:    stringProp(f, "class"),
			Geometry: f.Geometry,
		})
	}

	return lines
}

func extractWater(layer *mvt.Layer) []WaterFeature {
	features := make([]WaterFeature, 0, len(layer.Features))

	for _, f := range layer.Features {
		features = append(features, WaterFeature{
			Class:    stringProp(f, "class"),
			Geometry: f.Geometry,
		})
	}

	return features
}

func extractBoundaries(layer *mvt.Layer) []orb.Geometry {
	boundaries := make([]orb.Geometry, 0, len(layer.Features))

	for _, f := range layer.Features {
		boundaries = append(boundaries, f.Geometry)
	}

	return boundaries
}

func stringProp(f *geojson.Feature, key string) string {
	s, _ := f.Properties[key].(string)
	return s
}

func numberProp(f *geojson.Feature, key string) float64 {
	switch v := f.Properties[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// FilterPlacesByClass returns places matching the given classes
func FilterPlacesByClass(places []Place, classes ...string) []Place {
	set := classSet(classes)
	return slices.DeleteFunc(slices.Clone(places), func(p Place) bool {
		_, ok := set[p.Class]
		return !ok
	})
}

// FilterTransportByClass returns transport lines matching the given classes
func FilterTransportByClass(transport []TransportLine, classes ...string) []TransportLine {
	set := classSet(classes)
	return slices.DeleteFunc(slices.Clone(transport), func(t TransportLine) bool {
		_, ok := set[t.Class]
		return !ok
	})
}

func classSet(classes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return set
}
