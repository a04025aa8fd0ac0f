package tiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	MinZoom = 0
	MaxZoom = 22
)

// TileCoord represents a tile coordinate in the slippy map format
type TileCoord struct {
	X    int
	Y    int
	Zoom int
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// URL fills a template taking zoom, x and y as %d verbs
func (t TileCoord) URL(template string) string {
	return fmt.Sprintf(template, t.Zoom, t.X, t.Y)
}

// Valid reports whether the coordinate exists at its zoom
func (t TileCoord) Valid() bool {
	if t.Zoom < MinZoom || t.Zoom > MaxZoom {
		return false
	}
	max := 1 << t.Zoom
	return t.X >= 0 && t.X < max && t.Y >= 0 && t.Y < max
}

// Maptile converts the coordinate to an orb maptile
func (t TileCoord) Maptile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// FromMaptile converts an orb maptile to a coordinate
func FromMaptile(t maptile.Tile) TileCoord {
	return TileCoord{X: int(t.X), Y: int(t.Y), Zoom: int(t.Z)}
}

// ParsePath parses "z/x/y", with an optional file extension on y
func ParsePath(path string) (TileCoord, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return TileCoord{}, fmt.Errorf("tile path %q: want z/x/y", path)
	}
	if i := strings.IndexByte(parts[2], '.'); i >= 0 {
		parts[2] = parts[2][:i]
	}

	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return TileCoord{}, fmt.Errorf("tile path %q: %w", path, err)
		}
		vals[i] = v
	}

	coord := TileCoord{Zoom: vals[0], X: vals[1], Y: vals[2]}
	if !coord.Valid() {
		return TileCoord{}, fmt.Errorf("tile path %q: out of range", path)
	}
	return coord, nil
}

// LatLonToTile converts latitude/longitude to tile coordinates at a given zoom level
func LatLonToTile(lat, lon float64, zoom int) TileCoord {
	return FromMaptile(maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom)))
}

// TileToLatLon converts tile coordinates to latitude/longitude (top-left corner)
func TileToLatLon(t TileCoord) (lat, lon float64) {
	b := t.Maptile().Bound()
	return b.Max.Lat(), b.Min.Lon()
}

// GetAdjacentTiles returns adjacent tiles in priority order for prefetching
// Order: right, left, down, up
func GetAdjacentTiles(t TileCoord) []TileCoord {
	maxTile := 1<<t.Zoom - 1
	adjacent := make([]TileCoord, 0, 4)

	if t.X+1 <= maxTile {
		adjacent = append(adjacent, TileCoord{X: t.X + 1, Y: t.Y, Zoom: t.Zoom})
	}
	if t.X-1 >= 0 {
		adjacent = append(adjacent, TileCoord{X: t.X - 1, Y: t.Y, Zoom: t.Zoom})
	}
	if t.Y+1 <= maxTile {
		adjacent = append(adjacent, TileCoord{X: t.X, Y: t.Y + 1, Zoom: t.Zoom})
	}
	if t.Y-1 >= 0 {
		adjacent = append(adjacent, TileCoord{X: t.X, Y: t.Y - 1, Zoom: t.Zoom})
	}

	return adjacent
}

// GetVisibleTiles returns all tiles visible in a viewport, plus a one tile border
func GetVisibleTiles(centerLat, centerLon float64, zoom, tileSize, viewportWidth, viewportHeight int) []TileCoord {
	center := LatLonToTile(centerLat, centerLon, zoom)

	tilesX := viewportWidth/tileSize + 3
	tilesY := viewportHeight/tileSize + 3

	return around(center, tilesX/2, tilesY/2)
}

// GetPrefetchTiles returns tiles to prefetch around a viewport: about five
// times the visible area at the current zoom, and a smaller ring at the
// neighbouring zoom levels
func GetPrefetchTiles(centerLat, centerLon float64, zoom, tileSize, viewportWidth, viewportHeight int) []TileCoord {
	tilesX := int(float64(viewportWidth/tileSize+2) * 2.5)
	tilesY := int(float64(viewportHeight/tileSize+2) * 2.5)
	halfX, halfY := tilesX/2, tilesY/2

	result := around(LatLonToTile(centerLat, centerLon, zoom), halfX, halfY)

	for _, offset := range []int{-1, 1} {
		adjZoom := zoom + offset
		if adjZoom < MinZoom || adjZoom > MaxZoom {
			continue
		}

		adjHalfX, adjHalfY := halfX/2, halfY/2
		if offset == 1 {
			// Zooming in needs more tiles since they are smaller
			adjHalfX, adjHalfY = halfX, halfY
		}
		result = append(result, around(LatLonToTile(centerLat, centerLon, adjZoom), adjHalfX, adjHalfY)...)
	}

	return result
}

// around returns the valid tiles within halfX/halfY of center
func around(center TileCoord, halfX, halfY int) []TileCoord {
	result := make([]TileCoord, 0, (2*halfX+1)*(2*halfY+1))
	for dy := -halfY; dy <= halfY; dy++ {
		for dx := -halfX; dx <= halfX; dx++ {
			t := TileCoord{X: center.X + dx, Y: center.Y + dy, Zoom: center.Zoom}
			if t.Valid() {
				result = append(result, t)
			}
		}
	}
	return result
}
