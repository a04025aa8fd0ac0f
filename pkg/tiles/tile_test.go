package tiles

import (
	"math"
	"testing"
)

func TestLatLonToTile(t *testing.T) {
	// Amsterdam at zoom 10
	got := LatLonToTile(52.37, 4.90, 10)
	want := TileCoord{X: 525, Y: 336, Zoom: 10}
	if got != want {
		t.Errorf("LatLonToTile() = %v, want %v", got, want)
	}
}

func TestTileToLatLon(t *testing.T) {
	lat, lon := TileToLatLon(TileCoord{X: 0, Y: 0, Zoom: 1})
	if math.Abs(lon+180) > 1e-9 {
		t.Errorf("lon = %v, want -180", lon)
	}
	if math.Abs(lat-85.0511287798) > 1e-6 {
		t.Errorf("lat = %v, want ~85.0511", lat)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		want    TileCoord
		wantErr bool
	}{
		{"10/525/336", TileCoord{X: 525, Y: 336, Zoom: 10}, false},
		{"/3/1/2.pbf", TileCoord{X: 1, Y: 2, Zoom: 3}, false},
		{"3/8/1", TileCoord{}, true},
		{"3/1", TileCoord{}, true},
		{"a/b/c", TileCoord{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStringAndURL(t *testing.T) {
	c := TileCoord{X: 1, Y: 2, Zoom: 3}
	if c.String() != "3/1/2" {
		t.Errorf("String() = %s", c.String())
	}
	if got := c.URL("https://tiles.example/%d/%d/%d.pbf"); got != "https://tiles.example/3/1/2.pbf" {
		t.Errorf("URL() = %s", got)
	}
}

func TestMaptileRoundTrip(t *testing.T) {
	c := TileCoord{X: 525, Y: 336, Zoom: 10}
	if got := FromMaptile(c.Maptile()); got != c {
		t.Errorf("round trip = %v, want %v", got, c)
	}
}

func TestGetAdjacentTiles(t *testing.T) {
	corner := GetAdjacentTiles(TileCoord{X: 0, Y: 0, Zoom: 2})
	if len(corner) != 2 {
		t.Errorf("corner tile has %d neighbours, want 2", len(corner))
	}

	inner := GetAdjacentTiles(TileCoord{X: 1, Y: 1, Zoom: 2})
	want := []TileCoord{{2, 1, 2}, {0, 1, 2}, {1, 2, 2}, {1, 0, 2}}
	if len(inner) != len(want) {
		t.Fatalf("inner tile has %d neighbours, want 4", len(inner))
	}
	for i := range want {
		if inner[i] != want[i] {
			t.Errorf("neighbour %d = %v, want %v", i, inner[i], want[i])
		}
	}
}

func TestGetVisibleTilesStaysInRange(t *testing.T) {
	for _, c := range GetVisibleTiles(85, -179, 2, 256, 1280, 720) {
		if !c.Valid() {
			t.Errorf("invalid tile %v", c)
		}
	}
}

func TestGetPrefetchTilesCoversNeighbourZooms(t *testing.T) {
	zooms := map[int]int{}
	for _, c := range GetPrefetchTiles(52.37, 4.90, 10, 256, 1280, 720) {
		zooms[c.Zoom]++
	}
	for _, z := range []int{9, 10, 11} {
		if zooms[z] == 0 {
			t.Errorf("no tiles at zoom %d", z)
		}
	}
	if zooms[11] <= zooms[9] {
		t.Errorf("zoom 11 should have more tiles than zoom 9: %v", zooms)
	}
}
