// Command labeltest resolves the labels of one tile, or of every tile in a
// viewport, and prints them.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"

	"vectormap/internal/collision"
	"vectormap/internal/config"
	"vectormap/internal/logger"
	"vectormap/internal/pipeline"
	"vectormap/internal/style"
	"vectormap/internal/tileserver"
	"vectormap/internal/vectortile"
	"vectormap/pkg/tiles"
)

var (
	// Amsterdam at zoom 10
	flagTile = flag.String("tile", "10/525/336", "Tile to label as z/x/y")

	flagLat    = flag.Float64("lat", math.NaN(), "Viewport center latitude (labels every visible tile)")
	flagLon    = flag.Float64("lon", math.NaN(), "Viewport center longitude")
	flagZoom   = flag.Int("zoom", 10, "Viewport zoom")
	flagWidth  = flag.Int("width", 1024, "Viewport width in pixels")
	flagHeight = flag.Int("height", 768, "Viewport height in pixels")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	// Prefetching is pointless for a one-off run
	cfg.Source.Workers = 0

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	coords, err := targets(cfg.Labels.TileSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, coords); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func targets(tileSize int) ([]tiles.TileCoord, error) {
	if math.IsNaN(*flagLat) || math.IsNaN(*flagLon) {
		coord, err := tiles.ParsePath(*flagTile)
		if err != nil {
			return nil, err
		}
		return []tiles.TileCoord{coord}, nil
	}
	if *flagZoom < tiles.MinZoom || *flagZoom > tiles.MaxZoom {
		return nil, fmt.Errorf("zoom %d out of range", *flagZoom)
	}
	return tiles.GetVisibleTiles(*flagLat, *flagLon, *flagZoom, tileSize, *flagWidth, *flagHeight), nil
}

func run(cfg *config.Config, coords []tiles.TileCoord) error {
	raw, err := tileserver.NewTileCache(cfg.Source, logger.Named("fetch"))
	if err != nil {
		return err
	}
	defer raw.Close()

	text, err := style.NewTextMeasurer(cfg.Labels.FontSize, cfg.Labels.DPI)
	if err != nil {
		return err
	}
	defer text.Close()

	loader := vectortile.NewVectorTileCache(raw)
	styles := style.FromConfig(cfg, text)
	manager := pipeline.NewManager(
		collision.New(collision.WithLogger(logger.Named("collision"))),
		loader,
		styles,
		cfg.Labels.TileSize,
		logger.Named("pipeline"),
	)

	total := 0
	for _, coord := range coords {
		data, err := loader.GetTile(context.Background(), coord)
		if err != nil {
			fmt.Printf("Tile %s: %v\n", coord, err)
			continue
		}

		res, err := manager.Build(context.Background(), coord)
		if err != nil {
			fmt.Printf("Tile %s: %v\n", coord, err)
			continue
		}
		total += res.Count()

		lat, lon := tiles.TileToLatLon(coord)
		fmt.Printf("Tile %s at (%.4f, %.4f), extent %d: %d places, %d transport lines, %d water, %d boundaries\n",
			coord, lat, lon, data.Extent, len(data.Places), len(data.Transport), len(data.Water), len(data.Boundaries))
		fmt.Printf("  cities: %d, rail lines: %d, kept %d labels in %v\n",
			len(vectortile.FilterPlacesByClass(data.Places, "city")),
			len(vectortile.FilterTransportByClass(data.Transport, "rail")),
			res.Count(), res.Elapsed)

		if len(coords) == 1 {
			for _, s := range styles {
				printStyle(s.Name(), res.Labels[s.Name()])
			}
		}
		manager.Evict(coord)
	}

	if len(coords) > 1 {
		fmt.Printf("\n%d tiles, %d labels\n", len(coords), total)
	}
	return nil
}

func printStyle(name string, objects []*collision.Object) {
	fmt.Printf("\n=== %s: %d ===\n", name, len(objects))

	sorted := slices.Clone(objects)
	slices.SortStableFunc(sorted, func(a, b *collision.Object) int {
		return a.Priority() - b.Priority()
	})
	for i, o := range sorted {
		if i == 20 {
			fmt.Printf("  ... %d more\n", len(sorted)-i)
			break
		}
		a := o.Label.Anchor()
		fmt.Printf("  %-5d %-30s at (%.0f, %.0f)\n", o.Priority(), o.Label.Text(), a[0], a[1])
	}
}
