// Command labelserver serves collision-free labels for vector map tiles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vectormap/internal/collision"
	"vectormap/internal/config"
	"vectormap/internal/logger"
	"vectormap/internal/pipeline"
	"vectormap/internal/style"
	"vectormap/internal/tileserver"
	"vectormap/internal/vectortile"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
		return
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("label server failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	coordinator := collision.New(collision.WithLogger(logger.Named("collision")))
	manager := pipeline.NewManager(
		coordinator,
		vectortile.NewVectorTileCache(raw),
		style.FromConfig(cfg, text),
		cfg.Labels.TileSize,
		logger.Named("pipeline"),
	)

	server := tileserver.NewServer(manager, raw, cfg.Labels.TileSize, logger.Named("http"))

	errc := make(chan error, 1)
	go func() { errc <- server.Start(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
