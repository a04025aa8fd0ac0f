// Package config holds the label service configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds all service settings
type Config struct {
	Source  Source  `yaml:"source"`
	Server  Server  `yaml:"server"`
	Labels  Labels  `yaml:"labels"`
	Styles  Styles  `yaml:"styles"`
	Logging Logging `yaml:"logging"`
}

// Source configures where raw vector tiles come from
type Source struct {
	// URLTemplate takes zoom, x and y as three %d verbs
	URLTemplate string        `yaml:"url_template"`
	CacheDir    string        `yaml:"cache_dir"`
	Workers     int           `yaml:"workers"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Server configures the HTTP endpoint
type Server struct {
	Addr string `yaml:"addr"`
}

// Labels holds the parameters shared by all label styles
type Labels struct {
	// TileSize is the rendered tile size in pixels
	TileSize int `yaml:"tile_size"`

	FontSize float64 `yaml:"font_size"`
	DPI      float64 `yaml:"dpi"`

	// Buffer pads every label box, in pixels
	Buffer float64 `yaml:"buffer"`
}

// Styles configures the label styles
type Styles struct {
	Points PointStyle `yaml:"points"`
	Lines  LineStyle  `yaml:"lines"`
}

// PointStyle configures place labels
type PointStyle struct {
	Enabled bool `yaml:"enabled"`
	Collide bool `yaml:"collide"`

	// IconSize adds a square icon linked to each label, in pixels (0 = none)
	IconSize float64 `yaml:"icon_size"`

	// Priorities maps place classes to priorities, rank is added on top
	Priorities      map[string]int `yaml:"priorities"`
	DefaultPriority int            `yaml:"default_priority"`

	// RepeatDistance spaces out places sharing a name, in pixels
	RepeatDistance float64 `yaml:"repeat_distance"`
}

// LineStyle configures road and rail name labels
type LineStyle struct {
	Enabled bool `yaml:"enabled"`
	Collide bool `yaml:"collide"`

	// Priorities maps transport classes to priorities. Classes that are
	// not listed get DefaultPriority.
	Priorities      map[string]int `yaml:"priorities"`
	DefaultPriority int            `yaml:"default_priority"`

	// RepeatDistance spaces out labels of the same name, in pixels
	RepeatDistance float64 `yaml:"repeat_distance"`
}

// Logging holds logging settings
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Source: Source{
			URLTemplate: "https://tiles.openfreemap.org/planet/20251203_001001_pt/%d/%d/%d.pbf",
			CacheDir:    ".tile_cache",
			Workers:     4,
			UserAgent:   "vectormap-labels/1.0",
			Timeout:     30 * time.Second,
		},
		Server: Server{
			Addr: ":8080",
		},
		Labels: Labels{
			TileSize: 512,
			FontSize: 12,
			DPI:      72,
			Buffer:   2,
		},
		Styles: Styles{
			Points: PointStyle{
				Enabled:  true,
				Collide:  true,
				IconSize: 0,
				Priorities: map[string]int{
					"continent": 1,
					"country":   2,
					"state":     4,
					"city":      6,
					"town":      10,
					"village":   14,
					"suburb":    16,
					"hamlet":    18,
				},
				DefaultPriority: 20,
				RepeatDistance:  0,
			},
			Lines: LineStyle{
				Enabled: true,
				Collide: true,
				Priorities: map[string]int{
					"motorway":  30,
					"trunk":     31,
					"primary":   32,
					"secondary": 33,
					"tertiary":  34,
					"rail":      36,
				},
				DefaultPriority: 40,
				RepeatDistance:  150,
			},
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks settings that would break the service at runtime
func (c *Config) Validate() error {
	var errs []error

	if n := strings.Count(c.Source.URLTemplate, "%d"); n != 3 {
		errs = append(errs, fmt.Errorf("source.url_template needs 3 %%d verbs, has %d", n))
	}
	if c.Source.Workers < 0 {
		errs = append(errs, fmt.Errorf("source.workers must not be negative"))
	}
	if c.Labels.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("labels.tile_size must be positive"))
	}
	if c.Labels.FontSize <= 0 || c.Labels.DPI <= 0 {
		errs = append(errs, fmt.Errorf("labels.font_size and labels.dpi must be positive"))
	}
	if c.Labels.Buffer < 0 {
		errs = append(errs, fmt.Errorf("labels.buffer must not be negative"))
	}
	if c.Styles.Points.IconSize < 0 {
		errs = append(errs, fmt.Errorf("styles.points.icon_size must not be negative"))
	}
	if c.Styles.Points.RepeatDistance < 0 || c.Styles.Lines.RepeatDistance < 0 {
		errs = append(errs, fmt.Errorf("repeat_distance must not be negative"))
	}

	return errors.Join(errs...)
}
