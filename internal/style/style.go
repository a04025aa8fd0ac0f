// Package style turns decoded tile features into label candidates.
package style

import (
	"context"

	"github.com/paulmach/orb"

	"vectormap/internal/collision"
	"vectormap/internal/config"
	"vectormap/internal/label"
	"vectormap/internal/vectortile"
)

// rankSpan separates class priorities so that rank only orders labels
// within a class
const rankSpan = 100

// Style builds the label candidates of one kind of feature
type Style interface {
	Name() string
	Build(ctx context.Context, tile *vectortile.TileData, unitsPerPixel float64) ([]*collision.Object, error)
}

// PointStyle labels places, optionally with an icon linked to the text
type PointStyle struct {
	name   string
	cfg    config.PointStyle
	labels config.Labels
	text   *TextMeasurer
}

// NewPointStyle creates a place label style
func NewPointStyle(name string, cfg config.PointStyle, labels config.Labels, text *TextMeasurer) *PointStyle {
	return &PointStyle{name: name, cfg: cfg, labels: labels, text: text}
}

func (s *PointStyle) Name() string { return s.name }

func (s *PointStyle) Build(ctx context.Context, tile *vectortile.TileData, unitsPerPixel float64) ([]*collision.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objects := make([]*collision.Object, 0, len(tile.Places))
	for _, p := range tile.Places {
		if p.Name == "" || !inside(p.Location, tile.Extent) {
			continue
		}

		layout := &label.Layout{
			Priority:      priority(s.cfg.Priorities, s.cfg.DefaultPriority, p.Class)*rankSpan + p.Rank,
			Collide:       s.cfg.Collide,
			UnitsPerPixel: unitsPerPixel,
			Buffer:        s.labels.Buffer,
		}
		if s.cfg.RepeatDistance > 0 {
			layout.RepeatGroup = p.Name
			layout.RepeatDistance = s.cfg.RepeatDistance
		}

		size := s.text.Measure(p.Name)
		if s.cfg.IconSize <= 0 {
			objects = append(objects, &collision.Object{
				Label: label.NewPointLabel(p.Location, size, [2]float64{}, p.Name, layout),
			})
			continue
		}

		iconLayout := *layout
		iconLayout.RepeatGroup = ""
		icon := &collision.Object{
			Label: label.NewPointLabel(p.Location, [2]float64{s.cfg.IconSize, s.cfg.IconSize}, [2]float64{}, "", &iconLayout),
		}

		// Text sits below the icon; tile y grows downwards
		offset := [2]float64{0, (s.cfg.IconSize + size[1]) / 2}
		text := &collision.Object{
			Label: label.NewPointLabel(p.Location, size, offset, p.Name, layout),
		}

		icon.Linked = text
		text.Linked = icon
		objects = append(objects, icon, text)
	}

	return objects, nil
}

// LineStyle labels named roads and railways along their geometry
type LineStyle struct {
	name   string
	cfg    config.LineStyle
	labels config.Labels
	text   *TextMeasurer
}

// NewLineStyle creates a line label style
func NewLineStyle(name string, cfg config.LineStyle, labels config.Labels, text *TextMeasurer) *LineStyle {
	return &LineStyle{name: name, cfg: cfg, labels: labels, text: text}
}

func (s *LineStyle) Name() string { return s.name }

func (s *LineStyle) Build(ctx context.Context, tile *vectortile.TileData, unitsPerPixel float64) ([]*collision.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []*collision.Object
	for _, t := range tile.Transport {
		if t.Name == "" {
			continue
		}

		layout := &label.Layout{
			Priority:       priority(s.cfg.Priorities, s.cfg.DefaultPriority, t.Class) * rankSpan,
			Collide:        s.cfg.Collide,
			RepeatGroup:    t.Name,
			RepeatDistance: s.cfg.RepeatDistance,
			UnitsPerPixel:  unitsPerPixel,
			Buffer:         s.labels.Buffer,
		}
		size := s.text.Measure(t.Name)

		for _, line := range lineStrings(t.Geometry) {
			l, err := label.NewLineLabel(line, size, t.Name, layout)
			if err != nil {
				// Too short for the name
				continue
			}
			if !inside(l.Anchor(), tile.Extent) {
				continue
			}
			objects = append(objects, &collision.Object{Label: l})
		}
	}

	return objects, nil
}

func priority(byClass map[string]int, fallback int, class string) int {
	if p, ok := byClass[class]; ok {
		return p
	}
	return fallback
}

// inside reports whether p lies in the tile proper rather than its buffer
func inside(p orb.Point, extent int) bool {
	e := float64(extent)
	return p[0] >= 0 && p[0] < e && p[1] >= 0 && p[1] < e
}

func lineStrings(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}
	case orb.MultiLineString:
		return g
	}
	return nil
}

// FromConfig returns the enabled styles, places first
func FromConfig(cfg *config.Config, text *TextMeasurer) []Style {
	var styles []Style
	if cfg.Styles.Points.Enabled {
		styles = append(styles, NewPointStyle("places", cfg.Styles.Points, cfg.Labels, text))
	}
	if cfg.Styles.Lines.Enabled {
		styles = append(styles, NewLineStyle("roads", cfg.Styles.Lines, cfg.Labels, text))
	}
	return styles
}
