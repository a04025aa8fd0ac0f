package label

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidLayout is returned by Layout.Validate
	ErrInvalidLayout = errors.New("invalid label layout")

	// ErrLabelDoesNotFit is returned when a line is too short to carry a label
	ErrLabelDoesNotFit = errors.New("label does not fit geometry")
)

// Layout holds the placement options a style assigns to a label
type Layout struct {
	// Priority orders placement: lower values are placed first
	Priority int `yaml:"priority"`

	// Collide enables the bounding box overlap test
	Collide bool `yaml:"collide"`

	// RepeatGroup names the group used for repeat suppression (empty = none)
	RepeatGroup string `yaml:"repeat_group"`

	// RepeatDistance is the minimum spacing in pixels between members of a group
	RepeatDistance float64 `yaml:"repeat_distance"`

	// OnePerGroup keeps at most one label of the group per tile
	OnePerGroup bool `yaml:"one_per_group"`

	// UnitsPerPixel converts pixel sizes into tile units
	UnitsPerPixel float64 `yaml:"units_per_pixel"`

	// Buffer pads the label boxes, in pixels
	Buffer float64 `yaml:"buffer"`
}

// Validate checks the layout before it enters collision
func (l *Layout) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: missing layout", ErrInvalidLayout)
	}
	if !(l.UnitsPerPixel > 0) || math.IsInf(l.UnitsPerPixel, 0) {
		return fmt.Errorf("%w: units per pixel %v", ErrInvalidLayout, l.UnitsPerPixel)
	}
	if l.RepeatDistance < 0 || math.IsNaN(l.RepeatDistance) {
		return fmt.Errorf("%w: repeat distance %v", ErrInvalidLayout, l.RepeatDistance)
	}
	if l.Buffer < 0 || math.IsNaN(l.Buffer) {
		return fmt.Errorf("%w: buffer %v", ErrInvalidLayout, l.Buffer)
	}
	return nil
}

// RepeatDistanceSq returns the squared repeat distance in tile units
func (l *Layout) RepeatDistanceSq() float64 {
	d := l.RepeatDistance * l.UnitsPerPixel
	return d * d
}
