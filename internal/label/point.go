package label

import (
	"github.com/paulmach/orb"

	"vectormap/internal/geom"
)

// PointLabel is a text or icon box anchored at a single point
type PointLabel struct {
	base

	Position orb.Point

	// Size is the label width and height in pixels
	Size [2]float64

	// Offset moves the box center away from Position, in pixels
	Offset [2]float64

	// Angle rotates the box around its center, in radians
	Angle float64

	obb geom.OBB
}

// NewPointLabel creates a point label and computes its box. A label with a
// nil layout has no box and fails validation when submitted.
func NewPointLabel(position orb.Point, size, offset [2]float64, text string, layout *Layout) *PointLabel {
	l := &PointLabel{
		base:     base{layout: layout, text: text},
		Position: position,
		Size:     size,
		Offset:   offset,
	}
	l.update()
	return l
}

// rotate sets the label rotation and recomputes its box
func (l *PointLabel) rotate(angle float64) {
	l.Angle = angle
	l.update()
}

func (l *PointLabel) update() {
	if l.layout == nil {
		return
	}
	center := orb.Point{
		l.Position[0] + l.units(l.Offset[0]),
		l.Position[1] + l.units(l.Offset[1]),
	}
	l.obb = geom.NewOBB(center, l.units(l.Size[0]), l.units(l.Size[1]), l.Angle).
		Pad(l.units(l.layout.Buffer))
}

// Anchor returns the label position
func (l *PointLabel) Anchor() orb.Point {
	return l.Position
}

// OBB returns the box used for collision
func (l *PointLabel) OBB() geom.OBB {
	return l.obb
}

// Bound returns the axis-aligned box used for collision
func (l *PointLabel) Bound() orb.Bound {
	return l.obb.Bound()
}

func (l *PointLabel) Discard(boxes *Boxes, exclude Label) bool {
	return boxes.occluded([]geom.OBB{l.obb}, exclude)
}

func (l *PointLabel) Add(boxes *Boxes) {
	boxes.add(l, []geom.OBB{l.obb})
}
