// Package label defines the label variants that take part in collision.
package label

import (
	"github.com/paulmach/orb"

	"vectormap/internal/geom"
)

// Placement is the collision decision for a label
type Placement int8

const (
	Undecided Placement = iota
	Kept
	Discarded
)

func (p Placement) String() string {
	switch p {
	case Kept:
		return "kept"
	case Discarded:
		return "discarded"
	default:
		return "undecided"
	}
}

// Label is implemented by every label variant that can be placed
type Label interface {
	// Layout returns the placement options of the label
	Layout() *Layout

	// Anchor returns the point used for repeat distance checks
	Anchor() orb.Point

	// Text returns the rendered string, if any
	Text() string

	Placement() Placement
	SetPlacement(Placement)

	// Discard reports whether the label overlaps a placed box that does not
	// belong to exclude
	Discard(boxes *Boxes, exclude Label) bool

	// Add registers the label geometry as placed
	Add(boxes *Boxes)
}

// Box is one placed box and the label that owns it
type Box struct {
	AABB  orb.Bound
	OBB   geom.OBB
	Owner Label
}

// Boxes is the set of boxes already placed in a tile
type Boxes struct {
	entries []Box
}

// Len returns the number of placed boxes
func (b *Boxes) Len() int {
	return len(b.entries)
}

func (b *Boxes) add(owner Label, obbs []geom.OBB) {
	for _, o := range obbs {
		b.entries = append(b.entries, Box{AABB: o.Bound(), OBB: o, Owner: owner})
	}
}

// occluded tests obbs against every placed box not owned by exclude.
// The AABB test runs first and the OBB test only for candidates.
func (b *Boxes) occluded(obbs []geom.OBB, exclude Label) bool {
	for _, o := range obbs {
		aabb := o.Bound()
		for _, e := range b.entries {
			if exclude != nil && e.Owner == exclude {
				continue
			}
			if !geom.BoundsIntersect(aabb, e.AABB) {
				continue
			}
			if geom.Intersects(o, e.OBB) {
				return true
			}
		}
	}
	return false
}

// base carries the state shared by all label variants
type base struct {
	layout    *Layout
	text      string
	placement Placement
}

func (b *base) Layout() *Layout { return b.layout }

func (b *base) Text() string { return b.text }

func (b *base) Placement() Placement { return b.placement }

func (b *base) SetPlacement(p Placement) { b.placement = p }

// units converts a pixel length into tile units
func (b *base) units(px float64) float64 { return px * b.layout.UnitsPerPixel }
