package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// OBB is an oriented bounding box in tile-local units
type OBB struct {
	Center     orb.Point
	HalfWidth  float64
	HalfHeight float64

	// Angle is the rotation in radians, counter-clockwise from the x axis
	Angle float64
}

// NewOBB creates an oriented box from a center, full size and rotation
func NewOBB(center orb.Point, width, height, angle float64) OBB {
	return OBB{
		Center:     center,
		HalfWidth:  width / 2,
		HalfHeight: height / 2,
		Angle:      angle,
	}
}

// Axes returns the unit vectors along the box width and height
func (o OBB) Axes() [2]orb.Point {
	sin, cos := math.Sincos(o.Angle)
	return [2]orb.Point{
		{cos, sin},
		{-sin, cos},
	}
}

// Corners returns the four corners in counter-clockwise order
func (o OBB) Corners() [4]orb.Point {
	axes := o.Axes()
	wx, wy := axes[0][0]*o.HalfWidth, axes[0][1]*o.HalfWidth
	hx, hy := axes[1][0]*o.HalfHeight, axes[1][1]*o.HalfHeight
	cx, cy := o.Center[0], o.Center[1]

	return [4]orb.Point{
		{cx - wx - hx, cy - wy - hy},
		{cx + wx - hx, cy + wy - hy},
		{cx + wx + hx, cy + wy + hy},
		{cx - wx + hx, cy - wy + hy},
	}
}

// Bound returns the axis-aligned box enclosing the oriented box
func (o OBB) Bound() orb.Bound {
	corners := o.Corners()
	b := orb.Bound{Min: corners[0], Max: corners[0]}
	for _, c := range corners[1:] {
		b = b.Extend(c)
	}
	return b
}

// Pad grows the box by d on every side
func (o OBB) Pad(d float64) OBB {
	o.HalfWidth += d
	o.HalfHeight += d
	return o
}

// BoundsIntersect reports whether two axis-aligned boxes overlap.
// Boxes that only share an edge count as overlapping.
func BoundsIntersect(a, b orb.Bound) bool {
	return a.Min[0] <= b.Max[0] && a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] && a.Max[1] >= b.Min[1]
}

// Intersects reports whether two oriented boxes overlap, using the
// separating axis test on the face normals of both boxes
func Intersects(a, b OBB) bool {
	ca, cb := a.Corners(), b.Corners()
	for _, axes := range [2][2]orb.Point{a.Axes(), b.Axes()} {
		for _, axis := range axes {
			minA, maxA := project(ca, axis)
			minB, maxB := project(cb, axis)
			if maxA < minB || maxB < minA {
				return false
			}
		}
	}
	return true
}

func project(corners [4]orb.Point, axis orb.Point) (lo, hi float64) {
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, c := range corners {
		d := c[0]*axis[0] + c[1]*axis[1]
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}
