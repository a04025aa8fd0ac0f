package label

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"vectormap/internal/geom"
)

// MaxLineTurn is the largest direction change between consecutive segments
// that a single line label may bend across
const MaxLineTurn = math.Pi / 9

// LineLabel is text laid along a line string. It owns one box per segment
// it covers.
type LineLabel struct {
	base

	Line orb.LineString

	// Size is the text width and height in pixels
	Size [2]float64

	// Angle is the text direction on its first segment, kept upright
	Angle float64

	anchor orb.Point
	obbs   []geom.OBB
}

type segment struct {
	a, b   orb.Point
	length float64
	angle  float64
}

// NewLineLabel fits a label of the given pixel size along line. The label is
// centered on the longest run of nearly straight segments that can hold it.
func NewLineLabel(line orb.LineString, size [2]float64, text string, layout *Layout) (*LineLabel, error) {
	if layout == nil {
		return nil, fmt.Errorf("%w: missing layout for %q", ErrInvalidLayout, text)
	}

	l := &LineLabel{
		base: base{layout: layout, text: text},
		Line: line,
		Size: size,
	}

	need := l.units(size[0])
	run := longestRun(splitRuns(line))
	if run == nil || runLength(run) < need {
		return nil, fmt.Errorf("%w: %q needs %.1f units", ErrLabelDoesNotFit, text, need)
	}

	l.fit(run, need)
	return l, nil
}

// fit lays the label centered on run and builds one box per covered segment
func (l *LineLabel) fit(run []segment, need float64) {
	height := l.units(l.Size[1])
	pad := l.units(l.layout.Buffer)

	start := (runLength(run) - need) / 2
	end := start + need
	mid := start + need/2

	l.Angle = upright(run[0].angle)
	l.obbs = l.obbs[:0]

	var walked float64
	for _, s := range run {
		s0, s1 := walked, walked+s.length
		walked = s1

		if mid >= s0 && mid <= s1 {
			l.anchor = pointAlong(s, mid-s0)
		}

		lo, hi := math.Max(start, s0), math.Min(end, s1)
		if hi <= lo {
			continue
		}
		center := pointAlong(s, (lo+hi)/2-s0)
		l.obbs = append(l.obbs, geom.NewOBB(center, hi-lo, height, s.angle).Pad(pad))
	}
}

// Anchor returns the label midpoint on the line
func (l *LineLabel) Anchor() orb.Point {
	return l.anchor
}

// OBBs returns the boxes used for collision
func (l *LineLabel) OBBs() []geom.OBB {
	return l.obbs
}

func (l *LineLabel) Discard(boxes *Boxes, exclude Label) bool {
	return boxes.occluded(l.obbs, exclude)
}

func (l *LineLabel) Add(boxes *Boxes) {
	boxes.add(l, l.obbs)
}

// splitRuns groups consecutive segments whose direction changes by no more
// than MaxLineTurn. Zero length segments are dropped.
func splitRuns(line orb.LineString) [][]segment {
	var runs [][]segment
	var current []segment

	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		length := planar.Distance(a, b)
		if length == 0 {
			continue
		}
		s := segment{a: a, b: b, length: length, angle: math.Atan2(b[1]-a[1], b[0]-a[0])}

		if len(current) > 0 && turn(current[len(current)-1].angle, s.angle) > MaxLineTurn {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, s)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

func longestRun(runs [][]segment) []segment {
	var best []segment
	var bestLen float64
	for _, r := range runs {
		if n := runLength(r); n > bestLen {
			best, bestLen = r, n
		}
	}
	return best
}

func runLength(run []segment) float64 {
	var n float64
	for _, s := range run {
		n += s.length
	}
	return n
}

func pointAlong(s segment, d float64) orb.Point {
	t := d / s.length
	return orb.Point{
		s.a[0] + (s.b[0]-s.a[0])*t,
		s.a[1] + (s.b[1]-s.a[1])*t,
	}
}

// turn returns the absolute angle between two directions, in [0, pi]
func turn(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// upright flips an angle so text never renders upside down
func upright(a float64) float64 {
	switch {
	case a > math.Pi/2:
		return a - math.Pi
	case a < -math.Pi/2:
		return a + math.Pi
	}
	return a
}
