package label

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func testLayout() *Layout {
	return &Layout{Priority: 1, Collide: true, UnitsPerPixel: 1}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  *Layout
		wantErr bool
	}{
		{"valid", &Layout{UnitsPerPixel: 16, RepeatDistance: 80}, false},
		{"nil", nil, true},
		{"zero units per pixel", &Layout{}, true},
		{"infinite units per pixel", &Layout{UnitsPerPixel: math.Inf(1)}, true},
		{"negative repeat distance", &Layout{UnitsPerPixel: 1, RepeatDistance: -1}, true},
		{"negative buffer", &Layout{UnitsPerPixel: 1, Buffer: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("Validate() error = %v, want ErrInvalidLayout", err)
			}
		})
	}
}

func TestRepeatDistanceSq(t *testing.T) {
	l := &Layout{RepeatDistance: 5, UnitsPerPixel: 16}
	if got := l.RepeatDistanceSq(); got != 6400 {
		t.Errorf("RepeatDistanceSq() = %v, want 6400", got)
	}
}

func TestPlacementString(t *testing.T) {
	if Undecided.String() != "undecided" || Kept.String() != "kept" || Discarded.String() != "discarded" {
		t.Error("unexpected Placement strings")
	}
}

func TestPointLabelBox(t *testing.T) {
	layout := &Layout{UnitsPerPixel: 2, Buffer: 1}
	l := NewPointLabel(orb.Point{100, 100}, [2]float64{10, 4}, [2]float64{0, 5}, "Amsterdam", layout)

	b := l.Bound()
	// 10x4 px at 2 units/px, padded by 2 units, shifted 10 units in y
	want := orb.Bound{Min: orb.Point{88, 104}, Max: orb.Point{112, 116}}
	if b != want {
		t.Errorf("Bound() = %v, want %v", b, want)
	}
	if l.Anchor() != (orb.Point{100, 100}) {
		t.Errorf("Anchor() = %v, want position", l.Anchor())
	}
	if l.Text() != "Amsterdam" {
		t.Errorf("Text() = %q", l.Text())
	}
}

func TestPointLabelDiscard(t *testing.T) {
	var boxes Boxes

	a := NewPointLabel(orb.Point{0, 0}, [2]float64{10, 10}, [2]float64{}, "a", testLayout())
	b := NewPointLabel(orb.Point{5, 0}, [2]float64{10, 10}, [2]float64{}, "b", testLayout())
	c := NewPointLabel(orb.Point{50, 0}, [2]float64{10, 10}, [2]float64{}, "c", testLayout())

	if a.Discard(&boxes, nil) {
		t.Fatal("nothing placed yet, a should fit")
	}
	a.Add(&boxes)
	if boxes.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", boxes.Len())
	}

	if !b.Discard(&boxes, nil) {
		t.Error("b overlaps a and should be discarded")
	}
	if b.Discard(&boxes, a) {
		t.Error("b should ignore boxes owned by the excluded label")
	}
	if c.Discard(&boxes, nil) {
		t.Error("c is far away and should fit")
	}
}

func TestPointLabelRotate(t *testing.T) {
	l := NewPointLabel(orb.Point{0, 0}, [2]float64{10, 2}, [2]float64{}, "", testLayout())
	l.rotate(math.Pi / 2)

	b := l.Bound()
	if math.Abs(b.Max[1]-5) > 1e-9 || math.Abs(b.Max[0]-1) > 1e-9 {
		t.Errorf("rotated Bound() = %v, want 2x10", b)
	}
}

func TestLineLabelStraight(t *testing.T) {
	line := orb.LineString{{0, 0}, {100, 0}}
	l, err := NewLineLabel(line, [2]float64{40, 10}, "Main Street", testLayout())
	if err != nil {
		t.Fatalf("NewLineLabel() error = %v", err)
	}

	if l.Anchor() != (orb.Point{50, 0}) {
		t.Errorf("Anchor() = %v, want [50 0]", l.Anchor())
	}
	if len(l.OBBs()) != 1 {
		t.Fatalf("OBBs() = %d, want 1", len(l.OBBs()))
	}
	b := l.OBBs()[0].Bound()
	if math.Abs(b.Min[0]-30) > 1e-9 || math.Abs(b.Max[0]-70) > 1e-9 {
		t.Errorf("box spans %v..%v, want 30..70", b.Min[0], b.Max[0])
	}
}

func TestLineLabelBendsAcrossGentleTurns(t *testing.T) {
	// Two 30 unit segments with a 10 degree bend
	bend := 10 * math.Pi / 180
	line := orb.LineString{
		{0, 0},
		{30, 0},
		{30 + 30*math.Cos(bend), 30 * math.Sin(bend)},
	}

	l, err := NewLineLabel(line, [2]float64{50, 4}, "Canal", testLayout())
	if err != nil {
		t.Fatalf("NewLineLabel() error = %v", err)
	}
	if len(l.OBBs()) != 2 {
		t.Errorf("OBBs() = %d, want one box per covered segment", len(l.OBBs()))
	}
}

func TestLineLabelDoesNotFit(t *testing.T) {
	tests := []struct {
		name string
		line orb.LineString
	}{
		{"too short", orb.LineString{{0, 0}, {10, 0}}},
		{"sharp corner", orb.LineString{{0, 0}, {30, 0}, {30, 30}}},
		{"degenerate", orb.LineString{{5, 5}, {5, 5}}},
		{"single point", orb.LineString{{5, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineLabel(tt.line, [2]float64{40, 10}, "Long Name", testLayout())
			if !errors.Is(err, ErrLabelDoesNotFit) {
				t.Errorf("NewLineLabel() error = %v, want ErrLabelDoesNotFit", err)
			}
		})
	}
}

func TestLineLabelUpright(t *testing.T) {
	line := orb.LineString{{100, 0}, {0, 0}}
	l, err := NewLineLabel(line, [2]float64{20, 5}, "West", testLayout())
	if err != nil {
		t.Fatalf("NewLineLabel() error = %v", err)
	}
	if math.Abs(l.Angle) > 1e-9 {
		t.Errorf("Angle = %v, want text flipped upright to 0", l.Angle)
	}
}

func TestLineLabelExcludesItself(t *testing.T) {
	var boxes Boxes

	line := orb.LineString{{0, 0}, {100, 0}}
	road, err := NewLineLabel(line, [2]float64{40, 10}, "Main Street", testLayout())
	if err != nil {
		t.Fatal(err)
	}
	road.Add(&boxes)

	shield := NewPointLabel(orb.Point{50, 0}, [2]float64{8, 8}, [2]float64{}, "A1", testLayout())
	if !shield.Discard(&boxes, nil) {
		t.Error("shield overlaps the road label")
	}
	if shield.Discard(&boxes, road) {
		t.Error("shield should not collide with its excluded road label")
	}
}

func TestNilLayout(t *testing.T) {
	p := NewPointLabel(orb.Point{0, 0}, [2]float64{10, 10}, [2]float64{}, "x", nil)
	if err := p.Layout().Validate(); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("Validate() on nil layout = %v, want ErrInvalidLayout", err)
	}

	_, err := NewLineLabel(orb.LineString{{0, 0}, {100, 0}}, [2]float64{10, 10}, "x", nil)
	if !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("NewLineLabel() with nil layout = %v, want ErrInvalidLayout", err)
	}
}
