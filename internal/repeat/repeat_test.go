package repeat

import (
	"testing"

	"github.com/paulmach/orb"

	"vectormap/internal/label"
)

func point(x, y float64, layout *label.Layout) *label.PointLabel {
	return label.NewPointLabel(orb.Point{x, y}, [2]float64{4, 4}, [2]float64{}, "Highway 101", layout)
}

func TestCheckDistance(t *testing.T) {
	tests := []struct {
		name           string
		repeatDistance float64
		wantViolation  bool
	}{
		// 10 units apart, limit 20 units (400 squared)
		{"within repeat distance", 20, true},
		// 10 units apart, limit 5 units (25 squared)
		{"beyond repeat distance", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			layout := &label.Layout{RepeatGroup: "highway-101", RepeatDistance: tt.repeatDistance, UnitsPerPixel: 1}

			tr.Add(point(0, 0, layout), "tile")
			v := tr.Check(point(10, 0, layout), "tile")

			if (v != nil) != tt.wantViolation {
				t.Fatalf("Check() = %+v, wantViolation %v", v, tt.wantViolation)
			}
			if v != nil && v.DistanceSq != 100 {
				t.Errorf("DistanceSq = %v, want 100", v.DistanceSq)
			}
		})
	}
}

func TestCheckScalesByUnitsPerPixel(t *testing.T) {
	tr := NewTracker()
	// 5 px at 4 units per pixel is 20 units
	layout := &label.Layout{RepeatGroup: "g", RepeatDistance: 5, UnitsPerPixel: 4}

	tr.Add(point(0, 0, layout), "tile")
	if tr.Check(point(10, 0, layout), "tile") == nil {
		t.Error("expected violation at 10 units with a 20 unit limit")
	}
	if tr.Check(point(30, 0, layout), "tile") != nil {
		t.Error("expected no violation at 30 units")
	}
}

func TestCheckOnePerGroup(t *testing.T) {
	tr := NewTracker()
	layout := &label.Layout{RepeatGroup: "capital", OnePerGroup: true, UnitsPerPixel: 1}

	if tr.Check(point(0, 0, layout), "tile") != nil {
		t.Fatal("empty group should not be violated")
	}
	tr.Add(point(0, 0, layout), "tile")

	v := tr.Check(point(4000, 4000, layout), "tile")
	if v == nil || !v.OnePerGroup {
		t.Errorf("Check() = %+v, want one-per-group violation regardless of distance", v)
	}
}

func TestCheckWithoutGroup(t *testing.T) {
	tr := NewTracker()
	layout := &label.Layout{RepeatDistance: 100, UnitsPerPixel: 1}

	tr.Add(point(0, 0, layout), "tile")
	if tr.Check(point(0, 0, layout), "tile") != nil {
		t.Error("labels without a group never repeat")
	}
	if tr.Tiles() != 0 {
		t.Errorf("Tiles() = %d, ungrouped labels should not be recorded", tr.Tiles())
	}
}

func TestGroupsAreIsolated(t *testing.T) {
	tr := NewTracker()
	a := &label.Layout{RepeatGroup: "a", RepeatDistance: 50, UnitsPerPixel: 1}
	b := &label.Layout{RepeatGroup: "b", RepeatDistance: 50, UnitsPerPixel: 1}

	tr.Add(point(0, 0, a), "1/0/0")

	if tr.Check(point(1, 0, b), "1/0/0") != nil {
		t.Error("different group should not be affected")
	}
	if tr.Check(point(1, 0, a), "1/0/1") != nil {
		t.Error("different tile should not be affected")
	}
	if tr.Check(point(1, 0, a), "1/0/0") == nil {
		t.Error("same group and tile should be violated")
	}
}

func TestClear(t *testing.T) {
	tr := NewTracker()
	layout := &label.Layout{RepeatGroup: "g", RepeatDistance: 50, UnitsPerPixel: 1}

	tr.Add(point(0, 0, layout), "t1")
	tr.Add(point(0, 0, layout), "t2")
	tr.Clear("t1")

	if tr.Groups("t1") != 0 {
		t.Errorf("Groups(t1) = %d after Clear, want 0", tr.Groups("t1"))
	}
	if tr.Groups("t2") != 1 {
		t.Errorf("Groups(t2) = %d, want 1", tr.Groups("t2"))
	}
	if tr.Check(point(0, 0, layout), "t1") != nil {
		t.Error("cleared tile should accept the label again")
	}
}
