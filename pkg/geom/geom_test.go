package geom

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestBoxUnionAndContains(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Fatal("Expected empty box")
	}
	b = b.Extend(r3.Vec{X: 1, Y: 2, Z: 3}).Extend(r3.Vec{X: -1, Y: 0, Z: 5})
	want := Box{Min: r3.Vec{X: -1, Y: 0, Z: 3}, Max: r3.Vec{X: 1, Y: 2, Z: 5}}
	if b != want {
		t.Errorf("Expected %v, got %v", want, b)
	}
	if !b.Contains(r3.Vec{X: 1, Y: 2, Z: 5}) {
		t.Error("Expected closed box to contain its max corner")
	}
	if b.Contains(r3.Vec{X: 1.0001, Y: 1, Z: 4}) {
		t.Error("Expected point outside box to be rejected")
	}
	if got := EmptyBox().Union(b); got != b {
		t.Errorf("Expected empty box to be the union identity, got %v", got)
	}
	if got := b.Union(EmptyBox()); got != b {
		t.Errorf("Expected union with an empty box to keep the box, got %v", got)
	}
}

func TestBoxOverlaps(t *testing.T) {
	a := UnitBox()
	tests := []struct {
		name string
		b    Box
		want bool
	}{
		{"shared face", Box{Min: r3.Vec{X: 1}, Max: r3.Vec{X: 2, Y: 1, Z: 1}}, true},
		{"disjoint", Box{Min: r3.Vec{X: 1.5}, Max: r3.Vec{X: 2, Y: 1, Z: 1}}, false},
		{"inside", Box{Min: r3.Vec{X: .2, Y: .2, Z: .2}, Max: r3.Vec{X: .3, Y: .3, Z: .3}}, true},
	}
	for _, tt := range tests {
		if got := a.Overlaps(tt.b); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestExtentsRoundTrip(t *testing.T) {
	b := Box{Min: r3.Vec{X: 1, Y: 2, Z: 3}, Max: r3.Vec{X: 4, Y: 5, Z: 6}}
	ext := b.Extents()
	if got := BoxFromExtents(ext[:]); got != b {
		t.Errorf("Expected %v, got %v", b, got)
	}
}

func TestPlaneCrosses(t *testing.T) {
	ext := []float64{0, 1, 0, 1, 0, 1}
	// x + y + z = s crosses the unit cube for s in [0,3].
	params := []float64{1, 1, 1}
	tests := []struct {
		solution float64
		want     bool
	}{
		{0, true},
		{1.5, true},
		{3, true},
		{3.5, false},
		{-0.1, false},
	}
	for _, tt := range tests {
		if got := PlaneCrosses(ext, params, tt.solution, 3); got != tt.want {
			t.Errorf("solution %v: expected %v, got %v", tt.solution, tt.want, got)
		}
	}
}

func TestRayIntersects(t *testing.T) {
	ext := []float64{0, 1, 0, 1, 0, 1}
	if !RayIntersects(ext, 3, [3]float64{-1, .5, .5}, [3]float64{1, 0, 0}) {
		t.Error("Expected ray along +x to hit the cube")
	}
	if RayIntersects(ext, 3, [3]float64{-1, .5, .5}, [3]float64{-1, 0, 0}) {
		t.Error("Expected ray pointing away to miss the cube")
	}
	if RayIntersects(ext, 3, [3]float64{-1, 2, .5}, [3]float64{1, 0, 0}) {
		t.Error("Expected offset ray to miss the cube")
	}
}

func TestSegmentIntersects(t *testing.T) {
	ext := []float64{0, 1, 0, 1, 0, 1}
	if !SegmentIntersects(ext, 3, [3]float64{-1, .5, .5}, [3]float64{.5, .5, .5}) {
		t.Error("Expected segment ending inside to intersect")
	}
	if SegmentIntersects(ext, 3, [3]float64{-2, .5, .5}, [3]float64{-1, .5, .5}) {
		t.Error("Expected segment short of the cube to miss")
	}
}

func TestAxisymmetricIntersects(t *testing.T) {
	// Annulus z in [0,1], r in [1,2].
	ext := []float64{0, 1, 1, 2}
	tests := []struct {
		name string
		p, d [3]float64
		want bool
	}{
		{"radial through annulus", [3]float64{-5, 0, .5}, [3]float64{1, 0, 0}, true},
		{"along axis inside hole", [3]float64{0, 0, -5}, [3]float64{0, 0, 1}, false},
		{"parallel to axis in annulus", [3]float64{1.5, 0, -5}, [3]float64{0, 0, 1}, true},
		{"above the band", [3]float64{-5, 0, 2}, [3]float64{1, 0, 0}, false},
		{"beyond outer radius", [3]float64{-5, 3, .5}, [3]float64{1, 0, 0}, false},
	}
	for _, tt := range tests {
		if got := AxisymmetricIntersects(ext, tt.p, tt.d); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
