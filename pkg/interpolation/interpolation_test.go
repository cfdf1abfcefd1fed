package interpolation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/mesh"
)

func unitHex() mesh.Cell {
	c := mesh.Cell{Type: mesh.Hexahedron}
	for i, off := range hexCorners {
		c.IDs = append(c.IDs, i)
		c.Points = append(c.Points, r3.Vec{X: off[0], Y: off[1], Z: off[2]})
	}
	return c
}

func cellOf(t mesh.CellType, pts ...r3.Vec) mesh.Cell {
	c := mesh.Cell{Type: t, Points: pts}
	for i := range pts {
		c.IDs = append(c.IDs, i)
	}
	return c
}

func linearField(p r3.Vec) float64 { return p.X + 2*p.Y + 3*p.Z }

func TestWeightsPartitionOfUnity(t *testing.T) {
	types := []mesh.CellType{mesh.Vertex, mesh.Line, mesh.Triangle, mesh.Quad,
		mesh.Tetra, mesh.Hexahedron, mesh.Wedge, mesh.Pyramid}
	pcs := []r3.Vec{{X: 0.1, Y: 0.2, Z: 0.3}, {X: 0.5, Y: 0.25, Z: 0.1}}
	for _, ct := range types {
		for _, pc := range pcs {
			sum := 0.0
			for _, w := range Weights(ct, pc) {
				sum += w
			}
			if math.Abs(sum-1) > 1e-14 {
				t.Errorf("%v at %v: expected weights to sum to 1, got %v", ct, pc, sum)
			}
		}
	}
}

// TestHexCornersAreExact samples a linear field at the corners of a unit
// hexahedron; the weights must collapse onto the corner node.
func TestHexCornersAreExact(t *testing.T) {
	c := unitHex()
	opts := DefaultOptions()
	for i, p := range c.Points {
		res := Locate(c, p, opts)
		if !res.Inside {
			t.Fatalf("corner %d not located inside", i)
		}
		v := 0.0
		for k, w := range res.Weights {
			v += w * linearField(c.Points[k])
		}
		if v != linearField(p) {
			t.Errorf("corner %d: expected %v exactly, got %v", i, linearField(p), v)
		}
		if res.Weights[i] != 1 {
			t.Errorf("corner %d: expected one-hot weight, got %v", i, res.Weights)
		}
	}
}

func TestLocateReproducesLinearField(t *testing.T) {
	tests := []struct {
		name string
		cell mesh.Cell
		x    r3.Vec
	}{
		{"tetra", cellOf(mesh.Tetra, r3.Vec{}, r3.Vec{X: 2}, r3.Vec{Y: 2}, r3.Vec{Z: 2}), r3.Vec{X: .3, Y: .4, Z: .5}},
		{"wedge", cellOf(mesh.Wedge,
			r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1},
			r3.Vec{Z: 1}, r3.Vec{X: 1, Z: 1}, r3.Vec{Y: 1, Z: 1}), r3.Vec{X: .2, Y: .3, Z: .6}},
		{"pyramid", cellOf(mesh.Pyramid,
			r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1}, r3.Vec{X: .5, Y: .5, Z: 1}),
			r3.Vec{X: .5, Y: .5, Z: .3}},
		{"skewed hex", cellOf(mesh.Hexahedron,
			r3.Vec{}, r3.Vec{X: 2}, r3.Vec{X: 2.5, Y: 1}, r3.Vec{Y: 1},
			r3.Vec{Z: 1}, r3.Vec{X: 2, Z: 1.2}, r3.Vec{X: 2.5, Y: 1, Z: 1.5}, r3.Vec{Y: 1, Z: 1}),
			r3.Vec{X: 1.2, Y: .5, Z: .6}},
		{"triangle in 3D", cellOf(mesh.Triangle, r3.Vec{Z: 1}, r3.Vec{X: 1, Z: 1}, r3.Vec{Y: 1, Z: 1}),
			r3.Vec{X: .25, Y: .25, Z: 1}},
		{"quad", cellOf(mesh.Quad, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1}), r3.Vec{X: .7, Y: .2}},
		{"line", cellOf(mesh.Line, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}), r3.Vec{X: .5, Y: .5, Z: .5}},
	}
	opts := DefaultOptions()
	for _, tt := range tests {
		res := Locate(tt.cell, tt.x, opts)
		if !res.Inside {
			t.Errorf("%s: expected %v inside (pcoords %v, dist2 %v)", tt.name, tt.x, res.PCoords, res.Dist2)
			continue
		}
		v := 0.0
		for k, w := range res.Weights {
			v += w * linearField(tt.cell.Points[k])
		}
		if math.Abs(v-linearField(tt.x)) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", tt.name, linearField(tt.x), v)
		}
		if back := Location(tt.cell, res.PCoords); r3.Norm(r3.Sub(back, tt.x)) > 1e-9 {
			t.Errorf("%s: pcoords %v map to %v, expected %v", tt.name, res.PCoords, back, tt.x)
		}
	}
}

func TestLocateRejectsOutsidePoints(t *testing.T) {
	opts := DefaultOptions()
	tet := cellOf(mesh.Tetra, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	if Locate(tet, r3.Vec{X: .6, Y: .6, Z: .6}, opts).Inside {
		t.Error("Expected point beyond the slanted face to be outside")
	}
	tri := cellOf(mesh.Triangle, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	if Locate(tri, r3.Vec{X: .2, Y: .2, Z: .5}, opts).Inside {
		t.Error("Expected point off the triangle's plane to be outside")
	}
	v := cellOf(mesh.Vertex, r3.Vec{X: 1})
	if !Locate(v, r3.Vec{X: 1}, opts).Inside || Locate(v, r3.Vec{X: 1.1}, opts).Inside {
		t.Error("Expected vertex to contain only its own position")
	}
}

func TestHexContains(t *testing.T) {
	c := unitHex()
	if !HexContains(c.Points, r3.Vec{X: .5, Y: .5, Z: .5}) {
		t.Error("Expected centre inside")
	}
	if !HexContains(c.Points, r3.Vec{X: 1, Y: 1, Z: 1}) {
		t.Error("Expected corner inside the closed cell")
	}
	if HexContains(c.Points, r3.Vec{X: 1.01, Y: .5, Z: .5}) {
		t.Error("Expected point beyond +x face outside")
	}

	// Swapping the top and bottom faces turns the cell inside out; the
	// centroid anchor keeps the test working.
	inv := append(append([]r3.Vec(nil), c.Points[4:]...), c.Points[:4]...)
	if !HexContains(inv, r3.Vec{X: .5, Y: .5, Z: .5}) {
		t.Error("Expected centre inside inverted hexahedron")
	}
	if HexContains(inv, r3.Vec{X: .5, Y: .5, Z: -.1}) {
		t.Error("Expected point below inverted hexahedron outside")
	}
}

func TestCentroid(t *testing.T) {
	if got := Centroid(unitHex()); got != (r3.Vec{X: .5, Y: .5, Z: .5}) {
		t.Errorf("Expected hex centroid at the centre, got %v", got)
	}
	tri := cellOf(mesh.Triangle, r3.Vec{}, r3.Vec{X: 3}, r3.Vec{Y: 3})
	got := Centroid(tri)
	if math.Abs(got.X-1) > 1e-15 || math.Abs(got.Y-1) > 1e-15 {
		t.Errorf("Expected triangle centroid (1,1,0), got %v", got)
	}
}

func TestContainsDispatch(t *testing.T) {
	opts := DefaultOptions()
	quad := cellOf(mesh.Quad, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1})
	if !Contains(quad, r3.Vec{X: .5, Y: .5}, opts) {
		t.Error("Expected quad to contain its centre")
	}
	if Contains(unitHex(), r3.Vec{X: 2}, opts) {
		t.Error("Expected hexahedron to reject a far point")
	}
}
