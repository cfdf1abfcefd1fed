// Package interpolation evaluates linear cells at parametric coordinates
// and inverts that mapping to locate a world point inside a cell. It is the
// point-location kernel behind nodal and zonal sampling.
package interpolation

import (
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/mesh"
)

// corner offsets in VTK order for quads and hexahedra.
var hexCorners = [8][3]float64{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// ParametricCenter returns the parametric coordinates of the cell centre.
func ParametricCenter(t mesh.CellType) r3.Vec {
	switch t {
	case mesh.Line:
		return r3.Vec{X: 0.5}
	case mesh.Triangle:
		return r3.Vec{X: 1.0 / 3, Y: 1.0 / 3}
	case mesh.Quad:
		return r3.Vec{X: 0.5, Y: 0.5}
	case mesh.Tetra:
		return r3.Vec{X: 0.25, Y: 0.25, Z: 0.25}
	case mesh.Hexahedron:
		return r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	case mesh.Wedge:
		return r3.Vec{X: 1.0 / 3, Y: 1.0 / 3, Z: 0.5}
	case mesh.Pyramid:
		return r3.Vec{X: 0.4, Y: 0.4, Z: 0.2}
	}
	return r3.Vec{}
}

// lin returns the 1D factor a? r : 1-r and its derivative.
func lin(a, r float64) (float64, float64) {
	if a == 1 {
		return r, 1
	}
	return 1 - r, -1
}

// shape fills w with the shape functions of t at pc and, when d is non-nil,
// d with their derivatives along r, s and t.
func shape(t mesh.CellType, pc r3.Vec, w []float64, d [][3]float64) {
	r, s, u := pc.X, pc.Y, pc.Z
	set := func(i int, v float64, dr, ds, dt float64) {
		w[i] = v
		if d != nil {
			d[i] = [3]float64{dr, ds, dt}
		}
	}

	switch t {
	case mesh.Vertex:
		set(0, 1, 0, 0, 0)
	case mesh.Line:
		set(0, 1-r, -1, 0, 0)
		set(1, r, 1, 0, 0)
	case mesh.Triangle:
		set(0, 1-r-s, -1, -1, 0)
		set(1, r, 1, 0, 0)
		set(2, s, 0, 1, 0)
	case mesh.Quad:
		for i := 0; i < 4; i++ {
			fr, dfr := lin(hexCorners[i][0], r)
			fs, dfs := lin(hexCorners[i][1], s)
			set(i, fr*fs, dfr*fs, fr*dfs, 0)
		}
	case mesh.Tetra:
		set(0, 1-r-s-u, -1, -1, -1)
		set(1, r, 1, 0, 0)
		set(2, s, 0, 1, 0)
		set(3, u, 0, 0, 1)
	case mesh.Hexahedron:
		for i := 0; i < 8; i++ {
			fr, dfr := lin(hexCorners[i][0], r)
			fs, dfs := lin(hexCorners[i][1], s)
			ft, dft := lin(hexCorners[i][2], u)
			set(i, fr*fs*ft, dfr*fs*ft, fr*dfs*ft, fr*fs*dft)
		}
	case mesh.Wedge:
		base := [3][3]float64{{1 - r - s, -1, -1}, {r, 1, 0}, {s, 0, 1}}
		for i, b := range base {
			set(i, b[0]*(1-u), b[1]*(1-u), b[2]*(1-u), -b[0])
			set(i+3, b[0]*u, b[1]*u, b[2]*u, b[0])
		}
	case mesh.Pyramid:
		for i := 0; i < 4; i++ {
			fr, dfr := lin(hexCorners[i][0], r)
			fs, dfs := lin(hexCorners[i][1], s)
			q := fr * fs
			set(i, q*(1-u), dfr*fs*(1-u), fr*dfs*(1-u), -q)
		}
		set(4, u, 0, 0, 1)
	}
}

// Weights returns the shape-function weights of t at pc.
func Weights(t mesh.CellType, pc r3.Vec) []float64 {
	w := make([]float64, t.NumPoints())
	shape(t, pc, w, nil)
	return w
}

// Location maps parametric coordinates of c to world coordinates.
func Location(c mesh.Cell, pc r3.Vec) r3.Vec {
	return combine(c.Points, Weights(c.Type, pc))
}

func combine(pts []r3.Vec, w []float64) r3.Vec {
	var x r3.Vec
	for i, p := range pts {
		x = r3.Add(x, r3.Scale(w[i], p))
	}
	return x
}

// Centroid returns the world position of the parametric centre of c.
func Centroid(c mesh.Cell) r3.Vec {
	return Location(c, ParametricCenter(c.Type))
}

// InsideParametric reports whether pc lies in the parametric domain of t,
// widened by tol.
func InsideParametric(t mesh.CellType, pc r3.Vec, tol float64) bool {
	in := func(v float64) bool { return v >= -tol && v <= 1+tol }
	r, s, u := pc.X, pc.Y, pc.Z
	switch t {
	case mesh.Vertex:
		return true
	case mesh.Line:
		return in(r)
	case mesh.Triangle:
		return r >= -tol && s >= -tol && r+s <= 1+tol
	case mesh.Quad:
		return in(r) && in(s)
	case mesh.Tetra:
		return r >= -tol && s >= -tol && u >= -tol && r+s+u <= 1+tol
	case mesh.Hexahedron, mesh.Pyramid:
		return in(r) && in(s) && in(u)
	case mesh.Wedge:
		return r >= -tol && s >= -tol && r+s <= 1+tol && in(u)
	}
	return false
}
