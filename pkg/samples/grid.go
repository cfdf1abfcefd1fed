package samples

import (
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/internal/models"
	"crossmesh/pkg/geom"
)

// Grid is a rectilinear set of sample points, x fastest.
type Grid struct {
	X, Y, Z []float64
}

// NumPoints returns the number of grid points.
func (g Grid) NumPoints() int { return len(g.X) * len(g.Y) * len(g.Z) }

// Point returns grid point i.
func (g Grid) Point(i int) r3.Vec {
	nx, ny := len(g.X), len(g.Y)
	return r3.Vec{X: g.X[i%nx], Y: g.Y[(i/nx)%ny], Z: g.Z[i/(nx*ny)]}
}

// Bounds returns the box spanned by the first and last coordinates.
func (g Grid) Bounds() geom.Box {
	return geom.Box{
		Min: r3.Vec{X: g.X[0], Y: g.Y[0], Z: g.Z[0]},
		Max: r3.Vec{X: g.X[len(g.X)-1], Y: g.Y[len(g.Y)-1], Z: g.Z[len(g.Z)-1]},
	}
}

// Sub returns the grid restricted to ext.
func (g Grid) Sub(ext models.IndexExtents) Grid {
	cp := func(c []float64, lo, hi int) []float64 {
		return append([]float64(nil), c[lo:hi+1]...)
	}
	return Grid{X: cp(g.X, ext[0], ext[1]), Y: cp(g.Y, ext[2], ext[3]), Z: cp(g.Z, ext[4], ext[5])}
}

func clip(c []float64, lo, hi float64) (start, end int) {
	for start < len(c) && c[start] < lo {
		start++
	}
	end = len(c) - 1
	for end >= 0 && c[end] > hi {
		end--
	}
	return start, end
}

// Subgrid returns the index range of the coordinates of g lying inside the
// closed box b. It reports false when no grid point does, which can happen
// even when g's bounds overlap b.
func Subgrid(g Grid, b geom.Box) (models.IndexExtents, bool) {
	var ext models.IndexExtents
	axes := [3][]float64{g.X, g.Y, g.Z}
	for a, c := range axes {
		lo, hi := geom.Component(b.Min, a), geom.Component(b.Max, a)
		start, end := clip(c, lo, hi)
		if end < start {
			return ext, false
		}
		ext[2*a], ext[2*a+1] = start, end
	}
	return ext, true
}
