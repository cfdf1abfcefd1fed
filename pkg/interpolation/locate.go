package interpolation

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/mesh"
)

// Options tunes parametric inversion.
type Options struct {
	// Tolerance widens the parametric domain and bounds the residual
	// distance, relative to the cell diagonal.
	Tolerance float64
	// MaxIterations caps the Newton steps per inversion.
	MaxIterations int
}

// DefaultOptions returns the tolerances used when none are configured.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-6, MaxIterations: 20}
}

const (
	convergence = 1e-12
	divergence  = 1e6
)

// Result is the outcome of locating a point in a cell.
type Result struct {
	Inside  bool
	PCoords r3.Vec
	Weights []float64
	// Dist2 is the squared distance between the point and its image at
	// PCoords.
	Dist2 float64
}

// Locate inverts the parametric map of c at x with Newton's method. The
// Jacobian is solved in the least-squares sense so line and surface cells
// embedded in 3D are handled by the same iteration.
func Locate(c mesh.Cell, x r3.Vec, opts Options) Result {
	n := len(c.Points)
	dim := c.Type.Dimension()
	res := Result{PCoords: ParametricCenter(c.Type), Weights: make([]float64, n)}

	scale := r3.Norm(c.Bounds().Size())
	if scale == 0 {
		scale = 1
	}
	limit := opts.Tolerance * scale

	if dim == 0 {
		res.Weights[0] = 1
		res.Dist2 = r3.Norm2(r3.Sub(x, c.Points[0]))
		res.Inside = res.Dist2 <= limit*limit
		return res
	}

	deriv := make([][3]float64, n)
	jac := mat.NewDense(3, dim, nil)
	rhs := mat.NewVecDense(3, nil)
	var step mat.VecDense

	for it := 0; it < opts.MaxIterations; it++ {
		shape(c.Type, res.PCoords, res.Weights, deriv)
		cur := combine(c.Points, res.Weights)
		diff := r3.Sub(x, cur)
		rhs.SetVec(0, diff.X)
		rhs.SetVec(1, diff.Y)
		rhs.SetVec(2, diff.Z)

		for col := 0; col < dim; col++ {
			var j r3.Vec
			for i, p := range c.Points {
				j = r3.Add(j, r3.Scale(deriv[i][col], p))
			}
			jac.Set(0, col, j.X)
			jac.Set(1, col, j.Y)
			jac.Set(2, col, j.Z)
		}
		if err := step.SolveVec(jac, rhs); err != nil {
			return res
		}

		maxStep := 0.0
		pc := [3]float64{res.PCoords.X, res.PCoords.Y, res.PCoords.Z}
		for col := 0; col < dim; col++ {
			dv := step.AtVec(col)
			pc[col] += dv
			maxStep = math.Max(maxStep, math.Abs(dv))
		}
		res.PCoords = r3.Vec{X: pc[0], Y: pc[1], Z: pc[2]}
		if math.Abs(pc[0]) > divergence || math.Abs(pc[1]) > divergence || math.Abs(pc[2]) > divergence {
			return res
		}
		if maxStep < convergence {
			break
		}
	}

	shape(c.Type, res.PCoords, res.Weights, nil)
	res.Dist2 = r3.Norm2(r3.Sub(x, combine(c.Points, res.Weights)))
	res.Inside = InsideParametric(c.Type, res.PCoords, opts.Tolerance) && res.Dist2 <= limit*limit
	return res
}

// hexFaces lists the hexahedron faces by their VTK point indices.
var hexFaces = [6][4]int{
	{0, 4, 7, 3}, {1, 2, 6, 5},
	{0, 1, 5, 4}, {3, 7, 6, 2},
	{0, 3, 2, 1}, {4, 5, 6, 7},
}

// HexContains tests x against the six face planes of a hexahedron given by
// its eight points. Each face's orientation is taken from the side the
// point mean lies on, so inverted cells are handled too.
func HexContains(pts []r3.Vec, x r3.Vec) bool {
	var center r3.Vec
	for _, p := range pts[:8] {
		center = r3.Add(center, p)
	}
	center = r3.Scale(1.0/8, center)

	for _, f := range hexFaces {
		origin := pts[f[0]]
		dir1 := r3.Sub(pts[f[1]], origin)
		dir2 := r3.Sub(origin, pts[f[3]])
		normal := r3.Cross(dir1, dir2)
		v1 := r3.Dot(normal, r3.Sub(x, origin))
		v2 := r3.Dot(normal, r3.Sub(center, origin))
		if v1*v2 < 0 {
			return false
		}
	}
	return true
}

// Contains reports whether x lies in c. Hexahedra use the face half-space
// test; every other type is inverted parametrically.
func Contains(c mesh.Cell, x r3.Vec, opts Options) bool {
	if c.Type == mesh.Hexahedron {
		return HexContains(c.Points, x)
	}
	return Locate(c, x, opts).Inside
}
