package mesh

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/geom"
)

// Rectilinear is an axis-aligned grid given by its coordinates along each
// axis. Points are numbered x fastest, then y, then z; cells likewise.
// Axes with a single coordinate are degenerate and collapse the cell shape:
// voxels become quads, lines or a single vertex.
type Rectilinear struct {
	X, Y, Z []float64

	pointData *Attributes
	cellData  *Attributes
}

var _ DataSet = (*Rectilinear)(nil)

// NewRectilinear returns a grid over the given coordinates, each of which
// must hold at least one value.
func NewRectilinear(x, y, z []float64) *Rectilinear {
	return &Rectilinear{X: x, Y: y, Z: z, pointData: &Attributes{}, cellData: &Attributes{}}
}

// Dims returns the number of coordinates along each axis.
func (g *Rectilinear) Dims() (nx, ny, nz int) { return len(g.X), len(g.Y), len(g.Z) }

func cellCount(n int) int {
	if n > 1 {
		return n - 1
	}
	return 1
}

// CellDims returns the number of cells along each axis.
func (g *Rectilinear) CellDims() (cx, cy, cz int) {
	return cellCount(len(g.X)), cellCount(len(g.Y)), cellCount(len(g.Z))
}

func (g *Rectilinear) NumPoints() int { return len(g.X) * len(g.Y) * len(g.Z) }

func (g *Rectilinear) NumCells() int {
	if g.NumPoints() == 0 {
		return 0
	}
	cx, cy, cz := g.CellDims()
	return cx * cy * cz
}

func (g *Rectilinear) Point(i int) r3.Vec {
	nx, ny := len(g.X), len(g.Y)
	return r3.Vec{X: g.X[i%nx], Y: g.Y[(i/nx)%ny], Z: g.Z[i/(nx*ny)]}
}

func (g *Rectilinear) PointData() *Attributes { return g.pointData }
func (g *Rectilinear) CellData() *Attributes  { return g.cellData }

// cellIndex splits cell i into per-axis indices.
func (g *Rectilinear) cellIndex(i int) (ci, cj, ck int) {
	cx, cy, _ := g.CellDims()
	return i % cx, (i / cx) % cy, i / (cx * cy)
}

func (g *Rectilinear) pointIndex(i, j, k int) int {
	return i + len(g.X)*(j+len(g.Y)*k)
}

// Cell materialises cell i. Offsets run over the non-degenerate axes only,
// in VTK corner order.
func (g *Rectilinear) Cell(i int) Cell {
	ci, cj, ck := g.cellIndex(i)
	nx, ny, nz := g.Dims()

	var axes []int
	for a, n := range []int{nx, ny, nz} {
		if n > 1 {
			axes = append(axes, a)
		}
	}

	// Corner offsets in the active parametric axes.
	var corners [][3]int
	var t CellType
	switch len(axes) {
	case 3:
		t = Hexahedron
		corners = [][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}
	case 2:
		t = Quad
		corners = [][3]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	case 1:
		t = Line
		corners = [][3]int{{0}, {1}}
	default:
		t = Vertex
		corners = [][3]int{{}}
	}

	c := Cell{Type: t, IDs: make([]int, len(corners)), Points: make([]r3.Vec, len(corners))}
	for k, off := range corners {
		idx := [3]int{ci, cj, ck}
		for p, a := range axes {
			idx[a] += off[p]
		}
		id := g.pointIndex(idx[0], idx[1], idx[2])
		c.IDs[k] = id
		c.Points[k] = r3.Vec{X: g.X[idx[0]], Y: g.Y[idx[1]], Z: g.Z[idx[2]]}
	}
	return c
}

func span(coords []float64, i int) (float64, float64) {
	lo := coords[i]
	hi := lo
	if i+1 < len(coords) {
		hi = coords[i+1]
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

func (g *Rectilinear) CellBounds(i int) geom.Box {
	ci, cj, ck := g.cellIndex(i)
	var b geom.Box
	b.Min.X, b.Max.X = span(g.X, ci)
	b.Min.Y, b.Max.Y = span(g.Y, cj)
	b.Min.Z, b.Max.Z = span(g.Z, ck)
	return b
}

func (g *Rectilinear) Bounds() geom.Box {
	if g.NumPoints() == 0 {
		return geom.EmptyBox()
	}
	return geom.Box{
		Min: r3.Vec{X: floats.Min(g.X), Y: floats.Min(g.Y), Z: floats.Min(g.Z)},
		Max: r3.Vec{X: floats.Max(g.X), Y: floats.Max(g.Y), Z: floats.Max(g.Z)},
	}
}

func (g *Rectilinear) ShallowCopy() DataSet {
	return &Rectilinear{
		X: g.X, Y: g.Y, Z: g.Z,
		pointData: g.pointData.shallowCopy(),
		cellData:  g.cellData.shallowCopy(),
	}
}
