// Package scene builds the synthetic inputs the crossmesh CLI evaluates:
// per-rank slabs of regular meshes and analytic fields sampled onto them.
package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/internal/models"
	"crossmesh/pkg/config"
	"crossmesh/pkg/mesh"
)

// lattice returns the n+1 coordinates splitting [lo,hi] into n cells, or
// just lo when n is zero.
func lattice(lo, hi float64, n int) []float64 {
	if n == 0 {
		return []float64{lo}
	}
	out := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n] = hi
	return out
}

// slab is the share of a split axis held by one rank, in cell indices.
// [own0,own1) is owned; [lo,hi) adds the ghost layers.
type slab struct {
	lo, hi     int
	own0, own1 int
}

func (s slab) empty() bool { return s.own0 >= s.own1 }

func (s slab) ghost(i int) bool { return i < s.own0 || i >= s.own1 }

func split(n, ghosts, rank, size int) slab {
	s := slab{own0: rank * n / size, own1: (rank + 1) * n / size}
	s.lo, s.hi = max(0, s.own0-ghosts), min(n, s.own1+ghosts)
	return s
}

// Fragment returns rank's slab of the mesh described by ms. Meshes are
// cut along ms.SplitAxis into size slabs of near-equal cell counts; a
// rank left without cells gets an empty data set. Ghost layers are flagged
// in mesh.GhostArray.
func Fragment(ms config.MeshSpec, rank, size int) (mesh.DataSet, error) {
	axis, err := models.ParseAxis(ms.SplitAxis)
	if err != nil {
		return nil, err
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("scene: rank %d out of range for %d ranks", rank, size)
	}

	var coords [3][]float64
	for a := 0; a < 3; a++ {
		coords[a] = lattice(ms.Min[a], ms.Max[a], ms.Cells[a])
	}

	if ms.Kind == "points" {
		return pointSlab(coords, axis, rank, size), nil
	}

	// A flat axis cannot be cut; rank 0 holds everything.
	s := slab{hi: 1, own1: 1}
	if ms.Cells[axis] > 0 {
		s = split(ms.Cells[axis], ms.GhostLayers, rank, size)
	} else if rank > 0 {
		return empty(ms.Kind), nil
	}
	if s.empty() {
		return empty(ms.Kind), nil
	}
	if ms.Cells[axis] > 0 {
		coords[axis] = coords[axis][s.lo : s.hi+1]
	}
	// Work in slab-local cell indices from here on.
	s.own0 -= s.lo
	s.own1 -= s.lo

	var ds mesh.DataSet
	switch ms.Kind {
	case "rectilinear":
		ds = mesh.NewRectilinear(coords[0], coords[1], coords[2])
	case "hexahedra", "tetrahedra":
		for a := 0; a < 3; a++ {
			if ms.Cells[a] == 0 {
				return nil, fmt.Errorf("scene: %s need cells on every axis, %v has none", ms.Kind, models.Axis(a))
			}
		}
		ds = solid(coords, ms.Kind == "tetrahedra")
	default:
		return nil, fmt.Errorf("scene: unknown mesh kind %q", ms.Kind)
	}
	if ms.Cells[axis] > 0 && ms.GhostLayers > 0 {
		markSlabGhosts(ds, coords, axis, s, ms.Kind == "tetrahedra")
	}
	return ds, nil
}

func empty(kind string) mesh.DataSet {
	if kind == "rectilinear" {
		return mesh.NewRectilinear(nil, nil, nil)
	}
	return mesh.NewUnstructured(nil)
}

func pointSlab(coords [3][]float64, axis models.Axis, rank, size int) mesh.DataSet {
	c := coords
	n := len(c[axis])
	c[axis] = c[axis][rank*n/size : (rank+1)*n/size]
	var pts []r3.Vec
	for _, z := range c[2] {
		for _, y := range c[1] {
			for _, x := range c[0] {
				pts = append(pts, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return mesh.NewUnstructured(pts)
}

// hexCorners are the lattice offsets of a hexahedron in VTK order.
var hexCorners = [8][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}

// hexTets splits a hexahedron into six tetrahedra around its 0-6 diagonal.
// Every cell uses the same diagonal so neighbouring faces conform.
var hexTets = [6][4]int{{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6}, {0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6}}

// solid builds an unstructured mesh over the lattice, cells numbered x
// fastest like a rectilinear grid and, for tetrahedra, six per lattice cell.
func solid(coords [3][]float64, tets bool) *mesh.Unstructured {
	nx, ny, nz := len(coords[0]), len(coords[1]), len(coords[2])
	pts := make([]r3.Vec, 0, nx*ny*nz)
	for _, z := range coords[2] {
		for _, y := range coords[1] {
			for _, x := range coords[0] {
				pts = append(pts, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	u := mesh.NewUnstructured(pts)
	id := func(i, j, k int) int { return i + nx*(j+ny*k) }
	for k := 0; k < nz-1; k++ {
		for j := 0; j < ny-1; j++ {
			for i := 0; i < nx-1; i++ {
				var ids [8]int
				for c, off := range hexCorners {
					ids[c] = id(i+off[0], j+off[1], k+off[2])
				}
				if !tets {
					u.AddCell(mesh.Hexahedron, ids[:]...)
					continue
				}
				for _, t := range hexTets {
					u.AddCell(mesh.Tetra, ids[t[0]], ids[t[1]], ids[t[2]], ids[t[3]])
				}
			}
		}
	}
	return u
}

// markSlabGhosts flags every cell whose split-axis index falls outside the
// owned range of s.
func markSlabGhosts(ds mesh.DataSet, coords [3][]float64, axis models.Axis, s slab, tets bool) {
	var cells [3]int
	for a := 0; a < 3; a++ {
		cells[a] = max(1, len(coords[a])-1)
	}
	per := 1
	if tets {
		per = len(hexTets)
	}
	var ghosts []int
	for c := 0; c < ds.NumCells(); c++ {
		l := c / per
		idx := [3]int{l % cells[0], (l / cells[0]) % cells[1], l / (cells[0] * cells[1])}
		if s.ghost(idx[axis]) {
			ghosts = append(ghosts, c)
		}
	}
	mesh.MarkGhosts(ds, ghosts...)
}

// Build assembles rank's share of the configured scene: the source slab
// carrying the analytic field as SourceVar, and the target slab carrying
// TargetVar filled with the fallback value.
func Build(cfg *config.Config, rank, size int) (target, source mesh.DataSet, field *Field, err error) {
	sc := cfg.Scene
	field, err = NewField(sc.Field)
	if err != nil {
		return nil, nil, nil, err
	}
	source, err = Fragment(sc.Source, rank, size)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("source: %w", err)
	}
	target, err = Fragment(sc.Target, rank, size)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("target: %w", err)
	}
	if err := AddField(source, sc.SourceVar, sc.Nodal, field); err != nil {
		return nil, nil, nil, err
	}
	AddConstant(target, sc.TargetVar, sc.Nodal, sc.Fallback)
	return target, source, field, nil
}
