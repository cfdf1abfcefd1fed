package samples

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/internal/models"
	"crossmesh/pkg/comm"
	"crossmesh/pkg/geom"
	"crossmesh/pkg/mesh"
)

// xSlabs gives rank r the slab cuts[r] <= x <= cuts[r+1].
type xSlabs struct{ cuts []float64 }

func (s xSlabs) box(r int) geom.Box {
	return geom.Box{
		Min: r3.Vec{X: s.cuts[r], Y: -10, Z: -10},
		Max: r3.Vec{X: s.cuts[r+1], Y: 10, Z: 10},
	}
}

func (s xSlabs) OwnerOf(p r3.Vec) int {
	for r := 0; r+1 < len(s.cuts); r++ {
		if s.box(r).Contains(p) {
			return r
		}
	}
	return NoOwner
}

func (s xSlabs) Boundaries(b geom.Box) ([]int, []geom.Box) {
	var ranks []int
	var boxes []geom.Box
	for r := 0; r+1 < len(s.cuts); r++ {
		if s.box(r).Overlaps(b) {
			ranks = append(ranks, r)
			boxes = append(boxes, s.box(r))
		}
	}
	return ranks, boxes
}

func TestAddRectilinear(t *testing.T) {
	g := mesh.NewRectilinear([]float64{0, 1, 3}, []float64{0, 2}, []float64{5})

	nodal := New(true, 1, Options{})
	nodal.AddDataset(g)
	nodal.Finalize()
	require.Equal(t, 1, nodal.NumGrids())
	assert.Equal(t, 6, nodal.NumPoints())
	assert.Equal(t, 0, nodal.GridStart())
	assert.Equal(t, r3.Vec{X: 3, Y: 2, Z: 5}, nodal.Point(5))

	zonal := New(false, 1, Options{})
	zonal.AddDataset(g)
	zonal.Finalize()
	grid := zonal.Grid(0)
	assert.Equal(t, []float64{0.5, 2}, grid.X)
	assert.Equal(t, []float64{1}, grid.Y)
	assert.Equal(t, []float64{5}, grid.Z)
	assert.Equal(t, g.NumCells(), zonal.NumPoints())
}

func TestAddUnstructured(t *testing.T) {
	u := mesh.NewUnstructured([]r3.Vec{{X: 0}, {X: 3}, {Y: 3}})
	u.AddCell(mesh.Triangle, 0, 1, 2)
	u.AddCell(mesh.Line, 0, 1)

	nodal := New(true, 2, Options{})
	nodal.AddDataset(u)
	nodal.AddDataset(mesh.NewRectilinear([]float64{7}, []float64{8}, []float64{9}))
	nodal.Finalize()
	assert.Equal(t, 4, nodal.NumPoints())
	assert.Equal(t, 3, nodal.GridStart())
	assert.Equal(t, 2, nodal.NumDatasets())
	assert.Equal(t, r3.Vec{X: 7, Y: 8, Z: 9}, nodal.Point(3))

	zonal := New(false, 1, Options{})
	zonal.AddDataset(u)
	zonal.Finalize()
	require.Equal(t, 2, zonal.NumPoints())
	c := zonal.Point(0)
	assert.InDelta(t, 1, c.X, 1e-12)
	assert.InDelta(t, 1, c.Y, 1e-12)
	assert.InDelta(t, 1.5, zonal.Point(1).X, 1e-12)
}

func TestValues(t *testing.T) {
	s := New(true, 2, Options{})
	s.AddDataset(mesh.NewUnstructured([]r3.Vec{{}, {X: 1}}))
	s.AddDataset(mesh.NewUnstructured([]r3.Vec{{Y: 1}}))
	s.Finalize()

	s.SetValue(2, []float64{4, 5})
	assert.Equal(t, []float64{4, 5}, s.Value(1, 0))
	assert.Equal(t, []float64{0, 0}, s.Value(0, 1))
	assert.True(t, s.Found(1, 0))

	s.SetValue(0, []float64{Missing, 0})
	assert.False(t, s.Found(0, 0))
}

func TestStaleIndexPanics(t *testing.T) {
	s := New(true, 1, Options{})
	s.AddDataset(mesh.NewUnstructured([]r3.Vec{{}}))
	assert.Panics(t, func() { s.Point(0) })
	s.Finalize()
	assert.NotPanics(t, func() { s.Point(0) })
}

func TestSubgrid(t *testing.T) {
	g := Grid{X: []float64{0, 1, 2, 3}, Y: []float64{0, 1}, Z: []float64{0}}
	ext, ok := Subgrid(g, geom.Box{Min: r3.Vec{X: 0.5, Y: -1, Z: -1}, Max: r3.Vec{X: 2, Y: 1, Z: 1}})
	require.True(t, ok)
	assert.Equal(t, models.IndexExtents{1, 2, 0, 1, 0, 0}, ext)
	assert.Equal(t, 4, ext.Count())

	// Everything below the box.
	_, ok = Subgrid(g, geom.Box{Min: r3.Vec{X: 5, Y: -1, Z: -1}, Max: r3.Vec{X: 6, Y: 1, Z: 1}})
	assert.False(t, ok)
	// Everything above it.
	_, ok = Subgrid(g, geom.Box{Min: r3.Vec{X: -6, Y: -1, Z: -1}, Max: r3.Vec{X: -5, Y: 1, Z: 1}})
	assert.False(t, ok)
}

func TestSubgridOverlapWithoutPoints(t *testing.T) {
	// The grid's bounds overlap the box, but no grid point lies inside.
	g := Grid{X: []float64{0, 10}, Y: []float64{0, 10}, Z: []float64{0}}
	b := geom.Box{Min: r3.Vec{X: 2, Y: 2, Z: -1}, Max: r3.Vec{X: 8, Y: 8, Z: 1}}
	require.True(t, g.Bounds().Overlaps(b))
	_, ok := Subgrid(g, b)
	assert.False(t, ok)
}

func TestStateTransitions(t *testing.T) {
	ctx := context.Background()
	part := xSlabs{cuts: []float64{0, 1}}
	s := New(true, 1, Options{})
	s.AddDataset(mesh.NewUnstructured([]r3.Vec{{X: 0.5}}))
	s.Finalize()

	assert.True(t, errors.Is(s.Unrelocate(ctx, comm.Self(), part), ErrNotRelocated))
	require.NoError(t, s.Relocate(ctx, comm.Self(), part))
	assert.Equal(t, Relocated, s.State())
	assert.True(t, errors.Is(s.Relocate(ctx, comm.Self(), part), ErrAlreadyRelocated))
	assert.True(t, errors.Is(s.Unrelocate(ctx, comm.Self(), part), ErrNotFinalized))

	s.Finalize()
	require.NoError(t, s.Unrelocate(ctx, comm.Self(), part))
	assert.Equal(t, Local, s.State())
}

func field(p r3.Vec) float64 { return p.X + 2*p.Y + 3*p.Z }

// rankSamples builds a per-rank set of free points, one of them outside
// every slab, and a grid spanning all slabs.
func rankSamples(rank int) *Set {
	s := New(true, 1, Options{})
	s.AddDataset(mesh.NewUnstructured([]r3.Vec{
		{X: 0.1 + float64(rank), Y: 0.3},
		{X: 2.7 - float64(rank)*0.5, Y: 0.7, Z: 0.2},
		{X: 100, Y: float64(rank)},
	}))
	s.AddDataset(mesh.NewRectilinear(
		[]float64{0, 0.5, 1, 1.5, 2, 2.5, 3},
		[]float64{0, 1},
		[]float64{0.5 + float64(rank)},
	))
	s.Finalize()
	return s
}

func snapshot(s *Set) []r3.Vec {
	out := make([]r3.Vec, s.NumPoints())
	for i := range out {
		out[i] = s.Point(i)
	}
	return out
}

func TestRoundTripRestoresPoints(t *testing.T) {
	part := xSlabs{cuts: []float64{0, 1, 2, 3}}
	err := comm.RunLocal(context.Background(), 3, func(ctx context.Context, c comm.Communicator) error {
		s := rankSamples(c.Rank())
		before := snapshot(s)
		n, nds := s.NumPoints(), s.NumDatasets()

		if err := s.Relocate(ctx, c, part); err != nil {
			return err
		}
		s.Finalize()
		if err := s.Unrelocate(ctx, c, part); err != nil {
			return err
		}

		if s.NumPoints() != n || s.NumDatasets() != nds {
			return fmt.Errorf("rank %d: %d points in %d datasets, want %d in %d",
				c.Rank(), s.NumPoints(), s.NumDatasets(), n, nds)
		}
		for i, p := range snapshot(s) {
			if p != before[i] {
				return fmt.Errorf("rank %d: point %d is %v, want %v", c.Rank(), i, p, before[i])
			}
			if v := s.values[i]; v != 0 {
				return fmt.Errorf("rank %d: point %d has value %v", c.Rank(), i, v)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRoundTripRoutesValues(t *testing.T) {
	part := xSlabs{cuts: []float64{0, 1, 2, 3}}
	err := comm.RunLocal(context.Background(), 3, func(ctx context.Context, c comm.Communicator) error {
		s := rankSamples(c.Rank())
		if err := s.Relocate(ctx, c, part); err != nil {
			return err
		}
		s.Finalize()

		// Every point evaluated here must lie in this rank's slab, apart
		// from the one no slab owns.
		for i := 0; i < s.NumPoints(); i++ {
			p := s.Point(i)
			if r := part.OwnerOf(p); r != NoOwner && !part.box(c.Rank()).Contains(p) {
				return fmt.Errorf("rank %d holds %v owned by %d", c.Rank(), p, r)
			}
			s.SetValue(i, []float64{field(p)})
		}

		if err := s.Unrelocate(ctx, c, part); err != nil {
			return err
		}
		for i := 0; i < s.NumPoints(); i++ {
			p := s.Point(i)
			if got := s.values[i]; got != field(p) {
				return fmt.Errorf("rank %d: point %d at %v has %v, want %v", c.Rank(), i, p, got, field(p))
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGridPiecesAreContiguous(t *testing.T) {
	part := xSlabs{cuts: []float64{0, 1, 2, 3, 4}}
	g := Grid{X: []float64{0.25, 0.75, 1.25, 1.75, 2.25, 2.75, 3.25, 3.75}, Y: []float64{0}, Z: []float64{0}}

	pieces := gridPieces(g, part, 0, 4)
	require.Len(t, pieces, 4)
	next := 0
	for r, pc := range pieces {
		assert.Equal(t, r, pc.rank)
		assert.Equal(t, next, pc.ext[0], "slab %d starts where the previous ended", r)
		assert.Equal(t, 2, pc.ext.Count())
		next = pc.ext[1] + 1
	}
	assert.Equal(t, len(g.X), next)
}
