package cmfe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/comm"
	"crossmesh/pkg/mesh"
)

func linear(p r3.Vec) float64 { return p.X + 2*p.Y + 3*p.Z }

func coords(lo, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func withNodal(ds mesh.DataSet, name string, f func(r3.Vec) float64) mesh.DataSet {
	arr := mesh.NewArray(name, 1, ds.NumPoints())
	for i := range arr.Data {
		arr.Data[i] = f(ds.Point(i))
	}
	ds.PointData().Add(arr)
	return ds
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "density", OutputName("pressure", "density"))
	assert.Equal(t, "pressureResult", OutputName("pressure", "pressure"))
}

// TestIdenticalHexes samples a field equal to the node index from one
// hexahedron onto an identical one.
func TestIdenticalHexes(t *testing.T) {
	build := func() *mesh.Rectilinear {
		g := mesh.NewRectilinear([]float64{0, 1}, []float64{0, 1}, []float64{0, 1})
		id := mesh.NewArray("id", 1, g.NumPoints())
		for i := range id.Data {
			id.Data[i] = float64(i)
		}
		g.PointData().Add(id)
		return g
	}
	source, target := build(), build()

	res, err := Evaluate(context.Background(), comm.Self(), target, source, Params{SourceVar: "id", TargetVar: "id"})
	require.NoError(t, err)
	assert.True(t, res.Nodal)
	assert.Equal(t, "idResult", res.OutputVar)
	assert.Equal(t, 8, res.Found)
	assert.Equal(t, 0, res.Fallback)

	out := res.Output.PointData().Get("idResult")
	require.NotNil(t, out)
	assert.Equal(t, source.PointData().Get("id").Data, out.Data)
	// The target itself is untouched.
	assert.False(t, target.PointData().Has("idResult"))
}

func TestOutsidePointFallsBack(t *testing.T) {
	source := withNodal(mesh.NewRectilinear(coords(0, 0.5, 3), coords(0, 0.5, 3), coords(0, 0.5, 3)), "f", linear)

	target := mesh.NewUnstructured([]r3.Vec{
		{X: 0.25, Y: 0.25, Z: 0.25},
		{X: 5, Y: 5, Z: 5},
		{X: 0.9, Y: 0.1, Z: 0.6},
	})
	prior := mesh.NewArray("f", 1, 3)
	copy(prior.Data, []float64{-1, -7, -1})
	target.PointData().Add(prior)

	res, err := Evaluate(context.Background(), comm.Self(), target, source, Params{SourceVar: "f", TargetVar: "f"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 1, res.Fallback)

	out := res.Output.PointData().Get("fResult").Data
	assert.InDelta(t, 1.5, out[0], 1e-9)
	assert.Equal(t, -7.0, out[1])
	assert.InDelta(t, linear(r3.Vec{X: 0.9, Y: 0.1, Z: 0.6}), out[2], 1e-9)
	for _, v := range out {
		assert.False(t, v == math.MaxFloat64)
	}
}

func TestFallbackMissing(t *testing.T) {
	source := withNodal(mesh.NewRectilinear([]float64{0, 1}, []float64{0, 1}, []float64{0, 1}), "f", linear)
	target := mesh.NewUnstructured([]r3.Vec{{X: 3, Y: 3, Z: 3}})

	_, err := Evaluate(context.Background(), comm.Self(), target, source, Params{SourceVar: "f", TargetVar: "g"})
	assert.True(t, errors.Is(err, ErrFallbackMissing), "got %v", err)
}

func TestZonalSampling(t *testing.T) {
	source := mesh.NewRectilinear([]float64{0, 1, 2}, []float64{0, 1}, []float64{0, 1})
	zone := mesh.NewArray("zone", 1, source.NumCells())
	copy(zone.Data, []float64{10, 20})
	source.CellData().Add(zone)

	target := mesh.NewUnstructured([]r3.Vec{
		{X: 0.2, Y: 0.2, Z: 0.5}, {X: 0.8, Y: 0.2, Z: 0.5}, {X: 0.5, Y: 0.8, Z: 0.5},
		{X: 1.2, Y: 0.2, Z: 0.5}, {X: 1.8, Y: 0.2, Z: 0.5}, {X: 1.5, Y: 0.8, Z: 0.5},
	})
	target.AddCell(mesh.Triangle, 0, 1, 2)
	target.AddCell(mesh.Triangle, 3, 4, 5)

	res, err := Evaluate(context.Background(), comm.Self(), target, source, Params{SourceVar: "zone", TargetVar: "result"})
	require.NoError(t, err)
	assert.False(t, res.Nodal)
	out := res.Output.CellData().Get("result")
	require.NotNil(t, out)
	assert.Equal(t, []float64{10, 20}, out.Data)
}

func TestVariableNotFoundOnEveryRank(t *testing.T) {
	var mu sync.Mutex
	errs := make(map[int]error)
	_ = comm.RunLocal(context.Background(), 3, func(ctx context.Context, c comm.Communicator) error {
		source := mesh.NewRectilinear([]float64{0, 1}, []float64{0, 1}, []float64{0, 1})
		target := mesh.NewUnstructured([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})
		_, err := Evaluate(ctx, c, target, source, Params{SourceVar: "missing", TargetVar: "t"})
		mu.Lock()
		errs[c.Rank()] = err
		mu.Unlock()
		// Returning the error would cancel ranks still in a collective.
		return nil
	})
	require.Len(t, errs, 3)
	for r, err := range errs {
		assert.True(t, errors.Is(err, ErrVariableNotFound), "rank %d: %v", r, err)
	}
}

// sourceSlab returns rank r's slab of a 10x4x4-cell grid over the unit
// cube, split along x, carrying the linear field.
func sourceSlab(r int) mesh.DataSet {
	cuts := []int{0, 3, 5, 8, 10}
	x := make([]float64, 0, 4)
	for i := cuts[r]; i <= cuts[r+1]; i++ {
		x = append(x, float64(i)/10)
	}
	yz := []float64{0, 0.25, 0.5, 0.75, 1}
	return withNodal(mesh.NewRectilinear(x, yz, yz), "f", linear)
}

// targetSlab returns rank r's slab of a target grid split along y, so most
// of its points sit on other ranks' source slabs.
func targetSlab(r int) mesh.DataSet {
	y := coords(0.05+0.225*float64(r), 0.045, 6)
	g := mesh.NewRectilinear(coords(0.05, 0.09, 11), y, []float64{0.1, 0.5, 0.9})
	return withNodal(g, "f", func(r3.Vec) float64 { return -1 })
}

func TestDistributedEvaluation(t *testing.T) {
	const n = 4
	var mu sync.Mutex
	results := make(map[int]*Result)

	err := comm.RunLocal(context.Background(), n, func(ctx context.Context, c comm.Communicator) error {
		target := targetSlab(c.Rank())
		var last int
		res, err := Evaluate(ctx, c, target, sourceSlab(c.Rank()), Params{
			SourceVar:     "f",
			TargetVar:     "f",
			OutputVar:     "sampled",
			ReportBalance: true,
			Progress:      func(done, total int, _ string) { last = done },
		})
		if err != nil {
			return err
		}
		out := res.Output.PointData().Get("sampled")
		if out == nil {
			return fmt.Errorf("rank %d: no output array", c.Rank())
		}
		for i := 0; i < target.NumPoints(); i++ {
			want := linear(target.Point(i))
			if math.Abs(out.Data[i]-want) > 1e-9 {
				return fmt.Errorf("rank %d: point %d at %v got %v, want %v",
					c.Rank(), i, target.Point(i), out.Data[i], want)
			}
		}
		if last == 0 && target.NumPoints() > 0 {
			return fmt.Errorf("rank %d: progress never reported", c.Rank())
		}
		mu.Lock()
		results[c.Rank()] = res
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for r := 0; r < n; r++ {
		res := results[r]
		require.NotNil(t, res)
		assert.Equal(t, 11*6*3, res.Found, "rank %d", r)
		assert.Equal(t, 0, res.Fallback, "rank %d", r)
		require.NotNil(t, res.Balance)
		assert.Len(t, res.Balance.Counts, n)
		assert.Equal(t, results[0].Bounds, res.Bounds)
	}
}

func TestEmptyFragmentsAgree(t *testing.T) {
	// Only rank 0 holds data; the others pass empty fragments and must
	// still make the same collective calls.
	var mu sync.Mutex
	found := make(map[int]int)
	err := comm.RunLocal(context.Background(), 3, func(ctx context.Context, c comm.Communicator) error {
		source := mesh.DataSet(mesh.NewUnstructured(nil))
		target := mesh.DataSet(mesh.NewUnstructured(nil))
		if c.Rank() == 0 {
			source = withNodal(mesh.NewRectilinear([]float64{0, 1}, []float64{0, 1}, []float64{0, 1}), "f", linear)
			target = mesh.NewUnstructured([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.1, Y: 0.9, Z: 0.3}})
		}
		res, err := Evaluate(ctx, c, target, source, Params{SourceVar: "f", TargetVar: "f"})
		if err != nil {
			return err
		}
		mu.Lock()
		found[c.Rank()] = res.Found
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2, 1: 0, 2: 0}, found)
}
