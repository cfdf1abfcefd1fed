package partition

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/internal/models"
	"crossmesh/pkg/geom"
	"crossmesh/pkg/samples"
)

// boundary is one box of space still to be shared among procs ranks. It
// keeps a histogram of the samples it holds along its split axis, with one
// bin below each pivot and a last bin above them all.
type boundary struct {
	box      geom.Box
	procs    int
	axis     models.Axis
	pivots   []float64
	counts   []int
	attempts int
	done     bool
}

func newBoundary(box geom.Box, procs int, axis models.Axis, npivots int) *boundary {
	b := &boundary{
		box:    box,
		procs:  procs,
		axis:   axis,
		pivots: make([]float64, npivots),
		counts: make([]int, npivots+1),
		done:   procs == 1,
	}
	lo := geom.Component(box.Min, int(axis))
	hi := geom.Component(box.Max, int(axis))
	b.spread(lo, hi)
	return b
}

// spread places the pivots evenly strictly inside [lo, hi] and clears the
// histogram.
func (b *boundary) spread(lo, hi float64) {
	step := (hi - lo) / float64(len(b.pivots)+1)
	for i := range b.pivots {
		b.pivots[i] = lo + float64(i+1)*step
	}
	for i := range b.counts {
		b.counts[i] = 0
	}
}

func (b *boundary) leaf() bool { return b.procs == 1 }

func (b *boundary) bin(v float64) int {
	for i, p := range b.pivots {
		if v < p {
			return i
		}
	}
	return len(b.pivots)
}

func (b *boundary) addPoint(p r3.Vec) {
	b.counts[b.bin(geom.Component(p, int(b.axis)))]++
}

// addGrid counts the grid points inside the box, a slab of them for each
// coordinate along the split axis.
func (b *boundary) addGrid(g samples.Grid) {
	ext, ok := samples.Subgrid(g, b.box)
	if !ok {
		return
	}
	nx, ny, nz := ext.Dims()
	var coords []float64
	var start, end, slab int
	switch b.axis {
	case models.X:
		coords, start, end, slab = g.X, ext[0], ext[1], ny*nz
	case models.Y:
		coords, start, end, slab = g.Y, ext[2], ext[3], nx*nz
	default:
		coords, start, end, slab = g.Z, ext[4], ext[5], nx*ny
	}
	for i := start; i <= end; i++ {
		b.counts[b.bin(coords[i])] += slab
	}
}

// attemptSplit tries to cut the box so the share of samples on the low side
// matches the share of ranks going there. It returns the two children on
// success; otherwise the pivots are narrowed around the ideal cut for the
// next round.
func (b *boundary) attemptSplit(opts Options, is2D bool) (lo, hi *boundary, ok bool) {
	procsLo := b.procs / 2
	procsHi := b.procs - procsLo
	want := float64(procsLo) / float64(b.procs)

	total := 0
	for _, n := range b.counts {
		total += n
	}

	best := len(b.pivots) / 2
	if total > 0 {
		closest := math.Inf(1)
		seen := 0
		for i := range b.pivots {
			seen += b.counts[i]
			if d := math.Abs(want - float64(seen)/float64(total)); d < closest {
				closest, best = d, i
			}
		}
		b.attempts++
		if closest >= opts.Tolerance && b.attempts <= opts.MaxAttempts {
			b.narrow(want, total)
			return nil, nil, false
		}
	}

	// An empty boundary is cut at its middle pivot so every rank still
	// receives a box.
	axis := int(b.axis)
	cut := math.Min(math.Max(b.pivots[best], geom.Component(b.box.Min, axis)), geom.Component(b.box.Max, axis))
	next := b.axis.Next(is2D)

	loBox, hiBox := b.box, b.box
	loBox.Max = geom.SetComponent(loBox.Max, axis, cut)
	hiBox.Min = geom.SetComponent(hiBox.Min, axis, cut)
	b.done = true
	return newBoundary(loBox, procsLo, next, opts.Pivots),
		newBoundary(hiBox, procsHi, next, opts.Pivots), true
}

// narrow moves the pivots into the bracket where the cumulative share
// first exceeds want.
func (b *boundary) narrow(want float64, total int) {
	n := len(b.pivots)
	first := -1
	seen := 0
	for i, c := range b.counts {
		seen += c
		if float64(seen)/float64(total) > want {
			first = i
			break
		}
	}
	width := b.pivots[1] - b.pivots[0]
	var lo, hi float64
	switch {
	case first <= 0:
		lo, hi = b.pivots[0]-width, b.pivots[0]
	case first >= n:
		lo, hi = b.pivots[n-1], b.pivots[n-1]+width
	default:
		lo, hi = b.pivots[first-1], b.pivots[first]
	}
	b.spread(lo, hi)
}
