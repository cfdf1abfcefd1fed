// Package partition splits space into one axis-aligned box per rank so that
// every rank receives a similar share of the sample points and donor cells.
// Boxes are found by repeated two-way cuts whose positions are searched
// with a histogram over a few candidate pivots per round.
package partition

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/internal/models"
	"crossmesh/pkg/comm"
	"crossmesh/pkg/geom"
	"crossmesh/pkg/intervaltree"
	"crossmesh/pkg/mesh"
	"crossmesh/pkg/samples"
)

// NoOwner is returned by OwnerOf for a point outside every box.
const NoOwner = samples.NoOwner

// Status classifies the ownership of a cell's bounding box.
type Status int

const (
	// Owned means the box overlaps exactly one rank's box.
	Owned Status = iota
	// Ambiguous means it overlaps several; see OwnersOf.
	Ambiguous
	// Unowned means it overlaps none.
	Unowned
)

func (s Status) String() string {
	switch s {
	case Owned:
		return "owned"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unowned"
	}
}

// Options tunes the pivot search.
type Options struct {
	// Pivots is the number of candidate cut positions tried per round.
	Pivots int
	// Tolerance is how close the share of samples below a cut must be to
	// the share of ranks for the cut to be taken.
	Tolerance float64
	// MaxAttempts bounds the rounds spent on one cut; the best candidate
	// is taken once they are used up.
	MaxAttempts int
	Log         *logrus.Entry
}

// DefaultOptions returns the pivot search settings used when none are
// configured.
func DefaultOptions() Options {
	return Options{Pivots: 5, Tolerance: 0.02, MaxAttempts: 3}
}

// SampleSource is the read view of the sample points being partitioned.
type SampleSource interface {
	GridStart() int
	Point(i int) r3.Vec
	NumGrids() int
	Grid(i int) samples.Grid
}

// CellSource is the read view of the donor cells being partitioned.
type CellSource interface {
	Meshes() []mesh.DataSet
}

// Partition holds one box per rank.
type Partition struct {
	boxes []geom.Box
	tree  *intervaltree.Tree
	is2D  bool
}

// Create computes a partition of bounds over the ranks of c, weighing the
// free sample points, the grid sample points and the donor cell centers of
// every rank. Create is a collective call.
func Create(ctx context.Context, c comm.Communicator, pts SampleSource, cells CellSource, bounds geom.Box, opts Options) (*Partition, error) {
	def := DefaultOptions()
	if opts.Pivots < 2 {
		opts.Pivots = def.Pivots
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = def.MaxAttempts
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "partition")

	is2D := bounds.Min.Z == bounds.Max.Z
	if is2D {
		bounds.Min.Z--
		bounds.Max.Z++
	}

	if cells == nil {
		cells = noCells{}
	}
	size := c.Size()
	list := []*boundary{newBoundary(bounds, size, models.X, opts.Pivots)}
	rounds := 0
	for {
		var open []*boundary
		for _, b := range list {
			if !b.done {
				open = append(open, b)
			}
		}
		if len(open) == 0 {
			break
		}
		rounds++

		classify(open, pts, cells)

		hist := make([]int, 0, len(open)*(opts.Pivots+1))
		for _, b := range open {
			hist = append(hist, b.counts...)
		}
		sum, err := comm.SumInts(ctx, c, hist)
		if err != nil {
			return nil, fmt.Errorf("summing partition histograms: %w", err)
		}
		for i, b := range open {
			copy(b.counts, sum[i*(opts.Pivots+1):(i+1)*(opts.Pivots+1)])
		}

		for _, b := range open {
			if lo, hi, ok := b.attemptSplit(opts, is2D); ok {
				list = append(list, lo, hi)
			}
		}
	}

	p := &Partition{is2D: is2D, tree: intervaltree.New(size, 3)}
	for _, b := range list {
		if b.leaf() {
			p.tree.AddBox(len(p.boxes), b.box)
			p.boxes = append(p.boxes, b.box)
		}
	}
	if len(p.boxes) != size {
		return nil, fmt.Errorf("partition produced %d boxes for %d ranks", len(p.boxes), size)
	}
	p.tree.Build()

	log.WithFields(logrus.Fields{
		"ranks":  size,
		"rounds": rounds,
		"2d":     is2D,
	}).Debug("partition created")
	return p, nil
}

type noCells struct{}

func (noCells) Meshes() []mesh.DataSet { return nil }

// classify adds every local sample to the histograms of the open
// boundaries holding it.
func classify(open []*boundary, pts SampleSource, cells CellSource) {
	tree := intervaltree.New(len(open), 3)
	for i, b := range open {
		tree.AddBox(i, b.box)
	}
	tree.Build()

	if pts != nil {
		for i := 0; i < pts.GridStart(); i++ {
			p := pts.Point(i)
			for _, id := range tree.ElementsContaining(p) {
				open[id].addPoint(p)
			}
		}
		for i := 0; i < pts.NumGrids(); i++ {
			g := pts.Grid(i)
			for _, id := range tree.ElementsInBox(g.Bounds()) {
				open[id].addGrid(g)
			}
		}
	}
	for _, ds := range cells.Meshes() {
		for j := 0; j < ds.NumCells(); j++ {
			center := ds.CellBounds(j).Center()
			for _, id := range tree.ElementsContaining(center) {
				open[id].addPoint(center)
			}
		}
	}
}

// Size returns the number of boxes, one per rank.
func (p *Partition) Size() int { return len(p.boxes) }

// Is2D reports whether the partitioned bounds were flat in z.
func (p *Partition) Is2D() bool { return p.is2D }

// Box returns the box of rank r.
func (p *Partition) Box(r int) geom.Box { return p.boxes[r] }

// OwnerOf returns the rank whose box contains pt. A point on a face shared
// by several boxes goes to the lowest of their ranks.
func (p *Partition) OwnerOf(pt r3.Vec) int {
	owner := NoOwner
	for _, r := range p.tree.ElementsContaining(pt) {
		if owner == NoOwner || r < owner {
			owner = r
		}
	}
	return owner
}

// OwnersOf returns, in rank order, every rank whose box overlaps b.
func (p *Partition) OwnersOf(b geom.Box) []int {
	ranks := p.tree.ElementsInBox(b)
	sort.Ints(ranks)
	return ranks
}

// CellOwner returns the single rank whose box overlaps b. When b overlaps
// several boxes it returns NoOwner with Ambiguous, and with Unowned when it
// overlaps none.
func (p *Partition) CellOwner(b geom.Box) (int, Status) {
	ranks := p.tree.ElementsInBox(b)
	switch len(ranks) {
	case 0:
		return NoOwner, Unowned
	case 1:
		return ranks[0], Owned
	default:
		return NoOwner, Ambiguous
	}
}

// Boundaries returns the ranks whose boxes overlap b, in rank order, with
// their boxes.
func (p *Partition) Boundaries(b geom.Box) ([]int, []geom.Box) {
	ranks := p.OwnersOf(b)
	boxes := make([]geom.Box, len(ranks))
	for i, r := range ranks {
		boxes[i] = p.boxes[r]
	}
	return ranks, boxes
}
