package partition

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"crossmesh/pkg/comm"
	"crossmesh/pkg/samples"
)

// Report summarises how many sample points each box holds across all ranks.
type Report struct {
	Counts []int
	Mean   float64
	StdDev float64
	// Imbalance is the largest count over the mean; 1 is perfect.
	Imbalance float64
}

// Balance counts the sample points of pts per box, summed over every rank.
// Free points count for their owner only; grid points count for every box
// holding them. Balance is a collective call.
func (p *Partition) Balance(ctx context.Context, c comm.Communicator, pts SampleSource, log *logrus.Entry) (Report, error) {
	counts := make([]int, p.Size())
	for i := 0; i < pts.GridStart(); i++ {
		if r := p.OwnerOf(pts.Point(i)); r != NoOwner {
			counts[r]++
		}
	}
	for i := 0; i < pts.NumGrids(); i++ {
		g := pts.Grid(i)
		ranks, boxes := p.Boundaries(g.Bounds())
		for j, r := range ranks {
			if ext, ok := samples.Subgrid(g, boxes[j]); ok {
				counts[r] += ext.Count()
			}
		}
	}

	total, err := comm.SumInts(ctx, c, counts)
	if err != nil {
		return Report{}, fmt.Errorf("summing balance counts: %w", err)
	}

	rep := Report{Counts: total}
	xs := make([]float64, len(total))
	highest := 0.0
	for i, n := range total {
		xs[i] = float64(n)
		if xs[i] > highest {
			highest = xs[i]
		}
	}
	rep.Mean, rep.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		rep.StdDev = 0
	}
	if rep.Mean > 0 {
		rep.Imbalance = highest / rep.Mean
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"mean":      rep.Mean,
			"stddev":    rep.StdDev,
			"imbalance": rep.Imbalance,
		}).Info("partition balance")
	}
	return rep, nil
}
