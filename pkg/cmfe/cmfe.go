// Package cmfe evaluates a field defined on one mesh at the sample points of
// another, when every rank holds only a fragment of each mesh.
//
// Evaluate is a collective call: every rank of the communicator must call
// it with its own fragments, and every rank runs the same sequence of
// exchanges whatever its local data looks like.
package cmfe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"crossmesh/pkg/comm"
	"crossmesh/pkg/geom"
	"crossmesh/pkg/interpolation"
	"crossmesh/pkg/lookup"
	"crossmesh/pkg/mesh"
	"crossmesh/pkg/partition"
	"crossmesh/pkg/samples"
)

var (
	// ErrVariableNotFound is returned on every rank when no rank's source
	// fragment carries the source variable.
	ErrVariableNotFound = errors.New("cmfe: source variable not found on any rank")
	// ErrFallbackMissing is returned when some sample had no donor cell and
	// the target carries no usable fallback array.
	ErrFallbackMissing = errors.New("cmfe: fallback variable missing on target")
)

// ProgressFunc is called as samples are evaluated.
type ProgressFunc func(completed, total int, message string)

// Params names the variables involved and tunes the engine.
type Params struct {
	// SourceVar is sampled from the source mesh.
	SourceVar string
	// TargetVar is the target array whose values are kept where no donor
	// cell exists.
	TargetVar string
	// OutputVar names the array added to the output. Empty means
	// OutputName(SourceVar, TargetVar).
	OutputVar string

	Partition     partition.Options
	Interpolation interpolation.Options
	// ReportBalance computes a partition balance report, at the cost of
	// one more collective call.
	ReportBalance bool

	Log      *logrus.Entry
	Progress ProgressFunc
}

// Result is the outcome of Evaluate on one rank.
type Result struct {
	// Output is a shallow copy of the target with the sampled array added.
	Output     mesh.DataSet
	OutputVar  string
	Nodal      bool
	Components int
	// Found counts local output values taken from a donor cell, Fallback
	// those copied from the target.
	Found    int
	Fallback int
	Bounds   geom.Box
	Balance  *partition.Report
}

// OutputName returns the name of the output array: the target variable,
// suffixed when it would collide with the source variable.
func OutputName(sourceVar, targetVar string) string {
	if targetVar == sourceVar {
		return targetVar + "Result"
	}
	return targetVar
}

// Location of a variable on a fragment, ordered so the max across ranks
// prefers point data.
const (
	absent = iota
	zonal
	nodal
)

func probe(ds mesh.DataSet, name string) (loc, comps int) {
	if ds == nil {
		return absent, 0
	}
	if a := ds.PointData().Get(name); a != nil {
		return nodal, a.Components
	}
	if a := ds.CellData().Get(name); a != nil {
		return zonal, a.Components
	}
	return absent, 0
}

type phase struct {
	log   *logrus.Entry
	name  string
	start time.Time
}

func begin(log *logrus.Entry, name string) phase {
	return phase{log: log, name: name, start: time.Now()}
}

func (p phase) end() {
	p.log.WithField("elapsed", time.Since(p.start).Round(time.Microsecond)).Info(p.name)
}

// Evaluate samples p.SourceVar from the source fragment at the points of
// the target fragment, nodes or cell centers depending on where the
// variable lives, and returns the target with the values added.
func Evaluate(ctx context.Context, c comm.Communicator, target, source mesh.DataSet, p Params) (*Result, error) {
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("rank", c.Rank())
	if p.Interpolation.MaxIterations == 0 {
		p.Interpolation = interpolation.DefaultOptions()
	}
	outName := p.OutputVar
	if outName == "" {
		outName = OutputName(p.SourceVar, p.TargetVar)
	}

	loc, comps := probe(source, p.SourceVar)
	loc, err := comm.MaxInt(ctx, c, loc)
	if err != nil {
		return nil, fmt.Errorf("agreeing on variable location: %w", err)
	}
	comps, err = comm.MaxInt(ctx, c, comps)
	if err != nil {
		return nil, fmt.Errorf("agreeing on variable components: %w", err)
	}
	if loc == absent || comps < 1 {
		return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, p.SourceVar)
	}
	isNodal := loc == nodal
	log.WithFields(logrus.Fields{
		"variable":   p.SourceVar,
		"nodal":      isNodal,
		"components": comps,
	}).Debug("source variable located")

	group := lookup.New(p.SourceVar, isNodal, lookup.Options{Interpolation: p.Interpolation, Log: log})
	if source != nil {
		if err := group.AddMesh(source); err != nil {
			return nil, err
		}
	}
	set := samples.New(isNodal, comps, samples.Options{Log: log})
	set.AddDataset(target)
	set.Finalize()

	ph := begin(log, "bounds unified")
	local := target.Bounds()
	if source != nil {
		local = local.Union(source.Bounds())
	}
	ext := local.Extents()
	unified, err := comm.UnifyMinMax(ctx, c, ext[:])
	if err != nil {
		return nil, fmt.Errorf("unifying bounds: %w", err)
	}
	bounds := geom.BoxFromExtents(unified)
	if bounds.IsEmpty() {
		bounds = geom.UnitBox()
	}
	ph.end()

	ph = begin(log, "partition created")
	popts := p.Partition
	popts.Log = log
	part, err := partition.Create(ctx, c, set, group, bounds, popts)
	if err != nil {
		return nil, fmt.Errorf("creating partition: %w", err)
	}
	ph.end()

	res := &Result{OutputVar: outName, Nodal: isNodal, Components: comps, Bounds: bounds}
	if p.ReportBalance {
		rep, err := part.Balance(ctx, c, set, log)
		if err != nil {
			return nil, err
		}
		res.Balance = &rep
	}

	ph = begin(log, "data relocated")
	if err := set.Relocate(ctx, c, part); err != nil {
		return nil, err
	}
	if err := group.Relocate(ctx, c, part); err != nil {
		return nil, err
	}
	group.Finalize()
	set.Finalize()
	ph.end()

	ph = begin(log, "samples evaluated")
	n := set.NumPoints()
	every := n / 100
	if every < 1 {
		every = 1
	}
	val := make([]float64, comps)
	for i := 0; i < n; i++ {
		if !group.Evaluate(set.Point(i), val) {
			for k := range val {
				val[k] = 0
			}
			val[0] = samples.Missing
		}
		set.SetValue(i, val)
		if p.Progress != nil && ((i+1)%every == 0 || i+1 == n) {
			p.Progress(i+1, n, "evaluating samples")
		}
	}
	ph.end()

	ph = begin(log, "values returned")
	if err := set.Unrelocate(ctx, c, part); err != nil {
		return nil, err
	}
	ph.end()

	// No collective call follows; local failures are safe to return now.
	numValues := target.NumCells()
	if isNodal {
		numValues = target.NumPoints()
	}
	fallback := target.PointData().Get(p.TargetVar)
	if fallback == nil {
		fallback = target.CellData().Get(p.TargetVar)
	}

	arr := mesh.NewArray(outName, comps, numValues)
	for i := 0; i < numValues; i++ {
		if v := set.Value(0, i); v[0] != samples.Missing {
			arr.SetTuple(i, v)
			res.Found++
			continue
		}
		if fallback == nil || i >= fallback.Len() {
			return nil, fmt.Errorf("%w: %q has no value for sample %d", ErrFallbackMissing, p.TargetVar, i)
		}
		fb := fallback.Tuple(i)
		if len(fb) > comps {
			fb = fb[:comps]
		}
		arr.SetTuple(i, fb)
		res.Fallback++
	}

	out := target.ShallowCopy()
	if isNodal {
		out.PointData().Add(arr)
	} else {
		out.CellData().Add(arr)
	}
	res.Output = out

	log.WithFields(logrus.Fields{
		"output":   outName,
		"found":    res.Found,
		"fallback": res.Fallback,
	}).Info("cross-mesh evaluation complete")
	return res, nil
}
