// Package samples holds the points a target mesh needs sampled, together
// with the value buffer filled in for them. Points come either as free
// lists (mesh nodes or cell centroids) or as rectilinear grids kept in
// coordinate-array form.
//
// A Set lives in one of two states. While Local it holds the caller's own
// points. Relocate moves it to Relocated, where it holds the points other
// ranks sent for evaluation here; Unrelocate returns the values to their
// origin and restores the Local points.
package samples

import (
	"errors"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/interpolation"
	"crossmesh/pkg/mesh"
)

// Missing marks, in the first component, a value no donor cell produced.
const Missing = math.MaxFloat64

var (
	ErrAlreadyRelocated = errors.New("samples: set is already relocated")
	ErrNotRelocated     = errors.New("samples: set is not relocated")
	ErrNotFinalized     = errors.New("samples: set changed since the last Finalize")
)

// State tells whose points a Set currently holds.
type State int

const (
	Local State = iota
	Relocated
)

func (s State) String() string {
	if s == Relocated {
		return "relocated"
	}
	return "local"
}

// Options configures a Set.
type Options struct {
	Log *logrus.Entry
}

// Set is the collection of sample points and their values.
type Set struct {
	nodal bool
	comps int
	log   *logrus.Entry

	lists [][]r3.Vec
	grids []Grid

	// Derived by Finalize. Lists come first, grids start at gridStart.
	start     []int
	mapTo     []int
	total     int
	gridStart int
	values    []float64
	stale     bool

	state State
	reloc *relocation
}

// relocation is present only while the Set is Relocated.
type relocation struct {
	lists    [][]r3.Vec
	grids    []Grid
	listFrom []int
	gridFrom []int
}

// New returns an empty Set sampling comps components per point, at nodes
// when nodal is set and at cell centers otherwise.
func New(nodal bool, comps int, opts Options) *Set {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if comps < 1 {
		comps = 1
	}
	return &Set{nodal: nodal, comps: comps, log: log.WithField("component", "samples"), stale: true}
}

// AddDataset appends the sample points of ds. Rectilinear grids are kept as
// coordinate arrays, at node positions or, for cell samples, at the
// midpoints between nodes. A single-coordinate axis keeps its coordinate.
func (s *Set) AddDataset(ds mesh.DataSet) {
	s.stale = true
	if g, ok := ds.(*mesh.Rectilinear); ok {
		if g.NumPoints() == 0 {
			s.lists = append(s.lists, nil)
			return
		}
		if s.nodal {
			s.grids = append(s.grids, Grid{
				X: append([]float64(nil), g.X...),
				Y: append([]float64(nil), g.Y...),
				Z: append([]float64(nil), g.Z...),
			})
		} else {
			s.grids = append(s.grids, Grid{X: midpoints(g.X), Y: midpoints(g.Y), Z: midpoints(g.Z)})
		}
		return
	}

	var pts []r3.Vec
	if s.nodal {
		pts = make([]r3.Vec, ds.NumPoints())
		for i := range pts {
			pts[i] = ds.Point(i)
		}
	} else {
		pts = make([]r3.Vec, ds.NumCells())
		for i := range pts {
			pts[i] = interpolation.Centroid(ds.Cell(i))
		}
	}
	s.lists = append(s.lists, pts)
}

func midpoints(c []float64) []float64 {
	if len(c) <= 1 {
		return append([]float64(nil), c...)
	}
	out := make([]float64, len(c)-1)
	for i := range out {
		out[i] = (c[i] + c[i+1]) / 2
	}
	return out
}

// Finalize rebuilds the index over the current points and allocates a
// zeroed value buffer.
func (s *Set) Finalize() {
	n := len(s.lists) + len(s.grids)
	s.start = make([]int, n)
	s.total = 0
	for i, l := range s.lists {
		s.start[i] = s.total
		s.total += len(l)
	}
	s.gridStart = s.total
	for i, g := range s.grids {
		s.start[len(s.lists)+i] = s.total
		s.total += g.NumPoints()
	}
	s.mapTo = make([]int, s.total)
	for ds := range s.start {
		end := s.total
		if ds+1 < n {
			end = s.start[ds+1]
		}
		for p := s.start[ds]; p < end; p++ {
			s.mapTo[p] = ds
		}
	}
	s.values = make([]float64, s.total*s.comps)
	s.stale = false
}

// State returns whose points the Set holds.
func (s *Set) State() State { return s.state }

// Nodal reports whether points are nodes rather than cell centers.
func (s *Set) Nodal() bool { return s.nodal }

// Components returns the number of values per point.
func (s *Set) Components() int { return s.comps }

// NumPoints returns the number of points as of the last Finalize.
func (s *Set) NumPoints() int { return s.total }

// NumDatasets returns the number of point lists plus grids as of the last
// Finalize.
func (s *Set) NumDatasets() int { return len(s.start) }

// GridStart returns the global index of the first grid point.
func (s *Set) GridStart() int { return s.gridStart }

// NumGrids returns the number of grids held.
func (s *Set) NumGrids() int { return len(s.grids) }

// Grid returns grid i.
func (s *Set) Grid(i int) Grid { return s.grids[i] }

// dataset resolves a global point index to its dataset and local index.
func (s *Set) dataset(p int) (ds, local int) {
	ds = s.mapTo[p]
	return ds, p - s.start[ds]
}

func (s *Set) mustBeCurrent() {
	if s.stale {
		panic(ErrNotFinalized)
	}
}

// Point returns global sample point p. It panics if the Set changed since
// the last Finalize.
func (s *Set) Point(p int) r3.Vec {
	s.mustBeCurrent()
	ds, local := s.dataset(p)
	if p < s.gridStart {
		return s.lists[ds][local]
	}
	return s.grids[ds-len(s.lists)].Point(local)
}

// SetValue stores v as the value of global point p.
func (s *Set) SetValue(p int, v []float64) {
	s.mustBeCurrent()
	copy(s.values[p*s.comps:(p+1)*s.comps], v)
}

// Value returns the value of point local in dataset ds.
func (s *Set) Value(ds, local int) []float64 {
	s.mustBeCurrent()
	i := (s.start[ds] + local) * s.comps
	return s.values[i : i+s.comps]
}

// Found reports whether the value of point local in dataset ds came from a
// donor cell.
func (s *Set) Found(ds, local int) bool {
	return s.Value(ds, local)[0] != Missing
}
