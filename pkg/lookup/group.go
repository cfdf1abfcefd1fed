// Package lookup answers which donor cell contains a point, and what the
// source field's value is there, across a set of mesh fragments.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/comm"
	"crossmesh/pkg/geom"
	"crossmesh/pkg/interpolation"
	"crossmesh/pkg/intervaltree"
	"crossmesh/pkg/mesh"
	"crossmesh/pkg/redistribute"
)

// ErrFinalized is returned by AddMesh once the group's index has been built.
var ErrFinalized = errors.New("lookup: group already finalized")

// Partition tells which ranks need a cell with the given bounds.
type Partition interface {
	OwnersOf(b geom.Box) []int
}

// Options configures a Group.
type Options struct {
	Interpolation interpolation.Options
	Log           *logrus.Entry
}

// Group is a collection of mesh fragments with one index over the bounding
// boxes of all their cells.
type Group struct {
	varName string
	nodal   bool
	opts    Options
	log     *logrus.Entry

	meshes []mesh.DataSet

	// Global cell i lives in meshes[meshOf[i]] at local index
	// i - start[meshOf[i]].
	tree     *intervaltree.Tree
	meshOf   []int
	start    []int
	numCells int

	lastHit   []int
	finalized bool
}

// New returns an empty group sampling varName, as a point array when nodal
// is set and as a cell array otherwise.
func New(varName string, nodal bool, opts Options) *Group {
	if opts.Interpolation.MaxIterations == 0 {
		opts.Interpolation = interpolation.DefaultOptions()
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Group{
		varName: varName,
		nodal:   nodal,
		opts:    opts,
		log:     log.WithField("component", "lookup"),
	}
}

// VarName returns the sampled variable.
func (g *Group) VarName() string { return g.varName }

// Nodal reports whether the variable is sampled from point data.
func (g *Group) Nodal() bool { return g.nodal }

// AddMesh adds a fragment. Fragments are not deduplicated.
func (g *Group) AddMesh(ds mesh.DataSet) error {
	if g.finalized {
		return ErrFinalized
	}
	g.meshes = append(g.meshes, ds)
	return nil
}

// Meshes returns the current fragments.
func (g *Group) Meshes() []mesh.DataSet { return g.meshes }

// NumCells returns the cell count across fragments as of the last Finalize.
func (g *Group) NumCells() int { return g.numCells }

// Finalized reports whether the index is built.
func (g *Group) Finalized() bool { return g.finalized }

// ClearAllInputMeshes drops every fragment and the index so new fragments
// can be added.
func (g *Group) ClearAllInputMeshes() {
	g.meshes = nil
	g.tree = nil
	g.meshOf = nil
	g.start = nil
	g.numCells = 0
	g.lastHit = nil
	g.finalized = false
}

// Finalize builds the cell index. With no cells at all the index holds a
// single unit box placeholder that no lookup ever resolves to.
func (g *Group) Finalize() {
	g.start = make([]int, len(g.meshes))
	g.numCells = 0
	for i, ds := range g.meshes {
		g.start[i] = g.numCells
		g.numCells += ds.NumCells()
	}

	slots := g.numCells
	if slots == 0 {
		slots = 1
	}
	g.tree = intervaltree.New(slots, 3)
	g.meshOf = make([]int, g.numCells)
	id := 0
	for i, ds := range g.meshes {
		for j := 0; j < ds.NumCells(); j++ {
			g.tree.AddBox(id, ds.CellBounds(j))
			g.meshOf[id] = i
			id++
		}
	}
	if g.numCells == 0 {
		g.tree.AddBox(0, geom.UnitBox())
	}
	g.tree.Build()
	g.lastHit = nil
	g.finalized = true

	g.log.WithFields(logrus.Fields{
		"meshes": len(g.meshes),
		"cells":  g.numCells,
	}).Debug("cell index built")
}

// Evaluate writes the variable's value at p into out and reports whether a
// donor cell was found. The candidates of the previous successful call are
// tried before the index is queried.
func (g *Group) Evaluate(p r3.Vec, out []float64) bool {
	if !g.finalized || g.numCells == 0 {
		return false
	}
	if len(g.lastHit) > 0 && g.EvaluateUsingList(g.lastHit, p, out) {
		return true
	}
	list := g.tree.ElementsContaining(p)
	if g.EvaluateUsingList(list, p, out) {
		g.lastHit = list
		return true
	}
	g.lastHit = nil
	return false
}

// EvaluateUsingList tries each global cell in list as the donor for p.
// Ghost cells are skipped. A donor mesh lacking the variable ends the
// search as a miss.
func (g *Group) EvaluateUsingList(list []int, p r3.Vec, out []float64) bool {
	for _, id := range list {
		if id < 0 || id >= g.numCells {
			continue
		}
		mi := g.meshOf[id]
		ds := g.meshes[mi]
		local := id - g.start[mi]
		if mesh.IsGhost(ds, local) {
			continue
		}
		cell := ds.Cell(local)
		if !interpolation.Contains(cell, p, g.opts.Interpolation) {
			continue
		}

		if !g.nodal {
			arr := ds.CellData().Get(g.varName)
			if arr == nil {
				return false
			}
			copy(out, arr.Tuple(local))
			return true
		}

		arr := ds.PointData().Get(g.varName)
		if arr == nil {
			return false
		}
		w := interpolation.Locate(cell, p, g.opts.Interpolation).Weights
		for c := 0; c < arr.Components && c < len(out); c++ {
			v := 0.0
			for k, pid := range cell.IDs {
				v += w[k] * arr.Data[pid*arr.Components+c]
			}
			out[c] = v
		}
		return true
	}
	return false
}

// Relocate sends every cell to the ranks whose partition boxes its bounds
// overlap, replacing this group's fragments with the cells received. A cell
// straddling boxes is sent to each. The group must be finalized again
// afterwards. Relocate is a collective call.
func (g *Group) Relocate(ctx context.Context, c comm.Communicator, part Partition) error {
	size := c.Size()
	parts := make([][]*mesh.Unstructured, size)

	for _, ds := range g.meshes {
		cellsFor := make([][]int, size)
		for j := 0; j < ds.NumCells(); j++ {
			for _, r := range part.OwnersOf(ds.CellBounds(j)) {
				if r >= 0 && r < size {
					cellsFor[r] = append(cellsFor[r], j)
				}
			}
		}
		for r, cells := range cellsFor {
			if len(cells) > 0 {
				parts[r] = append(parts[r], mesh.Extract(ds, cells))
			}
		}
	}

	send := make([][]byte, size)
	sent := 0
	for r, ps := range parts {
		if len(ps) == 0 {
			continue
		}
		// Append keeps only arrays common to every part, so give every
		// part a ghost array once any of them has one.
		for _, p := range ps {
			if p.CellData().Has(mesh.GhostArray) {
				for _, q := range ps {
					mesh.MarkGhosts(q)
				}
				break
			}
		}
		merged := mesh.Append(ps...)
		b, err := merged.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encoding cells for rank %d: %w", r, err)
		}
		send[r] = b
		sent += merged.NumCells()
	}

	recv, err := redistribute.Exchange(ctx, c, send)
	if err != nil {
		return fmt.Errorf("relocating cells: %w", err)
	}

	g.ClearAllInputMeshes()
	for src, b := range recv {
		if len(b) == 0 {
			continue
		}
		u := &mesh.Unstructured{}
		if err := u.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("decoding cells from rank %d: %w", src, err)
		}
		g.meshes = append(g.meshes, u)
	}

	received := 0
	for _, ds := range g.meshes {
		received += ds.NumCells()
	}
	g.log.WithFields(logrus.Fields{
		"sent":     sent,
		"received": received,
	}).Debug("cells relocated")
	return nil
}
