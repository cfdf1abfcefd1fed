// Package mesh models the data sets the engine samples from and samples at:
// unstructured meshes of typed cells and axis-aligned rectilinear grids,
// each carrying named point and cell attribute arrays.
package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/geom"
)

// GhostArray names the cell array flagging ghost zones. A nonzero tuple
// marks a cell that duplicates a neighbour's and must never act as a donor.
const GhostArray = "ghost_zones"

// DataSet is the read interface shared by every mesh kind.
type DataSet interface {
	NumPoints() int
	NumCells() int
	Point(i int) r3.Vec
	Cell(i int) Cell
	CellBounds(i int) geom.Box
	Bounds() geom.Box
	PointData() *Attributes
	CellData() *Attributes
	// ShallowCopy returns a data set sharing geometry and arrays, whose
	// attribute collections can be extended without touching the original.
	ShallowCopy() DataSet
}

// IsGhost reports whether cell i of ds is flagged in GhostArray.
func IsGhost(ds DataSet, i int) bool {
	g := ds.CellData().Get(GhostArray)
	if g == nil || i >= g.Len() {
		return false
	}
	return g.Data[i*g.Components] != 0
}

// MarkGhosts adds or extends GhostArray on ds so the listed cells are flagged.
func MarkGhosts(ds DataSet, cells ...int) {
	g := ds.CellData().Get(GhostArray)
	if g == nil {
		g = NewArray(GhostArray, 1, ds.NumCells())
		ds.CellData().Add(g)
	}
	for _, c := range cells {
		g.Data[c*g.Components] = 1
	}
}
