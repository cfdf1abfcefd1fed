package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/geom"
)

// Unstructured is a mesh of explicit points and typed cells. A mesh with no
// cells is a point cloud.
type Unstructured struct {
	Points       []r3.Vec
	Types        []CellType
	Connectivity [][]int

	pointData *Attributes
	cellData  *Attributes
}

var _ DataSet = (*Unstructured)(nil)

// NewUnstructured returns a mesh over points with no cells.
func NewUnstructured(points []r3.Vec) *Unstructured {
	return &Unstructured{
		Points:    points,
		pointData: &Attributes{},
		cellData:  &Attributes{},
	}
}

// AddCell appends a cell and returns its index.
func (u *Unstructured) AddCell(t CellType, ids ...int) int {
	u.Types = append(u.Types, t)
	u.Connectivity = append(u.Connectivity, append([]int(nil), ids...))
	return len(u.Types) - 1
}

func (u *Unstructured) NumPoints() int          { return len(u.Points) }
func (u *Unstructured) NumCells() int           { return len(u.Types) }
func (u *Unstructured) Point(i int) r3.Vec      { return u.Points[i] }
func (u *Unstructured) PointData() *Attributes { return u.pointData }
func (u *Unstructured) CellData() *Attributes  { return u.cellData }

func (u *Unstructured) Cell(i int) Cell {
	ids := u.Connectivity[i]
	pts := make([]r3.Vec, len(ids))
	for k, id := range ids {
		pts[k] = u.Points[id]
	}
	return Cell{Type: u.Types[i], IDs: ids, Points: pts}
}

func (u *Unstructured) CellBounds(i int) geom.Box {
	b := geom.EmptyBox()
	for _, id := range u.Connectivity[i] {
		b = b.Extend(u.Points[id])
	}
	return b
}

// Bounds covers every point, referenced or not.
func (u *Unstructured) Bounds() geom.Box {
	b := geom.EmptyBox()
	for _, p := range u.Points {
		b = b.Extend(p)
	}
	return b
}

func (u *Unstructured) ShallowCopy() DataSet {
	return &Unstructured{
		Points:       u.Points,
		Types:        u.Types,
		Connectivity: u.Connectivity,
		pointData:    u.pointData.shallowCopy(),
		cellData:     u.cellData.shallowCopy(),
	}
}
