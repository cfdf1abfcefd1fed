package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/geom"
)

// CellType enumerates the supported linear cell shapes. Point ordering
// follows the usual VTK conventions.
type CellType uint8

const (
	Vertex CellType = iota + 1
	Line
	Triangle
	Quad
	Tetra
	Hexahedron
	Wedge
	Pyramid
)

var cellInfo = map[CellType]struct {
	name   string
	points int
	dim    int
}{
	Vertex:     {"vertex", 1, 0},
	Line:       {"line", 2, 1},
	Triangle:   {"triangle", 3, 2},
	Quad:       {"quad", 4, 2},
	Tetra:      {"tetra", 4, 3},
	Hexahedron: {"hexahedron", 8, 3},
	Wedge:      {"wedge", 6, 3},
	Pyramid:    {"pyramid", 5, 3},
}

// Valid reports whether t is a known cell type.
func (t CellType) Valid() bool {
	_, ok := cellInfo[t]
	return ok
}

// NumPoints returns the number of points a cell of type t references.
func (t CellType) NumPoints() int { return cellInfo[t].points }

// Dimension returns the topological dimension of t.
func (t CellType) Dimension() int { return cellInfo[t].dim }

func (t CellType) String() string {
	if info, ok := cellInfo[t]; ok {
		return info.name
	}
	return fmt.Sprintf("CellType(%d)", uint8(t))
}

// Cell is one cell materialised from a data set: its type, the ids of its
// points in that data set and their coordinates.
type Cell struct {
	Type   CellType
	IDs    []int
	Points []r3.Vec
}

// Bounds returns the box around the cell's points.
func (c Cell) Bounds() geom.Box {
	b := geom.EmptyBox()
	for _, p := range c.Points {
		b = b.Extend(p)
	}
	return b
}
