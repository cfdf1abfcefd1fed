// Package intervaltree implements a static bounding-volume index over a
// fixed number of axis-aligned boxes. Boxes are inserted by slot, the tree is
// built once by Calculate and is read-only afterwards.
//
// Nodes form a complete binary tree stored in a flat array: the children of
// node i are 2i+1 and 2i+2, and the leaves occupy the last N slots. Each
// node stores its extents interleaved as [min0,max0,min1,max1,...].
package intervaltree

import (
	"context"
	"fmt"
	"sort"

	"crossmesh/pkg/comm"
	"crossmesh/pkg/geom"
)

// Tree is an interval tree over N boxes of dimension D.
type Tree struct {
	numElements int
	numDims     int
	vecSize     int
	numNodes    int

	// elements holds the inserted boxes by slot until Calculate.
	elements    []float64
	nodeExtents []float64
	nodeIDs     []int

	calculated bool
	comm       comm.Communicator
}

// New returns a tree for numElements boxes of the given dimension whose
// boxes are all inserted locally.
func New(numElements, dims int) *Tree {
	t := &Tree{
		numElements: numElements,
		numDims:     dims,
		vecSize:     2 * dims,
	}

	// Node count for a complete binary tree with numElements leaves.
	complete, exp := 1, 1
	for 2*exp < numElements {
		complete = 2*complete + 1
		exp *= 2
	}
	t.numNodes = complete + 2*(numElements-exp)
	if numElements < 1 {
		t.numNodes = 0
	}

	t.elements = make([]float64, numElements*t.vecSize)
	t.nodeExtents = make([]float64, t.numNodes*t.vecSize)
	t.nodeIDs = make([]int, t.numNodes)
	for i := range t.nodeIDs {
		t.nodeIDs[i] = -1
	}
	return t
}

// NewDistributed returns a tree whose boxes are spread across the ranks of
// c. Each slot must be filled on exactly one rank; Calculate sums the slots
// across ranks before building.
func NewDistributed(numElements, dims int, c comm.Communicator) *Tree {
	t := New(numElements, dims)
	t.comm = c
	return t
}

// NumElements returns the number of leaf slots.
func (t *Tree) NumElements() int { return t.numElements }

// Dims returns the box dimension.
func (t *Tree) Dims() int { return t.numDims }

// Calculated reports whether Calculate has completed.
func (t *Tree) Calculated() bool { return t.calculated }

// AddElement stores the box for slot id. Out-of-range slots are ignored.
func (t *Tree) AddElement(id int, extents []float64) {
	if id < 0 || id >= t.numElements {
		return
	}
	copy(t.elements[id*t.vecSize:(id+1)*t.vecSize], extents)
}

// AddBox stores a 3D box for slot id.
func (t *Tree) AddBox(id int, b geom.Box) {
	ext := b.Extents()
	t.AddElement(id, ext[:t.vecSize])
}

// Calculate builds the tree. A distributed tree first sums its slots across
// ranks unless alreadyCollected is set; that step is a collective call.
func (t *Tree) Calculate(ctx context.Context, alreadyCollected bool) error {
	if t.comm != nil && !alreadyCollected {
		sum, err := comm.SumFloats(ctx, t.comm, t.elements)
		if err != nil {
			return fmt.Errorf("collecting tree extents: %w", err)
		}
		t.elements = sum
	}
	t.construct()
	t.calculated = true
	return nil
}

// Build constructs the tree from the locally inserted boxes without any
// communication.
func (t *Tree) Build() {
	t.construct()
	t.calculated = true
}

type entry struct {
	ext []float64
	id  int
}

// splitSize returns how many of size elements go to the left child: size is
// decomposed as 2^y + n with 0 <= n < 2^y.
func splitSize(size int) int {
	power := 1
	for power*2 <= size {
		power *= 2
	}
	n := size - power
	if n == 0 {
		return power / 2
	}
	if n < power/2 {
		return power/2 + n
	}
	return power
}

func (t *Tree) construct() {
	if t.numElements < 1 {
		return
	}
	entries := make([]entry, t.numElements)
	for i := range entries {
		entries[i] = entry{ext: t.elements[i*t.vecSize : (i+1)*t.vecSize], id: i}
	}

	type frame struct{ offset, size, depth, node int }
	stack := []frame{{offset: 0, size: t.numElements, depth: 0, node: 0}}

	// Re-sorting every pop is costly; ranges popped between sorts inherit
	// their order from an ancestor sort.
	thresh := 1
	if t.numElements > 10 {
		thresh = t.numElements / 10
	}
	count := 0
	for len(stack) > 0 {
		count++
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.size <= 1 {
			e := entries[f.offset]
			t.nodeIDs[f.node] = e.id
			copy(t.nodeExtents[f.node*t.vecSize:(f.node+1)*t.vecSize], e.ext)
			continue
		}

		if count%thresh == 0 {
			t.sortByMidpoint(entries[f.offset:f.offset+f.size], f.depth)
		}

		left := splitSize(f.size)
		stack = append(stack,
			frame{offset: f.offset, size: left, depth: f.depth + 1, node: 2*f.node + 1},
			frame{offset: f.offset + left, size: f.size - left, depth: f.depth + 1, node: 2*f.node + 2},
		)
	}
	t.setIntervals()
}

// sortByMidpoint orders boxes by decreasing midpoint along dimension
// depth mod D, breaking ties on the following dimensions in turn. Equal
// boxes keep their relative order.
func (t *Tree) sortByMidpoint(es []entry, depth int) {
	d := t.numDims
	sort.SliceStable(es, func(i, j int) bool {
		for k := 0; k < d; k++ {
			dim := (depth + k) % d
			a := (es[i].ext[2*dim] + es[i].ext[2*dim+1]) / 2
			b := (es[j].ext[2*dim] + es[j].ext[2*dim+1]) / 2
			if a != b {
				return a > b
			}
		}
		return false
	})
}

// setIntervals recomputes every internal node as the union of its children.
func (t *Tree) setIntervals() {
	v := t.vecSize
	for i := t.numNodes - 1; i > 0; i -= 2 {
		parent := (i - 2) / 2
		for k := 0; k < t.numDims; k++ {
			lo := t.nodeExtents[(i-1)*v+2*k]
			if x := t.nodeExtents[i*v+2*k]; x < lo {
				lo = x
			}
			hi := t.nodeExtents[(i-1)*v+2*k+1]
			if x := t.nodeExtents[i*v+2*k+1]; x > hi {
				hi = x
			}
			t.nodeExtents[parent*v+2*k] = lo
			t.nodeExtents[parent*v+2*k+1] = hi
		}
	}
}

// Extents copies the root box into ext and reports whether the tree has
// been calculated.
func (t *Tree) Extents(ext []float64) bool {
	if !t.calculated || t.numNodes == 0 {
		return false
	}
	copy(ext, t.nodeExtents[:t.vecSize])
	return true
}

// LeafExtents copies the box at leaf position leaf into ext and returns the
// element id stored there, or -1 when leaf is out of range.
func (t *Tree) LeafExtents(leaf int, ext []float64) int {
	if !t.calculated || leaf < 0 || leaf >= t.numElements {
		return -1
	}
	node := t.numNodes - t.numElements + leaf
	copy(ext, t.nodeExtents[node*t.vecSize:(node+1)*t.vecSize])
	return t.nodeIDs[node]
}

// ElementExtents copies the box of element id into ext. It scans the leaves,
// so it costs O(N) where LeafExtents is O(1).
func (t *Tree) ElementExtents(id int, ext []float64) bool {
	if !t.calculated {
		return false
	}
	for node := t.numNodes - t.numElements; node < t.numNodes; node++ {
		if t.nodeIDs[node] == id {
			copy(ext, t.nodeExtents[node*t.vecSize:(node+1)*t.vecSize])
			return true
		}
	}
	return false
}

// ElementBox returns the 3D box of element id.
func (t *Tree) ElementBox(id int) (geom.Box, bool) {
	ext := make([]float64, t.vecSize)
	if !t.ElementExtents(id, ext) {
		return geom.Box{}, false
	}
	return geom.BoxFromExtents(ext), true
}
