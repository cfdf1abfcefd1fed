package intervaltree

import (
	"crossmesh/pkg/geom"

	"gonum.org/v1/gonum/spatial/r3"
)

// collect walks the tree pre-order, descending into nodes whose extents
// satisfy keep, and returns the ids of the leaves reached.
func (t *Tree) collect(keep func(ext []float64) bool) []int {
	if !t.calculated || t.numNodes == 0 {
		return nil
	}
	var list []int
	stack := []int{0}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !keep(t.nodeExtents[node*t.vecSize : (node+1)*t.vecSize]) {
			continue
		}
		if id := t.nodeIDs[node]; id >= 0 {
			list = append(list, id)
			continue
		}
		stack = append(stack, 2*node+1, 2*node+2)
	}
	return list
}

// ElementsInRange returns the elements whose boxes overlap [lo, hi] on every
// dimension. lo and hi hold one value per dimension.
func (t *Tree) ElementsInRange(lo, hi []float64) []int {
	return t.collect(func(ext []float64) bool {
		return geom.RangeOverlaps(ext, lo, hi, t.numDims)
	})
}

// ElementsInBox returns the elements whose boxes overlap b.
func (t *Tree) ElementsInBox(b geom.Box) []int {
	lo := []float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := []float64{b.Max.X, b.Max.Y, b.Max.Z}
	return t.ElementsInRange(lo[:t.numDims], hi[:t.numDims])
}

// ElementsContaining returns the elements whose boxes contain p.
func (t *Tree) ElementsContaining(p r3.Vec) []int {
	pt := []float64{p.X, p.Y, p.Z}
	return t.ElementsInRange(pt[:t.numDims], pt[:t.numDims])
}

// ElementsOnPlane returns the elements whose boxes hold a point x with
// params·x == solution.
func (t *Tree) ElementsOnPlane(params []float64, solution float64) []int {
	return t.collect(func(ext []float64) bool {
		return geom.PlaneCrosses(ext, params, solution, t.numDims)
	})
}

// ElementsAlongRay returns the elements whose boxes are hit by the ray from
// origin along dir.
func (t *Tree) ElementsAlongRay(origin, dir [3]float64) []int {
	return t.collect(func(ext []float64) bool {
		return geom.RayIntersects(ext, t.numDims, origin, dir)
	})
}

// ElementsAlongSegment returns the elements whose boxes touch the segment
// p1-p2.
func (t *Tree) ElementsAlongSegment(p1, p2 [3]float64) []int {
	return t.collect(func(ext []float64) bool {
		return geom.SegmentIntersects(ext, t.numDims, p1, p2)
	})
}

// ElementsAlongAxisymmetricLine treats a 2D tree as (z, r) boxes revolved
// about the z axis and returns those met by the line p + t*d. It returns nil
// for trees that are not 2D.
func (t *Tree) ElementsAlongAxisymmetricLine(p, d [3]float64) []int {
	if t.numDims != 2 {
		return nil
	}
	return t.collect(func(ext []float64) bool {
		return geom.AxisymmetricIntersects(ext, p, d)
	})
}
