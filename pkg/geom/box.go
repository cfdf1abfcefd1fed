// Package geom holds the axis-aligned box type shared by the spatial index,
// the partitioner and the mesh model, together with the box predicates the
// interval tree prunes its traversals with.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is a closed axis-aligned box. A box with any Min component greater than
// the matching Max component is empty.
type Box struct {
	Min, Max r3.Vec
}

// EmptyBox returns a box that contains nothing and is the identity of Union.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// UnitBox returns [0,1]^3.
func UnitBox() Box {
	return Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}
}

// BoxFromExtents builds a box from interleaved extents [min0,max0,min1,max1,...].
// Two-dimensional extents leave z at zero.
func BoxFromExtents(ext []float64) Box {
	var b Box
	if len(ext) >= 2 {
		b.Min.X, b.Max.X = ext[0], ext[1]
	}
	if len(ext) >= 4 {
		b.Min.Y, b.Max.Y = ext[2], ext[3]
	}
	if len(ext) >= 6 {
		b.Min.Z, b.Max.Z = ext[4], ext[5]
	}
	return b
}

// Extents returns the interleaved extents [xmin,xmax,ymin,ymax,zmin,zmax].
func (b Box) Extents() [6]float64 {
	return [6]float64{b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z}
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns the smallest box holding b and p.
func (b Box) Extend(p r3.Vec) Box {
	return Box{
		Min: r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest box holding b and o.
func (b Box) Union(o Box) Box {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Contains reports whether p lies in the closed box.
func (b Box) Contains(p r3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Overlaps reports whether the closed boxes share at least one point.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// Center returns the box midpoint.
func (b Box) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Size returns the edge lengths of the box.
func (b Box) Size() r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

// Component returns the coordinate of v along axis 0, 1 or 2.
func Component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetComponent returns v with the coordinate along axis replaced by val.
func SetComponent(v r3.Vec, axis int, val float64) r3.Vec {
	switch axis {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
	return v
}
