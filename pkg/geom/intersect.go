package geom

import "math"

// planeTolerance is the slack allowed when a linear functional equals the
// solution exactly at the minimum corner of a box.
const planeTolerance = 1e-12

// RangeOverlaps reports whether the interleaved extents ext of dimension dims
// overlap the closed range [lo, hi] on every dimension.
func RangeOverlaps(ext, lo, hi []float64, dims int) bool {
	for i := 0; i < dims; i++ {
		if ext[2*i] > hi[i] || ext[2*i+1] < lo[i] {
			return false
		}
	}
	return true
}

// cornerValue evaluates params·corner for corner number enc, whose bit i
// selects the min (0) or max (1) extent on dimension i.
func cornerValue(params, ext []float64, enc, dims int) float64 {
	v := 0.0
	for i := 0; i < dims; i++ {
		c := ext[2*i]
		if enc&(1<<i) != 0 {
			c = ext[2*i+1]
		}
		v += params[i] * c
	}
	return v
}

// PlaneCrosses reports whether params·x == solution has a solution within
// the box described by ext. The corners of the box are scanned for a sign
// change relative to the value at the minimum corner.
func PlaneCrosses(ext, params []float64, solution float64, dims int) bool {
	atMin := cornerValue(params, ext, 0, dims)
	if math.Abs(atMin-solution) < planeTolerance {
		return true
	}
	below := atMin < solution
	for enc := 1; enc < 1<<dims; enc++ {
		v := cornerValue(params, ext, enc, dims)
		if below && v >= solution {
			return true
		}
		if !below && v <= solution {
			return true
		}
	}
	return false
}

// slab narrows [tnear, tfar] to the parameter range where o + t*d lies in
// [lo, hi]. It returns false once the range is empty, behind the origin or
// reduced to a single point.
func slab(d, o, lo, hi float64, tnear, tfar *float64) bool {
	if d == 0 {
		return o >= lo && o <= hi
	}
	t1 := (lo - o) / d
	t2 := (hi - o) / d
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	if t1 > *tnear {
		*tnear = t1
	}
	if t2 < *tfar {
		*tfar = t2
	}
	return !(*tnear > *tfar || *tfar < 0 || *tnear == *tfar)
}

// RayIntersects reports whether the ray from origin along dir hits the box
// described by ext. Dimensions beyond dims are treated as [0,0].
func RayIntersects(ext []float64, dims int, origin, dir [3]float64) bool {
	var b [6]float64
	copy(b[:2*dims], ext[:2*dims])
	tnear, tfar := -math.MaxFloat64, math.MaxFloat64
	for i := 0; i < 3; i++ {
		if !slab(dir[i], origin[i], b[2*i], b[2*i+1], &tnear, &tfar) {
			return false
		}
	}
	return true
}

// SegmentIntersects reports whether the segment p1-p2 touches the box
// described by ext. Dimensions beyond dims are treated as [0,0].
func SegmentIntersects(ext []float64, dims int, p1, p2 [3]float64) bool {
	var b [6]float64
	copy(b[:2*dims], ext[:2*dims])
	fst, fet := 0.0, 1.0
	for i := 0; i < 3; i++ {
		s, e := p1[i], p2[i]
		bmin, bmax := b[2*i], b[2*i+1]
		var st, et float64
		if s < e {
			if s > bmax || e < bmin {
				return false
			}
			di := e - s
			st, et = 0, 1
			if s < bmin {
				st = (bmin - s) / di
			}
			if e > bmax {
				et = (bmax - s) / di
			}
		} else {
			if e > bmax || s < bmin {
				return false
			}
			di := e - s
			st, et = 0, 1
			if s > bmax {
				st = (bmax - s) / di
			}
			if e < bmin {
				et = (bmin - s) / di
			}
		}
		fst = math.Max(fst, st)
		fet = math.Min(fet, et)
		if fet < fst {
			return false
		}
	}
	return true
}

type interval struct{ lo, hi float64 }

func (a interval) intersect(b interval) interval {
	return interval{math.Max(a.lo, b.lo), math.Min(a.hi, b.hi)}
}

func (a interval) empty() bool { return a.lo > a.hi }

var everywhere = interval{math.Inf(-1), math.Inf(1)}

// quadRoots solves a*t^2 + b*t + c = 0 for a > 0 and returns the ordered
// roots, or false when there are none.
func quadRoots(a, b, c float64) (float64, float64, bool) {
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, 0, false
	}
	root := math.Sqrt(disc)
	s1 := (-b - root) / (2 * a)
	s2 := (-b + root) / (2 * a)
	return s1, s2, true
}

// AxisymmetricIntersects reports whether the 3D line P + t*D, revolved about
// the z axis, meets the 2D extents [zmin,zmax,rmin,rmax] of an axially
// symmetric box.
func AxisymmetricIntersects(ext []float64, p, d [3]float64) bool {
	zmin, zmax, rmin, rmax := ext[0], ext[1], ext[2], ext[3]

	zr := everywhere
	if d[2] == 0 {
		if p[2] < zmin || p[2] > zmax {
			return false
		}
	} else {
		t1 := (zmin - p[2]) / d[2]
		t2 := (zmax - p[2]) / d[2]
		zr = interval{math.Min(t1, t2), math.Max(t1, t2)}
	}

	// r(t)^2 = a*t^2 + b*t + c0 is convex in t.
	a := d[0]*d[0] + d[1]*d[1]
	b := 2*p[0]*d[0] + 2*p[1]*d[1]
	c0 := p[0]*p[0] + p[1]*p[1]

	var inner interval
	if a == 0 {
		if c0 > rmax*rmax {
			return false
		}
		inner = everywhere
	} else {
		s1, s2, ok := quadRoots(a, b, c0-rmax*rmax)
		if !ok {
			return false
		}
		inner = interval{s1, s2}
	}

	var outer []interval
	if a == 0 {
		if c0 < rmin*rmin {
			return false
		}
		outer = []interval{everywhere}
	} else if s1, s2, ok := quadRoots(a, b, c0-rmin*rmin); ok {
		outer = []interval{{math.Inf(-1), s1}, {s2, math.Inf(1)}}
	} else {
		outer = []interval{everywhere}
	}

	base := zr.intersect(inner)
	if base.empty() {
		return false
	}
	for _, o := range outer {
		if !base.intersect(o).empty() {
			return true
		}
	}
	return false
}
