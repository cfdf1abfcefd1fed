package mesh

// Extract copies the listed cells of ds into a compact unstructured mesh
// holding only the points those cells reference. Point and cell arrays are
// carried over tuple by tuple.
func Extract(ds DataSet, cells []int) *Unstructured {
	remap := make(map[int]int)
	var srcPoints []int
	out := NewUnstructured(nil)

	for _, ci := range cells {
		c := ds.Cell(ci)
		ids := make([]int, len(c.IDs))
		for k, old := range c.IDs {
			id, ok := remap[old]
			if !ok {
				id = len(srcPoints)
				remap[old] = id
				srcPoints = append(srcPoints, old)
				out.Points = append(out.Points, c.Points[k])
			}
			ids[k] = id
		}
		out.Types = append(out.Types, c.Type)
		out.Connectivity = append(out.Connectivity, ids)
	}

	for _, arr := range ds.PointData().Arrays() {
		sub := NewArray(arr.Name, arr.Components, len(srcPoints))
		for i, old := range srcPoints {
			sub.SetTuple(i, arr.Tuple(old))
		}
		out.pointData.Add(sub)
	}
	for _, arr := range ds.CellData().Arrays() {
		sub := NewArray(arr.Name, arr.Components, len(cells))
		for i, old := range cells {
			sub.SetTuple(i, arr.Tuple(old))
		}
		out.cellData.Add(sub)
	}
	return out
}

// StripUnusedPoints returns a copy of u without the points no cell
// references, with connectivity and point arrays renumbered.
func StripUnusedPoints(u *Unstructured) *Unstructured {
	all := make([]int, u.NumCells())
	for i := range all {
		all[i] = i
	}
	return Extract(u, all)
}

// commonArrays returns the arrays, by the first part's order, that every
// part carries with the same width.
func commonArrays(parts []*Unstructured, attrs func(*Unstructured) *Attributes) []*Array {
	var out []*Array
	for _, arr := range attrs(parts[0]).Arrays() {
		shared := true
		for _, p := range parts[1:] {
			other := attrs(p).Get(arr.Name)
			if other == nil || other.Components != arr.Components {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, arr)
		}
	}
	return out
}

// Append merges parts into one mesh. Arrays missing from any part, or of a
// different width in some part, are dropped.
func Append(parts ...*Unstructured) *Unstructured {
	out := NewUnstructured(nil)
	if len(parts) == 0 {
		return out
	}

	for _, p := range parts {
		base := len(out.Points)
		out.Points = append(out.Points, p.Points...)
		for i, ids := range p.Connectivity {
			shifted := make([]int, len(ids))
			for k, id := range ids {
				shifted[k] = id + base
			}
			out.Types = append(out.Types, p.Types[i])
			out.Connectivity = append(out.Connectivity, shifted)
		}
	}

	pointAttrs := func(u *Unstructured) *Attributes { return u.pointData }
	cellAttrs := func(u *Unstructured) *Attributes { return u.cellData }
	for _, arr := range commonArrays(parts, pointAttrs) {
		merged := &Array{Name: arr.Name, Components: arr.Components}
		for _, p := range parts {
			merged.Data = append(merged.Data, p.pointData.Get(arr.Name).Data...)
		}
		out.pointData.Add(merged)
	}
	for _, arr := range commonArrays(parts, cellAttrs) {
		merged := &Array{Name: arr.Name, Components: arr.Components}
		for _, p := range parts {
			merged.Data = append(merged.Data, p.cellData.Get(arr.Name).Data...)
		}
		out.cellData.Add(merged)
	}
	return out
}
