package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/codec"
)

const unstructuredTag codec.Tag = 0x55

func putAttributes(w *codec.Writer, a *Attributes) {
	w.PutInt(len(a.arrays))
	for _, arr := range a.arrays {
		w.PutString(arr.Name)
		w.PutInt(arr.Components)
		w.PutFloat64s(arr.Data)
	}
}

func readAttributes(r *codec.Reader, tuples int, what string) (*Attributes, error) {
	a := &Attributes{}
	n := r.Len(8)
	for i := 0; i < n && r.Err() == nil; i++ {
		name := r.String()
		comps := r.Int()
		data := r.Float64s()
		if r.Err() != nil {
			break
		}
		if comps < 1 || len(data) != comps*tuples {
			return nil, fmt.Errorf("%s array %q: %d values for %d tuples of %d components",
				what, name, len(data), tuples, comps)
		}
		a.Add(&Array{Name: name, Components: comps, Data: data})
	}
	return a, r.Err()
}

// MarshalBinary encodes the mesh with its point and cell arrays.
func (u *Unstructured) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter(32 + 24*len(u.Points) + 24*len(u.Types))
	w.PutTag(unstructuredTag)
	w.PutInt(len(u.Points))
	for _, p := range u.Points {
		w.PutFloat64(p.X)
		w.PutFloat64(p.Y)
		w.PutFloat64(p.Z)
	}
	w.PutInt(len(u.Types))
	for i, t := range u.Types {
		w.PutUint8(uint8(t))
		w.PutInts(u.Connectivity[i])
	}
	putAttributes(w, u.pointData)
	putAttributes(w, u.cellData)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a mesh written by MarshalBinary, validating cell
// types, point references and array shapes.
func (u *Unstructured) UnmarshalBinary(b []byte) error {
	r := codec.NewReader(b)
	r.Expect(unstructuredTag)

	np := r.Len(24)
	points := make([]r3.Vec, np)
	for i := range points {
		points[i] = r3.Vec{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}
	}

	nc := r.Len(9)
	types := make([]CellType, 0, nc)
	conn := make([][]int, 0, nc)
	for i := 0; i < nc && r.Err() == nil; i++ {
		t := CellType(r.Uint8())
		ids := r.Ints()
		if r.Err() != nil {
			break
		}
		if !t.Valid() || len(ids) != t.NumPoints() {
			return fmt.Errorf("unmarshalling mesh: cell %d has type %v and %d points", i, t, len(ids))
		}
		for _, id := range ids {
			if id < 0 || id >= np {
				return fmt.Errorf("unmarshalling mesh: cell %d references point %d of %d", i, id, np)
			}
		}
		types = append(types, t)
		conn = append(conn, ids)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("unmarshalling mesh: %w", err)
	}

	pd, err := readAttributes(r, np, "point")
	if err != nil {
		return fmt.Errorf("unmarshalling mesh: %w", err)
	}
	cd, err := readAttributes(r, nc, "cell")
	if err != nil {
		return fmt.Errorf("unmarshalling mesh: %w", err)
	}
	if !r.Done() {
		return fmt.Errorf("unmarshalling mesh: %d trailing bytes", r.Remaining())
	}

	*u = Unstructured{Points: points, Types: types, Connectivity: conn, pointData: pd, cellData: cd}
	return nil
}
