package mesh

// Array is a named attribute array of fixed-width tuples.
type Array struct {
	Name       string
	Components int
	Data       []float64
}

// NewArray returns a zeroed array of the given shape.
func NewArray(name string, components, tuples int) *Array {
	return &Array{Name: name, Components: components, Data: make([]float64, components*tuples)}
}

// Len returns the number of tuples.
func (a *Array) Len() int {
	if a.Components == 0 {
		return 0
	}
	return len(a.Data) / a.Components
}

// Tuple returns tuple i as a view into the array.
func (a *Array) Tuple(i int) []float64 {
	return a.Data[i*a.Components : (i+1)*a.Components]
}

// SetTuple copies v into tuple i.
func (a *Array) SetTuple(i int, v []float64) {
	copy(a.Tuple(i), v)
}

// Attributes is an ordered collection of arrays with unique names.
type Attributes struct {
	arrays []*Array
}

// Get returns the array called name, or nil.
func (a *Attributes) Get(name string) *Array {
	for _, arr := range a.arrays {
		if arr.Name == name {
			return arr
		}
	}
	return nil
}

// Has reports whether an array called name exists.
func (a *Attributes) Has(name string) bool { return a.Get(name) != nil }

// Add appends arr, replacing any array with the same name in place.
func (a *Attributes) Add(arr *Array) {
	for i, old := range a.arrays {
		if old.Name == arr.Name {
			a.arrays[i] = arr
			return
		}
	}
	a.arrays = append(a.arrays, arr)
}

// Remove drops the array called name if present.
func (a *Attributes) Remove(name string) {
	for i, arr := range a.arrays {
		if arr.Name == name {
			a.arrays = append(a.arrays[:i], a.arrays[i+1:]...)
			return
		}
	}
}

// Arrays returns the arrays in insertion order.
func (a *Attributes) Arrays() []*Array { return a.arrays }

// shallowCopy returns a new collection sharing the same arrays.
func (a *Attributes) shallowCopy() *Attributes {
	return &Attributes{arrays: append([]*Array(nil), a.arrays...)}
}
