package models

import "fmt"

// Axis names one of the three coordinate directions
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// String returns the lower-case axis letter
func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Next returns the axis that follows a when cycling X, Y, Z. When is2D is
// set the cycle is X, Y only.
func (a Axis) Next(is2D bool) Axis {
	switch a {
	case X:
		return Y
	case Y:
		if is2D {
			return X
		}
		return Z
	default:
		return X
	}
}

// ParseAxis maps "x", "y" or "z" (any case) to an Axis
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return X, nil
	case "y", "Y":
		return Y, nil
	case "z", "Z":
		return Z, nil
	}
	return X, fmt.Errorf("invalid axis: %s (must be x, y, or z)", s)
}

// IndexExtents is an inclusive index range per axis into the coordinate
// arrays of a rectilinear grid, laid out as [xStart,xEnd,yStart,yEnd,zStart,zEnd].
type IndexExtents [6]int

// Dims returns the number of coordinates covered along each axis
func (e IndexExtents) Dims() (nx, ny, nz int) {
	return e[1] - e[0] + 1, e[3] - e[2] + 1, e[5] - e[4] + 1
}

// Count returns the number of grid points covered
func (e IndexExtents) Count() int {
	nx, ny, nz := e.Dims()
	return nx * ny * nz
}
