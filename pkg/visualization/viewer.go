// Package visualization renders axis-aligned slices of a field sampled on a
// rectilinear grid as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"crossmesh/internal/models"
	"crossmesh/pkg/mesh"
)

// Viewer holds component 0 of one array of a rectilinear grid, laid out x
// fastest, together with the value range mapped onto the gray scale.
type Viewer struct {
	values []float64

	// dimensions of the sampled lattice, points for nodal arrays and cells
	// for zonal ones
	dims [3]int

	// lo and hi bound the gray scale; skip renders black
	lo, hi float64
	skip   float64
}

// NewViewer reads array name of g from its point data when nodal, its cell
// data otherwise. Tuples equal to skip are left out of the value range and
// drawn black.
func NewViewer(g *mesh.Rectilinear, name string, nodal bool, skip float64) (*Viewer, error) {
	attrs, dims := g.CellData(), [3]int{}
	if nodal {
		attrs = g.PointData()
		dims[0], dims[1], dims[2] = g.Dims()
	} else {
		dims[0], dims[1], dims[2] = g.CellDims()
	}
	arr := attrs.Get(name)
	if arr == nil {
		return nil, fmt.Errorf("visualization: no array %q on the grid", name)
	}
	if arr.Len() != dims[0]*dims[1]*dims[2] || arr.Len() == 0 {
		return nil, fmt.Errorf("visualization: array %q holds %d tuples for a %v lattice", name, arr.Len(), dims)
	}

	v := &Viewer{values: make([]float64, arr.Len()), dims: dims, skip: skip}
	kept := make([]float64, 0, arr.Len())
	for i := range v.values {
		v.values[i] = arr.Tuple(i)[0]
		if v.values[i] != skip {
			kept = append(kept, v.values[i])
		}
	}
	if len(kept) > 0 {
		v.lo, v.hi = floats.Min(kept), floats.Max(kept)
	}
	return v, nil
}

// Range returns the values mapped to black and white.
func (v *Viewer) Range() (lo, hi float64) { return v.lo, v.hi }

// Dims returns the lattice size along each axis.
func (v *Viewer) Dims() [3]int { return v.dims }

func (v *Viewer) gray(val float64) color.Gray16 {
	if val == v.skip || v.hi == v.lo {
		return color.Gray16{}
	}
	t := (val - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

func (v *Viewer) at(i, j, k int) float64 {
	return v.values[i+v.dims[0]*(j+v.dims[1]*k)]
}

// ExtractSlice extracts the plane at index position across axis. The
// image spans the two remaining axes in x, y, z order, the first
// horizontally.
func (v *Viewer) ExtractSlice(axis models.Axis, position int) (*image.Gray16, error) {
	if axis < models.X || axis > models.Z {
		return nil, fmt.Errorf("invalid axis: %v", axis)
	}
	if position < 0 || position >= v.dims[axis] {
		return nil, fmt.Errorf("position %d outside [0,%d) along %v", position, v.dims[axis], axis)
	}

	var u, w models.Axis
	switch axis {
	case models.X:
		u, w = models.Y, models.Z
	case models.Y:
		u, w = models.X, models.Z
	default:
		u, w = models.X, models.Y
	}

	img := image.NewGray16(image.Rect(0, 0, v.dims[u], v.dims[w]))
	for b := 0; b < v.dims[w]; b++ {
		for a := 0; a < v.dims[u]; a++ {
			var idx [3]int
			idx[axis], idx[u], idx[w] = position, a, b
			img.SetGray16(a, b, v.gray(v.at(idx[0], idx[1], idx[2])))
		}
	}
	return img, nil
}

// ExtractRegion copies the sub-lattice starting at start with size points
// per axis, x fastest.
func (v *Viewer) ExtractRegion(start, size [3]int) ([]float64, error) {
	for a := 0; a < 3; a++ {
		if start[a] < 0 {
			return nil, fmt.Errorf("start coordinates must be non-negative")
		}
		if size[a] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive")
		}
		if start[a]+size[a] > v.dims[a] {
			return nil, fmt.Errorf("region extends beyond lattice boundaries")
		}
	}

	region := make([]float64, 0, size[0]*size[1]*size[2])
	for k := 0; k < size[2]; k++ {
		for j := 0; j < size[1]; j++ {
			for i := 0; i < size[0]; i++ {
				region = append(region, v.at(start[0]+i, start[1]+j, start[2]+k))
			}
		}
	}
	return region, nil
}

// SaveSlice writes img as PNG when filename ends in .png and as JPEG
// otherwise.
func SaveSlice(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence writes every slice across axis into outputDir.
func (v *Viewer) SaveSliceSequence(axis models.Axis, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if axis < models.X || axis > models.Z {
		return fmt.Errorf("invalid axis: %v", axis)
	}

	for pos := 0; pos < v.dims[axis]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%v_%03d.png", axis, pos))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
