package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/pkg/interpolation"
	"crossmesh/pkg/mesh"
)

// ErrBadField is returned for expressions that cannot be evaluated as a
// scalar function of x, y and z.
var ErrBadField = errors.New("scene: invalid field expression")

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one argument, got %d", name, len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s: argument is not a number", name)
		}
		return f(v), nil
	}
}

var functions = map[string]govaluate.ExpressionFunction{
	"sin":  unary("sin", math.Sin),
	"cos":  unary("cos", math.Cos),
	"tan":  unary("tan", math.Tan),
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"abs":  unary("abs", math.Abs),
}

// Field is an analytic scalar field given as an expression in x, y and z.
type Field struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// NewField parses expr. Besides the arithmetic govaluate understands, the
// functions sin, cos, tan, exp, log, sqrt and abs are available.
func NewField(expr string) (*Field, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadField, expr, err)
	}
	f := &Field{src: expr, expr: e}
	// Unknown variables only surface on evaluation.
	if _, err := f.At(r3.Vec{}); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Field) String() string { return f.src }

// At evaluates the field at p.
func (f *Field) At(p r3.Vec) (float64, error) {
	out, err := f.expr.Evaluate(map[string]interface{}{"x": p.X, "y": p.Y, "z": p.Z})
	if err != nil {
		return 0, fmt.Errorf("%w: %q at %v: %v", ErrBadField, f.src, p, err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q yields %T", ErrBadField, f.src, out)
}

// Location returns where sample i of ds sits: point i when nodal, the
// centroid of cell i otherwise.
func Location(ds mesh.DataSet, nodal bool, i int) r3.Vec {
	if nodal {
		return ds.Point(i)
	}
	return interpolation.Centroid(ds.Cell(i))
}

func count(ds mesh.DataSet, nodal bool) int {
	if nodal {
		return ds.NumPoints()
	}
	return ds.NumCells()
}

func attach(ds mesh.DataSet, nodal bool, arr *mesh.Array) {
	if nodal {
		ds.PointData().Add(arr)
	} else {
		ds.CellData().Add(arr)
	}
}

// AddField samples f onto ds as a one-component array called name, on the
// points when nodal and on the cell centroids otherwise.
func AddField(ds mesh.DataSet, name string, nodal bool, f *Field) error {
	n := count(ds, nodal)
	arr := mesh.NewArray(name, 1, n)
	for i := 0; i < n; i++ {
		v, err := f.At(Location(ds, nodal, i))
		if err != nil {
			return err
		}
		arr.Data[i] = v
	}
	attach(ds, nodal, arr)
	return nil
}

// AddConstant attaches a one-component array called name filled with v.
func AddConstant(ds mesh.DataSet, name string, nodal bool, v float64) {
	arr := mesh.NewArray(name, 1, count(ds, nodal))
	for i := range arr.Data {
		arr.Data[i] = v
	}
	attach(ds, nodal, arr)
}

// Compare measures array name of ds against f, skipping tuples equal to
// skip. It returns the largest absolute deviation and how many tuples
// were compared.
func Compare(ds mesh.DataSet, name string, nodal bool, f *Field, skip float64) (float64, int, error) {
	var attrs *mesh.Attributes
	if nodal {
		attrs = ds.PointData()
	} else {
		attrs = ds.CellData()
	}
	arr := attrs.Get(name)
	if arr == nil {
		return 0, 0, fmt.Errorf("scene: no array %q to compare", name)
	}
	var worst float64
	var n int
	for i := 0; i < arr.Len(); i++ {
		got := arr.Tuple(i)[0]
		if got == skip {
			continue
		}
		want, err := f.At(Location(ds, nodal, i))
		if err != nil {
			return 0, 0, err
		}
		worst = math.Max(worst, math.Abs(got-want))
		n++
	}
	return worst, n, nil
}
