package function

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Function is a scalar function of time used to scale loads and constraints
type Function interface {
	ID() int
	Value(x float64) float64
}

type Constant struct {
	id    int
	value float64
}

func NewConstant(id int, value float64) *Constant { return &Constant{id: id, value: value} }

func (c *Constant) ID() int                 { return c.id }
func (c *Constant) Value(x float64) float64 { return c.value }

// Linear interpolates a table of (x, f(x)) values and holds the end values outside of it
type Linear struct {
	id int
	pl interp.PiecewiseLinear
}

func NewLinear(id int, xs, fxs []float64) (l *Linear, err error) {
	if len(xs) != len(fxs) {
		err = fmt.Errorf("function %d: %d x values and %d f(x) values", id, len(xs), len(fxs))
		return
	}
	if len(xs) < 2 {
		err = fmt.Errorf("function %d: at least two points are needed, got %d", id, len(xs))
		return
	}
	for k := 1; k < len(xs); k++ {
		if xs[k] <= xs[k-1] {
			err = fmt.Errorf("function %d: x values must be strictly increasing, x[%d]=%g after %g",
				id, k, xs[k], xs[k-1])
			return
		}
	}
	l = &Linear{id: id}
	if err = l.pl.Fit(xs, fxs); err != nil {
		err = fmt.Errorf("function %d: %w", id, err)
		l = nil
	}
	return
}

func (l *Linear) ID() int                 { return l.id }
func (l *Linear) Value(x float64) float64 { return l.pl.Predict(x) }

// New builds a function from its type name, "Linear" uses xs and fxs, "Constant" uses fxs[0]
func New(id int, ftype string, xs, fxs []float64) (f Function, err error) {
	switch ftype {
	case "Linear":
		l, err := NewLinear(id, xs, fxs)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "Constant":
		if len(fxs) != 1 {
			return nil, fmt.Errorf("function %d: constant needs one value, got %d", id, len(fxs))
		}
		return NewConstant(id, fxs[0]), nil
	}
	return nil, fmt.Errorf("function %d: unknown type %q", id, ftype)
}
