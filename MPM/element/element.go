package element

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Element is an isoparametric cell shape. Reference coordinates are called xi throughout,
// node coordinates are passed as nodes[a][i] for node a and direction i.
type Element interface {
	Name() string
	Dim() int
	NNodes() int
	// ShapeFunctions returns N_a(xi)
	ShapeFunctions(xi []float64) (N []float64)
	// Gradients returns dN_a/dxi_j indexed [a][j]
	Gradients(xi []float64) (dN [][]float64)
	// LocalCoordinates inverts the isoparametric map, ok is false when no solution was found
	LocalCoordinates(x []float64, nodes [][]float64) (xi []float64, ok bool)
	IsInside(xi []float64, tol float64) bool
	Faces() [][]int
	Edges() [][2]int
	// Quadrature returns nquad points per direction with weights summing to the reference measure
	Quadrature(nquad int) (points [][]float64, weights []float64)
	Centroid() []float64
}

var registry = map[string]func() Element{
	"ED2Q4": func() Element { return Quad4{} },
	"ED3H8": func() Element { return Hex8{} },
	"ED2T3": func() Element { return Tri3{} },
	"ED3T4": func() Element { return Tet4{} },
}

func New(name string) (el Element, err error) {
	ctor, ok := registry[name]
	if !ok {
		err = fmt.Errorf("unknown element type %q, available: %v", name, Names())
		return
	}
	el = ctor()
	return
}

func Names() (names []string) {
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func GlobalCoordinates(el Element, xi []float64, nodes [][]float64) (x []float64) {
	N := el.ShapeFunctions(xi)
	x = make([]float64, el.Dim())
	for a, na := range N {
		for i := range x {
			x[i] += na * nodes[a][i]
		}
	}
	return
}

// Jacobian is J_ij = dx_i/dxi_j
func Jacobian(el Element, xi []float64, nodes [][]float64) (J *mat.Dense) {
	var (
		dim = el.Dim()
		dN  = el.Gradients(xi)
	)
	J = mat.NewDense(dim, dim, nil)
	for a := range dN {
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				J.Set(i, j, J.At(i, j)+nodes[a][i]*dN[a][j])
			}
		}
	}
	return
}

// GlobalGradients returns dN_a/dx_i indexed [a][i] and det(J)
func GlobalGradients(el Element, xi []float64, nodes [][]float64) (dNdx [][]float64, detJ float64, err error) {
	var (
		dim  = el.Dim()
		dN   = el.Gradients(xi)
		J    = Jacobian(el, xi, nodes)
		Jinv mat.Dense
	)
	detJ = mat.Det(J)
	if err = Jinv.Inverse(J); err != nil {
		return
	}
	dNdx = make([][]float64, len(dN))
	for a := range dN {
		dNdx[a] = make([]float64, dim)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				dNdx[a][i] += dN[a][j] * Jinv.At(j, i)
			}
		}
	}
	return
}

// Volume integrates det(J) over the reference cell
func Volume(el Element, nodes [][]float64) (vol float64) {
	points, weights := el.Quadrature(2)
	for q, xi := range points {
		vol += weights[q] * mat.Det(Jacobian(el, xi, nodes))
	}
	return
}

// BoundingBox returns the per direction extent of the nodes
func BoundingBox(nodes [][]float64) (lo, hi []float64) {
	dim := len(nodes[0])
	lo, hi = make([]float64, dim), make([]float64, dim)
	copy(lo, nodes[0])
	copy(hi, nodes[0])
	for _, x := range nodes[1:] {
		for i := 0; i < dim; i++ {
			lo[i] = math.Min(lo[i], x[i])
			hi[i] = math.Max(hi[i], x[i])
		}
	}
	return
}

// InBoundingBox is a cheap rejection test, the box is grown by tol relative to its size
func InBoundingBox(x []float64, nodes [][]float64, tol float64) bool {
	lo, hi := BoundingBox(nodes)
	for i := range lo {
		pad := tol * (hi[i] - lo[i])
		if x[i] < lo[i]-pad || x[i] > hi[i]+pad {
			return false
		}
	}
	return true
}

const (
	maxNewtonIterations = 25
	newtonTolerance     = 1.e-12
	// Iterates this far outside the reference cell are treated as diverged
	newtonDivergence = 1.e3
)

func newtonInverse(el Element, x []float64, nodes [][]float64) (xi []float64, ok bool) {
	var (
		dim = el.Dim()
		r   = mat.NewVecDense(dim, nil)
		dxi = mat.NewVecDense(dim, nil)
	)
	xi = el.Centroid()
	for it := 0; it < maxNewtonIterations; it++ {
		xg := GlobalCoordinates(el, xi, nodes)
		for i := 0; i < dim; i++ {
			r.SetVec(i, xg[i]-x[i])
		}
		if err := dxi.SolveVec(Jacobian(el, xi, nodes), r); err != nil {
			return xi, false
		}
		var norm float64
		for i := 0; i < dim; i++ {
			xi[i] -= dxi.AtVec(i)
			norm = math.Max(norm, math.Abs(dxi.AtVec(i)))
			if math.Abs(xi[i]) > newtonDivergence {
				return xi, false
			}
		}
		if norm < newtonTolerance {
			return xi, true
		}
	}
	return xi, false
}

// affineInverse solves the constant Jacobian system of a linear simplex directly
func affineInverse(el Element, x []float64, nodes [][]float64) (xi []float64, ok bool) {
	var (
		dim = el.Dim()
		r   = mat.NewVecDense(dim, nil)
		sol = mat.NewVecDense(dim, nil)
	)
	for i := 0; i < dim; i++ {
		r.SetVec(i, x[i]-nodes[0][i])
	}
	if err := sol.SolveVec(Jacobian(el, el.Centroid(), nodes), r); err != nil {
		return nil, false
	}
	xi = make([]float64, dim)
	for i := range xi {
		xi[i] = sol.AtVec(i)
	}
	return xi, true
}
