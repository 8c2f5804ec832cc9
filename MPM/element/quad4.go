package element

import "math"

// Quad4 is the bilinear quadrilateral on [-1,1]^2, nodes counter clockwise from (-1,-1)
type Quad4 struct{}

var quad4Corners = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

func (Quad4) Name() string { return "ED2Q4" }
func (Quad4) Dim() int     { return 2 }
func (Quad4) NNodes() int  { return 4 }

func (Quad4) ShapeFunctions(xi []float64) (N []float64) {
	N = make([]float64, 4)
	for a, c := range quad4Corners {
		N[a] = 0.25 * (1 + c[0]*xi[0]) * (1 + c[1]*xi[1])
	}
	return
}

func (Quad4) Gradients(xi []float64) (dN [][]float64) {
	dN = make([][]float64, 4)
	for a, c := range quad4Corners {
		dN[a] = []float64{
			0.25 * c[0] * (1 + c[1]*xi[1]),
			0.25 * c[1] * (1 + c[0]*xi[0]),
		}
	}
	return
}

func (q Quad4) LocalCoordinates(x []float64, nodes [][]float64) (xi []float64, ok bool) {
	return newtonInverse(q, x, nodes)
}

func (Quad4) IsInside(xi []float64, tol float64) bool {
	return math.Abs(xi[0]) <= 1+tol && math.Abs(xi[1]) <= 1+tol
}

func (Quad4) Faces() [][]int { return [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}} }

func (Quad4) Edges() [][2]int { return [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}} }

func (Quad4) Quadrature(nquad int) ([][]float64, []float64) { return tensorQuadrature(2, nquad) }

func (Quad4) Centroid() []float64 { return []float64{0, 0} }
