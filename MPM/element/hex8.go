package element

import "math"

// Hex8 is the trilinear hexahedron on [-1,1]^3. Nodes 0-3 are the bottom face counter
// clockwise from (-1,-1,-1), nodes 4-7 the top face above them.
type Hex8 struct{}

var hex8Corners = [8][3]float64{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

func (Hex8) Name() string { return "ED3H8" }
func (Hex8) Dim() int     { return 3 }
func (Hex8) NNodes() int  { return 8 }

func (Hex8) ShapeFunctions(xi []float64) (N []float64) {
	N = make([]float64, 8)
	for a, c := range hex8Corners {
		N[a] = 0.125 * (1 + c[0]*xi[0]) * (1 + c[1]*xi[1]) * (1 + c[2]*xi[2])
	}
	return
}

func (Hex8) Gradients(xi []float64) (dN [][]float64) {
	dN = make([][]float64, 8)
	for a, c := range hex8Corners {
		var (
			f0 = 1 + c[0]*xi[0]
			f1 = 1 + c[1]*xi[1]
			f2 = 1 + c[2]*xi[2]
		)
		dN[a] = []float64{
			0.125 * c[0] * f1 * f2,
			0.125 * c[1] * f0 * f2,
			0.125 * c[2] * f0 * f1,
		}
	}
	return
}

func (h Hex8) LocalCoordinates(x []float64, nodes [][]float64) (xi []float64, ok bool) {
	return newtonInverse(h, x, nodes)
}

func (Hex8) IsInside(xi []float64, tol float64) bool {
	return math.Abs(xi[0]) <= 1+tol && math.Abs(xi[1]) <= 1+tol && math.Abs(xi[2]) <= 1+tol
}

func (Hex8) Faces() [][]int {
	return [][]int{
		{0, 1, 5, 4}, {5, 1, 2, 6}, {7, 6, 2, 3},
		{0, 4, 7, 3}, {1, 0, 3, 2}, {4, 5, 6, 7},
	}
}

func (Hex8) Edges() [][2]int {
	return [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
}

func (Hex8) Quadrature(nquad int) ([][]float64, []float64) { return tensorQuadrature(3, nquad) }

func (Hex8) Centroid() []float64 { return []float64{0, 0, 0} }
