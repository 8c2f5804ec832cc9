package element

// Tri3 is the linear triangle with reference nodes (0,0), (1,0), (0,1)
type Tri3 struct{}

func (Tri3) Name() string { return "ED2T3" }
func (Tri3) Dim() int     { return 2 }
func (Tri3) NNodes() int  { return 3 }

func (Tri3) ShapeFunctions(xi []float64) []float64 {
	return []float64{1 - xi[0] - xi[1], xi[0], xi[1]}
}

func (Tri3) Gradients(xi []float64) [][]float64 {
	return [][]float64{{-1, -1}, {1, 0}, {0, 1}}
}

func (t Tri3) LocalCoordinates(x []float64, nodes [][]float64) (xi []float64, ok bool) {
	return affineInverse(t, x, nodes)
}

func (Tri3) IsInside(xi []float64, tol float64) bool {
	return xi[0] >= -tol && xi[1] >= -tol && xi[0]+xi[1] <= 1+tol
}

func (Tri3) Faces() [][]int { return [][]int{{0, 1}, {1, 2}, {2, 0}} }

func (Tri3) Edges() [][2]int { return [][2]int{{0, 1}, {1, 2}, {2, 0}} }

func (Tri3) Quadrature(nquad int) ([][]float64, []float64) { return collapsedQuadrature(2, nquad) }

func (Tri3) Centroid() []float64 { return []float64{1. / 3., 1. / 3.} }
