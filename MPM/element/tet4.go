package element

// Tet4 is the linear tetrahedron with reference nodes at the origin and the unit axes
type Tet4 struct{}

func (Tet4) Name() string { return "ED3T4" }
func (Tet4) Dim() int     { return 3 }
func (Tet4) NNodes() int  { return 4 }

func (Tet4) ShapeFunctions(xi []float64) []float64 {
	return []float64{1 - xi[0] - xi[1] - xi[2], xi[0], xi[1], xi[2]}
}

func (Tet4) Gradients(xi []float64) [][]float64 {
	return [][]float64{{-1, -1, -1}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (t Tet4) LocalCoordinates(x []float64, nodes [][]float64) (xi []float64, ok bool) {
	return affineInverse(t, x, nodes)
}

func (Tet4) IsInside(xi []float64, tol float64) bool {
	return xi[0] >= -tol && xi[1] >= -tol && xi[2] >= -tol && xi[0]+xi[1]+xi[2] <= 1+tol
}

func (Tet4) Faces() [][]int { return [][]int{{1, 2, 3}, {0, 3, 2}, {0, 1, 3}, {0, 2, 1}} }

func (Tet4) Edges() [][2]int {
	return [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}}
}

func (Tet4) Quadrature(nquad int) ([][]float64, []float64) { return collapsedQuadrature(3, nquad) }

func (Tet4) Centroid() []float64 { return []float64{0.25, 0.25, 0.25} }
