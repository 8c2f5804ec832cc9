package mesh

import (
	"fmt"

	"github.com/notargets/gompm/types"
)

// Grid is the node coordinates and cell connectivity of one element type, ids counted from zero
type Grid struct {
	Element     string
	Coordinates [][]float64
	Cells       [][]types.Index
}

/*
StructuredGrid divides the box lo..hi into n[i] cells along each direction. Node ids run
fastest along x, then y, then z, starting at zero; cells are numbered the same way.
*/
func StructuredGrid(n []int, lo, hi []float64) (g *Grid, err error) {
	dim := len(n)
	if (dim != 2 && dim != 3) || len(lo) != dim || len(hi) != dim {
		return nil, fmt.Errorf("structured grid: %w: %d divisions, %d and %d bounds", ErrDimensionMismatch, len(n), len(lo), len(hi))
	}
	for i := range n {
		if n[i] < 1 || hi[i] <= lo[i] {
			return nil, fmt.Errorf("structured grid: %w: %d cells on [%g, %g] along %d", ErrInvalidValue, n[i], lo[i], hi[i], i)
		}
	}
	nz := 1
	if dim == 3 {
		nz = n[2]
	}
	var (
		nx, ny  = n[0], n[1]
		nodeID  = func(i, j, k int) types.Index { return types.Index(i + (nx+1)*(j+(ny+1)*k)) }
		spacing = make([]float64, dim)
	)
	for i := range spacing {
		spacing[i] = (hi[i] - lo[i]) / float64(n[i])
	}
	g = &Grid{Element: "ED2Q4"}
	if dim == 3 {
		g.Element = "ED3H8"
	}
	kmax := 0
	if dim == 3 {
		kmax = nz
	}
	for k := 0; k <= kmax; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				x := []float64{lo[0] + float64(i)*spacing[0], lo[1] + float64(j)*spacing[1]}
				if dim == 3 {
					x = append(x, lo[2]+float64(k)*spacing[2])
				}
				g.Coordinates = append(g.Coordinates, x)
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				quad := []types.Index{nodeID(i, j, k), nodeID(i+1, j, k), nodeID(i+1, j+1, k), nodeID(i, j+1, k)}
				if dim == 3 {
					quad = append(quad, nodeID(i, j, k+1), nodeID(i+1, j, k+1), nodeID(i+1, j+1, k+1), nodeID(i, j+1, k+1))
				}
				g.Cells = append(g.Cells, quad)
			}
		}
	}
	return
}

// Build creates the grid nodes and cells in m, computes the cell neighbours
func (g *Grid) Build(m *Mesh, ntype types.NodeType) (err error) {
	if err = m.CreateNodes(0, ntype, g.Coordinates, true); err != nil {
		return
	}
	if err = m.CreateCells(0, g.Element, g.Cells, true); err != nil {
		return
	}
	return m.ComputeCellNeighbours()
}
