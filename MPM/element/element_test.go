package element

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// A skewed copy of each reference cell, so the inverse map is not the identity
var testCells = map[string][][]float64{
	"ED2Q4": {{0, 0}, {2, 0}, {2.5, 1.5}, {0.2, 1}},
	"ED3H8": {
		{0, 0, 0}, {1, 0, 0}, {1.1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1.2}, {1, 1, 1}, {0, 1.1, 1},
	},
	"ED2T3": {{0, 0}, {2, 0.5}, {0.5, 1.5}},
	"ED3T4": {{0, 0, 0}, {1, 0, 0}, {0.2, 1, 0}, {0.1, 0.1, 2}},
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"ED2Q4", "ED2T3", "ED3H8", "ED3T4"}, Names())
	_, err := New("ED2Q9")
	assert.Error(t, err)
	for _, name := range Names() {
		el, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, el.Name())
		assert.Equal(t, el.NNodes(), len(testCells[name]))
	}
}

func TestShapeFunctions(t *testing.T) {
	for _, name := range Names() {
		el, _ := New(name)
		points, weights := el.Quadrature(3)
		for _, xi := range points {
			// Partition of unity and zero gradient sum
			assert.InDelta(t, 1., floats.Sum(el.ShapeFunctions(xi)), 1.e-14, name)
			dN := el.Gradients(xi)
			for j := 0; j < el.Dim(); j++ {
				var sum float64
				for a := range dN {
					sum += dN[a][j]
				}
				assert.InDelta(t, 0., sum, 1.e-14, name)
			}
			assert.True(t, el.IsInside(xi, 0), name)
		}
		refMeasure := map[string]float64{"ED2Q4": 4, "ED3H8": 8, "ED2T3": 0.5, "ED3T4": 1. / 6.}[name]
		assert.InDelta(t, refMeasure, floats.Sum(weights), 1.e-13, name)
	}
}

func TestLocalCoordinates(t *testing.T) {
	for _, name := range Names() {
		el, _ := New(name)
		nodes := testCells[name]
		points, _ := el.Quadrature(2)
		for _, xi := range points {
			x := GlobalCoordinates(el, xi, nodes)
			assert.True(t, InBoundingBox(x, nodes, 0), name)
			xiInv, ok := el.LocalCoordinates(x, nodes)
			require.True(t, ok, name)
			for i := range xi {
				assert.InDelta(t, xi[i], xiInv[i], 1.e-10, name)
			}
		}
		// Node positions map back to the corners
		for a := range nodes {
			xi, ok := el.LocalCoordinates(nodes[a], nodes)
			require.True(t, ok)
			N := el.ShapeFunctions(xi)
			assert.InDelta(t, 1., N[a], 1.e-10, name)
		}
	}
	{ // A point far outside is rejected by the bounding box and the reference test
		el := Quad4{}
		nodes := testCells["ED2Q4"]
		x := []float64{5, 5}
		assert.False(t, InBoundingBox(x, nodes, 1.e-10))
		xi, ok := el.LocalCoordinates(x, nodes)
		assert.False(t, ok && el.IsInside(xi, 1.e-10))
	}
}

func TestVolume(t *testing.T) {
	assert.InDelta(t, 1., Volume(Quad4{}, [][]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}), 1.e-14)
	assert.InDelta(t, 6., Volume(Hex8{}, [][]float64{
		{0, 0, 0}, {1, 0, 0}, {1, 2, 0}, {0, 2, 0},
		{0, 0, 3}, {1, 0, 3}, {1, 2, 3}, {0, 2, 3},
	}), 1.e-13)
	assert.InDelta(t, 0.5, Volume(Tri3{}, [][]float64{{0, 0}, {1, 0}, {0, 1}}), 1.e-14)
	assert.InDelta(t, 1./6., Volume(Tet4{}, [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}), 1.e-14)
	// Shoelace area of the skewed quad
	q := testCells["ED2Q4"]
	var area float64
	for a := range q {
		b := (a + 1) % 4
		area += q[a][0]*q[b][1] - q[b][0]*q[a][1]
	}
	assert.InDelta(t, math.Abs(area)/2, Volume(Quad4{}, q), 1.e-12)
}

func TestGlobalGradients(t *testing.T) {
	// For a linear field u = 2x + 3y the gradient is exact on a bilinear quad
	var (
		el    = Quad4{}
		nodes = testCells["ED2Q4"]
		u     = make([]float64, 4)
	)
	for a, x := range nodes {
		u[a] = 2*x[0] + 3*x[1]
	}
	dNdx, detJ, err := GlobalGradients(el, []float64{0.3, -0.2}, nodes)
	require.NoError(t, err)
	assert.Greater(t, detJ, 0.)
	var gx, gy float64
	for a := range u {
		gx += dNdx[a][0] * u[a]
		gy += dNdx[a][1] * u[a]
	}
	assert.InDelta(t, 2., gx, 1.e-12)
	assert.InDelta(t, 3., gy, 1.e-12)
}
