package element

import (
	"gonum.org/v1/gonum/integrate/quad"
)

func legendre(n int, min, max float64) (x, w []float64) {
	if n < 1 {
		n = 1
	}
	x, w = make([]float64, n), make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, min, max)
	return
}

// tensorQuadrature is the n^dim Gauss-Legendre rule on [-1,1]^dim
func tensorQuadrature(dim, n int) (points [][]float64, weights []float64) {
	x, w := legendre(n, -1, 1)
	switch dim {
	case 2:
		for j := range x {
			for i := range x {
				points = append(points, []float64{x[i], x[j]})
				weights = append(weights, w[i]*w[j])
			}
		}
	case 3:
		for k := range x {
			for j := range x {
				for i := range x {
					points = append(points, []float64{x[i], x[j], x[k]})
					weights = append(weights, w[i]*w[j]*w[k])
				}
			}
		}
	}
	return
}

// collapsedQuadrature maps a tensor rule on [0,1]^dim onto the unit simplex
func collapsedQuadrature(dim, n int) (points [][]float64, weights []float64) {
	x, w := legendre(n, 0, 1)
	switch dim {
	case 2:
		for i := range x {
			for j := range x {
				u, v := x[i], x[j]
				points = append(points, []float64{u, v * (1 - u)})
				weights = append(weights, w[i]*w[j]*(1-u))
			}
		}
	case 3:
		for i := range x {
			for j := range x {
				for k := range x {
					u, v, s := x[i], x[j], x[k]
					points = append(points, []float64{u, v * (1 - u), s * (1 - u) * (1 - v)})
					weights = append(weights, w[i]*w[j]*w[k]*(1-u)*(1-u)*(1-v))
				}
			}
		}
	}
	return
}
