package search

import (
	"math"
)

// Simplex coefficients: reflection, expansion, contraction, shrink.
const (
	nmAlpha = 1.0
	nmGamma = 2.0
	nmRho   = 0.5
	nmSigma = 0.5
)

// Options bound a simplex minimization. Tolerance is the spread of
// objective values across the simplex; PointTolerance is the relative
// simplex diameter. Meeting either counts as convergence, since on a
// likelihood surface with floor discontinuities the value spread can
// bottom out at the discontinuity height while the simplex keeps
// collapsing onto the minimizer.
type Options struct {
	MaxIters       int
	Tolerance      float64
	PointTolerance float64
}

// Result is the outcome of a simplex minimization.
type Result struct {
	Point      []float64
	Value      float64
	Iterations int
	Converged  bool
}

// Minimize runs Nelder-Mead from start. The objective must be total:
// out-of-domain points carry a large finite penalty rather than an
// error, which is how the chain-binomial likelihood behaves under its
// penalize policy.
func Minimize(objective func([]float64) float64, start []float64, opts Options) Result {
	n := len(start)
	if opts.MaxIters < 1 {
		opts.MaxIters = 1
	}
	if opts.PointTolerance <= 0 {
		opts.PointTolerance = 1e-8
	}

	simplex := make([][]float64, n+1)
	values := make([]float64, n+1)
	simplex[0] = append([]float64(nil), start...)
	values[0] = objective(simplex[0])
	for i := 0; i < n; i++ {
		vertex := append([]float64(nil), start...)
		vertex[i] += 0.05 * (1 + math.Abs(start[i]))
		simplex[i+1] = vertex
		values[i+1] = objective(vertex)
	}

	for iter := 1; iter <= opts.MaxIters; iter++ {
		orderSimplex(simplex, values)

		if values[n]-values[0] < opts.Tolerance || diameter(simplex) < opts.PointTolerance {
			return Result{Point: simplex[0], Value: values[0], Iterations: iter, Converged: true}
		}

		// Centroid of all vertices but the worst.
		centroid := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				centroid[i] += simplex[j][i]
			}
			centroid[i] /= float64(n)
		}

		reflected := blend(centroid, simplex[n], -nmAlpha)
		reflectedVal := objective(reflected)

		if values[0] <= reflectedVal && reflectedVal < values[n-1] {
			simplex[n], values[n] = reflected, reflectedVal
			continue
		}

		if reflectedVal < values[0] {
			expanded := blend(centroid, reflected, nmGamma)
			if expandedVal := objective(expanded); expandedVal < reflectedVal {
				simplex[n], values[n] = expanded, expandedVal
			} else {
				simplex[n], values[n] = reflected, reflectedVal
			}
			continue
		}

		var contracted []float64
		if reflectedVal < values[n] {
			contracted = blend(centroid, reflected, nmRho)
		} else {
			contracted = blend(centroid, simplex[n], nmRho)
		}
		if contractedVal := objective(contracted); contractedVal < math.Min(reflectedVal, values[n]) {
			simplex[n], values[n] = contracted, contractedVal
			continue
		}

		// Shrink toward the best vertex.
		for i := 1; i <= n; i++ {
			simplex[i] = blend(simplex[0], simplex[i], nmSigma)
			values[i] = objective(simplex[i])
		}
	}

	orderSimplex(simplex, values)
	return Result{Point: simplex[0], Value: values[0], Iterations: opts.MaxIters, Converged: false}
}

// blend returns base + weight*(point-base).
func blend(base, point []float64, weight float64) []float64 {
	out := make([]float64, len(base))
	for i := range out {
		out[i] = base[i] + weight*(point[i]-base[i])
	}
	return out
}

// diameter is the largest relative coordinate spread from the best vertex.
func diameter(simplex [][]float64) float64 {
	best := simplex[0]
	d := 0.0
	for _, vertex := range simplex[1:] {
		for i, v := range vertex {
			if spread := math.Abs(v-best[i]) / (1 + math.Abs(best[i])); spread > d {
				d = spread
			}
		}
	}
	return d
}

// orderSimplex sorts vertices by objective value, best first. Insertion
// sort; the simplex has at most a handful of vertices.
func orderSimplex(simplex [][]float64, values []float64) {
	for i := 1; i < len(values); i++ {
		val, point := values[i], simplex[i]
		j := i - 1
		for j >= 0 && values[j] > val {
			values[j+1], simplex[j+1] = values[j], simplex[j]
			j--
		}
		values[j+1], simplex[j+1] = val, point
	}
}
