// Package reconstruct derives the latent susceptible series from
// cumulative births and cases: a penalized cubic B-spline regression of
// cumulative cases on cumulative births yields the reporting rate (the
// curve's slope) and the susceptible deviation (the negated residual).
package reconstruct

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"epifit/domain/core"
)

const (
	// maxBasisFunctions caps the B-spline basis size; beyond ~20 the
	// penalty controls smoothness, not the basis resolution.
	maxBasisFunctions = 20
	splineOrder       = 4

	// Bisection bounds for the penalty weight, in log10 space.
	logLambdaMin = -10
	logLambdaMax = 14
	edfTolerance = 1e-3
)

// basis is a uniform cubic B-spline basis over [xmin, xmax] with m
// functions. Knots extend one order beyond the data range on both sides
// so the basis partitions unity over the whole interval and a
// second-difference coefficient penalty has exactly the linear functions
// in its null space.
type basis struct {
	knots []float64
	m     int
	xmax  float64
}

func newBasis(xmin, xmax float64, m int) *basis {
	h := (xmax - xmin) / float64(m-splineOrder+1)
	knots := make([]float64, m+splineOrder)
	for i := range knots {
		knots[i] = xmin + float64(i-(splineOrder-1))*h
	}
	return &basis{knots: knots, m: m, xmax: xmax}
}

// order1 seeds the Cox-de Boor recurrence with the interval indicators.
// Intervals are half-open except at the right boundary, where x == xmax is
// folded into the final data interval.
func (b *basis) order1(x float64) []float64 {
	t := b.knots
	n := len(t) - 1
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		if x == b.xmax {
			if t[i] < x && x <= t[i+1] {
				vals[i] = 1
			}
		} else if t[i] <= x && x < t[i+1] {
			vals[i] = 1
		}
	}
	return vals
}

// evalAll returns the m basis function values at x.
func (b *basis) evalAll(x float64) []float64 {
	t := b.knots
	n := len(t) - 1
	vals := b.order1(x)
	for k := 2; k <= splineOrder; k++ {
		for i := 0; i+k <= n; i++ {
			var v float64
			if d := t[i+k-1] - t[i]; d > 0 {
				v += (x - t[i]) / d * vals[i]
			}
			if d := t[i+k] - t[i+1]; d > 0 {
				v += (t[i+k] - x) / d * vals[i+1]
			}
			vals[i] = v
		}
	}
	return vals[:b.m]
}

// derivAll returns the m basis derivatives at x using the standard
// difference of order-3 splines.
func (b *basis) derivAll(x float64) []float64 {
	t := b.knots
	n := len(t) - 1
	vals := b.order1(x)
	for k := 2; k < splineOrder; k++ {
		for i := 0; i+k <= n; i++ {
			var v float64
			if d := t[i+k-1] - t[i]; d > 0 {
				v += (x - t[i]) / d * vals[i]
			}
			if d := t[i+k] - t[i+1]; d > 0 {
				v += (t[i+k] - x) / d * vals[i+1]
			}
			vals[i] = v
		}
	}

	derivs := make([]float64, b.m)
	deg := float64(splineOrder - 1)
	for i := 0; i < b.m; i++ {
		var v float64
		if d := t[i+splineOrder-1] - t[i]; d > 0 {
			v += deg / d * vals[i]
		}
		if d := t[i+splineOrder] - t[i+1]; d > 0 {
			v -= deg / d * vals[i+1]
		}
		derivs[i] = v
	}
	return derivs
}

// splineFit is a fitted penalized spline.
type splineFit struct {
	basis  *basis
	coeff  []float64
	lambda float64
	edf    float64
}

// At evaluates the fitted curve.
func (f *splineFit) At(x float64) float64 {
	row := f.basis.evalAll(x)
	v := 0.0
	for i, b := range row {
		v += f.coeff[i] * b
	}
	return v
}

// SlopeAt evaluates the fitted curve's first derivative.
func (f *splineFit) SlopeAt(x float64) float64 {
	row := f.basis.derivAll(x)
	v := 0.0
	for i, b := range row {
		v += f.coeff[i] * b
	}
	return v
}

// fitPenalized fits a penalized B-spline regression of y on x, choosing
// the penalty weight by bisection so the effective degrees of freedom of
// the smoother match targetEDF. The x range must be non-degenerate.
func fitPenalized(x, y []float64, targetEDF float64) (*splineFit, error) {
	n := len(x)
	if n < splineOrder {
		return nil, core.NewInsufficientDataError("spline fit", splineOrder, n)
	}

	xmin, xmax := x[0], x[0]
	for _, v := range x {
		xmin = math.Min(xmin, v)
		xmax = math.Max(xmax, v)
	}
	if xmax <= xmin {
		return nil, core.NewIdentifiabilityError("degenerate predictor range")
	}

	m := n
	if m > maxBasisFunctions {
		m = maxBasisFunctions
	}
	if targetEDF >= float64(m) || targetEDF >= float64(n) {
		return nil, core.NewInsufficientDataError("smoothing", int(targetEDF)+1, n)
	}

	bas := newBasis(xmin, xmax, m)

	design := mat.NewDense(n, m, nil)
	for j := 0; j < n; j++ {
		design.SetRow(j, bas.evalAll(x[j]))
	}

	var btb mat.Dense
	btb.Mul(design.T(), design)

	omega := secondDifferencePenalty(m)

	// The smoother trace is monotone decreasing in lambda, so bisection
	// in log space pins the requested degrees of freedom.
	lo, hi := float64(logLambdaMin), float64(logLambdaMax)
	lambda := math.Pow(10, (lo+hi)/2)
	edf := 0.0
	for iter := 0; iter < 100; iter++ {
		mid := (lo + hi) / 2
		lambda = math.Pow(10, mid)
		var err error
		edf, err = effectiveDF(&btb, omega, lambda, m)
		if err != nil {
			return nil, err
		}
		if math.Abs(edf-targetEDF) < edfTolerance {
			break
		}
		if edf > targetEDF {
			lo = mid
		} else {
			hi = mid
		}
	}

	penalized, err := penalizedNormal(&btb, omega, lambda, m)
	if err != nil {
		return nil, err
	}

	yVec := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		yVec.SetVec(j, y[j])
	}
	var rhs mat.VecDense
	rhs.MulVec(design.T(), yVec)

	coeff := mat.NewVecDense(m, nil)
	if err := penalized.SolveVecTo(coeff, &rhs); err != nil {
		return nil, core.NewIdentifiabilityError("penalized normal equations not solvable")
	}
	co := make([]float64, m)
	for i := range co {
		co[i] = coeff.AtVec(i)
	}

	return &splineFit{
		basis:  bas,
		coeff:  co,
		lambda: lambda,
		edf:    edf,
	}, nil
}

// secondDifferencePenalty builds Omega = D2' * D2 for m coefficients.
func secondDifferencePenalty(m int) *mat.Dense {
	d2 := mat.NewDense(m-2, m, nil)
	for i := 0; i < m-2; i++ {
		d2.Set(i, i, 1)
		d2.Set(i, i+1, -2)
		d2.Set(i, i+2, 1)
	}
	var omega mat.Dense
	omega.Mul(d2.T(), d2)
	return &omega
}

// penalizedNormal factorizes B'B + lambda*Omega.
func penalizedNormal(btb, omega *mat.Dense, lambda float64, m int) (*mat.Cholesky, error) {
	sym := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			sym.SetSym(i, j, btb.At(i, j)+lambda*omega.At(i, j))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, core.NewIdentifiabilityError("penalized normal equations not positive definite")
	}
	return &chol, nil
}

// effectiveDF computes tr((B'B + lambda*Omega)^-1 B'B), the trace of the
// smoother hat matrix.
func effectiveDF(btb, omega *mat.Dense, lambda float64, m int) (float64, error) {
	chol, err := penalizedNormal(btb, omega, lambda, m)
	if err != nil {
		return 0, err
	}
	var solved mat.Dense
	if err := chol.SolveTo(&solved, btb); err != nil {
		return 0, core.NewIdentifiabilityError("smoother trace not computable")
	}
	tr := 0.0
	for i := 0; i < m; i++ {
		tr += solved.At(i, i)
	}
	return tr, nil
}
