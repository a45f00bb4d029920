package search

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/internal/likelihood"
)

// JointOptimizer refines both chain-binomial parameters at once by
// running the simplex on the negative log-likelihood surface and then
// reading uncertainty off the curvature at the optimum.
type JointOptimizer struct {
	maxIters  int
	tolerance float64
	level     float64
}

// NewJointOptimizer configures a joint fit. level is the two-sided
// confidence level for the reported intervals, e.g. 0.95.
func NewJointOptimizer(maxIters int, tolerance, level float64) (*JointOptimizer, error) {
	if maxIters < 1 {
		return nil, core.NewValidationError("max_iters", "must be at least 1")
	}
	if tolerance <= 0 {
		return nil, core.NewValidationError("tolerance", "must be positive")
	}
	if level <= 0 || level >= 1 {
		return nil, core.NewValidationError("conf_level", "must lie strictly between 0 and 1")
	}
	return &JointOptimizer{maxIters: maxIters, tolerance: tolerance, level: level}, nil
}

// Fit minimizes the negative log-likelihood over (S0, Beta) starting from
// init. Out-of-domain evaluations inside the simplex are absorbed as
// epi.DomainPenalty so the walk can step back into the valid region.
//
// When the simplex exhausts its iteration budget the point estimates are
// still returned, without uncertainty, alongside a convergence error.
func (j *JointOptimizer) Fit(lik *likelihood.ChainBinomial, init epi.ChainBinomialParams) (*epi.ChainBinomialFit, error) {
	if err := init.Validate(); err != nil {
		return nil, err
	}

	objective := func(x []float64) float64 {
		nll, err := lik.NegLogLikelihood(x[0], x[1])
		if err != nil {
			return epi.DomainPenalty
		}
		return nll
	}

	start := []float64{init.S0, init.Beta}
	initial := objective(start)
	res := Minimize(objective, start, Options{MaxIters: j.maxIters, Tolerance: j.tolerance})

	fit := &epi.ChainBinomialFit{
		Params:     epi.ChainBinomialParams{S0: res.Point[0], Beta: res.Point[1]},
		Level:      j.level,
		NLL:        res.Value,
		InitialNLL: initial,
		Iterations: res.Iterations,
		Converged:  res.Converged,
	}

	if !res.Converged {
		return fit, core.NewConvergenceError("nelder-mead", j.maxIters)
	}
	if err := j.uncertainty(objective, fit); err != nil {
		return fit, err
	}
	return fit, nil
}

// uncertainty fills standard errors, covariance, correlation and normal
// confidence intervals from a central-difference Hessian. The S0 step is
// at least a full individual so the difference spans the unit-wide steps
// the floor in the trial count carves into the surface.
func (j *JointOptimizer) uncertainty(objective func([]float64) float64, fit *epi.ChainBinomialFit) error {
	s0, beta := fit.Params.S0, fit.Params.Beta
	hs := math.Max(1.0, 1e-3*math.Abs(s0))
	hb := math.Max(1e-4, 1e-3*math.Abs(beta))

	f := func(a, b float64) float64 { return objective([]float64{a, b}) }
	center := f(s0, beta)

	h00 := (f(s0+hs, beta) - 2*center + f(s0-hs, beta)) / (hs * hs)
	h11 := (f(s0, beta+hb) - 2*center + f(s0, beta-hb)) / (hb * hb)
	h01 := (f(s0+hs, beta+hb) - f(s0+hs, beta-hb) - f(s0-hs, beta+hb) + f(s0-hs, beta-hb)) / (4 * hs * hb)

	det := h00*h11 - h01*h01
	if h00 <= 0 || det <= 0 {
		return core.NewDomainError("likelihood curvature", det)
	}

	cov00 := h11 / det
	cov11 := h00 / det
	cov01 := -h01 / det

	fit.Covariance = [][]float64{{cov00, cov01}, {cov01, cov11}}
	fit.StdErrS0 = math.Sqrt(cov00)
	fit.StdErrBeta = math.Sqrt(cov11)
	fit.Correlation = cov01 / (fit.StdErrS0 * fit.StdErrBeta)

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - (1-j.level)/2)
	fit.CIS0 = epi.Interval{Lower: s0 - z*fit.StdErrS0, Upper: s0 + z*fit.StdErrS0}
	fit.CIBeta = epi.Interval{Lower: beta - z*fit.StdErrBeta, Upper: beta + z*fit.StdErrBeta}
	return nil
}
