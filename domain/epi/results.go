package epi

import (
	"math"

	"epifit/domain/core"
)

// ReconstructionResult is the output of susceptible reconstruction from
// cumulative births and cases. Computed once per dataset and immutable
// thereafter.
type ReconstructionResult struct {
	// Deviation is D_t, the reconstructed deviation of the susceptible
	// count from its long-run mean, centered around 0.
	Deviation []float64 `json:"deviation"`
	// ReportingRate is the per-step slope estimate rho(t) of the fitted
	// cumulative-cases-on-cumulative-births curve.
	ReportingRate []float64 `json:"reporting_rate"`
	// MeanRate is the scalar mean of ReportingRate, for consumers that
	// assume a constant reporting fraction.
	MeanRate float64 `json:"mean_rate"`
	// Corrected is I_c(t) = raw(t) / rho(t), incidence scaled up to the
	// true-case scale.
	Corrected []float64 `json:"corrected"`
	// CorrectedDeviation is D_c(t) = D(t) / rho(t).
	CorrectedDeviation []float64 `json:"corrected_deviation"`

	// Smoothing metadata: the requested and achieved effective degrees of
	// freedom and the penalty weight the bisection settled on.
	TargetEDF   float64 `json:"target_edf"`
	AchievedEDF float64 `json:"achieved_edf"`
	Lambda      float64 `json:"lambda"`
}

// RegressionFit is the output of the seasonal log-linear regression: the
// first Seasons coefficients are per-season log-transmission rates, the
// last coefficient is the mixing exponent alpha.
type RegressionFit struct {
	Coefficients []float64 `json:"coefficients"`
	StdErrors    []float64 `json:"std_errors"`
	// Deviance is the residual sum of squares of the offset-adjusted
	// log-linear fit, the likelihood surrogate profile scans minimize.
	Deviance     float64 `json:"deviance"`
	Seasons      int     `json:"seasons"`
	Observations int     `json:"observations"`
}

// SeasonalBeta exponentiates the seasonal coefficients back to the
// transmission-rate scale.
func (f RegressionFit) SeasonalBeta() []float64 {
	out := make([]float64, f.Seasons)
	for k := 0; k < f.Seasons && k < len(f.Coefficients); k++ {
		out[k] = math.Exp(f.Coefficients[k])
	}
	return out
}

// Alpha returns the mixing-exponent coefficient.
func (f RegressionFit) Alpha() float64 {
	if len(f.Coefficients) == 0 {
		return 0
	}
	return f.Coefficients[len(f.Coefficients)-1]
}

// AlphaStdError returns the standard error of the mixing exponent.
func (f RegressionFit) AlphaStdError() float64 {
	if len(f.StdErrors) == 0 {
		return 0
	}
	return f.StdErrors[len(f.StdErrors)-1]
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v falls inside the interval.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Lower && v <= iv.Upper
}

// ChainBinomialFit is the output of joint maximum-likelihood estimation
// over (S0, Beta): point estimates with uncertainty from the curvature of
// the objective at the optimum.
type ChainBinomialFit struct {
	Params ChainBinomialParams `json:"params"`

	StdErrS0   float64 `json:"std_err_s0"`
	StdErrBeta float64 `json:"std_err_beta"`
	// Covariance is the 2x2 parameter covariance in (S0, Beta) order.
	Covariance  [][]float64 `json:"covariance"`
	Correlation float64     `json:"correlation"`

	// Level is the two-sided confidence level the intervals were built at.
	Level  float64  `json:"level"`
	CIS0   Interval `json:"ci_s0"`
	CIBeta Interval `json:"ci_beta"`

	NLL        float64 `json:"nll"`
	InitialNLL float64 `json:"initial_nll"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
}

// ProfilePoint is one evaluated candidate of a profile-likelihood scan.
type ProfilePoint struct {
	Candidate float64 `json:"candidate"`
	Objective float64 `json:"objective"`
	Penalized bool    `json:"penalized"`
}

// ProfileResult is the outcome of a full grid scan: the winning candidate,
// the fit object produced at it, and every evaluated point for the
// consumer's profile curve.
type ProfileResult struct {
	Best      ProfilePoint   `json:"best"`
	Fit       interface{}    `json:"fit,omitempty"`
	Points    []ProfilePoint `json:"points"`
	Penalized int            `json:"penalized"`
}

// Validate checks structural consistency of a profile result.
func (r ProfileResult) Validate() error {
	if len(r.Points) == 0 {
		return core.NewValidationError("profile_result", "no evaluated points")
	}
	return nil
}
