package reconstruct

import (
	"github.com/montanaflynn/stats"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// Reconstruct derives the susceptible deviation series and reporting rate
// from cumulative births and cumulative cases. The fitted spline's slope
// at each step is the reporting-rate estimate rho(t); its negated
// residual is the deviation D_t of the susceptible count from its
// long-run mean. Corrected incidence rescales observed cases by 1/rho.
//
// Pure function of its inputs: identical series and smoothing target give
// bit-identical results.
func Reconstruct(cumBirths, cumCases []float64, targetEDF float64) (*epi.ReconstructionResult, error) {
	if len(cumBirths) != len(cumCases) {
		return nil, core.NewAlignmentError("cumulative births and cases differ in length")
	}
	n := len(cumCases)
	if n < splineOrder {
		return nil, core.NewInsufficientDataError("susceptible reconstruction", splineOrder, n)
	}
	if err := checkNonDecreasing("cumulative births", cumBirths); err != nil {
		return nil, err
	}
	if err := checkNonDecreasing("cumulative cases", cumCases); err != nil {
		return nil, err
	}

	fit, err := fitPenalized(cumBirths, cumCases, targetEDF)
	if err != nil {
		return nil, err
	}

	raw := timeseries.New("cases", cumCases).Diff()

	deviation := make([]float64, n)
	rate := make([]float64, n)
	corrected := make([]float64, n)
	correctedDev := make([]float64, n)
	for t := 0; t < n; t++ {
		fitted := fit.At(cumBirths[t])
		rho := fit.SlopeAt(cumBirths[t])
		if rho <= 0 {
			return nil, core.NewDomainError("reporting rate", rho)
		}
		deviation[t] = fitted - cumCases[t]
		rate[t] = rho
		corrected[t] = raw.Values[t] / rho
		correctedDev[t] = deviation[t] / rho
	}

	mean, _ := stats.Mean(rate)

	return &epi.ReconstructionResult{
		Deviation:          deviation,
		ReportingRate:      rate,
		MeanRate:           mean,
		Corrected:          corrected,
		CorrectedDeviation: correctedDev,
		TargetEDF:          targetEDF,
		AchievedEDF:        fit.edf,
		Lambda:             fit.lambda,
	}, nil
}

func checkNonDecreasing(name string, values []float64) error {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return core.NewAlignmentError(name + " must be non-decreasing")
		}
	}
	return nil
}
