package timeseries

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"epifit/domain/core"
)

// SeasonalIndex maps observation steps onto a cyclic set of sub-year
// periods. Period is the cycle length P (26 for biweekly data); Phase is
// the stratum step 0 falls into, for series that do not start at the
// beginning of a cycle.
type SeasonalIndex struct {
	Period int `json:"period"`
	Phase  int `json:"phase"`
}

// NewSeasonalIndex validates the cycle length and normalizes the phase
// into [0, period).
func NewSeasonalIndex(period, phase int) (SeasonalIndex, error) {
	if period < 1 {
		return SeasonalIndex{}, core.NewDomainError("season period", float64(period))
	}
	phase = ((phase % period) + period) % period
	return SeasonalIndex{Period: period, Phase: phase}, nil
}

// SeasonOf returns the 0-based stratum of a step.
func (x SeasonalIndex) SeasonOf(step int) int {
	return (step + x.Phase) % x.Period
}

// LabelAt returns the 1-based period label of a step, the convention used
// in reports.
func (x SeasonalIndex) LabelAt(step int) int {
	return x.SeasonOf(step) + 1
}

// Labels materializes the 1-based labels for the first n steps.
func (x SeasonalIndex) Labels(n int) []int {
	out := make([]int, n)
	for t := range out {
		out[t] = x.LabelAt(t)
	}
	return out
}

// Coverage reports, per stratum, whether any of the first n steps falls
// into it. A seasonal model is identifiable only when every stratum is
// covered.
func (x SeasonalIndex) Coverage(n int) []bool {
	covered := make([]bool, x.Period)
	for t := 0; t < n; t++ {
		covered[x.SeasonOf(t)] = true
	}
	return covered
}

// Season maps an observation step to its seasonal stratum under a cycle of
// the given period with zero phase. Period must be positive.
func Season(step, period int) int {
	return step % period
}

// Strata groups values by seasonal stratum, preserving observation order
// within each stratum.
func Strata(values []float64, period int) ([][]float64, error) {
	if period < 1 {
		return nil, core.NewDomainError("season period", float64(period))
	}
	out := make([][]float64, period)
	for t, v := range values {
		k := Season(t, period)
		out[k] = append(out[k], v)
	}
	return out, nil
}

// SeasonalMeans returns the mean of each seasonal stratum. Strata that no
// observation falls into produce an error since a seasonal summary cannot
// be formed for them.
func SeasonalMeans(values []float64, period int) ([]float64, error) {
	strata, err := Strata(values, period)
	if err != nil {
		return nil, err
	}
	means := make([]float64, period)
	for k, group := range strata {
		if len(group) == 0 {
			return nil, fmt.Errorf("%w: no observations in season %d of %d", core.ErrInsufficientData, k+1, period)
		}
		m, _ := stats.Mean(group)
		means[k] = m
	}
	return means, nil
}
