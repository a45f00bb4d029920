package testkit

import (
	"math"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// ChainBinomialSeries builds a deterministic epidemic curve by propagating
// the expected chain-binomial step and rounding to whole counts:
//
//	S_t  = floor(S0 - sum of incidence through t)
//	p_t  = 1 - exp(-beta * I_t / S0)
//	I_{t+1} = round(S_t * p_t)
//
// The rounded draw never exceeds S_t, so the series always lies inside the
// likelihood's support. Generation stops at extinction or after steps
// observations, whichever comes first.
func ChainBinomialSeries(s0, beta, i0 float64, steps int) []float64 {
	if steps < 1 {
		return nil
	}
	out := make([]float64, 0, steps)
	out = append(out, math.Round(i0))
	depleted := 0.0
	for len(out) < steps {
		current := out[len(out)-1]
		if current == 0 {
			break
		}
		depleted += current
		susceptible := math.Floor(s0 - depleted)
		if susceptible <= 0 {
			break
		}
		p := 1 - math.Exp(-beta*current/s0)
		next := math.Round(susceptible * p)
		out = append(out, next)
	}
	return out
}

// SeasonalBirths builds a slowly varying birth series
// base*(1 + amplitude*sin(2*pi*t/period)), rounded to whole counts.
func SeasonalBirths(n int, base, amplitude, period float64) []float64 {
	out := make([]float64, n)
	for t := range out {
		out[t] = math.Round(base * (1 + amplitude*math.Sin(2*math.Pi*float64(t)/period)))
	}
	return out
}

// SeasonalBetaPattern builds a strictly positive per-season transmission
// pattern base + amplitude*sin(2*pi*k/periods). Callers must keep
// amplitude below base.
func SeasonalBetaPattern(periods int, base, amplitude float64) []float64 {
	out := make([]float64, periods)
	for k := range out {
		out[k] = base + amplitude*math.Sin(2*math.Pi*float64(k)/float64(periods))
	}
	return out
}

// SyntheticDataset builds a deterministic endemic dataset: seasonally
// oscillating case counts that never reach zero, slowly varying births,
// and a constant population. The same name and length always produce the
// same series, so fingerprints are reproducible across test runs.
func SyntheticDataset(name string, steps int) *epi.Dataset {
	cases := make([]float64, steps)
	for t := range cases {
		seasonal := 35 * math.Sin(2*math.Pi*float64(t)/26)
		slow := 10 * math.Sin(2*math.Pi*float64(t)/180)
		cases[t] = math.Round(60 + seasonal + slow)
	}
	births := SeasonalBirths(steps, 120, 0.1, 300)
	population := make([]float64, steps)
	for t := range population {
		population[t] = 3.3e6
	}

	season, _ := timeseries.NewSeasonalIndex(26, 0)
	return &epi.Dataset{
		ID:         core.DatasetID(core.NewID()),
		Name:       name,
		Cases:      timeseries.New("cases", cases),
		Births:     timeseries.New("births", births),
		Population: timeseries.New("population", population),
		Season:     season,
	}
}
