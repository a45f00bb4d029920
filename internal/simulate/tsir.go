package simulate

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// TSIR simulates the time-series SIR model: the intensity out of step t
// is beta[season(t)] * S_t * I_t^alpha / N, and births replenish the
// susceptible pool each step. There is no extinction stop; the horizon is
// the length of the birth series.
type TSIR struct {
	params epi.TSIRParams
	season timeseries.SeasonalIndex
}

// NewTSIR validates the parameter set against the seasonal index. The
// index period must match the length of the seasonal beta vector, or
// the cyclic lookups would silently desynchronize.
func NewTSIR(params epi.TSIRParams, season timeseries.SeasonalIndex) (*TSIR, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if season.Period != params.Seasons() {
		return nil, core.NewValidationError("season", "index period does not match the seasonal beta length")
	}
	return &TSIR{params: params, season: season}, nil
}

// Run simulates one path from the initial state (s0, i0) over a horizon
// equal to the birth series. Entry 0 of the trajectory is the initial
// state; entry t is the state after consuming births[t-1]. src supplies
// the Poisson draws and may be nil in deterministic mode.
func (ts *TSIR) Run(s0, i0 float64, births []float64, mode epi.Mode, src rand.Source) (*epi.Trajectory, error) {
	if len(births) == 0 {
		return nil, core.NewInsufficientDataError("birth series", 1, 0)
	}
	if s0 <= 0 {
		return nil, core.NewDomainError("initial susceptibles", s0)
	}
	if i0 < 0 {
		return nil, core.NewDomainError("initial infections", i0)
	}
	if mode == epi.ModeStochastic && src == nil {
		return nil, core.NewValidationError("rng", "stochastic mode requires a random source")
	}

	h := len(births)
	s := make([]float64, h+1)
	i := make([]float64, h+1)
	lambda := make([]float64, h+1)
	s[0], i[0] = s0, i0

	for t := 1; t <= h; t++ {
		stratum := ts.season.SeasonOf(t - 1)
		lam := ts.params.SeasonBeta(stratum) * s[t-1] * math.Pow(i[t-1], ts.params.Alpha) / ts.params.N
		if lam < 0 {
			lam = 0
		}

		var next float64
		if mode == epi.ModeDeterministic {
			next = lam
		} else if lam > 0 {
			next = distuv.Poisson{Lambda: lam, Src: src}.Rand()
		}

		lambda[t] = lam
		i[t] = next
		s[t] = s[t-1] + births[t-1] - next
	}

	return &epi.Trajectory{S: s, I: i, Lambda: lambda, Mode: mode}, nil
}
