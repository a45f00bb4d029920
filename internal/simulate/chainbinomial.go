// Package simulate steps fitted epidemic models forward in time. Two
// variants share the same step structure: compute an expected-infection
// intensity from the prior state, draw or copy the next incidence, then
// update the susceptible pool. The chain-binomial variant absorbs at the
// first zero-incidence step; the TSIR variant is birth-driven and runs
// for a fixed horizon. Every trajectory owns its own pre-sized buffers
// and every stochastic draw comes from an explicitly supplied source, so
// replicates are independent and reproducible.
package simulate

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"epifit/domain/core"
	"epifit/domain/epi"
)

// ChainBinomial simulates the binomial removal model: each step, every
// remaining susceptible escapes infection with probability
// exp(-beta*I/S0), and the non-escapes become the next incidence.
type ChainBinomial struct {
	params epi.ChainBinomialParams
}

// NewChainBinomial validates the parameter set and returns a simulator.
func NewChainBinomial(params epi.ChainBinomialParams) (*ChainBinomial, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ChainBinomial{params: params}, nil
}

// Run simulates one path from i0 initial infections. The path stops at
// the first step with zero incidence or after horizon steps, whichever
// comes first. src supplies the binomial draws and may be nil in
// deterministic mode.
func (cb *ChainBinomial) Run(i0 float64, horizon int, mode epi.Mode, src rand.Source) (*epi.Trajectory, error) {
	if i0 < 0 || i0 > cb.params.S0 {
		return nil, core.NewDomainError("initial infections", i0)
	}
	if horizon < 1 {
		return nil, core.NewValidationError("horizon", "must be at least 1 step")
	}
	if mode == epi.ModeStochastic && src == nil {
		return nil, core.NewValidationError("rng", "stochastic mode requires a random source")
	}

	s := make([]float64, 1, horizon+1)
	i := make([]float64, 1, horizon+1)
	lambda := make([]float64, 1, horizon+1)

	susceptible := cb.params.S0 - i0
	s[0], i[0], lambda[0] = susceptible, i0, 0

	tr := &epi.Trajectory{Mode: mode}
	prev := i0
	for t := 1; t <= horizon; t++ {
		if prev == 0 {
			tr.Extinguished = true
			break
		}

		p := 1 - math.Exp(-cb.params.Beta*prev/cb.params.S0)
		trials := math.Floor(susceptible)
		if trials < 0 {
			trials = 0
		}
		expected := trials * p

		var next float64
		if mode == epi.ModeDeterministic {
			next = expected
		} else if trials > 0 && p > 0 {
			next = distuv.Binomial{N: trials, P: p, Src: src}.Rand()
		}

		susceptible -= next
		s = append(s, susceptible)
		i = append(i, next)
		lambda = append(lambda, expected)
		prev = next
	}

	tr.S, tr.I, tr.Lambda = s, i, lambda
	return tr, nil
}
