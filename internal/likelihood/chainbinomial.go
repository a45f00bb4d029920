// Package likelihood evaluates epidemic model likelihoods on observed
// incidence. The chain-binomial negative log-likelihood defined here is
// the objective shared by the profile grid scan and the joint optimizer.
package likelihood

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// MinObservations is the shortest incidence sequence the likelihood is
// defined on: one transition needs two observations.
const MinObservations = 2

// ChainBinomial evaluates the negative log-likelihood of an observed
// incidence sequence under the binomial removal model:
//
//	S_t  = floor(S0 - sum of incidence through t)
//	p_t  = 1 - exp(-beta * I_t / S0)
//	I_{t+1} ~ Binomial(S_t, p_t)
//
// Construction validates the data once; evaluations are then pure and
// safe to run concurrently.
type ChainBinomial struct {
	incidence []float64
	total     float64
	policy    epi.DomainPolicy
}

// NewChainBinomial validates the incidence sequence (non-negative integer
// counts, at least MinObservations steps) and fixes the domain-violation
// policy for all evaluations.
func NewChainBinomial(incidence []float64, policy epi.DomainPolicy) (*ChainBinomial, error) {
	if len(incidence) < MinObservations {
		return nil, core.NewInsufficientDataError("chain-binomial likelihood", MinObservations, len(incidence))
	}
	series := timeseries.New("incidence", incidence)
	if err := series.CheckNonNegative(); err != nil {
		return nil, err
	}
	if err := series.CheckWhole(); err != nil {
		return nil, err
	}
	rounded := series.Rounded()
	return &ChainBinomial{
		incidence: rounded.Values,
		total:     rounded.Total(),
		policy:    policy,
	}, nil
}

// Total returns the cumulative observed infections; S0 candidates below
// it are outside the model's support.
func (cb *ChainBinomial) Total() float64 {
	return cb.total
}

// Steps returns the number of observations.
func (cb *ChainBinomial) Steps() int {
	return len(cb.incidence)
}

// NegLogLikelihood evaluates the objective at (s0, beta). A domain
// violation either returns epi.DomainPenalty (PolicyPenalize) or a
// NumericalDomain error (PolicyFail); it never returns NaN or Inf.
func (cb *ChainBinomial) NegLogLikelihood(s0, beta float64) (float64, error) {
	if s0 <= 0 {
		return cb.violate("s0", s0)
	}
	if beta < 0 {
		return cb.violate("beta", beta)
	}
	if s0 < cb.total {
		return cb.violate("s0 below total infections", s0)
	}

	nll := 0.0
	depleted := 0.0
	for t := 0; t < len(cb.incidence)-1; t++ {
		depleted += cb.incidence[t]
		susceptible := math.Floor(s0 - depleted)
		next := cb.incidence[t+1]

		if susceptible < next {
			return cb.violate("susceptibles below removals", susceptible-next)
		}

		p := 1 - math.Exp(-beta*cb.incidence[t]/s0)
		if p < 0 || p > 1 {
			return cb.violate("removal probability", p)
		}

		// The boundary probabilities make the binomial degenerate; handle
		// them before distuv sees a 0*log(0).
		if p == 0 {
			if next > 0 {
				return cb.violate("impossible removals at zero probability", next)
			}
			continue
		}
		if p == 1 {
			if next != susceptible {
				return cb.violate("certain removal not observed", next)
			}
			continue
		}

		dist := distuv.Binomial{N: susceptible, P: p}
		lp := dist.LogProb(next)
		if math.IsNaN(lp) || math.IsInf(lp, 0) {
			return cb.violate("binomial log-probability", lp)
		}
		nll -= lp
	}
	return nll, nil
}

// violate applies the configured domain policy.
func (cb *ChainBinomial) violate(quantity string, value float64) (float64, error) {
	if cb.policy == epi.PolicyPenalize {
		return epi.DomainPenalty, nil
	}
	return 0, core.NewDomainError(quantity, value)
}
