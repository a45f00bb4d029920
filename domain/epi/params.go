// Package epi defines the parameter and result records of the epidemic
// inference engine: chain-binomial and TSIR parameter sets, fit results,
// reconstruction outputs, and simulated trajectories. Records are created
// by the fitting code and never mutated afterwards; a new fit produces a
// new record.
package epi

import (
	"epifit/domain/core"
)

// DomainPenalty is the large finite objective value substituted for an
// evaluation that leaves the model's support when the caller selects
// PolicyPenalize. It keeps grid scans comparable without ever emitting
// NaN or Inf.
const DomainPenalty = 1e12

// DomainPolicy selects what an objective evaluation does when it hits a
// numerical domain violation (probability off [0,1], more removals than
// susceptibles, non-positive log argument).
type DomainPolicy int

const (
	// PolicyPenalize substitutes DomainPenalty so scans continue.
	PolicyPenalize DomainPolicy = iota
	// PolicyFail aborts the evaluation with a NumericalDomain error.
	PolicyFail
)

func (p DomainPolicy) String() string {
	switch p {
	case PolicyPenalize:
		return "penalize"
	case PolicyFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Mode selects between deterministic and stochastic stepping in the
// simulators.
type Mode int

const (
	ModeDeterministic Mode = iota
	ModeStochastic
)

func (m Mode) String() string {
	switch m {
	case ModeDeterministic:
		return "deterministic"
	case ModeStochastic:
		return "stochastic"
	default:
		return "unknown"
	}
}

// ChainBinomialParams holds the two free parameters of the chain-binomial
// model: the initial susceptible pool S0 and the transmission rate Beta.
type ChainBinomialParams struct {
	S0   float64 `json:"s0"`
	Beta float64 `json:"beta"`
}

// Validate rejects parameter values outside the model's support.
func (p ChainBinomialParams) Validate() error {
	if p.S0 <= 0 {
		return core.NewDomainError("s0", p.S0)
	}
	if p.Beta < 0 {
		return core.NewDomainError("beta", p.Beta)
	}
	return nil
}

// TSIRParams holds the fitted TSIR transmission model: per-season
// transmission rates Beta (cyclic, len = season count P), the mixing
// exponent Alpha, the mean susceptible pool SBar, and the population
// size N.
type TSIRParams struct {
	Beta  []float64 `json:"beta"`
	Alpha float64   `json:"alpha"`
	SBar  float64   `json:"sbar"`
	N     float64   `json:"n"`
}

// Validate rejects parameter values outside the model's support.
func (p TSIRParams) Validate() error {
	if len(p.Beta) == 0 {
		return core.NewValidationError("tsir_params", "beta vector cannot be empty")
	}
	for _, b := range p.Beta {
		if b < 0 {
			return core.NewDomainError("seasonal beta", b)
		}
	}
	if p.Alpha <= 0 {
		return core.NewDomainError("alpha", p.Alpha)
	}
	if p.SBar <= 0 {
		return core.NewDomainError("sbar", p.SBar)
	}
	if p.N <= 0 {
		return core.NewDomainError("population", p.N)
	}
	return nil
}

// SeasonBeta returns the transmission rate in force at an observation
// step, cycling through the seasonal vector.
func (p TSIRParams) SeasonBeta(step int) float64 {
	return p.Beta[step%len(p.Beta)]
}

// Seasons returns the cycle length of the seasonal vector.
func (p TSIRParams) Seasons() int {
	return len(p.Beta)
}
