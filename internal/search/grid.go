// Package search implements the parameter searches of the inference
// engine: exhaustive profile scans over a one-dimensional candidate grid
// and derivative-free joint minimization of the chain-binomial
// likelihood. Scans never terminate early because the objective surfaces
// carry floor and offset discontinuities, and selection is deterministic
// regardless of evaluation order.
package search

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/semaphore"

	"epifit/domain/core"
	"epifit/domain/epi"
)

// Fitter evaluates one candidate of a profile scan: it returns the
// scalar objective to minimize and the full fit object produced at the
// candidate. Domain violations under a penalize policy come back as
// epi.DomainPenalty; under a fail policy they come back as errors and
// abort the scan.
type Fitter func(ctx context.Context, candidate float64) (float64, interface{}, error)

// Grid runs profile scans with a bounded worker pool.
type Grid struct {
	workers int64
}

// NewGrid creates a scanner with the given concurrency bound.
func NewGrid(workers int) *Grid {
	if workers < 1 {
		workers = 1
	}
	return &Grid{workers: int64(workers)}
}

// Candidates builds the inclusive uniform grid [min, max] in steps of
// step. Values are computed by index so the grid carries no accumulated
// rounding.
func Candidates(min, max, step float64) ([]float64, error) {
	if step <= 0 {
		return nil, core.NewValidationError("grid_step", "must be positive")
	}
	if max < min {
		return nil, core.NewValidationError("grid_range", "max below min")
	}
	n := int(math.Floor((max-min)/step+0.5)) + 1
	out := make([]float64, n)
	for k := range out {
		out[k] = min + float64(k)*step
	}
	return out, nil
}

// Run evaluates the fitter at every candidate and selects the minimizer.
// Exact ties go to the smallest candidate value. The first error by
// candidate index aborts the scan.
func (g *Grid) Run(ctx context.Context, candidates []float64, fit Fitter) (*epi.ProfileResult, error) {
	if len(candidates) == 0 {
		return nil, core.NewValidationError("grid", "no candidates to evaluate")
	}
	if fit == nil {
		return nil, core.NewValidationError("fitter", "cannot be nil")
	}

	points := make([]epi.ProfilePoint, len(candidates))
	fits := make([]interface{}, len(candidates))
	errs := make([]error, len(candidates))

	sem := semaphore.NewWeighted(g.workers)
	var wg sync.WaitGroup
	for k, cand := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[k] = err
			break
		}
		wg.Add(1)
		go func(k int, cand float64) {
			defer wg.Done()
			defer sem.Release(1)

			obj, fitObj, err := fit(ctx, cand)
			if err != nil {
				errs[k] = err
				return
			}
			points[k] = epi.ProfilePoint{
				Candidate: cand,
				Objective: obj,
				Penalized: obj == epi.DomainPenalty,
			}
			fits[k] = fitObj
		}(k, cand)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	best := 0
	penalized := 0
	for k, pt := range points {
		if pt.Penalized {
			penalized++
		}
		if k == 0 {
			continue
		}
		if pt.Objective < points[best].Objective ||
			(pt.Objective == points[best].Objective && pt.Candidate < points[best].Candidate) {
			best = k
		}
	}

	return &epi.ProfileResult{
		Best:      points[best],
		Fit:       fits[best],
		Points:    points,
		Penalized: penalized,
	}, nil
}
