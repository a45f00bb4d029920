package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/ports"
)

// Replicator produces one trajectory from a dedicated random source.
type Replicator func(src rand.Source) (*epi.Trajectory, error)

// EnsembleSpec describes one Monte Carlo batch: the run coordinates that
// derive the per-replicate streams and the simulation closure to repeat.
type EnsembleSpec struct {
	RunID      string
	Stage      string
	BaseSeed   int64
	Replicates int
	Simulate   Replicator
}

// EnsembleSummary condenses a batch of trajectories into the bands
// reports quote: 2.5/50/97.5 percent quantiles of peak incidence and
// final size, plus the extinction count and mean outbreak duration.
type EnsembleSummary struct {
	Replicates   int `json:"replicates"`
	Extinguished int `json:"extinguished"`

	PeakLow    float64 `json:"peak_low"`
	PeakMedian float64 `json:"peak_median"`
	PeakHigh   float64 `json:"peak_high"`

	FinalSizeLow    float64 `json:"final_size_low"`
	FinalSizeMedian float64 `json:"final_size_median"`
	FinalSizeHigh   float64 `json:"final_size_high"`

	MeanDuration float64 `json:"mean_duration"`
}

// EnsembleResult holds the replicate trajectories in replicate order and
// their summary.
type EnsembleResult struct {
	Trajectories []*epi.Trajectory `json:"trajectories"`
	Summary      EnsembleSummary   `json:"summary"`
}

// Ensemble fans replicates out across a bounded worker pool. Every
// replicate draws from its own stream derived from (runID, stage,
// replicate index, baseSeed), so a batch replays identically regardless
// of scheduling order.
type Ensemble struct {
	rng     ports.RNGPort
	workers int64
}

// NewEnsemble creates an ensemble runner with the given concurrency bound.
func NewEnsemble(rng ports.RNGPort, workers int) *Ensemble {
	if workers < 1 {
		workers = 1
	}
	return &Ensemble{rng: rng, workers: int64(workers)}
}

// Run executes the batch and returns trajectories plus summary. The
// first replicate error (by replicate index) aborts the batch.
func (e *Ensemble) Run(ctx context.Context, spec EnsembleSpec) (*EnsembleResult, error) {
	if spec.Replicates < 1 {
		return nil, core.NewValidationError("replicates", "must run at least one replicate")
	}
	if spec.Simulate == nil {
		return nil, core.NewValidationError("simulate", "replicator cannot be nil")
	}

	trajectories := make([]*epi.Trajectory, spec.Replicates)
	errs := make([]error, spec.Replicates)

	sem := semaphore.NewWeighted(e.workers)
	var wg sync.WaitGroup
	for k := 0; k < spec.Replicates; k++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[k] = err
			break
		}
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			defer sem.Release(1)

			stream, err := e.rng.Stream(ctx, spec.RunID, spec.Stage, fmt.Sprintf("replicate-%04d", k), spec.BaseSeed)
			if err != nil {
				errs[k] = err
				return
			}
			tr, err := spec.Simulate(stream)
			if err != nil {
				errs[k] = err
				return
			}
			trajectories[k] = tr
		}(k)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return &EnsembleResult{Trajectories: trajectories, Summary: summarize(trajectories)}, nil
}

func summarize(trs []*epi.Trajectory) EnsembleSummary {
	peaks := make([]float64, 0, len(trs))
	sizes := make([]float64, 0, len(trs))
	durations := make([]float64, 0, len(trs))

	summary := EnsembleSummary{Replicates: len(trs)}
	for _, tr := range trs {
		_, peak := tr.Peak()
		peaks = append(peaks, peak)
		sizes = append(sizes, tr.FinalSize())
		durations = append(durations, float64(tr.Duration()))
		if tr.Extinguished {
			summary.Extinguished++
		}
	}

	summary.PeakLow, _ = stats.Percentile(peaks, 2.5)
	summary.PeakMedian, _ = stats.Median(peaks)
	summary.PeakHigh, _ = stats.Percentile(peaks, 97.5)
	summary.FinalSizeLow, _ = stats.Percentile(sizes, 2.5)
	summary.FinalSizeMedian, _ = stats.Median(sizes)
	summary.FinalSizeHigh, _ = stats.Percentile(sizes, 97.5)
	summary.MeanDuration, _ = stats.Mean(durations)
	return summary
}
