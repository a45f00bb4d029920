package simulate

import (
	"context"
	"math"
	"math/rand"
	randv2 "math/rand/v2"
	"testing"

	"epifit/adapters/rng"
	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// TestChainBinomialImmediateAbsorption tests that zero initial infections
// absorb on the first step for every parameter set.
func TestChainBinomialImmediateAbsorption(t *testing.T) {
	cases := []struct{ s0, beta float64 }{
		{100, 0.5},
		{6500, 2.3},
		{50000, 8.0},
	}
	for _, tc := range cases {
		sim, err := NewChainBinomial(epi.ChainBinomialParams{S0: tc.s0, Beta: tc.beta})
		if err != nil {
			t.Fatalf("NewChainBinomial(%v): %v", tc, err)
		}
		tr, err := sim.Run(0, 50, epi.ModeStochastic, rand.New(rand.NewSource(7)))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if tr.Len() != 1 {
			t.Errorf("S0=%g: expected a single-state trajectory, got %d states", tc.s0, tr.Len())
		}
		if !tr.Extinguished {
			t.Errorf("S0=%g: expected immediate extinction", tc.s0)
		}
		if tr.I[0] != 0 || tr.S[0] != tc.s0 {
			t.Errorf("S0=%g: bad initial state (S=%g, I=%g)", tc.s0, tr.S[0], tr.I[0])
		}
	}
}

// TestChainBinomialConservation tests support and bookkeeping invariants
// of a stochastic path.
func TestChainBinomialConservation(t *testing.T) {
	sim, err := NewChainBinomial(epi.ChainBinomialParams{S0: 6500, Beta: 2.3})
	if err != nil {
		t.Fatalf("NewChainBinomial: %v", err)
	}
	tr, err := sim.Run(5, 40, epi.ModeStochastic, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(tr.S) != tr.Len() || len(tr.Lambda) != tr.Len() {
		t.Fatal("Trajectory buffers have unequal lengths")
	}
	if tr.Len() > 41 {
		t.Fatalf("Trajectory exceeds horizon: %d states", tr.Len())
	}
	if tr.Lambda[0] != 0 {
		t.Errorf("Initial intensity %g, expected 0", tr.Lambda[0])
	}
	for step, v := range tr.I {
		if v < 0 || v != math.Floor(v) {
			t.Fatalf("Step %d: incidence %g is not a whole count", step, v)
		}
		if step > 0 && tr.S[step] != tr.S[step-1]-v {
			t.Fatalf("Step %d: susceptible update does not balance", step)
		}
	}
	if tr.FinalSize() > 6500 {
		t.Errorf("Final size %g exceeds the initial pool", tr.FinalSize())
	}
	if tr.Extinguished && tr.I[tr.Len()-1] != 0 {
		t.Error("Extinguished path does not end at zero incidence")
	}
	if !tr.Extinguished && tr.Len() != 41 {
		t.Error("Unextinguished path stopped before the horizon")
	}
}

// TestChainBinomialDeterministicDecay tests the subcritical expected-value
// recursion: with beta < 1 incidence shrinks every step.
func TestChainBinomialDeterministicDecay(t *testing.T) {
	sim, err := NewChainBinomial(epi.ChainBinomialParams{S0: 1000, Beta: 0.5})
	if err != nil {
		t.Fatalf("NewChainBinomial: %v", err)
	}
	tr, err := sim.Run(10, 30, epi.ModeDeterministic, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tr.Len() != 31 {
		t.Fatalf("Expected the full horizon, got %d states", tr.Len())
	}
	for step := 1; step < tr.Len(); step++ {
		if tr.I[step] <= 0 {
			t.Fatalf("Step %d: expected positive incidence, got %g", step, tr.I[step])
		}
		if tr.I[step] >= tr.I[step-1] {
			t.Fatalf("Step %d: incidence did not decay (%g >= %g)", step, tr.I[step], tr.I[step-1])
		}
	}
}

// TestChainBinomialReproducible tests that identical seeds replay the path
func TestChainBinomialReproducible(t *testing.T) {
	sim, err := NewChainBinomial(epi.ChainBinomialParams{S0: 6500, Beta: 2.3})
	if err != nil {
		t.Fatalf("NewChainBinomial: %v", err)
	}
	a, err := sim.Run(5, 40, epi.ModeStochastic, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := sim.Run(5, 40, epi.ModeStochastic, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if a.Len() != b.Len() {
		t.Fatalf("Path lengths differ: %d vs %d", a.Len(), b.Len())
	}
	for step := range a.I {
		if a.I[step] != b.I[step] || a.S[step] != b.S[step] {
			t.Fatalf("Step %d differs between identically seeded runs", step)
		}
	}
}

// TestChainBinomialRunValidation tests input rejection
func TestChainBinomialRunValidation(t *testing.T) {
	sim, err := NewChainBinomial(epi.ChainBinomialParams{S0: 100, Beta: 1})
	if err != nil {
		t.Fatalf("NewChainBinomial: %v", err)
	}
	if _, err := sim.Run(-1, 10, epi.ModeDeterministic, nil); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for negative infections, got %v", err)
	}
	if _, err := sim.Run(200, 10, epi.ModeDeterministic, nil); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for infections above the pool, got %v", err)
	}
	if _, err := sim.Run(1, 0, epi.ModeDeterministic, nil); err == nil {
		t.Error("Expected error for zero horizon")
	}
	if _, err := sim.Run(1, 10, epi.ModeStochastic, nil); err == nil {
		t.Error("Expected error for stochastic mode without a source")
	}
	if _, err := NewChainBinomial(epi.ChainBinomialParams{S0: 0, Beta: 1}); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for zero S0, got %v", err)
	}
}

func tsirTestParams() (epi.TSIRParams, timeseries.SeasonalIndex) {
	params := epi.TSIRParams{
		Beta:  []float64{25, 40},
		Alpha: 0.97,
		SBar:  50000,
		N:     1e6,
	}
	season, _ := timeseries.NewSeasonalIndex(2, 0)
	return params, season
}

// TestTSIRDeterministicRecursion tests the exact update rule step by step
func TestTSIRDeterministicRecursion(t *testing.T) {
	params, season := tsirTestParams()
	sim, err := NewTSIR(params, season)
	if err != nil {
		t.Fatalf("NewTSIR: %v", err)
	}

	births := []float64{500, 600, 550, 700}
	tr, err := sim.Run(50000, 120, births, epi.ModeDeterministic, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tr.Len() != len(births)+1 {
		t.Fatalf("Expected %d states, got %d", len(births)+1, tr.Len())
	}

	expS, expI := 50000.0, 120.0
	for step := 1; step <= len(births); step++ {
		lam := params.Beta[(step-1)%2] * expS * math.Pow(expI, params.Alpha) / params.N
		expI = lam
		expS = expS + births[step-1] - lam
		if tr.Lambda[step] != lam {
			t.Fatalf("Step %d: intensity %g, expected %g", step, tr.Lambda[step], lam)
		}
		if tr.I[step] != expI {
			t.Fatalf("Step %d: incidence %g, expected %g", step, tr.I[step], expI)
		}
		if tr.S[step] != expS {
			t.Fatalf("Step %d: susceptibles %g, expected %g", step, tr.S[step], expS)
		}
	}
}

// TestTSIRZeroInfectionsStayZero tests that the infection-free state is
// absorbing while births keep accumulating.
func TestTSIRZeroInfectionsStayZero(t *testing.T) {
	params, season := tsirTestParams()
	sim, err := NewTSIR(params, season)
	if err != nil {
		t.Fatalf("NewTSIR: %v", err)
	}

	births := []float64{100, 200, 300, 400, 500}
	tr, err := sim.Run(40000, 0, births, epi.ModeStochastic, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	pool := 40000.0
	for step := 1; step <= len(births); step++ {
		pool = pool + births[step-1]
		if tr.I[step] != 0 || tr.Lambda[step] != 0 {
			t.Fatalf("Step %d: infections appeared from an empty state", step)
		}
		if tr.S[step] != pool {
			t.Fatalf("Step %d: susceptibles %g, expected %g", step, tr.S[step], pool)
		}
	}
}

// TestTSIRStochasticReproducible tests seeded replay and count-valued draws
func TestTSIRStochasticReproducible(t *testing.T) {
	params, season := tsirTestParams()
	sim, err := NewTSIR(params, season)
	if err != nil {
		t.Fatalf("NewTSIR: %v", err)
	}

	births := make([]float64, 60)
	for i := range births {
		births[i] = 900
	}

	a, err := sim.Run(50000, 150, births, epi.ModeStochastic, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := sim.Run(50000, 150, births, epi.ModeStochastic, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for step := 0; step < a.Len(); step++ {
		if a.I[step] != b.I[step] {
			t.Fatalf("Step %d differs between identically seeded runs", step)
		}
		if a.I[step] != math.Floor(a.I[step]) {
			t.Fatalf("Step %d: draw %g is not a whole count", step, a.I[step])
		}
		if step > 0 && a.S[step] != a.S[step-1]+births[step-1]-a.I[step] {
			t.Fatalf("Step %d: susceptible update does not balance", step)
		}
	}
}

// TestTSIRValidation tests input rejection
func TestTSIRValidation(t *testing.T) {
	params, season := tsirTestParams()

	badSeason, _ := timeseries.NewSeasonalIndex(4, 0)
	if _, err := NewTSIR(params, badSeason); err == nil {
		t.Error("Expected error for period/beta length mismatch")
	}
	bad := params
	bad.Alpha = 0
	if _, err := NewTSIR(bad, season); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for non-positive alpha, got %v", err)
	}

	sim, err := NewTSIR(params, season)
	if err != nil {
		t.Fatalf("NewTSIR: %v", err)
	}
	if _, err := sim.Run(50000, 100, nil, epi.ModeDeterministic, nil); !core.IsDataError(err) {
		t.Errorf("Expected insufficient-data error for empty births, got %v", err)
	}
	if _, err := sim.Run(0, 100, []float64{1}, epi.ModeDeterministic, nil); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for zero susceptibles, got %v", err)
	}
	if _, err := sim.Run(50000, -1, []float64{1}, epi.ModeDeterministic, nil); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for negative infections, got %v", err)
	}
	if _, err := sim.Run(50000, 100, []float64{1}, epi.ModeStochastic, nil); err == nil {
		t.Error("Expected error for stochastic mode without a source")
	}
}

// TestEnsembleReproducible tests that a batch replays identically and its
// summary respects quantile ordering.
func TestEnsembleReproducible(t *testing.T) {
	sim, err := NewChainBinomial(epi.ChainBinomialParams{S0: 800, Beta: 3})
	if err != nil {
		t.Fatalf("NewChainBinomial: %v", err)
	}
	spec := EnsembleSpec{
		RunID:      "run-ensemble",
		Stage:      "projection",
		BaseSeed:   99,
		Replicates: 120,
		Simulate: func(src randv2.Source) (*epi.Trajectory, error) {
			return sim.Run(3, 80, epi.ModeStochastic, src)
		},
	}

	e := NewEnsemble(rng.New(), 8)
	a, err := e.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Ensemble run failed: %v", err)
	}
	b, err := e.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Ensemble run failed: %v", err)
	}

	if a.Summary != b.Summary {
		t.Errorf("Summaries differ between identical batches:\n%+v\n%+v", a.Summary, b.Summary)
	}
	for k := range a.Trajectories {
		if a.Trajectories[k].FinalSize() != b.Trajectories[k].FinalSize() {
			t.Fatalf("Replicate %d differs between identical batches", k)
		}
		if a.Trajectories[k].FinalSize() > 800 {
			t.Fatalf("Replicate %d exceeds the susceptible pool", k)
		}
	}

	s := a.Summary
	if s.Replicates != 120 {
		t.Errorf("Expected 120 replicates, got %d", s.Replicates)
	}
	if s.PeakLow > s.PeakMedian || s.PeakMedian > s.PeakHigh {
		t.Errorf("Peak quantiles out of order: %g %g %g", s.PeakLow, s.PeakMedian, s.PeakHigh)
	}
	if s.FinalSizeLow > s.FinalSizeMedian || s.FinalSizeMedian > s.FinalSizeHigh {
		t.Errorf("Final-size quantiles out of order: %g %g %g", s.FinalSizeLow, s.FinalSizeMedian, s.FinalSizeHigh)
	}
	if s.Extinguished < 0 || s.Extinguished > 120 {
		t.Errorf("Extinction count %d out of range", s.Extinguished)
	}
}

// TestEnsembleErrors tests spec validation and replicate error propagation
func TestEnsembleErrors(t *testing.T) {
	e := NewEnsemble(rng.New(), 4)
	ctx := context.Background()

	ok := func(src randv2.Source) (*epi.Trajectory, error) {
		return &epi.Trajectory{I: []float64{1}, S: []float64{1}, Lambda: []float64{0}}, nil
	}
	if _, err := e.Run(ctx, EnsembleSpec{Replicates: 0, Simulate: ok}); err == nil {
		t.Error("Expected error for zero replicates")
	}
	if _, err := e.Run(ctx, EnsembleSpec{Replicates: 3}); err == nil {
		t.Error("Expected error for nil replicator")
	}

	failing := func(src randv2.Source) (*epi.Trajectory, error) {
		return nil, core.NewDomainError("intensity", -1)
	}
	if _, err := e.Run(ctx, EnsembleSpec{RunID: "r", Stage: "s", Replicates: 3, Simulate: failing}); !core.IsDomainError(err) {
		t.Errorf("Expected the replicate error to surface, got %v", err)
	}
}
