package app

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
	"epifit/internal/config"
	"epifit/internal/simulate"
	"epifit/internal/testkit"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		Dataset: config.DatasetConfig{
			SeasonPeriod:   26,
			SeasonPhase:    0,
			AggregateWidth: 1,
		},
		Model: config.ModelConfig{
			SmoothingEDF: 7,
			SBarFracMin:  0.02,
			SBarFracMax:  0.06,
			SBarGridSize: 9,
			PenalizeGrid: true,
		},
		Search: config.SearchConfig{
			S0:           6500,
			BetaGridMin:  0,
			BetaGridMax:  10,
			BetaGridStep: 0.1,
			MaxIters:     500,
			Tolerance:    1e-8,
			ConfLevel:    0.95,
			Workers:      4,
		},
		Simulation: config.SimulationConfig{
			Horizon:      0,
			EnsembleSize: 24,
			Workers:      4,
			Seed:         42,
		},
	}
}

// endemicDataset builds eight years of biweekly endemic data by running
// the deterministic seasonal model from its equilibrium, so every series
// property the fitting chain depends on holds by construction: strictly
// positive incidence, full seasonal coverage, and births that balance
// infections.
func endemicDataset(t *testing.T) *epi.Dataset {
	t.Helper()

	season, err := timeseries.NewSeasonalIndex(26, 0)
	if err != nil {
		t.Fatalf("Failed to build seasonal index: %v", err)
	}
	params := epi.TSIRParams{
		Beta:  testkit.SeasonalBetaPattern(26, 35.9, 0.7),
		Alpha: 0.97,
		SBar:  106000,
		N:     3.3e6,
	}
	sim, err := simulate.NewTSIR(params, season)
	if err != nil {
		t.Fatalf("Failed to build simulator: %v", err)
	}

	steps := 8 * 26
	births := make([]float64, steps)
	population := make([]float64, steps)
	for i := range births {
		births[i] = 120
		population[i] = 3.3e6
	}
	tr, err := sim.Run(106000, 120, births, epi.ModeDeterministic, nil)
	if err != nil {
		t.Fatalf("Failed to generate endemic series: %v", err)
	}

	return &epi.Dataset{
		ID:         core.DatasetID("measles-endemic"),
		Name:       "measles-endemic",
		Cases:      timeseries.New("cases", tr.I[1:]),
		Births:     timeseries.New("births", births),
		Population: timeseries.New("population", population),
		Season:     season,
	}
}

// outbreakDataset builds one closed outbreak of whole-count incidence.
func outbreakDataset(t *testing.T) *epi.Dataset {
	t.Helper()

	cases := testkit.ChainBinomialSeries(6500, 2.3, 5, 40)
	births := make([]float64, len(cases))
	population := make([]float64, len(cases))
	for i := range population {
		population[i] = 6500
	}
	season, err := timeseries.NewSeasonalIndex(26, 0)
	if err != nil {
		t.Fatalf("Failed to build seasonal index: %v", err)
	}
	return &epi.Dataset{
		ID:         core.DatasetID("plague-outbreak"),
		Name:       "plague-outbreak",
		Cases:      timeseries.New("cases", cases),
		Births:     timeseries.New("births", births),
		Population: timeseries.New("population", population),
		Season:     season,
	}
}

// TestRunChainBinomialEndToEnd tests the full outbreak pipeline: scan,
// joint fit, projection, report, and the artifact trail in the ledger.
func TestRunChainBinomialEndToEnd(t *testing.T) {
	kit, err := testkit.NewTestKit()
	if err != nil {
		t.Fatalf("Failed to build test kit: %v", err)
	}
	pipeline := NewPipeline(kit.LedgerAdapter(), kit.RNGAdapter(), testConfig(), testLogger())

	res, err := pipeline.RunChainBinomial(context.Background(), ChainBinomialRequest{
		Dataset: outbreakDataset(t),
		Seed:    42,
	})
	if err != nil {
		t.Fatalf("RunChainBinomial failed: %v", err)
	}

	if res.Manifest.Kind != epi.RunChainBinomial {
		t.Errorf("Expected chain_binomial manifest, got %s", res.Manifest.Kind)
	}
	if math.Abs(res.Profile.Best.Candidate-2.3) > 1e-6 {
		t.Errorf("Expected scan minimum near 2.3, got %g", res.Profile.Best.Candidate)
	}
	if !res.Fit.Converged {
		t.Errorf("Expected the joint fit to converge in %d iterations", res.Fit.Iterations)
	}
	if res.Fit.Params.S0 < 6000 || res.Fit.Params.S0 > 7000 {
		t.Errorf("S0 estimate %f too far from generating value 6500", res.Fit.Params.S0)
	}
	if res.Fit.Params.Beta < 2.0 || res.Fit.Params.Beta > 2.6 {
		t.Errorf("Beta estimate %f too far from generating value 2.3", res.Fit.Params.Beta)
	}
	if res.Ensemble.Replicates != 24 {
		t.Errorf("Expected 24 replicates, got %d", res.Ensemble.Replicates)
	}
	if res.Deterministic == nil || res.Deterministic.Len() < 2 {
		t.Error("Expected a deterministic replay trajectory")
	}
	if !strings.Contains(res.Report, "# Chain-binomial outbreak fit") || !strings.Contains(res.Report, "## Joint fit") {
		t.Error("Report missing expected sections")
	}

	artifacts, err := kit.LedgerAdapter().GetArtifactsByRun(context.Background(), res.Manifest.RunID)
	if err != nil {
		t.Fatalf("Failed to read run artifacts: %v", err)
	}
	wantKinds := []core.ArtifactKind{
		core.ArtifactRun,
		core.ArtifactGridScan,
		core.ArtifactJointFit,
		core.ArtifactSimulation,
		core.ArtifactReport,
	}
	if len(artifacts) != len(wantKinds) {
		t.Fatalf("Expected %d artifacts, got %d", len(wantKinds), len(artifacts))
	}
	for i, kind := range wantKinds {
		if artifacts[i].Kind != kind {
			t.Errorf("Artifact %d: expected kind %s, got %s", i, kind, artifacts[i].Kind)
		}
	}
}

// TestRunTSIREndToEnd tests the full seasonal pipeline on self-generated
// endemic data: reconstruction, pool scan, regression, simulation, and
// the artifact trail.
func TestRunTSIREndToEnd(t *testing.T) {
	kit, err := testkit.NewTestKit()
	if err != nil {
		t.Fatalf("Failed to build test kit: %v", err)
	}
	pipeline := NewPipeline(kit.LedgerAdapter(), kit.RNGAdapter(), testConfig(), testLogger())

	res, err := pipeline.RunTSIR(context.Background(), TSIRRequest{
		Dataset: endemicDataset(t),
		Seed:    42,
	})
	if err != nil {
		t.Fatalf("RunTSIR failed: %v", err)
	}

	if res.Manifest.Kind != epi.RunTSIR {
		t.Errorf("Expected tsir manifest, got %s", res.Manifest.Kind)
	}
	if res.Recon.MeanRate <= 0 {
		t.Errorf("Expected a positive mean reporting rate, got %f", res.Recon.MeanRate)
	}
	if res.Profile.Best.Penalized {
		t.Error("Expected the winning pool candidate to carry a real fit")
	}
	if res.Fit.Seasons != 26 {
		t.Errorf("Expected 26 seasonal coefficients, got %d", res.Fit.Seasons)
	}
	if res.Params.Alpha <= 0 || res.Params.Alpha > 1.5 {
		t.Errorf("Mixing exponent %f outside the plausible range", res.Params.Alpha)
	}
	if len(res.Params.Beta) != 26 {
		t.Errorf("Expected 26 seasonal rates, got %d", len(res.Params.Beta))
	}
	if res.Deterministic == nil || res.Deterministic.Len() != 8*26+1 {
		t.Error("Expected a full-horizon deterministic replay")
	}
	if res.Ensemble.Replicates != 24 {
		t.Errorf("Expected 24 replicates, got %d", res.Ensemble.Replicates)
	}
	if !strings.Contains(res.Report, "# Seasonal transmission fit") || !strings.Contains(res.Report, "## Seasonal transmission") {
		t.Error("Report missing expected sections")
	}

	artifacts, err := kit.LedgerAdapter().GetArtifactsByRun(context.Background(), res.Manifest.RunID)
	if err != nil {
		t.Fatalf("Failed to read run artifacts: %v", err)
	}
	wantKinds := []core.ArtifactKind{
		core.ArtifactRun,
		core.ArtifactReconstruction,
		core.ArtifactGridScan,
		core.ArtifactSeasonalFit,
		core.ArtifactSimulation,
		core.ArtifactReport,
	}
	if len(artifacts) != len(wantKinds) {
		t.Fatalf("Expected %d artifacts, got %d", len(wantKinds), len(artifacts))
	}
	for i, kind := range wantKinds {
		if artifacts[i].Kind != kind {
			t.Errorf("Artifact %d: expected kind %s, got %s", i, kind, artifacts[i].Kind)
		}
	}

	manifest, err := kit.LedgerAdapter().GetRunManifest(context.Background(), res.Manifest.RunID)
	if err != nil {
		t.Fatalf("Failed to read manifest back: %v", err)
	}
	if manifest.Fingerprint != res.Manifest.Fingerprint {
		t.Error("Stored manifest fingerprint does not match the returned one")
	}
}

// TestPipelineRejectsBadInputs tests input validation on both workflows.
func TestPipelineRejectsBadInputs(t *testing.T) {
	kit, err := testkit.NewTestKit()
	if err != nil {
		t.Fatalf("Failed to build test kit: %v", err)
	}
	pipeline := NewPipeline(kit.LedgerAdapter(), kit.RNGAdapter(), testConfig(), testLogger())
	ctx := context.Background()

	if _, err := pipeline.RunTSIR(ctx, TSIRRequest{Dataset: nil, Seed: 1}); err == nil {
		t.Error("Expected nil dataset to be rejected")
	}
	if _, err := pipeline.RunChainBinomial(ctx, ChainBinomialRequest{Dataset: nil, Seed: 1}); err == nil {
		t.Error("Expected nil dataset to be rejected")
	}

	fractional := outbreakDataset(t)
	fractional.Cases.Values[1] += 0.5
	if _, err := pipeline.RunChainBinomial(ctx, ChainBinomialRequest{Dataset: fractional, Seed: 1}); !core.IsDataError(err) {
		t.Errorf("Expected fractional counts to fail the whole-number check, got %v", err)
	}
}
