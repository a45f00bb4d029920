// Package app orchestrates the fitting pipelines. A run validates its
// dataset, writes a manifest to the ledger before any fitting starts,
// persists every stage output as an artifact, and finishes by rendering
// and storing a markdown report.
package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/internal/config"
	"epifit/internal/likelihood"
	"epifit/internal/reconstruct"
	"epifit/internal/regression"
	"epifit/internal/report"
	"epifit/internal/search"
	"epifit/internal/simulate"
	"epifit/ports"
)

// codeVersion stamps run manifests so a replay can prove which build
// produced a fit.
const codeVersion = "v0.1.0"

// Pipeline executes the fitting workflows end to end against the
// injected ledger and RNG ports.
type Pipeline struct {
	ledger ports.LedgerPort
	rng    ports.RNGPort
	cfg    *config.Config
	log    *logrus.Logger
}

// NewPipeline creates a pipeline service.
func NewPipeline(ledger ports.LedgerPort, rng ports.RNGPort, cfg *config.Config, log *logrus.Logger) *Pipeline {
	return &Pipeline{ledger: ledger, rng: rng, cfg: cfg, log: log}
}

// TSIRRequest names the dataset and seed of one seasonal-transmission run.
type TSIRRequest struct {
	Dataset *epi.Dataset
	Seed    int64
}

// TSIRResult collects the outputs of a seasonal-transmission run.
type TSIRResult struct {
	Manifest      *epi.RunManifest          `json:"manifest"`
	Recon         *epi.ReconstructionResult `json:"reconstruction"`
	Profile       *epi.ProfileResult        `json:"profile"`
	Fit           *epi.RegressionFit        `json:"fit"`
	Params        epi.TSIRParams            `json:"params"`
	Deterministic *epi.Trajectory           `json:"deterministic"`
	Ensemble      *simulate.EnsembleSummary `json:"ensemble"`
	Report        string                    `json:"report"`
	RuntimeMs     int64                     `json:"runtime_ms"`
}

// RunTSIR fits the seasonal transmission model: susceptible
// reconstruction, a profile scan over the mean susceptible pool with the
// seasonal regression refit at every candidate, then a deterministic
// replay plus a stochastic ensemble under the winning parameters.
func (p *Pipeline) RunTSIR(ctx context.Context, req TSIRRequest) (*TSIRResult, error) {
	start := time.Now()
	ds := req.Dataset
	if ds == nil {
		return nil, core.NewValidationError("dataset", "cannot be nil")
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	manifest := epi.NewRunManifest(epi.RunTSIR, ds.ID, ds.Fingerprint(), p.tsirConfigHash(), req.Seed, codeVersion)
	if err := p.store(ctx, manifest.RunID, manifest.ToArtifact()); err != nil {
		return nil, err
	}
	log := p.log.WithFields(logrus.Fields{"run_id": manifest.RunID, "dataset": ds.Name})
	log.Info("Starting seasonal transmission run")

	recon, err := reconstruct.Reconstruct(ds.Births.Cumulative().Values, ds.Cases.Cumulative().Values, p.cfg.Model.SmoothingEDF)
	if err != nil {
		return nil, fmt.Errorf("susceptible reconstruction failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactReconstruction, recon); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"mean_rate":    recon.MeanRate,
		"achieved_edf": recon.AchievedEDF,
	}).Info("Susceptible reconstruction complete")

	population := ds.Population.Mean()
	profile, err := p.scanSusceptiblePool(ctx, recon, ds, population)
	if err != nil {
		return nil, fmt.Errorf("susceptible-pool scan failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactGridScan, profile); err != nil {
		return nil, err
	}
	if profile.Best.Penalized {
		return nil, core.NewDomainError("susceptible-pool scan objective", profile.Best.Objective)
	}
	fit, ok := profile.Fit.(*epi.RegressionFit)
	if !ok {
		return nil, core.NewValidationError("profile_result", "scan produced no regression fit")
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactSeasonalFit, fit); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"sbar":     profile.Best.Candidate,
		"alpha":    fit.Alpha(),
		"deviance": fit.Deviance,
	}).Info("Seasonal regression complete")

	params := epi.TSIRParams{
		Beta:  fit.SeasonalBeta(),
		Alpha: fit.Alpha(),
		SBar:  profile.Best.Candidate,
		N:     population,
	}
	sim, err := simulate.NewTSIR(params, ds.Season)
	if err != nil {
		return nil, fmt.Errorf("fitted parameters rejected by the simulator: %w", err)
	}

	s0 := params.SBar + recon.CorrectedDeviation[0]
	i0 := recon.Corrected[0]
	births := ds.Births.Values

	deterministic, err := sim.Run(s0, i0, births, epi.ModeDeterministic, nil)
	if err != nil {
		return nil, fmt.Errorf("deterministic replay failed: %w", err)
	}
	ensemble, err := simulate.NewEnsemble(p.rng, p.cfg.Simulation.Workers).Run(ctx, simulate.EnsembleSpec{
		RunID:      manifest.RunID.String(),
		Stage:      "tsir-ensemble",
		BaseSeed:   req.Seed,
		Replicates: p.cfg.Simulation.EnsembleSize,
		Simulate: func(src rand.Source) (*epi.Trajectory, error) {
			return sim.Run(s0, i0, births, epi.ModeStochastic, src)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ensemble simulation failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactSimulation, ensemble.Summary); err != nil {
		return nil, err
	}

	md, err := report.TSIR(report.TSIRInput{
		Manifest: manifest,
		Recon:    recon,
		Profile:  profile,
		Fit:      fit,
		Params:   params,
		Ensemble: &ensemble.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("report rendering failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactReport, md); err != nil {
		return nil, err
	}

	runtime := time.Since(start).Milliseconds()
	log.WithField("runtime_ms", runtime).Info("Seasonal transmission run complete")

	return &TSIRResult{
		Manifest:      manifest,
		Recon:         recon,
		Profile:       profile,
		Fit:           fit,
		Params:        params,
		Deterministic: deterministic,
		Ensemble:      &ensemble.Summary,
		Report:        md,
		RuntimeMs:     runtime,
	}, nil
}

// scanSusceptiblePool profiles the regression deviance over mean
// susceptible pool candidates spaced across the configured fraction of
// the population.
func (p *Pipeline) scanSusceptiblePool(ctx context.Context, recon *epi.ReconstructionResult, ds *epi.Dataset, population float64) (*epi.ProfileResult, error) {
	m := p.cfg.Model
	lo := m.SBarFracMin * population
	hi := m.SBarFracMax * population

	candidates := []float64{lo}
	if m.SBarGridSize > 1 {
		var err error
		candidates, err = search.Candidates(lo, hi, (hi-lo)/float64(m.SBarGridSize-1))
		if err != nil {
			return nil, err
		}
	}

	grid := search.NewGrid(p.cfg.Search.Workers)
	return grid.Run(ctx, candidates, func(ctx context.Context, sbar float64) (float64, interface{}, error) {
		fit, err := regression.Estimate(recon.Corrected, recon.CorrectedDeviation, ds.Season, sbar, population)
		if err != nil {
			if m.PenalizeGrid {
				return epi.DomainPenalty, nil, nil
			}
			return 0, nil, err
		}
		return fit.Deviance, fit, nil
	})
}

// ChainBinomialRequest names the dataset and seed of one outbreak-fit run.
type ChainBinomialRequest struct {
	Dataset *epi.Dataset
	Seed    int64
}

// ChainBinomialResult collects the outputs of an outbreak fit.
type ChainBinomialResult struct {
	Manifest      *epi.RunManifest          `json:"manifest"`
	Profile       *epi.ProfileResult        `json:"profile"`
	Fit           *epi.ChainBinomialFit     `json:"fit"`
	Deterministic *epi.Trajectory           `json:"deterministic"`
	Ensemble      *simulate.EnsembleSummary `json:"ensemble"`
	Report        string                    `json:"report"`
	RuntimeMs     int64                     `json:"runtime_ms"`
}

// RunChainBinomial fits the binomial removal model to a closed outbreak:
// a transmission-rate profile scan at the configured susceptible pool,
// joint refinement of both parameters with uncertainty, then projection
// ensembles under the fitted parameters.
func (p *Pipeline) RunChainBinomial(ctx context.Context, req ChainBinomialRequest) (*ChainBinomialResult, error) {
	start := time.Now()
	ds := req.Dataset
	if ds == nil {
		return nil, core.NewValidationError("dataset", "cannot be nil")
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	incidence := ds.Cases
	if p.cfg.Dataset.AggregateWidth > 1 {
		var err error
		incidence, err = incidence.AggregateEvery(p.cfg.Dataset.AggregateWidth)
		if err != nil {
			return nil, fmt.Errorf("aggregation failed: %w", err)
		}
	}
	lik, err := likelihood.NewChainBinomial(incidence.Values, epi.PolicyPenalize)
	if err != nil {
		return nil, fmt.Errorf("likelihood construction failed: %w", err)
	}

	manifest := epi.NewRunManifest(epi.RunChainBinomial, ds.ID, ds.Fingerprint(), p.chainBinomialConfigHash(), req.Seed, codeVersion)
	if err := p.store(ctx, manifest.RunID, manifest.ToArtifact()); err != nil {
		return nil, err
	}
	log := p.log.WithFields(logrus.Fields{"run_id": manifest.RunID, "dataset": ds.Name})
	log.Info("Starting chain-binomial run")

	s := p.cfg.Search
	candidates, err := search.Candidates(s.BetaGridMin, s.BetaGridMax, s.BetaGridStep)
	if err != nil {
		return nil, err
	}
	grid := search.NewGrid(s.Workers)
	profile, err := grid.Run(ctx, candidates, func(ctx context.Context, beta float64) (float64, interface{}, error) {
		nll, err := lik.NegLogLikelihood(s.S0, beta)
		if err != nil {
			return 0, nil, err
		}
		return nll, nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transmission-rate scan failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactGridScan, profile); err != nil {
		return nil, err
	}
	if profile.Best.Penalized {
		return nil, core.NewDomainError("transmission-rate scan objective", profile.Best.Objective)
	}
	log.WithFields(logrus.Fields{
		"beta": profile.Best.Candidate,
		"nll":  profile.Best.Objective,
	}).Info("Profile scan complete")

	opt, err := search.NewJointOptimizer(s.MaxIters, s.Tolerance, s.ConfLevel)
	if err != nil {
		return nil, err
	}
	fit, err := opt.Fit(lik, epi.ChainBinomialParams{S0: s.S0, Beta: profile.Best.Candidate})
	if err != nil {
		if fit == nil {
			return nil, fmt.Errorf("joint fit failed: %w", err)
		}
		log.WithError(err).Warn("Joint fit returned without full uncertainty")
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactJointFit, fit); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"s0":         fit.Params.S0,
		"beta":       fit.Params.Beta,
		"iterations": fit.Iterations,
		"converged":  fit.Converged,
	}).Info("Joint fit complete")

	sim, err := simulate.NewChainBinomial(fit.Params)
	if err != nil {
		return nil, fmt.Errorf("fitted parameters rejected by the simulator: %w", err)
	}
	horizon := p.cfg.Simulation.Horizon
	if horizon < 1 {
		horizon = incidence.Len()
	}
	i0 := incidence.Values[0]

	deterministic, err := sim.Run(i0, horizon, epi.ModeDeterministic, nil)
	if err != nil {
		return nil, fmt.Errorf("deterministic replay failed: %w", err)
	}
	ensemble, err := simulate.NewEnsemble(p.rng, p.cfg.Simulation.Workers).Run(ctx, simulate.EnsembleSpec{
		RunID:      manifest.RunID.String(),
		Stage:      "chain-binomial-ensemble",
		BaseSeed:   req.Seed,
		Replicates: p.cfg.Simulation.EnsembleSize,
		Simulate: func(src rand.Source) (*epi.Trajectory, error) {
			return sim.Run(i0, horizon, epi.ModeStochastic, src)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ensemble simulation failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactSimulation, ensemble.Summary); err != nil {
		return nil, err
	}

	md, err := report.ChainBinomial(report.ChainBinomialInput{
		Manifest: manifest,
		Profile:  profile,
		Fit:      fit,
		Ensemble: &ensemble.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("report rendering failed: %w", err)
	}
	if err := p.storeNew(ctx, manifest.RunID, core.ArtifactReport, md); err != nil {
		return nil, err
	}

	runtime := time.Since(start).Milliseconds()
	log.WithField("runtime_ms", runtime).Info("Chain-binomial run complete")

	return &ChainBinomialResult{
		Manifest:      manifest,
		Profile:       profile,
		Fit:           fit,
		Deterministic: deterministic,
		Ensemble:      &ensemble.Summary,
		Report:        md,
		RuntimeMs:     runtime,
	}, nil
}

func (p *Pipeline) store(ctx context.Context, runID core.RunID, artifact core.Artifact) error {
	if err := p.ledger.StoreArtifact(ctx, runID.String(), artifact); err != nil {
		return fmt.Errorf("failed to store %s artifact: %w", artifact.Kind, err)
	}
	return nil
}

func (p *Pipeline) storeNew(ctx context.Context, runID core.RunID, kind core.ArtifactKind, payload interface{}) error {
	return p.store(ctx, runID, core.Artifact{
		ID:        core.NewID(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: core.Now(),
	})
}

func (p *Pipeline) tsirConfigHash() core.ConfigHash {
	m, sim := p.cfg.Model, p.cfg.Simulation
	return core.ComputeConfigHash(map[string]interface{}{
		"smoothing_edf":  m.SmoothingEDF,
		"sbar_frac_min":  m.SBarFracMin,
		"sbar_frac_max":  m.SBarFracMax,
		"sbar_grid_size": m.SBarGridSize,
		"penalize_grid":  m.PenalizeGrid,
		"season_period":  p.cfg.Dataset.SeasonPeriod,
		"season_phase":   p.cfg.Dataset.SeasonPhase,
		"ensemble_size":  sim.EnsembleSize,
	})
}

func (p *Pipeline) chainBinomialConfigHash() core.ConfigHash {
	s, sim := p.cfg.Search, p.cfg.Simulation
	return core.ComputeConfigHash(map[string]interface{}{
		"s0":              s.S0,
		"beta_grid_min":   s.BetaGridMin,
		"beta_grid_max":   s.BetaGridMax,
		"beta_grid_step":  s.BetaGridStep,
		"max_iters":       s.MaxIters,
		"tolerance":       s.Tolerance,
		"conf_level":      s.ConfLevel,
		"aggregate_width": p.cfg.Dataset.AggregateWidth,
		"horizon":         sim.Horizon,
		"ensemble_size":   sim.EnsembleSize,
	})
}
