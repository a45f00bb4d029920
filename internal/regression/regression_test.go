package regression

import (
	"math"
	"testing"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
	"epifit/internal/simulate"
)

// TestRoundTripRecovery simulates a deterministic seasonal epidemic and
// refits it: with zero simulation noise the regression must give back
// the generating coefficients to floating-point accuracy.
func TestRoundTripRecovery(t *testing.T) {
	const seasons = 26
	beta := make([]float64, seasons)
	for k := range beta {
		beta[k] = 35.9 * (1 + 0.02*math.Sin(2*math.Pi*float64(k)/seasons))
	}
	params := epi.TSIRParams{Beta: beta, Alpha: 0.97, SBar: 115500, N: 3.3e6}
	season, err := timeseries.NewSeasonalIndex(seasons, 0)
	if err != nil {
		t.Fatalf("NewSeasonalIndex: %v", err)
	}

	sim, err := simulate.NewTSIR(params, season)
	if err != nil {
		t.Fatalf("NewTSIR: %v", err)
	}
	births := make([]float64, 131)
	for i := range births {
		births[i] = 2000
	}
	tr, err := sim.Run(params.SBar, 2000, births, epi.ModeDeterministic, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	deviation := make([]float64, tr.Len())
	for step := range deviation {
		deviation[step] = tr.S[step] - params.SBar
	}

	fit, err := Estimate(tr.I, deviation, season, params.SBar, params.N)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if fit.Seasons != seasons || fit.Observations != 131 {
		t.Fatalf("Unexpected fit shape: %d seasons, %d observations", fit.Seasons, fit.Observations)
	}
	for k := 0; k < seasons; k++ {
		if diff := math.Abs(fit.Coefficients[k] - math.Log(beta[k])); diff > 1e-6 {
			t.Errorf("Season %d: coefficient off by %g", k+1, diff)
		}
	}
	recovered := fit.SeasonalBeta()
	for k := 0; k < seasons; k++ {
		if rel := math.Abs(recovered[k]-beta[k]) / beta[k]; rel > 1e-5 {
			t.Errorf("Season %d: beta %g, expected %g", k+1, recovered[k], beta[k])
		}
	}
	if diff := math.Abs(fit.Alpha() - params.Alpha); diff > 1e-6 {
		t.Errorf("Alpha off by %g", diff)
	}
	if fit.Deviance > 1e-10 {
		t.Errorf("Deviance %g, expected numerically zero", fit.Deviance)
	}
	for j, se := range fit.StdErrors {
		if se > 1e-6 {
			t.Errorf("Coefficient %d: standard error %g on a noiseless fit", j, se)
		}
	}
}

// TestDevianceIdentifiesSBar tests the profile mechanism: the deviance at
// the generating susceptible level is numerically zero and any distant
// candidate fits strictly worse.
func TestDevianceIdentifiesSBar(t *testing.T) {
	const seasons = 26
	beta := make([]float64, seasons)
	for k := range beta {
		beta[k] = 35.9 * (1 + 0.02*math.Sin(2*math.Pi*float64(k)/seasons))
	}
	params := epi.TSIRParams{Beta: beta, Alpha: 0.97, SBar: 115500, N: 3.3e6}
	season, _ := timeseries.NewSeasonalIndex(seasons, 0)

	sim, err := simulate.NewTSIR(params, season)
	if err != nil {
		t.Fatalf("NewTSIR: %v", err)
	}
	births := make([]float64, 131)
	for i := range births {
		births[i] = 2000
	}
	tr, err := sim.Run(params.SBar, 2000, births, epi.ModeDeterministic, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	deviation := make([]float64, tr.Len())
	for step := range deviation {
		deviation[step] = tr.S[step] - params.SBar
	}

	atTruth, err := Estimate(tr.I, deviation, season, params.SBar, params.N)
	if err != nil {
		t.Fatalf("Estimate at the generating level failed: %v", err)
	}
	atWrong, err := Estimate(tr.I, deviation, season, 0.3*params.SBar, params.N)
	if err != nil {
		t.Fatalf("Estimate at the displaced level failed: %v", err)
	}

	if atTruth.Deviance > 1e-10 {
		t.Errorf("Deviance at the generating level is %g", atTruth.Deviance)
	}
	if atWrong.Deviance <= atTruth.Deviance {
		t.Errorf("Displaced level fits no worse: %g vs %g", atWrong.Deviance, atTruth.Deviance)
	}
}

// TestFitKnownCoefficients tests the solver on a hand-built exact model
// with the offset neutralized.
func TestFitKnownCoefficients(t *testing.T) {
	coef := []float64{0.2, -0.1}
	alpha := 0.5
	season, _ := timeseries.NewSeasonalIndex(2, 0)

	n := 12
	inc := make([]float64, n)
	inc[0] = 2
	for step := 0; step < n-1; step++ {
		inc[step+1] = math.Exp(coef[step%2] + alpha*math.Log(inc[step]))
	}

	// deviation lifts the pool to exactly the population, so the offset
	// term vanishes and the model is pure seasonal + lag.
	deviation := make([]float64, n)
	for step := range deviation {
		deviation[step] = 600
	}

	fit, err := Estimate(inc, deviation, season, 400, 1000)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(fit.Coefficients[0]-coef[0]) > 1e-9 || math.Abs(fit.Coefficients[1]-coef[1]) > 1e-9 {
		t.Errorf("Seasonal coefficients %v, expected %v", fit.Coefficients[:2], coef)
	}
	if math.Abs(fit.Alpha()-alpha) > 1e-9 {
		t.Errorf("Alpha %g, expected %g", fit.Alpha(), alpha)
	}
	if fit.Deviance > 1e-16 {
		t.Errorf("Deviance %g on an exact model", fit.Deviance)
	}
}

// TestSingularDesign tests that a rank-deficient design is reported as an
// identifiability failure, not silently solved.
func TestSingularDesign(t *testing.T) {
	season, _ := timeseries.NewSeasonalIndex(4, 0)

	// Unit incidence makes the lag column exactly zero.
	inc := make([]float64, 10)
	deviation := make([]float64, 10)
	for step := range inc {
		inc[step] = 1
	}

	_, err := Estimate(inc, deviation, season, 100, 1000)
	if !core.IsIdentifiabilityError(err) {
		t.Errorf("Expected identifiability error, got %v", err)
	}
}

// TestBuildDesignErrors tests input rejection
func TestBuildDesignErrors(t *testing.T) {
	season, _ := timeseries.NewSeasonalIndex(4, 0)
	inc := []float64{10, 12, 11, 13, 12, 14, 11, 12, 13, 12}
	dev := make([]float64, 10)

	if _, err := BuildDesign(inc, dev[:9], season, 100, 1000); !core.IsDataError(err) {
		t.Errorf("Expected alignment error, got %v", err)
	}
	if _, err := BuildDesign(inc, dev, season, 0, 1000); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for sbar, got %v", err)
	}
	if _, err := BuildDesign(inc, dev, season, 100, 0); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for population, got %v", err)
	}
	if _, err := BuildDesign(inc[:6], dev[:6], season, 100, 1000); !core.IsDataError(err) {
		t.Errorf("Expected insufficient-data error, got %v", err)
	}

	bad := append([]float64(nil), inc...)
	bad[3] = 0
	if _, err := BuildDesign(bad, dev, season, 100, 1000); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for zero incidence, got %v", err)
	}

	sunk := append([]float64(nil), dev...)
	sunk[2] = -100
	if _, err := BuildDesign(inc, sunk, season, 100, 1000); !core.IsDomainError(err) {
		t.Errorf("Expected domain error for a non-positive pool, got %v", err)
	}
}
