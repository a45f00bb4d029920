package reconstruct

import (
	"math"
	"testing"

	"epifit/domain/core"
)

func linearSeries(n int, slope, intercept float64) (births, cases []float64) {
	births = make([]float64, n)
	cases = make([]float64, n)
	cum := 0.0
	for t := 0; t < n; t++ {
		cum += 150
		births[t] = cum
		cases[t] = slope*cum + intercept
	}
	return births, cases
}

func curvedSeries(n int) (births, cases []float64) {
	births = make([]float64, n)
	cases = make([]float64, n)
	cum := 0.0
	for t := 0; t < n; t++ {
		cum += 150
		births[t] = cum
		cases[t] = 0.6*cum + 40*math.Sin(cum/2000)
	}
	return births, cases
}

// TestLinearExactRecovery tests that an exactly linear cumulative
// relationship is reproduced exactly for any smoothing target: the
// reporting rate equals the slope everywhere and the deviation vanishes.
func TestLinearExactRecovery(t *testing.T) {
	births, cases := linearSeries(80, 0.6, 500)

	result, err := Reconstruct(births, cases, 3.5)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	for i, rho := range result.ReportingRate {
		if math.Abs(rho-0.6) > 1e-6 {
			t.Fatalf("Step %d: reporting rate %g, expected 0.6", i, rho)
		}
	}
	for i, d := range result.Deviation {
		if math.Abs(d) > 1e-5 {
			t.Fatalf("Step %d: deviation %g, expected 0", i, d)
		}
	}
	if math.Abs(result.MeanRate-0.6) > 1e-6 {
		t.Errorf("Mean rate %g, expected 0.6", result.MeanRate)
	}

	// Raw incidence is the constant 0.6*150 = 90 after the first step, so
	// corrected incidence is the birth count itself.
	for i := 1; i < len(result.Corrected); i++ {
		if math.Abs(result.Corrected[i]-150) > 1e-6 {
			t.Fatalf("Step %d: corrected incidence %g, expected 150", i, result.Corrected[i])
		}
	}

	if math.Abs(result.AchievedEDF-3.5) > 0.01 {
		t.Errorf("Achieved EDF %g, expected 3.5", result.AchievedEDF)
	}
}

// TestIdempotent tests bit-identical outputs on repeated runs
func TestIdempotent(t *testing.T) {
	births, cases := curvedSeries(120)

	a, err := Reconstruct(births, cases, 6)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	b, err := Reconstruct(births, cases, 6)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	if a.Lambda != b.Lambda || a.AchievedEDF != b.AchievedEDF {
		t.Error("Smoothing metadata differs between identical runs")
	}
	for i := range a.Deviation {
		if a.Deviation[i] != b.Deviation[i] {
			t.Fatalf("Deviation differs at step %d: %g vs %g", i, a.Deviation[i], b.Deviation[i])
		}
		if a.ReportingRate[i] != b.ReportingRate[i] {
			t.Fatalf("Reporting rate differs at step %d", i)
		}
		if a.Corrected[i] != b.Corrected[i] {
			t.Fatalf("Corrected incidence differs at step %d", i)
		}
	}
}

// TestCurvedReportingRate tests slope tracking on a gently varying curve
func TestCurvedReportingRate(t *testing.T) {
	births, cases := curvedSeries(120)

	result, err := Reconstruct(births, cases, 6)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	// True slope oscillates in [0.58, 0.62]; the smoothed estimate must
	// stay near it away from the boundaries.
	for i := 5; i < len(result.ReportingRate)-5; i++ {
		rho := result.ReportingRate[i]
		if rho < 0.5 || rho > 0.7 {
			t.Fatalf("Step %d: reporting rate %g drifted outside [0.5, 0.7]", i, rho)
		}
	}
	if math.Abs(result.MeanRate-0.6) > 0.05 {
		t.Errorf("Mean rate %g, expected near 0.6", result.MeanRate)
	}
}

// TestAlignmentErrors tests malformed-input rejection
func TestAlignmentErrors(t *testing.T) {
	births, cases := linearSeries(30, 0.6, 0)

	if _, err := Reconstruct(births[:29], cases, 3); !core.IsDataError(err) {
		t.Errorf("Expected alignment error for length mismatch, got %v", err)
	}

	decreasing := append([]float64(nil), births...)
	decreasing[10] = decreasing[9] - 1
	if _, err := Reconstruct(decreasing, cases, 3); !core.IsDataError(err) {
		t.Errorf("Expected alignment error for non-monotone births, got %v", err)
	}

	badCases := append([]float64(nil), cases...)
	badCases[5] = badCases[4] - 10
	if _, err := Reconstruct(births, badCases, 3); !core.IsDataError(err) {
		t.Errorf("Expected alignment error for non-monotone cases, got %v", err)
	}
}

// TestInsufficientData tests the data-vs-smoothing size checks
func TestInsufficientData(t *testing.T) {
	births, cases := linearSeries(3, 0.6, 0)
	if _, err := Reconstruct(births, cases, 2.5); !core.IsDataError(err) {
		t.Errorf("Expected insufficient-data error for 3 points, got %v", err)
	}

	births, cases = linearSeries(8, 0.6, 0)
	if _, err := Reconstruct(births, cases, 10); !core.IsDataError(err) {
		t.Errorf("Expected insufficient-data error for EDF above sample size, got %v", err)
	}
}
