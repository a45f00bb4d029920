// Package report renders finished runs as markdown. The results server
// turns these documents into HTML; everything else stores them as plain
// report artifacts alongside the fits they summarize.
package report

import (
	"fmt"
	"strings"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
	"epifit/internal/simulate"
)

// TSIRInput collects the pieces of a seasonal-transmission run.
type TSIRInput struct {
	Manifest *epi.RunManifest
	Recon    *epi.ReconstructionResult
	Profile  *epi.ProfileResult
	Fit      *epi.RegressionFit
	Params   epi.TSIRParams
	Ensemble *simulate.EnsembleSummary
}

// ChainBinomialInput collects the pieces of a single-outbreak run.
type ChainBinomialInput struct {
	Manifest *epi.RunManifest
	Profile  *epi.ProfileResult
	Fit      *epi.ChainBinomialFit
	Ensemble *simulate.EnsembleSummary
}

// TSIR renders the seasonal-transmission report: reconstruction summary,
// susceptible-pool scan, per-season transmission table and projection
// bands.
func TSIR(in TSIRInput) (string, error) {
	if in.Manifest == nil || in.Recon == nil || in.Profile == nil || in.Fit == nil {
		return "", core.NewValidationError("report_input", "manifest, reconstruction, scan and fit are required")
	}
	if len(in.Fit.Coefficients) < in.Fit.Seasons+1 || len(in.Fit.StdErrors) != len(in.Fit.Coefficients) {
		return "", core.NewValidationError("report_input", "fit coefficient and error vectors are malformed")
	}

	seasonalIncidence, err := timeseries.SeasonalMeans(in.Recon.Corrected, in.Fit.Seasons)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writeHeader(&b, "Seasonal transmission fit", in.Manifest)

	b.WriteString("## Susceptible reconstruction\n\n")
	b.WriteString("| quantity | value |\n")
	b.WriteString("|---|---|\n")
	lo, hi := seriesRange(in.Recon.ReportingRate)
	b.WriteString(fmt.Sprintf("| mean reporting rate | %.4f |\n", in.Recon.MeanRate))
	b.WriteString(fmt.Sprintf("| reporting-rate range | %.4f to %.4f |\n", lo, hi))
	b.WriteString(fmt.Sprintf("| smoother degrees of freedom | %.2f achieved, %.2f requested |\n",
		in.Recon.AchievedEDF, in.Recon.TargetEDF))
	b.WriteString(fmt.Sprintf("| smoothing weight | %.4g |\n", in.Recon.Lambda))
	b.WriteString("\n")

	writeScan(&b, "Susceptible-pool scan", "S-bar", in.Profile)

	b.WriteString("## Seasonal transmission\n\n")
	b.WriteString(fmt.Sprintf("Mixing exponent alpha = %.4f (SE %.4f), fitted on %d transitions.\n",
		in.Fit.Alpha(), in.Fit.AlphaStdError(), in.Fit.Observations))
	b.WriteString(fmt.Sprintf("Mean susceptible pool %.6g of population %.6g, residual deviance %.6g.\n\n",
		in.Params.SBar, in.Params.N, in.Fit.Deviance))

	betas := in.Fit.SeasonalBeta()
	b.WriteString("| season | beta | log-beta | SE | mean corrected incidence |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for k := 0; k < in.Fit.Seasons; k++ {
		b.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.4f | %.1f |\n",
			k, betas[k], in.Fit.Coefficients[k], in.Fit.StdErrors[k], seasonalIncidence[k]))
	}
	b.WriteString("\n")

	writeEnsemble(&b, in.Ensemble)
	return b.String(), nil
}

// ChainBinomial renders the single-outbreak report: transmission-rate
// scan, joint fit with intervals, and projection bands.
func ChainBinomial(in ChainBinomialInput) (string, error) {
	if in.Manifest == nil || in.Profile == nil || in.Fit == nil {
		return "", core.NewValidationError("report_input", "manifest, scan and fit are required")
	}

	var b strings.Builder
	writeHeader(&b, "Chain-binomial outbreak fit", in.Manifest)
	writeScan(&b, "Transmission-rate scan", "beta", in.Profile)

	b.WriteString("## Joint fit\n\n")
	if !in.Fit.Converged {
		b.WriteString(fmt.Sprintf("**Warning**: the optimizer exhausted its budget after %d iterations; point estimates are best-effort and carry no uncertainty.\n\n",
			in.Fit.Iterations))
	}
	b.WriteString("| parameter | estimate | SE | interval |\n")
	b.WriteString("|---|---|---|---|\n")
	b.WriteString(fmt.Sprintf("| S0 | %.1f | %.1f | %s |\n",
		in.Fit.Params.S0, in.Fit.StdErrS0, interval(in.Fit.CIS0)))
	b.WriteString(fmt.Sprintf("| beta | %.4f | %.4f | %s |\n",
		in.Fit.Params.Beta, in.Fit.StdErrBeta, interval(in.Fit.CIBeta)))
	b.WriteString(fmt.Sprintf("\nIntervals at the %.0f%% level, parameter correlation %.3f.\n",
		100*in.Fit.Level, in.Fit.Correlation))
	b.WriteString(fmt.Sprintf("Objective improved from %.4f to %.4f in %d iterations.\n\n",
		in.Fit.InitialNLL, in.Fit.NLL, in.Fit.Iterations))

	writeEnsemble(&b, in.Ensemble)
	return b.String(), nil
}

func writeHeader(b *strings.Builder, title string, m *epi.RunManifest) {
	b.WriteString(fmt.Sprintf("# %s\n\n", title))
	b.WriteString(fmt.Sprintf("Run `%s` on dataset `%s`, seed %d.\n", m.RunID, m.DatasetID, m.Seed))
	b.WriteString(fmt.Sprintf("Fingerprint `%s`, created %s.\n\n", m.Fingerprint, m.CreatedAt))
}

func writeScan(b *strings.Builder, title, name string, p *epi.ProfileResult) {
	b.WriteString(fmt.Sprintf("## %s\n\n", title))
	b.WriteString(fmt.Sprintf("Evaluated %d candidates; minimum objective %.6g at %s = %.6g.\n",
		len(p.Points), p.Best.Objective, name, p.Best.Candidate))
	if p.Penalized > 0 {
		b.WriteString(fmt.Sprintf("%d candidates fell outside the model domain and were penalized.\n", p.Penalized))
	}
	b.WriteString("\n")
}

func writeEnsemble(b *strings.Builder, s *simulate.EnsembleSummary) {
	if s == nil {
		return
	}
	b.WriteString("## Projection ensemble\n\n")
	b.WriteString(fmt.Sprintf("%d replicates, %d extinguished, mean duration %.1f steps.\n\n",
		s.Replicates, s.Extinguished, s.MeanDuration))
	b.WriteString("| quantity | 2.5% | median | 97.5% |\n")
	b.WriteString("|---|---|---|---|\n")
	b.WriteString(fmt.Sprintf("| peak incidence | %.1f | %.1f | %.1f |\n", s.PeakLow, s.PeakMedian, s.PeakHigh))
	b.WriteString(fmt.Sprintf("| final size | %.1f | %.1f | %.1f |\n", s.FinalSizeLow, s.FinalSizeMedian, s.FinalSizeHigh))
	b.WriteString("\n")
}

func interval(iv epi.Interval) string {
	if iv.Lower == 0 && iv.Upper == 0 {
		return "not available"
	}
	return fmt.Sprintf("[%.4g, %.4g]", iv.Lower, iv.Upper)
}

func seriesRange(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
