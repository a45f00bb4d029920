package epi

import (
	"epifit/domain/core"
	"epifit/domain/timeseries"
)

// Dataset is an aligned epidemic dataset: reported cases, births, and
// population on a shared discrete time index, plus the seasonal indexing
// of its steps.
type Dataset struct {
	ID     core.DatasetID          `json:"id"`
	Name   string                  `json:"name"`
	Cases  timeseries.Series       `json:"cases"`
	Births timeseries.Series       `json:"births"`
	// Population may be a constant series when only one census figure is
	// known for the observation window.
	Population timeseries.Series      `json:"population"`
	Season     timeseries.SeasonalIndex `json:"season"`
}

// Steps returns the number of aligned observation steps.
func (d Dataset) Steps() int {
	return d.Cases.Len()
}

// Validate checks alignment and sign constraints. Whole-number case counts
// are not required here: only the chain-binomial likelihood needs integer
// incidence, and it checks at the point of use.
func (d Dataset) Validate() error {
	if d.Name == "" {
		return core.NewValidationError("dataset", "name cannot be empty")
	}
	if d.Cases.Len() == 0 {
		return core.NewInsufficientDataError("dataset", 1, 0)
	}
	if err := timeseries.CheckAligned(d.Cases, d.Births, d.Population); err != nil {
		return err
	}
	if err := d.Cases.CheckNonNegative(); err != nil {
		return err
	}
	if err := d.Births.CheckNonNegative(); err != nil {
		return err
	}
	if err := d.Population.CheckNonNegative(); err != nil {
		return err
	}
	if d.Season.Period < 1 {
		return core.NewDomainError("season period", float64(d.Season.Period))
	}
	return nil
}

// Fingerprint hashes all three series so run manifests can prove which
// data a fit was produced from.
func (d Dataset) Fingerprint() core.SeriesHash {
	cases := core.ComputeSeriesHash(d.Cases.Name, d.Cases.Values)
	births := core.ComputeSeriesHash(d.Births.Name, d.Births.Values)
	pop := core.ComputeSeriesHash(d.Population.Name, d.Population.Values)
	return core.NewSeriesHash([]byte(d.Name + "|" + cases.String() + "|" + births.String() + "|" + pop.String()))
}
