// Package datagen builds synthetic epidemic tables in the file formats
// the dataset reader accepts. Two shapes are supported: an endemic series
// held near seasonal equilibrium, generated by the same simulator the
// fits replay through so a fit on the file recovers the generating
// parameters, and a single closed stochastic outbreak.
package datagen

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"epifit/domain/epi"
	"epifit/domain/timeseries"
	"epifit/internal/simulate"
)

// Supported epidemic shapes.
const (
	KindEndemic  = "endemic"
	KindOutbreak = "outbreak"
)

// Dataset is the in-memory table written to disk: formatted rows plus
// the numeric series they were rendered from.
type Dataset struct {
	Headers []string
	Rows    [][]string // formatted strings, one row per observation

	// Numeric series for validation/tests
	Dates      []time.Time
	Cases      []float64
	Births     []float64
	Population []float64
}

// Config holds the generation parameters for both shapes.
type Config struct {
	Steps     int
	Seed      int64
	StartDate time.Time
	// StepDays is the observation interval, 14 for biweekly counts.
	StepDays int

	// Kind selects the epidemic shape: endemic or outbreak.
	Kind string

	// Endemic shape
	Population float64
	BaseBirths float64
	BetaMean   float64
	BetaAmp    float64
	Alpha      float64
	Period     int

	// Outbreak shape
	S0           float64
	Beta         float64
	InitialCases float64
}

// DefaultConfig returns a biweekly measles-like endemic configuration.
func DefaultConfig() Config {
	return Config{
		Steps:        520,
		Seed:         42,
		StartDate:    time.Date(1948, 1, 3, 0, 0, 0, 0, time.UTC),
		StepDays:     14,
		Kind:         KindEndemic,
		Population:   3.3e6,
		BaseBirths:   120,
		BetaMean:     35.9,
		BetaAmp:      0.7,
		Alpha:        0.97,
		Period:       26,
		S0:           6500,
		Beta:         2.3,
		InitialCases: 5,
	}
}

// Generate builds the configured table. Endemic output always spans the
// full step count; outbreak output stops at extinction.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.Steps < 2 {
		return nil, fmt.Errorf("steps must be at least 2")
	}
	if cfg.StepDays < 1 {
		return nil, fmt.Errorf("step days must be positive")
	}

	var cases, births, population []float64
	var err error
	switch cfg.Kind {
	case KindEndemic:
		cases, births, population, err = generateEndemic(cfg)
	case KindOutbreak:
		cases, births, population, err = generateOutbreak(cfg)
	default:
		return nil, fmt.Errorf("unknown kind %q (expected endemic or outbreak)", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(cases))
	for t := range dates {
		dates[t] = cfg.StartDate.AddDate(0, 0, t*cfg.StepDays)
	}

	headers := []string{"date", "cases", "births", "population"}
	rows := make([][]string, len(cases))
	for t := range rows {
		rows[t] = []string{
			dates[t].Format("2006-01-02"),
			countStr(cases[t]),
			countStr(births[t]),
			countStr(population[t]),
		}
	}

	return &Dataset{
		Headers:    headers,
		Rows:       rows,
		Dates:      dates,
		Cases:      cases,
		Births:     births,
		Population: population,
	}, nil
}

// generateEndemic replays a deterministic seasonal trajectory started at
// its equilibrium, then overlays small birth and reporting noise. The
// equilibrium pool solves betaMean * S * I^(alpha-1) / N = 1 at the
// birth-replacement incidence, so the series neither grows nor decays.
func generateEndemic(cfg Config) (cases, births, population []float64, err error) {
	if cfg.Population <= 0 || cfg.BaseBirths <= 0 {
		return nil, nil, nil, fmt.Errorf("population and births must be positive")
	}
	if cfg.BetaAmp < 0 || cfg.BetaAmp >= cfg.BetaMean {
		return nil, nil, nil, fmt.Errorf("beta amplitude must stay below the mean")
	}

	season, err := timeseries.NewSeasonalIndex(cfg.Period, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	beta := make([]float64, cfg.Period)
	for k := range beta {
		beta[k] = cfg.BetaMean + cfg.BetaAmp*math.Sin(2*math.Pi*float64(k)/float64(cfg.Period))
	}

	pool := cfg.Population * math.Pow(cfg.BaseBirths, 1-cfg.Alpha) / cfg.BetaMean
	sim, err := simulate.NewTSIR(epi.TSIRParams{
		Beta:  beta,
		Alpha: cfg.Alpha,
		SBar:  pool,
		N:     cfg.Population,
	}, season)
	if err != nil {
		return nil, nil, nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	births = make([]float64, cfg.Steps)
	for t := range births {
		drift := 1 + 0.05*math.Sin(2*math.Pi*float64(t)/300)
		births[t] = math.Round(cfg.BaseBirths*drift + rng.NormFloat64()*2)
	}

	tr, err := sim.Run(pool, cfg.BaseBirths, births, epi.ModeDeterministic, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	cases = make([]float64, cfg.Steps)
	population = make([]float64, cfg.Steps)
	for t := range cases {
		reported := math.Round(tr.I[t+1] + rng.NormFloat64()*2)
		cases[t] = math.Max(1, reported)
		population[t] = cfg.Population
	}
	return cases, births, population, nil
}

// generateOutbreak draws one stochastic closed epidemic. The table ends
// where the outbreak does, with zero births and a constant population
// equal to the susceptible pool.
func generateOutbreak(cfg Config) (cases, births, population []float64, err error) {
	sim, err := simulate.NewChainBinomial(epi.ChainBinomialParams{S0: cfg.S0, Beta: cfg.Beta})
	if err != nil {
		return nil, nil, nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	tr, err := sim.Run(cfg.InitialCases, cfg.Steps-1, epi.ModeStochastic, rng)
	if err != nil {
		return nil, nil, nil, err
	}

	cases = tr.I
	births = make([]float64, len(cases))
	population = make([]float64, len(cases))
	for t := range population {
		population[t] = cfg.S0
	}
	return cases, births, population, nil
}

// WriteCSV writes the table with a header row.
func WriteCSV(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(ds.Headers); err != nil {
		return err
	}
	for _, row := range ds.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteXLSX writes the table to Sheet1, header row first.
func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(ds.Headers))
	for i, h := range ds.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		return err
	}

	for r, row := range ds.Rows {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func countStr(x float64) string {
	return strconv.FormatFloat(math.Round(x), 'f', 0, 64)
}
