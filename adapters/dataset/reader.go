// Package dataset loads aligned epidemic tables from CSV and XLSX files.
// Both formats share one tabular shape: a header row naming at least the
// cases, births and population columns, then one row per observation
// step. XLSX files are read from Sheet1.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// Column names matched case-insensitively in the header row.
const (
	colCases      = "cases"
	colBirths     = "births"
	colPopulation = "population"
)

// Reader loads epidemic tables into validated datasets. The seasonal
// cycle is a property of the observation cadence, not of the file, so it
// is fixed at construction.
type Reader struct {
	period int
	phase  int
	log    *logrus.Logger
}

// NewReader creates a reader for series observed on a cycle of the given
// period, with step 0 falling into the given phase.
func NewReader(period, phase int, log *logrus.Logger) (*Reader, error) {
	if _, err := timeseries.NewSeasonalIndex(period, phase); err != nil {
		return nil, err
	}
	return &Reader{period: period, phase: phase, log: log}, nil
}

// Load reads the file at source and returns a validated dataset. The
// dataset name is the file name without its extension.
func (r *Reader) Load(ctx context.Context, source string) (*epi.Dataset, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, core.NewNotFoundError("dataset file", source)
	}

	var rows [][]string
	var err error
	ext := strings.ToLower(filepath.Ext(source))
	switch ext {
	case ".csv":
		rows, err = readCSV(source)
	case ".xlsx":
		rows, err = readXLSX(source)
	default:
		return nil, core.NewValidationError("dataset_file", fmt.Sprintf("unsupported extension %q", ext))
	}
	if err != nil {
		return nil, err
	}

	ds, err := r.assemble(datasetName(source), rows)
	if err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"dataset": ds.Name,
		"steps":   ds.Steps(),
		"period":  r.period,
		"format":  ext,
	}).Info("Dataset loaded")
	return ds, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("read Sheet1: %w", err)
	}
	return rows, nil
}

// assemble turns raw string rows into a validated dataset.
func (r *Reader) assemble(name string, rows [][]string) (*epi.Dataset, error) {
	if len(rows) < 2 {
		return nil, core.NewInsufficientDataError("dataset file", 2, len(rows))
	}

	idx, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	steps := len(rows) - 1
	cases := make([]float64, steps)
	births := make([]float64, steps)
	population := make([]float64, steps)
	for t := 0; t < steps; t++ {
		row := rows[t+1]
		if cases[t], err = cell(row, idx[colCases], t); err != nil {
			return nil, err
		}
		if births[t], err = cell(row, idx[colBirths], t); err != nil {
			return nil, err
		}
		if population[t], err = cell(row, idx[colPopulation], t); err != nil {
			return nil, err
		}
	}

	season, err := timeseries.NewSeasonalIndex(r.period, r.phase)
	if err != nil {
		return nil, err
	}
	ds := &epi.Dataset{
		ID:         core.DatasetID(core.NewID()),
		Name:       name,
		Cases:      timeseries.New(colCases, cases),
		Births:     timeseries.New(colBirths, births),
		Population: timeseries.New(colPopulation, population),
		Season:     season,
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// columnIndex locates the required columns in the header row. Extra
// columns are ignored.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, 3)
	for j, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = j
	}
	for _, col := range []string{colCases, colBirths, colPopulation} {
		if _, ok := idx[col]; !ok {
			return nil, core.NewValidationError("dataset_file", fmt.Sprintf("missing %q column", col))
		}
	}
	return idx, nil
}

func cell(row []string, j, step int) (float64, error) {
	if j >= len(row) {
		return 0, core.NewValidationError("dataset_file", fmt.Sprintf("row %d has no value in column %d", step+1, j+1))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
	if err != nil {
		return 0, core.NewValidationError("dataset_file", fmt.Sprintf("row %d column %d: %q is not numeric", step+1, j+1, row[j]))
	}
	return v, nil
}

func datasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
