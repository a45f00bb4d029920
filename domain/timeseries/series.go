// Package timeseries holds the ordered observation vectors the inference
// engine consumes: reported case counts, birth counts, and population
// sizes indexed by observation step.
package timeseries

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"epifit/domain/core"
)

// wholeTol is the slack allowed when checking that counts are integers.
// Values read back from spreadsheets can carry float noise.
const wholeTol = 1e-9

// Series is a named, ordered vector of observations on a fixed cadence.
// The step index is implicit: Values[t] is the observation for step t.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// New builds a series over a defensive copy of values.
func New(name string, values []float64) Series {
	v := make([]float64, len(values))
	copy(v, values)
	return Series{Name: name, Values: v}
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Values)
}

// At returns the observation at step t.
func (s Series) At(t int) (float64, error) {
	if t < 0 || t >= len(s.Values) {
		return 0, core.NewAlignmentError("step index out of range")
	}
	return s.Values[t], nil
}

// Copy returns an independent copy of the series.
func (s Series) Copy() Series {
	return New(s.Name, s.Values)
}

// Slice returns the half-open window [lo, hi) as a new series.
func (s Series) Slice(lo, hi int) (Series, error) {
	if lo < 0 || hi > len(s.Values) || lo > hi {
		return Series{}, core.NewAlignmentError("slice window out of range")
	}
	return New(s.Name, s.Values[lo:hi]), nil
}

// Cumulative returns the running sum of the series. Cumulative()[t] is the
// total observed through step t inclusive.
func (s Series) Cumulative() Series {
	out := make([]float64, len(s.Values))
	total := 0.0
	for i, v := range s.Values {
		total += v
		out[i] = total
	}
	return Series{Name: s.Name, Values: out}
}

// Diff undoes Cumulative: Diff()[0] == Values[0] and Diff()[t] is the
// per-step increment afterwards.
func (s Series) Diff() Series {
	out := make([]float64, len(s.Values))
	prev := 0.0
	for i, v := range s.Values {
		out[i] = v - prev
		prev = v
	}
	return Series{Name: s.Name, Values: out}
}

// AggregateEvery collapses the series into coarser steps by summing blocks
// of width consecutive observations (weekly counts into biweekly counts
// with width 2). A trailing partial block is dropped.
func (s Series) AggregateEvery(width int) (Series, error) {
	if width < 1 {
		return Series{}, core.NewDomainError("aggregation width", float64(width))
	}
	n := len(s.Values) / width
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < width; j++ {
			sum += s.Values[i*width+j]
		}
		out[i] = sum
	}
	return Series{Name: s.Name, Values: out}, nil
}

// Total returns the sum of all observations.
func (s Series) Total() float64 {
	v, _ := stats.Sum(s.Values)
	return v
}

// Mean returns the arithmetic mean, or 0 for an empty series.
func (s Series) Mean() float64 {
	v, _ := stats.Mean(s.Values)
	return v
}

// Max returns the largest observation, or 0 for an empty series.
func (s Series) Max() float64 {
	v, _ := stats.Max(s.Values)
	return v
}

// CheckNonNegative rejects series containing negative or non-finite values.
func (s Series) CheckNonNegative() error {
	for _, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewDomainError(s.Name+" value", v)
		}
		if v < 0 {
			return core.NewDomainError(s.Name+" value", v)
		}
	}
	return nil
}

// CheckWhole rejects series whose values are not whole numbers within
// float tolerance. Count likelihoods are undefined off the integers.
func (s Series) CheckWhole() error {
	for i, v := range s.Values {
		if math.Abs(v-math.Round(v)) > wholeTol {
			return fmt.Errorf("%w: %s is not integer-valued at step %d", core.ErrNonIntegerCounts, s.Name, i)
		}
	}
	return nil
}

// Rounded returns a copy with every value snapped to the nearest integer.
func (s Series) Rounded() Series {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = math.Round(v)
	}
	return Series{Name: s.Name, Values: out}
}

// CheckAligned verifies that every series has the same length as the first.
func CheckAligned(series ...Series) error {
	if len(series) == 0 {
		return nil
	}
	n := series[0].Len()
	for _, s := range series[1:] {
		if s.Len() != n {
			return core.NewAlignmentError(fmt.Sprintf(
				"%s has %d steps, %s has %d", series[0].Name, n, s.Name, s.Len()))
		}
	}
	return nil
}
