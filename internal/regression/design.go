// Package regression fits the seasonal log-linear transmission model of
// the TSIR framework. The design has one indicator column per season and
// no intercept, so every season carries an independent log-transmission
// coefficient, plus one continuous column for the lagged log-incidence
// whose slope is the mixing exponent. The susceptible-pool term enters
// as a fixed offset with coefficient 1, subtracted from the response
// before solving.
package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"epifit/domain/core"
	"epifit/domain/timeseries"
)

// Design is the materialized regression problem for one candidate mean
// susceptible level: X holds the seasonal indicators and the lagged
// log-incidence column, Y the offset-adjusted log response.
type Design struct {
	X       *mat.Dense
	Y       *mat.VecDense
	Seasons int
	Rows    int
}

// Cols returns the number of estimated coefficients.
func (d *Design) Cols() int {
	return d.Seasons + 1
}

// BuildDesign lays out one row per transition: the response is the log
// of the corrected incidence at t+1, the predictors are the season of t
// and the log corrected incidence at t, and the offset is
// log(sbar + deviation_t) - log(population). Every season must appear
// among the transitions or the indicator block is singular; log
// arguments must be strictly positive.
func BuildDesign(corrected, deviation []float64, season timeseries.SeasonalIndex, sbar, population float64) (*Design, error) {
	if len(corrected) != len(deviation) {
		return nil, core.NewAlignmentError(fmt.Sprintf("corrected incidence has %d steps, deviation %d", len(corrected), len(deviation)))
	}
	if sbar <= 0 {
		return nil, core.NewDomainError("mean susceptible level", sbar)
	}
	if population <= 0 {
		return nil, core.NewDomainError("population", population)
	}

	p := season.Period
	rows := len(corrected) - 1
	cols := p + 1
	if rows <= cols {
		return nil, core.NewInsufficientDataError("seasonal regression", cols+1, rows)
	}
	for k, ok := range season.Coverage(rows) {
		if !ok {
			return nil, core.NewIdentifiabilityError(fmt.Sprintf("season %d of %d never observed", k+1, p))
		}
	}

	x := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for t := 0; t < rows; t++ {
		cur, next := corrected[t], corrected[t+1]
		if cur <= 0 {
			return nil, core.NewDomainError("corrected incidence", cur)
		}
		if next <= 0 {
			return nil, core.NewDomainError("corrected incidence", next)
		}
		pool := sbar + deviation[t]
		if pool <= 0 {
			return nil, core.NewDomainError("susceptible pool", pool)
		}

		x.Set(t, season.SeasonOf(t), 1)
		x.Set(t, p, math.Log(cur))
		offset := math.Log(pool) - math.Log(population)
		y.SetVec(t, math.Log(next)-offset)
	}

	return &Design{X: x, Y: y, Seasons: p, Rows: rows}, nil
}
