package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"epifit/domain/core"
	"epifit/domain/epi"
	"epifit/domain/timeseries"
)

// Fit solves the design by ordinary least squares through the normal
// equations. The Cholesky factorization doubles as the identifiability
// check: a singular or near-singular cross-product means collinear
// columns, which is reported rather than pseudo-inverted away. Standard
// errors come from the diagonal of sigma^2 (X'X)^-1 and the deviance is
// the residual sum of squares.
func Fit(d *Design) (*epi.RegressionFit, error) {
	cols := d.Cols()
	dof := d.Rows - cols
	if dof < 1 {
		return nil, core.NewInsufficientDataError("seasonal regression", cols+1, d.Rows)
	}

	var xtx mat.Dense
	xtx.Mul(d.X.T(), d.X)
	sym := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			sym.SetSym(i, j, xtx.At(i, j))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, core.NewIdentifiabilityError("design matrix is singular")
	}

	var xty mat.VecDense
	xty.MulVec(d.X.T(), d.Y)
	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, &xty); err != nil {
		return nil, core.NewIdentifiabilityError("design matrix is ill-conditioned")
	}

	var fitted mat.VecDense
	fitted.MulVec(d.X, &coef)
	rss := 0.0
	for t := 0; t < d.Rows; t++ {
		r := d.Y.AtVec(t) - fitted.AtVec(t)
		rss += r * r
	}
	sigma2 := rss / float64(dof)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, core.NewIdentifiabilityError("coefficient covariance is not computable")
	}

	coefficients := make([]float64, cols)
	stderrs := make([]float64, cols)
	for j := 0; j < cols; j++ {
		coefficients[j] = coef.AtVec(j)
		stderrs[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}

	return &epi.RegressionFit{
		Coefficients: coefficients,
		StdErrors:    stderrs,
		Deviance:     rss,
		Seasons:      d.Seasons,
		Observations: d.Rows,
	}, nil
}

// Estimate builds the design for one candidate mean susceptible level
// and fits it. This is the objective the susceptible-level profile scan
// minimizes over its candidate grid.
func Estimate(corrected, deviation []float64, season timeseries.SeasonalIndex, sbar, population float64) (*epi.RegressionFit, error) {
	d, err := BuildDesign(corrected, deviation, season, sbar, population)
	if err != nil {
		return nil, err
	}
	return Fit(d)
}
