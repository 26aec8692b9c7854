package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/core/parallel"
	"github.com/YuminosukeSato/listingprep/metrics"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// Above this condition number of X^T X the fit switches to SVD least squares.
const maxNormalCond = 1e12

// LinearRegression is ordinary least squares regression.
type LinearRegression struct {
	model.BaseEstimator
	Weights   *mat.VecDense // coefficients
	Intercept float64       // intercept
	NFeatures int           // number of features

	fitIntercept bool
	rcond        float64
	workers      int
	usedSVD      bool
}

// NewLinearRegression creates an unfitted model.
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		fitIntercept: true,
		rcond:        1e-10,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit solves the normal equations w = (X^T X)^-1 X^T y. When X^T X is
// ill-conditioned, for example with collinear predictors, it takes the
// minimum-norm solution from a truncated SVD instead.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	lr.NFeatures = c

	// prepend a column of ones for the intercept: [1, X]
	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	design := mat.NewDense(r, c+offset, nil)

	// rows at or below this are copied sequentially
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, lr.workers, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	weights, err := lr.solveNormal(design, yVec)
	lr.usedSVD = false
	if err != nil {
		weights, err = lr.solveSVD(design, yVec)
		if err != nil {
			return err
		}
		lr.usedSVD = true
	}

	lr.Intercept = 0
	if offset == 1 {
		lr.Intercept = weights.AtVec(0)
	}
	lr.Weights = mat.NewVecDense(c, nil)
	for i := 0; i < c; i++ {
		lr.Weights.SetVec(i, weights.AtVec(i+offset))
	}

	lr.SetFitted()
	return nil
}

func (lr *LinearRegression) solveNormal(design *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var lu mat.LU
	lu.Factorize(&xtx)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxNormalCond {
		return nil, errors.ErrSingularMatrix
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), y)

	_, n := design.Dims()
	w := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(w, false, &xty); err != nil {
		return nil, errors.ErrSingularMatrix
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", w.RawVector().Data, 0); err != nil {
		return nil, err
	}
	return w, nil
}

func (lr *LinearRegression) solveSVD(design *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return nil, errors.NewModelError("LinearRegression.Fit", "svd failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(lr.rcond)
	if rank == 0 {
		return nil, errors.NewModelError("LinearRegression.Fit", "rank zero design matrix", errors.ErrSingularMatrix)
	}
	_, n := design.Dims()
	w := mat.NewVecDense(n, nil)
	svd.SolveVecTo(w, y, rank)
	return w, nil
}

// Predict returns an n×1 matrix of predictions.
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	// y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// GetWeights returns a copy of the coefficients.
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return append([]float64(nil), lr.Weights.RawVector().Data...)
}

// GetIntercept returns the intercept.
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// UsedSVD reports whether the last Fit fell back to SVD.
func (lr *LinearRegression) UsedSVD() bool {
	return lr.usedSVD
}

// Score returns R² of the predictions for X against y.
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	pred, _ := metrics.ColumnVector(yPred)
	return metrics.R2Score(yTrue, pred)
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"rcond":         lr.rcond,
	}
}
