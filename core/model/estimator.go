package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model trained on X and y.
type Fitter interface {
	// Fit trains the model. y is an n×1 column vector.
	Fit(X, y mat.Matrix) error
}

// Predictor produces predictions for X.
type Predictor interface {
	// Predict returns an n×1 prediction matrix.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is the model the imputer trains per column.
type Regressor interface {
	Fitter
	Predictor
	IsFitted() bool
}

// RegressorFactory returns a fresh unfitted regressor for column.
type RegressorFactory func(column string) Regressor

// LinearModel exposes fitted linear coefficients.
type LinearModel interface {
	// GetWeights returns the fitted coefficients.
	GetWeights() []float64
	// GetIntercept returns the fitted intercept.
	GetIntercept() float64
}
