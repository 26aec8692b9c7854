package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// NoveltyDetector is a one-class model trained on unlabeled data.
// Predict labels rows +1 (inlier) or -1 (outlier).
type NoveltyDetector interface {
	Fit(X mat.Matrix) error
	DecisionFunction(X mat.Matrix) ([]float64, error)
	Predict(X mat.Matrix) ([]int, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
