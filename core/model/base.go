package model

// EstimatorState is the fit state of a model.
type EstimatorState int

const (
	// NotFitted means Fit has not completed.
	NotFitted EstimatorState = iota
	// Fitted means the model can predict.
	Fitted
)

// BaseEstimator is embedded by single estimators such as the regressors.
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted reports whether the model is fitted.
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted marks the model as fitted.
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset returns the model to the unfitted state.
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}
