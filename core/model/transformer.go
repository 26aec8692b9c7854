package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/listingprep/core/frame"
)

// Transformer rewrites a feature matrix.
type Transformer interface {
	// Fit learns the transform parameters.
	Fit(X mat.Matrix) error

	// Transform applies the fitted transform.
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform is Fit followed by Transform.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// TableTransformer is a whole-frame preprocessing stage. Transform leaves
// its input untouched and returns a new frame.
type TableTransformer interface {
	Fit(df *frame.Frame) error
	Transform(df *frame.Frame) (*frame.Frame, error)
}
