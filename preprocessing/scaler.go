// Package preprocessing provides column scalers applied to outlier detector input.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// Columns whose spread is below this are scaled by 1.
const minScale = 1e-8

// Scaler is the input scaling applied before outlier detection.
type Scaler interface {
	model.Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// finiteColumn returns the finite entries of column j. NaN is left out of the statistics.
func finiteColumn(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	out := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		v := X.At(i, j)
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// affine applies (x - offset) / scale per column.
func affine(X mat.Matrix, offset, scale []float64, inverse bool) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if inverse {
				out.Set(i, j, v*scale[j]+offset[j])
			} else {
				out.Set(i, j, (v-offset[j])/scale[j])
			}
		}
	}
	return out
}

// StandardScaler standardizes features to zero mean and unit variance.
type StandardScaler struct {
	model.BaseEstimator

	// Mean of each feature
	Mean []float64
	// Scale is the population standard deviation of each feature
	Scale []float64
	// NFeatures is the number of features
	NFeatures int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler creates a StandardScaler.
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-column mean and standard deviation, ignoring NaN.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		col := finiteColumn(X, j)
		s.Scale[j] = 1
		if len(col) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		if s.WithStd {
			if sd := math.Sqrt(variance); sd >= minScale {
				s.Scale[j] = sd
			}
		}
	}

	s.SetFitted()
	return nil
}

// Transform standardizes X with the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}
	if _, c := X.Dims(); c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}
	return affine(X, s.Mean, s.Scale, false), nil
}

// FitTransform is Fit followed by Transform.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform undoes the standardization.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}
	if _, c := X.Dims(); c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}
	return affine(X, s.Mean, s.Scale, true), nil
}

// GetParams returns the hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)", s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler maps features linearly onto FeatureRange, [0, 1] by default.
type MinMaxScaler struct {
	model.BaseEstimator

	DataMin      []float64
	DataMax      []float64
	FeatureRange [2]float64
	NFeatures    int

	offset []float64
	scale  []float64
}

// NewMinMaxScaler creates a MinMaxScaler for the given range.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{FeatureRange: featureRange}
}

// NewMinMaxScalerDefault maps onto [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit computes per-column minimum and maximum, ignoring NaN.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	if lo >= hi {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.offset = make([]float64, c)
	m.scale = make([]float64, c)
	for j := 0; j < c; j++ {
		col := finiteColumn(X, j)
		if len(col) == 0 {
			m.scale[j] = 1
			continue
		}
		mn, mx := col[0], col[0]
		for _, v := range col {
			mn = math.Min(mn, v)
			mx = math.Max(mx, v)
		}
		m.DataMin[j], m.DataMax[j] = mn, mx

		// x' = (x - min) / (max - min) * (hi - lo) + lo  =  (x - offset) / scale
		span := mx - mn
		if span < minScale {
			span = 1
		}
		m.scale[j] = span / (hi - lo)
		m.offset[j] = mn - lo*m.scale[j]
	}

	m.SetFitted()
	return nil
}

// Transform maps X onto the fitted range.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "Transform")
	}
	if _, c := X.Dims(); c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}
	return affine(X, m.offset, m.scale, false), nil
}

// FitTransform is Fit followed by Transform.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform maps back to the original scale.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}
	if _, c := X.Dims(); c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}
	return affine(X, m.offset, m.scale, true), nil
}

// GetParams returns the hyperparameters.
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"feature_range": m.FeatureRange}
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.FeatureRange[0], m.FeatureRange[1])
}

// NewScaler returns the scaler named name. "none" and "" return nil.
func NewScaler(name string) (Scaler, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "standard":
		return NewStandardScalerDefault(), nil
	case "minmax":
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaling", "must be none, standard or minmax", name)
	}
}
