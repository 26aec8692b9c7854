// Package ensemble provides bagged tree regressors.
package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/core/parallel"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/sklearn/tree"
)

// RandomForestRegressor averages DecisionTreeRegressors grown on bootstrap samples.
type RandomForestRegressor struct {
	model.BaseEstimator

	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	bootstrap      bool
	randomState    uint64
	workers        int

	trees     []*tree.DecisionTreeRegressor
	nFeatures int
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) { f.nEstimators = n }
}

// WithMaxDepth limits the depth of each tree. Values <= 0 mean unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) { f.maxDepth = depth }
}

// WithMinSamplesLeaf sets the minimum leaf size of each tree.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) { f.minSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features tried per split. Values <= 0 mean all.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForestRegressor) { f.maxFeatures = n }
}

// WithBootstrap toggles bootstrap resampling of rows per tree.
func WithBootstrap(b bool) Option {
	return func(f *RandomForestRegressor) { f.bootstrap = b }
}

// WithRandomState seeds bootstrap sampling and feature subsampling.
func WithRandomState(seed uint64) Option {
	return func(f *RandomForestRegressor) { f.randomState = seed }
}

// WithWorkers sets the number of goroutines growing trees. Values <= 0 mean one per CPU.
func WithWorkers(n int) Option {
	return func(f *RandomForestRegressor) { f.workers = n }
}

// NewRandomForestRegressor creates a forest with sklearn-like defaults.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		nEstimators:    100,
		minSamplesLeaf: 1,
		bootstrap:      true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows nEstimators trees concurrently. Results depend only on the random state.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("RandomForestRegressor.Fit", "y must be a column vector")
	}
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}

	f.nFeatures = c
	f.trees = make([]*tree.DecisionTreeRegressor, f.nEstimators)

	err := parallel.ForEach(f.nEstimators, f.workers, func(k int) error {
		seed := f.randomState + uint64(k)
		weights := make([]float64, r)
		if f.bootstrap {
			rng := rand.New(rand.NewPCG(f.randomState, uint64(k)+1))
			for i := 0; i < r; i++ {
				weights[rng.IntN(r)]++
			}
		} else {
			for i := range weights {
				weights[i] = 1
			}
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesLeaf(f.minSamplesLeaf),
			tree.WithMaxFeatures(f.maxFeatures),
			tree.WithRandomState(seed),
		)
		if err := t.FitWeighted(X, y, weights); err != nil {
			return errors.Wrapf(err, "tree %d", k)
		}
		f.trees[k] = t
		return nil
	})
	if err != nil {
		return err
	}

	f.SetFitted()
	return nil
}

// Predict returns the mean of the tree predictions as an n×1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != f.nFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", f.nFeatures, c, 1)
	}

	out := mat.NewDense(r, 1, nil)
	for _, t := range f.trees {
		p, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r; i++ {
			out.Set(i, 0, out.At(i, 0)+p.At(i, 0))
		}
	}
	out.Scale(1/float64(len(f.trees)), out)
	return out, nil
}

// NumTrees returns the number of fitted trees.
func (f *RandomForestRegressor) NumTrees() int { return len(f.trees) }

// GetParams returns the hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     f.nEstimators,
		"max_depth":        f.maxDepth,
		"min_samples_leaf": f.minSamplesLeaf,
		"max_features":     f.maxFeatures,
		"bootstrap":        f.bootstrap,
		"random_state":     f.randomState,
	}
}
