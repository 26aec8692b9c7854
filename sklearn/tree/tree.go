// Package tree provides a CART decision tree regressor used by the forest
// imputation estimator.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// node is a flattened tree node. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	samples   int
}

// DecisionTreeRegressor is a CART regression tree split by variance reduction.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     uint64

	nodes     []node
	nFeatures int
	depth     int
	rng       *rand.Rand
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the tree depth. Values <= 0 mean unlimited.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.minSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features considered per split. Values <= 0 mean all.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) { t.maxFeatures = n }
}

// WithRandomState seeds the feature subsampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.randomState = seed }
}

// NewDecisionTreeRegressor creates a regressor with sklearn-like defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit grows the tree on X (n×p) and y (n×1).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "y must be a column vector")
	}
	if t.minSamplesLeaf < 1 || t.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples", "min_samples_leaf must be >= 1 and min_samples_split >= 2",
			[2]int{t.minSamplesLeaf, t.minSamplesSplit})
	}

	weights := make([]float64, r)
	for i := range weights {
		weights[i] = 1
	}
	return t.FitWeighted(X, y, weights)
}

// FitWeighted grows the tree with per-row integer-like sample weights.
// Rows with zero weight are ignored; bootstrap counts are passed here.
func (t *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, weights []float64) error {
	r, c := X.Dims()
	if len(weights) != r {
		return errors.NewDimensionError("DecisionTreeRegressor.FitWeighted", r, len(weights), 0)
	}
	t.nFeatures = c
	t.nodes = t.nodes[:0]
	t.depth = 0
	t.rng = rand.New(rand.NewPCG(t.randomState, 0x9e3779b97f4a7c15))

	xs := make([][]float64, c)
	for j := 0; j < c; j++ {
		xs[j] = make([]float64, r)
		for i := 0; i < r; i++ {
			xs[j][i] = X.At(i, j)
		}
	}
	ys := make([]float64, r)
	for i := 0; i < r; i++ {
		ys[i] = y.At(i, 0)
	}

	idx := make([]int, 0, r)
	for i := 0; i < r; i++ {
		if weights[i] > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "all sample weights are zero", errors.ErrEmptyData)
	}

	b := &builder{tree: t, xs: xs, ys: ys, w: weights}
	b.grow(idx, 0)
	t.SetFitted()
	return nil
}

type builder struct {
	tree *DecisionTreeRegressor
	xs   [][]float64
	ys   []float64
	w    []float64
}

func (b *builder) stats(idx []int) (sumW, mean float64) {
	var sum float64
	for _, i := range idx {
		sumW += b.w[i]
		sum += b.w[i] * b.ys[i]
	}
	return sumW, sum / sumW
}

func (b *builder) grow(idx []int, depth int) int {
	t := b.tree
	if depth > t.depth {
		t.depth = depth
	}
	sumW, mean := b.stats(idx)
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{feature: -1, value: mean, samples: int(sumW)})

	if (t.maxDepth > 0 && depth >= t.maxDepth) || sumW < float64(t.minSamplesSplit) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.xs[feature][i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	rgt := b.grow(right, depth+1)
	t.nodes[id].feature = feature
	t.nodes[id].threshold = threshold
	t.nodes[id].left = l
	t.nodes[id].right = rgt
	return id
}

func (b *builder) candidateFeatures() []int {
	t := b.tree
	all := make([]int, t.nFeatures)
	for j := range all {
		all[j] = j
	}
	if t.maxFeatures <= 0 || t.maxFeatures >= t.nFeatures {
		return all
	}
	t.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:t.maxFeatures]
}

// bestSplit scans every candidate feature for the threshold maximising the
// weighted reduction of squared error.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	t := b.tree
	minLeaf := float64(t.minSamplesLeaf)

	var totalW, totalS float64
	for _, i := range idx {
		totalW += b.w[i]
		totalS += b.w[i] * b.ys[i]
	}
	parentScore := totalS * totalS / totalW

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, len(idx))

	for _, f := range b.candidateFeatures() {
		x := b.xs[f]
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return x[sorted[a]] < x[sorted[c]] })

		var leftW, leftS float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			leftW += b.w[i]
			leftS += b.w[i] * b.ys[i]
			next := x[sorted[k+1]]
			if x[i] == next {
				continue
			}
			rightW := totalW - leftW
			if leftW < minLeaf || rightW < minLeaf {
				continue
			}
			rightS := totalS - leftS
			// SSE reduction = sum_l^2/w_l + sum_r^2/w_r - sum^2/w
			gain := leftS*leftS/leftW + rightS*rightS/rightW - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = x[i] + (next-x[i])/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// Predict returns an n×1 matrix of leaf means.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !t.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != t.nFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", t.nFeatures, c, 1)
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, t.predictRow(X, i))
	}
	return out, nil
}

func (t *DecisionTreeRegressor) predictRow(X mat.Matrix, i int) float64 {
	n := 0
	for t.nodes[n].feature >= 0 {
		v := X.At(i, t.nodes[n].feature)
		// NaN goes left
		if v <= t.nodes[n].threshold || math.IsNaN(v) {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].value
}

// Depth returns the depth of the fitted tree.
func (t *DecisionTreeRegressor) Depth() int { return t.depth }

// NumLeaves returns the number of leaves of the fitted tree.
func (t *DecisionTreeRegressor) NumLeaves() int {
	n := 0
	for _, nd := range t.nodes {
		if nd.feature < 0 {
			n++
		}
	}
	return n
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.randomState,
	}
}
