// Package svm provides a one-class support vector machine for novelty detection.
//
// The solver is the libsvm nu-formulation: minimise 1/2 αᵀQα subject to
// 0 <= α_i <= 1 and Σα_i = νl, with Q the RBF kernel matrix. The decision
// value of x is Σ α_i K(x_i, x) - ρ; negative values are outliers.
package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// Gamma modes resolved at Fit time when no explicit gamma is set.
const (
	GammaAuto  = "auto"  // 1 / n_features
	GammaScale = "scale" // 1 / (n_features * X.var())
)

// kernel rows kept in memory during the SMO loop
const kernelCacheRows = 512

// OneClassSVM is an RBF-kernel one-class SVM.
type OneClassSVM struct {
	model.BaseEstimator

	nu        float64
	gamma     float64
	gammaMode string
	tol       float64
	maxIter   int

	support       *mat.Dense
	dualCoef      []float64
	rho           float64
	fittedGamma   float64
	nFeatures     int
	trainDecision []float64
	nIter         int
}

// Option configures a OneClassSVM.
type Option func(*OneClassSVM)

// WithNu sets the upper bound on the fraction of training errors, in (0, 1].
func WithNu(nu float64) Option {
	return func(s *OneClassSVM) { s.nu = nu }
}

// WithGamma sets an explicit RBF coefficient. Values <= 0 defer to the gamma mode.
func WithGamma(gamma float64) Option {
	return func(s *OneClassSVM) { s.gamma = gamma }
}

// WithGammaMode selects GammaAuto or GammaScale.
func WithGammaMode(mode string) Option {
	return func(s *OneClassSVM) { s.gammaMode = mode }
}

// WithTol sets the stopping tolerance on the KKT violation.
func WithTol(tol float64) Option {
	return func(s *OneClassSVM) { s.tol = tol }
}

// WithMaxIter caps SMO iterations. Values <= 0 mean max(1e5, 100·n).
func WithMaxIter(n int) Option {
	return func(s *OneClassSVM) { s.maxIter = n }
}

// NewOneClassSVM creates a detector with nu=0.5, gamma=auto and tol=1e-3.
func NewOneClassSVM(opts ...Option) *OneClassSVM {
	s := &OneClassSVM{
		nu:        0.5,
		gammaMode: GammaAuto,
		tol:       1e-3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OneClassSVM) resolveGamma(X mat.Matrix) (float64, error) {
	if s.gamma > 0 {
		return s.gamma, nil
	}
	r, c := X.Dims()
	switch s.gammaMode {
	case GammaAuto, "":
		return 1 / float64(c), nil
	case GammaScale:
		all := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				all = append(all, X.At(i, j))
			}
		}
		_, v := stat.PopMeanVariance(all, nil)
		if v == 0 {
			return 1, nil
		}
		return 1 / (float64(c) * v), nil
	default:
		return 0, errors.NewValidationError("gamma", "must be auto, scale or a positive value", s.gammaMode)
	}
}

type kernel struct {
	x     [][]float64
	gamma float64
	cache map[int][]float64
}

func (k *kernel) eval(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Exp(-k.gamma * d)
}

func (k *kernel) row(i int) []float64 {
	if r, ok := k.cache[i]; ok {
		return r
	}
	if len(k.cache) >= kernelCacheRows {
		for key := range k.cache {
			delete(k.cache, key)
		}
	}
	r := make([]float64, len(k.x))
	for j := range k.x {
		r[j] = k.eval(k.x[i], k.x[j])
	}
	k.cache[i] = r
	return r
}

// Fit trains the detector on the rows of X.
func (s *OneClassSVM) Fit(X mat.Matrix) error {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("OneClassSVM.Fit", "empty data", errors.ErrEmptyData)
	}
	if s.nu <= 0 || s.nu > 1 || math.IsNaN(s.nu) {
		return errors.NewValidationError("nu", "must be in (0, 1]", s.nu)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", s.tol)
	}
	gamma, err := s.resolveGamma(X)
	if err != nil {
		return err
	}

	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValueError("OneClassSVM.Fit", fmt.Sprintf("non-finite value at row %d", i))
			}
			rows[i][j] = v
		}
	}
	k := &kernel{x: rows, gamma: gamma, cache: make(map[int][]float64)}

	alpha := initialAlpha(n, s.nu)
	grad := make([]float64, n)
	for i, a := range alpha {
		if a == 0 {
			continue
		}
		ki := k.row(i)
		for t := range grad {
			grad[t] += a * ki[t]
		}
	}

	maxIter := s.maxIter
	if maxIter <= 0 {
		maxIter = max(100000, 100*n)
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		i, j := -1, -1
		gMin, gMax := math.Inf(1), math.Inf(-1)
		for t := 0; t < n; t++ {
			if alpha[t] < 1 && grad[t] < gMin {
				gMin, i = grad[t], t
			}
			if alpha[t] > 0 && grad[t] > gMax {
				gMax, j = grad[t], t
			}
		}
		if i < 0 || j < 0 || gMax-gMin < s.tol {
			break
		}

		ki, kj := k.row(i), k.row(j)
		quad := math.Max(ki[i]+kj[j]-2*ki[j], 1e-12)
		step := (grad[j] - grad[i]) / quad
		capI, capJ := 1-alpha[i], alpha[j]
		if step >= capI || step >= capJ {
			step = math.Min(capI, capJ)
		}
		if step <= 0 {
			break
		}
		// land exactly on the bound so the index leaves the working set
		switch step {
		case capI:
			alpha[i] = 1
			alpha[j] -= step
		case capJ:
			alpha[i] += step
			alpha[j] = 0
		default:
			alpha[i] += step
			alpha[j] -= step
		}
		for t := 0; t < n; t++ {
			grad[t] += step * (ki[t] - kj[t])
		}
	}
	if iter >= maxIter {
		errors.Warn(errors.NewConvergenceWarning("OneClassSVM", iter,
			"solver did not reach the requested tolerance; consider raising max_iter"))
	}

	s.rho = computeRho(alpha, grad)
	s.trainDecision = make([]float64, n)
	for t := range grad {
		s.trainDecision[t] = grad[t] - s.rho
	}

	var sv []float64
	s.dualCoef = s.dualCoef[:0]
	for t, a := range alpha {
		if a > 0 {
			sv = append(sv, rows[t]...)
			s.dualCoef = append(s.dualCoef, a)
		}
	}
	s.support = mat.NewDense(len(s.dualCoef), p, sv)
	s.fittedGamma = gamma
	s.nFeatures = p
	s.nIter = iter
	s.SetFitted()
	return nil
}

// initialAlpha sets the first floor(νl) coefficients to 1 and the next one to
// the fractional remainder so that Σα = νl.
func initialAlpha(n int, nu float64) []float64 {
	alpha := make([]float64, n)
	total := nu * float64(n)
	full := int(total)
	for i := 0; i < full && i < n; i++ {
		alpha[i] = 1
	}
	if full < n {
		alpha[full] = total - float64(full)
	}
	return alpha
}

// computeRho averages the gradient over free coefficients, or takes the
// midpoint of the feasible interval when every coefficient is at a bound.
func computeRho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sumFree float64
	nFree := 0
	for t, a := range alpha {
		switch {
		case a >= 1:
			lb = math.Max(lb, grad[t])
		case a <= 0:
			ub = math.Min(ub, grad[t])
		default:
			nFree++
			sumFree += grad[t]
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	if math.IsInf(ub, 1) {
		return lb
	}
	if math.IsInf(lb, -1) {
		return ub
	}
	return (ub + lb) / 2
}

// DecisionFunction returns Σ α_i K(x_i, x) - ρ for each row of X.
func (s *OneClassSVM) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("OneClassSVM", "DecisionFunction")
	}
	r, c := X.Dims()
	if c != s.nFeatures {
		return nil, errors.NewDimensionError("OneClassSVM.DecisionFunction", s.nFeatures, c, 1)
	}
	k := &kernel{gamma: s.fittedGamma}
	nsv, _ := s.support.Dims()
	out := make([]float64, r)
	x := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x[j] = X.At(i, j)
		}
		var sum float64
		for v := 0; v < nsv; v++ {
			sum += s.dualCoef[v] * k.eval(s.support.RawRowView(v), x)
		}
		out[i] = sum - s.rho
	}
	return out, nil
}

// Predict labels rows +1 (inlier) or -1 (outlier).
func (s *OneClassSVM) Predict(X mat.Matrix) ([]int, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return s.label(dec), nil
}

func (s *OneClassSVM) label(dec []float64) []int {
	out := make([]int, len(dec))
	for i, d := range dec {
		if d < -s.tol {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// TrainingLabels returns the labels of the rows Fit was called with, taken
// from the solver's final gradient.
func (s *OneClassSVM) TrainingLabels() ([]int, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("OneClassSVM", "TrainingLabels")
	}
	return s.label(s.trainDecision), nil
}

// TrainingDecision returns the decision values of the training rows.
func (s *OneClassSVM) TrainingDecision() []float64 {
	return append([]float64(nil), s.trainDecision...)
}

// Rho returns the fitted offset.
func (s *OneClassSVM) Rho() float64 { return s.rho }

// NumSupport returns the number of support vectors.
func (s *OneClassSVM) NumSupport() int { return len(s.dualCoef) }

// NumIter returns the SMO iterations used by the last Fit.
func (s *OneClassSVM) NumIter() int { return s.nIter }

// Gamma returns the RBF coefficient used by the last Fit.
func (s *OneClassSVM) Gamma() float64 { return s.fittedGamma }

// GetParams returns the hyperparameters.
func (s *OneClassSVM) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel":     "rbf",
		"nu":         s.nu,
		"gamma":      s.gamma,
		"gamma_mode": s.gammaMode,
		"tol":        s.tol,
		"max_iter":   s.maxIter,
	}
}
