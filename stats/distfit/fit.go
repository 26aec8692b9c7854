package distfit

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

// DefaultQuantilePoints is the number of interior percentiles scored.
const DefaultQuantilePoints = 99

// boundary margin for location-shifted and rescaled families, relative to the range
const shiftFraction = 1e-3

// sample is a finite, sorted copy of the input with cached moments.
type sample struct {
	x        []float64
	mean     float64
	variance float64
}

func newSample(values []float64) (*sample, error) {
	x := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			x = append(x, v)
		}
	}
	if len(x) < 2 {
		return nil, errors.ErrEmptyData
	}
	sort.Float64s(x)
	m, v := stat.PopMeanVariance(x, nil)
	return &sample{x: x, mean: m, variance: v}, nil
}

func (s *sample) min() float64 { return s.x[0] }
func (s *sample) max() float64 { return s.x[len(s.x)-1] }
func (s *sample) span() float64 { return s.max() - s.min() }
func (s *sample) n() float64 { return float64(len(s.x)) }
func (s *sample) degenerate() bool { return s.span() == 0 || s.variance == 0 }

// positiveShift returns the location that makes every value strictly positive.
func (s *sample) positiveShift() float64 {
	if s.min() > 0 {
		return 0
	}
	return s.min() - shiftFraction*s.span()
}

// FitFamily estimates the parameters of one family and scores the fit over
// points percentiles. Degenerate input or a numerical failure yields a
// DistributionFitError.
func FitFamily(family Family, values []float64, points int) (fit Fit, err error) {
	defer errors.Recover(&err, "distfit."+string(family))

	s, err := newSample(values)
	if err != nil {
		return Fit{}, errors.NewDistributionFitError(string(family), "fewer than two finite values")
	}
	if s.degenerate() {
		return Fit{}, errors.NewDistributionFitError(string(family), "zero variance")
	}

	var p Params
	switch family {
	case Normal:
		p, err = fitNormal(s)
	case Exponential:
		p, err = fitExponential(s)
	case LogNormal:
		p, err = fitLogNormal(s)
	case Gamma:
		p, err = fitGamma(s)
	case Beta:
		p, err = fitBeta(s)
	default:
		return Fit{}, errors.NewDistributionFitError(string(family), "unknown family")
	}
	if err != nil {
		return Fit{}, err
	}
	for _, v := range []float64{p.Shape, p.Shape2, p.Loc, p.Scale} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Fit{}, errors.NewDistributionFitError(string(family), "non-finite parameters")
		}
	}

	fit = Fit{Family: family, Params: p, N: len(s.x)}
	fit.SSE = SSE(fit, s.x, points)
	if math.IsNaN(fit.SSE) || math.IsInf(fit.SSE, 0) {
		return Fit{}, errors.NewDistributionFitError(string(family), fmt.Sprintf("score is %v", fit.SSE))
	}
	return fit, nil
}

func fitNormal(s *sample) (Params, error) {
	return Params{Loc: s.mean, Scale: math.Sqrt(s.variance)}, nil
}

// fitExponential is the location-scale MLE: loc = min, scale = mean - min.
func fitExponential(s *sample) (Params, error) {
	scale := s.mean - s.min()
	if scale <= 0 {
		return Params{}, errors.NewDistributionFitError(string(Exponential), "non-positive scale")
	}
	return Params{Loc: s.min(), Scale: scale}, nil
}

func fitLogNormal(s *sample) (Params, error) {
	loc := s.positiveShift()
	logs := make([]float64, len(s.x))
	for i, v := range s.x {
		logs[i] = errors.StabilizeLog(v - loc)
	}
	mu, v := stat.PopMeanVariance(logs, nil)
	if v <= 0 {
		return Params{}, errors.NewDistributionFitError(string(LogNormal), "zero variance of log values")
	}
	return Params{Shape: math.Sqrt(v), Loc: loc, Scale: math.Exp(mu)}, nil
}

// fitGamma maximises the profile likelihood in the shape α with rate α/mean,
// starting from Minka's closed-form approximation.
func fitGamma(s *sample) (Params, error) {
	loc := s.positiveShift()
	var sumLog, sum float64
	for _, v := range s.x {
		sumLog += errors.StabilizeLog(v - loc)
		sum += v - loc
	}
	n := s.n()
	mean := sum / n
	meanLog := sumLog / n
	d := math.Log(mean) - meanLog
	if d <= 0 {
		return Params{}, errors.NewDistributionFitError(string(Gamma), "log-mean gap is not positive")
	}
	k0 := (3 - d + math.Sqrt((d-3)*(d-3)+24*d)) / (12 * d)

	negLL := func(theta []float64) float64 {
		if math.Abs(theta[0]) > 20 {
			return math.MaxFloat64
		}
		k := math.Exp(theta[0])
		lg, _ := math.Lgamma(k)
		// per-sample log-likelihood with the rate profiled out
		ll := k*math.Log(k/mean) - lg + (k-1)*meanLog - k
		return -ll
	}
	res, err := optimize.Minimize(optimize.Problem{Func: negLL}, []float64{math.Log(k0)}, nil, &optimize.NelderMead{})
	k := k0
	if res != nil && !math.IsNaN(res.X[0]) && res.F <= negLL([]float64{math.Log(k0)}) {
		k = math.Exp(res.X[0])
	} else if err != nil {
		return Params{}, errors.NewDistributionFitError(string(Gamma), err.Error())
	}
	return Params{Shape: k, Loc: loc, Scale: mean / k}, nil
}

// fitBeta rescales the sample into (0, 1) with a small margin and maximises
// the likelihood over log a, log b from the method-of-moments estimate.
func fitBeta(s *sample) (Params, error) {
	margin := shiftFraction * s.span()
	loc := s.min() - margin
	scale := s.span() + 2*margin

	y := make([]float64, len(s.x))
	var sumLogY, sumLog1mY float64
	for i, v := range s.x {
		y[i] = (v - loc) / scale
		sumLogY += math.Log(y[i])
		sumLog1mY += math.Log1p(-y[i])
	}
	n := s.n()

	m, v := stat.PopMeanVariance(y, nil)
	a0, b0 := 1.0, 1.0
	if common := m*(1-m)/v - 1; v > 0 && common > 0 {
		a0, b0 = m*common, (1-m)*common
	}

	negLL := func(theta []float64) float64 {
		if math.Abs(theta[0]) > 20 || math.Abs(theta[1]) > 20 {
			return math.MaxFloat64
		}
		a, b := math.Exp(theta[0]), math.Exp(theta[1])
		la, _ := math.Lgamma(a)
		lb, _ := math.Lgamma(b)
		lab, _ := math.Lgamma(a + b)
		ll := (a-1)*sumLogY + (b-1)*sumLog1mY - n*(la+lb-lab)
		return -ll
	}
	x0 := []float64{math.Log(a0), math.Log(b0)}
	res, err := optimize.Minimize(optimize.Problem{Func: negLL}, x0, nil, &optimize.NelderMead{})
	a, b := a0, b0
	if res != nil && !floats.HasNaN(res.X) && res.F <= negLL(x0) {
		a, b = math.Exp(res.X[0]), math.Exp(res.X[1])
	} else if err != nil {
		return Params{}, errors.NewDistributionFitError(string(Beta), err.Error())
	}
	return Params{Shape: a, Shape2: b, Loc: loc, Scale: scale}, nil
}

// Percentile interpolates linearly between closest ranks (numpy's default
// "linear" method) on an ascending sample.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Grid returns the interior probabilities k/(points+1), k = 1..points.
func Grid(points int) []float64 {
	if points <= 0 {
		points = DefaultQuantilePoints
	}
	g := make([]float64, points)
	for k := range g {
		g[k] = float64(k+1) / float64(points+1)
	}
	return g
}

// SSE is the sum of squared differences between the fitted quantiles and the
// empirical percentiles of an ascending sample.
func SSE(fit Fit, sorted []float64, points int) float64 {
	var sse float64
	for _, p := range Grid(points) {
		d := fit.Quantile(p) - Percentile(sorted, p)
		sse += d * d
	}
	return sse
}

// FitAll fits every family. Failed families are reported in the error map and
// omitted from the returned fits.
func FitAll(values []float64, families []Family, points int) ([]Fit, map[Family]error) {
	if len(families) == 0 {
		families = DefaultFamilies
	}
	var fits []Fit
	failed := make(map[Family]error)
	for _, f := range families {
		fit, err := FitFamily(f, values, points)
		if err != nil {
			failed[f] = err
			continue
		}
		fits = append(fits, fit)
	}
	return fits, failed
}

// Best returns the fit with the smallest SSE. Ties keep the earlier family.
func Best(fits []Fit) (Fit, bool) {
	if len(fits) == 0 {
		return Fit{}, false
	}
	best := fits[0]
	for _, f := range fits[1:] {
		if f.SSE < best.SSE {
			best = f
		}
	}
	return best, true
}

// Median returns the median of the finite values, NaN when there are none.
func Median(values []float64) float64 {
	x := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	return Percentile(x, 0.5)
}
