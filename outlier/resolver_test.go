package outlier

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/metrics"
)

func spikeFrame() *frame.Frame {
	return frame.MustNew(frame.NewFloatColumn("lp-n", []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1000}))
}

func TestDetectorSpike(t *testing.T) {
	mask, err := NewDetector(config.Default().Outlier).Detect([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1000})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	for i, m := range mask {
		if m != (i == 9) {
			t.Errorf("mask[%d] = %v, want %v", i, m, i == 9)
		}
	}
}

func TestDetectorSkipsMissing(t *testing.T) {
	nan := math.NaN()
	mask, err := NewDetector(config.Default().Outlier).Detect([]float64{1, nan, 1, 1, 1, 1, 1, 1, 1, 1000})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if mask[1] {
		t.Error("missing entry flagged as outlier")
	}
	if !mask[9] {
		t.Error("spike not flagged")
	}

	mask, err = NewDetector(config.Default().Outlier).Detect([]float64{nan, 3, nan})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	for i, m := range mask {
		if m {
			t.Errorf("mask[%d] set for a column with one finite value", i)
		}
	}
}

func TestDetectorScaling(t *testing.T) {
	cfg := config.Default().Outlier
	cfg.Scaling = "bogus"
	if _, err := NewDetector(cfg).Detect([]float64{1, 2, 3}); err == nil {
		t.Error("Detect() with unknown scaling: expected error")
	}

	cfg.Scaling = "standard"
	mask, err := NewDetector(cfg).Detect([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1000})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(mask) != 10 {
		t.Errorf("len(mask) = %d, want 10", len(mask))
	}
}

// pricedColumn draws n list prices around 500k with a single spike at row spike.
func pricedColumn(n, spike int) []float64 {
	rng := rand.New(rand.NewPCG(7, 11))
	values := make([]float64, n)
	for i := range values {
		values[i] = 5e5 + 1e5*rng.NormFloat64()
	}
	values[spike] = 1e8
	return values
}

func TestDetectorRealisticScale(t *testing.T) {
	values := pricedColumn(200, 7)
	mask, err := NewDetector(config.Default().Outlier).Detect(values)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !mask[7] {
		t.Error("price spike of 1e8 not flagged with default settings")
	}

	df := frame.MustNew(frame.NewFloatColumn("lp-n", values))
	r := NewResolver(config.Default().Outlier, WithSeed(3))
	out, err := r.FitTransform(df, []string{"lp-n"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	resolved, _ := out.Column("lp-n")
	got := resolved.Floats()[7]
	if got == 1e8 || math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("lp-n[7] = %v, want a finite replacement", got)
	}
	flagged, _ := r.Mask("lp-n")
	for i, f := range flagged {
		if !f && math.Float64bits(resolved.Floats()[i]) != math.Float64bits(values[i]) {
			t.Errorf("inlier lp-n[%d] changed from %v to %v", i, values[i], resolved.Floats()[i])
		}
	}
}

func TestResolverSpikeScenario(t *testing.T) {
	df := spikeFrame()
	r := NewResolver(config.Default().Outlier, WithSeed(1))
	out, err := r.FitTransform(df, []string{"lp-n"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	mask, ok := r.Mask("lp-n")
	if !ok || !mask[9] {
		t.Fatalf("Mask() = %v, %v; want row 9 flagged", mask, ok)
	}

	in, _ := df.Column("lp-n")
	res, _ := out.Column("lp-n")
	for i := 0; i < 9; i++ {
		if math.Float64bits(res.Floats()[i]) != math.Float64bits(in.Floats()[i]) {
			t.Errorf("inlier %d changed: %v", i, res.Floats()[i])
		}
	}
	got := res.Floats()[9]
	if got == 1000 || math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("replacement = %v, want a finite draw other than 1000", got)
	}
	if in.Floats()[9] != 1000 {
		t.Error("Transform modified its input")
	}

	fits := r.LastFits()
	fit, ok := fits["lp-n"]
	if !ok {
		t.Fatal("LastFits() has no entry for lp-n")
	}
	if fit.Replaced != 1 || fit.Fallback {
		t.Errorf("ColumnFit = %+v, want one sampled replacement", fit)
	}

	other := NewResolver(config.Default().Outlier, WithSeed(2))
	out2, err := other.FitTransform(df, []string{"lp-n"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	res2, _ := out2.Column("lp-n")
	if res2.Floats()[9] == got {
		t.Errorf("different seeds drew the same replacement %v", got)
	}
}

func TestResolverRepeatedTransformsDiffer(t *testing.T) {
	df := spikeFrame()
	cfg := config.Default().Outlier
	cfg.CacheFits = true
	r := NewResolver(cfg, WithSeed(3))
	if err := r.Fit(df, []string{"lp-n"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	a, err := r.Transform(df)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	b, err := r.Transform(df)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	ca, _ := a.Column("lp-n")
	cb, _ := b.Column("lp-n")
	if ca.Floats()[9] == cb.Floats()[9] {
		t.Errorf("two transforms drew the same value %v", ca.Floats()[9])
	}
	if !r.LastFits()["lp-n"].Cached {
		t.Error("second transform did not reuse the cached fit")
	}
}

func TestResolverMedianFallback(t *testing.T) {
	c := metrics.NewCollector("listingprep", nil)
	r := NewResolver(config.Default().Outlier, WithSeed(1), WithCollector(c))
	if err := r.Fit(spikeFrame(), []string{"lp-n"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	constant := frame.MustNew(frame.NewFloatColumn("lp-n", []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}))
	out, err := r.Transform(constant)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	col, _ := out.Column("lp-n")
	if col.Floats()[9] != 5 {
		t.Errorf("fallback replacement = %v, want median 5", col.Floats()[9])
	}
	fit := r.LastFits()["lp-n"]
	if !fit.Fallback || fit.Family() != "median" {
		t.Errorf("ColumnFit = %+v, want median fallback", fit)
	}
	if len(fit.Failures) != 5 {
		t.Errorf("Failures = %d, want 5", len(fit.Failures))
	}

	n, err := testutil.GatherAndCount(c.Gatherer(), "listingprep_distribution_fallbacks_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("fallback series = %d, want 1", n)
	}
}

func TestResolverColumnWithoutOutliers(t *testing.T) {
	df := frame.MustNew(frame.NewFloatColumn("x", []float64{2, 2, 2, 2}))
	r := NewResolver(config.Default().Outlier)
	out, err := r.FitTransform(df, []string{"x"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	in, _ := df.Column("x")
	res, _ := out.Column("x")
	if res != in {
		t.Error("column without outliers should pass through unchanged")
	}
	if _, ok := r.LastFits()["x"]; ok {
		t.Error("LastFits() should omit columns without outliers")
	}
}

func TestResolverErrors(t *testing.T) {
	r := NewResolver(config.Default().Outlier)

	var nf *errors.NotFittedError
	if _, err := r.Transform(spikeFrame()); !errors.As(err, &nf) {
		t.Errorf("Transform() before Fit error = %v, want NotFittedError", err)
	}

	var shape *errors.InputShapeError
	if err := r.Fit(spikeFrame(), []string{"nope"}); !errors.As(err, &shape) {
		t.Errorf("Fit() unknown column error = %v, want InputShapeError", err)
	}

	if err := r.Fit(spikeFrame(), []string{"lp-n"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	var dim *errors.DimensionError
	short := frame.MustNew(frame.NewFloatColumn("lp-n", []float64{1, 2}))
	if _, err := r.Transform(short); !errors.As(err, &dim) {
		t.Errorf("Transform() with fewer rows error = %v, want DimensionError", err)
	}
	other := frame.MustNew(frame.NewFloatColumn("sp-n", []float64{1}))
	if _, err := r.Transform(other); !errors.As(err, &shape) {
		t.Errorf("Transform() missing column error = %v, want InputShapeError", err)
	}
}
