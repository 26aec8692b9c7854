package impute

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

var nan = math.NaN()

func linearFrame() *frame.Frame {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3*v + 2
	}
	y[2], y[5] = nan, nan
	return frame.MustNew(
		frame.NewFloatColumn("x", x),
		frame.NewFloatColumn("y", y),
	)
}

func TestRegressionImputerLinear(t *testing.T) {
	df := linearFrame()
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})

	out, err := imp.FitTransform(df, []string{"x", "y"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	if got := imp.Predictors(); len(got) != 1 || got[0] != "x" {
		t.Errorf("Predictors() = %v, want [x]", got)
	}
	models := imp.Models()
	if len(models) != 1 || models[0].Column != "y" {
		t.Fatalf("Models() = %v, want one model for y", models)
	}
	if got := models[0].MissingRows; len(got) != 2 || got[0] != 2 || got[1] != 5 {
		t.Errorf("MissingRows = %v, want [2 5]", got)
	}

	col, _ := out.Column("y")
	want := []float64{5, 8, 11, 14, 17, 20, 23, 26}
	for i, v := range col.Floats() {
		if math.Abs(v-want[i]) > 1e-9 {
			t.Errorf("y[%d] = %v, want %v", i, v, want[i])
		}
	}

	// the input frame keeps its gaps
	orig, _ := df.Column("y")
	if !math.IsNaN(orig.Floats()[2]) {
		t.Error("Transform modified its input")
	}
}

func TestRegressionImputerObservedCellsUnchanged(t *testing.T) {
	df := frame.MustNew(
		frame.NewFloatColumn("a", []float64{1, 2, 3, 4, 5, 6}),
		frame.NewFloatColumn("b", []float64{0.1, nan, 7.3, 2.2, nan, 9.9}),
	)
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})
	out, err := imp.FitTransform(df, []string{"a", "b"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	in, _ := df.Column("b")
	res, _ := out.Column("b")
	for i, v := range in.Floats() {
		got := res.Floats()[i]
		if math.IsNaN(v) {
			if math.IsNaN(got) {
				t.Errorf("b[%d] still missing", i)
			}
			continue
		}
		if math.Float64bits(got) != math.Float64bits(v) {
			t.Errorf("b[%d] = %v, want %v", i, got, v)
		}
	}
}

func TestRegressionImputerForest(t *testing.T) {
	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 10 * float64(i%4)
	}
	y[3], y[17] = nan, nan
	df := frame.MustNew(frame.NewFloatColumn("x", x), frame.NewFloatColumn("y", y))

	cfg := config.ImputerConfig{
		Estimator: config.EstimatorForest,
		Forest:    config.ForestConfig{NEstimators: 10, MinSamplesLeaf: 1},
	}
	imp := NewRegressionImputer(cfg, WithSeed(7))
	out, err := imp.FitTransform(df, []string{"x", "y"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	col, _ := out.Column("y")
	for _, row := range []int{3, 17} {
		v := col.Floats()[row]
		if math.IsNaN(v) || v < 0 || v > 30 {
			t.Errorf("y[%d] = %v, want value within training range", row, v)
		}
	}

	again := NewRegressionImputer(cfg, WithSeed(7))
	out2, err := again.FitTransform(df, []string{"x", "y"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	col2, _ := out2.Column("y")
	if col.Floats()[3] != col2.Floats()[3] {
		t.Errorf("forest imputation not deterministic: %v vs %v", col.Floats()[3], col2.Floats()[3])
	}
}

func TestRegressionImputerNoPredictors(t *testing.T) {
	df := frame.MustNew(
		frame.NewFloatColumn("a", []float64{1, nan, 3}),
		frame.NewFloatColumn("b", []float64{nan, 2, 3}),
	)
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})
	err := imp.Fit(df, []string{"a", "b"})
	if !errors.Is(err, errors.ErrNoPredictors) {
		t.Fatalf("Fit() error = %v, want ErrNoPredictors", err)
	}
}

func TestRegressionImputerNothingToImpute(t *testing.T) {
	df := frame.MustNew(frame.NewFloatColumn("a", []float64{1, 2, 3}))
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})
	out, err := imp.FitTransform(df, []string{"a"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	if len(imp.Models()) != 0 {
		t.Errorf("Models() = %d, want 0", len(imp.Models()))
	}
	if out.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", out.NumRows())
	}
}

func TestRegressionImputerAllMissingColumnSkipped(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	df := frame.MustNew(
		frame.NewFloatColumn("a", []float64{1, 2, 3}),
		frame.NewFloatColumn("b", []float64{nan, nan, nan}),
	)
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})
	out, err := imp.FitTransform(df, []string{"a", "b"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	if got := imp.Skipped(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Skipped() = %v, want [b]", got)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %d, want 1", len(warnings))
	}
	col, _ := out.Column("b")
	if col.MissingCount() != 3 {
		t.Errorf("MissingCount() = %d, want 3", col.MissingCount())
	}
}

func TestRegressionImputerTransformErrors(t *testing.T) {
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})

	var nf *errors.NotFittedError
	if _, err := imp.Transform(linearFrame()); !errors.As(err, &nf) {
		t.Fatalf("Transform() before Fit error = %v, want NotFittedError", err)
	}

	if err := imp.Fit(linearFrame(), []string{"x", "y"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	var shape *errors.InputShapeError
	short := frame.MustNew(frame.NewFloatColumn("y", []float64{1}))
	if _, err := imp.Transform(short); !errors.As(err, &shape) {
		t.Errorf("Transform() without predictor error = %v, want InputShapeError", err)
	}

	var dim *errors.DimensionError
	fewer := frame.MustNew(
		frame.NewFloatColumn("x", []float64{1, 2, 3}),
		frame.NewFloatColumn("y", []float64{1, 2, nan}),
	)
	if _, err := imp.Transform(fewer); !errors.As(err, &dim) {
		t.Errorf("Transform() with fewer rows error = %v, want DimensionError", err)
	}
}

func TestRegressionImputerFitRejectsNonNumeric(t *testing.T) {
	df := frame.MustNew(
		frame.NewFloatColumn("a", []float64{1, 2}),
		frame.NewStringColumn("s", []string{"x", "y"}, nil),
	)
	imp := NewRegressionImputer(config.ImputerConfig{Estimator: config.EstimatorLinear})
	if err := imp.Fit(df, []string{"a", "s"}); err == nil {
		t.Error("Fit() with string column: expected error")
	}
	if err := imp.Fit(df, []string{"a", "zz"}); err == nil {
		t.Error("Fit() with unknown column: expected error")
	}
}
