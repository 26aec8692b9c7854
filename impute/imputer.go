// Package impute fills missing numeric cells with per-column regression models
// trained on the fully observed numeric columns.
//
// Models remember the rows that were missing at fit time. Transform predicts
// exactly those rows; cells that become missing only afterwards are left
// untouched.
package impute

import (
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/core/parallel"
	"github.com/YuminosukeSato/listingprep/linear"
	"github.com/YuminosukeSato/listingprep/metrics"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	lpmetrics "github.com/YuminosukeSato/listingprep/pkg/metrics"
	"github.com/YuminosukeSato/listingprep/sklearn/ensemble"
)

// ColumnModel is the fitted state for one imputed column.
type ColumnModel struct {
	Column      string
	Predictors  []string
	MissingRows []int
	Estimator   model.Regressor
	Training    metrics.Report
}

// RegressionImputer trains one regressor per numeric column with missing values.
type RegressionImputer struct {
	state *model.StateManager

	cfg       config.ImputerConfig
	seed      uint64
	workers   int
	factory   model.RegressorFactory
	logger    log.Logger
	collector *lpmetrics.Collector

	predictors []string
	models     []*ColumnModel
	skipped    []string
}

// Option configures a RegressionImputer.
type Option func(*RegressionImputer)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *RegressionImputer) { r.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *lpmetrics.Collector) Option {
	return func(r *RegressionImputer) { r.collector = c }
}

// WithWorkers bounds the number of columns fitted concurrently.
func WithWorkers(n int) Option {
	return func(r *RegressionImputer) { r.workers = n }
}

// WithSeed seeds the forest estimator.
func WithSeed(seed uint64) Option {
	return func(r *RegressionImputer) { r.seed = seed }
}

// WithFactory replaces the configured estimator.
func WithFactory(f model.RegressorFactory) Option {
	return func(r *RegressionImputer) { r.factory = f }
}

// NewRegressionImputer creates an imputer for the configured estimator kind.
func NewRegressionImputer(cfg config.ImputerConfig, opts ...Option) *RegressionImputer {
	r := &RegressionImputer{
		state:  model.NewStateManager(),
		cfg:    cfg,
		logger: log.GetLoggerWithName("impute"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = r.defaultFactory()
	}
	return r
}

func (r *RegressionImputer) defaultFactory() model.RegressorFactory {
	if r.cfg.Estimator == config.EstimatorForest {
		fc := r.cfg.Forest
		return func(column string) model.Regressor {
			return ensemble.NewRandomForestRegressor(
				ensemble.WithNEstimators(fc.NEstimators),
				ensemble.WithMaxDepth(fc.MaxDepth),
				ensemble.WithMinSamplesLeaf(fc.MinSamplesLeaf),
				ensemble.WithMaxFeatures(fc.MaxFeatures),
				ensemble.WithRandomState(r.seed^xxhash.Sum64String(column)),
				ensemble.WithWorkers(1),
			)
		}
	}
	return func(string) model.Regressor {
		return linear.NewLinearRegression(linear.WithWorkers(1))
	}
}

// Fit trains models for every column in numeric that has missing values,
// using the numeric columns without missing values as predictors.
func (r *RegressionImputer) Fit(df *frame.Frame, numeric []string) error {
	r.state.Reset()
	r.models, r.skipped, r.predictors = nil, nil, nil

	var targets []*frame.Column
	for _, name := range numeric {
		col, ok := df.Column(name)
		if !ok {
			return errors.NewInputShapeError("fit", nil, nil, []string{name})
		}
		if !col.IsNumeric() {
			return errors.NewValueError("RegressionImputer.Fit", "column "+name+" is not numeric")
		}
		if col.MissingCount() == 0 {
			r.predictors = append(r.predictors, name)
		} else {
			targets = append(targets, col)
		}
	}

	if len(targets) > 0 && len(r.predictors) == 0 {
		return errors.Wrapf(errors.ErrNoPredictors, "cannot impute %d numeric columns", len(targets))
	}

	fitted := make([]*ColumnModel, len(targets))
	err := parallel.ForEach(len(targets), r.workers, func(i int) error {
		m, err := r.fitColumn(df, targets[i])
		fitted[i] = m
		return err
	})
	if err != nil {
		return err
	}

	for i, m := range fitted {
		if m == nil {
			r.skipped = append(r.skipped, targets[i].Name())
			continue
		}
		r.models = append(r.models, m)
	}

	r.state.SetColumns(numeric)
	r.state.SetDimensions(len(r.predictors), df.NumRows())
	r.state.SetFitted()
	return nil
}

func (r *RegressionImputer) fitColumn(df *frame.Frame, col *frame.Column) (*ColumnModel, error) {
	start := time.Now()
	vals := col.Floats()
	var observed, missing []int
	for i, v := range vals {
		if math.IsNaN(v) {
			missing = append(missing, i)
		} else {
			observed = append(observed, i)
		}
	}
	if len(observed) == 0 {
		errors.Warn(errors.NewDataConversionWarning(col.Name(), "float", "float",
			"no observed values to train on; column left unimputed"))
		return nil, nil
	}

	X, err := df.Matrix(r.predictors, observed)
	if err != nil {
		return nil, err
	}
	yData := make([]float64, len(observed))
	for i, row := range observed {
		yData[i] = vals[row]
	}
	y := mat.NewVecDense(len(yData), yData)

	est := r.factory(col.Name())
	if err := est.Fit(X, y); err != nil {
		return nil, errors.NewModelError("RegressionImputer.Fit", col.Name(), err)
	}

	m := &ColumnModel{
		Column:      col.Name(),
		Predictors:  r.predictors,
		MissingRows: missing,
		Estimator:   est,
	}
	if pred, err := est.Predict(X); err == nil {
		if p, err := metrics.ColumnVector(pred); err == nil {
			m.Training, _ = metrics.Evaluate(yData, p)
		}
	}

	fields := []any{
		log.ColumnKey, col.Name(),
		log.SamplesKey, len(observed),
		log.MissingKey, len(missing),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if m.Training.HasR2 {
		fields = append(fields, log.R2ScoreKey, m.Training.R2)
	}
	if pg, ok := est.(model.ParameterGetter); ok {
		fields = append(fields, "params", pg.GetParams())
	}
	r.logger.Debug("imputation model trained", fields...)
	return m, nil
}

// Transform returns a frame whose imputed columns have the fit-time missing
// rows replaced by model predictions. df is not modified.
func (r *RegressionImputer) Transform(df *frame.Frame) (*frame.Frame, error) {
	if err := r.state.RequireFitted("RegressionImputer", "Transform"); err != nil {
		return nil, err
	}

	required := append([]string(nil), r.predictors...)
	for _, m := range r.models {
		required = append(required, m.Column)
	}
	if missing := df.Missing(required); len(missing) > 0 {
		return nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}

	out := df.Drop()
	for _, m := range r.models {
		if len(m.MissingRows) == 0 {
			continue
		}
		X, err := df.Matrix(m.Predictors, m.MissingRows)
		if err != nil {
			return nil, errors.Wrapf(err, "imputing %s", m.Column)
		}
		pred, err := m.Estimator.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "imputing %s", m.Column)
		}

		src, _ := df.Column(m.Column)
		filled := src.Clone()
		vals := filled.Floats()
		for i, row := range m.MissingRows {
			vals[row] = pred.At(i, 0)
		}
		if err := out.Set(filled); err != nil {
			return nil, err
		}
		r.collector.AddImputed(m.Column, len(m.MissingRows))
	}
	return out, nil
}

// FitTransform fits on df and imputes it.
func (r *RegressionImputer) FitTransform(df *frame.Frame, numeric []string) (*frame.Frame, error) {
	if err := r.Fit(df, numeric); err != nil {
		return nil, err
	}
	return r.Transform(df)
}

// Models returns the fitted per-column models in input column order.
func (r *RegressionImputer) Models() []*ColumnModel {
	return append([]*ColumnModel(nil), r.models...)
}

// Predictors returns the fully observed columns used as model inputs.
func (r *RegressionImputer) Predictors() []string {
	return append([]string(nil), r.predictors...)
}

// Skipped returns columns that had no observed value at fit time.
func (r *RegressionImputer) Skipped() []string {
	return append([]string(nil), r.skipped...)
}

// IsFitted reports whether Fit has completed.
func (r *RegressionImputer) IsFitted() bool { return r.state.IsFitted() }
