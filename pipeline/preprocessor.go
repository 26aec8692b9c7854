// Package pipeline runs the preprocessing stages in order and reassembles
// their outputs into one numeric, alphabetically ordered table.
//
//	p, err := pipeline.New(config.Default())
//	if err != nil {
//		return err
//	}
//	out, err := p.FitTransform(listings)
//
// Stage order is fixed: classify, impute, resolve outliers, normalize dates,
// encode, fill other text, reassemble. Fit must be externally serialized;
// Transform on a fitted Preprocessor may be called concurrently.
package pipeline

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/listingprep/classify"
	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/dates"
	"github.com/YuminosukeSato/listingprep/encode"
	"github.com/YuminosukeSato/listingprep/impute"
	"github.com/YuminosukeSato/listingprep/outlier"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	"github.com/YuminosukeSato/listingprep/pkg/metrics"
	"github.com/YuminosukeSato/listingprep/report"
)

// MetricsNamespace prefixes every series of the pipeline collector.
const MetricsNamespace = "listingprep"

// Stage names used in logs and metrics.
const (
	StageClassify    = "classify"
	StageImpute      = "impute"
	StageOutlier     = "outlier"
	StageDates       = "dates"
	StageEncode      = "encode"
	StageOther       = "other"
	StageReassemble  = "reassemble"
	StageExportDebug = "report"
)

// Preprocessor owns the fitted state of every stage for one dataset schema.
type Preprocessor struct {
	state *model.StateManager
	id    uuid.UUID

	cfg       *config.Config
	logger    log.Logger
	collector *metrics.Collector
	reg       prometheus.Registerer

	partition *classify.Partition
	imputer   *impute.RegressionImputer
	resolver  *outlier.Resolver
	encoder   *encode.OneHotEncoder
	modes     *encode.ModeImputer
	output    []string
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithLogger sets the base logger of every stage.
func WithLogger(l log.Logger) Option {
	return func(p *Preprocessor) { p.logger = l }
}

// WithRegisterer registers the pipeline metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Preprocessor) { p.reg = reg }
}

// WithCollector shares an existing collector.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Preprocessor) { p.collector = c }
}

// New validates cfg and creates an unfitted Preprocessor. A nil cfg selects
// config.Default().
func New(cfg *config.Config, opts ...Option) (*Preprocessor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Preprocessor{
		state:  model.NewStateManager(),
		id:     uuid.New(),
		cfg:    cfg,
		logger: log.GetLoggerWithName("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.collector == nil {
		p.collector = metrics.NewCollector(MetricsNamespace, p.reg)
	}
	p.logger = p.logger.With(log.EstimatorIDKey, p.id.String(), log.ModelNameKey, "Preprocessor")
	return p, nil
}

func (p *Preprocessor) stageLogger(stage string) log.Logger {
	return p.logger.With(log.StageKey, stage)
}

// Fit classifies the columns of df and fits every stage on it.
func (p *Preprocessor) Fit(df *frame.Frame) error {
	p.state.Reset()
	if df == nil || df.NumRows() == 0 {
		return errors.ErrEmptyData
	}
	start := time.Now()
	p.logger.Debug("fit started", log.OperationKey, log.OperationFit,
		log.SamplesKey, df.NumRows(), log.FeaturesKey, df.NumCols())

	stageStart := time.Now()
	part, err := classify.New(p.cfg.Classifier,
		classify.WithLogger(p.stageLogger(StageClassify)),
		classify.WithCollector(p.collector),
	).Classify(df)
	if err != nil {
		return err
	}
	p.collector.ObserveStage(StageClassify, stageStart)

	stageStart = time.Now()
	imputer := impute.NewRegressionImputer(p.cfg.Imputer,
		impute.WithLogger(p.stageLogger(StageImpute)),
		impute.WithCollector(p.collector),
		impute.WithSeed(p.cfg.Seed),
		impute.WithWorkers(p.cfg.Workers),
	)
	if err := imputer.Fit(df, part.Numeric); err != nil {
		return errors.Wrap(err, "fitting regression imputer")
	}
	imputed, err := imputer.Transform(df)
	if err != nil {
		return errors.Wrap(err, "imputing training data")
	}
	p.collector.ObserveStage(StageImpute, stageStart)

	stageStart = time.Now()
	resolver := outlier.NewResolver(p.cfg.Outlier,
		outlier.WithLogger(p.stageLogger(StageOutlier)),
		outlier.WithCollector(p.collector),
		outlier.WithSeed(p.cfg.Seed),
		outlier.WithWorkers(p.cfg.Workers),
	)
	if err := resolver.Fit(imputed, part.Numeric); err != nil {
		return errors.Wrap(err, "fitting outlier detector")
	}
	p.collector.ObserveStage(StageOutlier, stageStart)

	stageStart = time.Now()
	encoder := encode.NewOneHotEncoder()
	if err := encoder.Fit(df, part.Encode); err != nil {
		return errors.Wrap(err, "fitting one-hot encoder")
	}
	modes := encode.NewModeImputer()
	if err := modes.Fit(df, part.Other); err != nil {
		return errors.Wrap(err, "fitting mode imputer")
	}
	p.collector.ObserveStage(StageEncode, stageStart)

	p.partition, p.imputer, p.resolver, p.encoder, p.modes = part, imputer, resolver, encoder, modes
	p.output = outputColumns(part, encoder.FeatureSets())

	p.state.SetColumns(part.Columns())
	p.state.SetDimensions(df.NumCols(), df.NumRows())
	p.state.SetFitted()
	p.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, df.NumRows(),
		log.FeaturesKey, len(p.output),
		"dropped", len(part.Dropped),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func outputColumns(part *classify.Partition, sets []encode.EncodedFeatureSet) []string {
	var out []string
	out = append(out, part.Numeric...)
	out = append(out, part.DateSpecial...)
	out = append(out, part.CommonDates...)
	for _, s := range sets {
		out = append(out, s.Columns()...)
	}
	out = append(out, part.Other...)
	sort.Strings(out)
	return out
}

// Transform runs every fitted stage on df. df must contain every column that
// survived classification; columns dropped at Fit are ignored. Rows are never
// dropped or reordered.
func (p *Preprocessor) Transform(df *frame.Frame) (*frame.Frame, error) {
	if err := p.state.RequireFitted("Preprocessor", "Transform"); err != nil {
		return nil, err
	}
	surviving := p.state.Columns()
	if missing := df.Missing(surviving); len(missing) > 0 {
		return nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}
	start := time.Now()
	part := p.partition

	work, err := df.Select(surviving...)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	imputed, err := p.imputer.Transform(work)
	if err != nil {
		return nil, errors.Wrap(err, "imputing")
	}
	p.collector.ObserveStage(StageImpute, stageStart)

	stageStart = time.Now()
	resolved, err := p.resolver.Transform(imputed)
	if err != nil {
		return nil, errors.Wrap(err, "resolving outliers")
	}
	p.collector.ObserveStage(StageOutlier, stageStart)

	stageStart = time.Now()
	withParts, err := dates.InterpolateParts(resolved, part.DateSpecial)
	if err != nil {
		return nil, err
	}
	withDates, err := dates.FillProperDates(withParts, part.CommonDates)
	if err != nil {
		return nil, err
	}
	p.collector.ObserveStage(StageDates, stageStart)

	stageStart = time.Now()
	encoded, sets, err := p.encoder.Transform(withDates)
	if err != nil {
		return nil, errors.Wrap(err, "encoding")
	}
	filled, err := p.modes.Transform(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "filling text columns")
	}
	p.collector.ObserveStage(StageEncode, stageStart)

	stageStart = time.Now()
	ctx, err := assemblyContext(filled, part, sets)
	if err != nil {
		return nil, err
	}
	out, err := Reassemble(ctx)
	if err != nil {
		return nil, err
	}
	p.collector.ObserveStage(StageReassemble, stageStart)

	p.exportDebug(out, imputed)
	p.logger.Info("transform completed",
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, out.NumRows(),
		log.FeaturesKey, out.NumCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func assemblyContext(f *frame.Frame, part *classify.Partition, sets []encode.EncodedFeatureSet) (AssemblyContext, error) {
	ctx := AssemblyContext{Rows: f.NumRows()}
	var err error
	if ctx.Numeric, err = f.Select(part.Numeric...); err != nil {
		return ctx, err
	}
	if ctx.DateSpecial, err = f.Select(part.DateSpecial...); err != nil {
		return ctx, err
	}
	if ctx.CommonDates, err = f.Select(part.CommonDates...); err != nil {
		return ctx, err
	}
	if ctx.Others, err = f.Select(part.Other...); err != nil {
		return ctx, err
	}
	for _, s := range sets {
		ctx.OneHotNames = append(ctx.OneHotNames, s.Columns()...)
	}
	ctx.OneHot = f
	return ctx, nil
}

// exportDebug writes the optional artifacts. Failures are logged, never returned.
func (p *Preprocessor) exportDebug(out, imputed *frame.Frame) {
	rc := p.cfg.Report
	logger := p.stageLogger(StageExportDebug)
	if rc.SampleXLSX != "" {
		if err := report.WriteSampleXLSX(out, rc.SampleXLSX, rc.SampleRows); err != nil {
			logger.Warn("sample export failed", "path", rc.SampleXLSX, "error", err)
		}
	}
	if rc.QQPlotDir == "" {
		return
	}
	for name, fit := range p.resolver.LastFits() {
		if fit.Fallback {
			continue
		}
		col, ok := imputed.Column(name)
		if !ok {
			continue
		}
		path := filepath.Join(rc.QQPlotDir, name+".png")
		if err := report.PlotQQ(name, col.Floats(), fit.Fit, p.cfg.Outlier.QuantilePoints, path); err != nil {
			logger.Warn("Q-Q plot failed", log.ColumnKey, name, "error", err)
		}
	}
}

// FitTransform fits on df and transforms it.
func (p *Preprocessor) FitTransform(df *frame.Frame) (*frame.Frame, error) {
	if err := p.Fit(df); err != nil {
		return nil, err
	}
	return p.Transform(df)
}

// Partition returns the fitted column partition, nil before Fit.
func (p *Preprocessor) Partition() *classify.Partition { return p.partition }

// OutputColumns returns the sorted column names Transform produces.
func (p *Preprocessor) OutputColumns() []string { return append([]string(nil), p.output...) }

// Imputer returns the fitted regression imputer.
func (p *Preprocessor) Imputer() *impute.RegressionImputer { return p.imputer }

// Resolver returns the fitted outlier resolver.
func (p *Preprocessor) Resolver() *outlier.Resolver { return p.resolver }

// Encoder returns the fitted one-hot encoder.
func (p *Preprocessor) Encoder() *encode.OneHotEncoder { return p.encoder }

// Collector returns the metrics collector.
func (p *Preprocessor) Collector() *metrics.Collector { return p.collector }

// ID returns the instance identifier attached to every log line.
func (p *Preprocessor) ID() uuid.UUID { return p.id }

// IsFitted reports whether Fit has completed.
func (p *Preprocessor) IsFitted() bool { return p.state.IsFitted() }
