// Package outlier replaces novelty outliers in numeric columns with draws from
// the best-fitting parametric distribution of the column.
//
// The outlier mask is learned once by Fit. Every Transform refits the
// candidate distributions on the current column values and draws fresh
// replacements, so two calls on the same input produce different values.
// With CacheFits the fitted distribution is reused for identical column
// contents; the draws still differ between calls.
package outlier

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/core/parallel"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	"github.com/YuminosukeSato/listingprep/pkg/metrics"
	"github.com/YuminosukeSato/listingprep/stats/distfit"
)

// familyMedian labels replacements made by the median fallback.
const familyMedian = "median"

// maxRedraws bounds resampling of non-finite draws before falling back to the median.
const maxRedraws = 16

// ColumnFit records the distribution used for one column in the last Transform.
type ColumnFit struct {
	Column   string
	Fit      distfit.Fit
	Fallback bool
	Median   float64
	Replaced int
	Failures map[distfit.Family]error
	Cached   bool
}

// Family returns the selected family name, or "median" for a fallback.
func (c ColumnFit) Family() string {
	if c.Fallback {
		return familyMedian
	}
	return string(c.Fit.Family)
}

type cacheKey struct {
	column string
	hash   uint64
}

// Resolver detects outliers at fit time and resamples them at transform time.
type Resolver struct {
	state *model.StateManager

	cfg       config.OutlierConfig
	seed      uint64
	workers   int
	logger    log.Logger
	collector *metrics.Collector

	masks map[string][]bool
	calls atomic.Uint64

	mu       sync.Mutex
	lastFits map[string]ColumnFit
	cache    map[cacheKey]distfit.Fit
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(r *Resolver) { r.collector = c }
}

// WithSeed seeds the replacement draws.
func WithSeed(seed uint64) Option {
	return func(r *Resolver) { r.seed = seed }
}

// WithWorkers bounds the number of columns processed concurrently.
func WithWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

// NewResolver creates an unfitted resolver.
func NewResolver(cfg config.OutlierConfig, opts ...Option) *Resolver {
	r := &Resolver{
		state:  model.NewStateManager(),
		cfg:    cfg,
		logger: log.GetLoggerWithName("outlier"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit trains a detector per column and stores its outlier mask.
func (r *Resolver) Fit(df *frame.Frame, numeric []string) error {
	r.state.Reset()
	if missing := df.Missing(numeric); len(missing) > 0 {
		return errors.NewInputShapeError("fit", nil, nil, missing)
	}

	masks := make([][]bool, len(numeric))
	err := parallel.ForEach(len(numeric), r.workers, func(i int) error {
		col, _ := df.Column(numeric[i])
		if !col.IsNumeric() {
			return errors.NewValueError("Resolver.Fit", "column "+col.Name()+" is not numeric")
		}
		mask, err := NewDetector(r.cfg).Detect(col.Floats())
		if err != nil {
			return errors.Wrapf(err, "detecting outliers in %s", col.Name())
		}
		masks[i] = mask
		return nil
	})
	if err != nil {
		return err
	}

	r.masks = make(map[string][]bool, len(numeric))
	for i, name := range numeric {
		r.masks[name] = masks[i]
		r.logger.Debug("outlier mask learned", log.ColumnKey, name, log.OutliersKey, countTrue(masks[i]))
	}
	r.mu.Lock()
	r.lastFits = nil
	r.cache = nil
	r.mu.Unlock()

	r.state.SetColumns(numeric)
	r.state.SetDimensions(len(numeric), df.NumRows())
	r.state.SetFitted()
	return nil
}

// Transform returns a frame where every masked cell of every fitted column is
// replaced by a fresh draw. Unmasked cells keep their exact bits.
func (r *Resolver) Transform(df *frame.Frame) (*frame.Frame, error) {
	if err := r.state.RequireFitted("Resolver", "Transform"); err != nil {
		return nil, err
	}
	columns := r.state.Columns()
	if missing := df.Missing(columns); len(missing) > 0 {
		return nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}
	_, rows := r.state.GetDimensions()
	if len(columns) > 0 && df.NumRows() != rows {
		return nil, errors.NewDimensionError("Resolver.Transform", rows, df.NumRows(), 0)
	}

	call := r.calls.Add(1)
	resolved := make([]*frame.Column, len(columns))
	fits := make([]ColumnFit, len(columns))
	err := parallel.ForEach(len(columns), r.workers, func(i int) error {
		col, _ := df.Column(columns[i])
		out, fit := r.resolveColumn(col, r.masks[columns[i]], call)
		resolved[i], fits[i] = out, fit
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := df.Drop()
	last := make(map[string]ColumnFit, len(columns))
	for i, col := range resolved {
		if col == nil {
			continue
		}
		if err := out.Set(col); err != nil {
			return nil, err
		}
		last[columns[i]] = fits[i]
	}
	r.mu.Lock()
	r.lastFits = last
	r.mu.Unlock()
	return out, nil
}

func (r *Resolver) resolveColumn(col *frame.Column, mask []bool, call uint64) (*frame.Column, ColumnFit) {
	var flagged []int
	for i, m := range mask {
		if m {
			flagged = append(flagged, i)
		}
	}
	if len(flagged) == 0 {
		return nil, ColumnFit{}
	}

	start := time.Now()
	values := col.Floats()
	cf := r.fitColumn(col.Name(), values)

	out := col.Clone()
	vals := out.Floats()
	if cf.Fallback {
		for _, row := range flagged {
			vals[row] = cf.Median
		}
	} else {
		sampler := cf.Fit.Sampler(rand.NewPCG(r.seed^xxhash.Sum64String(col.Name()), call))
		for _, row := range flagged {
			vals[row] = draw(sampler, cf.Median)
		}
	}
	cf.Replaced = len(flagged)

	r.collector.AddOutliers(col.Name(), cf.Family(), len(flagged))
	r.logger.Debug("outliers resampled",
		log.ColumnKey, col.Name(),
		log.FamilyKey, cf.Family(),
		log.SSEKey, cf.Fit.SSE,
		log.OutliersKey, len(flagged),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, cf
}

func draw(s distfit.Sampler, fallback float64) float64 {
	for k := 0; k < maxRedraws; k++ {
		if v := s.Rand(); !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return fallback
}

func (r *Resolver) fitColumn(name string, values []float64) ColumnFit {
	cf := ColumnFit{Column: name, Median: distfit.Median(values)}

	var key cacheKey
	if r.cfg.CacheFits {
		key = cacheKey{column: name, hash: contentHash(values)}
		r.mu.Lock()
		fit, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			cf.Fit, cf.Cached = fit, true
			return cf
		}
	}

	fits, failures := distfit.FitAll(values, r.cfg.FamilyList(), r.cfg.QuantilePoints)
	if len(failures) > 0 {
		cf.Failures = failures
	}
	best, ok := distfit.Best(fits)
	if !ok {
		cf.Fallback = true
		r.collector.IncFallback(name)
		r.logger.Warn("distribution fitting failed, replacing outliers with median",
			log.ColumnKey, name,
			log.ErrorCodeKey, log.ErrorDistributionFit,
			"families", failedFamilies(failures),
		)
		return cf
	}
	cf.Fit = best

	if r.cfg.CacheFits {
		r.mu.Lock()
		if r.cache == nil {
			r.cache = make(map[cacheKey]distfit.Fit)
		}
		r.cache[key] = best
		r.mu.Unlock()
	}
	return cf
}

// contentHash hashes the IEEE-754 bits of values in order.
func contentHash(values []float64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func failedFamilies(failures map[distfit.Family]error) []string {
	out := make([]string, 0, len(failures))
	for f := range failures {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

func countTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// FitTransform fits the masks on df and resolves it.
func (r *Resolver) FitTransform(df *frame.Frame, numeric []string) (*frame.Frame, error) {
	if err := r.Fit(df, numeric); err != nil {
		return nil, err
	}
	return r.Transform(df)
}

// Mask returns a copy of the fitted outlier mask for column.
func (r *Resolver) Mask(column string) ([]bool, bool) {
	m, ok := r.masks[column]
	if !ok {
		return nil, false
	}
	return append([]bool(nil), m...), true
}

// LastFits returns the distributions selected by the most recent Transform,
// keyed by column. Columns without outliers are absent.
func (r *Resolver) LastFits() map[string]ColumnFit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ColumnFit, len(r.lastFits))
	for k, v := range r.lastFits {
		out[k] = v
	}
	return out
}

// IsFitted reports whether Fit has completed.
func (r *Resolver) IsFitted() bool { return r.state.IsFitted() }
