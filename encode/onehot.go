// Package encode turns low-cardinality text columns into indicator columns and
// fills the remaining text columns with their most frequent value.
package encode

import (
	"sort"

	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
)

// UnknownCategory names the indicator set for values outside the fitted
// categories and for rows that stay missing after filling.
const UnknownCategory = "unknown"

// EncodedFeatureSet describes the indicator columns produced for one source column.
type EncodedFeatureSet struct {
	Source     string
	Categories []string
	// Names[i] is the indicator of Categories[i].
	Names      []string
	Unknown    string
}

// Columns returns every indicator name of the set in output order.
func (s EncodedFeatureSet) Columns() []string {
	out := append([]string(nil), s.Names...)
	if !s.hasUnknownCategory() {
		out = append(out, s.Unknown)
	}
	return out
}

func (s EncodedFeatureSet) hasUnknownCategory() bool {
	for _, n := range s.Names {
		if n == s.Unknown {
			return true
		}
	}
	return false
}

// IndicatorName returns the indicator column name of category in column.
func IndicatorName(column, category string) string {
	return column + "_" + category
}

type fittedColumn struct {
	set      EncodedFeatureSet
	index    map[string]int
	fillMode string
	hasMode  bool
}

// OneHotEncoder learns the categories of each column at Fit and expands them
// into 0/1 float indicator columns at Transform.
type OneHotEncoder struct {
	state   *model.StateManager
	logger  log.Logger
	columns []*fittedColumn
}

// NewOneHotEncoder creates an unfitted encoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("encode"),
	}
}

// Fit learns sorted categories from the filled, sanitized values of columns.
func (e *OneHotEncoder) Fit(df *frame.Frame, columns []string) error {
	e.state.Reset()
	if missing := df.Missing(columns); len(missing) > 0 {
		return errors.NewInputShapeError("fit", nil, nil, missing)
	}

	e.columns = make([]*fittedColumn, 0, len(columns))
	for _, name := range columns {
		col, _ := df.Column(name)
		values := filled(col)
		fc := &fittedColumn{index: make(map[string]int)}
		fc.fillMode, fc.hasMode = mode(values, notIntegerLike)

		seen := make(map[string]struct{})
		for _, v := range fc.sanitize(values) {
			if v != nil {
				seen[str(v)] = struct{}{}
			}
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)

		fc.set = EncodedFeatureSet{
			Source:     name,
			Categories: cats,
			Names:      make([]string, len(cats)),
			Unknown:    IndicatorName(name, UnknownCategory),
		}
		for i, c := range cats {
			fc.set.Names[i] = IndicatorName(name, c)
			fc.index[c] = i
		}
		if len(cats) == 0 {
			e.logger.Warn("categorical column has no present value", log.ColumnKey, name)
		}
		e.columns = append(e.columns, fc)
	}

	e.state.SetColumns(columns)
	e.state.SetDimensions(len(columns), df.NumRows())
	e.state.SetFitted()
	return nil
}

// sanitize replaces integer-like entries with the column's non-integer mode.
func (fc *fittedColumn) sanitize(values []any) []any {
	if !fc.hasMode {
		return values
	}
	out := make([]any, len(values))
	for i, v := range values {
		if v != nil && frame.IsIntegerLike(v) {
			out[i] = fc.fillMode
			continue
		}
		out[i] = v
	}
	return out
}

// Transform drops the source columns and appends their indicators. Every row
// has exactly one indicator set per source column.
func (e *OneHotEncoder) Transform(df *frame.Frame) (*frame.Frame, []EncodedFeatureSet, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, nil, err
	}
	sources := e.state.Columns()
	if missing := df.Missing(sources); len(missing) > 0 {
		return nil, nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}

	rows := df.NumRows()
	out := df.Drop(sources...)
	sets := make([]EncodedFeatureSet, 0, len(e.columns))
	for _, fc := range e.columns {
		col, _ := df.Column(fc.set.Source)
		values := fc.sanitize(filled(col))

		indicators := make([][]float64, len(fc.set.Categories))
		for i := range indicators {
			indicators[i] = make([]float64, rows)
		}
		unknownIdx, hasUnknownCategory := fc.index[UnknownCategory]
		unknown := make([]float64, rows)
		unseen := 0
		for r, v := range values {
			if v != nil {
				if k, ok := fc.index[str(v)]; ok {
					indicators[k][r] = 1
					continue
				}
			}
			unseen++
			if hasUnknownCategory {
				indicators[unknownIdx][r] = 1
			} else {
				unknown[r] = 1
			}
		}

		for i, name := range fc.set.Names {
			if err := out.Set(frame.NewFloatColumn(name, indicators[i])); err != nil {
				return nil, nil, err
			}
		}
		if !hasUnknownCategory {
			if err := out.Set(frame.NewFloatColumn(fc.set.Unknown, unknown)); err != nil {
				return nil, nil, err
			}
		}
		if unseen > 0 {
			e.logger.Debug("rows encoded as unknown", log.ColumnKey, fc.set.Source, log.SamplesKey, unseen)
		}
		sets = append(sets, fc.set)
	}
	return out, sets, nil
}

// FitTransform fits on df and encodes it.
func (e *OneHotEncoder) FitTransform(df *frame.Frame, columns []string) (*frame.Frame, []EncodedFeatureSet, error) {
	if err := e.Fit(df, columns); err != nil {
		return nil, nil, err
	}
	return e.Transform(df)
}

// FeatureSets returns the fitted indicator layout without transforming.
func (e *OneHotEncoder) FeatureSets() []EncodedFeatureSet {
	out := make([]EncodedFeatureSet, len(e.columns))
	for i, fc := range e.columns {
		out[i] = fc.set
	}
	return out
}

// IsFitted reports whether Fit has completed.
func (e *OneHotEncoder) IsFitted() bool { return e.state.IsFitted() }
