// Package dates normalizes the two date representations of a listing table:
// numeric date parts (month, day of week, ...) and proper timestamps.
package dates

import (
	"math"
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
)

var logger = log.GetLoggerWithName("dates")

// InterpolateParts fills missing entries of numeric date-part columns by
// linear interpolation over row position. Filled values are rounded to the
// nearest integer; gaps before the first or after the last observation take
// the nearest observed value. Observed entries are kept as they are.
func InterpolateParts(df *frame.Frame, columns []string) (*frame.Frame, error) {
	if missing := df.Missing(columns); len(missing) > 0 {
		return nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}
	out := df.Drop()
	for _, name := range columns {
		col, _ := df.Column(name)
		if !col.IsNumeric() {
			converted, lost := col.ToFloat()
			reason := "date part stored as " + col.Kind().String()
			if lost > 0 {
				reason += "; unparsable entries became missing"
			}
			errors.Warn(errors.NewDataConversionWarning(name, col.Kind().String(), frame.KindFloat.String(), reason))
			if err := out.Set(converted); err != nil {
				return nil, err
			}
			col = converted
		}
		if col.MissingCount() == 0 {
			continue
		}
		filled, err := interpolate(col.Floats())
		if err != nil {
			return nil, errors.Wrapf(err, "interpolating %s", name)
		}
		if filled == nil {
			logger.Warn("date part column has no observed value", log.ColumnKey, name)
			continue
		}
		if err := out.Set(frame.NewFloatColumn(name, filled)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// interpolate returns nil when values has no finite entry.
func interpolate(values []float64) ([]float64, error) {
	var xs, ys []float64
	for i, v := range values {
		if !math.IsNaN(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	out := append([]float64(nil), values...)
	switch len(xs) {
	case 0:
		return nil, nil
	case 1:
		for i, v := range out {
			if math.IsNaN(v) {
				out[i] = math.RoundToEven(ys[0])
			}
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = math.RoundToEven(pl.Predict(float64(i)))
		}
	}
	return out, nil
}

// FillProperDates forward-fills then back-fills missing timestamps. Values
// pass through epoch seconds, so the result is second-precision UTC.
func FillProperDates(df *frame.Frame, columns []string) (*frame.Frame, error) {
	if missing := df.Missing(columns); len(missing) > 0 {
		return nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}
	out := df.Drop()
	for _, name := range columns {
		col, _ := df.Column(name)
		if col.Kind() != frame.KindTime {
			return nil, errors.NewValueError("dates.FillProperDates", "column "+name+" is not a timestamp column")
		}
		epoch := ToEpoch(col)
		if !fillEdges(epoch) {
			logger.Warn("date column has no observed value", log.ColumnKey, name)
			continue
		}
		if err := out.Set(FromEpoch(name, epoch)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ToEpoch converts a timestamp column to epoch seconds with NaN for missing rows.
func ToEpoch(col *frame.Column) []float64 {
	times, valid := col.Times()
	out := make([]float64, len(times))
	for i, t := range times {
		if !valid[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(t.Unix())
	}
	return out
}

// FromEpoch builds a UTC timestamp column from epoch seconds. NaN becomes missing.
func FromEpoch(name string, epoch []float64) *frame.Column {
	times := make([]time.Time, len(epoch))
	valid := make([]bool, len(epoch))
	for i, s := range epoch {
		if math.IsNaN(s) {
			continue
		}
		times[i] = time.Unix(int64(s), 0).UTC()
		valid[i] = true
	}
	return frame.NewTimeColumn(name, times, valid)
}

// fillEdges forward-fills then back-fills NaN in place. It reports false when
// every value is NaN.
func fillEdges(values []float64) bool {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}
	return !math.IsNaN(next)
}
