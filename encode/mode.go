package encode

import (
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/core/model"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
)

// ModeImputer fills missing text entries with the most frequent value seen at Fit.
type ModeImputer struct {
	state  *model.StateManager
	logger log.Logger
	modes  map[string]string
}

// NewModeImputer creates an unfitted mode imputer.
func NewModeImputer() *ModeImputer {
	return &ModeImputer{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("encode"),
	}
}

// Fit learns the mode of each column. Columns without a present value have no mode.
func (m *ModeImputer) Fit(df *frame.Frame, columns []string) error {
	m.state.Reset()
	if missing := df.Missing(columns); len(missing) > 0 {
		return errors.NewInputShapeError("fit", nil, nil, missing)
	}
	m.modes = make(map[string]string, len(columns))
	for _, name := range columns {
		col, _ := df.Column(name)
		values := make([]any, col.Len())
		for i := range values {
			values[i] = col.Value(i)
		}
		if v, ok := mode(values, always); ok {
			m.modes[name] = v
		} else {
			m.logger.Warn("text column has no present value", log.ColumnKey, name)
		}
	}
	m.state.SetColumns(columns)
	m.state.SetFitted()
	return nil
}

// Transform returns string columns with missing entries set to the fitted mode.
// Columns without a mode keep their missing entries.
func (m *ModeImputer) Transform(df *frame.Frame) (*frame.Frame, error) {
	if err := m.state.RequireFitted("ModeImputer", "Transform"); err != nil {
		return nil, err
	}
	columns := m.state.Columns()
	if missing := df.Missing(columns); len(missing) > 0 {
		return nil, errors.NewInputShapeError("transform", nil, nil, missing)
	}
	out := df.Drop()
	for _, name := range columns {
		col, _ := df.Column(name)
		fill, hasMode := m.modes[name]
		n := col.Len()
		vals := make([]string, n)
		valid := make([]bool, n)
		for i := 0; i < n; i++ {
			if s, ok := col.StringAt(i); ok {
				vals[i], valid[i] = s, true
			} else if hasMode {
				vals[i], valid[i] = fill, true
			}
		}
		if err := out.Set(frame.NewStringColumn(name, vals, valid)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Mode returns the fitted mode of column.
func (m *ModeImputer) Mode(column string) (string, bool) {
	v, ok := m.modes[column]
	return v, ok
}
