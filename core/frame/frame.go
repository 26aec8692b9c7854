// Package frame provides the in-memory table that flows through the
// preprocessing stages: an ordered set of named, typed columns of equal length.
package frame

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	lperrors "github.com/YuminosukeSato/listingprep/pkg/errors"
)

// Frame is an ordered collection of equal-length columns with unique names.
// A Frame never reorders or drops rows.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a frame from columns. All columns must have the same length and
// distinct names. A frame without columns has zero rows; use NewWithRows to
// keep the row count of an empty schema.
func New(cols ...*Column) (*Frame, error) {
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	return NewWithRows(rows, cols...)
}

// NewWithRows is like New but fixes the row count, which every column must match.
func NewWithRows(rows int, cols ...*Column) (*Frame, error) {
	if rows < 0 {
		return nil, lperrors.NewValueError("frame.New", "negative row count")
	}
	f := &Frame{index: make(map[string]int, len(cols)), rows: rows}
	for i, c := range cols {
		if c.Len() != rows {
			return nil, lperrors.NewDimensionError("frame.New", rows, c.Len(), 0)
		}
		if _, dup := f.index[c.Name()]; dup {
			return nil, lperrors.NewValueError("frame.New", "duplicate column name "+c.Name())
		}
		f.index[c.Name()] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return f.rows }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name()
	}
	return names
}

// Columns returns the columns in frame order.
func (f *Frame) Columns() []*Column { return f.cols }

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Has reports whether the frame contains the column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Missing returns the names not present in the frame, in argument order.
func (f *Frame) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if !f.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Select returns a frame with the named columns in the given order.
// Columns are shared, not copied.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, lperrors.NewValueError("frame.Select", "unknown column "+n)
		}
		cols = append(cols, c)
	}
	return NewWithRows(f.rows, cols...)
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := &Frame{index: make(map[string]int), rows: f.rows}
	for _, c := range f.cols {
		if _, ok := skip[c.Name()]; ok {
			continue
		}
		out.index[c.Name()] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Set replaces the column with the same name or appends it.
func (f *Frame) Set(c *Column) error {
	if len(f.cols) > 0 && c.Len() != f.rows {
		return lperrors.NewDimensionError("frame.Set", f.rows, c.Len(), 0)
	}
	if len(f.cols) == 0 {
		f.rows = c.Len()
	}
	if i, ok := f.index[c.Name()]; ok {
		f.cols[i] = c
		return nil
	}
	f.index[c.Name()] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Row returns row i keyed by column name. Missing entries are nil.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.cols))
	for _, c := range f.cols {
		row[c.Name()] = c.Value(i)
	}
	return row
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), rows: f.rows}
	for i, c := range f.cols {
		out.index[c.Name()] = i
		out.cols = append(out.cols, c.Clone())
	}
	return out
}

// SortedByName returns a frame with the same columns ordered alphabetically.
func (f *Frame) SortedByName() *Frame {
	cols := append([]*Column(nil), f.cols...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Name() < cols[j].Name() })
	out := &Frame{index: make(map[string]int, len(cols)), rows: f.rows}
	for i, c := range cols {
		out.index[c.Name()] = i
	}
	out.cols = cols
	return out
}

// Matrix gathers float columns into a dense row-major matrix restricted to rows.
// A nil rows slice selects every row.
func (f *Frame) Matrix(names []string, rows []int) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, lperrors.ErrNoPredictors
	}
	if rows == nil {
		rows = make([]int, f.rows)
		for i := range rows {
			rows[i] = i
		}
	}
	if len(rows) == 0 {
		return nil, lperrors.ErrEmptyData
	}
	data := make([]float64, len(rows)*len(names))
	for j, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, lperrors.NewValueError("frame.Matrix", "unknown column "+n)
		}
		if !c.IsNumeric() {
			return nil, lperrors.NewValueError("frame.Matrix", "column "+n+" is not numeric")
		}
		vals := c.Floats()
		for i, r := range rows {
			if r < 0 || r >= len(vals) {
				return nil, lperrors.NewDimensionError("frame.Matrix", len(vals), r+1, 0)
			}
			data[i*len(names)+j] = vals[r]
		}
	}
	return mat.NewDense(len(rows), len(names), data), nil
}
