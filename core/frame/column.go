package frame

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	// KindFloat stores float64 values; NaN marks a missing entry.
	KindFloat Kind = iota
	// KindString stores strings with a validity mask.
	KindString
	// KindTime stores timestamps with a validity mask.
	KindTime
	// KindObject stores arbitrary values; nil marks a missing entry.
	// Mixed-type and list/map valued fields land here.
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a named, typed vector with missing entries.
type Column struct {
	name    string
	kind    Kind
	floats  []float64
	strs    []string
	times   []time.Time
	objects []any
	valid   []bool
}

// NewFloatColumn creates a float column. NaN values are treated as missing.
// The slice is used without copying.
func NewFloatColumn(name string, values []float64) *Column {
	return &Column{name: name, kind: KindFloat, floats: values}
}

// NewStringColumn creates a string column. A nil valid mask means every entry is present.
func NewStringColumn(name string, values []string, valid []bool) *Column {
	return &Column{name: name, kind: KindString, strs: values, valid: fullMask(len(values), valid)}
}

// NewTimeColumn creates a timestamp column. A nil valid mask means every entry is present.
func NewTimeColumn(name string, values []time.Time, valid []bool) *Column {
	return &Column{name: name, kind: KindTime, times: values, valid: fullMask(len(values), valid)}
}

// NewObjectColumn creates a column of arbitrary values. nil entries are missing.
func NewObjectColumn(name string, values []any) *Column {
	return &Column{name: name, kind: KindObject, objects: values}
}

func fullMask(n int, valid []bool) []bool {
	if valid != nil {
		return valid
	}
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the storage kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of rows.
func (c *Column) Len() int {
	switch c.kind {
	case KindFloat:
		return len(c.floats)
	case KindString:
		return len(c.strs)
	case KindTime:
		return len(c.times)
	default:
		return len(c.objects)
	}
}

// IsNumeric reports whether the column stores float values.
func (c *Column) IsNumeric() bool { return c.kind == KindFloat }

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	switch c.kind {
	case KindFloat:
		return math.IsNaN(c.floats[i])
	case KindString, KindTime:
		return !c.valid[i]
	default:
		return c.objects[i] == nil
	}
}

// Floats returns the backing float slice of a float column, nil otherwise.
func (c *Column) Floats() []float64 { return c.floats }

// Strings returns the backing values and validity mask of a string column.
func (c *Column) Strings() ([]string, []bool) { return c.strs, c.valid }

// Times returns the backing values and validity mask of a time column.
func (c *Column) Times() ([]time.Time, []bool) { return c.times, c.valid }

// Objects returns the backing values of an object column.
func (c *Column) Objects() []any { return c.objects }

// Value returns row i as an interface value, or nil when missing.
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.kind {
	case KindFloat:
		return c.floats[i]
	case KindString:
		return c.strs[i]
	case KindTime:
		return c.times[i]
	default:
		return c.objects[i]
	}
}

// StringAt returns the string form of row i and whether it is present.
func (c *Column) StringAt(i int) (string, bool) {
	v := c.Value(i)
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// MissingCount returns the number of missing rows.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// MissingFraction returns MissingCount / Len, 0 for an empty column.
func (c *Column) MissingFraction() float64 {
	if c.Len() == 0 {
		return 0
	}
	return float64(c.MissingCount()) / float64(c.Len())
}

// DistinctCount returns the number of distinct non-missing values by string form.
func (c *Column) DistinctCount() int {
	return len(c.Distinct())
}

// Distinct returns the sorted distinct non-missing values by string form.
func (c *Column) Distinct() []string {
	seen := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if s, ok := c.StringAt(i); ok {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasComposite reports whether any entry is a list, array or map value.
func (c *Column) HasComposite() bool {
	if c.kind != KindObject {
		return false
	}
	for _, v := range c.objects {
		if IsComposite(v) {
			return true
		}
	}
	return false
}

// IsComposite reports whether v is a slice, array or map.
func IsComposite(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{name: c.name, kind: c.kind}
	if c.floats != nil {
		out.floats = append([]float64(nil), c.floats...)
	}
	if c.strs != nil {
		out.strs = append([]string(nil), c.strs...)
	}
	if c.times != nil {
		out.times = append([]time.Time(nil), c.times...)
	}
	if c.objects != nil {
		out.objects = append([]any(nil), c.objects...)
	}
	if c.valid != nil {
		out.valid = append([]bool(nil), c.valid...)
	}
	return out
}

// Renamed returns a shallow copy of the column under a new name.
func (c *Column) Renamed(name string) *Column {
	out := *c
	out.name = name
	return &out
}

// ToFloat converts the column to float storage. Values that cannot be
// represented become NaN and are counted in the second result.
func (c *Column) ToFloat() (*Column, int) {
	if c.kind == KindFloat {
		return c, 0
	}
	n := c.Len()
	vals := make([]float64, n)
	lost := 0
	for i := 0; i < n; i++ {
		v := c.Value(i)
		if v == nil {
			vals[i] = math.NaN()
			continue
		}
		f, ok := AsFloat(v)
		if !ok {
			lost++
			f = math.NaN()
		}
		vals[i] = f
	}
	return NewFloatColumn(c.name, vals), lost
}
