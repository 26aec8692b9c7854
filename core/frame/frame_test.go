package frame

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		NewFloatColumn("sqft-n", []float64{1200, math.NaN(), 900, 1500}),
		NewStringColumn("city", []string{"Toronto", "", "Ottawa", "Toronto"}, []bool{true, false, true, true}),
		NewTimeColumn("lstD", []time.Time{time.Unix(0, 0), {}, time.Unix(86400, 0), time.Unix(172800, 0)}, []bool{true, false, true, true}),
		NewObjectColumn("rms", []any{[]string{"a"}, nil, "x", "y"}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cols    []*Column
		wantErr bool
	}{
		{"equal lengths", []*Column{NewFloatColumn("a", []float64{1, 2}), NewFloatColumn("b", []float64{3, 4})}, false},
		{"length mismatch", []*Column{NewFloatColumn("a", []float64{1, 2}), NewFloatColumn("b", []float64{3})}, true},
		{"duplicate name", []*Column{NewFloatColumn("a", []float64{1}), NewFloatColumn("a", []float64{2})}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cols...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewWithRows(t *testing.T) {
	f, err := NewWithRows(4)
	if err != nil {
		t.Fatalf("NewWithRows() error = %v", err)
	}
	if f.NumRows() != 4 || f.NumCols() != 0 {
		t.Errorf("NewWithRows(4) = %d rows, %d cols", f.NumRows(), f.NumCols())
	}
	if _, err := NewWithRows(3, NewFloatColumn("a", []float64{1, 2})); err == nil {
		t.Error("NewWithRows() with a short column: expected error")
	}
	if _, err := NewWithRows(-1); err == nil {
		t.Error("NewWithRows(-1): expected error")
	}

	sel, err := sampleFrame(t).Select()
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sel.NumRows() != 4 {
		t.Errorf("Select() with no names has %d rows, want 4", sel.NumRows())
	}
}

func TestColumn_Statistics(t *testing.T) {
	f := sampleFrame(t)

	sqft, _ := f.Column("sqft-n")
	if got := sqft.MissingFraction(); got != 0.25 {
		t.Errorf("MissingFraction() = %v, want 0.25", got)
	}
	city, _ := f.Column("city")
	if got := city.DistinctCount(); got != 2 {
		t.Errorf("DistinctCount() = %d, want 2", got)
	}
	if !reflect.DeepEqual(city.Distinct(), []string{"Ottawa", "Toronto"}) {
		t.Errorf("Distinct() = %v", city.Distinct())
	}
	if !city.IsMissing(1) || city.Value(1) != nil {
		t.Error("row 1 of city should be missing")
	}
	rms, _ := f.Column("rms")
	if !rms.HasComposite() {
		t.Error("rms should be detected as composite")
	}
	if city.HasComposite() {
		t.Error("string column cannot be composite")
	}
}

func TestFrame_SelectDropSort(t *testing.T) {
	f := sampleFrame(t)

	sel, err := f.Select("city", "sqft-n")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !reflect.DeepEqual(sel.Names(), []string{"city", "sqft-n"}) {
		t.Errorf("Select() names = %v", sel.Names())
	}
	if _, err := f.Select("nope"); err == nil {
		t.Error("Select() of unknown column should fail")
	}

	dropped := f.Drop("rms", "unknown")
	if dropped.NumCols() != 3 || dropped.Has("rms") {
		t.Errorf("Drop() names = %v", dropped.Names())
	}
	if dropped.NumRows() != f.NumRows() {
		t.Errorf("Drop() changed row count")
	}

	sorted := f.SortedByName()
	if !reflect.DeepEqual(sorted.Names(), []string{"city", "lstD", "rms", "sqft-n"}) {
		t.Errorf("SortedByName() = %v", sorted.Names())
	}
	if missing := f.Missing([]string{"city", "x", "y"}); !reflect.DeepEqual(missing, []string{"x", "y"}) {
		t.Errorf("Missing() = %v", missing)
	}
}

func TestFrame_CloneIsDeep(t *testing.T) {
	f := sampleFrame(t)
	c := f.Clone()
	col, _ := c.Column("sqft-n")
	col.Floats()[0] = -1

	orig, _ := f.Column("sqft-n")
	if orig.Floats()[0] != 1200 {
		t.Error("Clone() shares float storage with the original")
	}
}

func TestFrame_Row(t *testing.T) {
	f := sampleFrame(t)
	row := f.Row(1)
	if len(row) != 4 {
		t.Fatalf("len(Row(1)) = %d, want 4", len(row))
	}
	for name, v := range row {
		if v != nil {
			t.Errorf("Row(1)[%s] = %v, want nil", name, v)
		}
	}
	if got := f.Row(2)["city"]; got != "Ottawa" {
		t.Errorf("Row(2)[city] = %v, want Ottawa", got)
	}
}

func TestFrame_Matrix(t *testing.T) {
	f := MustNew(
		NewFloatColumn("a", []float64{1, 2, 3}),
		NewFloatColumn("b", []float64{4, 5, 6}),
		NewStringColumn("s", []string{"x", "y", "z"}, nil),
	)

	m, err := f.Matrix([]string{"b", "a"}, []int{2, 0})
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if r, c := m.Dims(); r != 2 || c != 2 {
		t.Fatalf("Matrix() dims = %dx%d", r, c)
	}
	if m.At(0, 0) != 6 || m.At(0, 1) != 3 || m.At(1, 0) != 4 {
		t.Errorf("Matrix() values wrong: %v", m.RawMatrix().Data)
	}
	if _, err := f.Matrix([]string{"s"}, nil); err == nil {
		t.Error("Matrix() over string column should fail")
	}
	if _, err := f.Matrix([]string{"a"}, []int{7}); err == nil {
		t.Error("Matrix() with out-of-range row should fail")
	}
}

func TestColumn_ToFloat(t *testing.T) {
	c := NewObjectColumn("n", []any{1, "2.5", nil, "abc", true})
	fc, lost := c.ToFloat()
	if lost != 1 {
		t.Errorf("lost = %d, want 1", lost)
	}
	got := fc.Floats()
	if got[0] != 1 || got[1] != 2.5 || !math.IsNaN(got[2]) || !math.IsNaN(got[3]) || got[4] != 1 {
		t.Errorf("ToFloat() = %v", got)
	}
}

func TestIsIntegerLike(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{"12", true},
		{" 7 ", true},
		{"1.5", false},
		{"A", false},
		{int64(3), true},
		{3.0, false},
	}
	for _, tt := range tests {
		if got := IsIntegerLike(tt.in); got != tt.want {
			t.Errorf("IsIntegerLike(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
