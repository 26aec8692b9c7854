package dates

import (
	"math"
	"testing"
	"time"

	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

var nan = math.NaN()

func TestInterpolateParts(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"interior", []float64{1, nan, 3}, []float64{1, 2, 3}},
		{"rounded", []float64{1, nan, nan, 2}, []float64{1, 1, 2, 2}},
		{"leading", []float64{nan, nan, 5, 7}, []float64{5, 5, 5, 7}},
		{"trailing", []float64{4, 6, nan, nan}, []float64{4, 6, 6, 6}},
		{"single", []float64{nan, 9, nan}, []float64{9, 9, 9}},
		{"complete", []float64{1, 2}, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := frame.MustNew(frame.NewFloatColumn("m", tt.in))
			out, err := InterpolateParts(df, []string{"m"})
			if err != nil {
				t.Fatalf("InterpolateParts() error = %v", err)
			}
			col, _ := out.Column("m")
			for i, v := range col.Floats() {
				if v != tt.want[i] {
					t.Errorf("m[%d] = %v, want %v", i, v, tt.want[i])
				}
			}
		})
	}
}

func TestInterpolatePartsKeepsObserved(t *testing.T) {
	df := frame.MustNew(frame.NewFloatColumn("m", []float64{1.5, nan, 2.5}))
	out, err := InterpolateParts(df, []string{"m"})
	if err != nil {
		t.Fatalf("InterpolateParts() error = %v", err)
	}
	col, _ := out.Column("m")
	got := col.Floats()
	if got[0] != 1.5 || got[2] != 2.5 || got[1] != 2 {
		t.Errorf("got %v, want [1.5 2 2.5]", got)
	}
	in, _ := df.Column("m")
	if !math.IsNaN(in.Floats()[1]) {
		t.Error("input modified")
	}
}

func TestInterpolatePartsAllMissing(t *testing.T) {
	df := frame.MustNew(frame.NewFloatColumn("m", []float64{nan, nan}))
	out, err := InterpolateParts(df, []string{"m"})
	if err != nil {
		t.Fatalf("InterpolateParts() error = %v", err)
	}
	col, _ := out.Column("m")
	if col.MissingCount() != 2 {
		t.Errorf("MissingCount() = %d, want 2", col.MissingCount())
	}
}

func TestInterpolatePartsParsesText(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	df := frame.MustNew(frame.NewStringColumn("taxyr", []string{"2019", "", "2021", "n/a"}, []bool{true, false, true, true}))
	out, err := InterpolateParts(df, []string{"taxyr"})
	if err != nil {
		t.Fatalf("InterpolateParts() error = %v", err)
	}
	col, _ := out.Column("taxyr")
	if !col.IsNumeric() {
		t.Fatalf("taxyr kind = %v, want float", col.Kind())
	}
	want := []float64{2019, 2020, 2021, 2021}
	for i, w := range want {
		if col.Floats()[i] != w {
			t.Errorf("taxyr[%d] = %v, want %v", i, col.Floats()[i], w)
		}
	}
	if len(warned) != 1 {
		t.Errorf("warnings = %d, want 1", len(warned))
	}
}

func TestInterpolatePartsErrors(t *testing.T) {
	df := frame.MustNew(frame.NewStringColumn("s", []string{"a"}, nil))
	if _, err := InterpolateParts(df, []string{"x"}); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestFillProperDates(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	t1 := time.Date(2020, 1, 2, 3, 4, 5, 600, jst)
	t2 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	df := frame.MustNew(frame.NewTimeColumn("lstD",
		[]time.Time{{}, t1, {}, t2, {}},
		[]bool{false, true, false, true, false},
	))

	out, err := FillProperDates(df, []string{"lstD"})
	if err != nil {
		t.Fatalf("FillProperDates() error = %v", err)
	}
	col, _ := out.Column("lstD")
	if col.Kind() != frame.KindTime {
		t.Fatalf("Kind() = %v, want time", col.Kind())
	}
	if col.MissingCount() != 0 {
		t.Fatalf("MissingCount() = %d, want 0", col.MissingCount())
	}
	times, _ := col.Times()
	want := []time.Time{t1, t1, t1, t2, t2}
	for i, got := range times {
		if !got.Equal(want[i].Truncate(time.Second)) {
			t.Errorf("lstD[%d] = %v, want %v", i, got, want[i])
		}
		if got.Location() != time.UTC {
			t.Errorf("lstD[%d] location = %v, want UTC", i, got.Location())
		}
	}
}

func TestFillProperDatesAllMissing(t *testing.T) {
	df := frame.MustNew(frame.NewTimeColumn("d", make([]time.Time, 2), []bool{false, false}))
	out, err := FillProperDates(df, []string{"d"})
	if err != nil {
		t.Fatalf("FillProperDates() error = %v", err)
	}
	col, _ := out.Column("d")
	if col.MissingCount() != 2 {
		t.Errorf("MissingCount() = %d, want 2", col.MissingCount())
	}
}

func TestFillProperDatesRejectsNonTime(t *testing.T) {
	df := frame.MustNew(frame.NewFloatColumn("d", []float64{1}))
	if _, err := FillProperDates(df, []string{"d"}); err == nil {
		t.Error("expected error for float column")
	}
}

func TestEpochRoundTrip(t *testing.T) {
	ts := time.Date(2019, 3, 4, 5, 6, 7, 0, time.UTC)
	col := frame.NewTimeColumn("d", []time.Time{ts, {}}, []bool{true, false})
	epoch := ToEpoch(col)
	if epoch[0] != float64(ts.Unix()) || !math.IsNaN(epoch[1]) {
		t.Fatalf("ToEpoch() = %v", epoch)
	}
	back := FromEpoch("d", epoch)
	times, valid := back.Times()
	if !times[0].Equal(ts) || valid[1] {
		t.Errorf("FromEpoch() = %v %v", times, valid)
	}
}
