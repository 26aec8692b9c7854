package classify

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/log"
)

func nanExcept(n int, keep map[int]float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
		if v, ok := keep[i]; ok {
			out[i] = v
		}
	}
	return out
}

func listingFrame() *frame.Frame {
	const n = 10
	lp := []float64{500, 600, 700, 800, 900, 1000, 1100, 1200, 1300, 1400}
	times := make([]time.Time, n)
	for i := range times {
		times[i] = time.Date(2020, 1, i+1, 0, 0, 0, 0, time.UTC)
	}
	ptype := []string{"D", "S", "D", "T", "D", "S", "D", "T", "D", "S"}
	city := []string{"A", "B", "A", "B", "A", "B", "A", "B", "A", "B"}
	single := []string{"x", "x", "x", "x", "x", "x", "x", "x", "x", "x"}
	rooms := make([]any, n)
	for i := range rooms {
		rooms[i] = "r"
	}
	rooms[0] = []string{"kitchen"}

	return frame.MustNew(
		frame.NewFloatColumn("lp-n", lp),
		// protected, 90% missing
		frame.NewFloatColumn("sqft-n", nanExcept(n, map[int]float64{0: 1200})),
		// 80% missing
		frame.NewFloatColumn("depth-n", nanExcept(n, map[int]float64{0: 1, 1: 2})),
		frame.NewFloatColumn("onD-month-n", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}),
		frame.NewTimeColumn("lstD", times, nil),
		frame.NewTimeColumn("onD", times, nil),
		frame.NewStringColumn("ptype-l", ptype, nil),
		frame.NewStringColumn("city", city, nil),
		frame.NewStringColumn("style", single, nil),
		frame.NewObjectColumn("rms", rooms),
	)
}

func TestClassify_Partition(t *testing.T) {
	c := New(config.Default().Classifier)

	p, err := c.Classify(listingFrame())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"numeric", p.Numeric, []string{"lp-n", "sqft-n"}},
		{"date special", p.DateSpecial, []string{"onD-month-n"}},
		{"common dates", p.CommonDates, []string{"lstD", "onD"}},
		{"encode", p.Encode, []string{"ptype-l"}},
		{"other", p.Other, []string{"city", "style"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	wantDropped := []Dropped{
		{Name: "depth-n", Reason: ReasonMissing},
		{Name: "rms", Reason: ReasonComposite},
	}
	if !reflect.DeepEqual(p.Dropped, wantDropped) {
		t.Errorf("Dropped = %v, want %v", p.Dropped, wantDropped)
	}
}

func TestClassify_ProtectedColumnSurvivesHeavyMissingness(t *testing.T) {
	p, err := New(config.Default().Classifier).Classify(listingFrame())
	if err != nil {
		t.Fatal(err)
	}
	d, ok := p.Descriptor("sqft-n")
	if !ok {
		t.Fatal("protected column sqft-n was dropped")
	}
	if !d.Params.Protected || d.Params.MissingFraction != 0.9 || d.Kind != KindNumeric {
		t.Errorf("descriptor = %+v", d)
	}
}

func TestClassify_Descriptors(t *testing.T) {
	p, err := New(config.Default().Classifier).Classify(listingFrame())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"lp-n", "sqft-n", "onD-month-n", "lstD", "onD", "ptype-l", "city", "style"}
	if !reflect.DeepEqual(p.Columns(), want) {
		t.Errorf("Columns() = %v, want %v", p.Columns(), want)
	}

	ptype, _ := p.Descriptor("ptype-l")
	if ptype.Kind != KindCategorical || ptype.Params.Cardinality != 3 {
		t.Errorf("ptype-l descriptor = %+v", ptype)
	}
	if !reflect.DeepEqual(p.Text(), []string{"ptype-l", "city", "style"}) {
		t.Errorf("Text() = %v", p.Text())
	}
	if _, ok := p.Descriptor("rms"); ok {
		t.Error("dropped column has a descriptor")
	}
}

func TestClassify_TextDatePartIsDateSpecial(t *testing.T) {
	df := frame.MustNew(
		frame.NewStringColumn("taxyr", []string{"2019", "2020", "2021", "2019"}, nil),
		frame.NewTimeColumn("onD", make([]time.Time, 4), nil),
	)
	p, err := New(config.Default().Classifier).Classify(df)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.DateSpecial, []string{"taxyr"}) {
		t.Errorf("DateSpecial = %v, want [taxyr]", p.DateSpecial)
	}
	// a named date part stored as a timestamp stays a proper date
	if !reflect.DeepEqual(p.CommonDates, []string{"onD"}) {
		t.Errorf("CommonDates = %v, want [onD]", p.CommonDates)
	}
	if len(p.Encode) != 0 || len(p.Other) != 0 {
		t.Errorf("taxyr leaked into text groups: encode %v other %v", p.Encode, p.Other)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(config.Default().Classifier)
	a, _ := c.Classify(listingFrame())
	b, _ := c.Classify(listingFrame())
	if !reflect.DeepEqual(a.Descriptors(), b.Descriptors()) {
		t.Error("Classify() is not deterministic")
	}
}

func TestClassify_LogsDrops(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	c := New(config.Default().Classifier, WithLogger(logger))
	if _, err := c.Classify(listingFrame()); err != nil {
		t.Fatal(err)
	}
	if !logger.ContainsField(log.ColumnKey, "depth-n") || !logger.ContainsField("reason", ReasonComposite) {
		t.Error("dropped columns were not logged")
	}
}

func TestClassify_NilFrame(t *testing.T) {
	if _, err := New(config.Default().Classifier).Classify(nil); err == nil {
		t.Error("Classify(nil) should fail")
	}
}
