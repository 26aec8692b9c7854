package droprule

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	"github.com/YuminosukeSato/listingprep/pkg/metrics"
)

var rules = FromConfig(config.Default().DropRules)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]any
		want Decision
	}{
		{"sale ok", map[string]any{"saletp-b": 0.0, "lp-n": 500000.0, "lp": 500000.0}, Keep},
		{"sale zero price", map[string]any{"saletp-b": 0.0, "lp-n": 0.0, "lp": 0.0}, Drop},
		{"sale missing raw price", map[string]any{"saletp-b": 0.0, "lp-n": 5.0, "lp": nil}, Drop},
		{"sale below limit", map[string]any{"saletp-b": 0.0, "lp-n": 500.0, "lp": "500"}, Drop},
		{"lease ok", map[string]any{"saletp-b": 1.0, "lpr-n": 2000.0, "lpr": 2000.0}, Keep},
		{"lease above limit", map[string]any{"saletp-b": 1.0, "lpr-n": 90000.0, "lpr": 90000.0}, Drop},
		{"lease zero", map[string]any{"saletp-b": 1.0, "lpr-n": 0.0, "lpr": 0.0}, Drop},
		{"sold without price column", map[string]any{"lst": "Sld", "sp-n": 1.0}, Drop},
		{"sold with missing price", map[string]any{"lst": "Lsd", "sp-n": 1.0, "sp": nil}, Drop},
		{"sold with zero price", map[string]any{"lst": "Sld", "sp-n": 0.0, "sp": 0.0}, Drop},
		{"sold with price", map[string]any{"lst": "Sld", "sp-n": 1.0, "sp": 700000.0}, Keep},
		{"active listing", map[string]any{"lst": "New"}, Keep},
		{"no sale type", map[string]any{"lp-n": 0.0}, Keep},
		{"unparsable sale type", map[string]any{"saletp-b": "sale"}, Indeterminate},
		{"absent raw price", map[string]any{"saletp-b": 0.0, "lp-n": 5.0}, Indeterminate},
		{"absent normalized price", map[string]any{"saletp-b": 0.0, "lp": 5.0}, Indeterminate},
		{"unparsable raw price", map[string]any{"saletp-b": 0.0, "lp-n": 5.0, "lp": "n/a"}, Indeterminate},
		{"sold without normalized price", map[string]any{"lst": "Sld", "sp": 1.0}, Indeterminate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.row, rules); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecisionRetain(t *testing.T) {
	if !Keep.Retain() || Drop.Retain() || !Indeterminate.Retain() {
		t.Error("only Drop should discard a row")
	}
	if Decision(9).String() != "Decision(9)" {
		t.Errorf("String() = %q", Decision(9).String())
	}
}

func TestKeepMask(t *testing.T) {
	df := frame.MustNew(
		frame.NewFloatColumn("saletp-b", []float64{0, 0, 1, math.NaN()}),
		frame.NewFloatColumn("lp-n", []float64{400000, 0, math.NaN(), 1}),
		frame.NewObjectColumn("lp", []any{400000.0, 0.0, nil, "bad"}),
		frame.NewFloatColumn("lpr-n", []float64{math.NaN(), math.NaN(), 1800, math.NaN()}),
	)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	c := metrics.NewCollector("listingprep", nil)

	mask := KeepMask(df, rules, WithLogger(logger), WithCollector(c))
	want := []bool{true, false, true, true}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
	// row 2 is a lease without the raw rent column
	if !logger.ContainsMessage("drop rule could not be evaluated, keeping row") {
		t.Error("indeterminate row was not logged")
	}
	n, err := testutil.GatherAndCount(c.Gatherer(), "listingprep_row_drop_decisions_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("decision series = %d, want 3", n)
	}
}
