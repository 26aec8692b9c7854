// Package droprule decides which listing rows an upstream loader should
// discard before the table reaches the preprocessing pipeline.
//
// Every row gets one of three outcomes. A rule that cannot be evaluated
// (absent column, unparsable value, panic) yields Indeterminate, which
// callers treat as Keep.
package droprule

import (
	"fmt"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	"github.com/YuminosukeSato/listingprep/pkg/metrics"
)

// Decision is the outcome of the drop rules for one row.
type Decision int

const (
	Keep Decision = iota
	Drop
	Indeterminate
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Drop:
		return "drop"
	case Indeterminate:
		return "indeterminate"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Retain reports whether the row stays in the table.
func (d Decision) Retain() bool { return d != Drop }

// Column names read by the rules.
const (
	ColSaleType  = "saletp-b"
	ColListPrice = "lp-n"
	ColRawPrice  = "lp"
	ColRentPrice = "lpr-n"
	ColRawRent   = "lpr"
	ColStatus    = "lst"
	ColSoldPrice = "sp-n"
	ColRawSold   = "sp"
)

// Sale type codes of ColSaleType.
const (
	saleTypeSale  = 0
	saleTypeLease = 1
)

// Rules holds the price limits.
type Rules struct {
	SaleMinPrice float64
	RentMaxPrice float64
}

// FromConfig builds rules from configuration.
func FromConfig(c config.DropRuleConfig) Rules {
	return Rules{SaleMinPrice: c.SaleMinPrice, RentMaxPrice: c.RentMaxPrice}
}

// Evaluate applies the rules to one row keyed by column name.
func Evaluate(row map[string]any, rules Rules) Decision {
	d, _ := evaluate(row, rules)
	return d
}

func evaluate(row map[string]any, rules Rules) (d Decision, err error) {
	err = errors.SafeExecute("droprule.Evaluate", func() error {
		d, err = decide(row, rules)
		return err
	})
	if err != nil {
		return Indeterminate, err
	}
	return d, nil
}

func decide(row map[string]any, r Rules) (Decision, error) {
	saleType, present, err := number(row, ColSaleType)
	if err != nil {
		return Indeterminate, err
	}
	if present {
		switch saleType {
		case saleTypeSale:
			drop, err := priceFails(row, ColListPrice, ColRawPrice, func(p float64) bool { return p < r.SaleMinPrice })
			if err != nil || drop {
				return verdict(drop, err)
			}
		case saleTypeLease:
			drop, err := priceFails(row, ColRentPrice, ColRawRent, func(p float64) bool { return p > r.RentMaxPrice })
			if err != nil || drop {
				return verdict(drop, err)
			}
		}
	}

	if status, ok := row[ColStatus]; ok && (status == "Sld" || status == "Lsd") {
		if _, ok := row[ColRawSold]; !ok {
			return Drop, nil
		}
		drop, err := priceFails(row, ColSoldPrice, ColRawSold, func(float64) bool { return false })
		if err != nil || drop {
			return verdict(drop, err)
		}
	}
	return Keep, nil
}

func verdict(drop bool, err error) (Decision, error) {
	if err != nil {
		return Indeterminate, err
	}
	return Drop, nil
}

// priceFails reports whether the normalized price is zero, the raw price is
// missing, or the raw price fails the limit.
func priceFails(row map[string]any, normalized, raw string, limit func(float64) bool) (bool, error) {
	if _, present := row[normalized]; !present {
		return false, errors.Newf("column %s is absent", normalized)
	}
	n, ok, err := number(row, normalized)
	if err != nil {
		return false, err
	}
	if ok && n == 0 {
		return true, nil
	}
	v, present := row[raw]
	if !present {
		return false, errors.Newf("column %s is absent", raw)
	}
	if v == nil {
		return true, nil
	}
	p, ok := frame.AsFloat(v)
	if !ok {
		return false, errors.Newf("column %s value %v is not a number", raw, v)
	}
	return limit(p), nil
}

// number reads a numeric cell. ok is false when the column is absent or the cell is missing.
func number(row map[string]any, name string) (float64, bool, error) {
	v, ok := row[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := frame.AsFloat(v)
	if !ok {
		return 0, false, errors.Newf("column %s value %v is not a number", name, v)
	}
	return f, true, nil
}

// Option configures KeepMask.
type Option func(*options)

type options struct {
	logger    log.Logger
	collector *metrics.Collector
}

// WithLogger sets the logger for indeterminate rows.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCollector counts decisions.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// KeepMask evaluates every row of df. Indeterminate rows are logged and kept.
func KeepMask(df *frame.Frame, rules Rules, opts ...Option) []bool {
	o := options{logger: log.GetLoggerWithName("droprule")}
	for _, opt := range opts {
		opt(&o)
	}

	mask := make([]bool, df.NumRows())
	for i := range mask {
		d, err := evaluate(df.Row(i), rules)
		if d == Indeterminate {
			o.logger.Warn("drop rule could not be evaluated, keeping row",
				"row", i,
				log.ErrorCodeKey, log.ErrorIndeterminate,
				"error", err,
			)
		}
		o.collector.IncDecision(d.String())
		mask[i] = d.Retain()
	}
	return mask
}
