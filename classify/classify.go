// Package classify assigns every column of the wide listing table a role and
// drops the columns later stages cannot use.
package classify

import (
	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/core/frame"
	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	"github.com/YuminosukeSato/listingprep/pkg/metrics"
)

// Role is the processing group a column is routed to.
type Role string

const (
	RoleNumeric     Role = "numeric"
	RoleDateSpecial Role = "date_special"
	RoleCommonDate  Role = "common_date"
	RoleEncode      Role = "encode"
	RoleOther       Role = "other"
)

// Kind is the semantic type later stages dispatch on.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindDate        Kind = "date"
	KindCategorical Kind = "categorical"
	KindText        Kind = "text"
)

// Drop reasons.
const (
	ReasonMissing   = "missing"
	ReasonComposite = "composite"
)

// Params carries the statistics the decision was based on.
type Params struct {
	Storage         frame.Kind
	MissingFraction float64
	Cardinality     int
	Protected       bool
}

// Descriptor is the tagged description of one surviving column.
type Descriptor struct {
	Name   string
	Role   Role
	Kind   Kind
	Params Params
}

// Dropped records a removed column.
type Dropped struct {
	Name   string
	Reason string
}

// Partition is a disjoint cover of the surviving columns. Each group keeps
// input column order.
type Partition struct {
	Numeric     []string
	DateSpecial []string
	CommonDates []string
	Encode      []string
	Other       []string
	Dropped     []Dropped

	descriptors []Descriptor
	byName      map[string]int
}

// Descriptors returns the descriptors of surviving columns in input order.
func (p *Partition) Descriptors() []Descriptor {
	return append([]Descriptor(nil), p.descriptors...)
}

// Descriptor looks up a surviving column.
func (p *Partition) Descriptor(name string) (Descriptor, bool) {
	i, ok := p.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return p.descriptors[i], true
}

// Columns returns every surviving column in input order.
func (p *Partition) Columns() []string {
	out := make([]string, len(p.descriptors))
	for i, d := range p.descriptors {
		out[i] = d.Name
	}
	return out
}

// Text returns the encode and other groups in input order.
func (p *Partition) Text() []string {
	var out []string
	for _, d := range p.descriptors {
		if d.Role == RoleEncode || d.Role == RoleOther {
			out = append(out, d.Name)
		}
	}
	return out
}

func (p *Partition) add(d Descriptor) {
	p.byName[d.Name] = len(p.descriptors)
	p.descriptors = append(p.descriptors, d)
	switch d.Role {
	case RoleNumeric:
		p.Numeric = append(p.Numeric, d.Name)
	case RoleDateSpecial:
		p.DateSpecial = append(p.DateSpecial, d.Name)
	case RoleCommonDate:
		p.CommonDates = append(p.CommonDates, d.Name)
	case RoleEncode:
		p.Encode = append(p.Encode, d.Name)
	case RoleOther:
		p.Other = append(p.Other, d.Name)
	}
}

// Classifier partitions columns. It holds no fitted state and is safe for
// concurrent use.
type Classifier struct {
	threshold     float64
	protected     map[string]struct{}
	dateSpecial   map[string]struct{}
	encodeExclude map[string]struct{}
	minCard       int
	maxCard       int

	logger    log.Logger
	collector *metrics.Collector
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(m *metrics.Collector) Option {
	return func(c *Classifier) { c.collector = m }
}

func set(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// New builds a classifier from configuration.
func New(cfg config.ClassifierConfig, opts ...Option) *Classifier {
	c := &Classifier{
		threshold:     cfg.MissingThreshold,
		protected:     set(cfg.Protected),
		dateSpecial:   set(cfg.DateSpecial),
		encodeExclude: set(cfg.EncodeExclude),
		minCard:       cfg.MinCardinality,
		maxCard:       cfg.MaxCardinality,
		logger:        log.GetLoggerWithName("classify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify drops over-missing and composite columns and partitions the rest.
// The result depends only on the schema and per-column statistics.
func (c *Classifier) Classify(df *frame.Frame) (*Partition, error) {
	if df == nil {
		return nil, errors.NewValueError("Classifier.Classify", "nil frame")
	}
	p := &Partition{byName: make(map[string]int)}

	for _, col := range df.Columns() {
		name := col.Name()
		_, protected := c.protected[name]
		params := Params{
			Storage:         col.Kind(),
			MissingFraction: col.MissingFraction(),
			Protected:       protected,
		}

		if params.MissingFraction > c.threshold && !protected {
			c.drop(p, name, ReasonMissing, params.MissingFraction)
			continue
		}
		if col.HasComposite() {
			c.drop(p, name, ReasonComposite, params.MissingFraction)
			continue
		}

		d := Descriptor{Name: name, Params: params}
		_, special := c.dateSpecial[name]
		switch {
		case special && col.Kind() != frame.KindTime:
			// text storage is parsed to float by the date normalizer
			d.Role, d.Kind = RoleDateSpecial, KindDate
		case col.Kind() == frame.KindFloat:
			d.Role, d.Kind = RoleNumeric, KindNumeric
		case col.Kind() == frame.KindTime:
			d.Role, d.Kind = RoleCommonDate, KindDate
		default:
			d.Params.Cardinality = col.DistinctCount()
			_, excluded := c.encodeExclude[name]
			if !excluded && d.Params.Cardinality >= c.minCard && d.Params.Cardinality <= c.maxCard {
				d.Role, d.Kind = RoleEncode, KindCategorical
			} else {
				d.Role, d.Kind = RoleOther, KindText
			}
		}
		p.add(d)
	}

	c.logger.Debug("columns classified",
		log.FeaturesKey, df.NumCols(),
		"numeric", len(p.Numeric),
		"date_special", len(p.DateSpecial),
		"common_dates", len(p.CommonDates),
		"encode", len(p.Encode),
		"other", len(p.Other),
		"dropped", len(p.Dropped),
	)
	return p, nil
}

func (c *Classifier) drop(p *Partition, name, reason string, missing float64) {
	p.Dropped = append(p.Dropped, Dropped{Name: name, Reason: reason})
	c.collector.IncDropped(reason)
	c.logger.Info("column dropped",
		log.ColumnKey, name,
		"reason", reason,
		log.MissingFractionKey, missing,
	)
}
