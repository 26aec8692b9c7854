// Package metrics exposes Prometheus collectors for the preprocessing stages.
//
// Each Preprocessor owns a Collector. By default the collector registers on a
// private registry so that several pipelines can coexist in one process;
// pass a shared Registerer to expose the series on a scrape endpoint.
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector("listingprep", reg)
//	defer c.ObserveStage("impute", time.Now())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups the counters and histograms of one pipeline.
type Collector struct {
	registry prometheus.Gatherer

	cellsImputed         *prometheus.CounterVec
	outliersReplaced     *prometheus.CounterVec
	distributionFallback *prometheus.CounterVec
	columnsDropped       *prometheus.CounterVec
	dropDecisions        *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec
}

// NewCollector creates and registers the pipeline series under namespace.
// A nil reg selects a fresh private registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Collector{
		registry: gatherer,
		cellsImputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_imputed_total",
			Help:      "Missing numeric cells filled by the regression imputer.",
		}, []string{"column"}),
		outliersReplaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outliers_replaced_total",
			Help:      "Outlier cells replaced, by column and source distribution family.",
		}, []string{"column", "family"}),
		distributionFallback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distribution_fallbacks_total",
			Help:      "Columns whose outliers were replaced by the median because no family could be fitted.",
		}, []string{"column"}),
		columnsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_dropped_total",
			Help:      "Columns dropped by the classifier, by reason.",
		}, []string{"reason"}),
		dropDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_drop_decisions_total",
			Help:      "Row drop rule outcomes.",
		}, []string{"decision"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

// Gatherer returns the registry the collector was registered on, if it can gather.
func (c *Collector) Gatherer() prometheus.Gatherer { return c.registry }

// AddImputed counts filled cells for column.
func (c *Collector) AddImputed(column string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.cellsImputed.WithLabelValues(column).Add(float64(n))
}

// AddOutliers counts replaced cells for column; family is "median" on fallback.
func (c *Collector) AddOutliers(column, family string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.outliersReplaced.WithLabelValues(column, family).Add(float64(n))
}

// IncFallback counts a median fallback for column.
func (c *Collector) IncFallback(column string) {
	if c == nil {
		return
	}
	c.distributionFallback.WithLabelValues(column).Inc()
}

// IncDropped counts a dropped column.
func (c *Collector) IncDropped(reason string) {
	if c == nil {
		return
	}
	c.columnsDropped.WithLabelValues(reason).Inc()
}

// IncDecision counts a row drop decision.
func (c *Collector) IncDecision(decision string) {
	if c == nil {
		return
	}
	c.dropDecisions.WithLabelValues(decision).Inc()
}

// ObserveStage records the time elapsed since start for stage. Use with defer.
func (c *Collector) ObserveStage(stage string, start time.Time) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
