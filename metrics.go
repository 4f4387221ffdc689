/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsLabelOutcome = "outcome"
	metricsLabelOp      = "op"
)

// MetricsCollector is a collector of metrics to analyze how the limiter behaves.
type MetricsCollector interface {
	// IncDecisions increments the total number of made decisions with the given outcome.
	IncDecisions(outcome Outcome)

	// IncStoreRetries increments the total number of retried store operations.
	IncStoreRetries(op string)

	// IncStoreErrors increments the total number of store operations
	// that kept failing after all retry attempts.
	IncStoreErrors(op string)

	// AddEvictedRecords increments the total number of records deleted by the sweeper.
	AddEvictedRecords(n int64)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried in the produced metrics.
	// MustCurryWith method should be used to curry metrics.
	CurriedLabelNames []string
}

// PrometheusMetrics represents a Prometheus metrics collector for the limiter.
type PrometheusMetrics struct {
	DecisionsTotal      *prometheus.CounterVec
	StoreRetriesTotal   *prometheus.CounterVec
	StoreErrorsTotal    *prometheus.CounterVec
	EvictedRecordsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new Prometheus metrics collector with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new Prometheus metrics collector with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_decisions_total",
			Help:        "Total number of made admission decisions.",
			ConstLabels: opts.ConstLabels,
		},
		append(opts.CurriedLabelNames, metricsLabelOutcome),
	)
	storeRetriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_store_retries_total",
			Help:        "Total number of retried store operations.",
			ConstLabels: opts.ConstLabels,
		},
		append(opts.CurriedLabelNames, metricsLabelOp),
	)
	storeErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_store_errors_total",
			Help:        "Total number of store operations failed after all retry attempts.",
			ConstLabels: opts.ConstLabels,
		},
		append(opts.CurriedLabelNames, metricsLabelOp),
	)
	evictedRecordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "ratelimit_evicted_records_total",
			Help:        "Total number of expired records deleted by the sweeper.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)
	return &PrometheusMetrics{
		DecisionsTotal:      decisionsTotal,
		StoreRetriesTotal:   storeRetriesTotal,
		StoreErrorsTotal:    storeErrorsTotal,
		EvictedRecordsTotal: evictedRecordsTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		DecisionsTotal:      pm.DecisionsTotal.MustCurryWith(labels),
		StoreRetriesTotal:   pm.StoreRetriesTotal.MustCurryWith(labels),
		StoreErrorsTotal:    pm.StoreErrorsTotal.MustCurryWith(labels),
		EvictedRecordsTotal: pm.EvictedRecordsTotal.MustCurryWith(labels),
	}
}

// MustRegister registers metrics in Prometheus client registry.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.DecisionsTotal,
		pm.StoreRetriesTotal,
		pm.StoreErrorsTotal,
		pm.EvictedRecordsTotal,
	)
}

// Unregister unregisters metrics in Prometheus client registry.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.DecisionsTotal)
	prometheus.Unregister(pm.StoreRetriesTotal)
	prometheus.Unregister(pm.StoreErrorsTotal)
	prometheus.Unregister(pm.EvictedRecordsTotal)
}

// IncDecisions increments the total number of made decisions with the given outcome.
func (pm *PrometheusMetrics) IncDecisions(outcome Outcome) {
	pm.DecisionsTotal.With(prometheus.Labels{metricsLabelOutcome: outcome.String()}).Inc()
}

// IncStoreRetries increments the total number of retried store operations.
func (pm *PrometheusMetrics) IncStoreRetries(op string) {
	pm.StoreRetriesTotal.With(prometheus.Labels{metricsLabelOp: op}).Inc()
}

// IncStoreErrors increments the total number of store operations
// that kept failing after all retry attempts.
func (pm *PrometheusMetrics) IncStoreErrors(op string) {
	pm.StoreErrorsTotal.With(prometheus.Labels{metricsLabelOp: op}).Inc()
}

// AddEvictedRecords increments the total number of records deleted by the sweeper.
func (pm *PrometheusMetrics) AddEvictedRecords(n int64) {
	pm.EvictedRecordsTotal.With(nil).Add(float64(n))
}

type disabledMetrics struct{}

// NewDisabledMetrics creates a new no-op metrics collector.
func NewDisabledMetrics() MetricsCollector {
	return disabledMetrics{}
}

func (disabledMetrics) IncDecisions(outcome Outcome) {}
func (disabledMetrics) IncStoreRetries(op string)    {}
func (disabledMetrics) IncStoreErrors(op string)     {}
func (disabledMetrics) AddEvictedRecords(n int64)    {}
