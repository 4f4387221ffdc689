/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
)

func TestPrometheusMetrics(t *testing.T) {
	mc := floodgate.NewPrometheusMetrics()
	mc.MustRegister()
	defer mc.Unregister()

	var collector floodgate.MetricsCollector = mc

	collector.IncDecisions(floodgate.OutcomeAdmit)
	collector.IncDecisions(floodgate.OutcomeAdmit)
	collector.IncDecisions(floodgate.OutcomeThrottled)
	collector.IncStoreRetries("saveRecord")
	collector.IncStoreErrors("getRecord")
	collector.AddEvictedRecords(7)

	require.Equal(t, 2, int(testutil.ToFloat64(mc.DecisionsTotal.WithLabelValues("admit"))))
	require.Equal(t, 1, int(testutil.ToFloat64(mc.DecisionsTotal.WithLabelValues("throttled"))))
	require.Equal(t, 0, int(testutil.ToFloat64(mc.DecisionsTotal.WithLabelValues("blacklisted"))))
	require.Equal(t, 1, int(testutil.ToFloat64(mc.StoreRetriesTotal.WithLabelValues("saveRecord"))))
	require.Equal(t, 1, int(testutil.ToFloat64(mc.StoreErrorsTotal.WithLabelValues("getRecord"))))
	require.Equal(t, 7, int(testutil.ToFloat64(mc.EvictedRecordsTotal)))
}

func TestPrometheusMetricsWithOpts(t *testing.T) {
	mc := floodgate.NewPrometheusMetricsWithOpts(floodgate.PrometheusMetricsOpts{
		Namespace:         "gatekeeper",
		ConstLabels:       prometheus.Labels{"service": "edge"},
		CurriedLabelNames: []string{"tenant"},
	}).MustCurryWith(prometheus.Labels{"tenant": "acme"})
	mc.MustRegister()
	defer mc.Unregister()

	mc.IncDecisions(floodgate.OutcomeBlacklisted)
	mc.AddEvictedRecords(3)

	require.Equal(t, 1, int(testutil.ToFloat64(mc.DecisionsTotal.WithLabelValues("blacklisted"))))
	require.Equal(t, 3, int(testutil.ToFloat64(mc.EvictedRecordsTotal)))
}

func TestDisabledMetrics(t *testing.T) {
	mc := floodgate.NewDisabledMetrics()
	require.NotPanics(t, func() {
		mc.IncDecisions(floodgate.OutcomeAdmit)
		mc.IncStoreRetries("saveRecord")
		mc.IncStoreErrors("saveRecord")
		mc.AddEvictedRecords(1)
	})
}
