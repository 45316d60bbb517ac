package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncScout("success")
	m.IncScout("success")
	m.IncQueryTier("search", "empty")
	m.ObserveBackendRequest("/check", "200", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScoutsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryTierTotal.WithLabelValues("search", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("/check", "200")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncScout("failure")
		m.IncJobPoll("running")
		m.IncReadiness("ready")
		m.IncQueryTier("query", "answered")
		m.ObserveBackendRequest("/query", "500", time.Second)
		m.ObserveHTTPRequest("GET", "/api/health", "200", time.Millisecond)
	})
}
