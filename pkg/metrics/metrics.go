package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	ReadinessChecksTotal   *prometheus.CounterVec
	ScoutsTotal            *prometheus.CounterVec
	JobPollsTotal          *prometheus.CounterVec
	QueryTierTotal         *prometheus.CounterVec
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
}

// New registers the client metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BackendRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of requests sent to the Pathfinder backend.",
		}, []string{"endpoint", "status"}), // status: HTTP code or "error"
		BackendRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Duration of Pathfinder backend requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ReadinessChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "readiness_checks_total",
			Help: "Total number of readiness checks by verdict.",
		}, []string{"verdict"}), // ready, needs_scouting, unreachable
		ScoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scouts_total",
			Help: "Total number of scout attempts by outcome.",
		}, []string{"outcome"}),
		JobPollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "job_polls_total",
			Help: "Total number of crawl job status polls by reported status.",
		}, []string{"status"}),
		QueryTierTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "query_tier_total",
			Help: "Total number of query tier attempts by outcome.",
		}, []string{"tier", "outcome"}), // outcome: answered, empty, failed
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served by the local helper API.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the local helper API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) ObserveBackendRequest(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.BackendRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) IncReadiness(verdict string) {
	if m == nil {
		return
	}
	m.ReadinessChecksTotal.WithLabelValues(verdict).Inc()
}

func (m *Metrics) IncScout(outcome string) {
	if m == nil {
		return
	}
	m.ScoutsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncJobPoll(status string) {
	if m == nil {
		return
	}
	m.JobPollsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncQueryTier(tier, outcome string) {
	if m == nil {
		return
	}
	m.QueryTierTotal.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
