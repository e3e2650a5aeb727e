package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a per-process registry. It is not global so tests and several
// verifiers in one binary do not collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	Decisions    *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
	RemoteCalls  *prometheus.CounterVec
	RemoteTime   prometheus.Histogram
	Issued       *prometheus.CounterVec
	Swept        *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_decisions_total",
			Help:      "Trust decisions by outcome and path.",
		}, []string{"outcome", "path"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocation_cache_lookups_total",
			Help:      "Revocation cache lookups by result.",
		}, []string{"result"}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_validation_calls_total",
			Help:      "Calls to the remote validation endpoint by status.",
		}, []string{"status"}),
		RemoteTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_validation_duration_seconds",
			Help:      "Latency of remote validation calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		Issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_operations_total",
			Help:      "Issuer operations by kind and status.",
		}, []string{"operation", "status"}),
		Swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_records_total",
			Help:      "Records removed by periodic sweeps.",
		}, []string{"store"}),
	}
	reg.MustRegister(
		m.Decisions, m.CacheLookups, m.RemoteCalls, m.RemoteTime, m.Issued, m.Swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
