package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus_auth"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	decisions       *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	revocationCheck *prometheus.HistogramVec
}

// New registers the auth collectors plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Session operations by outcome.",
		}, []string{"op", "outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store round trips, counting every retry.",
		}, []string{"op"}),
		revocationCheck: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "revocation_check_seconds",
			Help:      "Latency of revocation lookups including retries.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.decisions,
		m.storeErrors,
		m.revocationCheck,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Decision counts one login, authorize, refresh or logout.
func (m *Metrics) Decision(op, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(op, outcome).Inc()
}

// StoreError counts one failed store call.
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

// RevocationCheck observes one IsRevoked lookup.
func (m *Metrics) RevocationCheck(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.revocationCheck.WithLabelValues(result).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
