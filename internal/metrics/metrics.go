package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the authentication collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Logins        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Resolutions   *prometheus.CounterVec
	HashDuration  *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finevents_auth_logins_total",
				Help: "Login attempts by credential presentation mode and outcome",
			},
			[]string{"method", "outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finevents_auth_registrations_total",
				Help: "Registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finevents_auth_resolutions_total",
				Help: "Per-request identity resolutions by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		HashDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finevents_password_hash_seconds",
				Help:    "Time spent hashing or verifying passwords",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(
		m.Logins,
		m.Registrations,
		m.Resolutions,
		m.HashDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveLogin(method, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveResolution(policy, outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(policy, outcome).Inc()
}

func (m *Metrics) ObserveHash(op string, started time.Time) {
	if m == nil {
		return
	}
	m.HashDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
