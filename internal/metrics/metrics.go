// Package metrics exposes Prometheus collectors for injections, generation calls and
// HTTP traffic. All collectors live on a private registry so tests can build as many
// independent instances as they like.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	injections   *prometheus.CounterVec
	pollAttempts prometheus.Histogram
	upstream     *prometheus.HistogramVec
	requests     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		injections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postpilot",
			Name:      "injections_total",
			Help:      "Editor injection requests by path and result.",
		}, []string{"path", "status"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "postpilot",
			Name:      "injection_poll_attempts",
			Help:      "Poll attempts used before an editor appeared or the budget ran out.",
			Buckets:   prometheus.LinearBuckets(1, 1, 16),
		}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "postpilot",
			Name:      "upstream_duration_seconds",
			Help:      "Latency of calls to generation, image and trend services.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postpilot",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(m.injections, m.pollAttempts, m.upstream, m.requests)
	return m
}

// Injection records a finished injection. path is "immediate" or "poll".
func (m *Metrics) Injection(path, status string, attempts int) {
	if m == nil {
		return
	}
	m.injections.WithLabelValues(path, status).Inc()
	if path == "poll" {
		m.pollAttempts.Observe(float64(attempts))
	}
}

// Upstream records a call to an external service.
func (m *Metrics) Upstream(service string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstream.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
}

// Request records an HTTP API request.
func (m *Metrics) Request(route, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
