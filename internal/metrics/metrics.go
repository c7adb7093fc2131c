// Package metrics exposes the agents' Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boltzchat"

// Turn outcomes.
const (
	OutcomeReplied   = "replied"
	OutcomeIssues    = "issues"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// Metrics holds every collector the agents report. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns             *prometheus.CounterVec
	validationIssues  prometheus.Counter
	predictionLatency *prometheus.HistogramVec
	lookups           *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New(agent string) *Metrics {
	labels := prometheus.Labels{"agent": agent}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "turns_total",
			Help:        "Conversation turns handled, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		validationIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "validation_issues_total",
			Help:        "Issues reported to users by the request validator.",
			ConstLabels: labels,
		}),
		predictionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "prediction_duration_seconds",
			Help:        "Latency of calls to the structure prediction service.",
			ConstLabels: labels,
			Buckets:     []float64{.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		}, []string{"status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "election_lookups_total",
			Help:        "Election result lookups, by whether any rows matched.",
			ConstLabels: labels,
		}, []string{"found"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		m.turns, m.validationIssues, m.predictionLatency, m.lookups,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Turn counts one finished turn.
func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// ValidationIssues counts issues sent back to a user.
func (m *Metrics) ValidationIssues(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.validationIssues.Add(float64(n))
}

// Prediction records the latency of one prediction call. status is "ok",
// "rejected" for a non-200 answer, or "error".
func (m *Metrics) Prediction(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.predictionLatency.WithLabelValues(status).Observe(d.Seconds())
}

// Lookup counts one election lookup.
func (m *Metrics) Lookup(found bool) {
	if m == nil {
		return
	}
	v := "false"
	if found {
		v = "true"
	}
	m.lookups.WithLabelValues(v).Inc()
}
