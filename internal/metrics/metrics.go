// Package metrics provides Prometheus metrics for the dashboard backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	LaunchesTotal    *prometheus.CounterVec
	TasksLaunched    prometheus.Counter
	SweepsTotal      *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
	TaskTransitions  *prometheus.CounterVec
	LogFetchFailures prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_requests_total",
				Help: "Total number of API requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		LaunchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_launches_total",
				Help: "Total number of launch operations by result.",
			},
			[]string{"result"},
		),
		TasksLaunched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_tasks_launched_total",
				Help: "Total number of remote worker tasks started.",
			},
		),
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_reconcile_sweeps_total",
				Help: "Total reconciliation sweeps by result.",
			},
			[]string{"result"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dashboard_reconcile_sweep_duration_seconds",
				Help:    "Duration of reconciliation sweeps.",
				Buckets: prometheus.DefBuckets,
			},
		),
		TaskTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_task_transitions_total",
				Help: "Task status transitions applied by the reconciler.",
			},
			[]string{"to"},
		),
		LogFetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_log_fetch_failures_total",
				Help: "Log fetches that failed during reconciliation (fail-soft).",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.LaunchesTotal)
	reg.MustRegister(m.TasksLaunched)
	reg.MustRegister(m.SweepsTotal)
	reg.MustRegister(m.SweepDuration)
	reg.MustRegister(m.TaskTransitions)
	reg.MustRegister(m.LogFetchFailures)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// RecordTransition increments the transition counter for a target status.
func (m *Metrics) RecordTransition(to string) {
	m.TaskTransitions.WithLabelValues(to).Inc()
}

// ObserveDuration records request duration.
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}
