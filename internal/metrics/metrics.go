// Package metrics exposes the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes recorded by the scheduler
const (
	OutcomeScheduled = "scheduled"
	OutcomeFailed    = "failed"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	optimization  *prometheus.HistogramVec
	batches       *prometheus.CounterVec
	scheduledJobs prometheus.Counter
}

// New creates the collectors on a dedicated registry that also carries the
// Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridsynapse_jobs_submitted_total",
			Help: "Total number of jobs submitted for scheduling",
		}),
		optimization: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridsynapse_optimization_seconds",
			Help:    "Solver wall clock time per optimization",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"status"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridsynapse_scheduler_batches_total",
			Help: "Scheduler batches by outcome",
		}, []string{"outcome"}),
		scheduledJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridsynapse_scheduled_jobs_total",
			Help: "Total number of jobs placed by the scheduler",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsSubmitted,
		m.optimization,
		m.batches,
		m.scheduledJobs,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// JobSubmitted counts an accepted job
func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmitted.Inc()
}

// ObserveOptimization records the solve time under the solver status.
// Only the status label before any ":" detail is used.
func (m *Metrics) ObserveOptimization(status string, solveTime time.Duration) {
	if m == nil {
		return
	}
	label, _, _ := strings.Cut(status, ":")
	m.optimization.WithLabelValues(label).Observe(solveTime.Seconds())
}

// BatchProcessed counts a scheduler batch and the jobs it placed
func (m *Metrics) BatchProcessed(outcome string, scheduled int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.scheduledJobs.Add(float64(scheduled))
}
