// Package metrics exposes Prometheus instruments for the work order
// lifecycle: saga runs, compensation failures, rejected messages and service
// use cases.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/alexanderramin/workorders/internal/completion"
	"github.com/alexanderramin/workorders/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests and multiple servers do not collide on
// the global one.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.HistogramVec
	compensations *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	useCases      *prometheus.HistogramVec
	useCaseErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workorders_saga_run_duration_seconds",
			Help:    "Duration of completion and cancellation runs by outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workorders_compensation_failures_total",
			Help: "Compensations that failed and left external state behind",
		}, []string{"step"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workorders_messages_rejected_total",
			Help: "Lab messages refused by validation, per failed rule",
		}, []string{"kind", "rule"}),
		useCases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workorders_use_case_duration_seconds",
			Help:    "Duration of service use cases",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		useCaseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workorders_use_case_errors_total",
			Help: "Service use cases that returned an error",
		}, []string{"use_case"}),
	}
	m.registry.MustRegister(
		m.runs, m.compensations, m.rejections, m.useCases, m.useCaseErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

var (
	_ completion.RunRecorder    = (*Metrics)(nil)
	_ service.RejectionRecorder = (*Metrics)(nil)
	_ service.UseCaseObserver   = (*Metrics)(nil)
)

func (m *Metrics) ObserveRun(kind, outcome string, d time.Duration) {
	m.runs.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

func (m *Metrics) CompensationFailed(step string) {
	m.compensations.WithLabelValues(step).Inc()
}

func (m *Metrics) MessageRejected(kind string, rule completion.Rule) {
	m.rejections.WithLabelValues(kind, string(rule)).Inc()
}

func (m *Metrics) ObserveUseCase(_ context.Context, event service.UseCaseEvent) {
	m.useCases.WithLabelValues(event.Name).Observe(event.Duration.Seconds())
	if !event.Success {
		m.useCaseErrors.WithLabelValues(event.Name).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
