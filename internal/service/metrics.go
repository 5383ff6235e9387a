package service

import (
	"net/http"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selection outcomes used as metric labels
const (
	OutcomeSelected      = "selected"
	OutcomeNoConnection  = "no_connection"
	OutcomeConfiguration = "configuration_error"
	OutcomeCancelled     = "cancelled"
)

// Metrics holds the Prometheus collectors of the selector and the lookup
// service. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal        *prometheus.CounterVec
	probeDuration      *prometheus.HistogramVec
	selectionsTotal    *prometheus.CounterVec
	selectionDuration  prometheus.Histogram
	selectionAttempts  prometheus.Histogram
	lookupsTotal       *prometheus.CounterVec
	replicasConfigured prometheus.Gauge
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giftcert_probe_attempts_total",
				Help: "Replica liveness probes by role and result",
			},
			[]string{"role", "result"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "giftcert_probe_duration_seconds",
				Help:    "Replica liveness probe duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),
		selectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giftcert_selections_total",
				Help: "Connection selections by outcome",
			},
			[]string{"outcome"},
		),
		selectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "giftcert_selection_duration_seconds",
				Help:    "Time spent selecting a live connection",
				Buckets: prometheus.DefBuckets,
			},
		),
		selectionAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "giftcert_selection_attempts",
				Help:    "Probes performed per selection",
				Buckets: prometheus.LinearBuckets(0, 1, 8),
			},
		),
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giftcert_lookups_total",
				Help: "Certificate balance lookups by result",
			},
			[]string{"result"},
		),
		replicasConfigured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "giftcert_replicas_configured",
				Help: "Number of replicas in the last loaded list",
			},
		),
	}

	m.registry.MustRegister(
		m.probesTotal,
		m.probeDuration,
		m.selectionsTotal,
		m.selectionDuration,
		m.selectionAttempts,
		m.lookupsTotal,
		m.replicasConfigured,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordProbe records one probe attempt
func (m *Metrics) RecordProbe(role domain.ReplicaRole, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.probesTotal.WithLabelValues(role.String(), result).Inc()
	m.probeDuration.WithLabelValues(role.String()).Observe(duration.Seconds())
}

// RecordSelection records the outcome of one Select call
func (m *Metrics) RecordSelection(outcome string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(outcome).Inc()
	m.selectionDuration.Observe(duration.Seconds())
	m.selectionAttempts.Observe(float64(attempts))
}

// RecordLookup records the outcome of one certificate lookup
func (m *Metrics) RecordLookup(result string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(result).Inc()
}

// SetReplicas records the size of the current replica list
func (m *Metrics) SetReplicas(n int) {
	if m == nil {
		return
	}
	m.replicasConfigured.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
