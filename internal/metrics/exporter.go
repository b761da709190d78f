// Package metrics exports hub counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultPrefix = "validateme"

// Tick sources.
const (
	SourceValidator = "validator"
	SourceDirect    = "direct"
)

// Exporter owns the hub's collectors and the registry they are served from.
type Exporter struct {
	registry *prometheus.Registry

	validatorsConnected prometheus.Gauge
	inflightTasks       prometheus.Gauge
	ticks               *prometheus.CounterVec
	latency             *prometheus.HistogramVec
	violations          *prometheus.CounterVec
	dispatched          prometheus.Counter
	abandoned           *prometheus.CounterVec
	signups             *prometheus.CounterVec
}

// NewExporter creates an Exporter on a fresh registry. An empty prefix uses DefaultPrefix.
func NewExporter(prefix string) *Exporter {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		validatorsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_validators_connected",
			Help: "Validators with an open websocket session",
		}),
		inflightTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_inflight_tasks",
			Help: "Validation tasks awaiting a result",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_ticks_total",
			Help: "Recorded ticks by status and source",
		}, []string{"status", "source"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_probe_latency_seconds",
			Help:    "Latency of recorded good ticks",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_protocol_violations_total",
			Help: "Dropped messages by reason",
		}, []string{"reason"}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_tasks_dispatched_total",
			Help: "Validation tasks sent to validators",
		}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_tasks_abandoned_total",
			Help: "Validation tasks abandoned before a result arrived",
		}, []string{"reason"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_signups_total",
			Help: "Signup attempts by result",
		}, []string{"result"}),
	}

	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		e.validatorsConnected,
		e.inflightTasks,
		e.ticks,
		e.latency,
		e.violations,
		e.dispatched,
		e.abandoned,
		e.signups,
	)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) SetValidatorsConnected(n int) {
	e.validatorsConnected.Set(float64(n))
}

func (e *Exporter) SetInflightTasks(n int) {
	e.inflightTasks.Set(float64(n))
}

// ObserveTick counts a recorded tick. latencySeconds is observed for good ticks only.
func (e *Exporter) ObserveTick(status, source string, latencySeconds float64) {
	e.ticks.WithLabelValues(status, source).Inc()
	if status == "good" {
		e.latency.WithLabelValues(source).Observe(latencySeconds)
	}
}

func (e *Exporter) ProtocolViolation(reason string) {
	e.violations.WithLabelValues(reason).Inc()
}

func (e *Exporter) TaskDispatched() {
	e.dispatched.Inc()
}

func (e *Exporter) TaskAbandoned(reason string) {
	e.abandoned.WithLabelValues(reason).Inc()
}

func (e *Exporter) Signup(result string) {
	e.signups.WithLabelValues(result).Inc()
}
