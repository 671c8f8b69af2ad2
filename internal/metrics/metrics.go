// Package metrics defines the Prometheus collectors for the ingestion
// pipeline and exposes the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	EventsTotal      *prometheus.CounterVec
	RejectionsTotal  *prometheus.CounterVec
	AnalyzerFailures prometheus.Counter
	QueueDropsTotal  prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// New creates the collectors and registers them on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the collectors and registers them on reg.
// Tests pass a fresh prometheus.NewRegistry.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_events_total",
				Help: "Total processed ingestion events by kind and outcome (delivered, rejected, failed).",
			},
			[]string{"kind", "outcome"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_rejections_total",
				Help: "Total validation rejections by reason (too_large, unsupported_format).",
			},
			[]string{"reason"},
		),
		AnalyzerFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analyzer_failures_total",
				Help: "Total failed analysis backend calls.",
			},
		),
		QueueDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_queue_drops_total",
				Help: "Total events rejected because the ingestion queue was full.",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_queue_depth",
				Help: "Number of events waiting in the ingestion queue.",
			},
		),
	}

	reg.MustRegister(
		m.EventsTotal,
		m.RejectionsTotal,
		m.AnalyzerFailures,
		m.QueueDropsTotal,
		m.QueueDepth,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
