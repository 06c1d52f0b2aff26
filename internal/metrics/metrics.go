// Package metrics provides Prometheus counters for extraction runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "glean"

// Strategy attempt outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeShort    = "short"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
)

// Metrics holds the collectors of one private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	strategyAttempts   *prometheus.CounterVec
	imageDownloads     *prometheus.CounterVec
	enrichments        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Total number of extractions by content type and winning source",
			},
			[]string{"content_type", "source"},
		),
		extractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Duration of extractions in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"content_type"},
		),
		strategyAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_attempts_total",
				Help:      "Total number of strategy attempts by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		imageDownloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_downloads_total",
				Help:      "Total number of image downloads by outcome",
			},
			[]string{"outcome"},
		),
		enrichments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichments_total",
				Help:      "Total number of README enrichment attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry exposes the private registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordExtraction records a finished extraction.
func (m *Metrics) RecordExtraction(contentType, source string, seconds float64) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(contentType, source).Inc()
	m.extractionDuration.WithLabelValues(contentType).Observe(seconds)
}

// RecordAttempt records one strategy attempt.
func (m *Metrics) RecordAttempt(strategy, outcome string) {
	if m == nil {
		return
	}
	m.strategyAttempts.WithLabelValues(strategy, outcome).Inc()
}

// RecordImageDownload records one image download.
func (m *Metrics) RecordImageDownload(outcome string) {
	if m == nil {
		return
	}
	m.imageDownloads.WithLabelValues(outcome).Inc()
}

// RecordEnrichment records one README lookup.
func (m *Metrics) RecordEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(outcome).Inc()
}

// WriteFile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
