// Package metrics provides Prometheus metrics for reference resolution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reference outcomes used as the "outcome" label.
const (
	OutcomeResolved   = "resolved"
	OutcomeDelayed    = "delayed"
	OutcomeUnresolved = "unresolved"
	OutcomeInvalid    = "invalid"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ReferencesTotal  *prometheus.CounterVec
	DelayedQueueSize prometheus.Gauge
	PhaseDuration    *prometheus.HistogramVec
	IndexEntries     *prometheus.GaugeVec
	FilesScanned     *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ReferencesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vamdeps_references_total",
				Help: "Reference match attempts by lookup kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		DelayedQueueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vamdeps_delayed_queue_size",
				Help: "Ambiguous references waiting for batch resolution",
			},
		),

		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vamdeps_phase_duration_seconds",
				Help:    "Duration of pipeline phases in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"phase"},
		),

		IndexEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vamdeps_index_entries",
				Help: "Distinct keys in each lookup index",
			},
			[]string{"index"},
		),

		FilesScanned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vamdeps_files_scanned",
				Help: "Files and packages found by the last scan",
			},
			[]string{"kind"},
		),
	}
}

// RecordReference counts one match attempt.
func (m *Metrics) RecordReference(kind, outcome string) {
	if m == nil {
		return
	}
	m.ReferencesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetDelayedQueueSize reports the current delayed queue length.
func (m *Metrics) SetDelayedQueueSize(n int) {
	if m == nil {
		return
	}
	m.DelayedQueueSize.Set(float64(n))
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetIndexEntries reports the key count of a lookup index.
func (m *Metrics) SetIndexEntries(index string, n int) {
	if m == nil {
		return
	}
	m.IndexEntries.WithLabelValues(index).Set(float64(n))
}

// SetFilesScanned reports scan totals.
func (m *Metrics) SetFilesScanned(kind string, n int) {
	if m == nil {
		return
	}
	m.FilesScanned.WithLabelValues(kind).Set(float64(n))
}

// WriteToFile writes every metric in text exposition format, suitable for a
// node_exporter textfile collector.
func (m *Metrics) WriteToFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
