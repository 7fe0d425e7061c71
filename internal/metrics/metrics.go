// Package metrics is the Metrics Sink (spec §2 component 1): named
// counters, gauges, and histograms used by the browser pool and the
// extraction pipeline, and served on the metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink groups every series the core emits, registered against a private
// registry so tests can spin up isolated instances without colliding with
// the global Prometheus registry.
type Sink struct {
	Registry *prometheus.Registry

	Launches            prometheus.Counter
	LaunchFailures       prometheus.Counter
	Disconnects         prometheus.Counter
	Restarts            *prometheus.CounterVec // label: reason
	CircuitOpen         prometheus.Gauge
	CircuitTrips        prometheus.Counter
	QueueDepth          prometheus.Gauge
	ActiveExtractions   prometheus.Gauge
	Extractions         *prometheus.CounterVec // labels: status, error_type
	ExtractionDuration  *prometheus.HistogramVec // label: status
	QueueWait           prometheus.Histogram
	ContextCreation     prometheus.Histogram
	ManifestDetection   prometheus.Histogram
}

// New creates a Sink registered against a fresh registry.
func New() *Sink {
	reg := prometheus.NewRegistry()

	s := &Sink{
		Registry: reg,
		Launches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsextract_browser_launches_total",
			Help: "Total browser launch attempts that succeeded.",
		}),
		LaunchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsextract_browser_launch_failures_total",
			Help: "Total browser launch attempts that failed.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsextract_browser_disconnects_total",
			Help: "Total unexpected browser disconnect events.",
		}),
		Restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsextract_browser_restarts_total",
			Help: "Total browser restarts, labelled by reason.",
		}, []string{"reason"}),
		CircuitOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsextract_circuit_open",
			Help: "1 if the launch circuit breaker is open, else 0.",
		}),
		CircuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsextract_circuit_trips_total",
			Help: "Total times the circuit breaker tripped open.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsextract_queue_depth",
			Help: "Extractions waiting for admission.",
		}),
		ActiveExtractions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsextract_active_extractions",
			Help: "Extractions currently admitted and running.",
		}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsextract_extractions_total",
			Help: "Total extractions, labelled by outcome status and error type.",
		}, []string{"status", "error_type"}),
		ExtractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hlsextract_extraction_duration_seconds",
			Help:    "Extraction wall-clock duration, labelled by outcome status.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"status"}),
		QueueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlsextract_queue_wait_seconds",
			Help:    "Time spent waiting for pool admission.",
			Buckets: prometheus.DefBuckets,
		}),
		ContextCreation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlsextract_context_creation_seconds",
			Help:    "Time spent creating a fresh extraction context.",
			Buckets: prometheus.DefBuckets,
		}),
		ManifestDetection: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlsextract_manifest_detection_seconds",
			Help:    "Time from admission to the manifest request being sighted.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
	}

	reg.MustRegister(
		s.Launches, s.LaunchFailures, s.Disconnects, s.Restarts,
		s.CircuitOpen, s.CircuitTrips, s.QueueDepth, s.ActiveExtractions,
		s.Extractions, s.ExtractionDuration, s.QueueWait, s.ContextCreation,
		s.ManifestDetection,
	)

	return s
}
