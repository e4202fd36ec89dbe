package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "windfield"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// wind-field service.
type Metrics struct {
	RequestsConsumed prometheus.Counter
	FieldsProduced   prometheus.Counter
	BuildErrors      prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Field generation metrics.
	FieldBuildDuration prometheus.Histogram
	GridCellsGenerated prometheus.Counter
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss}
	HTTPFieldRequests  *prometheus.CounterVec // labels: outcome={success,invalid,error}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RequestsConsumed,
		m.FieldsProduced,
		m.BuildErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.FieldBuildDuration,
		m.GridCellsGenerated,
		m.CacheLookups,
		m.HTTPFieldRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_consumed_total",
			Help:      "Total scenario requests read from the source topic.",
		}),
		FieldsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_produced_total",
			Help:      "Total wind fields written to the sink topic.",
		}),
		BuildErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_errors_total",
			Help:      "Total scenario requests that failed to build.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of scenario requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-build-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		FieldBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "field_build_duration_seconds",
			Help:      "Time to generate, bias, perturb and encode one wind field.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		GridCellsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cells_generated_total",
			Help:      "Total u/v cell pairs generated across all levels.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Field cache lookups by result.",
		}, []string{"result"}),
		HTTPFieldRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_field_requests_total",
			Help:      "Field requests served over HTTP by outcome.",
		}, []string{"outcome"}),
	}
}
