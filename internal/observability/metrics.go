package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shef_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for decode
// and encode runs.
type Metrics struct {
	BlocksDecoded  *prometheus.CounterVec // labels: outcome={decoded,unresolved,malformed,unsupported}
	SamplesDecoded prometheus.Counter
	SeriesStored   *prometheus.CounterVec // labels: outcome={success,error}
	FilesProcessed *prometheus.CounterVec // labels: outcome={done,failed}

	ProductsConsumed prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Encode path.
	MessagesEncoded *prometheus.CounterVec // labels: region
	SectionsSkipped prometheus.Counter

	// CWMS Data API.
	CDARequests *prometheus.CounterVec   // labels: method={store,group}, outcome={success,error}
	CDADuration *prometheus.HistogramVec // labels: method
}

func newMetrics() *Metrics {
	return &Metrics{
		BlocksDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "SHEF blocks processed by outcome.",
		}, []string{"outcome"}),
		SamplesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_decoded_total",
			Help:      "Samples decoded from resolved SHEF blocks.",
		}),
		SeriesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_stored_total",
			Help:      "Time series handed to the sink by outcome.",
		}, []string{"outcome"}),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_files_total",
			Help:      "Inbox files processed by outcome.",
		}, []string{"outcome"}),
		ProductsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_consumed_total",
			Help:      "Total SHEF products read from the source topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of products per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-decode-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		MessagesEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_encoded_total",
			Help:      "SHEF messages written by region.",
		}, []string{"region"}),
		SectionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_skipped_total",
			Help:      "Station parameters left out of encoded messages.",
		}),
		CDARequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cda_requests_total",
			Help:      "CWMS Data API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		CDADuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cda_request_duration_seconds",
			Help:      "CWMS Data API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BlocksDecoded,
		m.SamplesDecoded,
		m.SeriesStored,
		m.FilesProcessed,
		m.ProductsConsumed,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.MessagesEncoded,
		m.SectionsSkipped,
		m.CDARequests,
		m.CDADuration,
	}
}
