package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wave_cache"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// frame-cache run.
type Metrics struct {
	// Fetch stage.
	FetchRequests *prometheus.CounterVec   // labels: product, outcome={success,empty,error}
	FetchRetries  prometheus.Counter       // attempts beyond the first
	FetchDuration *prometheus.HistogramVec // labels: product

	// Transform stage.
	SamplesDropped   *prometheus.CounterVec // labels: reason
	StationsExcluded *prometheus.CounterVec // labels: reason={configured,no_data,no_overlap}
	StationsActive   prometheus.Gauge
	FramesBuilt      prometheus.Gauge

	// Export stage.
	NonFiniteCoerced prometheus.Counter
	ArtifactBytes    prometheus.Gauge

	RunDuration          prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Remote series fetches by product and outcome.",
		}, []string{"product", "outcome"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts retried after a transient failure.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Remote API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"product"}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Raw samples discarded during alignment, by reason.",
		}, []string{"reason"}),
		StationsExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_excluded_total",
			Help:      "Stations left out of the frame cache, by reason.",
		}, []string{"reason"}),
		StationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_active",
			Help:      "Stations present in the last frame cache.",
		}),
		FramesBuilt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_built",
			Help:      "Frames in the last frame cache.",
		}),
		NonFiniteCoerced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonfinite_coerced_total",
			Help:      "Non-finite numbers written as null in the artifact.",
		}),
		ArtifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of the last exported artifact.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-transform-export run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote an artifact.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.SamplesDropped,
		m.StationsExcluded,
		m.StationsActive,
		m.FramesBuilt,
		m.NonFiniteCoerced,
		m.ArtifactBytes,
		m.RunDuration,
		m.LastSuccessTimestamp,
	}
}

// WriteTextfile writes every metric in the default registry to path in the
// text exposition format, for scraping by a node-exporter textfile collector.
// A batch run has no /metrics endpoint of its own.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
