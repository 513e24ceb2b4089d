package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "responder_dispatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the dispatch service.
type Metrics struct {
	DispatchRequests *prometheus.CounterVec   // labels: category, outcome={success,error}
	ResolveErrors    *prometheus.CounterVec   // labels: reason
	SkippedEstimates prometheus.Counter       // unparsable provider durations
	DispatchDuration *prometheus.HistogramVec // labels: category

	// Travel-time provider metrics.
	ProviderRequests  *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration  *prometheus.HistogramVec // labels: provider
	EstimateCache     *prometheus.CounterVec   // labels: result={hit,miss}
	GoogleMapsEnabled prometheus.Gauge

	CatalogStations *prometheus.GaugeVec   // labels: category
	SinkPublishes   *prometheus.CounterVec // labels: sink, outcome={success,error}

	// Kafka intake pipeline metrics.
	IncidentsConsumed   prometheus.Counter
	IncidentErrors      prometheus.Counter
	DispatchRetries     prometheus.Counter
	PipelineRunning     prometheus.Gauge
	BatchSize           prometheus.Histogram
	BatchProcessingTime prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
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
		DispatchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_requests_total",
			Help:      "Dispatch requests by category and outcome.",
		}, []string{"category", "outcome"}),
		ResolveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_errors_total",
			Help:      "Failed dispatches by reason.",
		}, []string{"reason"}),
		SkippedEstimates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_estimates_total",
			Help:      "Travel estimates skipped because the duration had no minute count.",
		}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "End-to-end dispatch duration including the provider call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"category"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Travel-time provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Travel-time provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		EstimateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimate_cache_total",
			Help:      "Travel estimate cache lookups by result.",
		}, []string{"result"}),
		GoogleMapsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "google_maps_enabled",
			Help:      "1 when the Google Distance Matrix provider is enabled, 0 when the straight-line fallback is used.",
		}),
		CatalogStations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_stations",
			Help:      "Stations loaded into the catalog per category.",
		}, []string{"category"}),
		SinkPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_publishes_total",
			Help:      "Dispatch record publishes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		IncidentsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_consumed_total",
			Help:      "Incident messages read from the intake topic.",
		}),
		IncidentErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_errors_total",
			Help:      "Intake messages skipped because they can never be dispatched.",
		}),
		DispatchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_retries_total",
			Help:      "Intake dispatch attempts retried after a transient failure.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the intake pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of incident messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete intake batch cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DispatchRequests,
		m.ResolveErrors,
		m.SkippedEstimates,
		m.DispatchDuration,
		m.ProviderRequests,
		m.ProviderDuration,
		m.EstimateCache,
		m.GoogleMapsEnabled,
		m.CatalogStations,
		m.SinkPublishes,
		m.IncidentsConsumed,
		m.IncidentErrors,
		m.DispatchRetries,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingTime,
	}
}
