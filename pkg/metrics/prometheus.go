// Package metrics provides Prometheus metrics for the Roost telemetry service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Telemetry ingest
	telemetryIngested prometheus.Counter
	telemetryRejected prometheus.Counter
	ingestDuplicates  prometheus.Counter

	// Inference gateway
	inferenceAttempts  *prometheus.CounterVec
	inferenceLatency   prometheus.Histogram
	fallbackDepth      prometheus.Histogram
	inferenceErrors    *prometheus.CounterVec
	emptyResponses     prometheus.Counter
	modelNotFoundSkips prometheus.Counter

	// Imagery
	imageFetches     *prometheus.CounterVec
	imagesPruned     prometheus.Counter
	imageFetchErrors prometheus.Counter

	// Leaderboard
	leaderboardBuilds        prometheus.Counter
	leaderboardBuildDuration prometheus.Histogram
	leaderboardEntries       prometheus.Gauge

	// Ingest queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	workerErrors       prometheus.Counter
	workerLatency      prometheus.Histogram

	// Runtime health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry sets the registry collectors are registered against.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Custom registry avoids the default Go runtime collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton metrics registry

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "roost",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000, 60000},
	}, []string{"endpoint", "method"})

	m.telemetryIngested = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "telemetry_ingested_total",
		Help:      "Telemetry records accepted and stored.",
	})
	m.telemetryRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "telemetry_rejected_total",
		Help:      "Telemetry submissions rejected before storage.",
	})
	m.ingestDuplicates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ingest_duplicates_total",
		Help:      "Telemetry messages dropped as redeliveries.",
	})

	m.inferenceAttempts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "inference_attempts_total",
		Help:      "Upstream generation attempts by model and outcome.",
	}, []string{"model", "outcome"})
	m.inferenceLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "inference_latency_ms",
		Help:      "End-to-end generation latency including fallback attempts.",
		Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 45000},
	})
	m.fallbackDepth = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "inference_fallback_depth",
		Help:      "Number of candidate models tried per generation request.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
	m.inferenceErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "inference_errors_total",
		Help:      "Generation failures by error kind.",
	}, []string{"kind"})
	m.emptyResponses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "inference_empty_responses_total",
		Help:      "Upstream responses that parsed but carried no usable text.",
	})
	m.modelNotFoundSkips = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "inference_model_not_found_total",
		Help:      "Candidates skipped because the upstream reported 404.",
	})

	m.imageFetches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "image_fetches_total",
		Help:      "Image fetches by source (url or device).",
	}, []string{"source"})
	m.imagesPruned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "images_pruned_total",
		Help:      "Stored device images deleted by retention.",
	})
	m.imageFetchErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "image_fetch_errors_total",
		Help:      "Failed image fetches.",
	})

	m.leaderboardBuilds = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_builds_total",
		Help:      "Leaderboard computations served.",
	})
	m.leaderboardBuildDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_build_duration_ms",
		Help:      "Leaderboard computation latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	m.leaderboardEntries = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_entries",
		Help:      "Entries in the most recently built leaderboard.",
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_size",
		Help:      "Telemetry records waiting in the ingest queue.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_capacity",
		Help:      "Configured capacity of the ingest queue.",
	})
	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ingest_queue_enqueue_errors_total",
		Help:      "Enqueue attempts rejected by the ingest queue.",
	})
	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ingest_worker_errors_total",
		Help:      "Telemetry records the worker pool failed to store.",
	})
	m.workerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "ingest_worker_latency_ms",
		Help:      "Per-record ingest worker latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 1000},
	})

	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "system_memory_usage_bytes",
		Help:      "Allocated heap bytes sampled from the runtime.",
	})
	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "system_goroutines",
		Help:      "Live goroutines sampled from the runtime.",
	})

	return m
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers recording against the global manager.

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}

func RecordTelemetryIngested() { globalManager.telemetryIngested.Inc() }
func RecordTelemetryRejected() { globalManager.telemetryRejected.Inc() }
func RecordIngestDuplicate()  { globalManager.ingestDuplicates.Inc() }

func RecordInferenceAttempt(model, outcome string) {
	globalManager.inferenceAttempts.WithLabelValues(model, outcome).Inc()
}

func RecordInferenceLatency(ms float64) { globalManager.inferenceLatency.Observe(ms) }
func RecordFallbackDepth(depth int)     { globalManager.fallbackDepth.Observe(float64(depth)) }

func RecordInferenceError(kind string) {
	globalManager.inferenceErrors.WithLabelValues(kind).Inc()
}

func RecordEmptyResponse()     { globalManager.emptyResponses.Inc() }
func RecordModelNotFoundSkip() { globalManager.modelNotFoundSkips.Inc() }

func RecordImageFetch(source string) {
	globalManager.imageFetches.WithLabelValues(source).Inc()
}

func RecordImagesPruned(n int) { globalManager.imagesPruned.Add(float64(n)) }
func RecordImageFetchError()   { globalManager.imageFetchErrors.Inc() }

func RecordLeaderboardBuild(ms float64, entries int) {
	globalManager.leaderboardBuilds.Inc()
	globalManager.leaderboardBuildDuration.Observe(ms)
	globalManager.leaderboardEntries.Set(float64(entries))
}

func UpdateQueueSize(n int)       { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)   { globalManager.queueCapacity.Set(float64(n)) }
func RecordQueueEnqueueError()    { globalManager.queueEnqueueErrors.Inc() }
func RecordWorkerError()          { globalManager.workerErrors.Inc() }
func RecordWorkerLatency(ms float64) { globalManager.workerLatency.Observe(ms) }

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutineCount.Set(float64(n)) }
