// Package metrics provides Prometheus metrics for the playstats service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Accrual
	playsAccrued     prometheus.Counter
	accrualFailures  *prometheus.CounterVec
	historyAppends   prometheus.Counter
	eventsDuplicate  prometheus.Counter
	trackedGroups    prometheus.Gauge
	adminIncrements  prometheus.Counter
	leaderboardReads *prometheus.CounterVec

	// Storage
	storageLatency *prometheus.HistogramVec
	storageErrors  *prometheus.CounterVec

	// Queue
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Kafka
	kafkaMessages *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// DefaultLatencyBuckets spans sub-millisecond memory calls to multi-second
// storage timeouts. Every latency metric is observed in milliseconds.
var DefaultLatencyBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "playstats",
		subsystem:        "groups",
		histogramBuckets: DefaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.playsAccrued = auto.NewCounter(m.counterOpts("plays_accrued_total",
		"Successful play count increments"))
	m.accrualFailures = auto.NewCounterVec(m.counterOpts("accrual_failures_total",
		"Absorbed failures on the play accrual path by component"), []string{"component"})
	m.historyAppends = auto.NewCounter(m.counterOpts("history_appends_total",
		"Play records appended to history"))
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total",
		"Play events dropped as duplicates"))
	m.trackedGroups = auto.NewGauge(m.gaugeOpts("tracked_groups",
		"Groups with a nonzero play count"))
	m.adminIncrements = auto.NewCounter(m.counterOpts("admin_increments_total",
		"Increments issued through the administrative entry point"))
	m.leaderboardReads = auto.NewCounterVec(m.counterOpts("leaderboard_queries_total",
		"Leaderboard queries by kind"), []string{"kind"})

	m.storageLatency = auto.NewHistogramVec(m.histogramOpts("storage_latency_milliseconds",
		"Storage call latency in milliseconds"), []string{"backend", "op"})
	m.storageErrors = auto.NewCounterVec(m.counterOpts("storage_errors_total",
		"Failed storage calls"), []string{"backend", "op"})

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum play event queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current play event backlog"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Play events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Play events dequeued"))
	m.queueEnqueueErrors = auto.NewCounterVec(m.counterOpts("queue_enqueue_errors_total",
		"Rejected enqueue attempts by reason"), []string{"reason"})

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Accrual workers running"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time spent accruing one play event"))

	m.kafkaMessages = auto.NewCounterVec(m.counterOpts("kafka_messages_total",
		"Kafka messages consumed by outcome"), []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordPlayAccrued increments the successful accrual counter.
func RecordPlayAccrued() { globalManager.playsAccrued.Inc() }

// RecordAccrualFailure counts an absorbed failure for component ("counter" or "history").
func RecordAccrualFailure(component string) {
	globalManager.accrualFailures.WithLabelValues(component).Inc()
}

// RecordHistoryAppend increments the history append counter.
func RecordHistoryAppend() { globalManager.historyAppends.Inc() }

// RecordEventDuplicate increments the duplicate play events counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// UpdateTrackedGroups sets the number of ranked groups.
func UpdateTrackedGroups(count int) { globalManager.trackedGroups.Set(float64(count)) }

// RecordAdminIncrement counts administrative increments.
func RecordAdminIncrement() { globalManager.adminIncrements.Inc() }

// RecordLeaderboardQuery counts a leaderboard read ("top" or "rank").
func RecordLeaderboardQuery(kind string) {
	globalManager.leaderboardReads.WithLabelValues(kind).Inc()
}

// RecordStorageLatency observes the latency of a storage call.
func RecordStorageLatency(backend, op string, latencyMs float64) {
	globalManager.storageLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStorageError counts a failed storage call.
func RecordStorageError(backend, op string) {
	globalManager.storageErrors.WithLabelValues(backend, op).Inc()
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records the time spent on one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordKafkaMessage counts a consumed Kafka message by outcome.
func RecordKafkaMessage(outcome string) {
	globalManager.kafkaMessages.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
