// Package metrics provides Prometheus metrics for the fleet earnings ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ledger service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	scoreBuckets     []float64
	registry         prometheus.Registerer

	// Ledger
	eventsRecorded   *prometheus.CounterVec
	earningsAmount   *prometheus.GaugeVec
	ledgerEvents     prometheus.Gauge
	eventsDeclined   prometheus.Counter
	modeMismatches   *prometheus.CounterVec
	rejectedRequests *prometheus.CounterVec

	// Performance
	performanceUpdates prometheus.Counter
	performanceScores  prometheus.Histogram
	historyEntries     prometheus.Gauge
	negativeInputs     prometheus.Counter

	// Notifications
	notificationsRaised    *prometheus.CounterVec
	notificationDispatchEr *prometheus.CounterVec

	// Persistence
	persistWrites  *prometheus.CounterVec
	persistErrors  *prometheus.CounterVec
	persistLatency prometheus.Histogram

	// Scheduler
	dailyResets       prometheus.Counter
	dailyResetErrors  prometheus.Counter
	driversReset      prometheus.Gauge
	lastResetUnix     prometheus.Gauge
	schedulerNextUnix prometheus.Gauge

	// Reconciliation and archive
	reconciliationRuns  prometheus.Counter
	reconciliationDrift *prometheus.CounterVec
	archivedSegments    prometheus.Counter
	archiveErrors       prometheus.Counter

	// Ranking
	rankedDrivers  prometheus.Gauge
	rankingLatency prometheus.Histogram

	// Notification queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Notification workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fleet",
		subsystem:        "ledger",
		histogramBuckets: prometheus.DefBuckets,
		scoreBuckets:     prometheus.LinearBuckets(10, 10, 10),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.eventsRecorded = m.counterVec("events_recorded_total", "Earning events appended to the ledger", "type")
	m.earningsAmount = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "earnings_amount_sum",
		Help:      "Signed sum of recorded earning amounts by type",
	}, []string{"type"})
	m.ledgerEvents = m.gauge("events", "Number of events held in the ledger")
	m.eventsDeclined = m.counter("events_declined_total", "Earnings declined because tracking is paused")
	m.modeMismatches = m.counterVec("mode_mismatch_total", "Operations rejected for the wrong fleet mode", "operation")
	m.rejectedRequests = m.counterVec("rejected_total", "Earning requests rejected by validation", "reason")

	m.performanceUpdates = m.counter("performance_updates_total", "Performance score recomputations")
	m.performanceScores = m.histogram("performance_score", "Distribution of computed performance scores", m.scoreBuckets)
	m.historyEntries = m.gauge("performance_history_entries", "Number of stored performance history entries")
	m.negativeInputs = m.counter("performance_negative_inputs_total", "Score inputs clamped because they were negative")

	m.notificationsRaised = m.counterVec("notifications_total", "Notifications raised by type and priority", "type", "priority")
	m.notificationDispatchEr = m.counterVec("notification_dispatch_errors_total", "Notifications that could not be delivered", "reason")

	m.persistWrites = m.counterVec("persist_writes_total", "Writes to the key-value store", "key")
	m.persistErrors = m.counterVec("persist_errors_total", "Failed writes to the key-value store", "key")
	m.persistLatency = m.histogram("persist_latency_milliseconds", "Key-value store write latency in milliseconds", m.histogramBuckets)

	m.dailyResets = m.counter("daily_resets_total", "Completed midnight resets")
	m.dailyResetErrors = m.counter("daily_reset_errors_total", "Failed midnight resets")
	m.driversReset = m.gauge("drivers_reset", "Drivers zeroed by the last midnight reset")
	m.lastResetUnix = m.gauge("daily_reset_last_unix", "Unix timestamp of the last midnight reset")
	m.schedulerNextUnix = m.gauge("daily_reset_next_unix", "Unix timestamp the scheduler is armed for")

	m.reconciliationRuns = m.counter("reconciliation_runs_total", "Ledger versus snapshot reconciliation runs")
	m.reconciliationDrift = m.counterVec("reconciliation_drift_total", "Snapshot fields found out of sync with the ledger", "field")
	m.archivedSegments = m.counter("archived_segments_total", "Daily event segments uploaded to the archive")
	m.archiveErrors = m.counter("archive_errors_total", "Failed archive uploads")

	m.rankedDrivers = m.gauge("ranked_drivers", "Drivers held in the earnings ranking")
	m.rankingLatency = m.histogram("ranking_query_latency_milliseconds", "Ranking query latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("notification_queue_size", "Current size of the notification queue")
	m.queueCapacity = m.gauge("notification_queue_capacity", "Maximum notification queue capacity")
	m.queueUtilization = m.gauge("notification_queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("notification_queue_enqueue_total", "Notifications enqueued")
	m.queueDequeueRate = m.counter("notification_queue_dequeue_total", "Notifications dequeued")
	m.queueEnqueueErrors = m.counter("notification_queue_enqueue_errors_total", "Notifications rejected by the queue")

	m.workerActiveCount = m.gauge("notification_worker_active_count", "Running notification workers")
	m.workerProcessingLatency = m.histogram("notification_worker_latency_milliseconds", "Notification delivery latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("notification_worker_errors_total", "Notification delivery failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Ledger metrics.

// RecordEarning counts an appended event and its signed amount.
func RecordEarning(eventType string, amount float64) {
	globalManager.eventsRecorded.WithLabelValues(eventType).Inc()
	globalManager.earningsAmount.WithLabelValues(eventType).Add(amount)
}

// UpdateLedgerEvents sets the number of events held by the ledger.
func UpdateLedgerEvents(n int) { globalManager.ledgerEvents.Set(float64(n)) }

// RecordEarningDeclined counts an earning skipped while tracking is paused.
func RecordEarningDeclined() { globalManager.eventsDeclined.Inc() }

// RecordModeMismatch counts an operation called under the wrong fleet mode.
func RecordModeMismatch(operation string) {
	globalManager.modeMismatches.WithLabelValues(operation).Inc()
}

// RecordRejected counts a request rejected by validation.
func RecordRejected(reason string) {
	globalManager.rejectedRequests.WithLabelValues(reason).Inc()
}

// Performance metrics.

// RecordPerformanceUpdate records one score recomputation.
func RecordPerformanceUpdate(score int) {
	globalManager.performanceUpdates.Inc()
	globalManager.performanceScores.Observe(float64(score))
}

// UpdateHistoryEntries sets the number of stored history entries.
func UpdateHistoryEntries(n int) { globalManager.historyEntries.Set(float64(n)) }

// RecordNegativeInput counts a clamped negative score input.
func RecordNegativeInput() { globalManager.negativeInputs.Inc() }

// Notification metrics.

// RecordNotification counts a raised notification.
func RecordNotification(kind, priority string) {
	globalManager.notificationsRaised.WithLabelValues(kind, priority).Inc()
}

// RecordNotificationDispatchError counts an undeliverable notification.
func RecordNotificationDispatchError(reason string) {
	globalManager.notificationDispatchEr.WithLabelValues(reason).Inc()
}

// Persistence metrics.

// RecordPersist records a store write for key.
func RecordPersist(key string, latencyMs float64, err error) {
	globalManager.persistWrites.WithLabelValues(key).Inc()
	globalManager.persistLatency.Observe(latencyMs)
	if err != nil {
		globalManager.persistErrors.WithLabelValues(key).Inc()
	}
}

// Scheduler metrics.

// RecordDailyReset records a completed midnight reset.
func RecordDailyReset(drivers int, unix int64) {
	globalManager.dailyResets.Inc()
	globalManager.driversReset.Set(float64(drivers))
	globalManager.lastResetUnix.Set(float64(unix))
}

// RecordDailyResetError counts a failed midnight reset.
func RecordDailyResetError() { globalManager.dailyResetErrors.Inc() }

// UpdateSchedulerNext sets the time the scheduler is armed for.
func UpdateSchedulerNext(unix int64) { globalManager.schedulerNextUnix.Set(float64(unix)) }

// Reconciliation and archive metrics.

// RecordReconciliation records a reconciliation run and the drifted fields it found.
func RecordReconciliation(fields []string) {
	globalManager.reconciliationRuns.Inc()
	for _, f := range fields {
		globalManager.reconciliationDrift.WithLabelValues(f).Inc()
	}
}

// RecordArchive records an archive upload attempt.
func RecordArchive(err error) {
	if err != nil {
		globalManager.archiveErrors.Inc()
		return
	}
	globalManager.archivedSegments.Inc()
}

// Queue metrics.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Worker metrics.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker delivery latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Ranking metrics.

// UpdateRankedDrivers sets the number of ranked drivers.
func UpdateRankedDrivers(n int) { globalManager.rankedDrivers.Set(float64(n)) }

// RecordRankingQueryLatency records a rank or top-N query latency.
func RecordRankingQueryLatency(latencyMs float64) {
	globalManager.rankingLatency.Observe(latencyMs)
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
