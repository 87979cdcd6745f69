package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domainErrors "ifsync/internal/domain/errors"
)

var (
	// lifecycle operations
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifsync_operations_total",
			Help: "Total number of lifecycle operations by result code",
		},
		[]string{"operation", "code"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ifsync_operation_duration_seconds",
			Help:    "Time spent in each lifecycle operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// agent reconciliation
	InterfacesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifsync_interfaces_processed_total",
			Help: "Total number of desired interfaces processed by the agent",
		},
		[]string{"action", "status"}, // configure|delete, success|failed
	)

	InterfaceProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ifsync_interface_processing_duration_seconds",
			Help:    "Time spent processing each desired interface",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action", "status"},
	)

	// polling
	PollingCycleCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ifsync_polling_cycles_total",
			Help: "Total number of polling cycles executed",
		},
	)

	PollingCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ifsync_polling_cycle_duration_seconds",
			Help:    "Time spent in each polling cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	PollingBackoffLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ifsync_polling_backoff_level",
			Help: "Current backoff level (0 = no backoff)",
		},
	)

	// database
	DBConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ifsync_db_connection_status",
			Help: "Database connection status (1 = connected, 0 = disconnected)",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ifsync_db_query_duration_seconds",
			Help:    "Time spent executing database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type"}, // get_pending, update_status, etc.
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ifsync_errors_total",
			Help: "Total number of errors encountered by code",
		},
		[]string{"code"},
	)

	AgentInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ifsync_agent_info",
			Help: "Agent information",
		},
		[]string{"version", "backend", "node_name"},
	)
)

// RecordOperation records one finished lifecycle operation. Its signature
// matches lifecycle.Observer.
func RecordOperation(operation string, err error, elapsed time.Duration) {
	code := domainErrors.CodeOf(err)
	OperationsTotal.WithLabelValues(operation, code.String()).Inc()
	OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		RecordError(code)
	}
}

// RecordInterfaceProcessing records how long the agent spent on one record
func RecordInterfaceProcessing(action string, status string, duration float64) {
	InterfaceProcessingDuration.WithLabelValues(action, status).Observe(duration)
	InterfacesProcessed.WithLabelValues(action, status).Inc()
}

// RecordPollingCycle records one polling cycle
func RecordPollingCycle(duration float64) {
	PollingCycleCount.Inc()
	PollingCycleDuration.Observe(duration)
}

// RecordDBQuery records the duration of one repository query
func RecordDBQuery(queryType string, duration float64) {
	DBQueryDuration.WithLabelValues(queryType).Observe(duration)
}

// RecordError counts an error by code
func RecordError(code domainErrors.Code) {
	ErrorsTotal.WithLabelValues(code.String()).Inc()
}

// SetBackoffLevel sets the current backoff level
func SetBackoffLevel(level float64) {
	PollingBackoffLevel.Set(level)
}

// SetDBConnectionStatus sets the database connection status
func SetDBConnectionStatus(connected bool) {
	if connected {
		DBConnectionStatus.Set(1)
	} else {
		DBConnectionStatus.Set(0)
	}
}

// SetAgentInfo publishes the agent version, backend and node
func SetAgentInfo(version, backend, nodeName string) {
	AgentInfo.WithLabelValues(version, backend, nodeName).Set(1)
}
