// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Runtime metrics
	BundlesTotal          *prometheus.CounterVec
	BundleDuration        prometheus.Histogram
	InstructionsProcessed *prometheus.CounterVec
	CurrentSlot           prometheus.Gauge
	EventsPersisted       prometheus.Counter
	EventPersistErrors    prometheus.Counter

	// Launch metrics
	FundsCommitted   prometheus.Counter
	LaunchesSettled  *prometheus.CounterVec
	RefundsProcessed *prometheus.CounterVec
	ClaimsProcessed  *prometheus.CounterVec

	// Timelock metrics
	BatchesExecuted       prometheus.Counter
	BatchExecutionsFailed prometheus.Counter

	// Solana client metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSMessageLatency prometheus.Histogram
	WSReconnects     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on the default registry. It must be called at most once per namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchlab"
	}

	return &Metrics{
		BundlesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "bundles_total",
			Help:      "Total number of submitted instruction bundles by status",
		}, []string{"status"}),
		BundleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "bundle_duration_seconds",
			Help:      "Time to execute and commit one bundle",
			Buckets:   prometheus.DefBuckets,
		}),
		InstructionsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "instructions_processed_total",
			Help:      "Total number of top-level instructions by program and status",
		}, []string{"program", "status"}),
		CurrentSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "current_slot",
			Help:      "Slot of the most recent bundle",
		}),
		EventsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "events_persisted_total",
			Help:      "Total number of program events written to the event store",
		}),
		EventPersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "event_persist_errors_total",
			Help:      "Total number of failed event store writes",
		}),

		FundsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launchpad",
			Name:      "funds_committed_base_units_total",
			Help:      "Quote base units committed to launches",
		}),
		LaunchesSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launchpad",
			Name:      "launches_settled_total",
			Help:      "Launches that reached a terminal state by outcome",
		}, []string{"outcome"}),
		RefundsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launchpad",
			Name:      "refunds_processed_total",
			Help:      "Per-funder refund attempts by status",
		}, []string{"status"}),
		ClaimsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launchpad",
			Name:      "claims_processed_total",
			Help:      "Per-funder sale claims by status",
		}, []string{"status"}),

		BatchesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timelock",
			Name:      "batches_executed_total",
			Help:      "Transaction batches executed",
		}),
		BatchExecutionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timelock",
			Name:      "batch_executions_failed_total",
			Help:      "Execute calls that failed and left the batch enqueued",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "WebSocket reconnect attempts",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"store", "operation"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBundle records the outcome of one submitted bundle.
func RecordBundle(status string, seconds float64, slot uint64) {
	DefaultMetrics.BundlesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BundleDuration.Observe(seconds)
	DefaultMetrics.CurrentSlot.Set(float64(slot))
}

// RecordInstruction increments the processed instruction counter.
func RecordInstruction(program, status string) {
	DefaultMetrics.InstructionsProcessed.WithLabelValues(program, status).Inc()
}

// RecordEventsPersisted records an event store write.
func RecordEventsPersisted(n int, err error) {
	if err != nil {
		DefaultMetrics.EventPersistErrors.Inc()
		return
	}
	DefaultMetrics.EventsPersisted.Add(float64(n))
}

// UpdateSlot updates the current slot gauge.
func UpdateSlot(slot uint64) {
	DefaultMetrics.CurrentSlot.Set(float64(slot))
}

// RecordFundsCommitted adds committed quote base units.
func RecordFundsCommitted(amount uint64) {
	DefaultMetrics.FundsCommitted.Add(float64(amount))
}

// RecordLaunchSettled records a launch reaching FINALIZED or REFUNDED.
func RecordLaunchSettled(outcome string) {
	DefaultMetrics.LaunchesSettled.WithLabelValues(outcome).Inc()
}

// RecordRefund records one per-funder refund attempt.
func RecordRefund(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RefundsProcessed.WithLabelValues(status).Inc()
}

// RecordClaim records one per-funder claim attempt.
func RecordClaim(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.ClaimsProcessed.WithLabelValues(status).Inc()
}

// RecordBatchExecution records an execute attempt.
func RecordBatchExecution(err error) {
	if err != nil {
		DefaultMetrics.BatchExecutionsFailed.Inc()
		return
	}
	DefaultMetrics.BatchesExecuted.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWSMessage records WebSocket message handling latency.
func RecordWSMessage(seconds float64) {
	DefaultMetrics.WSMessageLatency.Observe(seconds)
}

// RecordWSReconnect increments the reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(store, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordHTTPRequest records one served API request.
func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route).Observe(seconds)
}
