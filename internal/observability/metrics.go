// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds all Prometheus metrics for the application.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Ledger metrics
	OperationsTotal  *prometheus.CounterVec
	RejectionsTotal  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	LastCommit       prometheus.Gauge

	// Event delivery metrics
	EventsPublished *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec

	// Stream metrics
	StreamSubscribers prometheus.Gauge
	StreamDropped     prometheus.Counter

	// RPC metrics
	RPCRequests    *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the Prometheus default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_craft"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by operation and result",
		}, []string{"operation", "result"}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rejections_total",
			Help:      "Total number of rejected ledger operations by error kind",
		}, []string{"operation", "kind"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_latency_seconds",
			Help:      "Ledger operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		LastCommit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "last_commit_timestamp",
			Help:      "Unix timestamp of the last committed operation",
		}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events delivered by sink",
		}, []string{"sink"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_errors_total",
			Help:      "Total number of failed event deliveries by sink",
		}, []string{"sink"}),

		StreamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Number of connected websocket clients",
		}),
		StreamDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_clients_total",
			Help:      "Total number of websocket clients dropped for falling behind",
		}),

		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests served by method and outcome",
		}, []string{"method", "outcome"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// HandlerFor returns an HTTP handler serving the given registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordOperation records the outcome of one ledger operation.
// kind is only used when result is ResultRejected.
func (m *Metrics) RecordOperation(operation, result, kind string, seconds float64, committedAt int64) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, result).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
	switch result {
	case ResultRejected:
		m.RejectionsTotal.WithLabelValues(operation, kind).Inc()
	case ResultOK:
		m.LastCommit.Set(float64(committedAt) / 1000)
	}
}

// RecordSink records one event delivery attempt.
func (m *Metrics) RecordSink(sink string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SinkErrors.WithLabelValues(sink).Inc()
		return
	}
	m.EventsPublished.WithLabelValues(sink).Inc()
}

// SetSubscribers updates the websocket client gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.StreamSubscribers.Set(float64(n))
}

// RecordDropped counts a websocket client dropped for a full send buffer.
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.StreamDropped.Inc()
}

// RecordRPCRequest counts one served JSON-RPC request.
func (m *Metrics) RecordRPCRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(method, outcome).Inc()
}

// RecordRPCLatency records JSON-RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
