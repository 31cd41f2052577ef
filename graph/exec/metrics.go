package exec

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus instrumentation for workflow execution.
//
// Metrics exposed (all namespaced "nodeflow"):
//
//   - inflight_nodes (gauge): node executions currently in flight.
//   - active_sessions (gauge): run sessions currently running.
//   - node_latency_ms (histogram): executor call duration, labeled by
//     node_kind and status (success/error). Buckets cover 1ms to 60s —
//     media-model calls routinely take tens of seconds.
//   - node_executions_total (counter): completed executor calls, labeled
//     by status.
//   - sessions_total (counter): started sessions, labeled by mode
//     (full/single_node/continue_from).
//   - sessions_finished_total (counter): terminal sessions, labeled by
//     status (completed/error/cancelled).
//   - cache_hits_total (counter): continue-from nodes satisfied from the
//     result cache instead of executing.
//
// Expose via promhttp against the registry passed to NewMetrics.
type Metrics struct {
	inflightNodes  prometheus.Gauge
	activeSessions prometheus.Gauge

	nodeLatency *prometheus.HistogramVec

	nodeExecutions   *prometheus.CounterVec
	sessionsStarted  *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	cacheHits        prometheus.Counter
}

// NewMetrics registers the execution metrics with the given registry.
// A nil registry uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodeflow",
			Name:      "inflight_nodes",
			Help:      "Number of node executions currently in flight",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodeflow",
			Name:      "active_sessions",
			Help:      "Number of run sessions currently running",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeflow",
			Name:      "node_latency_ms",
			Help:      "Node executor call duration in milliseconds",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 15000, 30000, 60000},
		}, []string{"node_kind", "status"}),
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "node_executions_total",
			Help:      "Completed node executor calls",
		}, []string{"status"}),
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "sessions_total",
			Help:      "Run sessions started",
		}, []string{"mode"}),
		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "sessions_finished_total",
			Help:      "Run sessions reaching a terminal status",
		}, []string{"status"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "cache_hits_total",
			Help:      "Continue-from nodes satisfied from the result cache",
		}),
	}
}

// SessionStarted records a new run session in the given mode.
func (m *Metrics) SessionStarted(mode string) {
	m.sessionsStarted.WithLabelValues(mode).Inc()
	m.activeSessions.Inc()
}

// SessionFinished records a session reaching a terminal status.
func (m *Metrics) SessionFinished(status string) {
	m.sessionsFinished.WithLabelValues(status).Inc()
	m.activeSessions.Dec()
}

// NodeDispatched marks an executor call entering flight.
func (m *Metrics) NodeDispatched() {
	m.inflightNodes.Inc()
}

// NodeResolved marks an executor call leaving flight.
func (m *Metrics) NodeResolved() {
	m.inflightNodes.Dec()
}

// NodeExecuted records one completed executor call.
func (m *Metrics) NodeExecuted(kind, status string, latency time.Duration) {
	m.nodeLatency.WithLabelValues(kind, status).Observe(float64(latency.Milliseconds()))
	m.nodeExecutions.WithLabelValues(status).Inc()
}

// CacheHit records a continue-from cache substitution.
func (m *Metrics) CacheHit() {
	m.cacheHits.Inc()
}
