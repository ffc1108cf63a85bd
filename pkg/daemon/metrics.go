package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mu-kernel/mukernel/pkg/temporal"
)

// Metrics holds the daemon's Prometheus collectors, grounded on the
// pack's prometheus/client_golang usage (cuemby-warren's pkg/metrics):
// a per-instance registry of named gauges/counters/histograms exposed
// on GET /metrics.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal   prometheus.Counter
	QueryErrors    prometheus.Counter
	QueryDuration  prometheus.Histogram
	WatchEvents    prometheus.Counter
	DebounceDepth  prometheus.Gauge
	BuildsTotal    prometheus.Counter
	BuildFailures  prometheus.Counter
	WSConnections  prometheus.Gauge
	CurrentQPS     prometheus.Gauge
	PredictedQPS5m prometheus.Gauge

	load *temporal.QueryLoadPredictor
}

// NewMetrics registers and returns the daemon's collector set on a fresh
// registry (kept private to the daemon rather than the global default
// registry, so tests can construct independent daemons).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mukernel_queries_total", Help: "Total MUQL queries executed by the daemon.",
		}),
		QueryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mukernel_query_errors_total", Help: "MUQL queries that returned an error.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "mukernel_query_duration_seconds", Help: "MUQL query execution latency.",
			Buckets: prometheus.DefBuckets,
		}),
		WatchEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mukernel_watch_events_total", Help: "Filesystem change events observed by the watcher.",
		}),
		DebounceDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mukernel_debounce_queue_depth", Help: "Paths currently pending in the debounce queue.",
		}),
		BuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mukernel_builds_total", Help: "Incremental builds applied by the worker.",
		}),
		BuildFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mukernel_build_failures_total", Help: "Per-file parse failures across all builds.",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mukernel_ws_connections", Help: "Live WebSocket subscriber count.",
		}),
		CurrentQPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mukernel_query_load_current_qps", Help: "Kalman-smoothed current queries/sec.",
		}),
		PredictedQPS5m: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mukernel_query_load_predicted_qps_5m", Help: "Predicted queries/sec five minutes out.",
		}),
		load: temporal.NewQueryLoadPredictor(temporal.DefaultLoadConfig()),
	}

	reg.MustRegister(
		m.QueriesTotal, m.QueryErrors, m.QueryDuration, m.WatchEvents,
		m.DebounceDepth, m.BuildsTotal, m.BuildFailures, m.WSConnections,
		m.CurrentQPS, m.PredictedQPS5m,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this daemon's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordQuery feeds the query-load predictor and refreshes its two
// derived gauges. Called once per incoming POST /query.
func (m *Metrics) RecordQuery() {
	m.QueriesTotal.Inc()
	m.load.RecordQuery()
	pred := m.load.GetPrediction()
	m.CurrentQPS.Set(pred.CurrentQPS)
	m.PredictedQPS5m.Set(pred.PredictedQPS5m)
}
