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
	// Collection listing metrics
	MintsListed prometheus.Counter

	// Resolution metrics
	LookupsCompleted *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec
	StageInFlight    *prometheus.GaugeVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	RowsSaved   *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "nft_holders"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MintsListed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "mints_listed_total",
			Help:      "Total number of mints returned by collection listing",
		}),

		LookupsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "lookups_completed_total",
			Help:      "Total number of completed lookups by stage and outcome",
		}, []string{"stage", "outcome"}),
		RetryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "retry_attempts_total",
			Help:      "Total number of lookup attempts that failed and were retried",
		}, []string{"stage"}),
		StageInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "in_flight",
			Help:      "Number of lookups currently running per stage",
		}, []string{"stage"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "runs_total",
			Help:      "Total number of snapshot runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Snapshot run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		RowsSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "rows_saved_total",
			Help:      "Total number of holder rows saved by status",
		}, []string{"status"}),

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

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful snapshot run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordMintsListed adds n to the listed mints counter.
func RecordMintsListed(n int) {
	DefaultMetrics.MintsListed.Add(float64(n))
}

// RecordLookup records a finished lookup for a stage.
// outcome is "resolved", "failed" or "skipped".
func RecordLookup(stage, outcome string) {
	DefaultMetrics.LookupsCompleted.WithLabelValues(stage, outcome).Inc()
}

// RecordRetry records a failed attempt that will be retried.
func RecordRetry(stage string) {
	DefaultMetrics.RetryAttempts.WithLabelValues(stage).Inc()
}

// TrackInFlight increments the in-flight gauge for stage and returns a func that decrements it.
func TrackInFlight(stage string) func() {
	g := DefaultMetrics.StageInFlight.WithLabelValues(stage)
	g.Inc()
	return g.Dec
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun records a snapshot run.
func RecordRun(mode, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordRowsSaved records saved rows split by status.
func RecordRowsSaved(succeeded, failed int) {
	DefaultMetrics.RowsSaved.WithLabelValues("succeeded").Add(float64(succeeded))
	DefaultMetrics.RowsSaved.WithLabelValues("failed").Add(float64(failed))
}

// MarkRunSucceeded sets the last successful run timestamp.
func MarkRunSucceeded(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
