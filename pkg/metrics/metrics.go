// Package metrics provides Prometheus collectors for quack.
//
// # Overview
//
// The collectors track the write path (write states opened and closed, rows
// appended), the read path (queries routed to the engine and their latency)
// and engine failures by error type.
//
// # Basic Usage
//
//	metrics.WriteStatesOpened.Inc()
//	metrics.WriteStatesOpen.Inc()
//	defer metrics.WriteStatesOpen.Dec()
//
//	timer := metrics.NewTimer("query")
//	runQuery()
//	metrics.QueryDuration.WithLabelValues("select").Observe(timer.Stop().Seconds())
//
// # Metric Types
//
// Counter: monotonically increasing values (rows appended)
// Gauge: values that go up and down (write states currently open)
// Histogram: distributions (query latency)
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for WriteStatesClosed.
const (
	OutcomeCommit = "commit"
	OutcomeAbort  = "abort"
	OutcomeMerge  = "merge"
)

var (
	// WriteStatesOpened counts write states created lazily on first insert.
	WriteStatesOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quack_write_states_opened_total",
			Help: "Total number of write states opened",
		},
	)

	// WriteStatesOpen tracks write states currently holding an engine handle.
	WriteStatesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quack_write_states_open",
			Help: "Number of write states currently open",
		},
	)

	// WriteStatesClosed counts write state transitions.
	// Labels: outcome (commit/abort/merge)
	//
	// Example:
	//	metrics.WriteStatesClosed.WithLabelValues(metrics.OutcomeCommit).Inc()
	WriteStatesClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quack_write_states_closed_total",
			Help: "Total number of write states closed, by outcome",
		},
		[]string{"outcome"},
	)

	// RowsAppended counts rows handed to engine appenders.
	RowsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quack_rows_appended_total",
			Help: "Total number of rows appended to the engine",
		},
	)

	// RowsReturned counts result rows streamed back to the host.
	RowsReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quack_rows_returned_total",
			Help: "Total number of rows returned from engine queries",
		},
	)

	// QueryDuration tracks engine query latency in seconds.
	// Labels: operation (select/insert/update/delete/other)
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quack_query_duration_seconds",
			Help: "Engine query latency in seconds",
			Buckets: []float64{
				0.0005, // 500μs - point lookups
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms - scans
				1,      // 1s
				10,     // 10s - large aggregations
			},
		},
		[]string{"operation"},
	)

	// EngineErrors counts failures by error type.
	// Labels: type (see pkg/errors ErrorType)
	EngineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quack_engine_errors_total",
			Help: "Total number of engine errors, by type",
		},
		[]string{"type"},
	)
)

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveQuery records the timer's elapsed time under operation.
func (t *Timer) ObserveQuery(operation string) time.Duration {
	d := t.Stop()
	QueryDuration.WithLabelValues(operation).Observe(d.Seconds())
	return d
}
