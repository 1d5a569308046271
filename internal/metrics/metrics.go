// Package metrics provides Prometheus metrics for merge runs.
//
// The tool is a batch process, so nothing is scraped: a run records into its
// own registry and the result is written as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "releasemerge"

// Metrics holds all Prometheus metrics for a run.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	LastRunTime *prometheus.GaugeVec

	// Input metrics
	RowsLoadedTotal  *prometheus.CounterVec
	BytesLoadedTotal *prometheus.CounterVec

	// Merge metrics
	RowsTotal          *prometheus.CounterVec
	FixOutcomesTotal   *prometheus.CounterVec
	UnmergedKeysTotal  prometheus.Counter
	OutputMembersTotal prometheus.Counter
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of merge runs",
			},
			[]string{"operation", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of merge runs in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"operation"},
		),
		LastRunTime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run of each operation finished",
			},
			[]string{"operation", "status"},
		),
		RowsLoadedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_loaded_total",
				Help:      "Rows indexed from input archives",
			},
			[]string{"input"},
		),
		BytesLoadedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_loaded_total",
				Help:      "Uncompressed bytes read while indexing input archives",
			},
			[]string{"input"},
		),
		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows written to the merged package by decision",
			},
			[]string{"decision"}, // passed, replaced, appended, new, suppressed, dropped, overridden
		),
		FixOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fix_outcomes_total",
				Help:      "Three-way merge outcomes by kind",
			},
			[]string{"outcome"},
		),
		UnmergedKeysTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unmerged_short_keys_total",
				Help:      "Delta short keys with no matching file in the base package",
			},
		),
		OutputMembersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_members_total",
				Help:      "Members written to output archives",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(operation, status).Inc()
	m.RunDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.LastRunTime.WithLabelValues(operation, status).SetToCurrentTime()
}

// ObserveLoad records an indexed input archive.
func (m *Metrics) ObserveLoad(input string, rows int, bytes int64) {
	m.RowsLoadedTotal.WithLabelValues(input).Add(float64(rows))
	m.BytesLoadedTotal.WithLabelValues(input).Add(float64(bytes))
}

// AddRows records n rows for a merge decision. Zero counts still create the
// series so every decision shows up in the textfile.
func (m *Metrics) AddRows(decision string, n int) {
	m.RowsTotal.WithLabelValues(decision).Add(float64(n))
}

// AddFixOutcome records n three-way merge outcomes of one kind.
func (m *Metrics) AddFixOutcome(outcome string, n int) {
	m.FixOutcomesTotal.WithLabelValues(outcome).Add(float64(n))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
