// Package metrics holds the Prometheus instruments of the ingestion pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	RowsExtracted      *prometheus.CounterVec
	RowErrors          *prometheus.CounterVec
	DuplicatesFlagged  *prometheus.CounterVec
	MovementsPersisted *prometheus.CounterVec
	Commits            *prometheus.CounterVec
	EventFailures      *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RowsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_rows_extracted_total",
			Help: "Candidate rows extracted, by source format",
		}, []string{"format"}),
		RowErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_row_errors_total",
			Help: "Row errors, by source format and stage",
		}, []string{"format", "stage"}),
		DuplicatesFlagged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_duplicates_flagged_total",
			Help: "Rows flagged as duplicates, by tier",
		}, []string{"tier"}),
		MovementsPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_movements_persisted_total",
			Help: "Movements persisted, by source format",
		}, []string{"format"}),
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_commits_total",
			Help: "Commit attempts, by resulting status",
		}, []string{"status"}),
		EventFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_event_delivery_failures_total",
			Help: "Events dropped after failed delivery",
		}, []string{"event"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

func (m *Metrics) Extracted(format string, rows, errors int) {
	if m == nil {
		return
	}
	m.RowsExtracted.WithLabelValues(format).Add(float64(rows))
	m.RowErrors.WithLabelValues(format, "extract").Add(float64(errors))
}

func (m *Metrics) Duplicates(tier string, n int) {
	if m == nil {
		return
	}
	m.DuplicatesFlagged.WithLabelValues(tier).Add(float64(n))
}

func (m *Metrics) Committed(format, status string, persisted, errors int) {
	if m == nil {
		return
	}
	m.MovementsPersisted.WithLabelValues(format).Add(float64(persisted))
	m.RowErrors.WithLabelValues(format, "persist").Add(float64(errors))
	m.Commits.WithLabelValues(status).Inc()
}

// EventDropped matches the notify failure hook signature.
func (m *Metrics) EventDropped(event string) {
	if m == nil {
		return
	}
	m.EventFailures.WithLabelValues(event).Inc()
}

// ObserveStage records the time since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
