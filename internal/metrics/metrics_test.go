package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.Extracted("generic", 4, 1)
	m.Duplicates("batch", 2)
	m.Committed("generic", "PARTIAL", 2, 1)
	m.EventDropped("movement_created")
	m.ObserveStage("preview", time.Now())

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RowsExtracted.WithLabelValues("generic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowErrors.WithLabelValues("generic", "extract")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowErrors.WithLabelValues("generic", "persist")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MovementsPersisted.WithLabelValues("generic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues("PARTIAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventFailures.WithLabelValues("movement_created")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Extracted("generic", 1, 0)
		m.Duplicates("history", 1)
		m.Committed("generic", "COMPLETED", 1, 0)
		m.EventDropped("import_completed")
		m.ObserveStage("commit", time.Now())
	})
}
