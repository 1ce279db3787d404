package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIndexerMetrics_Counters(t *testing.T) {
	m := NewIndexerMetrics()

	m.ObserveTick(TickOutcome_Success, 2*time.Second)
	m.ObserveTick(TickOutcome_Success, time.Second)
	m.ObserveTick(TickOutcome_Failure, time.Second)
	m.ObserveWrite("Supply", "inserted")
	m.ObserveWrite("Supply", "duplicate")
	m.ObserveDegraded(DegradedReason_UnknownToken)
	m.SetWatermark(1, 1010)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ticks.WithLabelValues(TickOutcome_Success)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ticks.WithLabelValues(TickOutcome_Failure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.events.WithLabelValues("Supply", "duplicate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.degraded.WithLabelValues(DegradedReason_UnknownToken)))
	assert.Equal(t, float64(1010), testutil.ToFloat64(m.watermark.WithLabelValues("1")))

	families, err := m.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestIndexerMetrics_NilSafe(t *testing.T) {
	var m *IndexerMetrics
	assert.NotPanics(t, func() {
		m.ObserveTick(TickOutcome_Skipped, time.Millisecond)
		m.ObserveWrite("Borrow", "failed")
		m.ObserveDegraded(DegradedReason_MissingHeader)
		m.SetWatermark(1, 1)
	})
	assert.Nil(t, m.Registry())
}
