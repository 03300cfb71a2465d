package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"opsboard/internal/metrics"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.RecordCycle(metrics.CycleOK, time.Second)
	m.RecordCycle(metrics.CycleSkipped, 0)
	m.RecordFetch("daily", 42, time.Millisecond, nil)
	m.RecordFetch("daily", 0, time.Millisecond, errors.New("boom"))
	m.RecordFallback("containers_total")
	m.RecordFailure("ship_today")
	m.SetSkipped("containers_total", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.CycleOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.CycleSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CycleDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFetchTotal.WithLabelValues("daily", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFetchTotal.WithLabelValues("daily", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.FeedRows.WithLabelValues("daily")), "failed load keeps last row count")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportFallbacks.WithLabelValues("containers_total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportFailures.WithLabelValues("ship_today")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("containers_total")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordCycle(metrics.CycleOK, time.Second)
		m.RecordFetch("daily", 1, time.Second, nil)
		m.RecordFallback("x")
		m.RecordFailure("x")
		m.SetSkipped("x", 1)
	})
}
