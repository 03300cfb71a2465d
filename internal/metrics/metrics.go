// Package metrics exposes refresh-cycle metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opsboard"

// Cycle outcomes.
const (
	CycleOK      = "ok"
	CyclePartial = "partial"
	CycleSkipped = "skipped"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	LastCycleSuccess prometheus.Gauge

	FeedFetchTotal *prometheus.CounterVec
	FeedFetchTime  *prometheus.HistogramVec
	FeedRows       *prometheus.GaugeVec

	ReportFallbacks *prometheus.CounterVec
	ReportFailures  *prometheus.CounterVec
	RowsSkipped     *prometheus.GaugeVec
}

// New registers the collectors with reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_cycle_duration_seconds",
			Help:      "Wall time of a full refresh cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		LastCycleSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last published board.",
		}),
		FeedFetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Feed loads by feed and outcome.",
		}, []string{"feed", "status"}),
		FeedFetchTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Time to load and parse one feed.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"feed"}),
		FeedRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_rows",
			Help:      "Non-blank rows in the last successful load.",
		}, []string{"feed"}),
		ReportFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_fallbacks_total",
			Help:      "Reports served from the last good result.",
		}, []string{"report"}),
		ReportFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_failures_total",
			Help:      "Reports that failed with nothing to fall back to.",
		}, []string{"report"}),
		RowsSkipped: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_rows_skipped",
			Help:      "Rows dropped for an unparseable date in the last computation.",
		}, []string{"report"}),
	}
}

// RecordCycle counts a finished or skipped cycle.
func (m *Metrics) RecordCycle(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	if status == CycleSkipped {
		return
	}
	m.CycleDuration.Observe(d.Seconds())
	m.LastCycleSuccess.SetToCurrentTime()
}

// RecordFetch counts one feed load.
func (m *Metrics) RecordFetch(feed string, rows int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FeedFetchTime.WithLabelValues(feed).Observe(d.Seconds())
	if err != nil {
		m.FeedFetchTotal.WithLabelValues(feed, "error").Inc()
		return
	}
	m.FeedFetchTotal.WithLabelValues(feed, "ok").Inc()
	m.FeedRows.WithLabelValues(feed).Set(float64(rows))
}

// RecordFallback counts a report served stale.
func (m *Metrics) RecordFallback(report string) {
	if m == nil {
		return
	}
	m.ReportFallbacks.WithLabelValues(report).Inc()
}

// RecordFailure counts a report with no result at all.
func (m *Metrics) RecordFailure(report string) {
	if m == nil {
		return
	}
	m.ReportFailures.WithLabelValues(report).Inc()
}

// SetSkipped records how many rows a report dropped.
func (m *Metrics) SetSkipped(report string, n int) {
	if m == nil {
		return
	}
	m.RowsSkipped.WithLabelValues(report).Set(float64(n))
}
