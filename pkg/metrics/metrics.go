package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lending_indexer"

const (
	TickOutcome_Success = "success"
	TickOutcome_Failure = "failure"
	TickOutcome_Skipped = "skipped"
)

const (
	DegradedReason_UnknownToken   = "unknown_token"
	DegradedReason_MissingHeader  = "missing_header"
	DegradedReason_UndecodableLog = "undecodable_log"
	DegradedReason_ForeignLog     = "foreign_log"
)

// IndexerMetrics owns its registry so several instances can coexist in one process. All methods
// are safe on a nil receiver.
type IndexerMetrics struct {
	registry     *prometheus.Registry
	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	events       *prometheus.CounterVec
	degraded     *prometheus.CounterVec
	watermark    *prometheus.GaugeVec
}

func NewIndexerMetrics() *IndexerMetrics {
	m := &IndexerMetrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Poller ticks segmented by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a poller tick, from head lookup to watermark save.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "events_total",
			Help:      "Event writes segmented by kind and result.",
		}, []string{"kind", "result"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "degraded_records_total",
			Help:      "Records stored with fallback values or skipped, by reason.",
		}, []string{"reason"}),
		watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "last_processed_block",
			Help:      "Ingestion watermark per chain.",
		}, []string{"chain_id"}),
	}
	m.registry.MustRegister(m.ticks, m.tickDuration, m.events, m.degraded, m.watermark)
	return m
}

func (m *IndexerMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *IndexerMetrics) ObserveTick(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(duration.Seconds())
}

// ObserveWrite records one write; result is "inserted", "duplicate" or "failed".
func (m *IndexerMetrics) ObserveWrite(kind string, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
}

func (m *IndexerMetrics) ObserveDegraded(reason string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(reason).Inc()
}

func (m *IndexerMetrics) SetWatermark(chainId uint, blockNumber uint64) {
	if m == nil {
		return
	}
	m.watermark.WithLabelValues(strconv.FormatUint(uint64(chainId), 10)).Set(float64(blockNumber))
}
