package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for cart sync ops.
const (
	SyncOutcomeSucceeded  = "succeeded"
	SyncOutcomeFailed     = "failed"
	SyncOutcomeSuperseded = "superseded"
)

// CartSyncMetrics instruments the remote cart sync queue.
type CartSyncMetrics struct {
	enqueued  *prometheus.CounterVec
	collapsed *prometheus.CounterVec
	attempts  *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	depth     prometheus.Gauge
}

// NewCartSyncMetrics registers the sync queue metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartSyncMetrics(reg prometheus.Registerer) *CartSyncMetrics {
	if reg == nil {
		return &CartSyncMetrics{}
	}
	m := &CartSyncMetrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_sync_enqueued_total",
			Help: "Remote cart writes handed to the sync queue.",
		}, []string{"op"}),
		collapsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_sync_collapsed_total",
			Help: "Pending cart writes replaced by a newer write for the same line.",
		}, []string{"op"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_sync_attempts_total",
			Help: "Attempts made against the remote cart store.",
		}, []string{"op"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_sync_outcomes_total",
			Help: "Final outcome of each dequeued cart write.",
		}, []string{"op", "outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_sync_dropped_total",
			Help: "Cart writes abandoned after exhausting retries.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cart_sync_duration_seconds",
			Help:    "Time from dequeue to final outcome of a cart write.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cart_sync_pending",
			Help: "Cart writes waiting in the sync queue.",
		}),
	}
	reg.MustRegister(m.enqueued, m.collapsed, m.attempts, m.outcomes, m.dropped, m.duration, m.depth)
	return m
}

func (m *CartSyncMetrics) IncEnqueued(op string) {
	if m == nil || m.enqueued == nil {
		return
	}
	m.enqueued.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *CartSyncMetrics) IncCollapsed(op string) {
	if m == nil || m.collapsed == nil {
		return
	}
	m.collapsed.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *CartSyncMetrics) IncAttempt(op string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *CartSyncMetrics) IncDropped(op string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveOutcome records the final outcome and how long it took to get there.
func (m *CartSyncMetrics) ObserveOutcome(op, outcome string, took time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(took.Seconds())
}

func (m *CartSyncMetrics) SetPending(n int) {
	if m == nil || m.depth == nil {
		return
	}
	m.depth.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
