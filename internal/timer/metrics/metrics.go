package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the timer module.
// Tracks transition volume, optimistic-concurrency retries, and clock-skew
// clamps (the clamps indicate skew between clients or bad data upstream, so
// they get their own counter rather than disappearing into logs).
type Metrics struct {
	Transitions       *prometheus.CounterVec
	ConflictRetries   prometheus.Counter
	ClockSkewClamps   prometheus.Counter
	LiveSubscriptions prometheus.Gauge
	Reconciliations   prometheus.Counter
}

// New creates a Metrics instance with all timer module metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timekeep_timer_transitions_total",
			Help: "Timer lifecycle transitions by kind and outcome",
		}, []string{"transition", "outcome"}),
		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timekeep_timer_conflict_retries_total",
			Help: "Transitions retried after an optimistic-concurrency rejection",
		}),
		ClockSkewClamps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timekeep_timer_clock_skew_clamps_total",
			Help: "Negative elapsed-time computations clamped to zero",
		}),
		LiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "timekeep_live_subscriptions",
			Help: "Currently open live display subscriptions",
		}),
		Reconciliations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timekeep_live_reconciliations_total",
			Help: "Authoritative re-fetches performed by the live display driver",
		}),
	}
}

// RecordTransition counts a transition attempt by outcome
// ("ok", "illegal", "conflict", "not_found", "error").
func (m *Metrics) RecordTransition(transition, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(transition, outcome).Inc()
}

// RecordConflictRetry counts one automatic re-read-and-retry.
func (m *Metrics) RecordConflictRetry() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}

// RecordClockSkewClamp counts one negative-duration clamp.
func (m *Metrics) RecordClockSkewClamp() {
	if m == nil {
		return
	}
	m.ClockSkewClamps.Inc()
}

// SubscriptionOpened and SubscriptionClosed track the live subscription gauge.
func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.LiveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.LiveSubscriptions.Dec()
}

// RecordReconciliation counts one authoritative re-fetch.
func (m *Metrics) RecordReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}
