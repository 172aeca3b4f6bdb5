// Package clocktest provides a hand-driven clock for deterministic tests.
package clocktest

import (
	"sync"
	"time"

	"timekeep/pkg/clock"
)

// Manual is a Clock whose time only moves when the test advances it.
// Tickers fire once per elapsed interval during an Advance call, delivered
// synchronously so tests can assert ordering without sleeps.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual creates a manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set jumps the clock to a specific instant without firing tickers.
// Useful for simulating device sleep or clock skew.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward and fires each ticker once per full
// interval that elapsed. Tick delivery is non-blocking: a ticker whose
// consumer is not draining its channel drops the tick, matching
// time.Ticker semantics.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.now = target
	tickers := make([]*manualTicker, len(m.tickers))
	copy(tickers, m.tickers)
	m.mu.Unlock()

	for _, tk := range tickers {
		tk.advanceTo(target)
	}
}

func (m *Manual) NewTicker(d time.Duration) clock.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	tk := &manualTicker{
		interval: d,
		next:     m.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	m.tickers = append(m.tickers, tk)
	return tk
}

type manualTicker struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) advanceTo(target time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.stopped && !t.next.After(target) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.interval)
	}
}
