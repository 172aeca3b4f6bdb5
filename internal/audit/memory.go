package audit

import (
	"context"
	"sync"

	id "timekeep/pkg/domain"
)

// InMemoryPublisher buffers events in memory. It is the fallback when no
// Kafka brokers are configured, and the assertion surface in tests.
type InMemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryPublisher) Close() error { return nil }

// ByTimer returns the events recorded for one timer, in emission order.
func (p *InMemoryPublisher) ByTimer(timerID id.TimerID) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Event
	for _, event := range p.events {
		if event.TimerID == timerID {
			out = append(out, event)
		}
	}
	return out
}

// All returns every recorded event.
func (p *InMemoryPublisher) All() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
