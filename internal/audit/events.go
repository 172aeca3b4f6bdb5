// Package audit records timer lifecycle transitions for compliance review.
// Every transition that mutates stored state emits exactly one event; the
// completed-timer event carries the frozen total so downstream consumers can
// reconcile payroll and permit reports without re-reading the store.
package audit

import (
	"context"
	"time"

	id "timekeep/pkg/domain"
)

// EventType names a timer lifecycle transition.
type EventType string

const (
	EventTimerStarted   EventType = "timer.started"
	EventTimerPaused    EventType = "timer.paused"
	EventTimerResumed   EventType = "timer.resumed"
	EventTimerCompleted EventType = "timer.completed"
)

// Event is one audit record.
type Event struct {
	Type               EventType  `json:"type"`
	TimerID            id.TimerID `json:"timer_id"`
	OwnerID            id.OwnerID `json:"owner_id"`
	Category           string     `json:"category"`
	Timestamp          time.Time  `json:"timestamp"`
	TotalSeconds       int64      `json:"total_seconds,omitempty"`
	TotalPausedSeconds int64      `json:"total_paused_seconds,omitempty"`
	RequestID          string     `json:"request_id,omitempty"`
}

// Publisher delivers audit events. Implementations must be safe for
// concurrent use and must never block a transition on delivery.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
