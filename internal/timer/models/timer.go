package models

import (
	"time"

	id "timekeep/pkg/domain"
	dErrors "timekeep/pkg/domain-errors"
)

// Status is the lifecycle state of a timer.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// Timer is one trackable record whose active time is being measured: a field
// activity, a testing session, anything with a start/pause/resume/complete
// lifecycle.
//
// Field invariants:
//   - StartedAt is set once at creation and precedes every other instant.
//   - PausedAt is non-nil if and only if Status == paused.
//   - EndedAt is non-nil and TotalSeconds frozen if and only if completed.
//   - TotalPausedSeconds only grows, and only when a pause interval ends.
//   - A completed timer never changes again.
type Timer struct {
	ID                 id.TimerID
	OwnerID            id.OwnerID
	Category           string
	Status             Status
	StartedAt          time.Time
	PausedAt           *time.Time
	TotalPausedSeconds int64
	EndedAt            *time.Time
	TotalSeconds       int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewTimer creates a timer in the active state. Creation is the only way into
// the lifecycle; there is no transition back to "not started".
func NewTimer(timerID id.TimerID, ownerID id.OwnerID, category string, now time.Time) (*Timer, error) {
	if timerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "timer id is required")
	}
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if category == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}
	return &Timer{
		ID:        timerID,
		OwnerID:   ownerID,
		Category:  category,
		Status:    StatusActive,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Pause transitions active → paused.
func (t *Timer) Pause(now time.Time) error {
	if t.Status != StatusActive {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "pause requires active, timer is %s", t.Status)
	}
	paused := now
	t.Status = StatusPaused
	t.PausedAt = &paused
	t.UpdatedAt = now
	return nil
}

// Resume transitions paused → active, folding the just-ended pause interval
// into TotalPausedSeconds. The returned flag reports whether a negative pause
// duration had to be clamped to zero (clock skew); callers log and count it.
func (t *Timer) Resume(now time.Time) (clamped bool, err error) {
	if t.Status != StatusPaused {
		return false, dErrors.Newf(dErrors.CodeIllegalTransition, "resume requires paused, timer is %s", t.Status)
	}
	pauseSecs, clamped := t.foldPause(now)
	t.TotalPausedSeconds += pauseSecs
	t.Status = StatusActive
	t.PausedAt = nil
	t.UpdatedAt = now
	return clamped, nil
}

// Complete transitions active or paused → completed, freezing TotalSeconds.
// The frozen value is the audit record; it is never recomputed afterward.
// Completing an already-completed timer fails with an illegal-transition
// error that callers treat as a harmless no-op (concurrent stop clicks).
func (t *Timer) Complete(now time.Time) (clamped bool, err error) {
	if t.Status == StatusCompleted {
		return false, dErrors.New(dErrors.CodeIllegalTransition, "already completed")
	}
	if t.Status == StatusPaused {
		pauseSecs, c := t.foldPause(now)
		t.TotalPausedSeconds += pauseSecs
		clamped = c
	}
	total, c := clampSeconds(wholeSeconds(now.Sub(t.StartedAt)) - t.TotalPausedSeconds)
	clamped = clamped || c

	ended := now
	t.Status = StatusCompleted
	t.TotalSeconds = total
	t.EndedAt = &ended
	t.PausedAt = nil
	t.UpdatedAt = now
	return clamped, nil
}

// ElapsedSeconds answers "how long has this timer been actively running" at
// the given instant, without mutating anything. All three branches agree at
// the instant of a transition, so a display flipping between them never jumps.
func (t *Timer) ElapsedSeconds(now time.Time) (secs int64, clamped bool) {
	if t.StartedAt.IsZero() {
		// Malformed record; counts for zero rather than poisoning totals.
		return 0, false
	}
	switch t.Status {
	case StatusCompleted:
		return t.TotalSeconds, false
	case StatusPaused:
		if t.PausedAt == nil {
			return 0, false
		}
		return clampSeconds(wholeSeconds(t.PausedAt.Sub(t.StartedAt)) - t.TotalPausedSeconds)
	default:
		return clampSeconds(wholeSeconds(now.Sub(t.StartedAt)) - t.TotalPausedSeconds)
	}
}

// foldPause measures the in-flight pause interval ending now.
func (t *Timer) foldPause(now time.Time) (secs int64, clamped bool) {
	if t.PausedAt == nil {
		return 0, false
	}
	return clampSeconds(wholeSeconds(now.Sub(*t.PausedAt)))
}

// wholeSeconds truncates a duration to whole seconds (toward zero).
func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// clampSeconds floors negative values to zero. Negative elapsed time means
// clock skew between clients or a data-integrity problem upstream, so the
// clamp is reported rather than swallowed.
func clampSeconds(secs int64) (int64, bool) {
	if secs < 0 {
		return 0, true
	}
	return secs, false
}

// Clone returns a deep copy so stores can hand out snapshots that callers may
// mutate freely.
func (t *Timer) Clone() *Timer {
	cp := *t
	if t.PausedAt != nil {
		paused := *t.PausedAt
		cp.PausedAt = &paused
	}
	if t.EndedAt != nil {
		ended := *t.EndedAt
		cp.EndedAt = &ended
	}
	return &cp
}
