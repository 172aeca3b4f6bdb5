package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"timekeep/internal/audit"
	timermetrics "timekeep/internal/timer/metrics"
	"timekeep/internal/timer/models"
	"timekeep/pkg/clock"
	id "timekeep/pkg/domain"
	dErrors "timekeep/pkg/domain-errors"
	"timekeep/pkg/platform/sentinel"
	"timekeep/pkg/requestcontext"
)

// TimerStore is the persistence boundary the service drives. The conditional
// UpdateIfStatus is the only synchronization primitive: transitions are
// computed against a fresh snapshot and written back under a status guard.
type TimerStore interface {
	Create(ctx context.Context, timer *models.Timer) error
	FindByID(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	UpdateIfStatus(ctx context.Context, timer *models.Timer, expectedStatus models.Status) error
	ListByOwner(ctx context.Context, ownerID id.OwnerID, statuses []models.Status) ([]*models.Timer, error)
}

// Service orchestrates the timer lifecycle against authoritative storage.
type Service struct {
	timers  TimerStore
	clock   clock.Clock
	logger  *slog.Logger
	metrics *timermetrics.Metrics
	audit   audit.Publisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *timermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// New constructs a Service.
func New(timers TimerStore, opts ...Option) (*Service, error) {
	if timers == nil {
		return nil, errors.New("timer store is required")
	}
	s := &Service{
		timers: timers,
		clock:  clock.System,
		logger: slog.Default(),
		audit:  audit.NewInMemoryPublisher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start creates a timer in the active state for the given owner.
func (s *Service) Start(ctx context.Context, ownerID id.OwnerID, category string) (*models.Timer, error) {
	now := s.now(ctx)
	timer, err := models.NewTimer(id.TimerID(uuid.New()), ownerID, category, now)
	if err != nil {
		return nil, err
	}
	if err := s.timers.Create(ctx, timer); err != nil {
		s.metrics.RecordTransition("start", "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create timer")
	}
	s.metrics.RecordTransition("start", "ok")
	s.emit(ctx, audit.EventTimerStarted, timer)
	return timer, nil
}

// Get returns a snapshot of one timer.
func (s *Service) Get(ctx context.Context, timerID id.TimerID) (*models.Timer, error) {
	timer, err := s.timers.FindByID(ctx, timerID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return timer, nil
}

// ListByOwner returns snapshots of the owner's timers, optionally filtered
// by status.
func (s *Service) ListByOwner(ctx context.Context, ownerID id.OwnerID, statuses []models.Status) ([]*models.Timer, error) {
	for _, st := range statuses {
		if !models.ValidStatus(st) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", st)
		}
	}
	timers, err := s.timers.ListByOwner(ctx, ownerID, statuses)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list timers")
	}
	return timers, nil
}

// Pause transitions a timer from active to paused.
func (s *Service) Pause(ctx context.Context, timerID id.TimerID) (*models.Timer, error) {
	return s.transition(ctx, timerID, "pause", audit.EventTimerPaused,
		func(t *models.Timer, now time.Time) (bool, error) {
			return false, t.Pause(now)
		})
}

// Resume transitions a timer from paused back to active, folding the ended
// pause interval into its accounting.
func (s *Service) Resume(ctx context.Context, timerID id.TimerID) (*models.Timer, error) {
	return s.transition(ctx, timerID, "resume", audit.EventTimerResumed,
		func(t *models.Timer, now time.Time) (bool, error) {
			return t.Resume(now)
		})
}

// Complete finishes a timer from either active or paused, freezing its total.
// Completing an already-completed timer surfaces an illegal-transition error
// that callers may treat as a no-op.
func (s *Service) Complete(ctx context.Context, timerID id.TimerID) (*models.Timer, error) {
	return s.transition(ctx, timerID, "complete", audit.EventTimerCompleted,
		func(t *models.Timer, now time.Time) (bool, error) {
			return t.Complete(now)
		})
}

// LiveElapsed evaluates the elapsed-time query for a snapshot at the
// request-scoped instant, logging and counting any clock-skew clamp.
func (s *Service) LiveElapsed(ctx context.Context, timer *models.Timer) int64 {
	secs, clamped := timer.ElapsedSeconds(s.now(ctx))
	if clamped {
		s.recordClamp(ctx, timer, "elapsed query")
	}
	return secs
}

// transition runs one read-compute-conditional-write cycle, retrying exactly
// once on an optimistic-concurrency rejection. If the re-read shows the
// transition is no longer legal (someone else already moved the timer), the
// illegal-transition error from the fresh snapshot is surfaced, not the
// conflict.
func (s *Service) transition(
	ctx context.Context,
	timerID id.TimerID,
	name string,
	eventType audit.EventType,
	apply func(t *models.Timer, now time.Time) (clamped bool, err error),
) (*models.Timer, error) {
	now := s.now(ctx)

	for attempt := 0; ; attempt++ {
		timer, err := s.timers.FindByID(ctx, timerID)
		if err != nil {
			s.metrics.RecordTransition(name, "not_found")
			return nil, wrapStoreErr(err)
		}

		expected := timer.Status
		clamped, err := apply(timer, now)
		if err != nil {
			s.metrics.RecordTransition(name, "illegal")
			return nil, err
		}
		if clamped {
			s.recordClamp(ctx, timer, name)
		}

		err = s.timers.UpdateIfStatus(ctx, timer, expected)
		if err == nil {
			s.metrics.RecordTransition(name, "ok")
			s.emit(ctx, eventType, timer)
			return timer, nil
		}

		switch {
		case errors.Is(err, sentinel.ErrConflict) && attempt == 0:
			s.metrics.RecordConflictRetry()
			s.logger.InfoContext(ctx, "transition conflicted, retrying against fresh snapshot",
				"transition", name,
				"timer_id", timerID,
			)
			continue
		case errors.Is(err, sentinel.ErrConflict):
			s.metrics.RecordTransition(name, "conflict")
			return nil, dErrors.Newf(dErrors.CodeConflict, "%s lost a concurrent update race", name)
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.RecordTransition(name, "not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "timer not found")
		default:
			s.metrics.RecordTransition(name, "error")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write transition")
		}
	}
}

// now prefers the request-scoped instant so every computation in one request
// shares a single reading of the clock.
func (s *Service) now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return s.clock.Now()
}

func (s *Service) recordClamp(ctx context.Context, timer *models.Timer, site string) {
	s.metrics.RecordClockSkewClamp()
	s.logger.WarnContext(ctx, "negative duration clamped to zero",
		"site", site,
		"timer_id", timer.ID,
		"status", timer.Status,
	)
}

func (s *Service) emit(ctx context.Context, eventType audit.EventType, timer *models.Timer) {
	event := audit.Event{
		Type:               eventType,
		TimerID:            timer.ID,
		OwnerID:            timer.OwnerID,
		Category:           timer.Category,
		Timestamp:          s.now(ctx),
		RequestID:          requestcontext.RequestID(ctx),
		TotalPausedSeconds: timer.TotalPausedSeconds,
	}
	if timer.Status == models.StatusCompleted {
		event.TotalSeconds = timer.TotalSeconds
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"type", eventType,
			"timer_id", timer.ID,
			"error", err,
		)
	}
}

func wrapStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "timer not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "timer store failure")
}
