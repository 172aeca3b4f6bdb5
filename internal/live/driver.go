// Package live gives display surfaces a locally-ticking approximation of
// elapsed time for an owner's running timers without hammering the store.
//
// Each subscription owns a cached snapshot of the owner's active and paused
// timers, refreshed two ways: a per-second display tick recomputes elapsed
// values purely from the cache and the local clock, and a coarser
// reconciliation tick re-fetches authoritative snapshots wholesale. The
// reconciliation is what catches transitions made from other devices and
// corrects drift from missed ticks (backgrounded tab, device sleep). The
// local tick never mutates stored state.
package live

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	timermetrics "timekeep/internal/timer/metrics"
	"timekeep/internal/timer/models"
	"timekeep/pkg/clock"
	id "timekeep/pkg/domain"
)

// Service is the slice of the timer service the driver delegates to.
type Service interface {
	Get(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	ListByOwner(ctx context.Context, ownerID id.OwnerID, statuses []models.Status) ([]*models.Timer, error)
	Pause(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	Resume(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
	Complete(ctx context.Context, timerID id.TimerID) (*models.Timer, error)
}

// TimerView pairs a snapshot with its display-ready elapsed value.
type TimerView struct {
	Timer              *models.Timer
	LiveElapsedSeconds int64
}

// Update is one delivery to a subscriber. Err is non-nil when an action call
// failed; the accompanying views already reflect the forced reconciliation,
// so the display converges to truth in the same delivery that reports the
// failure.
type Update struct {
	Timers []TimerView
	Err    error
}

// Driver manages live subscriptions. All fields are set at construction.
type Driver struct {
	service        Service
	clock          clock.Clock
	logger         *slog.Logger
	metrics        *timermetrics.Metrics
	tickEvery      time.Duration
	reconcileEvery time.Duration
}

type Option func(d *Driver)

func WithClock(clk clock.Clock) Option {
	return func(d *Driver) { d.clock = clk }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

func WithMetrics(m *timermetrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithIntervals overrides the display tick and reconciliation cadence.
func WithIntervals(tick, reconcile time.Duration) Option {
	return func(d *Driver) {
		d.tickEvery = tick
		d.reconcileEvery = reconcile
	}
}

func New(service Service, opts ...Option) *Driver {
	d := &Driver{
		service:        service,
		clock:          clock.System,
		logger:         slog.Default(),
		tickEvery:      time.Second,
		reconcileEvery: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe starts delivering updates for the owner's active and paused
// timers. The first update (the initial authoritative fetch) arrives before
// any tick. onUpdate is always invoked from the subscription's own goroutine,
// never concurrently with itself. Cancelling ctx ends the subscription.
func (d *Driver) Subscribe(ctx context.Context, ownerID id.OwnerID, onUpdate func(Update)) *Subscription {
	sub := &Subscription{
		driver:   d,
		ctx:      ctx,
		ownerID:  ownerID,
		onUpdate: onUpdate,
		cache:    make(map[id.TimerID]*models.Timer),
		refresh:  make(chan refreshMsg, 8),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	d.metrics.SubscriptionOpened()
	go sub.run()
	return sub
}

// Unsubscribe cancels a subscription synchronously: both timers are stopped
// and no update callback fires after it returns. Display components mount and
// unmount frequently, so this must be safe to call at any moment, including
// twice.
func (d *Driver) Unsubscribe(sub *Subscription) {
	sub.close()
}

type refreshMsg struct {
	timerID id.TimerID
	timer   *models.Timer // nil when the action failed
	err     error
}

// Subscription is the handle returned by Subscribe. Action calls delegate to
// the authoritative service and optimistically refresh the local cache on
// success, bounding perceived latency to the round-trip rather than the next
// reconciliation.
type Subscription struct {
	driver   *Driver
	ctx      context.Context
	ownerID  id.OwnerID
	onUpdate func(Update)

	// cache is owned by the run goroutine; no lock needed.
	cache map[id.TimerID]*models.Timer

	refresh   chan refreshMsg
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Pause pauses the timer through the authoritative store and refreshes the
// local cache. On failure the error is returned and also delivered with a
// forced reconciliation of that timer.
func (s *Subscription) Pause(ctx context.Context, timerID id.TimerID) error {
	timer, err := s.driver.service.Pause(ctx, timerID)
	s.postRefresh(refreshMsg{timerID: timerID, timer: timer, err: err})
	return err
}

// Resume resumes the timer; same cache semantics as Pause.
func (s *Subscription) Resume(ctx context.Context, timerID id.TimerID) error {
	timer, err := s.driver.service.Resume(ctx, timerID)
	s.postRefresh(refreshMsg{timerID: timerID, timer: timer, err: err})
	return err
}

// Complete completes the timer; same cache semantics as Pause.
func (s *Subscription) Complete(ctx context.Context, timerID id.TimerID) error {
	timer, err := s.driver.service.Complete(ctx, timerID)
	s.postRefresh(refreshMsg{timerID: timerID, timer: timer, err: err})
	return err
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.driver.metrics.SubscriptionClosed()
	})
}

func (s *Subscription) postRefresh(msg refreshMsg) {
	select {
	case s.refresh <- msg:
	case <-s.stop:
	case <-s.ctx.Done():
	}
}

func (s *Subscription) run() {
	defer close(s.done)

	tick := s.driver.clock.NewTicker(s.driver.tickEvery)
	defer tick.Stop()
	reconcile := s.driver.clock.NewTicker(s.driver.reconcileEvery)
	defer reconcile.Stop()

	s.reconcileAll()

	for {
		select {
		case <-s.stop:
			return
		case <-s.ctx.Done():
			return
		case <-tick.C():
			if s.cancelled() {
				return
			}
			// Only active timers change between ticks; a fully-paused set
			// displays frozen values that the reconcile keeps honest.
			if s.anyActive() {
				s.emit(nil)
			}
		case <-reconcile.C():
			if s.cancelled() {
				return
			}
			s.reconcileAll()
		case msg := <-s.refresh:
			if s.cancelled() {
				return
			}
			s.applyRefresh(msg)
		}
	}
}

func (s *Subscription) cancelled() bool {
	select {
	case <-s.stop:
		return true
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// reconcileAll replaces the cache wholesale with authoritative snapshots.
func (s *Subscription) reconcileAll() {
	timers, err := s.driver.service.ListByOwner(s.ctx, s.ownerID,
		[]models.Status{models.StatusActive, models.StatusPaused})
	if err != nil {
		s.driver.logger.WarnContext(s.ctx, "live reconciliation failed",
			"owner_id", s.ownerID,
			"error", err,
		)
		return
	}
	s.driver.metrics.RecordReconciliation()

	s.cache = make(map[id.TimerID]*models.Timer, len(timers))
	for _, timer := range timers {
		s.cache[timer.ID] = timer
	}
	s.emit(nil)
}

// applyRefresh folds an action result into the cache. A failed action forces
// an out-of-band authoritative fetch of that one timer so the display shows
// truth immediately instead of waiting for the next scheduled reconcile.
func (s *Subscription) applyRefresh(msg refreshMsg) {
	if msg.err != nil {
		s.driver.metrics.RecordReconciliation()
		timer, err := s.driver.service.Get(s.ctx, msg.timerID)
		switch {
		case err != nil:
			delete(s.cache, msg.timerID)
		default:
			s.cacheTimer(timer)
		}
		s.emit(msg.err)
		return
	}
	s.cacheTimer(msg.timer)
	s.emit(nil)
}

// cacheTimer inserts or replaces a snapshot; completed timers leave the
// display set.
func (s *Subscription) cacheTimer(timer *models.Timer) {
	if timer == nil {
		return
	}
	if timer.Status == models.StatusCompleted {
		delete(s.cache, timer.ID)
		return
	}
	s.cache[timer.ID] = timer
}

func (s *Subscription) anyActive() bool {
	for _, timer := range s.cache {
		if timer.Status == models.StatusActive {
			return true
		}
	}
	return false
}

func (s *Subscription) emit(actionErr error) {
	now := s.driver.clock.Now()
	views := make([]TimerView, 0, len(s.cache))
	for _, timer := range s.cache {
		secs, clamped := timer.ElapsedSeconds(now)
		if clamped {
			s.driver.metrics.RecordClockSkewClamp()
			s.driver.logger.WarnContext(s.ctx, "negative duration clamped to zero",
				"site", "live display",
				"timer_id", timer.ID,
			)
		}
		views = append(views, TimerView{Timer: timer, LiveElapsedSeconds: secs})
	}
	slices.SortFunc(views, func(a, b TimerView) int {
		return a.Timer.StartedAt.Compare(b.Timer.StartedAt)
	})
	s.onUpdate(Update{Timers: views, Err: actionErr})
}
