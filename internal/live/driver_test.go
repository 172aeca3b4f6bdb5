package live

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeep/internal/timer/models"
	"timekeep/internal/timer/service"
	"timekeep/internal/timer/store"
	"timekeep/pkg/clock/clocktest"
	id "timekeep/pkg/domain"
	dErrors "timekeep/pkg/domain-errors"
	"timekeep/pkg/requestcontext"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	clock   *clocktest.Manual
	store   *store.InMemory
	service *service.Service
	driver  *Driver
	updates chan Update
	owner   id.OwnerID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	manual := clocktest.NewManual(epoch)
	mem := store.NewInMemory()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	svc, err := service.New(mem,
		service.WithClock(manual),
		service.WithLogger(logger),
	)
	require.NoError(t, err)

	return &harness{
		clock:   manual,
		store:   mem,
		service: svc,
		driver: New(svc,
			WithClock(manual),
			WithLogger(logger),
			WithIntervals(time.Second, 5*time.Second),
		),
		updates: make(chan Update, 64),
		owner:   id.OwnerID(uuid.New()),
	}
}

func (h *harness) subscribe(t *testing.T) *Subscription {
	t.Helper()
	sub := h.driver.Subscribe(context.Background(), h.owner, func(u Update) {
		h.updates <- u
	})
	t.Cleanup(func() { h.driver.Unsubscribe(sub) })
	return sub
}

// next blocks for the next update delivery.
func (h *harness) next(t *testing.T) Update {
	t.Helper()
	select {
	case u := <-h.updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

// nextMatching reads updates until predicate matches, bounded by a deadline.
func (h *harness) nextMatching(t *testing.T, match func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-h.updates:
			if match(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching update")
			return Update{}
		}
	}
}

func elapsedOf(u Update, timerID id.TimerID) (int64, bool) {
	for _, view := range u.Timers {
		if view.Timer.ID == timerID {
			return view.LiveElapsedSeconds, true
		}
	}
	return 0, false
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	h.subscribe(t)

	first := h.next(t)
	require.Len(t, first.Timers, 1)
	assert.Equal(t, timer.ID, first.Timers[0].Timer.ID)
	assert.Zero(t, first.Timers[0].LiveElapsedSeconds)
	assert.NoError(t, first.Err)
}

func TestLocalTickAdvancesElapsed(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	h.subscribe(t)
	h.next(t) // initial snapshot

	h.clock.Advance(time.Second)
	u := h.nextMatching(t, func(u Update) bool {
		secs, ok := elapsedOf(u, timer.ID)
		return ok && secs == 1
	})
	secs, _ := elapsedOf(u, timer.ID)
	assert.Equal(t, int64(1), secs)

	h.clock.Advance(time.Second)
	h.nextMatching(t, func(u Update) bool {
		secs, ok := elapsedOf(u, timer.ID)
		return ok && secs == 2
	})
}

func TestNoTickUpdatesWhileEverythingPaused(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)
	_, err = h.service.Pause(context.Background(), timer.ID)
	require.NoError(t, err)

	h.subscribe(t)
	h.next(t) // initial snapshot

	h.clock.Advance(time.Second)
	h.clock.Advance(time.Second)

	select {
	case u := <-h.updates:
		t.Fatalf("expected no tick update for a fully-paused set, got %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestReconcileCorrectsDownward covers the cross-device race: the display
// ticks locally while another client pauses the timer; the scheduled
// reconciliation snaps the displayed value back to what authoritative state
// supports.
func TestReconcileCorrectsDownward(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	h.subscribe(t)
	h.next(t)

	// Local display ticks up to 3 seconds.
	for range 3 {
		h.clock.Advance(time.Second)
	}
	h.nextMatching(t, func(u Update) bool {
		secs, ok := elapsedOf(u, timer.ID)
		return ok && secs == 3
	})

	// Another client paused the timer 2 seconds ago; this subscription's
	// cache still believes it is active and keeps ticking.
	pauseCtx := requestcontext.WithTime(context.Background(), h.clock.Now().Add(-2*time.Second))
	_, err = h.service.Pause(pauseCtx, timer.ID)
	require.NoError(t, err)

	// Drive up to the reconcile interval; the wholesale re-fetch replaces the
	// stale cache and the displayed value corrects downward to 1s.
	for range 3 {
		h.clock.Advance(time.Second)
	}
	u := h.nextMatching(t, func(u Update) bool {
		secs, ok := elapsedOf(u, timer.ID)
		if !ok {
			return false
		}
		return u.Timers[0].Timer.Status == models.StatusPaused && secs == 1
	})
	secs, _ := elapsedOf(u, timer.ID)
	assert.Equal(t, int64(1), secs)
}

func TestActionRefreshesCacheImmediately(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	sub := h.subscribe(t)
	h.next(t)

	h.clock.Advance(time.Second)
	h.nextMatching(t, func(u Update) bool {
		secs, ok := elapsedOf(u, timer.ID)
		return ok && secs == 1
	})

	// Pause through the subscription: the cache refreshes from the action
	// result without waiting for the next reconciliation tick.
	require.NoError(t, sub.Pause(context.Background(), timer.ID))
	u := h.nextMatching(t, func(u Update) bool {
		view, ok := elapsedOf(u, timer.ID)
		_ = view
		return ok && len(u.Timers) == 1 && u.Timers[0].Timer.Status == models.StatusPaused
	})
	assert.NoError(t, u.Err)
}

func TestCompletedTimerLeavesDisplaySet(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	sub := h.subscribe(t)
	h.next(t)

	require.NoError(t, sub.Complete(context.Background(), timer.ID))
	h.nextMatching(t, func(u Update) bool {
		return len(u.Timers) == 0
	})
}

func TestFailedActionForcesReconcileAndSurfacesError(t *testing.T) {
	h := newHarness(t)
	timer, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	sub := h.subscribe(t)
	h.next(t)

	// Another client completes the timer out from under this display.
	_, err = h.service.Complete(context.Background(), timer.ID)
	require.NoError(t, err)

	err = sub.Complete(context.Background(), timer.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	// The error payload arrives alongside the reconciled view: the completed
	// timer is gone from the display set in the same delivery.
	u := h.nextMatching(t, func(u Update) bool { return u.Err != nil })
	assert.Empty(t, u.Timers)
}

func TestUnsubscribeStopsDeliveries(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	sub := h.driver.Subscribe(context.Background(), h.owner, func(u Update) {
		h.updates <- u
	})
	h.next(t)

	h.driver.Unsubscribe(sub)
	// Unsubscribing twice must be safe; display components unmount sloppily.
	h.driver.Unsubscribe(sub)

	drained := len(h.updates)
	for range drained {
		<-h.updates
	}

	h.clock.Advance(time.Second)
	h.clock.Advance(5 * time.Second)

	select {
	case u := <-h.updates:
		t.Fatalf("update delivered after unsubscribe: %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestContextCancellationEndsSubscription(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Start(context.Background(), h.owner, "inspection")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.driver.Subscribe(ctx, h.owner, func(u Update) {
		h.updates <- u
	})
	h.next(t)

	cancel()
	// Unsubscribe after cancellation must not hang.
	done := make(chan struct{})
	go func() {
		h.driver.Unsubscribe(sub)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe hung after context cancellation")
	}
}
