package store

import (
	"context"
	"slices"
	"sync"

	"timekeep/internal/timer/models"
	id "timekeep/pkg/domain"
	"timekeep/pkg/platform/sentinel"
)

// InMemory keeps timers in a mutex-guarded map. Timers are cloned on the way
// in and out so callers always hold snapshots, never live store state; the
// conditional write is the only synchronization point, exactly as with the
// SQL-backed store.
type InMemory struct {
	mu     sync.RWMutex
	timers map[id.TimerID]*models.Timer
}

func NewInMemory() *InMemory {
	return &InMemory{timers: make(map[id.TimerID]*models.Timer)}
}

func (s *InMemory) Create(_ context.Context, timer *models.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.timers[timer.ID]; exists {
		return sentinel.ErrConflict
	}
	s.timers[timer.ID] = timer.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, timerID id.TimerID) (*models.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if timer, ok := s.timers[timerID]; ok {
		return timer.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// UpdateIfStatus writes the snapshot back only if the stored record is still
// in expectedStatus. A stale caller gets ErrConflict and must re-read; this
// is what turns two concurrent "pause" clicks into one winner and one
// conflict instead of a silently lost update.
func (s *InMemory) UpdateIfStatus(_ context.Context, timer *models.Timer, expectedStatus models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.timers[timer.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expectedStatus {
		return sentinel.ErrConflict
	}
	s.timers[timer.ID] = timer.Clone()
	return nil
}

// ListByOwner returns the owner's timers, optionally filtered by status.
// An empty status set means all statuses.
func (s *InMemory) ListByOwner(_ context.Context, ownerID id.OwnerID, statuses []models.Status) ([]*models.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Timer
	for _, timer := range s.timers {
		if timer.OwnerID != ownerID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, timer.Status) {
			continue
		}
		out = append(out, timer.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Timer) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out, nil
}
