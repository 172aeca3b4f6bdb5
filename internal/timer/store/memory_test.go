package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"timekeep/internal/timer/models"
	id "timekeep/pkg/domain"
	"timekeep/pkg/platform/sentinel"
)

type TimerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *TimerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestTimerStoreSuite(t *testing.T) {
	suite.Run(t, new(TimerStoreSuite))
}

func (s *TimerStoreSuite) newTimer(owner id.OwnerID, category string) *models.Timer {
	timer, err := models.NewTimer(id.TimerID(uuid.New()), owner, category, time.Now())
	s.Require().NoError(err)
	return timer
}

func (s *TimerStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds timer by ID", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))

		found, err := s.store.FindByID(s.ctx, timer.ID)
		s.Require().NoError(err)
		s.Equal(timer.Category, found.Category)
		s.Equal(models.StatusActive, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.TimerID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate ID", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))
		s.Require().ErrorIs(s.store.Create(s.ctx, timer), sentinel.ErrConflict)
	})

	s.Run("hands out snapshots, not live state", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))

		found, err := s.store.FindByID(s.ctx, timer.ID)
		s.Require().NoError(err)
		found.Category = "mutated"

		again, err := s.store.FindByID(s.ctx, timer.ID)
		s.Require().NoError(err)
		s.Equal("inspection", again.Category)
	})
}

func (s *TimerStoreSuite) TestConditionalUpdate() {
	s.Run("applies update when status guard holds", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))

		s.Require().NoError(timer.Pause(time.Now()))
		s.Require().NoError(s.store.UpdateIfStatus(s.ctx, timer, models.StatusActive))

		found, err := s.store.FindByID(s.ctx, timer.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPaused, found.Status)
		s.NotNil(found.PausedAt)
	})

	s.Run("rejects update when status moved since the read", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))

		// Two callers read the same active snapshot and both try to pause.
		first := timer.Clone()
		second := timer.Clone()
		s.Require().NoError(first.Pause(time.Now()))
		s.Require().NoError(second.Pause(time.Now()))

		s.Require().NoError(s.store.UpdateIfStatus(s.ctx, first, models.StatusActive))
		err := s.store.UpdateIfStatus(s.ctx, second, models.StatusActive)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for non-existent timer", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		err := s.store.UpdateIfStatus(s.ctx, timer, models.StatusActive)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TimerStoreSuite) TestListByOwner() {
	owner := id.OwnerID(uuid.New())
	other := id.OwnerID(uuid.New())

	first := s.newTimer(owner, "inspection")
	second := s.newTimer(owner, "repair")
	s.Require().NoError(second.Pause(time.Now()))
	third := s.newTimer(other, "inspection")

	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, third))

	s.Run("empty status set returns all owned timers", func() {
		timers, err := s.store.ListByOwner(s.ctx, owner, nil)
		s.Require().NoError(err)
		s.Len(timers, 2)
	})

	s.Run("filters by status", func() {
		timers, err := s.store.ListByOwner(s.ctx, owner, []models.Status{models.StatusPaused})
		s.Require().NoError(err)
		s.Require().Len(timers, 1)
		s.Equal(second.ID, timers[0].ID)
	})

	s.Run("never returns another owner's timers", func() {
		timers, err := s.store.ListByOwner(s.ctx, other, nil)
		s.Require().NoError(err)
		s.Require().Len(timers, 1)
		s.Equal(third.ID, timers[0].ID)
	})
}
