//go:build integration

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
	"timekeep/pkg/testutil/containers"
)

const timersSchema = `
CREATE TABLE IF NOT EXISTS timers (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	paused_at TIMESTAMPTZ,
	total_paused_seconds BIGINT NOT NULL DEFAULT 0,
	ended_at TIMESTAMPTZ,
	total_seconds BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timers_owner_status ON timers (owner_id, status);
`

type PostgresStoreSuite struct {
	suite.Suite
	pc    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pc = containers.NewPostgresContainer(s.T())

	_, err := s.pc.DB.ExecContext(s.ctx, timersSchema)
	s.Require().NoError(err)

	s.store = NewPostgres(s.pc.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pc.DB.ExecContext(s.ctx, `TRUNCATE timers`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTimer(owner id.OwnerID, category string) *models.Timer {
	timer, err := models.NewTimer(id.TimerID(uuid.New()), owner, category, time.Now().UTC())
	s.Require().NoError(err)
	return timer
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
	s.Require().NoError(s.store.Create(s.ctx, timer))

	found, err := s.store.FindByID(s.ctx, timer.ID)
	s.Require().NoError(err)
	s.Equal(timer.ID, found.ID)
	s.Equal(timer.OwnerID, found.OwnerID)
	s.Equal("inspection", found.Category)
	s.Equal(models.StatusActive, found.Status)
	s.Nil(found.PausedAt)
	s.WithinDuration(timer.StartedAt, found.StartedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestCreateDuplicateID() {
	timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
	s.Require().NoError(s.store.Create(s.ctx, timer))
	s.Require().ErrorIs(s.store.Create(s.ctx, timer), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(s.ctx, id.TimerID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConditionalUpdate() {
	s.Run("applies update when status guard holds", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))

		s.Require().NoError(timer.Pause(time.Now().UTC()))
		s.Require().NoError(s.store.UpdateIfStatus(s.ctx, timer, models.StatusActive))

		found, err := s.store.FindByID(s.ctx, timer.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPaused, found.Status)
		s.Require().NotNil(found.PausedAt)
	})

	s.Run("rejects update when status moved since the read", func() {
		timer := s.newTimer(id.OwnerID(uuid.New()), "inspection")
		s.Require().NoError(s.store.Create(s.ctx, timer))

		first := timer.Clone()
		second := timer.Clone()
		s.Require().NoError(first.Pause(time.Now().UTC()))
		s.Require().NoError(second.Pause(time.Now().UTC()))

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

func (s *PostgresStoreSuite) TestCompletedTimerPersistsFrozenTotal() {
	start := time.Now().UTC().Add(-200 * time.Second)
	timer, err := models.NewTimer(id.TimerID(uuid.New()), id.OwnerID(uuid.New()), "inspection", start)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, timer))

	s.Require().NoError(timer.Pause(start.Add(100 * time.Second)))
	s.Require().NoError(s.store.UpdateIfStatus(s.ctx, timer, models.StatusActive))

	_, err = timer.Resume(start.Add(130 * time.Second))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateIfStatus(s.ctx, timer, models.StatusPaused))

	_, err = timer.Complete(start.Add(200 * time.Second))
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateIfStatus(s.ctx, timer, models.StatusActive))

	found, err := s.store.FindByID(s.ctx, timer.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, found.Status)
	s.Equal(int64(30), found.TotalPausedSeconds)
	s.Equal(int64(170), found.TotalSeconds)
	s.Require().NotNil(found.EndedAt)
}

func (s *PostgresStoreSuite) TestListByOwner() {
	owner := id.OwnerID(uuid.New())
	other := id.OwnerID(uuid.New())

	first := s.newTimer(owner, "inspection")
	second := s.newTimer(owner, "repair")
	s.Require().NoError(second.Pause(time.Now().UTC()))
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
