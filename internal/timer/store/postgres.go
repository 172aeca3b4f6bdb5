package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"timekeep/internal/timer/models"
	id "timekeep/pkg/domain"
	"timekeep/pkg/platform/sentinel"
)

// Postgres persists timers in PostgreSQL. The conditional UPDATE guarded by
// the expected status is the optimistic-concurrency primitive; no row locks
// are held across the read-compute-write cycle.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const timerColumns = `id, owner_id, category, status, started_at, paused_at,
	total_paused_seconds, ended_at, total_seconds, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, timer *models.Timer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timers (`+timerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(timer.ID), uuid.UUID(timer.OwnerID), timer.Category, string(timer.Status),
		timer.StartedAt, nullTime(timer.PausedAt), timer.TotalPausedSeconds,
		nullTime(timer.EndedAt), timer.TotalSeconds, timer.CreatedAt, timer.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert timer: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, timerID id.TimerID) (*models.Timer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+timerColumns+` FROM timers WHERE id = $1`,
		uuid.UUID(timerID),
	)
	timer, err := scanTimer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find timer: %w", err)
	}
	return timer, nil
}

// UpdateIfStatus applies the snapshot only while the stored status still
// matches expectedStatus. Zero rows affected means either the guard failed or
// the row is gone; a follow-up existence check tells the two apart.
func (s *Postgres) UpdateIfStatus(ctx context.Context, timer *models.Timer, expectedStatus models.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE timers
		SET status = $1, paused_at = $2, total_paused_seconds = $3,
		    ended_at = $4, total_seconds = $5, updated_at = $6
		WHERE id = $7 AND status = $8`,
		string(timer.Status), nullTime(timer.PausedAt), timer.TotalPausedSeconds,
		nullTime(timer.EndedAt), timer.TotalSeconds, timer.UpdatedAt,
		uuid.UUID(timer.ID), string(expectedStatus),
	)
	if err != nil {
		return fmt.Errorf("update timer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timer rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM timers WHERE id = $1)`, uuid.UUID(timer.ID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check timer existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *Postgres) ListByOwner(ctx context.Context, ownerID id.OwnerID, statuses []models.Status) ([]*models.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE owner_id = $1`
	args := []any{uuid.UUID(ownerID)}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		args = append(args, names)
	}
	query += ` ORDER BY started_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	var out []*models.Timer
	for rows.Next() {
		timer, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		out = append(out, timer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimer(row scanner) (*models.Timer, error) {
	var (
		timer    models.Timer
		timerID  uuid.UUID
		ownerID  uuid.UUID
		status   string
		pausedAt sql.NullTime
		endedAt  sql.NullTime
	)
	err := row.Scan(
		&timerID, &ownerID, &timer.Category, &status, &timer.StartedAt, &pausedAt,
		&timer.TotalPausedSeconds, &endedAt, &timer.TotalSeconds,
		&timer.CreatedAt, &timer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	timer.ID = id.TimerID(timerID)
	timer.OwnerID = id.OwnerID(ownerID)
	timer.Status = models.Status(status)
	if pausedAt.Valid {
		t := pausedAt.Time
		timer.PausedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		timer.EndedAt = &t
	}
	return &timer, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
