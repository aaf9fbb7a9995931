package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const focusSessionColumns = `id, owner_id, planned_duration_seconds, start_timestamp, accumulated_run_ms, state,
       actual_focus_seconds, commands_issued, version, created_at, updated_at, terminal_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFocusSession(row rowScanner) (FocusSession, error) {
	var i FocusSession
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.PlannedDurationSeconds,
		&i.StartTimestamp,
		&i.AccumulatedRunMs,
		&i.State,
		&i.ActualFocusSeconds,
		&i.CommandsIssued,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.TerminalAt,
	)
	return i, err
}

func scanFocusSessions(rows *sql.Rows) ([]FocusSession, error) {
	defer rows.Close()
	var items []FocusSession
	for rows.Next() {
		i, err := scanFocusSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createSession = `-- name: CreateSession :one
INSERT INTO focus_sessions (
    id, owner_id, planned_duration_seconds, start_timestamp, accumulated_run_ms, state,
    commands_issued, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, 0, 'active', FALSE, 1, $5, $5)
RETURNING ` + focusSessionColumns

type CreateSessionParams struct {
	ID                     uuid.UUID
	OwnerID                string
	PlannedDurationSeconds int32
	StartTimestamp         sql.NullTime
	CreatedAt              time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (FocusSession, error) {
	row := q.db.QueryRowContext(ctx, createSession,
		arg.ID,
		arg.OwnerID,
		arg.PlannedDurationSeconds,
		arg.StartTimestamp,
		arg.CreatedAt,
	)
	return scanFocusSession(row)
}

const getSession = `-- name: GetSession :one
SELECT ` + focusSessionColumns + `
FROM focus_sessions
WHERE id = $1`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (FocusSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	return scanFocusSession(row)
}

const getSessionForUpdate = `-- name: GetSessionForUpdate :one
SELECT ` + focusSessionColumns + `
FROM focus_sessions
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (FocusSession, error) {
	row := q.db.QueryRowContext(ctx, getSessionForUpdate, id)
	return scanFocusSession(row)
}

const getOpenSessionByOwner = `-- name: GetOpenSessionByOwner :one
SELECT ` + focusSessionColumns + `
FROM focus_sessions
WHERE owner_id = $1 AND state IN ('active', 'paused')`

func (q *Queries) GetOpenSessionByOwner(ctx context.Context, ownerID string) (FocusSession, error) {
	row := q.db.QueryRowContext(ctx, getOpenSessionByOwner, ownerID)
	return scanFocusSession(row)
}

const updateSession = `-- name: UpdateSession :execrows
UPDATE focus_sessions
SET planned_duration_seconds = $3,
    start_timestamp          = $4,
    accumulated_run_ms       = $5,
    state                    = $6,
    actual_focus_seconds     = $7,
    commands_issued          = $8,
    updated_at               = $9,
    terminal_at              = $10,
    version                  = version + 1
WHERE id = $1 AND version = $2`

type UpdateSessionParams struct {
	ID                     uuid.UUID
	Version                int32
	PlannedDurationSeconds int32
	StartTimestamp         sql.NullTime
	AccumulatedRunMs       int64
	State                  string
	ActualFocusSeconds     sql.NullInt32
	CommandsIssued         bool
	UpdatedAt              time.Time
	TerminalAt             sql.NullTime
}

func (q *Queries) UpdateSession(ctx context.Context, arg UpdateSessionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSession,
		arg.ID,
		arg.Version,
		arg.PlannedDurationSeconds,
		arg.StartTimestamp,
		arg.AccumulatedRunMs,
		arg.State,
		arg.ActualFocusSeconds,
		arg.CommandsIssued,
		arg.UpdatedAt,
		arg.TerminalAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listSessionsByOwner = `-- name: ListSessionsByOwner :many
SELECT ` + focusSessionColumns + `
FROM focus_sessions
WHERE owner_id = $1
  AND ($2::boolean = FALSE OR state = 'completed')
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListSessionsByOwnerParams struct {
	OwnerID       string
	CompletedOnly bool
	Limit         int32
	Offset        int32
}

func (q *Queries) ListSessionsByOwner(ctx context.Context, arg ListSessionsByOwnerParams) ([]FocusSession, error) {
	rows, err := q.db.QueryContext(ctx, listSessionsByOwner,
		arg.OwnerID,
		arg.CompletedOnly,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return scanFocusSessions(rows)
}

const countSessionsByOwner = `-- name: CountSessionsByOwner :one
SELECT COUNT(*)
FROM focus_sessions
WHERE owner_id = $1
  AND ($2::boolean = FALSE OR state = 'completed')`

type CountSessionsByOwnerParams struct {
	OwnerID       string
	CompletedOnly bool
}

func (q *Queries) CountSessionsByOwner(ctx context.Context, arg CountSessionsByOwnerParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countSessionsByOwner, arg.OwnerID, arg.CompletedOnly)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listStaleOpenSessions = `-- name: ListStaleOpenSessions :many
SELECT id
FROM focus_sessions
WHERE state IN ('active', 'paused')
  AND created_at < $1
  AND updated_at < $2
ORDER BY created_at
LIMIT $3`

type ListStaleOpenSessionsParams struct {
	CreatedBefore time.Time
	UpdatedBefore time.Time
	Limit         int32
}

func (q *Queries) ListStaleOpenSessions(ctx context.Context, arg ListStaleOpenSessionsParams) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, listStaleOpenSessions, arg.CreatedBefore, arg.UpdatedBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const dailyFocusByOwner = `-- name: DailyFocusByOwner :many
SELECT (terminal_at AT TIME ZONE $2)::date AS day,
       COUNT(*)                             AS sessions,
       COALESCE(SUM(actual_focus_seconds), 0)::bigint AS focus_seconds
FROM focus_sessions
WHERE owner_id = $1
  AND state = 'completed'
  AND terminal_at >= $3
GROUP BY day
ORDER BY day`

type DailyFocusByOwnerParams struct {
	OwnerID  string
	Timezone string
	Since    time.Time
}

type DailyFocusByOwnerRow struct {
	Day          time.Time
	Sessions     int64
	FocusSeconds int64
}

func (q *Queries) DailyFocusByOwner(ctx context.Context, arg DailyFocusByOwnerParams) ([]DailyFocusByOwnerRow, error) {
	rows, err := q.db.QueryContext(ctx, dailyFocusByOwner, arg.OwnerID, arg.Timezone, arg.Since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyFocusByOwnerRow
	for rows.Next() {
		var i DailyFocusByOwnerRow
		if err := rows.Scan(&i.Day, &i.Sessions, &i.FocusSeconds); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const focusHoursByOwner = `-- name: FocusHoursByOwner :many
SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE $2)::integer AS hour,
       COUNT(*)                                                AS sessions,
       COALESCE(SUM(actual_focus_seconds), 0)::bigint          AS focus_seconds
FROM focus_sessions
WHERE owner_id = $1
  AND state = 'completed'
  AND terminal_at >= $3
GROUP BY hour
ORDER BY hour`

type FocusHoursByOwnerParams struct {
	OwnerID  string
	Timezone string
	Since    time.Time
}

type FocusHoursByOwnerRow struct {
	Hour         int32
	Sessions     int64
	FocusSeconds int64
}

func (q *Queries) FocusHoursByOwner(ctx context.Context, arg FocusHoursByOwnerParams) ([]FocusHoursByOwnerRow, error) {
	rows, err := q.db.QueryContext(ctx, focusHoursByOwner, arg.OwnerID, arg.Timezone, arg.Since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FocusHoursByOwnerRow
	for rows.Next() {
		var i FocusHoursByOwnerRow
		if err := rows.Scan(&i.Hour, &i.Sessions, &i.FocusSeconds); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
