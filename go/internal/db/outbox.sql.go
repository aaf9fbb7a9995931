package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const insertOutboxEvent = `-- name: InsertOutboxEvent :exec
INSERT INTO session_outbox (id, session_id, owner_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

type InsertOutboxEventParams struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	OwnerID   string
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent,
		arg.ID,
		arg.SessionID,
		arg.OwnerID,
		arg.EventType,
		arg.Payload,
		arg.CreatedAt,
	)
	return err
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT id, session_id, owner_id, event_type, payload, created_at, sent_at
FROM session_outbox
WHERE id = $1 AND sent_at IS NULL`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (SessionOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	var i SessionOutbox
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.OwnerID,
		&i.EventType,
		&i.Payload,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT id, session_id, owner_id, event_type, payload, created_at, sent_at
FROM session_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]SessionOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SessionOutbox
	for rows.Next() {
		var i SessionOutbox
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.OwnerID,
			&i.EventType,
			&i.Payload,
			&i.CreatedAt,
			&i.SentAt,
		); err != nil {
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

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE session_outbox
SET sent_at = NOW()
WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}

const countUnsentOutbox = `-- name: CountUnsentOutbox :one
SELECT COUNT(*)
FROM session_outbox
WHERE sent_at IS NULL`

func (q *Queries) CountUnsentOutbox(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnsentOutbox)
	var count int64
	err := row.Scan(&count)
	return count, err
}
