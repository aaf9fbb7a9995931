package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/events"
)

// ErrEventNotFound is returned when an outbox row is missing or already sent.
var ErrEventNotFound = errors.New("outbox event not found or already sent")

type Repository struct {
	queries *db.Queries
}

func NewRepository(queries *db.Queries) *Repository {
	return &Repository{
		queries: queries,
	}
}

// InsertEvent marshals payload and appends it to the outbox. Call it with a
// transaction-bound Repository so the event commits with the state change.
func (r *Repository) InsertEvent(ctx context.Context, sessionID uuid.UUID, ownerID string, eventType events.EventType, payload any, createdAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	err = r.queries.InsertOutboxEvent(ctx, db.InsertOutboxEventParams{
		ID:        uuid.New(),
		SessionID: sessionID,
		OwnerID:   ownerID,
		EventType: string(eventType),
		Payload:   data,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	rows, err := r.queries.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	out := make([]Event, len(rows))
	for i, row := range rows {
		out[i] = eventFromRow(row)
	}
	return out, nil
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row, err := r.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	ev := eventFromRow(row)
	return &ev, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountUnsent(ctx context.Context) (int, error) {
	n, err := r.queries.CountUnsentOutbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return int(n), nil
}

func eventFromRow(row db.SessionOutbox) Event {
	ev := Event{
		ID:        row.ID,
		SessionID: row.SessionID,
		OwnerID:   row.OwnerID,
		EventType: row.EventType,
		Payload:   row.Payload,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.SentAt.Valid {
		t := row.SentAt.Time.UTC()
		ev.SentAt = &t
	}
	return ev
}
