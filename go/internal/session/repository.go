package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/events"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/outbox"
	"github.com/focusguard/focusguard/go/internal/reward"
	"github.com/focusguard/focusguard/go/internal/sqlutil"
)

// openSessionConstraint is the partial unique index allowing one open session per owner.
const openSessionConstraint = "focus_sessions_one_open_per_owner"

// Repository is the Postgres Store.
type Repository struct {
	queries *db.Queries
	db      *sql.DB
}

func NewRepository(queries *db.Queries, database *sql.DB) *Repository {
	return &Repository{
		queries: queries,
		db:      database,
	}
}

var _ Store = (*Repository)(nil)

func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		return fn(newTxRepository(q))
	})
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row, err := r.queries.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sessionFromRow(row), nil
}

func (r *Repository) GetOpenSession(ctx context.Context, ownerID string) (*models.Session, error) {
	row, err := r.queries.GetOpenSessionByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return sessionFromRow(row), nil
}

func (r *Repository) ListSessions(ctx context.Context, req ListSessionsRequest) ([]*models.Session, int, error) {
	rows, err := r.queries.ListSessionsByOwner(ctx, db.ListSessionsByOwnerParams{
		OwnerID:       req.OwnerID,
		CompletedOnly: req.CompletedOnly,
		Limit:         int32(req.Limit),
		Offset:        int32(req.Offset),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	total, err := r.queries.CountSessionsByOwner(ctx, db.CountSessionsByOwnerParams{
		OwnerID:       req.OwnerID,
		CompletedOnly: req.CompletedOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	sessions := make([]*models.Session, len(rows))
	for i, row := range rows {
		sessions[i] = sessionFromRow(row)
	}
	return sessions, int(total), nil
}

func (r *Repository) ListStaleSessions(ctx context.Context, createdBefore, updatedBefore time.Time, limit int) ([]uuid.UUID, error) {
	ids, err := r.queries.ListStaleOpenSessions(ctx, db.ListStaleOpenSessionsParams{
		CreatedBefore: createdBefore,
		UpdatedBefore: updatedBefore,
		Limit:         int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return ids, nil
}

// txRepository binds every write of one command to a single transaction.
type txRepository struct {
	queries *db.Queries
	ledger  *reward.Repository
	outbox  *outbox.Repository
}

func newTxRepository(q *db.Queries) *txRepository {
	return &txRepository{
		queries: q,
		ledger:  reward.NewRepository(q),
		outbox:  outbox.NewRepository(q),
	}
}

func (t *txRepository) CreateSession(ctx context.Context, s *models.Session) error {
	row, err := t.queries.CreateSession(ctx, db.CreateSessionParams{
		ID:                     s.ID,
		OwnerID:                s.OwnerID,
		PlannedDurationSeconds: int32(s.PlannedDurationSeconds),
		StartTimestamp:         sqlutil.ToSqlTime(s.StartTimestamp),
		CreatedAt:              s.CreatedAt,
	})
	if err != nil {
		if sqlutil.IsUniqueViolation(err, openSessionConstraint) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	*s = *sessionFromRow(row)
	return nil
}

func (t *txRepository) LockSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row, err := t.queries.GetSessionForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	return sessionFromRow(row), nil
}

func (t *txRepository) UpdateSession(ctx context.Context, s *models.Session) error {
	n, err := t.queries.UpdateSession(ctx, db.UpdateSessionParams{
		ID:                     s.ID,
		Version:                int32(s.Version),
		PlannedDurationSeconds: int32(s.PlannedDurationSeconds),
		StartTimestamp:         sqlutil.ToSqlTime(s.StartTimestamp),
		AccumulatedRunMs:       s.AccumulatedRun.Milliseconds(),
		State:                  string(s.State),
		ActualFocusSeconds:     sqlutil.ToSqlInt32(s.ActualFocusSeconds),
		CommandsIssued:         s.CommandsIssued,
		UpdatedAt:              s.UpdatedAt,
		TerminalAt:             sqlutil.ToSqlTime(s.TerminalAt),
	})
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n == 0 {
		return errVersionConflict
	}
	s.Version++
	return nil
}

func (t *txRepository) GetRewardOutcome(ctx context.Context, sessionID uuid.UUID) (*models.RewardOutcome, error) {
	return t.ledger.GetRewardOutcome(ctx, sessionID)
}

func (t *txRepository) InsertEvent(ctx context.Context, s *models.Session, eventType events.EventType, payload any) error {
	return t.outbox.InsertEvent(ctx, s.ID, s.OwnerID, eventType, payload, s.UpdatedAt)
}

func (t *txRepository) Ledger() reward.Ledger {
	return t.ledger
}

func sessionFromRow(row db.FocusSession) *models.Session {
	return &models.Session{
		ID:                     row.ID,
		OwnerID:                row.OwnerID,
		PlannedDurationSeconds: int(row.PlannedDurationSeconds),
		StartTimestamp:         sqlutil.FromSqlTime(row.StartTimestamp),
		AccumulatedRun:         time.Duration(row.AccumulatedRunMs) * time.Millisecond,
		State:                  models.SessionState(row.State),
		ActualFocusSeconds:     sqlutil.FromSqlInt32(row.ActualFocusSeconds),
		CommandsIssued:         row.CommandsIssued,
		Version:                int(row.Version),
		CreatedAt:              row.CreatedAt.UTC(),
		UpdatedAt:              row.UpdatedAt.UTC(),
		TerminalAt:             sqlutil.FromSqlTime(row.TerminalAt),
	}
}
