package reward

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/sqlutil"
)

// ErrOutcomeNotFound is returned when a session has no persisted outcome.
var ErrOutcomeNotFound = errors.New("reward outcome not found")

// Repository implements Ledger on top of the sqlc queries. Bind it to a
// transaction with db.Queries.WithTx before use.
type Repository struct {
	queries *db.Queries
}

func NewRepository(queries *db.Queries) *Repository {
	return &Repository{
		queries: queries,
	}
}

var _ Ledger = (*Repository)(nil)

func (r *Repository) LockUserStats(ctx context.Context, ownerID string, now time.Time) (*models.UserStats, error) {
	if err := r.queries.EnsureUserStats(ctx, db.EnsureUserStatsParams{
		OwnerID:   ownerID,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure user stats: %w", err)
	}

	row, err := r.queries.GetUserStatsForUpdate(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user stats: %w", err)
	}
	return UserStatsFromRow(row), nil
}

func (r *Repository) SaveUserStats(ctx context.Context, stats *models.UserStats) error {
	err := r.queries.UpdateUserStats(ctx, db.UpdateUserStatsParams{
		OwnerID:           stats.OwnerID,
		TotalXp:           int64(stats.TotalXP),
		Level:             int32(stats.Level),
		TotalFocusSeconds: int64(stats.TotalFocusSeconds),
		TotalSessions:     int32(stats.TotalSessions),
		CurrentStreak:     int32(stats.CurrentStreak),
		BestStreak:        int32(stats.BestStreak),
		LastCompletedOn:   sqlutil.ToSqlTime(stats.LastCompletedOn),
		UpdatedAt:         stats.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}

func (r *Repository) NextPlantNum(ctx context.Context, ownerID string) (int, error) {
	num, err := r.queries.NextPlantNum(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to get next plant number: %w", err)
	}
	return int(num), nil
}

func (r *Repository) InsertGardenItem(ctx context.Context, item *models.GardenItem) error {
	err := r.queries.InsertGardenItem(ctx, db.InsertGardenItemParams{
		ID:        item.ID,
		OwnerID:   item.OwnerID,
		SessionID: item.SessionID,
		PlantNum:  int32(item.PlantNum),
		PlantType: int32(item.PlantType),
		Rarity:    string(item.Rarity),
		CreatedAt: item.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert garden item: %w", err)
	}
	return nil
}

func (r *Repository) InsertRewardOutcome(ctx context.Context, outcome *models.RewardOutcome) error {
	item := pqtype.NullRawMessage{}
	if outcome.ItemGranted != nil {
		raw, err := json.Marshal(outcome.ItemGranted)
		if err != nil {
			return fmt.Errorf("failed to marshal granted item: %w", err)
		}
		item = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	err := r.queries.InsertRewardOutcome(ctx, db.InsertRewardOutcomeParams{
		SessionID:     outcome.SessionID,
		OwnerID:       outcome.OwnerID,
		XpAwarded:     int32(outcome.XPAwarded),
		LevelBefore:   int32(outcome.LevelBefore),
		LevelAfter:    int32(outcome.LevelAfter),
		StreakDelta:   int16(outcome.StreakDelta),
		CurrentStreak: int32(outcome.CurrentStreak),
		ItemGranted:   item,
		CreatedAt:     outcome.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert reward outcome: %w", err)
	}
	return nil
}

// GetRewardOutcome loads the outcome persisted for sessionID.
func (r *Repository) GetRewardOutcome(ctx context.Context, sessionID uuid.UUID) (*models.RewardOutcome, error) {
	row, err := r.queries.GetRewardOutcome(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOutcomeNotFound
		}
		return nil, fmt.Errorf("failed to get reward outcome: %w", err)
	}
	return OutcomeFromRow(row)
}

// UserStatsFromRow converts a user_stats row.
func UserStatsFromRow(row db.UserStat) *models.UserStats {
	return &models.UserStats{
		OwnerID:           row.OwnerID,
		TotalXP:           int(row.TotalXp),
		Level:             int(row.Level),
		TotalFocusSeconds: int(row.TotalFocusSeconds),
		TotalSessions:     int(row.TotalSessions),
		CurrentStreak:     int(row.CurrentStreak),
		BestStreak:        int(row.BestStreak),
		LastCompletedOn:   sqlutil.FromSqlDate(row.LastCompletedOn),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

// OutcomeFromRow converts a reward_outcomes row.
func OutcomeFromRow(row db.RewardOutcome) (*models.RewardOutcome, error) {
	outcome := &models.RewardOutcome{
		SessionID:     row.SessionID,
		OwnerID:       row.OwnerID,
		XPAwarded:     int(row.XpAwarded),
		LevelBefore:   int(row.LevelBefore),
		LevelAfter:    int(row.LevelAfter),
		StreakDelta:   models.StreakDelta(row.StreakDelta),
		CurrentStreak: int(row.CurrentStreak),
		CreatedAt:     row.CreatedAt.UTC(),
	}
	if row.ItemGranted.Valid {
		var item models.GardenItem
		if err := json.Unmarshal(row.ItemGranted.RawMessage, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal granted item: %w", err)
		}
		outcome.ItemGranted = &item
	}
	return outcome, nil
}
