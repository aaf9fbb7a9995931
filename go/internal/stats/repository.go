package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/reward"
	"github.com/focusguard/focusguard/go/internal/sqlutil"
)

// Repository handles read-only access to reward aggregates
type Repository struct {
	queries *db.Queries
}

// NewRepository creates a new stats repository
func NewRepository(queries *db.Queries) *Repository {
	return &Repository{
		queries: queries,
	}
}

var _ StatsRepository = (*Repository)(nil)

// GetUserStats returns the zero aggregate for owners who never completed a session.
func (r *Repository) GetUserStats(ctx context.Context, ownerID string) (*models.UserStats, error) {
	row, err := r.queries.GetUserStats(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserStats{OwnerID: ownerID, Level: 1}, nil
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return reward.UserStatsFromRow(row), nil
}

func (r *Repository) DailyFocus(ctx context.Context, ownerID string, loc *time.Location, since time.Time) ([]models.DailyStat, error) {
	rows, err := r.queries.DailyFocusByOwner(ctx, db.DailyFocusByOwnerParams{
		OwnerID:  ownerID,
		Timezone: loc.String(),
		Since:    since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query daily focus: %w", err)
	}

	out := make([]models.DailyStat, len(rows))
	for i, row := range rows {
		out[i] = models.DailyStat{
			Day:               *sqlutil.FromSqlDate(sql.NullTime{Time: row.Day, Valid: true}),
			SessionsCompleted: int(row.Sessions),
			FocusSeconds:      int(row.FocusSeconds),
		}
	}
	return out, nil
}

func (r *Repository) ListGarden(ctx context.Context, ownerID string, offset, limit int) ([]*models.GardenItem, error) {
	rows, err := r.queries.ListGardenItems(ctx, db.ListGardenItemsParams{
		OwnerID: ownerID,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list garden items: %w", err)
	}

	items := make([]*models.GardenItem, len(rows))
	for i, row := range rows {
		items[i] = gardenItemFromRow(row)
	}
	return items, nil
}

// SetGrowthStage returns ErrNotFound when the owner has no such item.
func (r *Repository) SetGrowthStage(ctx context.Context, ownerID string, itemID uuid.UUID, stage int) (*models.GardenItem, error) {
	row, err := r.queries.UpdateGardenItemGrowth(ctx, db.UpdateGardenItemGrowthParams{
		ID:          itemID,
		OwnerID:     ownerID,
		GrowthStage: int32(stage),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update garden item: %w", err)
	}
	return gardenItemFromRow(row), nil
}

func (r *Repository) FocusHours(ctx context.Context, ownerID string, loc *time.Location, since time.Time) ([]models.HourlyFocus, error) {
	rows, err := r.queries.FocusHoursByOwner(ctx, db.FocusHoursByOwnerParams{
		OwnerID:  ownerID,
		Timezone: loc.String(),
		Since:    since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query focus hours: %w", err)
	}

	out := make([]models.HourlyFocus, len(rows))
	for i, row := range rows {
		out[i] = models.HourlyFocus{
			Hour:         int(row.Hour),
			Sessions:     int(row.Sessions),
			FocusSeconds: int(row.FocusSeconds),
		}
	}
	return out, nil
}

func gardenItemFromRow(row db.GardenItem) *models.GardenItem {
	return &models.GardenItem{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		SessionID:   row.SessionID,
		PlantNum:    int(row.PlantNum),
		PlantType:   int(row.PlantType),
		Rarity:      models.Rarity(row.Rarity),
		GrowthStage: int(row.GrowthStage),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func (r *Repository) GardenStats(ctx context.Context, ownerID string) (*models.GardenStats, error) {
	row, err := r.queries.GardenRarityCounts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count garden items: %w", err)
	}
	return &models.GardenStats{
		OwnerID:        ownerID,
		TotalItems:     int(row.Total),
		RareItems:      int(row.Rare),
		EpicItems:      int(row.Epic),
		LegendaryItems: int(row.Legendary),
		LastGrantedAt:  sqlutil.FromSqlTime(row.LastGrantedAt),
	}, nil
}
