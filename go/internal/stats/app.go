package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/reward"
)

// StatsRepository defines what the app layer needs from the repository
type StatsRepository interface {
	GetUserStats(ctx context.Context, ownerID string) (*models.UserStats, error)
	DailyFocus(ctx context.Context, ownerID string, loc *time.Location, since time.Time) ([]models.DailyStat, error)
	ListGarden(ctx context.Context, ownerID string, offset, limit int) ([]*models.GardenItem, error)
	GardenStats(ctx context.Context, ownerID string) (*models.GardenStats, error)
	SetGrowthStage(ctx context.Context, ownerID string, itemID uuid.UUID, stage int) (*models.GardenItem, error)
	FocusHours(ctx context.Context, ownerID string, loc *time.Location, since time.Time) ([]models.HourlyFocus, error)
}

// GardenPage is one page of an owner's garden.
type GardenPage struct {
	Items []*models.GardenItem
	Total int
}

// App serves the read side of rewards: aggregates, history and the garden.
type App struct {
	repo   StatsRepository
	policy reward.Policy
	loc    *time.Location
	clock  clockwork.Clock
}

// NewApp creates a new stats App
func NewApp(repo StatsRepository, policy reward.Policy, clock clockwork.Clock) (*App, error) {
	loc, err := policy.Location()
	if err != nil {
		return nil, err
	}
	return &App{
		repo:   repo,
		policy: policy,
		loc:    loc,
		clock:  clock,
	}, nil
}

// GetUserStats returns the owner's aggregate. The level is derived from total
// XP rather than trusted from storage, and the current streak reads 0 once a
// calendar day has passed without a completion.
func (a *App) GetUserStats(ctx context.Context, ownerID string) (*UserStatsView, error) {
	stats, err := a.repo.GetUserStats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	perLevel := a.policy.XPPerLevel
	level := reward.LevelForXP(stats.TotalXP, perLevel)
	today := reward.CalendarDay(a.clock.Now(), a.loc)
	return &UserStatsView{
		OwnerID:           stats.OwnerID,
		TotalXP:           stats.TotalXP,
		Level:             level,
		XPIntoLevel:       stats.TotalXP - (level-1)*perLevel,
		XPPerLevel:        perLevel,
		TotalFocusSeconds: stats.TotalFocusSeconds,
		TotalSessions:     stats.TotalSessions,
		CurrentStreak:     reward.StreakAsOf(stats.LastCompletedOn, today, stats.CurrentStreak),
		BestStreak:        stats.BestStreak,
		LastCompletedOn:   stats.LastCompletedOn,
	}, nil
}

// GetDailyStats returns one row per calendar day ending today, oldest first.
// Days without completions are zero-filled.
func (a *App) GetDailyStats(ctx context.Context, ownerID string, days int) ([]models.DailyStat, error) {
	if days == 0 {
		days = DefaultDailyDays
	}
	if days < 1 || days > MaxDailyDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", ErrInvalidArgument, MaxDailyDays, days)
	}

	today := reward.CalendarDay(a.clock.Now(), a.loc)
	first := today.AddDate(0, 0, -(days - 1))
	since := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, a.loc)

	rows, err := a.repo.DailyFocus(ctx, ownerID, a.loc, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily focus: %w", err)
	}

	byDay := make(map[time.Time]models.DailyStat, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}

	out := make([]models.DailyStat, days)
	for i := range out {
		day := first.AddDate(0, 0, i)
		stat, ok := byDay[day]
		if !ok {
			stat = models.DailyStat{Day: day}
		}
		out[i] = stat
	}
	return out, nil
}

// ListGarden pages through the owner's garden, newest first.
func (a *App) ListGarden(ctx context.Context, ownerID string, offset, limit int) (*GardenPage, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultGardenLimit
	}
	if limit > MaxGardenLimit {
		limit = MaxGardenLimit
	}

	items, err := a.repo.ListGarden(ctx, ownerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list garden: %w", err)
	}
	counts, err := a.repo.GardenStats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count garden: %w", err)
	}
	return &GardenPage{Items: items, Total: counts.TotalItems}, nil
}

// GetGardenStats counts the owner's garden by rarity.
func (a *App) GetGardenStats(ctx context.Context, ownerID string) (*models.GardenStats, error) {
	stats, err := a.repo.GardenStats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get garden stats: %w", err)
	}
	return stats, nil
}

// GetUserTrends summarises the owner's completed sessions over the last
// TrendWindowDays. Start hours are taken in the policy timezone.
func (a *App) GetUserTrends(ctx context.Context, ownerID string) (*UserTrends, error) {
	since := a.clock.Now().UTC().AddDate(0, 0, -TrendWindowDays)
	hours, err := a.repo.FocusHours(ctx, ownerID, a.loc, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get focus hours: %w", err)
	}

	trends := &UserTrends{OwnerID: ownerID, WindowDays: TrendWindowDays}
	best := -1
	for i, h := range hours {
		trends.SessionsCompleted += h.Sessions
		trends.FocusSeconds += h.FocusSeconds
		if h.Sessions == 0 {
			continue
		}
		if best < 0 || h.Sessions > hours[best].Sessions || (h.Sessions == hours[best].Sessions && h.Hour < hours[best].Hour) {
			best = i
		}
	}
	if trends.SessionsCompleted > 0 {
		trends.AverageSessionSeconds = float64(trends.FocusSeconds) / float64(trends.SessionsCompleted)
	}
	if best >= 0 {
		hour := hours[best].Hour
		trends.MostProductiveHour = &hour
	}
	return trends, nil
}

// SetGrowthStage moves one of the owner's garden items to stage.
func (a *App) SetGrowthStage(ctx context.Context, ownerID string, itemID uuid.UUID, stage int) (*models.GardenItem, error) {
	if stage < 0 || stage > models.MaxGrowthStage {
		return nil, fmt.Errorf("%w: growth stage must be between 0 and %d, got %d", ErrInvalidArgument, models.MaxGrowthStage, stage)
	}

	item, err := a.repo.SetGrowthStage(ctx, ownerID, itemID, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to set growth stage: %w", err)
	}
	log.Info().
		Str("owner_id", ownerID).
		Str("item_id", itemID.String()).
		Int("growth_stage", stage).
		Msg("garden item grown")
	return item, nil
}
