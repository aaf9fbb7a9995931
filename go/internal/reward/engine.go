package reward

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/focusguard/focusguard/go/internal/models"
)

// Ledger is what the engine needs from the store. Every call is expected to
// run inside the transaction that completes the session.
type Ledger interface {
	LockUserStats(ctx context.Context, ownerID string, now time.Time) (*models.UserStats, error)
	SaveUserStats(ctx context.Context, stats *models.UserStats) error
	NextPlantNum(ctx context.Context, ownerID string) (int, error)
	InsertGardenItem(ctx context.Context, item *models.GardenItem) error
	InsertRewardOutcome(ctx context.Context, outcome *models.RewardOutcome) error
}

// Input describes one completed session.
type Input struct {
	SessionID          uuid.UUID
	OwnerID            string
	ActualFocusSeconds int
	CompletedAt        time.Time
}

// LevelChange is the result of applying XP to an owner.
type LevelChange struct {
	LevelBefore int
	LevelAfter  int
}

// Engine computes and persists the reward for a completed session.
type Engine struct {
	policy Policy
	loc    *time.Location
	random func() float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom replaces the uniform [0,1) source used for item draws.
func WithRandom(fn func() float64) Option {
	return func(e *Engine) {
		e.random = fn
	}
}

// NewEngine validates the policy and builds an Engine.
func NewEngine(policy Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reward policy: %w", err)
	}
	loc, err := policy.Location()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		policy: policy,
		loc:    loc,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Location returns the timezone used for calendar days.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Apply computes the outcome for in and writes it through l.
func (e *Engine) Apply(ctx context.Context, l Ledger, in Input) (*models.RewardOutcome, error) {
	if in.ActualFocusSeconds < 1 {
		return nil, fmt.Errorf("actual focus must be at least one second, got %d", in.ActualFocusSeconds)
	}

	stats, err := l.LockUserStats(ctx, in.OwnerID, in.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user stats: %w", err)
	}
	focusBefore := stats.TotalFocusSeconds

	xp := XPForFocus(in.ActualFocusSeconds, e.policy.XPPerMinute)
	levels := e.applyXP(stats, xp)
	delta := e.applyStreak(stats, in.CompletedAt)
	stats.TotalFocusSeconds += in.ActualFocusSeconds
	stats.TotalSessions++
	stats.UpdatedAt = in.CompletedAt

	if err := l.SaveUserStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save user stats: %w", err)
	}

	item, err := e.grantItem(ctx, l, in, focusBefore)
	if err != nil {
		return nil, err
	}

	outcome := &models.RewardOutcome{
		SessionID:     in.SessionID,
		OwnerID:       in.OwnerID,
		XPAwarded:     xp,
		LevelBefore:   levels.LevelBefore,
		LevelAfter:    levels.LevelAfter,
		StreakDelta:   delta,
		CurrentStreak: stats.CurrentStreak,
		ItemGranted:   item,
		CreatedAt:     in.CompletedAt,
	}
	if err := l.InsertRewardOutcome(ctx, outcome); err != nil {
		return nil, fmt.Errorf("failed to insert reward outcome: %w", err)
	}

	log.Info().
		Str("session_id", in.SessionID.String()).
		Str("owner_id", in.OwnerID).
		Int("xp_awarded", xp).
		Int("level_before", levels.LevelBefore).
		Int("level_after", levels.LevelAfter).
		Int("streak", stats.CurrentStreak).
		Int("streak_delta", int(delta)).
		Msg("reward applied")

	return outcome, nil
}

// applyXP adds xp and recomputes the level from the new total.
func (e *Engine) applyXP(stats *models.UserStats, xp int) LevelChange {
	before := LevelForXP(stats.TotalXP, e.policy.XPPerLevel)
	stats.TotalXP += xp
	stats.Level = LevelForXP(stats.TotalXP, e.policy.XPPerLevel)
	return LevelChange{LevelBefore: before, LevelAfter: stats.Level}
}

// applyStreak advances the calendar-day streak for a completion at completedAt.
func (e *Engine) applyStreak(stats *models.UserStats, completedAt time.Time) models.StreakDelta {
	today := CalendarDay(completedAt, e.loc)
	next, delta := StreakChange(stats.LastCompletedOn, today, stats.CurrentStreak)

	stats.CurrentStreak = next
	if next > stats.BestStreak {
		stats.BestStreak = next
	}
	if stats.LastCompletedOn == nil || today.After(*stats.LastCompletedOn) {
		stats.LastCompletedOn = &today
	}
	return delta
}

// grantItem draws at most one cosmetic item for the session.
func (e *Engine) grantItem(ctx context.Context, l Ledger, in Input, focusBefore int) (*models.GardenItem, error) {
	rarity, variant := e.policy.Draw(e.random(), focusBefore)
	if rarity == models.RarityNone {
		return nil, nil
	}

	plantNum, err := l.NextPlantNum(ctx, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next plant number: %w", err)
	}

	item := &models.GardenItem{
		ID:        uuid.New(),
		OwnerID:   in.OwnerID,
		SessionID: in.SessionID,
		PlantNum:  plantNum,
		PlantType: variant,
		Rarity:    rarity,
		CreatedAt: in.CompletedAt,
	}
	if err := l.InsertGardenItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to grant %s item: %w", rarity, err)
	}
	return item, nil
}
