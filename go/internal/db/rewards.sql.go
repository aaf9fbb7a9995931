package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const insertRewardOutcome = `-- name: InsertRewardOutcome :exec
INSERT INTO reward_outcomes (
    session_id, owner_id, xp_awarded, level_before, level_after, streak_delta, current_streak, item_granted, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type InsertRewardOutcomeParams struct {
	SessionID     uuid.UUID
	OwnerID       string
	XpAwarded     int32
	LevelBefore   int32
	LevelAfter    int32
	StreakDelta   int16
	CurrentStreak int32
	ItemGranted   pqtype.NullRawMessage
	CreatedAt     time.Time
}

func (q *Queries) InsertRewardOutcome(ctx context.Context, arg InsertRewardOutcomeParams) error {
	_, err := q.db.ExecContext(ctx, insertRewardOutcome,
		arg.SessionID,
		arg.OwnerID,
		arg.XpAwarded,
		arg.LevelBefore,
		arg.LevelAfter,
		arg.StreakDelta,
		arg.CurrentStreak,
		arg.ItemGranted,
		arg.CreatedAt,
	)
	return err
}

const getRewardOutcome = `-- name: GetRewardOutcome :one
SELECT session_id, owner_id, xp_awarded, level_before, level_after, streak_delta, current_streak, item_granted, created_at
FROM reward_outcomes
WHERE session_id = $1`

func (q *Queries) GetRewardOutcome(ctx context.Context, sessionID uuid.UUID) (RewardOutcome, error) {
	row := q.db.QueryRowContext(ctx, getRewardOutcome, sessionID)
	var i RewardOutcome
	err := row.Scan(
		&i.SessionID,
		&i.OwnerID,
		&i.XpAwarded,
		&i.LevelBefore,
		&i.LevelAfter,
		&i.StreakDelta,
		&i.CurrentStreak,
		&i.ItemGranted,
		&i.CreatedAt,
	)
	return i, err
}

const ensureUserStats = `-- name: EnsureUserStats :exec
INSERT INTO user_stats (owner_id, updated_at)
VALUES ($1, $2)
ON CONFLICT (owner_id) DO NOTHING`

type EnsureUserStatsParams struct {
	OwnerID   string
	UpdatedAt time.Time
}

func (q *Queries) EnsureUserStats(ctx context.Context, arg EnsureUserStatsParams) error {
	_, err := q.db.ExecContext(ctx, ensureUserStats, arg.OwnerID, arg.UpdatedAt)
	return err
}

const userStatColumns = `owner_id, total_xp, level, total_focus_seconds, total_sessions, current_streak,
       best_streak, last_completed_on, updated_at`

func scanUserStat(row rowScanner) (UserStat, error) {
	var i UserStat
	err := row.Scan(
		&i.OwnerID,
		&i.TotalXp,
		&i.Level,
		&i.TotalFocusSeconds,
		&i.TotalSessions,
		&i.CurrentStreak,
		&i.BestStreak,
		&i.LastCompletedOn,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserStats = `-- name: GetUserStats :one
SELECT ` + userStatColumns + `
FROM user_stats
WHERE owner_id = $1`

func (q *Queries) GetUserStats(ctx context.Context, ownerID string) (UserStat, error) {
	return scanUserStat(q.db.QueryRowContext(ctx, getUserStats, ownerID))
}

const getUserStatsForUpdate = `-- name: GetUserStatsForUpdate :one
SELECT ` + userStatColumns + `
FROM user_stats
WHERE owner_id = $1
FOR UPDATE`

func (q *Queries) GetUserStatsForUpdate(ctx context.Context, ownerID string) (UserStat, error) {
	return scanUserStat(q.db.QueryRowContext(ctx, getUserStatsForUpdate, ownerID))
}

const updateUserStats = `-- name: UpdateUserStats :exec
UPDATE user_stats
SET total_xp            = $2,
    level               = $3,
    total_focus_seconds = $4,
    total_sessions      = $5,
    current_streak      = $6,
    best_streak         = $7,
    last_completed_on   = $8,
    updated_at          = $9
WHERE owner_id = $1`

type UpdateUserStatsParams struct {
	OwnerID           string
	TotalXp           int64
	Level             int32
	TotalFocusSeconds int64
	TotalSessions     int32
	CurrentStreak     int32
	BestStreak        int32
	LastCompletedOn   sql.NullTime
	UpdatedAt         time.Time
}

func (q *Queries) UpdateUserStats(ctx context.Context, arg UpdateUserStatsParams) error {
	_, err := q.db.ExecContext(ctx, updateUserStats,
		arg.OwnerID,
		arg.TotalXp,
		arg.Level,
		arg.TotalFocusSeconds,
		arg.TotalSessions,
		arg.CurrentStreak,
		arg.BestStreak,
		arg.LastCompletedOn,
		arg.UpdatedAt,
	)
	return err
}
