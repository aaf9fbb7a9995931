package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type FocusSession struct {
	ID                     uuid.UUID
	OwnerID                string
	PlannedDurationSeconds int32
	StartTimestamp         sql.NullTime
	AccumulatedRunMs       int64
	State                  string
	ActualFocusSeconds     sql.NullInt32
	CommandsIssued         bool
	Version                int32
	CreatedAt              time.Time
	UpdatedAt              time.Time
	TerminalAt             sql.NullTime
}

type GardenItem struct {
	ID          uuid.UUID
	OwnerID     string
	SessionID   uuid.UUID
	PlantNum    int32
	PlantType   int32
	Rarity      string
	GrowthStage int32
	CreatedAt   time.Time
}

type RewardOutcome struct {
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

type SessionOutbox struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	OwnerID   string
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    sql.NullTime
}

type UserStat struct {
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
