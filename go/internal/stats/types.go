package stats

import (
	"errors"
	"time"
)

const (
	DefaultDailyDays = 7
	MaxDailyDays     = 90

	DefaultGardenLimit = 50
	MaxGardenLimit     = 200

	TrendWindowDays = 30
)

var (
	// ErrInvalidArgument is returned for out-of-range query parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when the owner has no such garden item.
	ErrNotFound = errors.New("not found")
)

// UserStatsView is the stored aggregate plus derived level progress.
type UserStatsView struct {
	OwnerID           string
	TotalXP           int
	Level             int
	XPIntoLevel       int
	XPPerLevel        int
	TotalFocusSeconds int
	TotalSessions     int
	CurrentStreak     int
	BestStreak        int
	LastCompletedOn   *time.Time
}

// UserTrends summarises completed sessions over the trailing trend window.
type UserTrends struct {
	OwnerID               string
	WindowDays            int
	SessionsCompleted     int
	FocusSeconds          int
	AverageSessionSeconds float64
	// MostProductiveHour is the start hour with the most completions, nil
	// without any. Ties go to the earlier hour.
	MostProductiveHour *int
}
