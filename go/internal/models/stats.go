package models

import "time"

// UserStats is the per-owner aggregate updated by the reward engine.
type UserStats struct {
	OwnerID           string     `json:"owner_id"`
	TotalXP           int        `json:"total_xp"`
	Level             int        `json:"level"`
	TotalFocusSeconds int        `json:"total_focus_seconds"`
	TotalSessions     int        `json:"total_sessions"`
	CurrentStreak     int        `json:"current_streak"`
	BestStreak        int        `json:"best_streak"`
	LastCompletedOn   *time.Time `json:"last_completed_on,omitempty"` // calendar day, midnight UTC
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DailyStat summarises completed sessions for one calendar day.
type DailyStat struct {
	Day               time.Time `json:"day"`
	SessionsCompleted int       `json:"sessions_completed"`
	FocusSeconds      int       `json:"focus_seconds"`
}

// GardenStats counts an owner's garden by rarity tier.
type GardenStats struct {
	OwnerID        string     `json:"owner_id"`
	TotalItems     int        `json:"total_items"`
	RareItems      int        `json:"rare_items"`
	EpicItems      int        `json:"epic_items"`
	LegendaryItems int        `json:"legendary_items"`
	LastGrantedAt  *time.Time `json:"last_granted_at,omitempty"`
}

// HourlyFocus summarises completed sessions that started in one hour of the day.
type HourlyFocus struct {
	Hour         int `json:"hour"` // 0-23 in the policy timezone
	Sessions     int `json:"sessions"`
	FocusSeconds int `json:"focus_seconds"`
}
