package focusv1

import "time"

const (
	StatsServiceName = "focus.v1.StatsService"

	StatsServiceGetUserStatsProcedure   = "/focus.v1.StatsService/GetUserStats"
	StatsServiceGetDailyStatsProcedure  = "/focus.v1.StatsService/GetDailyStats"
	StatsServiceListGardenProcedure     = "/focus.v1.StatsService/ListGarden"
	StatsServiceGetGardenStatsProcedure = "/focus.v1.StatsService/GetGardenStats"
	StatsServiceGetUserTrendsProcedure  = "/focus.v1.StatsService/GetUserTrends"
	StatsServiceGrowGardenItemProcedure = "/focus.v1.StatsService/GrowGardenItem"
)

type UserStats struct {
	OwnerID           string     `json:"owner_id"`
	TotalXP           int        `json:"total_xp"`
	Level             int        `json:"level"`
	XPIntoLevel       int        `json:"xp_into_level"`
	XPPerLevel        int        `json:"xp_per_level"`
	TotalFocusSeconds int        `json:"total_focus_seconds"`
	TotalSessions     int        `json:"total_sessions"`
	CurrentStreak     int        `json:"current_streak"`
	BestStreak        int        `json:"best_streak"`
	LastCompletedOn   *time.Time `json:"last_completed_on,omitempty"`
}

type DailyStat struct {
	Day               string `json:"day"`
	SessionsCompleted int    `json:"sessions_completed"`
	FocusSeconds      int    `json:"focus_seconds"`
}

type GardenStats struct {
	TotalItems     int        `json:"total_items"`
	RareItems      int        `json:"rare_items"`
	EpicItems      int        `json:"epic_items"`
	LegendaryItems int        `json:"legendary_items"`
	LastGrantedAt  *time.Time `json:"last_granted_at,omitempty"`
}

type UserTrends struct {
	WindowDays            int     `json:"window_days"`
	SessionsCompleted     int     `json:"sessions_completed"`
	FocusMinutes          int     `json:"focus_minutes"`
	AverageSessionMinutes float64 `json:"average_session_minutes"`
	MostProductiveHour    *int    `json:"most_productive_hour"`
}

type GetUserStatsRequest struct{}

type GetUserStatsResponse struct {
	Stats *UserStats `json:"stats"`
}

type GetDailyStatsRequest struct {
	Days int `json:"days"`
}

type GetDailyStatsResponse struct {
	Days []*DailyStat `json:"days"`
}

type ListGardenRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type ListGardenResponse struct {
	Items []*GardenItem `json:"items"`
	Total int           `json:"total"`
}

type GetGardenStatsRequest struct{}

type GetGardenStatsResponse struct {
	Stats *GardenStats `json:"stats"`
}

type GetUserTrendsRequest struct{}

type GetUserTrendsResponse struct {
	Trends *UserTrends `json:"trends"`
}

type GrowGardenItemRequest struct {
	ItemID      string `json:"item_id"`
	GrowthStage int    `json:"growth_stage"`
}

type GrowGardenItemResponse struct {
	Item *GardenItem `json:"item"`
}
