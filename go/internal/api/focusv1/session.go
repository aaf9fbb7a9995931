// Package focusv1 holds the request and response messages of the focus.v1
// connect services. Messages are plain structs encoded with rpc.Codec.
package focusv1

import "time"

const (
	SessionServiceName = "focus.v1.SessionService"

	SessionServiceCreateSessionProcedure    = "/focus.v1.SessionService/CreateSession"
	SessionServicePauseSessionProcedure     = "/focus.v1.SessionService/PauseSession"
	SessionServiceResumeSessionProcedure    = "/focus.v1.SessionService/ResumeSession"
	SessionServiceCompleteSessionProcedure  = "/focus.v1.SessionService/CompleteSession"
	SessionServiceAbandonSessionProcedure   = "/focus.v1.SessionService/AbandonSession"
	SessionServiceChangeDurationProcedure   = "/focus.v1.SessionService/ChangeDuration"
	SessionServiceGetActiveSessionProcedure = "/focus.v1.SessionService/GetActiveSession"
	SessionServiceGetSessionProcedure       = "/focus.v1.SessionService/GetSession"
	SessionServiceListSessionsProcedure     = "/focus.v1.SessionService/ListSessions"
)

// Session is a session plus the server-side timer view at ServerTime.
type Session struct {
	ID                     string     `json:"id"`
	OwnerID                string     `json:"owner_id"`
	State                  string     `json:"state"`
	PlannedDurationSeconds int        `json:"planned_duration_seconds"`
	StartTimestamp         *time.Time `json:"start_timestamp,omitempty"`
	AccumulatedRunSeconds  int        `json:"accumulated_run_seconds"`
	ActualFocusSeconds     *int       `json:"actual_focus_seconds,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	TerminalAt             *time.Time `json:"terminal_at,omitempty"`
	Version                int        `json:"version"`
	ElapsedSeconds         int        `json:"elapsed_seconds"`
	RemainingSeconds       int        `json:"remaining_seconds"`
	Expired                bool       `json:"expired"`
	ServerTime             time.Time  `json:"server_time"`
}

type GardenItem struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	PlantNum    int       `json:"plant_num"`
	PlantType   int       `json:"plant_type"`
	Rarity      string    `json:"rarity"`
	GrowthStage int       `json:"growth_stage"`
	CreatedAt   time.Time `json:"created_at"`
}

type RewardOutcome struct {
	SessionID     string      `json:"session_id"`
	XPAwarded     int         `json:"xp_awarded"`
	LevelBefore   int         `json:"level_before"`
	LevelAfter    int         `json:"level_after"`
	LeveledUp     bool        `json:"leveled_up"`
	StreakDelta   int         `json:"streak_delta"`
	CurrentStreak int         `json:"current_streak"`
	ItemGranted   *GardenItem `json:"item_granted,omitempty"`
}

type CreateSessionRequest struct {
	PlannedDurationSeconds int `json:"planned_duration_seconds"`
}

type CreateSessionResponse struct {
	Session *Session `json:"session"`
}

type PauseSessionRequest struct {
	SessionID string `json:"session_id"`
}

type PauseSessionResponse struct {
	Session *Session `json:"session"`
}

type ResumeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type ResumeSessionResponse struct {
	Session *Session `json:"session"`
}

type CompleteSessionRequest struct {
	SessionID string `json:"session_id"`
	// ReportedFocusSeconds is the client's own count. It is logged, never trusted.
	ReportedFocusSeconds *int `json:"reported_focus_seconds,omitempty"`
}

type CompleteSessionResponse struct {
	Session *Session       `json:"session"`
	Reward  *RewardOutcome `json:"reward"`
	// Replayed is set when the session was already completed by an earlier call.
	Replayed bool `json:"replayed"`
}

type AbandonSessionRequest struct {
	SessionID string `json:"session_id"`
}

type AbandonSessionResponse struct {
	Session *Session `json:"session"`
}

type ChangeDurationRequest struct {
	SessionID              string `json:"session_id"`
	PlannedDurationSeconds int    `json:"planned_duration_seconds"`
}

type ChangeDurationResponse struct {
	Session *Session `json:"session"`
}

type GetActiveSessionRequest struct{}

type GetActiveSessionResponse struct {
	// Session is nil when the owner has no open session.
	Session *Session `json:"session,omitempty"`
}

type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

type GetSessionResponse struct {
	Session *Session `json:"session"`
}

type ListSessionsRequest struct {
	Offset        int  `json:"offset"`
	Limit         int  `json:"limit"`
	CompletedOnly bool `json:"completed_only"`
}

type ListSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
	Total    int        `json:"total"`
}
