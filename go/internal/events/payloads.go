package events

import (
	"time"

	"github.com/focusguard/focusguard/go/internal/models"
)

// Event payload types that are shared between the session, outbox and gateway packages

// EventType names a session lifecycle event.
type EventType string

const (
	EventTypeSessionCreated         EventType = "SessionCreated"
	EventTypeSessionPaused          EventType = "SessionPaused"
	EventTypeSessionResumed         EventType = "SessionResumed"
	EventTypeSessionDurationChanged EventType = "SessionDurationChanged"
	EventTypeSessionCompleted       EventType = "SessionCompleted"
	EventTypeSessionAbandoned       EventType = "SessionAbandoned"
)

// AbandonReason says who ended a session without reward.
type AbandonReason string

const (
	AbandonReasonOwner     AbandonReason = "owner"
	AbandonReasonIdleSweep AbandonReason = "idle_sweep"
)

// SessionPayload carries the absolute timestamps a client needs to recompute
// its countdown.
type SessionPayload struct {
	SessionID              string     `json:"session_id"`
	OwnerID                string     `json:"owner_id"`
	State                  string     `json:"state"`
	PlannedDurationSeconds int        `json:"planned_duration_seconds"`
	AccumulatedRunSeconds  int        `json:"accumulated_run_seconds"`
	StartTimestamp         *time.Time `json:"start_timestamp,omitempty"`
	ActualFocusSeconds     *int       `json:"actual_focus_seconds,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	TerminalAt             *time.Time `json:"terminal_at,omitempty"`
	Version                int        `json:"version"`
}

// NewSessionPayload snapshots s.
func NewSessionPayload(s *models.Session) SessionPayload {
	return SessionPayload{
		SessionID:              s.ID.String(),
		OwnerID:                s.OwnerID,
		State:                  string(s.State),
		PlannedDurationSeconds: s.PlannedDurationSeconds,
		AccumulatedRunSeconds:  s.AccumulatedRunSeconds(),
		StartTimestamp:         s.StartTimestamp,
		ActualFocusSeconds:     s.ActualFocusSeconds,
		CreatedAt:              s.CreatedAt,
		TerminalAt:             s.TerminalAt,
		Version:                s.Version,
	}
}

// SessionCreatedPayload is the payload for a SessionCreated event
type SessionCreatedPayload struct {
	Session SessionPayload `json:"session"`
}

// SessionPausedPayload is the payload for a SessionPaused event
type SessionPausedPayload struct {
	Session  SessionPayload `json:"session"`
	PausedAt time.Time      `json:"paused_at"`
}

// SessionResumedPayload is the payload for a SessionResumed event
type SessionResumedPayload struct {
	Session   SessionPayload `json:"session"`
	ResumedAt time.Time      `json:"resumed_at"`
}

// SessionDurationChangedPayload is the payload for a SessionDurationChanged event
type SessionDurationChangedPayload struct {
	Session                 SessionPayload `json:"session"`
	PreviousDurationSeconds int            `json:"previous_duration_seconds"`
}

// SessionCompletedPayload is the payload for a SessionCompleted event
type SessionCompletedPayload struct {
	Session SessionPayload        `json:"session"`
	Reward  *models.RewardOutcome `json:"reward"`
}

// SessionAbandonedPayload is the payload for a SessionAbandoned event
type SessionAbandonedPayload struct {
	Session SessionPayload `json:"session"`
	Reason  AbandonReason  `json:"reason"`
}
