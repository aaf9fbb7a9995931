package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState defines where a focus session is in its lifecycle.
type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStatePaused    SessionState = "paused"
	SessionStateCompleted SessionState = "completed"
	SessionStateAbandoned SessionState = "abandoned"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateAbandoned
}

// Valid reports whether s is one of the known states.
func (s SessionState) Valid() bool {
	switch s {
	case SessionStateActive, SessionStatePaused, SessionStateCompleted, SessionStateAbandoned:
		return true
	}
	return false
}

// Session is one timed focus interval owned by a user.
type Session struct {
	ID                     uuid.UUID
	OwnerID                string
	PlannedDurationSeconds int
	// StartTimestamp is when the current run segment began; nil unless active.
	StartTimestamp *time.Time
	// AccumulatedRun is the run time of all segments closed by a pause or a terminal transition.
	AccumulatedRun     time.Duration
	State              SessionState
	ActualFocusSeconds *int
	CommandsIssued     bool
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	TerminalAt         *time.Time
}

// AccumulatedRunSeconds returns the closed run segments in whole seconds.
func (s *Session) AccumulatedRunSeconds() int {
	return int(s.AccumulatedRun / time.Second)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.StartTimestamp != nil {
		t := *s.StartTimestamp
		c.StartTimestamp = &t
	}
	if s.ActualFocusSeconds != nil {
		v := *s.ActualFocusSeconds
		c.ActualFocusSeconds = &v
	}
	if s.TerminalAt != nil {
		t := *s.TerminalAt
		c.TerminalAt = &t
	}
	return &c
}
