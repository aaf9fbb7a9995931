package session

import (
	"time"

	"github.com/focusguard/focusguard/go/internal/models"
)

// Snapshot is the server's view of a session's timer at ServerTime. Clients
// render from it and never need their own tick history.
type Snapshot struct {
	Session          *models.Session
	ElapsedSeconds   int
	RemainingSeconds int
	// Expired is advisory: the planned duration has been reached but only
	// an explicit complete ends the session.
	Expired    bool
	ServerTime time.Time
}

// Observe derives the timer view of s at now.
func Observe(s *models.Session, now time.Time) Snapshot {
	elapsed := ElapsedSeconds(s, now)
	remaining := s.PlannedDurationSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Session:          s,
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		Expired:          !s.State.IsTerminal() && remaining == 0,
		ServerTime:       now,
	}
}

// Elapsed is closed segments plus the open one.
func Elapsed(s *models.Session, now time.Time) time.Duration {
	return s.AccumulatedRun + openSegment(s, now)
}

// ElapsedSeconds floors Elapsed to whole seconds.
func ElapsedSeconds(s *models.Session, now time.Time) int {
	return int(Elapsed(s, now) / time.Second)
}

// RemainingSeconds never goes below zero.
func RemainingSeconds(s *models.Session, now time.Time) int {
	return Observe(s, now).RemainingSeconds
}

// CanonicalFocusSeconds is the focus credited on completion, clamped to
// [1, planned duration].
func CanonicalFocusSeconds(s *models.Session, now time.Time) int {
	focus := ElapsedSeconds(s, now)
	if focus > s.PlannedDurationSeconds {
		focus = s.PlannedDurationSeconds
	}
	if focus < 1 {
		focus = 1
	}
	return focus
}

// openSegment is the run time since StartTimestamp, or zero when not running.
func openSegment(s *models.Session, now time.Time) time.Duration {
	if s.State != models.SessionStateActive || s.StartTimestamp == nil {
		return 0
	}
	d := now.Sub(*s.StartTimestamp)
	if d < 0 {
		return 0
	}
	return d
}

// closeSegment folds the open segment into AccumulatedRun.
func closeSegment(s *models.Session, now time.Time) {
	s.AccumulatedRun += openSegment(s, now)
	s.StartTimestamp = nil
}
