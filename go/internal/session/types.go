package session

import (
	"time"

	"github.com/focusguard/focusguard/go/internal/models"
)

const (
	DefaultMaxPlannedDuration = 4 * time.Hour
	DefaultListLimit          = 20
	MaxListLimit              = 100
	// hintTolerance is how far a client's reported focus may drift before we log it.
	hintTolerance = 60
)

// Config bounds what owners may ask for.
type Config struct {
	MaxPlannedDuration time.Duration `yaml:"max_planned_duration"`
}

func DefaultConfig() Config {
	return Config{MaxPlannedDuration: DefaultMaxPlannedDuration}
}

// CreateSessionRequest represents the data needed to start a session
type CreateSessionRequest struct {
	OwnerID                string
	PlannedDurationSeconds int
}

// ListSessionsRequest pages through an owner's history, newest first
type ListSessionsRequest struct {
	OwnerID       string
	Offset        int
	Limit         int
	CompletedOnly bool
}

// ListSessionsResult is one page plus the unpaged total
type ListSessionsResult struct {
	Sessions []Snapshot
	Total    int
}

// CompleteResult is the outcome of a completion.
type CompleteResult struct {
	Snapshot Snapshot
	Outcome  *models.RewardOutcome
	// Replayed is set when the session was already completed and the stored outcome is returned.
	Replayed bool
}
