package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/focusguard/focusguard/go/internal/events"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/reward"
)

// Store defines what the session app needs from persistence
type Store interface {
	// InTx runs fn in one transaction. Any error rolls back everything fn wrote.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// GetOpenSession returns ErrNotFound when the owner has no open session.
	GetOpenSession(ctx context.Context, ownerID string) (*models.Session, error)
	ListSessions(ctx context.Context, req ListSessionsRequest) ([]*models.Session, int, error)
	ListStaleSessions(ctx context.Context, createdBefore, updatedBefore time.Time, limit int) ([]uuid.UUID, error)
}

// Tx is the transaction-scoped half of Store.
type Tx interface {
	// CreateSession returns ErrConflict when the owner already has an open session.
	CreateSession(ctx context.Context, s *models.Session) error
	// LockSession reads the row and holds it until the transaction ends.
	LockSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// UpdateSession writes s if s.Version is current and bumps s.Version.
	UpdateSession(ctx context.Context, s *models.Session) error
	GetRewardOutcome(ctx context.Context, sessionID uuid.UUID) (*models.RewardOutcome, error)
	InsertEvent(ctx context.Context, s *models.Session, eventType events.EventType, payload any) error
	Ledger() reward.Ledger
}

// RewardEngine computes and writes the outcome of a completed session.
type RewardEngine interface {
	Apply(ctx context.Context, l reward.Ledger, in reward.Input) (*models.RewardOutcome, error)
}

// App owns the session state machine
type App struct {
	store  Store
	engine RewardEngine
	clock  clockwork.Clock
	cfg    Config
}

// NewApp creates a new session App
func NewApp(store Store, engine RewardEngine, clock clockwork.Clock, cfg Config) *App {
	if cfg.MaxPlannedDuration <= 0 {
		cfg.MaxPlannedDuration = DefaultMaxPlannedDuration
	}
	return &App{
		store:  store,
		engine: engine,
		clock:  clock,
		cfg:    cfg,
	}
}

// Now returns the current server time in UTC at the microsecond precision
// TIMESTAMPTZ keeps.
func (a *App) Now() time.Time {
	return a.clock.Now().UTC().Truncate(time.Microsecond)
}

// Observe returns the timer view of s at the current server time.
func (a *App) Observe(s *models.Session) Snapshot {
	return Observe(s, a.Now())
}

// change is a pending outbox event built once the session row is written.
type change struct {
	eventType events.EventType
	payload   func(s *models.Session) any
}

// transition mutates a locked session. It returns nil when the command is a no-op.
type transition func(s *models.Session, now time.Time) (*change, error)

// Create starts a new active session for the owner.
func (a *App) Create(ctx context.Context, req CreateSessionRequest) (Snapshot, error) {
	if req.OwnerID == "" {
		return Snapshot{}, invalidArgument("owner id is required")
	}
	if err := a.validatePlannedDuration(req.PlannedDurationSeconds); err != nil {
		return Snapshot{}, err
	}

	now := a.Now()
	s := &models.Session{
		ID:                     uuid.New(),
		OwnerID:                req.OwnerID,
		PlannedDurationSeconds: req.PlannedDurationSeconds,
		StartTimestamp:         &now,
		State:                  models.SessionStateActive,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	err := a.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, s); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, s, events.EventTypeSessionCreated, events.SessionCreatedPayload{
			Session: events.NewSessionPayload(s),
		})
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", s.ID.String()).
		Str("owner_id", s.OwnerID).
		Int("planned_duration_seconds", s.PlannedDurationSeconds).
		Msg("session created")
	return Observe(s, now), nil
}

// Pause closes the running segment. Pausing a paused session is a no-op.
func (a *App) Pause(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error) {
	return a.apply(ctx, "pause", ownerID, id, func(s *models.Session, now time.Time) (*change, error) {
		switch s.State {
		case models.SessionStatePaused:
			return nil, nil
		case models.SessionStateActive:
			closeSegment(s, now)
			s.State = models.SessionStatePaused
			s.CommandsIssued = true
			return &change{
				eventType: events.EventTypeSessionPaused,
				payload: func(s *models.Session) any {
					return events.SessionPausedPayload{Session: events.NewSessionPayload(s), PausedAt: now}
				},
			}, nil
		default:
			return nil, &TransitionError{Command: "pause", From: s.State}
		}
	})
}

// Resume opens a new run segment. Resuming an active session is a no-op.
func (a *App) Resume(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error) {
	return a.apply(ctx, "resume", ownerID, id, func(s *models.Session, now time.Time) (*change, error) {
		switch s.State {
		case models.SessionStateActive:
			return nil, nil
		case models.SessionStatePaused:
			start := now
			s.StartTimestamp = &start
			s.State = models.SessionStateActive
			s.CommandsIssued = true
			return &change{
				eventType: events.EventTypeSessionResumed,
				payload: func(s *models.Session) any {
					return events.SessionResumedPayload{Session: events.NewSessionPayload(s), ResumedAt: now}
				},
			}, nil
		default:
			return nil, &TransitionError{Command: "resume", From: s.State}
		}
	})
}

// Abandon ends the session without reward. Abandoning an abandoned session
// returns it unchanged.
func (a *App) Abandon(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error) {
	return a.apply(ctx, "abandon", ownerID, id, abandonTransition(events.AbandonReasonOwner))
}

// ChangeDuration replaces the planned duration of a session that has not run
// any pause or resume yet.
func (a *App) ChangeDuration(ctx context.Context, ownerID string, id uuid.UUID, plannedSeconds int) (Snapshot, error) {
	if err := a.validatePlannedDuration(plannedSeconds); err != nil {
		return Snapshot{}, err
	}

	return a.apply(ctx, "change duration of", ownerID, id, func(s *models.Session, now time.Time) (*change, error) {
		if s.State != models.SessionStateActive {
			return nil, &TransitionError{Command: "change duration of", From: s.State}
		}
		if s.AccumulatedRun > 0 || s.CommandsIssued {
			return nil, &TransitionError{Command: "change duration of", From: s.State, Reason: "session already paused or resumed"}
		}
		if s.PlannedDurationSeconds == plannedSeconds {
			return nil, nil
		}

		previous := s.PlannedDurationSeconds
		s.PlannedDurationSeconds = plannedSeconds
		return &change{
			eventType: events.EventTypeSessionDurationChanged,
			payload: func(s *models.Session) any {
				return events.SessionDurationChangedPayload{Session: events.NewSessionPayload(s), PreviousDurationSeconds: previous}
			},
		}, nil
	})
}

// Complete ends the session, credits canonical focus time and applies the
// reward in the same transaction. A repeated call returns the stored outcome.
// reportedFocusSeconds is the client's own count and is only compared and logged.
func (a *App) Complete(ctx context.Context, ownerID string, id uuid.UUID, reportedFocusSeconds *int) (*CompleteResult, error) {
	var result *CompleteResult

	err := a.store.InTx(ctx, func(tx Tx) error {
		s, err := a.lockOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}

		now := a.Now()
		switch s.State {
		case models.SessionStateCompleted:
			outcome, err := tx.GetRewardOutcome(ctx, s.ID)
			if err != nil {
				return fmt.Errorf("failed to load existing reward outcome: %w", err)
			}
			result = &CompleteResult{Snapshot: Observe(s, now), Outcome: outcome, Replayed: true}
			return nil
		case models.SessionStateAbandoned:
			return &TransitionError{Command: "complete", From: s.State}
		}

		focus := CanonicalFocusSeconds(s, now)
		if reportedFocusSeconds != nil && absInt(*reportedFocusSeconds-focus) > hintTolerance {
			log.Warn().
				Str("session_id", s.ID.String()).
				Int("reported_focus_seconds", *reportedFocusSeconds).
				Int("actual_focus_seconds", focus).
				Msg("client focus report disagrees with server clock")
		}

		closeSegment(s, now)
		s.State = models.SessionStateCompleted
		s.ActualFocusSeconds = &focus
		s.TerminalAt = &now
		s.UpdatedAt = now
		if err := tx.UpdateSession(ctx, s); err != nil {
			return &RewardPersistenceError{SessionID: s.ID, Err: err}
		}

		outcome, err := a.engine.Apply(ctx, tx.Ledger(), reward.Input{
			SessionID:          s.ID,
			OwnerID:            s.OwnerID,
			ActualFocusSeconds: focus,
			CompletedAt:        now,
		})
		if err != nil {
			return &RewardPersistenceError{SessionID: s.ID, Err: err}
		}

		if err := tx.InsertEvent(ctx, s, events.EventTypeSessionCompleted, events.SessionCompletedPayload{
			Session: events.NewSessionPayload(s),
			Reward:  outcome,
		}); err != nil {
			return &RewardPersistenceError{SessionID: s.ID, Err: err}
		}

		result = &CompleteResult{Snapshot: Observe(s, now), Outcome: outcome}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrRewardPersistence) {
			return nil, fmt.Errorf("failed to complete session: %w", err)
		}
		// begin and commit failures leave nothing behind either
		return nil, &RewardPersistenceError{SessionID: id, Err: err}
	}

	if result.Replayed {
		log.Info().Str("session_id", id.String()).Msg("duplicate complete returned stored outcome")
	} else {
		log.Info().
			Str("session_id", id.String()).
			Str("owner_id", ownerID).
			Int("actual_focus_seconds", *result.Snapshot.Session.ActualFocusSeconds).
			Msg("session completed")
	}
	return result, nil
}

// GetActive returns the owner's open session, or nil when there is none.
func (a *App) GetActive(ctx context.Context, ownerID string) (*Snapshot, error) {
	s, err := a.store.GetOpenSession(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	snap := a.Observe(s)
	return &snap, nil
}

// GetSession returns one of the owner's sessions.
func (a *App) GetSession(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error) {
	s, err := a.store.GetSession(ctx, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get session: %w", err)
	}
	if s.OwnerID != ownerID {
		return Snapshot{}, fmt.Errorf("failed to get session: %w", ErrNotFound)
	}
	return a.Observe(s), nil
}

// ListSessions pages through the owner's sessions, newest first.
func (a *App) ListSessions(ctx context.Context, req ListSessionsRequest) (ListSessionsResult, error) {
	if req.OwnerID == "" {
		return ListSessionsResult{}, invalidArgument("owner id is required")
	}
	if req.Offset < 0 {
		return ListSessionsResult{}, invalidArgument("offset must not be negative")
	}
	switch {
	case req.Limit <= 0:
		req.Limit = DefaultListLimit
	case req.Limit > MaxListLimit:
		req.Limit = MaxListLimit
	}

	sessions, total, err := a.store.ListSessions(ctx, req)
	if err != nil {
		return ListSessionsResult{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := a.Now()
	out := ListSessionsResult{Sessions: make([]Snapshot, len(sessions)), Total: total}
	for i, s := range sessions {
		out.Sessions[i] = Observe(s, now)
	}
	return out, nil
}

// abandonIdle abandons id for the sweeper if it is still eligible once locked.
func (a *App) abandonIdle(ctx context.Context, id uuid.UUID, createdBefore, updatedBefore time.Time) (bool, error) {
	abandoned := false
	err := a.store.InTx(ctx, func(tx Tx) error {
		s, err := tx.LockSession(ctx, id)
		if err != nil {
			return err
		}
		if s.State.IsTerminal() || !s.CreatedAt.Before(createdBefore) || !s.UpdatedAt.Before(updatedBefore) {
			return nil
		}
		now := a.Now()
		ch, err := abandonTransition(events.AbandonReasonIdleSweep)(s, now)
		if err != nil || ch == nil {
			return err
		}
		if err := a.write(ctx, tx, s, ch, now); err != nil {
			return err
		}
		abandoned = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to abandon idle session: %w", err)
	}
	return abandoned, nil
}

func abandonTransition(reason events.AbandonReason) transition {
	return func(s *models.Session, now time.Time) (*change, error) {
		switch s.State {
		case models.SessionStateAbandoned:
			return nil, nil
		case models.SessionStateCompleted:
			return nil, &TransitionError{Command: "abandon", From: s.State}
		}

		closeSegment(s, now)
		s.State = models.SessionStateAbandoned
		s.TerminalAt = &now
		return &change{
			eventType: events.EventTypeSessionAbandoned,
			payload: func(s *models.Session) any {
				return events.SessionAbandonedPayload{Session: events.NewSessionPayload(s), Reason: reason}
			},
		}, nil
	}
}

// apply runs fn against the locked, owner-checked session and persists the
// result together with its outbox event.
func (a *App) apply(ctx context.Context, command, ownerID string, id uuid.UUID, fn transition) (Snapshot, error) {
	var snap Snapshot

	err := a.store.InTx(ctx, func(tx Tx) error {
		s, err := a.lockOwned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}

		now := a.Now()
		ch, err := fn(s, now)
		if err != nil {
			return err
		}
		if ch != nil {
			if err := a.write(ctx, tx, s, ch, now); err != nil {
				return err
			}
			log.Info().
				Str("session_id", s.ID.String()).
				Str("state", string(s.State)).
				Str("event", string(ch.eventType)).
				Msg("session updated")
		}
		snap = Observe(s, now)
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to %s session: %w", command, err)
	}
	return snap, nil
}

func (a *App) write(ctx context.Context, tx Tx, s *models.Session, ch *change, now time.Time) error {
	s.UpdatedAt = now
	if err := tx.UpdateSession(ctx, s); err != nil {
		return err
	}
	return tx.InsertEvent(ctx, s, ch.eventType, ch.payload(s))
}

func (a *App) lockOwned(ctx context.Context, tx Tx, ownerID string, id uuid.UUID) (*models.Session, error) {
	s, err := tx.LockSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return s, nil
}

func (a *App) validatePlannedDuration(seconds int) error {
	maxSeconds := int(a.cfg.MaxPlannedDuration / time.Second)
	if seconds < 1 || seconds > maxSeconds {
		return invalidArgument("planned duration must be between 1 and %d seconds, got %d", maxSeconds, seconds)
	}
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
