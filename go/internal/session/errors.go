package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/models"
)

var (
	// ErrConflict means the owner already has an open session.
	ErrConflict = errors.New("owner already has an open session")
	// ErrInvalidTransition means the command is not allowed from the session's state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNotFound covers unknown sessions and sessions owned by someone else.
	ErrNotFound = errors.New("session not found")
	// ErrRewardPersistence means completion rolled back; the session is unchanged.
	ErrRewardPersistence = errors.New("failed to persist session completion")
	ErrInvalidArgument   = errors.New("invalid argument")

	errVersionConflict = errors.New("session was modified concurrently")
)

// TransitionError reports a command rejected by the state machine.
type TransitionError struct {
	Command string
	From    models.SessionState
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s a %s session", e.Command, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// RewardPersistenceError wraps any failure inside the completion transaction.
// Nothing was committed, so the caller may retry.
type RewardPersistenceError struct {
	SessionID uuid.UUID
	Err       error
}

func (e *RewardPersistenceError) Error() string {
	return fmt.Sprintf("failed to persist completion of session %s: %v", e.SessionID, e.Err)
}

func (e *RewardPersistenceError) Unwrap() error {
	return e.Err
}

func (e *RewardPersistenceError) Is(target error) bool {
	return target == ErrRewardPersistence
}

// Retryable is always true: the transaction rolled back as a whole.
func (e *RewardPersistenceError) Retryable() bool {
	return true
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
