package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/api/focusv1"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/rpc"
)

// SessionApp defines what the service layer needs from the session application
type SessionApp interface {
	Create(ctx context.Context, req CreateSessionRequest) (Snapshot, error)
	Pause(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error)
	Resume(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error)
	Complete(ctx context.Context, ownerID string, id uuid.UUID, reportedFocusSeconds *int) (*CompleteResult, error)
	Abandon(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error)
	ChangeDuration(ctx context.Context, ownerID string, id uuid.UUID, plannedSeconds int) (Snapshot, error)
	GetActive(ctx context.Context, ownerID string) (*Snapshot, error)
	GetSession(ctx context.Context, ownerID string, id uuid.UUID) (Snapshot, error)
	ListSessions(ctx context.Context, req ListSessionsRequest) (ListSessionsResult, error)
}

// Service implements the focus.v1.SessionService connect handlers
type Service struct {
	app SessionApp
}

// NewService creates a new session service
func NewService(app SessionApp) *Service {
	return &Service{
		app: app,
	}
}

// Handler mounts every SessionService procedure and returns the path prefix to register.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpc.HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(focusv1.SessionServiceCreateSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceCreateSessionProcedure, s.CreateSession, opts...))
	mux.Handle(focusv1.SessionServicePauseSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServicePauseSessionProcedure, s.PauseSession, opts...))
	mux.Handle(focusv1.SessionServiceResumeSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceResumeSessionProcedure, s.ResumeSession, opts...))
	mux.Handle(focusv1.SessionServiceCompleteSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceCompleteSessionProcedure, s.CompleteSession, opts...))
	mux.Handle(focusv1.SessionServiceAbandonSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceAbandonSessionProcedure, s.AbandonSession, opts...))
	mux.Handle(focusv1.SessionServiceChangeDurationProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceChangeDurationProcedure, s.ChangeDuration, opts...))
	mux.Handle(focusv1.SessionServiceGetActiveSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceGetActiveSessionProcedure, s.GetActiveSession, opts...))
	mux.Handle(focusv1.SessionServiceGetSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceGetSessionProcedure, s.GetSession, opts...))
	mux.Handle(focusv1.SessionServiceListSessionsProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceListSessionsProcedure, s.ListSessions, opts...))
	return "/" + focusv1.SessionServiceName + "/", mux
}

// CreateSession starts a session for the calling owner
func (s *Service) CreateSession(ctx context.Context, req *connect.Request[focusv1.CreateSessionRequest]) (*connect.Response[focusv1.CreateSessionResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	snap, err := s.app.Create(ctx, CreateSessionRequest{
		OwnerID:                owner,
		PlannedDurationSeconds: req.Msg.PlannedDurationSeconds,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&focusv1.CreateSessionResponse{
		Session: snapshotToProto(snap),
	}), nil
}

// PauseSession pauses the caller's session
func (s *Service) PauseSession(ctx context.Context, req *connect.Request[focusv1.PauseSessionRequest]) (*connect.Response[focusv1.PauseSessionResponse], error) {
	owner, id, err := ownerAndSession(req.Header(), req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	snap, err := s.app.Pause(ctx, owner, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.PauseSessionResponse{Session: snapshotToProto(snap)}), nil
}

// ResumeSession resumes the caller's session
func (s *Service) ResumeSession(ctx context.Context, req *connect.Request[focusv1.ResumeSessionRequest]) (*connect.Response[focusv1.ResumeSessionResponse], error) {
	owner, id, err := ownerAndSession(req.Header(), req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	snap, err := s.app.Resume(ctx, owner, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.ResumeSessionResponse{Session: snapshotToProto(snap)}), nil
}

// CompleteSession completes the caller's session and returns its reward
func (s *Service) CompleteSession(ctx context.Context, req *connect.Request[focusv1.CompleteSessionRequest]) (*connect.Response[focusv1.CompleteSessionResponse], error) {
	owner, id, err := ownerAndSession(req.Header(), req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.app.Complete(ctx, owner, id, req.Msg.ReportedFocusSeconds)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&focusv1.CompleteSessionResponse{
		Session:  snapshotToProto(result.Snapshot),
		Reward:   OutcomeToProto(result.Outcome),
		Replayed: result.Replayed,
	}), nil
}

// AbandonSession ends the caller's session without reward
func (s *Service) AbandonSession(ctx context.Context, req *connect.Request[focusv1.AbandonSessionRequest]) (*connect.Response[focusv1.AbandonSessionResponse], error) {
	owner, id, err := ownerAndSession(req.Header(), req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	snap, err := s.app.Abandon(ctx, owner, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.AbandonSessionResponse{Session: snapshotToProto(snap)}), nil
}

// ChangeDuration changes the planned duration of a new session
func (s *Service) ChangeDuration(ctx context.Context, req *connect.Request[focusv1.ChangeDurationRequest]) (*connect.Response[focusv1.ChangeDurationResponse], error) {
	owner, id, err := ownerAndSession(req.Header(), req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	snap, err := s.app.ChangeDuration(ctx, owner, id, req.Msg.PlannedDurationSeconds)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.ChangeDurationResponse{Session: snapshotToProto(snap)}), nil
}

// GetActiveSession returns the caller's open session, if any
func (s *Service) GetActiveSession(ctx context.Context, req *connect.Request[focusv1.GetActiveSessionRequest]) (*connect.Response[focusv1.GetActiveSessionResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	snap, err := s.app.GetActive(ctx, owner)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &focusv1.GetActiveSessionResponse{}
	if snap != nil {
		resp.Session = snapshotToProto(*snap)
	}
	return connect.NewResponse(resp), nil
}

// GetSession returns one of the caller's sessions
func (s *Service) GetSession(ctx context.Context, req *connect.Request[focusv1.GetSessionRequest]) (*connect.Response[focusv1.GetSessionResponse], error) {
	owner, id, err := ownerAndSession(req.Header(), req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	snap, err := s.app.GetSession(ctx, owner, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.GetSessionResponse{Session: snapshotToProto(snap)}), nil
}

// ListSessions pages through the caller's session history
func (s *Service) ListSessions(ctx context.Context, req *connect.Request[focusv1.ListSessionsRequest]) (*connect.Response[focusv1.ListSessionsResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	result, err := s.app.ListSessions(ctx, ListSessionsRequest{
		OwnerID:       owner,
		Offset:        req.Msg.Offset,
		Limit:         req.Msg.Limit,
		CompletedOnly: req.Msg.CompletedOnly,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]*focusv1.Session, len(result.Sessions))
	for i, snap := range result.Sessions {
		out[i] = snapshotToProto(snap)
	}
	return connect.NewResponse(&focusv1.ListSessionsResponse{
		Sessions: out,
		Total:    result.Total,
	}), nil
}

func ownerAndSession(h http.Header, rawID string) (string, uuid.UUID, error) {
	owner, err := rpc.OwnerFromHeader(h)
	if err != nil {
		return "", uuid.Nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid session ID: %w", err))
	}
	return owner, id, nil
}

// toConnectError maps domain errors onto connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrRewardPersistence):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func snapshotToProto(snap Snapshot) *focusv1.Session {
	s := snap.Session
	return &focusv1.Session{
		ID:                     s.ID.String(),
		OwnerID:                s.OwnerID,
		State:                  string(s.State),
		PlannedDurationSeconds: s.PlannedDurationSeconds,
		StartTimestamp:         s.StartTimestamp,
		AccumulatedRunSeconds:  s.AccumulatedRunSeconds(),
		ActualFocusSeconds:     s.ActualFocusSeconds,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
		TerminalAt:             s.TerminalAt,
		Version:                s.Version,
		ElapsedSeconds:         snap.ElapsedSeconds,
		RemainingSeconds:       snap.RemainingSeconds,
		Expired:                snap.Expired,
		ServerTime:             snap.ServerTime,
	}
}

// OutcomeToProto converts a reward outcome for the wire.
func OutcomeToProto(o *models.RewardOutcome) *focusv1.RewardOutcome {
	if o == nil {
		return nil
	}
	return &focusv1.RewardOutcome{
		SessionID:     o.SessionID.String(),
		XPAwarded:     o.XPAwarded,
		LevelBefore:   o.LevelBefore,
		LevelAfter:    o.LevelAfter,
		LeveledUp:     o.LeveledUp(),
		StreakDelta:   int(o.StreakDelta),
		CurrentStreak: o.CurrentStreak,
		ItemGranted:   GardenItemToProto(o.ItemGranted),
	}
}

// GardenItemToProto converts a garden item for the wire.
func GardenItemToProto(item *models.GardenItem) *focusv1.GardenItem {
	if item == nil {
		return nil
	}
	return &focusv1.GardenItem{
		ID:          item.ID.String(),
		SessionID:   item.SessionID.String(),
		PlantNum:    item.PlantNum,
		PlantType:   item.PlantType,
		Rarity:      string(item.Rarity),
		GrowthStage: item.GrowthStage,
		CreatedAt:   item.CreatedAt,
	}
}
