package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"connectrpc.com/connect"

	"github.com/focusguard/focusguard/go/internal/api/focusv1"
	"github.com/focusguard/focusguard/go/internal/rpc"
)

// StateProvider loads the state a freshly connected client needs
type StateProvider interface {
	ActiveSession(ctx context.Context, ownerID string) (*focusv1.Session, error)
}

// SessionStateProvider implements StateProvider against the API's SessionService
type SessionStateProvider struct {
	getActive *connect.Client[focusv1.GetActiveSessionRequest, focusv1.GetActiveSessionResponse]
}

// NewSessionStateProvider creates a provider that calls the API at baseURL
func NewSessionStateProvider(httpClient connect.HTTPClient, baseURL string) *SessionStateProvider {
	return &SessionStateProvider{
		getActive: connect.NewClient[focusv1.GetActiveSessionRequest, focusv1.GetActiveSessionResponse](
			httpClient,
			baseURL+focusv1.SessionServiceGetActiveSessionProcedure,
			connect.WithCodec(rpc.Codec{}),
		),
	}
}

// ActiveSession returns the owner's open session, or nil when there is none
func (p *SessionStateProvider) ActiveSession(ctx context.Context, ownerID string) (*focusv1.Session, error) {
	req := connect.NewRequest(&focusv1.GetActiveSessionRequest{})
	req.Header().Set(rpc.OwnerHeader, ownerID)

	resp, err := p.getActive.CallUnary(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return resp.Msg.Session, nil
}

// snapshotEvent builds the SessionSnapshot frame. Data is the session, or null.
func snapshotEvent(sess *focusv1.Session, now time.Time) (*SessionEvent, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	event := &SessionEvent{
		Type:       EventTypeSessionSnapshot,
		Timestamp:  now,
		ServerTime: now,
		Data:       data,
	}
	if sess != nil {
		event.SessionID = sess.ID
		event.Timestamp = sess.UpdatedAt
	}
	return event, nil
}

