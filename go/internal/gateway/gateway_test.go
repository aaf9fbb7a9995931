package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusguard/focusguard/go/internal/api/focusv1"
	"github.com/focusguard/focusguard/go/internal/events"
	"github.com/focusguard/focusguard/go/internal/outbox"
	"github.com/focusguard/focusguard/go/internal/rpc"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeProvider struct {
	sessions map[string]*focusv1.Session
	err      error
}

func (f *fakeProvider) ActiveSession(_ context.Context, ownerID string) (*focusv1.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions[ownerID], nil
}

func newGateway(t *testing.T, provider StateProvider) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cm := NewConnectionManager(DefaultConnectionConfig())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, provider, clockwork.NewFakeClockAt(testNow)).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return cm, server
}

func dial(t *testing.T, server *httptest.Server, ownerID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sessions"
	header := http.Header{}
	if ownerID != "" {
		header.Set(rpc.OwnerHeader, ownerID)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readEvent(t *testing.T, conn *websocket.Conn) SessionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event SessionEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWebSocket_SnapshotThenBroadcast(t *testing.T) {
	start := testNow.Add(-5 * time.Minute)
	provider := &fakeProvider{sessions: map[string]*focusv1.Session{
		"owner-1": {
			ID:                     "0b0f3c1e-5d43-4d7e-9a53-0c8a1f1b2c3d",
			OwnerID:                "owner-1",
			State:                  "active",
			PlannedDurationSeconds: 1500,
			StartTimestamp:         &start,
			UpdatedAt:              start,
			RemainingSeconds:       1200,
		},
	}}
	cm, server := newGateway(t, provider)

	conn, _, err := dial(t, server, "owner-1")
	require.NoError(t, err)

	snapshot := readEvent(t, conn)
	assert.Equal(t, EventTypeSessionSnapshot, snapshot.Type)
	assert.Equal(t, "0b0f3c1e-5d43-4d7e-9a53-0c8a1f1b2c3d", snapshot.SessionID)
	assert.True(t, snapshot.ServerTime.Equal(testNow))
	var sess focusv1.Session
	require.NoError(t, json.Unmarshal(snapshot.Data, &sess))
	assert.Equal(t, 1200, sess.RemainingSeconds)
	require.NotNil(t, sess.StartTimestamp)
	assert.True(t, sess.StartTimestamp.Equal(start))

	stats := cm.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.OwnerConnections["owner-1"])

	cm.BroadcastToOwner("owner-2", &SessionEvent{ID: "other", Type: EventTypeSessionPaused})
	cm.BroadcastToOwner("owner-1", &SessionEvent{
		ID:        "evt-1",
		Type:      EventTypeSessionPaused,
		SessionID: sess.ID,
		Data:      json.RawMessage(`{"paused_at":"2026-03-10T09:00:00Z"}`),
	})

	event := readEvent(t, conn)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, EventTypeSessionPaused, event.Type)
}

func TestWebSocket_NoActiveSessionSendsNull(t *testing.T) {
	_, server := newGateway(t, &fakeProvider{})

	conn, _, err := dial(t, server, "owner-1")
	require.NoError(t, err)

	snapshot := readEvent(t, conn)
	assert.Equal(t, EventTypeSessionSnapshot, snapshot.Type)
	assert.Empty(t, snapshot.SessionID)
	assert.JSONEq(t, "null", string(snapshot.Data))
}

func TestWebSocket_Rejections(t *testing.T) {
	_, server := newGateway(t, &fakeProvider{})
	_, resp, err := dial(t, server, "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, failing := newGateway(t, &fakeProvider{err: errors.New("api down")})
	_, resp, err = dial(t, failing, "owner-1")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestWebSocket_OwnerFromQuery(t *testing.T) {
	cm, server := newGateway(t, &fakeProvider{})
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sessions?user_id=owner-9"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn)
	assert.Equal(t, 1, cm.Stats().OwnerConnections["owner-9"])

	resp, err := http.Get(server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveOwners)
}

func TestDecodeEnvelope(t *testing.T) {
	payload, err := json.Marshal(events.SessionAbandonedPayload{
		Session: events.SessionPayload{SessionID: "s-1", OwnerID: "owner-1", State: "abandoned"},
		Reason:  events.AbandonReasonIdleSweep,
	})
	require.NoError(t, err)
	data, err := json.Marshal(outbox.Envelope{
		EventID:   "evt-1",
		EventType: string(events.EventTypeSessionAbandoned),
		SessionID: "s-1",
		OwnerID:   "owner-1",
		Timestamp: testNow.Add(-time.Second),
		Payload:   payload,
	})
	require.NoError(t, err)

	owner, event, err := DecodeEnvelope(data, testNow)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)
	assert.Equal(t, EventTypeSessionAbandoned, event.Type)
	assert.Equal(t, "s-1", event.SessionID)
	assert.True(t, event.ServerTime.Equal(testNow))

	parsed, err := ParseEventPayload(event)
	require.NoError(t, err)
	abandoned, ok := parsed.(*events.SessionAbandonedPayload)
	require.True(t, ok)
	assert.Equal(t, events.AbandonReasonIdleSweep, abandoned.Reason)

	_, _, err = DecodeEnvelope([]byte(`{"eventId":"x","eventType":"Nope","ownerId":"o"}`), testNow)
	assert.Error(t, err)
	_, _, err = DecodeEnvelope([]byte(`{"eventId":"x","eventType":"SessionPaused"}`), testNow)
	assert.Error(t, err)
	_, _, err = DecodeEnvelope([]byte(`not json`), testNow)
	assert.Error(t, err)
}

type recordingBroadcaster struct {
	owners []string
	events []*SessionEvent
}

func (r *recordingBroadcaster) BroadcastToOwner(ownerID string, event *SessionEvent) {
	r.owners = append(r.owners, ownerID)
	r.events = append(r.events, event)
}

func TestEventConsumer_HandleData(t *testing.T) {
	b := &recordingBroadcaster{}
	ec := &EventConsumer{broadcaster: b, clock: clockwork.NewFakeClockAt(testNow)}

	err := ec.handleData([]byte(`{"eventId":"e","eventType":"SessionCreated","sessionId":"s","ownerId":"owner-1","payload":{}}`))
	require.NoError(t, err)
	require.Len(t, b.events, 1)
	assert.Equal(t, "owner-1", b.owners[0])
	assert.Equal(t, EventTypeSessionCreated, b.events[0].Type)

	assert.Error(t, ec.handleData([]byte(`{}`)))
	assert.Len(t, b.events, 1)
}

func TestSessionStateProvider(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(focusv1.SessionServiceGetActiveSessionProcedure, connect.NewUnaryHandler(
		focusv1.SessionServiceGetActiveSessionProcedure,
		func(_ context.Context, req *connect.Request[focusv1.GetActiveSessionRequest]) (*connect.Response[focusv1.GetActiveSessionResponse], error) {
			owner, err := rpc.OwnerFromHeader(req.Header())
			if err != nil {
				return nil, err
			}
			resp := &focusv1.GetActiveSessionResponse{}
			if owner == "owner-1" {
				resp.Session = &focusv1.Session{ID: "s-1", OwnerID: owner, State: "paused"}
			}
			return connect.NewResponse(resp), nil
		},
		rpc.HandlerOptions()...,
	))
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := NewSessionStateProvider(server.Client(), server.URL)

	sess, err := provider.ActiveSession(context.Background(), "owner-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "paused", sess.State)

	sess, err = provider.ActiveSession(context.Background(), "owner-2")
	require.NoError(t, err)
	assert.Nil(t, sess)
}
