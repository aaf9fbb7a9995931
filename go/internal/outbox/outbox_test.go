package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	events []Event
	sent   map[uuid.UUID]bool
}

func newFakeStore(events ...Event) *fakeStore {
	return &fakeStore{events: events, sent: make(map[uuid.UUID]bool)}
}

func (s *fakeStore) FetchByID(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id && !s.sent[id] {
			e := ev
			return &e, nil
		}
	}
	return nil, ErrEventNotFound
}

func (s *fakeStore) FetchUnsent(_ context.Context, limit int32) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if !s.sent[ev.ID] && int32(len(out)) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
	return nil
}

func (s *fakeStore) CountUnsent(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if !s.sent[ev.ID] {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) isSent(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id]
}

type fakePublisher struct {
	mu        sync.Mutex
	published []Event
	failures  map[uuid.UUID]int
}

func (p *fakePublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures[event.ID] > 0 {
		p.failures[event.ID]--
		return errors.New("nats unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fakeNotifier struct {
	ch     chan *pq.Notification
	closed bool
}

func (n *fakeNotifier) NotificationChannel() <-chan *pq.Notification { return n.ch }
func (n *fakeNotifier) Ping() error                                  { return nil }
func (n *fakeNotifier) Close() error {
	n.closed = true
	return nil
}

func testEvent(eventType string) Event {
	return Event{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		OwnerID:   "owner-1",
		EventType: eventType,
		Payload:   json.RawMessage(`{"session":{}}`),
		CreatedAt: time.Now().UTC(),
	}
}

func testListenerConfig() ListenerConfig {
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestListener_HandleNotification(t *testing.T) {
	ev := testEvent("SessionPaused")
	store := newFakeStore(ev)
	pub := &fakePublisher{}
	l := NewListener(store, &fakeNotifier{}, pub, testListenerConfig())

	require.NoError(t, l.handleNotification(context.Background(), ev.ID.String()))
	assert.True(t, store.isSent(ev.ID))
	assert.Equal(t, 1, pub.count())

	processed, last := l.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.False(t, last.IsZero())

	// a second notification for the same row is a no-op
	require.NoError(t, l.handleNotification(context.Background(), ev.ID.String()))
	assert.Equal(t, 1, pub.count())

	assert.Error(t, l.handleNotification(context.Background(), "not-a-uuid"))
}

func TestListener_PublishRetriesThenSucceeds(t *testing.T) {
	ev := testEvent("SessionCompleted")
	store := newFakeStore(ev)
	pub := &fakePublisher{failures: map[uuid.UUID]int{ev.ID: 2}}
	metrics := NewCounterMetrics()
	l := NewListener(store, &fakeNotifier{}, NewMetricPublisher(pub, metrics), testListenerConfig(), WithMetrics(metrics))

	require.NoError(t, l.handleNotification(context.Background(), ev.ID.String()))
	assert.True(t, store.isSent(ev.ID))

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Published)
	assert.Equal(t, uint64(2), snap.Failed)
	assert.Equal(t, uint64(2), snap.Retries)
	assert.Equal(t, uint64(1), snap.PublishedByType["SessionCompleted"])
}

func TestListener_PublishGivesUp(t *testing.T) {
	ev := testEvent("SessionCreated")
	store := newFakeStore(ev)
	pub := &fakePublisher{failures: map[uuid.UUID]int{ev.ID: 100}}
	l := NewListener(store, &fakeNotifier{}, pub, testListenerConfig())

	err := l.handleNotification(context.Background(), ev.ID.String())
	require.Error(t, err)
	assert.False(t, store.isSent(ev.ID))
}

func TestListener_ProcessUnsentSkipsFailures(t *testing.T) {
	good1 := testEvent("SessionCreated")
	bad := testEvent("SessionPaused")
	good2 := testEvent("SessionResumed")
	store := newFakeStore(good1, bad, good2)
	pub := &fakePublisher{failures: map[uuid.UUID]int{bad.ID: 100}}
	cfg := testListenerConfig()
	cfg.MaxRetries = 0
	metrics := NewCounterMetrics()
	l := NewListener(store, &fakeNotifier{}, pub, cfg, WithMetrics(metrics))

	require.NoError(t, l.processUnsent(context.Background()))

	assert.True(t, store.isSent(good1.ID))
	assert.False(t, store.isSent(bad.ID))
	assert.True(t, store.isSent(good2.ID))
	assert.Equal(t, int64(3), metrics.Snapshot().Lag)
	assert.Equal(t, uint64(1), metrics.Snapshot().Batches)
}

func TestListener_StartRelaysNotificationsUntilCancelled(t *testing.T) {
	backlog := testEvent("SessionCreated")
	live := testEvent("SessionPaused")
	store := newFakeStore(backlog)
	pub := &fakePublisher{}
	notifier := &fakeNotifier{ch: make(chan *pq.Notification, 1)}
	l := NewListener(store, notifier, pub, testListenerConfig(), WithClock(clockwork.NewFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	assert.Eventually(t, func() bool { return store.isSent(backlog.ID) }, time.Second, 5*time.Millisecond)
	assert.True(t, l.Running())

	store.mu.Lock()
	store.events = append(store.events, live)
	store.mu.Unlock()
	notifier.ch <- &pq.Notification{Channel: NotifyChannel, Extra: live.ID.String()}

	assert.Eventually(t, func() bool { return store.isSent(live.ID) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
	assert.True(t, notifier.closed)
	assert.False(t, l.Running())
	assert.Equal(t, 2, pub.count())
}

func TestNewMsg(t *testing.T) {
	ev := testEvent("SessionCompleted")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	msg, err := NewMsg(DefaultJetStreamConfig(), ev, now)
	require.NoError(t, err)
	assert.Equal(t, "focus.sessions.SessionCompleted", msg.Subject)
	assert.Equal(t, ev.ID.String(), msg.Header.Get("Event-ID"))
	assert.Equal(t, "owner-1", msg.Header.Get("Owner-ID"))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, ev.ID.String(), env.EventID)
	assert.Equal(t, ev.SessionID.String(), env.SessionID)
	assert.Equal(t, "SessionCompleted", env.EventType)
	assert.Equal(t, now, env.Timestamp)
	assert.JSONEq(t, `{"session":{}}`, string(env.Payload))
}

type fakeRelay struct {
	running   bool
	processed uint64
	last      time.Time
}

func (r fakeRelay) Running() bool              { return r.running }
func (r fakeRelay) Stats() (uint64, time.Time) { return r.processed, r.last }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestRelayHealthChecker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(testEvent("SessionCreated"))

	healthy := NewRelayHealthChecker(fakeRelay{running: true, processed: 4, last: clock.Now()}, pinger{}, store, func() bool { return true }, clock, time.Minute)
	status := healthy.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.PendingEvents)
	assert.Empty(t, status.Errors)

	clock.Advance(2 * time.Minute)
	stalled := healthy.Check(context.Background())
	assert.False(t, stalled.Healthy)
	assert.Len(t, stalled.Errors, 1)

	down := NewRelayHealthChecker(fakeRelay{}, pinger{err: errors.New("refused")}, store, func() bool { return false }, clock, time.Minute)
	status = down.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.DatabaseConnected)
	assert.False(t, status.NATSConnected)
	assert.False(t, status.ListenerActive)
	assert.Len(t, status.Errors, 3)

	rec := httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPrometheusExporter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	metrics := NewCounterMetrics()
	metrics.RecordEventProcessed("SessionCreated", true, time.Millisecond)
	metrics.RecordEventProcessed("SessionCreated", false, time.Millisecond)

	checker := NewRelayHealthChecker(fakeRelay{running: true}, pinger{}, newFakeStore(), nil, clock, time.Minute)
	out := NewPrometheusExporter(checker, metrics).Export(context.Background())

	assert.Contains(t, out, "outbox_healthy 1\n")
	assert.Contains(t, out, "outbox_pending_events 0\n")
	assert.Contains(t, out, "outbox_publish_failures_total 1\n")
	assert.Contains(t, out, `outbox_published_total{event_type="SessionCreated"} 1`)
}
