package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// NotifyChannel is the Postgres channel the outbox trigger notifies on.
const NotifyChannel = "session_outbox_events"

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    NotifyChannel,
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Store is what the listener needs from the outbox table.
type Store interface {
	FetchByID(ctx context.Context, id uuid.UUID) (*Event, error)
	FetchUnsent(ctx context.Context, limit int32) ([]Event, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	CountUnsent(ctx context.Context) (int, error)
}

// Notifier is satisfied by *pq.Listener.
type Notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// NewPQNotifier opens a LISTEN connection on channel.
func NewPQNotifier(dsn, channel string) (*pq.Listener, error) {
	l := pq.NewListener(
		dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", channel).
		Msg("listening for notifications")
	return l, nil
}

// Listener relays committed outbox rows to the publisher. Notifications give
// low latency; the fallback poll picks up anything a dropped connection missed.
type Listener struct {
	store     Store
	notifier  Notifier
	publisher Publisher
	metrics   MetricsCollector
	clock     clockwork.Clock
	cfg       ListenerConfig

	mu      sync.Mutex
	running bool

	processed atomic.Uint64
	lastEvent atomic.Int64
}

type ListenerOption func(*Listener)

func WithMetrics(m MetricsCollector) ListenerOption {
	return func(l *Listener) {
		l.metrics = m
	}
}

func WithClock(c clockwork.Clock) ListenerOption {
	return func(l *Listener) {
		l.clock = c
	}
}

func NewListener(store Store, notifier Notifier, publisher Publisher, cfg ListenerConfig, opts ...ListenerOption) *Listener {
	l := &Listener{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		metrics:   &NoOpMetricsCollector{},
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("outbox listener already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	// rows committed while we were down
	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	fallbackTicker := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	notes := l.notifier.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.notifier.Close()
		case note, ok := <-notes:
			if !ok {
				return fmt.Errorf("notification channel closed")
			}
			if note == nil {
				// connection was re-established; anything sent in between is only visible to a poll
				if err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events after reconnect")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.Chan():
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.Chan():
			if err := l.notifier.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Running reports whether Start is executing.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stats returns the number of events published and when the last one went out.
func (l *Listener) Stats() (uint64, time.Time) {
	last := l.lastEvent.Load()
	if last == 0 {
		return l.processed.Load(), time.Time{}
	}
	return l.processed.Load(), time.Unix(0, last).UTC()
}

// handleNotification publishes the outbox row whose id is the notification payload.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := l.store.FetchByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			// the fallback poll got there first
			log.Debug().Str("event_id", id.String()).Msg("outbox event already sent")
			return nil
		}
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}

	if err := l.deliver(ctx, *event); err != nil {
		return err
	}

	log.Info().Str("event_id", id.String()).Msg("published and marked event as sent")
	return nil
}

// processUnsent publishes every unsent row in created_at order.
func (l *Listener) processUnsent(ctx context.Context) error {
	start := l.clock.Now()

	if pending, err := l.store.CountUnsent(ctx); err == nil {
		l.metrics.RecordOutboxLag(pending)
	}

	unsent, err := l.store.FetchUnsent(ctx, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	delivered := 0
	for _, event := range unsent {
		if err := l.deliver(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to deliver event")
			continue
		}
		delivered++
	}

	if len(unsent) > 0 {
		l.metrics.RecordBatchProcessed(delivered, l.clock.Since(start))
		log.Info().
			Int("total", len(unsent)).
			Int("successful", delivered).
			Msg("processed unsent outbox events")
	}
	return nil
}

func (l *Listener) deliver(ctx context.Context, event Event) error {
	if err := l.publishWithRetry(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := l.store.MarkSent(ctx, event.ID); err != nil {
		// JetStream dedupes on the event id, so a later retry is harmless
		return err
	}
	l.processed.Add(1)
	l.lastEvent.Store(l.clock.Now().UnixNano())
	return nil
}

// publishWithRetry attempts to publish an outbox event with linear backoff.
func (l *Listener) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			l.metrics.RecordPublishAttempt(event.EventType, attempt+1, false)
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		l.metrics.RecordPublishAttempt(event.EventType, attempt+1, true)
		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
