package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// pendingAlertThreshold is the backlog size reported as an error.
const pendingAlertThreshold = 1000

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsProcessed   uint64    `json:"events_processed"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RelayState is what the health checker reads from the listener.
type RelayState interface {
	Running() bool
	Stats() (uint64, time.Time)
}

type RelayHealthChecker struct {
	relay     RelayState
	db        Pinger
	store     Store
	natsUp    func() bool
	clock     clockwork.Clock
	threshold time.Duration // How long without events before unhealthy
}

// NewRelayHealthChecker builds a checker. natsUp may be nil when the relay
// has no NATS connection to report on.
func NewRelayHealthChecker(relay RelayState, db Pinger, store Store, natsUp func() bool, clock clockwork.Clock, threshold time.Duration) *RelayHealthChecker {
	return &RelayHealthChecker{
		relay:     relay,
		db:        db,
		store:     store,
		natsUp:    natsUp,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *RelayHealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.relay.Stats()

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.natsUp != nil {
		status.NATSConnected = h.natsUp()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.ListenerActive = h.relay.Running()
	if !status.ListenerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if status.DatabaseConnected {
		pending, err := h.store.CountUnsent(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > pendingAlertThreshold {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	// a backlog that is not draining
	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := h.clock.Since(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	return status
}

func (h *RelayHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}

// PrometheusExporter renders health and counters in the Prometheus text format.
type PrometheusExporter struct {
	checker HealthChecker
	metrics *CounterMetrics
}

func NewPrometheusExporter(checker HealthChecker, metrics *CounterMetrics) *PrometheusExporter {
	return &PrometheusExporter{checker: checker, metrics: metrics}
}

func (e *PrometheusExporter) Export(ctx context.Context) string {
	status := e.checker.Check(ctx)

	var b strings.Builder
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}

	gauge("outbox_healthy", "Whether the outbox relay is healthy", boolGauge(status.Healthy))
	counter("outbox_events_processed_total", "Total number of events relayed", status.EventsProcessed)
	gauge("outbox_pending_events", "Current number of pending events", int64(status.PendingEvents))
	gauge("outbox_database_connected", "Whether database is connected", boolGauge(status.DatabaseConnected))
	gauge("outbox_nats_connected", "Whether NATS is connected", boolGauge(status.NATSConnected))
	gauge("outbox_listener_active", "Whether the listener is active", boolGauge(status.ListenerActive))
	gauge("outbox_last_event_timestamp", "Unix timestamp of last processed event", lastEventUnix(status.LastEventTime))

	if e.metrics != nil {
		snap := e.metrics.Snapshot()
		counter("outbox_publish_failures_total", "Publish attempts that returned an error", snap.Failed)
		counter("outbox_publish_retries_total", "Publish attempts after the first", snap.Retries)
		counter("outbox_batches_total", "Fallback batches processed", snap.Batches)

		types := make([]string, 0, len(snap.PublishedByType))
		for t := range snap.PublishedByType {
			types = append(types, t)
		}
		sort.Strings(types)
		b.WriteString("# HELP outbox_published_total Events published by type\n# TYPE outbox_published_total counter\n")
		for _, t := range types {
			fmt.Fprintf(&b, "outbox_published_total{event_type=%q} %d\n", t, snap.PublishedByType[t])
		}
	}

	return b.String()
}

func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(e.Export(r.Context())))
}

func boolGauge(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func lastEventUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
