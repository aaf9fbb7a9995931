package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/focusguard/focusguard/go/internal/events"
)

// SessionEvent is the frame pushed to websocket clients
type SessionEvent struct {
	ID         string          `json:"id"`          // Outbox event UUID, empty for snapshots
	Type       EventType       `json:"type"`        // Event type
	SessionID  string          `json:"session_id"`  // Session UUID, empty when no session is open
	Timestamp  time.Time       `json:"timestamp"`   // When the state change happened
	ServerTime time.Time       `json:"server_time"` // Gateway clock when the frame was built
	Data       json.RawMessage `json:"data"`        // Event-specific payload
}

// EventType represents the type of session event
type EventType string

const (
	EventTypeSessionCreated         = EventType(events.EventTypeSessionCreated)
	EventTypeSessionPaused          = EventType(events.EventTypeSessionPaused)
	EventTypeSessionResumed         = EventType(events.EventTypeSessionResumed)
	EventTypeSessionDurationChanged = EventType(events.EventTypeSessionDurationChanged)
	EventTypeSessionCompleted       = EventType(events.EventTypeSessionCompleted)
	EventTypeSessionAbandoned       = EventType(events.EventTypeSessionAbandoned)

	// EventTypeSessionSnapshot is sent once per connection so the client can
	// rebuild its countdown from absolute timestamps.
	EventTypeSessionSnapshot EventType = "SessionSnapshot"
)

// ParseEventType maps an outbox event type onto a websocket event type.
func ParseEventType(raw string) (EventType, error) {
	switch t := EventType(raw); t {
	case EventTypeSessionCreated,
		EventTypeSessionPaused,
		EventTypeSessionResumed,
		EventTypeSessionDurationChanged,
		EventTypeSessionCompleted,
		EventTypeSessionAbandoned:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type: %s", raw)
	}
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *SessionEvent) (interface{}, error) {
	var target interface{}
	switch event.Type {
	case EventTypeSessionCreated:
		target = &events.SessionCreatedPayload{}
	case EventTypeSessionPaused:
		target = &events.SessionPausedPayload{}
	case EventTypeSessionResumed:
		target = &events.SessionResumedPayload{}
	case EventTypeSessionDurationChanged:
		target = &events.SessionDurationChangedPayload{}
	case EventTypeSessionCompleted:
		target = &events.SessionCompletedPayload{}
	case EventTypeSessionAbandoned:
		target = &events.SessionAbandonedPayload{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
