package events

import (
	"context"
	"sync"
	"time"
)

// Study session lifecycle events. Deleted is consumed, the others are produced.
const (
	TypeSessionIngested    = "study_session.ingested"
	TypeRemoteUpsertFailed = "study_session.remote_upsert_failed"
	TypeSessionPurged      = "study_session.purged"
	TypeSessionDeleted     = "study_session.deleted"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "study_session.ingested").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSessionEvent builds an event about one study session; the session id is always present
// in the payload under "session_id".
func NewSessionEvent(eventType, session string, data map[string]interface{}) BaseEvent {
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["session_id"] = session
	return BaseEvent{Type: eventType, Data: payload, OccurredAt: time.Now().UTC()}
}

// SessionID extracts the "session_id" payload field.
func SessionID(e Event) (string, bool) {
	s, ok := e.Payload()["session_id"].(string)
	return s, ok && s != ""
}

// Publisher sends events to whatever bus is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
