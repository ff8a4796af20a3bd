package relation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// DefaultEventSubject is the NATS subject relation change events are
// published on.
const DefaultEventSubject = "taalhuizen.relation.events"

// ChangeEvent describes one applied relation mutation. Events are
// emitted after the write succeeded; they are a notification feed, not
// a source of truth.
type ChangeEvent struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Kind      string    `json:"kind"`
	Owner     string    `json:"owner"`
	Target    string    `json:"target,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits relation change events.
type Publisher interface {
	Publish(event ChangeEvent) error
}

// NATSPublisher publishes change events as JSON on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher wraps a connected NATS client. An empty subject
// selects DefaultEventSubject.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultEventSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Publish marshals and sends the event.
func (p *NATSPublisher) Publish(event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WrapFatal(err, "relation.publisher", "Publish", "marshal event")
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.WrapTransient(err, "relation.publisher", "Publish", "publish to "+p.subject)
	}
	return nil
}

// newChangeEvent stamps a fresh event with identity and time.
func newChangeEvent(action Action, kind Kind, owner, target string, derived string, now time.Time) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.NewString(),
		Action:    action,
		Kind:      kind.Name,
		Owner:     owner,
		Target:    target,
		Status:    derived,
		Timestamp: now.UTC(),
	}
}
