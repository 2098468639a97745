package credentials

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a credential lifecycle event.
type EventType string

const (
	EventKeyIssued  EventType = "key.issued"
	EventKeyRevoked EventType = "key.revoked"
)

// Event describes a key issuance or revocation. Events never carry the
// plaintext secret.
type Event struct {
	Type      EventType
	KeyID     uuid.UUID
	ProjectID uuid.UUID
	OrgID     uuid.UUID
	At        time.Time
}

// Subscriber receives credential lifecycle events. Delivery is synchronous,
// as a side effect of the operation that caused the event; queuing, retry,
// and fan-out to durable consumers are the subscriber's responsibility. A
// subscriber error does not roll back the operation.
type Subscriber interface {
	HandleKeyEvent(ctx context.Context, event Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event)

// HandleKeyEvent calls f.
func (f SubscriberFunc) HandleKeyEvent(ctx context.Context, event Event) {
	f(ctx, event)
}
