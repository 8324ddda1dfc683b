package outbox

import "time"

const (
	StatusPending   = "pending"
	StatusPublished = "published"
)

// Outbox row persisted alongside policy state changes. The worker relay reads
// pending rows, publishes to the message bus, then marks them published,
// giving at-least-once delivery; consumers must tolerate duplicates.
type Message struct {
	ID         string
	EventType  string
	Payload    []byte
	Status     string // pending, published
	RetryCount int
	CreatedAt  time.Time
}
