package ports

import (
	"context"
	"time"

	"meridian/contexts/insurance-core/policy-service/domain/entities"
	"meridian/internal/shared/events"
	"meridian/internal/shared/outbox"
)

// PolicyRepository is the persistence out-port. SavePolicy replaces the full
// record; the lifecycle coordinator is the only component allowed to save a
// status change.
type PolicyRepository interface {
	SavePolicy(ctx context.Context, policy entities.Policy) error
	GetPolicy(ctx context.Context, policyID string) (entities.Policy, error)
	ListPoliciesByCustomer(ctx context.Context, customerID string) ([]entities.Policy, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, msg outbox.Message) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, at time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, events.Envelope) error,
	) error
}

// FraudAnalysis is the classifier's verdict for one policy request. The
// classification label is free text; domain/fraud maps unknown labels to the
// strictest tier.
type FraudAnalysis struct {
	OrderID        string
	CustomerID     string
	AnalyzedAt     time.Time
	Classification string
}

type FraudGateway interface {
	Analyze(ctx context.Context, orderID string, customerID string) (FraudAnalysis, error)
}

// CorrelationStore tracks which of the two asynchronous confirmations have
// arrived for a policy. Mark operations are idempotent and atomic per key:
// a concurrent mark on the same policy is never lost.
type CorrelationStore interface {
	MarkPayment(policyID string, at time.Time)
	MarkSubscription(policyID string, at time.Time)
	BothDone(policyID string) bool
	Clear(policyID string)
	EvictExpired(now time.Time) int
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
