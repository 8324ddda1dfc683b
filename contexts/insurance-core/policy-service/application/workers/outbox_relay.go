package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "meridian/contexts/insurance-core/policy-service/application"
	"meridian/contexts/insurance-core/policy-service/ports"
	"meridian/internal/shared/events"
)

// OutboxRelay publishes persisted outbox records to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows and marks each row
// published only after broker publish succeeds. It stops on the first failure
// so the retry loop can reprocess remaining rows safely.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list failed",
			"event", "policy_outbox_list_failed",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event events.Envelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("outbox decode failed",
				"event", "policy_outbox_decode_failed",
				"module", "insurance-core/policy-service",
				"layer", "worker",
				"outbox_id", row.ID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("outbox publish failed",
				"event", "policy_outbox_publish_failed",
				"module", "insurance-core/policy-service",
				"layer", "worker",
				"outbox_id", row.ID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.ID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "policy_outbox_mark_failed",
				"module", "insurance-core/policy-service",
				"layer", "worker",
				"outbox_id", row.ID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("outbox relay batch published",
		"event", "policy_outbox_relay_completed",
		"module", "insurance-core/policy-service",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
