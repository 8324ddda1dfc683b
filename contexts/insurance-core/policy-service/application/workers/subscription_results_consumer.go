package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "meridian/contexts/insurance-core/policy-service/application"
	"meridian/contexts/insurance-core/policy-service/application/lifecycle"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/contexts/insurance-core/policy-service/ports"
	"meridian/internal/shared/events"
)

const (
	subscriptionResultsTopic = "subscription.results"
	defaultSubscriptionCG    = "policy-service-subscription-cg"

	subscriptionStatusAuthorized = "AUTHORIZED"
	subscriptionStatusDenied     = "DENIED"
)

type subscriptionResultPayload struct {
	PolicyID       string    `json:"policy_id"`
	SubscriptionID string    `json:"subscription_id"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// SubscriptionResultsConsumer handles subscription authorization results,
// the second half of the approval saga.
type SubscriptionResultsConsumer struct {
	Subscriber    ports.EventSubscriber
	Repository    ports.PolicyRepository
	Correlation   ports.CorrelationStore
	Lifecycle     *lifecycle.Coordinator
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (c SubscriptionResultsConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("subscription results consumer disabled by feature flag",
			"event", "policy_subscription_consumer_disabled",
			"module", "insurance-core/policy-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultSubscriptionCG
	}
	if err := c.Subscriber.Subscribe(ctx, subscriptionResultsTopic, group, c.handle); err != nil {
		logger.Error("subscription results subscribe failed",
			"event", "policy_subscription_consumer_subscribe_failed",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"topic", subscriptionResultsTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("subscription results consumer started",
		"event", "policy_subscription_consumer_started",
		"module", "insurance-core/policy-service",
		"layer", "worker",
		"topic", subscriptionResultsTopic,
		"consumer_group", group,
	)
	return nil
}

func (c SubscriptionResultsConsumer) handle(ctx context.Context, event events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload subscriptionResultPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		logger.Error("subscription result decode failed",
			"event", "policy_subscription_result_decode_failed",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return nil
	}

	policy, err := c.Repository.GetPolicy(ctx, payload.PolicyID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPolicyNotFound) {
			logger.Warn("subscription result for unknown policy, dropping",
				"event", "policy_subscription_result_orphan",
				"module", "insurance-core/policy-service",
				"layer", "worker",
				"policy_id", payload.PolicyID,
			)
			return nil
		}
		return err
	}
	if policy.IsFinalStatus() {
		logger.Info("subscription result for final policy, clearing correlation",
			"event", "policy_subscription_result_final",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"policy_id", policy.PolicyID,
			"status", string(policy.Status),
		)
		c.Correlation.Clear(policy.PolicyID)
		return nil
	}

	switch strings.ToUpper(strings.TrimSpace(payload.Status)) {
	case subscriptionStatusDenied:
		return c.Lifecycle.OnSubscriptionDenied(ctx, policy.PolicyID)
	case subscriptionStatusAuthorized:
		c.Correlation.MarkSubscription(policy.PolicyID, payload.OccurredAt)
		return c.Lifecycle.OnSubscriptionAuthorized(ctx, policy.PolicyID)
	default:
		logger.Warn("unrecognized subscription status, dropping",
			"event", "policy_subscription_result_unknown_status",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"policy_id", policy.PolicyID,
			"status", payload.Status,
		)
		return nil
	}
}
