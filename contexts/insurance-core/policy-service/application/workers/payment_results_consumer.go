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
	paymentResultsTopic = "payment.results"
	defaultPaymentCG    = "policy-service-payment-cg"

	paymentStatusConfirmed = "CONFIRMED"
	paymentStatusDenied    = "DENIED"
)

type paymentResultPayload struct {
	PolicyID   string    `json:"policy_id"`
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentResultsConsumer handles payment settlement results. Confirmations
// are marked in the correlation store before the lifecycle handler runs;
// denials go straight to the coordinator. Results for unknown or already
// final policies are dropped.
type PaymentResultsConsumer struct {
	Subscriber    ports.EventSubscriber
	Repository    ports.PolicyRepository
	Correlation   ports.CorrelationStore
	Lifecycle     *lifecycle.Coordinator
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (c PaymentResultsConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("payment results consumer disabled by feature flag",
			"event", "policy_payment_consumer_disabled",
			"module", "insurance-core/policy-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultPaymentCG
	}
	if err := c.Subscriber.Subscribe(ctx, paymentResultsTopic, group, c.handle); err != nil {
		logger.Error("payment results subscribe failed",
			"event", "policy_payment_consumer_subscribe_failed",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"topic", paymentResultsTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("payment results consumer started",
		"event", "policy_payment_consumer_started",
		"module", "insurance-core/policy-service",
		"layer", "worker",
		"topic", paymentResultsTopic,
		"consumer_group", group,
	)
	return nil
}

func (c PaymentResultsConsumer) handle(ctx context.Context, event events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)
	var payload paymentResultPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		logger.Error("payment result decode failed",
			"event", "policy_payment_result_decode_failed",
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
			logger.Warn("payment result for unknown policy, dropping",
				"event", "policy_payment_result_orphan",
				"module", "insurance-core/policy-service",
				"layer", "worker",
				"policy_id", payload.PolicyID,
			)
			return nil
		}
		return err
	}
	if policy.IsFinalStatus() {
		logger.Info("payment result for final policy, clearing correlation",
			"event", "policy_payment_result_final",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"policy_id", policy.PolicyID,
			"status", string(policy.Status),
		)
		c.Correlation.Clear(policy.PolicyID)
		return nil
	}

	switch strings.ToUpper(strings.TrimSpace(payload.Status)) {
	case paymentStatusDenied:
		return c.Lifecycle.OnPaymentDenied(ctx, policy.PolicyID)
	case paymentStatusConfirmed:
		c.Correlation.MarkPayment(policy.PolicyID, payload.OccurredAt)
		return c.Lifecycle.OnPaymentConfirmed(ctx, policy.PolicyID)
	default:
		logger.Warn("unrecognized payment status, dropping",
			"event", "policy_payment_result_unknown_status",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"policy_id", policy.PolicyID,
			"status", payload.Status,
		)
		return nil
	}
}
