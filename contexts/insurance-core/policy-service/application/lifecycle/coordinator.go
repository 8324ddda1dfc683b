package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	application "meridian/contexts/insurance-core/policy-service/application"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/contexts/insurance-core/policy-service/domain/fraud"
	"meridian/contexts/insurance-core/policy-service/ports"
	"meridian/internal/shared/events"
	"meridian/internal/shared/outbox"
)

const (
	reasonPaymentAndSubscription = "PAYMENT+SUBSCRIPTION"
	reasonByPayment              = "BY_PAYMENT"
	reasonBySubscription         = "BY_SUBSCRIPTION"

	sourceService = "insurance-core/policy-service"
)

// Coordinator owns every status transition of a policy. It reconciles the
// fraud verdict and the two asynchronous confirmations into exactly one
// terminal outcome, persisting and emitting a status-changed event with each
// transition.
//
// Signal handlers for the same policy can race (payment and subscription
// arrive on independent consumers), so each handler runs its load-check-
// transition sequence under a per-policy mutex. A handler that loads the
// policy and finds it already past its expected source status is a no-op,
// which makes a duplicate PENDING->APPROVED attempt publish nothing.
type Coordinator struct {
	repository  ports.PolicyRepository
	outbox      ports.OutboxWriter
	correlation ports.CorrelationStore
	clock       ports.Clock
	idGen       ports.IDGenerator
	strict      bool
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Config struct {
	Repository  ports.PolicyRepository
	Outbox      ports.OutboxWriter
	Correlation ports.CorrelationStore
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	// StrictTransitions makes handlers return ErrInvalidTransition when
	// invoked outside their source status instead of absorbing the call.
	StrictTransitions bool
	Logger            *slog.Logger
}

func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{
		repository:  cfg.Repository,
		outbox:      cfg.Outbox,
		correlation: cfg.Correlation,
		clock:       cfg.Clock,
		idGen:       cfg.IDGen,
		strict:      cfg.StrictTransitions,
		logger:      application.ResolveLogger(cfg.Logger),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) lockPolicy(policyID string) *sync.Mutex {
	c.mu.Lock()
	lock, ok := c.locks[policyID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[policyID] = lock
	}
	c.mu.Unlock()
	lock.Lock()
	return lock
}

// OnFraudResult applies the fraud verdict to a RECEIVED policy. Approved
// requests walk RECEIVED->VALIDATED->PENDING as two recorded transitions and
// stay open for the payment/subscription saga; denied requests go straight to
// REJECTED and are finalized.
func (c *Coordinator) OnFraudResult(
	ctx context.Context,
	policyID string,
	classification fraud.Classification,
	category string,
	insuredAmount decimal.Decimal,
) error {
	lock := c.lockPolicy(policyID)
	defer lock.Unlock()

	policy, err := c.repository.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if policy.Status != entities.PolicyStatusReceived {
		return c.absorb(ctx, "on_fraud_result", policy)
	}

	if fraud.IsApproved(classification, category, insuredAmount) {
		if err := c.moveTo(ctx, &policy, entities.PolicyStatusValidated, string(classification)); err != nil {
			return err
		}
		return c.moveTo(ctx, &policy, entities.PolicyStatusPending, string(classification))
	}
	if err := c.moveTo(ctx, &policy, entities.PolicyStatusRejected, string(classification)); err != nil {
		return err
	}
	return c.finish(ctx, &policy)
}

// OnPaymentConfirmed reacts to a settled payment for a PENDING policy. The
// caller marks the correlation store before invoking this handler; the policy
// is approved only once both confirmations are present.
func (c *Coordinator) OnPaymentConfirmed(ctx context.Context, policyID string) error {
	return c.onSignalConfirmed(ctx, policyID, "on_payment_confirmed")
}

// OnSubscriptionAuthorized mirrors OnPaymentConfirmed for the subscription
// authorization signal.
func (c *Coordinator) OnSubscriptionAuthorized(ctx context.Context, policyID string) error {
	return c.onSignalConfirmed(ctx, policyID, "on_subscription_authorized")
}

func (c *Coordinator) onSignalConfirmed(ctx context.Context, policyID string, handler string) error {
	lock := c.lockPolicy(policyID)
	defer lock.Unlock()

	policy, err := c.repository.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if policy.Status != entities.PolicyStatusPending {
		return c.absorb(ctx, handler, policy)
	}
	if !c.correlation.BothDone(policyID) {
		c.logger.Debug("waiting for remaining confirmation",
			"event", "policy_saga_waiting",
			"module", sourceService,
			"layer", "application",
			"handler", handler,
			"policy_id", policyID,
		)
		return nil
	}
	if err := c.moveTo(ctx, &policy, entities.PolicyStatusApproved, reasonPaymentAndSubscription); err != nil {
		return err
	}
	return c.finish(ctx, &policy)
}

// OnPaymentDenied rejects a PENDING policy regardless of the subscription
// signal's arrival state.
func (c *Coordinator) OnPaymentDenied(ctx context.Context, policyID string) error {
	return c.onSignalDenied(ctx, policyID, "on_payment_denied", reasonByPayment)
}

// OnSubscriptionDenied rejects a PENDING policy regardless of the payment
// signal's arrival state.
func (c *Coordinator) OnSubscriptionDenied(ctx context.Context, policyID string) error {
	return c.onSignalDenied(ctx, policyID, "on_subscription_denied", reasonBySubscription)
}

func (c *Coordinator) onSignalDenied(ctx context.Context, policyID string, handler string, reason string) error {
	lock := c.lockPolicy(policyID)
	defer lock.Unlock()

	policy, err := c.repository.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if policy.Status != entities.PolicyStatusPending {
		return c.absorb(ctx, handler, policy)
	}
	if err := c.moveTo(ctx, &policy, entities.PolicyStatusRejected, reason); err != nil {
		return err
	}
	return c.finish(ctx, &policy)
}

// Cancel moves a non-terminal policy to CANCELLED and finalizes it. The
// correlation entry is cleared unconditionally so a late confirmation cannot
// resurrect the saga. Cancelling an already-final policy is the one case that
// surfaces an error to the caller.
func (c *Coordinator) Cancel(ctx context.Context, policyID string, reason string) (entities.Policy, error) {
	lock := c.lockPolicy(policyID)
	defer lock.Unlock()

	policy, err := c.repository.GetPolicy(ctx, policyID)
	if err != nil {
		return entities.Policy{}, err
	}
	if policy.IsFinalStatus() {
		return entities.Policy{}, fmt.Errorf("%w: %s is %s", domainerrors.ErrCancelConflict, policyID, policy.Status)
	}
	if err := c.moveTo(ctx, &policy, entities.PolicyStatusCancelled, reason); err != nil {
		return entities.Policy{}, err
	}
	if err := c.finish(ctx, &policy); err != nil {
		return entities.Policy{}, err
	}
	c.correlation.Clear(policyID)
	return policy, nil
}

// Reload fetches the current persisted record.
func (c *Coordinator) Reload(ctx context.Context, policyID string) (entities.Policy, error) {
	return c.repository.GetPolicy(ctx, policyID)
}

// PublishCreated emits the intake event for a freshly persisted policy.
func (c *Coordinator) PublishCreated(ctx context.Context, policy entities.Policy) error {
	now := c.clock.Now().UTC()
	return c.appendEvent(ctx, TopicPolicyCreated, policy.PolicyID, PolicyCreatedPayload{
		PolicyID:      policy.PolicyID,
		CustomerID:    policy.CustomerID,
		ProductID:     policy.ProductID,
		Status:        string(policy.Status),
		OccurredAtUTC: now,
	})
}

// moveTo applies one transition: append history, persist, emit the
// status-changed event, and clear correlation when a terminal status is
// entered by any path. Off-table transitions are logged and, outside strict
// mode, still absorbed the way the handlers' source-status gates left them.
func (c *Coordinator) moveTo(ctx context.Context, current *entities.Policy, next entities.PolicyStatus, reason string) error {
	now := c.clock.Now().UTC()
	c.logger.Info("policy status transition",
		"event", "policy_status_transition",
		"module", sourceService,
		"layer", "application",
		"policy_id", current.PolicyID,
		"from", string(current.Status),
		"to", string(next),
		"reason", reason,
	)
	// Terminal targets are always honored: fraud denial jumps RECEIVED
	// straight to REJECTED without passing through VALIDATED.
	if !current.Status.CanTransitionTo(next) && !next.IsFinal() {
		if c.strict {
			return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, current.Status, next)
		}
		c.logger.Warn("transition outside allowed table",
			"event", "policy_transition_off_table",
			"module", sourceService,
			"layer", "application",
			"policy_id", current.PolicyID,
			"from", string(current.Status),
			"to", string(next),
		)
	}

	updated := current.WithStatus(next, now)
	if err := c.repository.SavePolicy(ctx, updated); err != nil {
		return err
	}
	if err := c.appendEvent(ctx, TopicPolicyStatusChanged, updated.PolicyID, PolicyStatusChangedPayload{
		PolicyID:      updated.PolicyID,
		CustomerID:    updated.CustomerID,
		ProductID:     updated.ProductID,
		Status:        string(updated.Status),
		Reason:        reason,
		OccurredAtUTC: now,
	}); err != nil {
		return err
	}
	if updated.IsFinalStatus() {
		c.correlation.Clear(updated.PolicyID)
	}
	*current = updated
	return nil
}

// finish stamps finished-at on a policy that just entered a terminal status
// and persists the finalized record.
func (c *Coordinator) finish(ctx context.Context, current *entities.Policy) error {
	now := c.clock.Now().UTC()
	updated := current.WithFinishedAt(now)
	if err := c.repository.SavePolicy(ctx, updated); err != nil {
		return err
	}
	*current = updated
	return nil
}

func (c *Coordinator) absorb(ctx context.Context, handler string, policy entities.Policy) error {
	if c.strict {
		return fmt.Errorf("%w: %s in status %s", domainerrors.ErrInvalidTransition, handler, policy.Status)
	}
	c.logger.Info("event ignored for current status",
		"event", "policy_event_absorbed",
		"module", sourceService,
		"layer", "application",
		"handler", handler,
		"policy_id", policy.PolicyID,
		"status", string(policy.Status),
	)
	return nil
}

func (c *Coordinator) appendEvent(ctx context.Context, eventType string, policyID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	eventID, err := c.idGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope := events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  sourceService,
		OccurredAtUTC:  c.clock.Now().UTC(),
		EntityType:     "policy",
		EntityID:       policyID,
		PayloadVersion: 1,
		Payload:        raw,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return c.outbox.AppendOutbox(ctx, outbox.Message{
		ID:        eventID,
		EventType: eventType,
		Payload:   body,
		Status:    outbox.StatusPending,
		CreatedAt: envelope.OccurredAtUTC,
	})
}
