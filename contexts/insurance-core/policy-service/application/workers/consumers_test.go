package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"meridian/contexts/insurance-core/policy-service/adapters/memory"
	"meridian/contexts/insurance-core/policy-service/application/lifecycle"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	"meridian/internal/shared/events"
)

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

type seqIDGen struct {
	counter atomic.Int64
}

func (g *seqIDGen) NewID(context.Context) (string, error) {
	return fmt.Sprintf("id-%04d", g.counter.Add(1)), nil
}

type consumerFixture struct {
	store       *memory.Store
	correlation *memory.CorrelationStore
	coordinator *lifecycle.Coordinator
	now         time.Time
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	now := time.Date(2026, time.June, 2, 11, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	correlation := memory.NewCorrelationStore(30 * time.Minute)
	coordinator := lifecycle.NewCoordinator(lifecycle.Config{
		Repository:  store,
		Outbox:      store,
		Correlation: correlation,
		Clock:       fixedClock{now: now},
		IDGen:       &seqIDGen{},
	})
	return &consumerFixture{
		store:       store,
		correlation: correlation,
		coordinator: coordinator,
		now:         now,
	}
}

func (f *consumerFixture) seed(t *testing.T, policyID string, status entities.PolicyStatus) {
	t.Helper()
	policy := entities.Policy{
		PolicyID:      policyID,
		CustomerID:    "cust-1",
		ProductID:     "prod-1",
		Category:      "AUTO",
		SalesChannel:  "MOBILE",
		PaymentMethod: "CREDIT_CARD",
		Status:        status,
		CreatedAt:     f.now,
		InsuredAmount: decimal.NewFromInt(100000),
		History:       []entities.StatusHistory{{Status: entities.PolicyStatusReceived, Timestamp: f.now}},
	}
	if err := f.store.SavePolicy(context.Background(), policy); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}
}

func (f *consumerFixture) paymentConsumer() PaymentResultsConsumer {
	return PaymentResultsConsumer{
		Repository:  f.store,
		Correlation: f.correlation,
		Lifecycle:   f.coordinator,
	}
}

func (f *consumerFixture) subscriptionConsumer() SubscriptionResultsConsumer {
	return SubscriptionResultsConsumer{
		Repository:  f.store,
		Correlation: f.correlation,
		Lifecycle:   f.coordinator,
	}
}

func paymentEvent(t *testing.T, policyID string, status string, at time.Time) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"policy_id":   policyID,
		"payment_id":  "pay-1",
		"status":      status,
		"occurred_at": at,
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return events.Envelope{EventID: "evt-1", EventType: "payment.results", Payload: raw}
}

func subscriptionEvent(t *testing.T, policyID string, status string, at time.Time) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"policy_id":       policyID,
		"subscription_id": "sub-1",
		"status":          status,
		"occurred_at":     at,
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return events.Envelope{EventID: "evt-2", EventType: "subscription.results", Payload: raw}
}

func TestPaymentConfirmedMarksCorrelation(t *testing.T) {
	f := newConsumerFixture(t)
	f.seed(t, "pol-1", entities.PolicyStatusPending)
	consumer := f.paymentConsumer()

	if err := consumer.handle(context.Background(), paymentEvent(t, "pol-1", "CONFIRMED", f.now)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	policy, err := f.store.GetPolicy(context.Background(), "pol-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusPending {
		t.Fatalf("payment alone moved policy to %s", policy.Status)
	}
	if f.correlation.BothDone("pol-1") {
		t.Fatal("subscription should still be outstanding")
	}
}

func TestBothConsumersApprovePolicy(t *testing.T) {
	f := newConsumerFixture(t)
	f.seed(t, "pol-1", entities.PolicyStatusPending)

	if err := f.subscriptionConsumer().handle(context.Background(), subscriptionEvent(t, "pol-1", "AUTHORIZED", f.now)); err != nil {
		t.Fatalf("subscription handle failed: %v", err)
	}
	if err := f.paymentConsumer().handle(context.Background(), paymentEvent(t, "pol-1", "CONFIRMED", f.now)); err != nil {
		t.Fatalf("payment handle failed: %v", err)
	}

	policy, err := f.store.GetPolicy(context.Background(), "pol-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusApproved {
		t.Fatalf("expected APPROVED after both results, got %s", policy.Status)
	}
	if policy.FinishedAt == nil {
		t.Fatal("approved policy should be finalized")
	}
}

func TestPaymentDeniedRejectsPolicy(t *testing.T) {
	f := newConsumerFixture(t)
	f.seed(t, "pol-1", entities.PolicyStatusPending)

	if err := f.paymentConsumer().handle(context.Background(), paymentEvent(t, "pol-1", "DENIED", f.now)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	policy, err := f.store.GetPolicy(context.Background(), "pol-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusRejected {
		t.Fatalf("expected REJECTED, got %s", policy.Status)
	}
}

func TestSubscriptionDeniedRejectsPolicy(t *testing.T) {
	f := newConsumerFixture(t)
	f.seed(t, "pol-1", entities.PolicyStatusPending)

	if err := f.subscriptionConsumer().handle(context.Background(), subscriptionEvent(t, "pol-1", "DENIED", f.now)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	policy, err := f.store.GetPolicy(context.Background(), "pol-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusRejected {
		t.Fatalf("expected REJECTED, got %s", policy.Status)
	}
}

func TestResultForUnknownPolicyIsDropped(t *testing.T) {
	f := newConsumerFixture(t)
	consumer := f.paymentConsumer()

	if err := consumer.handle(context.Background(), paymentEvent(t, "ghost", "CONFIRMED", f.now)); err != nil {
		t.Fatalf("orphan result should be dropped, got %v", err)
	}
}

func TestResultWithUnknownStatusIsDropped(t *testing.T) {
	f := newConsumerFixture(t)
	f.seed(t, "pol-1", entities.PolicyStatusPending)

	if err := f.paymentConsumer().handle(context.Background(), paymentEvent(t, "pol-1", "MAYBE", f.now)); err != nil {
		t.Fatalf("unknown status should be dropped, got %v", err)
	}
	policy, _ := f.store.GetPolicy(context.Background(), "pol-1")
	if policy.Status != entities.PolicyStatusPending {
		t.Fatalf("unknown status moved policy to %s", policy.Status)
	}
	if f.correlation.Len() != 0 {
		t.Fatal("unknown status should not mark correlation")
	}
}

func TestResultForFinalPolicyClearsCorrelation(t *testing.T) {
	f := newConsumerFixture(t)
	f.seed(t, "pol-1", entities.PolicyStatusCancelled)
	f.correlation.MarkPayment("pol-1", f.now)

	if err := f.paymentConsumer().handle(context.Background(), paymentEvent(t, "pol-1", "CONFIRMED", f.now)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	policy, _ := f.store.GetPolicy(context.Background(), "pol-1")
	if policy.Status != entities.PolicyStatusCancelled {
		t.Fatalf("final policy mutated to %s", policy.Status)
	}
	if f.correlation.Len() != 0 {
		t.Fatal("correlation entry should be cleared for a final policy")
	}
}

func TestMalformedResultIsDropped(t *testing.T) {
	f := newConsumerFixture(t)
	consumer := f.paymentConsumer()

	event := events.Envelope{EventID: "evt-bad", EventType: "payment.results", Payload: []byte("not json")}
	if err := consumer.handle(context.Background(), event); err != nil {
		t.Fatalf("malformed payload should be dropped, got %v", err)
	}
}

func TestCorrelationEvictorSweeps(t *testing.T) {
	f := newConsumerFixture(t)
	f.correlation.MarkPayment("stale", f.now.Add(-45*time.Minute))
	f.correlation.MarkPayment("fresh", f.now.Add(-time.Minute))

	evictor := CorrelationEvictor{
		Correlation: f.correlation,
		Clock:       fixedClock{now: f.now},
	}
	if err := evictor.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	if f.correlation.Len() != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", f.correlation.Len())
	}
}
