package commands

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"meridian/contexts/insurance-core/policy-service/adapters/memory"
	"meridian/contexts/insurance-core/policy-service/application/lifecycle"
	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/contexts/insurance-core/policy-service/ports"
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

type stubFraudGateway struct {
	classification string
	err            error
}

func (s stubFraudGateway) Analyze(_ context.Context, orderID string, customerID string) (ports.FraudAnalysis, error) {
	if s.err != nil {
		return ports.FraudAnalysis{}, s.err
	}
	return ports.FraudAnalysis{
		OrderID:        orderID,
		CustomerID:     customerID,
		AnalyzedAt:     time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC),
		Classification: s.classification,
	}, nil
}

func newCreateUseCase(t *testing.T, gateway ports.FraudGateway) (CreatePolicyUseCase, *memory.Store, *memory.CorrelationStore) {
	t.Helper()
	now := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	correlation := memory.NewCorrelationStore(30 * time.Minute)
	clock := fixedClock{now: now}
	idGen := &seqIDGen{}
	coordinator := lifecycle.NewCoordinator(lifecycle.Config{
		Repository:  store,
		Outbox:      store,
		Correlation: correlation,
		Clock:       clock,
		IDGen:       idGen,
	})
	return CreatePolicyUseCase{
		Repository: store,
		Fraud:      gateway,
		Lifecycle:  coordinator,
		Clock:      clock,
		IDGen:      idGen,
	}, store, correlation
}

func validCommand() CreatePolicyCommand {
	return CreatePolicyCommand{
		CustomerID:                "cust-1",
		ProductID:                 "prod-1",
		Category:                  "AUTO",
		SalesChannel:              "MOBILE",
		PaymentMethod:             "CREDIT_CARD",
		TotalMonthlyPremiumAmount: decimal.NewFromInt(75),
		InsuredAmount:             decimal.NewFromInt(275000),
		Coverages:                 map[string]decimal.Decimal{"Collision": decimal.NewFromInt(100000)},
		Assistances:               []string{"Roadside"},
	}
}

func TestCreatePolicyApprovedByFraudLandsPending(t *testing.T) {
	uc, store, _ := newCreateUseCase(t, stubFraudGateway{classification: "REGULAR"})

	policy, err := uc.Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusPending {
		t.Fatalf("expected PENDING, got %s", policy.Status)
	}
	if len(policy.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(policy.History))
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	// One created event plus two status-changed events.
	if len(pending) != 3 {
		t.Fatalf("expected 3 outbox rows, got %d", len(pending))
	}
	if pending[0].EventType != lifecycle.TopicPolicyCreated {
		t.Fatalf("expected created event first, got %s", pending[0].EventType)
	}
}

func TestCreatePolicyDeniedByFraudIsRejected(t *testing.T) {
	cmd := validCommand()
	cmd.InsuredAmount = decimal.NewFromInt(80000)
	uc, _, _ := newCreateUseCase(t, stubFraudGateway{classification: "NO_INFO"})

	policy, err := uc.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusRejected {
		t.Fatalf("expected REJECTED, got %s", policy.Status)
	}
	if policy.FinishedAt == nil {
		t.Fatal("rejected policy should be finalized")
	}
}

func TestCreatePolicyUnknownClassificationUsesStrictestTier(t *testing.T) {
	cmd := validCommand()
	cmd.InsuredAmount = decimal.NewFromInt(75000)
	uc, _, _ := newCreateUseCase(t, stubFraudGateway{classification: "SOMETHING_NEW"})

	policy, err := uc.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	// 75000 is exactly the NO_INFO AUTO limit.
	if policy.Status != entities.PolicyStatusPending {
		t.Fatalf("expected PENDING at the NO_INFO limit, got %s", policy.Status)
	}
}

func TestCreatePolicyInvalidInput(t *testing.T) {
	cmd := validCommand()
	cmd.CustomerID = "   "
	uc, store, _ := newCreateUseCase(t, stubFraudGateway{classification: "REGULAR"})

	_, err := uc.Execute(context.Background(), cmd)
	if !errors.Is(err, domainerrors.ErrInvalidPolicyInput) {
		t.Fatalf("expected ErrInvalidPolicyInput, got %v", err)
	}

	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("invalid input wrote %d outbox rows", len(pending))
	}
}

func TestCreatePolicyFraudGatewayFailurePropagates(t *testing.T) {
	gatewayErr := errors.New("classifier timeout")
	uc, store, _ := newCreateUseCase(t, stubFraudGateway{err: gatewayErr})

	_, err := uc.Execute(context.Background(), validCommand())
	if !errors.Is(err, gatewayErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	// The RECEIVED record and its created event survive the failure.
	policy, err := store.GetPolicy(context.Background(), "id-0001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if policy.Status != entities.PolicyStatusReceived {
		t.Fatalf("expected RECEIVED, got %s", policy.Status)
	}
}

func TestCancelPolicy(t *testing.T) {
	uc, store, correlation := newCreateUseCase(t, stubFraudGateway{classification: "REGULAR"})
	created, err := uc.Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cancel := CancelPolicyUseCase{Lifecycle: uc.Lifecycle}
	cancelled, err := cancel.Execute(context.Background(), created.PolicyID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != entities.PolicyStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if correlation.Len() != 0 {
		t.Fatal("cancel should clear the correlation entry")
	}

	stored, err := store.GetPolicy(context.Background(), created.PolicyID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.FinishedAt == nil {
		t.Fatal("cancelled policy should be finalized")
	}
}

func TestCancelPolicyBlankID(t *testing.T) {
	uc, _, _ := newCreateUseCase(t, stubFraudGateway{classification: "REGULAR"})
	cancel := CancelPolicyUseCase{Lifecycle: uc.Lifecycle}

	if _, err := cancel.Execute(context.Background(), "  "); !errors.Is(err, domainerrors.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestCancelApprovedPolicyConflicts(t *testing.T) {
	uc, store, correlation := newCreateUseCase(t, stubFraudGateway{classification: "REGULAR"})
	created, err := uc.Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Date(2026, time.July, 1, 9, 5, 0, 0, time.UTC)
	correlation.MarkPayment(created.PolicyID, now)
	correlation.MarkSubscription(created.PolicyID, now)
	if err := uc.Lifecycle.OnPaymentConfirmed(context.Background(), created.PolicyID); err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	approved, err := store.GetPolicy(context.Background(), created.PolicyID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if approved.Status != entities.PolicyStatusApproved {
		t.Fatalf("expected APPROVED, got %s", approved.Status)
	}

	cancel := CancelPolicyUseCase{Lifecycle: uc.Lifecycle}
	if _, err := cancel.Execute(context.Background(), created.PolicyID); !errors.Is(err, domainerrors.ErrCancelConflict) {
		t.Fatalf("expected ErrCancelConflict, got %v", err)
	}
}
