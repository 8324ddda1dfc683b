package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/internal/shared/outbox"
)

func TestStoreSaveAndGet(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if _, err := store.GetPolicy(ctx, "missing"); !errors.Is(err, domainerrors.ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}

	policy := entities.Policy{PolicyID: "pol-1", CustomerID: "cust-1", Status: entities.PolicyStatusReceived}
	if err := store.SavePolicy(ctx, policy); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.GetPolicy(ctx, "pol-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CustomerID != "cust-1" || got.Status != entities.PolicyStatusReceived {
		t.Fatalf("unexpected policy: %+v", got)
	}
}

func TestStoreListPoliciesByCustomerOrdering(t *testing.T) {
	base := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore([]entities.Policy{
		{PolicyID: "pol-b", CustomerID: "cust-1", CreatedAt: base.Add(time.Hour)},
		{PolicyID: "pol-a", CustomerID: "cust-1", CreatedAt: base},
		{PolicyID: "pol-c", CustomerID: "cust-2", CreatedAt: base},
	})

	got, err := store.ListPoliciesByCustomer(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(got))
	}
	if got[0].PolicyID != "pol-a" || got[1].PolicyID != "pol-b" {
		t.Fatalf("expected creation order pol-a, pol-b; got %s, %s", got[0].PolicyID, got[1].PolicyID)
	}
}

func TestStoreOutboxPendingAndPublish(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	base := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"evt-1", "evt-2", "evt-3"} {
		msg := outbox.Message{
			ID:        id,
			EventType: "policy.status.changed",
			Payload:   []byte(`{}`),
			Status:    outbox.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendOutbox(ctx, msg); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}

	pending, err := store.ListPendingOutbox(ctx, 2)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "evt-1" || pending[1].ID != "evt-2" {
		t.Fatalf("unexpected pending batch: %+v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-1", base.Add(time.Minute)); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("second list failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "evt-2" {
		t.Fatalf("expected evt-2 first after publish, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "missing", base); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for unknown outbox row, got %v", err)
	}
}
