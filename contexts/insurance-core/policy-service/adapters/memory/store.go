package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"meridian/contexts/insurance-core/policy-service/domain/entities"
	domainerrors "meridian/contexts/insurance-core/policy-service/domain/errors"
	"meridian/internal/shared/outbox"
)

type outboxRecord struct {
	message   outbox.Message
	published bool
}

// Store is the in-memory policy repository plus outbox, used by tests and
// DSN-less local runs.
type Store struct {
	mu sync.RWMutex

	policies map[string]entities.Policy
	outbox   map[string]outboxRecord
}

func NewStore(seed []entities.Policy) *Store {
	policies := make(map[string]entities.Policy, len(seed))
	for _, policy := range seed {
		policies[policy.PolicyID] = policy
	}
	return &Store{
		policies: policies,
		outbox:   make(map[string]outboxRecord),
	}
}

func (s *Store) SavePolicy(_ context.Context, policy entities.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.PolicyID] = policy
	return nil
}

func (s *Store) GetPolicy(_ context.Context, policyID string) (entities.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[policyID]
	if !ok {
		return entities.Policy{}, domainerrors.ErrPolicyNotFound
	}
	return policy, nil
}

func (s *Store) ListPoliciesByCustomer(_ context.Context, customerID string) ([]entities.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entities.Policy
	for _, policy := range s.policies {
		if policy.CustomerID == customerID {
			out = append(out, policy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PolicyID < out[j].PolicyID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AppendOutbox(_ context.Context, msg outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[msg.ID] = outboxRecord{message: msg}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []outbox.Message
	for _, record := range s.outbox {
		if !record.published {
			pending = append(pending, record.message)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	record.message.Status = outbox.StatusPublished
	s.outbox[outboxID] = record
	return nil
}
