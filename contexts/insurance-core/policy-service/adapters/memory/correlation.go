package memory

import (
	"sync"
	"time"
)

const DefaultCorrelationTTL = 30 * time.Minute

type correlationEntry struct {
	payment      bool
	subscription bool
	lastUpdate   time.Time
}

// CorrelationStore tracks which of the two confirmations have arrived per
// policy. All read-modify-write happens under one mutex, so concurrent marks
// on the same policy never lose each other. Entries are cleared when the saga
// resolves and swept once their last update crosses the TTL.
type CorrelationStore struct {
	mu      sync.Mutex
	entries map[string]correlationEntry
	ttl     time.Duration
}

func NewCorrelationStore(ttl time.Duration) *CorrelationStore {
	if ttl <= 0 {
		ttl = DefaultCorrelationTTL
	}
	return &CorrelationStore{
		entries: make(map[string]correlationEntry),
		ttl:     ttl,
	}
}

func (s *CorrelationStore) MarkPayment(policyID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[policyID]
	entry.payment = true
	entry.lastUpdate = at
	s.entries[policyID] = entry
}

func (s *CorrelationStore) MarkSubscription(policyID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[policyID]
	entry.subscription = true
	entry.lastUpdate = at
	s.entries[policyID] = entry
}

func (s *CorrelationStore) BothDone(policyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[policyID]
	return ok && entry.payment && entry.subscription
}

func (s *CorrelationStore) Clear(policyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, policyID)
}

// EvictExpired removes entries whose last update is older than the TTL and
// returns how many were removed.
func (s *CorrelationStore) EvictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	evicted := 0
	for policyID, entry := range s.entries {
		if entry.lastUpdate.Before(cutoff) {
			delete(s.entries, policyID)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live entries. Diagnostic helper for tests.
func (s *CorrelationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
