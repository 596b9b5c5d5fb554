package sqsworker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errDeduplicationStoreClosed = errors.New("deduplication store is closed")

// InMemoryDeduplicationStore remembers processed IDs for the life of the
// process. Listeners in other processes do not see them; use
// PostgresDeduplicationStore when several workers consume one queue.
type InMemoryDeduplicationStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewInMemoryDeduplicationStore() *InMemoryDeduplicationStore {
	return &InMemoryDeduplicationStore{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *InMemoryDeduplicationStore) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.seen == nil {
		return false, errDeduplicationStoreClosed
	}
	_, ok := s.seen[messageID]
	return ok, nil
}

// MarkProcessed keeps the time of the first mark. The queue is not stored,
// message IDs are unique across queues.
func (s *InMemoryDeduplicationStore) MarkProcessed(_ context.Context, messageID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen == nil {
		return errDeduplicationStoreClosed
	}
	if _, ok := s.seen[messageID]; !ok {
		s.seen[messageID] = s.now()
	}
	return nil
}

func (s *InMemoryDeduplicationStore) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen == nil {
		return errDeduplicationStoreClosed
	}
	cutoff := s.now().Add(-olderThan)
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
		}
	}
	return nil
}

// Close drops every recorded ID. The store cannot be used afterwards.
func (s *InMemoryDeduplicationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = nil
	return nil
}
