package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process PendingStore for development and tests.
// Expiry is checked lazily on resolve, which is enough to uphold the
// at-most-one-resolution invariant without a sweeper goroutine.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	txn       *StagedTransaction
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Stage stores the transaction under a fresh UUID.
func (s *MemoryStore) Stage(ctx context.Context, txn *StagedTransaction, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	txn.ID = id
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = memoryItem{txn: txn, expiresAt: s.now().Add(ttl)}
	return id, nil
}

// Resolve fetches and deletes the transaction under one lock, so two
// concurrent resolves of the same identifier cannot both succeed.
func (s *MemoryStore) Resolve(ctx context.Context, id string) (*StagedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.items, id)

	if s.now().After(item.expiresAt) {
		return nil, ErrNotFound
	}
	return item.txn, nil
}
