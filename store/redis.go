package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// pendingKeyPrefix namespaces staged transactions in the shared keyspace.
const pendingKeyPrefix = "pending:"

// RedisStore is the production PendingStore: per-key TTL comes from
// SET EX and atomic fetch-and-delete from GETDEL, so concurrent resolve
// calls race safely inside Redis itself.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client. The client is
// constructed once at process start and passed in by reference.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Stage serializes the transaction and stores it under a fresh UUID.
func (s *RedisStore) Stage(ctx context.Context, txn *StagedTransaction, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	txn.ID = id
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(txn)
	if err != nil {
		return "", fmt.Errorf("failed to serialize staged transaction: %w", err)
	}

	if err := s.client.Set(ctx, pendingKeyPrefix+id, data, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to stage transaction: %w", err)
	}
	return id, nil
}

// Resolve atomically fetches and deletes the transaction.
func (s *RedisStore) Resolve(ctx context.Context, id string) (*StagedTransaction, error) {
	data, err := s.client.GetDel(ctx, pendingKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staged transaction: %w", err)
	}

	var txn StagedTransaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("failed to decode staged transaction: %w", err)
	}
	return &txn, nil
}
