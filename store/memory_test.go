package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreStageAndResolve(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Stage(ctx, &StagedTransaction{
		Original:  "raw text",
		Redacted:  "clean text",
		RequestID: "req-1",
	}, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	txn, err := s.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, txn.ID)
	assert.Equal(t, "raw text", txn.Original)
	assert.Equal(t, "req-1", txn.RequestID)
	assert.False(t, txn.CreatedAt.IsZero())
}

// TestMemoryStoreResolveOnce verifies the second resolve of the same
// identifier fails, which is what makes double-confirm impossible
func TestMemoryStoreResolveOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Stage(ctx, &StagedTransaction{Original: "x"}, time.Minute)
	require.NoError(t, err)

	_, err = s.Resolve(ctx, id)
	require.NoError(t, err)

	_, err = s.Resolve(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUnknownID(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Resolve(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStoreExpiry verifies an expired transaction resolves as
// not-found, indistinguishable from one that never existed
func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	id, err := s.Stage(ctx, &StagedTransaction{Original: "x"}, PendingTTL)
	require.NoError(t, err)

	// Just inside the window.
	now = now.Add(PendingTTL - time.Second)
	_, err = s.Resolve(ctx, id)
	require.NoError(t, err)

	id2, err := s.Stage(ctx, &StagedTransaction{Original: "y"}, PendingTTL)
	require.NoError(t, err)

	// Just past the window.
	now = now.Add(PendingTTL + time.Second)
	_, err = s.Resolve(ctx, id2)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStoreConcurrentResolve verifies exactly one of many racing
// resolves wins
func TestMemoryStoreConcurrentResolve(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Stage(ctx, &StagedTransaction{Original: "x"}, time.Minute)
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Resolve(ctx, id); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}
