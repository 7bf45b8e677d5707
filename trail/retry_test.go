package trail

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// flakySink fails the first failures calls, then succeeds.
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakySink) Append(ctx context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("sink unavailable")
	}
	return nil
}

func TestAppendWithRetryFirstTrySucceeds(t *testing.T) {
	sink := &flakySink{}

	AppendWithRetry(context.Background(), sink, &Record{RequestID: "req-1"}, nil)

	assert.Equal(t, 1, sink.calls)
}

// TestAppendWithRetryRecovers verifies a transient failure is retried
// and the record still lands
func TestAppendWithRetryRecovers(t *testing.T) {
	sink := &flakySink{failures: 1}

	AppendWithRetry(context.Background(), sink, &Record{RequestID: "req-1"}, nil)

	assert.Equal(t, 2, sink.calls)
}

// TestAppendWithRetryGivesUp verifies the retry budget is bounded; the
// record is dropped after the final attempt rather than blocking forever
func TestAppendWithRetryGivesUp(t *testing.T) {
	sink := &flakySink{failures: 100}

	AppendWithRetry(context.Background(), sink, &Record{RequestID: "req-1"}, nil)

	assert.Equal(t, maxAppendAttempts, sink.calls)
}

func TestAppendWithRetryCancelledContext(t *testing.T) {
	sink := &flakySink{failures: 100}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	AppendWithRetry(ctx, sink, &Record{RequestID: "req-1"}, nil)

	// First attempt runs, the backoff wait observes cancellation.
	assert.Equal(t, 1, sink.calls)
}

func TestAppendWithRetryNilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		AppendWithRetry(context.Background(), nil, &Record{RequestID: "req-1"}, nil)
	})
}
