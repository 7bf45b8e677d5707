package trail

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

const (
	maxAppendAttempts = 3
	baseBackoff       = 1 * time.Second
	maxBackoff        = 10 * time.Second
)

// AppendWithRetry writes the record with bounded retry and exponential
// backoff. The trail is best-effort at the call site: after the final
// attempt fails the error is logged and swallowed, because a trail
// outage must not block or fail the user-facing response.
func AppendWithRetry(ctx context.Context, sink Sink, rec *Record, logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if sink == nil {
		return
	}

	backoff := baseBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				logger.Error("trail append abandoned", "request_id", rec.RequestID, "err", ctx.Err())
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		lastErr = sink.Append(ctx, rec)
		if lastErr == nil {
			return
		}
		logger.Warn("trail append failed", "request_id", rec.RequestID, "attempt", attempt, "err", lastErr)
	}

	logger.Error("trail record dropped after retries", "request_id", rec.RequestID, "err", lastErr)
}
