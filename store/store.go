// Package store provides the ephemeral pending-transaction store that
// holds a paused request between detection and user decision.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bento-labs/sense-go/core"
)

// ErrNotFound is returned when an identifier does not resolve: either it
// never existed, it expired, or it was already resolved once. Callers
// treat all three identically so side effects can never run twice.
var ErrNotFound = errors.New("pending transaction not found")

// PendingTTL is the confirmation window. A staged transaction that is
// not resolved within it silently disappears; the original payload is
// gone and nothing is reconstructed from it.
const PendingTTL = 5 * time.Minute

// StagedTransaction is the ephemeral record of a request paused for a
// human decision. It is immutable once staged: there is no update or
// TTL-extend operation.
type StagedTransaction struct {
	ID string `json:"id"`

	// Original is the unredacted payload. It exists only here, for at
	// most the TTL, and is never written to any durable store.
	Original interface{} `json:"original"`

	// Redacted is the transformed payload.
	Redacted interface{} `json:"redacted"`

	// Hits are the matches that caused the pause.
	Hits []core.Hit `json:"hits"`

	// Instruction is the resolved audit instruction for this request.
	Instruction string `json:"policy_prompt"`

	// Correlation identifiers.
	RequestID      string `json:"request_id"`
	Source         string `json:"source"`
	ConversationID string `json:"conversation_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PendingStore stages transactions awaiting confirmation.
//
// Resolve must be atomic fetch-and-delete at the store level: when two
// confirm calls race on one identifier, exactly one observes the
// transaction and the other observes ErrNotFound.
type PendingStore interface {
	// Stage stores the transaction under a fresh opaque identifier with
	// the given time-to-live and returns the identifier.
	Stage(ctx context.Context, txn *StagedTransaction, ttl time.Duration) (string, error)

	// Resolve fetches and deletes the transaction in one step. Returns
	// ErrNotFound for unknown, expired, or already-resolved identifiers.
	Resolve(ctx context.Context, id string) (*StagedTransaction, error)
}
