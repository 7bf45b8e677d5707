// Package gateway orchestrates the interception flow: detect, pause,
// confirm or cancel, audit, forward downstream, and record the trail.
package gateway

import (
	"errors"

	"github.com/bento-labs/sense-go/core"
)

// Transaction statuses reported to callers.
const (
	// StatusRequiresConfirmation means the request is paused and staged;
	// nothing was forwarded downstream.
	StatusRequiresConfirmation = "REQUIRES_CONFIRMATION"

	// StatusProcessed means the request completed the full flow.
	StatusProcessed = "processed"

	// StatusCancelled means the user aborted and nothing was forwarded.
	StatusCancelled = "cancelled"
)

// Choice is the user decision resolving a paused transaction.
type Choice string

const (
	// ChoiceSafe forwards the redacted payload
	ChoiceSafe Choice = "SAFE"

	// ChoiceOriginal forwards the unredacted payload (protection bypass)
	ChoiceOriginal Choice = "ORIGINAL"

	// ChoiceCancel aborts the transaction
	ChoiceCancel Choice = "CANCEL"
)

// ErrValidation marks caller mistakes, distinguished from internal
// failures so the surface can map them to a 400.
var ErrValidation = errors.New("invalid request")

// ErrNotResolvable marks a confirm or cancel against an identifier that
// is unknown, expired, or already resolved. The three cases are
// deliberately indistinguishable.
var ErrNotResolvable = errors.New("pending transaction not found or expired")

// InterceptRequest is a client request entering the gateway.
type InterceptRequest struct {
	// Payload is the arbitrary JSON document to inspect and forward.
	Payload interface{} `json:"payload"`

	// Policy optionally overrides stored-profile and default settings.
	Policy *core.PolicyOverride `json:"policy,omitempty"`

	// OwnerID selects whose stored profile applies; ProfileID selects a
	// named profile instead of the owner's active one.
	OwnerID   string `json:"owner_id,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`

	// Provider names the downstream model route.
	Provider string `json:"provider,omitempty"`

	// Source and ConversationID are correlation metadata carried through
	// to the trail.
	Source         string `json:"source,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Receipt summarizes what protection did to a transaction. It
// accompanies every processed response.
type Receipt struct {
	ItemsScrubbed  int             `json:"items_scrubbed"`
	Categories     []core.Category `json:"categories,omitempty"`
	ProfileName    string          `json:"profile_name"`
	Engine         string          `json:"engine"`
	LatencyMS      int64           `json:"latency_ms"`
	EntityDegraded bool            `json:"entity_degraded,omitempty"`
	Bypassed       bool            `json:"bypassed,omitempty"`
}

// InterceptResponse is the gateway's answer to an intercept, confirm,
// or cancel call. Fields are populated per status: a paused response
// carries TransactionID, Hits and the redacted preview; a processed one
// carries the model output and verdict.
type InterceptResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`

	// Pause path.
	TransactionID string      `json:"transaction_id,omitempty"`
	Hits          []core.Hit  `json:"detected,omitempty"`
	Redacted      interface{} `json:"redacted_preview,omitempty"`

	// Completed path.
	Response   string       `json:"response,omitempty"`
	TokenCount int          `json:"token_count,omitempty"`
	Verdict    core.Verdict `json:"audit,omitempty"`
	Receipt    *Receipt     `json:"receipt,omitempty"`
}

// ConfirmRequest resolves a paused transaction with a user decision.
type ConfirmRequest struct {
	TransactionID string `json:"transaction_id"`
	Choice        Choice `json:"choice"`
	Provider      string `json:"provider,omitempty"`
}

// CancelRequest aborts a paused transaction.
type CancelRequest struct {
	TransactionID string `json:"transaction_id"`
}

// ScanResult is the outcome of a standalone scan with no forwarding.
type ScanResult struct {
	Redacted       string     `json:"redacted"`
	Hits           []core.Hit `json:"detected"`
	EntityDegraded bool       `json:"entity_degraded,omitempty"`
}
