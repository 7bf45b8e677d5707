// Package trail provides the durable transaction trail: every processed
// transaction gets exactly one record with verdict, score, and payload
// snapshots. Expired pending transactions never reach this package.
package trail

import (
	"context"
	"time"

	"github.com/bento-labs/sense-go/core"
)

// Record is one completed transaction in the trail. PayloadRaw holds
// the pre-redaction payload and PayloadRedacted the transformed one;
// for clean-path transactions the two are identical.
type Record struct {
	RequestID        string                 `json:"request_id"`
	Timestamp        time.Time              `json:"timestamp"`
	Source           string                 `json:"source"`
	PayloadRaw       interface{}            `json:"payload_raw"`
	PayloadRedacted  interface{}            `json:"payload_redacted"`
	Verdict          core.VerdictKind       `json:"verdict"`
	ComplianceScore  float64                `json:"compliance_score"`
	Reasoning        string                 `json:"reasoning"`
	HasSensitiveData bool                   `json:"has_sensitive_data"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Sink persists trail records. Implementations must be safe for
// concurrent use; Append may be retried by the caller.
type Sink interface {
	Append(ctx context.Context, rec *Record) error
}
