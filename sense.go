// Package sense is a privacy-protecting gateway between a client and a
// downstream AI model: it detects sensitive data in requests, pauses
// them for user confirmation, and records an auditable trail of every
// completed transaction.
//
// The root package is a thin convenience facade over the gateway; real
// deployments assemble collaborators explicitly the way
// cmd/sense-gateway does.
package sense

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/bento-labs/sense-go/core"
	"github.com/bento-labs/sense-go/gateway"
	"github.com/bento-labs/sense-go/llm"
	"github.com/bento-labs/sense-go/store"
	"github.com/bento-labs/sense-go/trail"
)

// Options configure the convenience constructor. Zero values select
// in-process defaults: memory store, mock generation, no trail sink,
// pattern-only detection.
type Options struct {
	Rules      *core.RuleSet
	Classifier core.EntityClassifier
	Pending    store.PendingStore
	Providers  map[string]llm.Generator
	Judge      core.Judge
	Sink       trail.Sink
	Logger     *log.Logger
}

// New assembles a gateway from options, substituting safe in-process
// defaults for everything left unset.
func New(opts Options) *gateway.Gateway {
	if opts.Pending == nil {
		opts.Pending = store.NewMemoryStore()
	}

	redactor := core.NewRedactor(opts.Rules, opts.Classifier, opts.Logger)
	resolver := core.NewPolicyResolver(nil, opts.Logger)
	auditor := core.NewAuditor(opts.Judge, opts.Logger)
	router := llm.NewRouter(opts.Providers, opts.Logger)

	return gateway.New(redactor, resolver, auditor, opts.Pending, router, opts.Sink, opts.Logger)
}

// Scan detects and redacts sensitive data in a single text value using
// default rules and policy. Nothing is staged or forwarded.
func Scan(ctx context.Context, text string) (*gateway.ScanResult, error) {
	return New(Options{}).ScanText(ctx, text, "", "", nil)
}
