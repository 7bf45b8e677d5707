package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bento-labs/sense-go/core"
	"github.com/bento-labs/sense-go/llm"
	"github.com/bento-labs/sense-go/store"
	"github.com/bento-labs/sense-go/trail"
)

// trailTimeout bounds a detached trail append, covering the full retry
// schedule with headroom.
const trailTimeout = 30 * time.Second

// engineLabel names the detection engine on privacy receipts.
const engineLabel = "pattern+ner"

// manualOverrideProfile labels confirm-path receipts, where the user
// decision stands in for a stored profile.
const manualOverrideProfile = "manual-override"

// promptKeys is the field probe order when extracting the text to
// forward from a structured payload.
var promptKeys = []string{"user_query", "prompt", "text", "input", "message", "content"}

// Gateway is the interception orchestrator. All collaborators are
// injected; any of sink, router providers, or the auditor's judgment
// capability may be absent, and the gateway degrades accordingly rather
// than failing requests.
type Gateway struct {
	redactor *core.Redactor
	resolver *core.PolicyResolver
	auditor  *core.Auditor
	pending  store.PendingStore
	router   *llm.Router
	sink     trail.Sink
	logger   *log.Logger

	wg sync.WaitGroup
}

// New assembles a gateway from its collaborators.
func New(redactor *core.Redactor, resolver *core.PolicyResolver, auditor *core.Auditor,
	pending store.PendingStore, router *llm.Router, sink trail.Sink, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gateway{
		redactor: redactor,
		resolver: resolver,
		auditor:  auditor,
		pending:  pending,
		router:   router,
		sink:     sink,
		logger:   logger,
	}
}

// Flush waits for in-flight trail appends to finish. Called on shutdown.
func (g *Gateway) Flush() {
	g.wg.Wait()
}

// Intercept runs detection on an incoming request. A clean payload
// flows straight through audit and generation; a sensitive one is
// staged and the caller must confirm or cancel within the TTL.
func (g *Gateway) Intercept(ctx context.Context, requestID string, req *InterceptRequest) (*InterceptResponse, error) {
	if req == nil || req.Payload == nil {
		return nil, fmt.Errorf("%w: payload is required", ErrValidation)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	startedAt := time.Now()

	policy := g.resolver.Resolve(ctx, req.OwnerID, req.ProfileID, req.Policy)
	result := g.redactor.RedactValue(ctx, req.Payload, core.ModeRedact, policy)

	if len(result.Hits) > 0 {
		txn := &store.StagedTransaction{
			Original:       req.Payload,
			Redacted:       result.Value,
			Hits:           result.Hits,
			Instruction:    policy.AuditorInstruction,
			RequestID:      requestID,
			Source:         req.Source,
			ConversationID: req.ConversationID,
		}
		id, err := g.pending.Stage(ctx, txn, store.PendingTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to stage transaction: %w", err)
		}

		g.logger.Info("request paused for confirmation",
			"request_id", requestID, "transaction_id", id, "hits", len(result.Hits))

		return &InterceptResponse{
			Status:        StatusRequiresConfirmation,
			RequestID:     requestID,
			TransactionID: id,
			Hits:          result.Hits,
			Redacted:      result.Value,
		}, nil
	}

	receipt := &Receipt{
		ItemsScrubbed:  0,
		ProfileName:    policy.ProfileName,
		Engine:         engineLabel,
		EntityDegraded: result.EntityDegraded,
	}
	return g.complete(ctx, completion{
		requestID:      requestID,
		provider:       req.Provider,
		source:         req.Source,
		conversationID: req.ConversationID,
		raw:            req.Payload,
		forward:        req.Payload,
		instruction:    policy.AuditorInstruction,
		sensitive:      false,
		receipt:        receipt,
		startedAt:      startedAt,
	}), nil
}

// Confirm resolves a paused transaction with the user's decision. The
// underlying store resolves each identifier at most once, so replays
// and races both surface as ErrNotResolvable.
func (g *Gateway) Confirm(ctx context.Context, req *ConfirmRequest) (*InterceptResponse, error) {
	if req == nil || req.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", ErrValidation)
	}
	switch req.Choice {
	case ChoiceSafe, ChoiceOriginal, ChoiceCancel:
	default:
		return nil, fmt.Errorf("%w: choice must be SAFE, ORIGINAL, or CANCEL", ErrValidation)
	}
	startedAt := time.Now()

	txn, err := g.pending.Resolve(ctx, req.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotResolvable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve transaction: %w", err)
	}

	if req.Choice == ChoiceCancel {
		return g.abort(ctx, txn, "User cancelled at confirmation."), nil
	}

	forward := txn.Redacted
	receipt := &Receipt{
		ItemsScrubbed: len(txn.Hits),
		Categories:    core.DistinctCategories(txn.Hits),
		ProfileName:   manualOverrideProfile,
		Engine:        engineLabel,
	}
	if req.Choice == ChoiceOriginal {
		forward = txn.Original
		receipt.ItemsScrubbed = 0
		receipt.Bypassed = true
		g.logger.Warn("protection bypassed by user",
			"request_id", txn.RequestID, "transaction_id", txn.ID)
	}

	return g.complete(ctx, completion{
		requestID:      txn.RequestID,
		provider:       req.Provider,
		source:         txn.Source,
		conversationID: txn.ConversationID,
		raw:            txn.Original,
		forward:        forward,
		instruction:    txn.Instruction,
		sensitive:      true,
		bypassed:       req.Choice == ChoiceOriginal,
		receipt:        receipt,
		startedAt:      startedAt,
	}), nil
}

// Cancel aborts a paused transaction without forwarding anything.
func (g *Gateway) Cancel(ctx context.Context, req *CancelRequest) (*InterceptResponse, error) {
	if req == nil || req.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", ErrValidation)
	}

	txn, err := g.pending.Resolve(ctx, req.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotResolvable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve transaction: %w", err)
	}

	return g.abort(ctx, txn, "User aborted the transaction."), nil
}

// ScanText runs standalone detection in redact mode with no staging,
// no audit, and no forwarding. Used for inspecting outbound text.
func (g *Gateway) ScanText(ctx context.Context, text, ownerID, profileID string, override *core.PolicyOverride) (*ScanResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}

	policy := g.resolver.Resolve(ctx, ownerID, profileID, override)
	res := g.redactor.RedactText(ctx, text, core.ModeRedact, policy)
	return &ScanResult{
		Redacted:       res.Redacted,
		Hits:           res.Hits,
		EntityDegraded: res.EntityDegraded,
	}, nil
}

// completion carries everything needed to finish a transaction: audit,
// forward downstream, record the trail, and build the response.
type completion struct {
	requestID      string
	provider       string
	source         string
	conversationID string
	raw            interface{}
	forward        interface{}
	instruction    string
	sensitive      bool
	bypassed       bool
	receipt        *Receipt
	startedAt      time.Time
	tokenCount     int
}

func (g *Gateway) complete(ctx context.Context, c completion) *InterceptResponse {
	verdict := g.auditor.Audit(ctx, c.forward, c.instruction)

	resp := &InterceptResponse{
		Status:    StatusProcessed,
		RequestID: c.requestID,
		Verdict:   verdict,
		Receipt:   c.receipt,
	}

	if verdict.Kind == core.VerdictRejected {
		resp.Response = "Request rejected by compliance audit."
		c.stampLatency()
		g.record(c, verdict)
		return resp
	}

	gen := g.router.Generate(ctx, c.provider, extractPrompt(c.forward), llm.DefaultSystemInstruction)
	resp.Response = gen.Text
	resp.TokenCount = gen.TokenCount
	c.tokenCount = gen.TokenCount

	c.stampLatency()
	g.record(c, verdict)
	return resp
}

func (c *completion) stampLatency() {
	if c.receipt != nil && !c.startedAt.IsZero() {
		c.receipt.LatencyMS = time.Since(c.startedAt).Milliseconds()
	}
}

// abort records the cancelled transaction and returns the terminal
// response. A cancel leaves a trail entry; only expiry is silent.
func (g *Gateway) abort(ctx context.Context, txn *store.StagedTransaction, reason string) *InterceptResponse {
	verdict := core.Verdict{
		Kind:      core.VerdictCancelled,
		Score:     0.0,
		Reasoning: reason,
	}

	g.record(completion{
		requestID:      txn.RequestID,
		source:         txn.Source,
		conversationID: txn.ConversationID,
		raw:            txn.Original,
		forward:        txn.Redacted,
		sensitive:      true,
	}, verdict)

	g.logger.Info("transaction cancelled", "request_id", txn.RequestID, "transaction_id", txn.ID)

	return &InterceptResponse{
		Status:    StatusCancelled,
		RequestID: txn.RequestID,
		Verdict:   verdict,
	}
}

// record writes the trail entry in the background so trail latency and
// outages never delay the response. Flush drains these on shutdown.
func (g *Gateway) record(c completion, verdict core.Verdict) {
	if g.sink == nil {
		return
	}

	rec := &trail.Record{
		RequestID:        c.requestID,
		Timestamp:        time.Now().UTC(),
		Source:           c.source,
		PayloadRaw:       c.raw,
		PayloadRedacted:  c.forward,
		Verdict:          verdict.Kind,
		ComplianceScore:  verdict.Score,
		Reasoning:        verdict.Reasoning,
		HasSensitiveData: c.sensitive,
	}
	rec.Metadata = map[string]interface{}{
		"token_count": tokenCountFor(c),
	}
	if c.bypassed {
		rec.Metadata["protection_bypassed"] = true
	}
	if c.conversationID != "" {
		rec.Metadata["conversation_id"] = c.conversationID
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), trailTimeout)
		defer cancel()
		trail.AppendWithRetry(ctx, g.sink, rec, g.logger)
	}()
}

// tokenCountFor reports the downstream usage for a trail record. When
// no generation happened (rejected or cancelled transactions) the count
// is estimated from the forwarded payload's serialized size.
func tokenCountFor(c completion) int {
	if c.tokenCount > 0 {
		return c.tokenCount
	}
	data, err := json.Marshal(c.forward)
	if err != nil {
		return 0
	}
	return len(data) / 4
}

// extractPrompt pulls the text to forward from a payload: a string is
// used as-is, a map is probed for well-known prompt fields, and
// anything else is forwarded as indented JSON.
func extractPrompt(payload interface{}) string {
	switch v := payload.(type) {
	case string:
		return v
	case map[string]interface{}:
		for _, key := range promptKeys {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
