package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bento-labs/sense-go/core"
	"github.com/bento-labs/sense-go/llm"
	"github.com/bento-labs/sense-go/store"
	"github.com/bento-labs/sense-go/trail"
)

// memSink captures trail records for inspection.
type memSink struct {
	mu      sync.Mutex
	records []*trail.Record
}

func (m *memSink) Append(ctx context.Context, rec *trail.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memSink) all() []*trail.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*trail.Record(nil), m.records...)
}

// echoGenerator returns a marker around the prompt it received so tests
// can see exactly what was forwarded downstream.
type echoGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (e *echoGenerator) Generate(ctx context.Context, prompt, systemInstruction string) (*llm.GenerateResponse, error) {
	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.mu.Unlock()
	return &llm.GenerateResponse{Text: "echo: " + prompt, TokenCount: len(prompt) / 4}, nil
}

type staticJudge struct{ output string }

func (j *staticJudge) Judge(ctx context.Context, payload, instruction string) (string, error) {
	return j.output, nil
}

func newTestGateway(judge core.Judge, sink trail.Sink, gen llm.Generator) *Gateway {
	providers := map[string]llm.Generator{}
	if gen != nil {
		providers["test"] = gen
	}
	return New(
		core.NewRedactor(nil, nil, nil),
		core.NewPolicyResolver(nil, nil),
		core.NewAuditor(judge, nil),
		store.NewMemoryStore(),
		llm.NewRouter(providers, nil),
		sink,
		nil,
	)
}

// TestInterceptCleanPayload verifies a payload with no hits flows
// straight through audit and generation
func TestInterceptCleanPayload(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	resp, err := gw.Intercept(context.Background(), "req-1", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "what is the capital of France?"},
		Provider: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Empty(t, resp.TransactionID)
	assert.Equal(t, "echo: what is the capital of France?", resp.Response)
	assert.Equal(t, core.VerdictValid, resp.Verdict.Kind)
	require.NotNil(t, resp.Receipt)
	assert.Equal(t, 0, resp.Receipt.ItemsScrubbed)

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "req-1", recs[0].RequestID)
	assert.False(t, recs[0].HasSensitiveData)
}

// TestInterceptSensitivePayloadPauses verifies detection stages the
// transaction instead of forwarding, and nothing hits the trail yet
func TestInterceptSensitivePayloadPauses(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	resp, err := gw.Intercept(context.Background(), "req-2", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "email me at john@example.com"},
		Provider: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRequiresConfirmation, resp.Status)
	assert.NotEmpty(t, resp.TransactionID)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, core.CategoryEmail, resp.Hits[0].Category)

	// The preview must carry the category placeholder, not a synthetic
	// stand-in value.
	preview, ok := resp.Redacted.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "email me at [EMAIL_REDACTED]", preview["user_query"])

	// Nothing was forwarded and nothing was recorded.
	assert.Empty(t, gen.prompts)
	gw.Flush()
	assert.Empty(t, sink.all())
}

// TestConfirmSafeForwardsRedacted verifies the SAFE choice forwards the
// redacted payload and records the scrub count
func TestConfirmSafeForwardsRedacted(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	paused, err := gw.Intercept(context.Background(), "req-3", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "email me at john@example.com"},
		Provider: "test",
	})
	require.NoError(t, err)

	resp, err := gw.Confirm(context.Background(), &ConfirmRequest{
		TransactionID: paused.TransactionID,
		Choice:        ChoiceSafe,
		Provider:      "test",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, resp.Status)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "email me at [EMAIL_REDACTED]", gen.prompts[0])

	require.NotNil(t, resp.Receipt)
	assert.Equal(t, 1, resp.Receipt.ItemsScrubbed)
	assert.Equal(t, []core.Category{core.CategoryEmail}, resp.Receipt.Categories)
	assert.Equal(t, "manual-override", resp.Receipt.ProfileName)
	assert.NotEmpty(t, resp.Receipt.Engine)
	assert.False(t, resp.Receipt.Bypassed)

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].HasSensitiveData)
	require.NotNil(t, recs[0].Metadata)
	assert.NotContains(t, recs[0].Metadata, "protection_bypassed")
}

// TestConfirmOriginalBypasses verifies the ORIGINAL choice forwards the
// raw payload and marks the bypass in the trail
func TestConfirmOriginalBypasses(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	paused, err := gw.Intercept(context.Background(), "req-4", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "email me at john@example.com"},
		Provider: "test",
	})
	require.NoError(t, err)

	resp, err := gw.Confirm(context.Background(), &ConfirmRequest{
		TransactionID: paused.TransactionID,
		Choice:        ChoiceOriginal,
		Provider:      "test",
	})
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "john@example.com")
	assert.True(t, resp.Receipt.Bypassed)
	assert.Equal(t, 0, resp.Receipt.ItemsScrubbed)

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Metadata)
	assert.Equal(t, true, recs[0].Metadata["protection_bypassed"])
}

// TestConfirmIsExactlyOnce verifies the second confirm of the same
// transaction fails and triggers no second forward or record
func TestConfirmIsExactlyOnce(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	paused, err := gw.Intercept(context.Background(), "req-5", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "ssn 123-45-6789"},
		Provider: "test",
	})
	require.NoError(t, err)

	_, err = gw.Confirm(context.Background(), &ConfirmRequest{
		TransactionID: paused.TransactionID,
		Choice:        ChoiceSafe,
		Provider:      "test",
	})
	require.NoError(t, err)

	_, err = gw.Confirm(context.Background(), &ConfirmRequest{
		TransactionID: paused.TransactionID,
		Choice:        ChoiceOriginal,
		Provider:      "test",
	})
	assert.ErrorIs(t, err, ErrNotResolvable)

	assert.Len(t, gen.prompts, 1)
	gw.Flush()
	assert.Len(t, sink.all(), 1)
}

// TestConfirmCancelChoice verifies CANCEL leaves a cancelled trail
// record and forwards nothing
func TestConfirmCancelChoice(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	paused, err := gw.Intercept(context.Background(), "req-6", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "ssn 123-45-6789"},
		Provider: "test",
	})
	require.NoError(t, err)

	resp, err := gw.Confirm(context.Background(), &ConfirmRequest{
		TransactionID: paused.TransactionID,
		Choice:        ChoiceCancel,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, resp.Status)
	assert.Equal(t, core.VerdictCancelled, resp.Verdict.Kind)
	assert.Empty(t, gen.prompts)

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerdictCancelled, recs[0].Verdict)
	assert.Equal(t, 0.0, recs[0].ComplianceScore)
}

func TestCancelEndpoint(t *testing.T) {
	sink := &memSink{}
	gw := newTestGateway(nil, sink, &echoGenerator{})

	paused, err := gw.Intercept(context.Background(), "req-7", &InterceptRequest{
		Payload: map[string]interface{}{"user_query": "ssn 123-45-6789"},
	})
	require.NoError(t, err)

	resp, err := gw.Cancel(context.Background(), &CancelRequest{TransactionID: paused.TransactionID})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, resp.Status)

	// Cancelling again fails the same way an unknown id does.
	_, err = gw.Cancel(context.Background(), &CancelRequest{TransactionID: paused.TransactionID})
	assert.ErrorIs(t, err, ErrNotResolvable)
}

// TestRejectedVerdictBlocksGeneration verifies a REJECTED audit stops
// the flow before the downstream call
func TestRejectedVerdictBlocksGeneration(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	judge := &staticJudge{output: `{"verdict": "REJECTED", "compliance_score": 0.0, "reasoning": "Policy violation."}`}
	gw := newTestGateway(judge, sink, gen)

	resp, err := gw.Intercept(context.Background(), "req-8", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "something the policy forbids"},
		Provider: "test",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, resp.Status)
	assert.Equal(t, core.VerdictRejected, resp.Verdict.Kind)
	assert.Empty(t, gen.prompts)
	assert.Contains(t, resp.Response, "rejected")

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerdictRejected, recs[0].Verdict)
}

func TestInterceptValidation(t *testing.T) {
	gw := newTestGateway(nil, nil, nil)

	_, err := gw.Intercept(context.Background(), "", &InterceptRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = gw.Confirm(context.Background(), &ConfirmRequest{TransactionID: "x", Choice: "MAYBE"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = gw.Confirm(context.Background(), &ConfirmRequest{Choice: ChoiceSafe})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = gw.Cancel(context.Background(), &CancelRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = gw.ScanText(context.Background(), "", "", "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestScanText(t *testing.T) {
	gw := newTestGateway(nil, nil, nil)

	res, err := gw.ScanText(context.Background(), "my ssn is 123-45-6789", "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "my ssn is [SSN_REDACTED]", res.Redacted)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, core.CategorySSN, res.Hits[0].Category)
	assert.True(t, res.EntityDegraded)
}

// TestInterceptPreviewUsesPlaceholders verifies the staged preview uses
// the bracketed category placeholder for every rewritten span
func TestInterceptPreviewUsesPlaceholders(t *testing.T) {
	gw := newTestGateway(nil, nil, nil)

	resp, err := gw.Intercept(context.Background(), "req-10", &InterceptRequest{
		Payload: map[string]interface{}{"message": "my email is a@b.com"},
	})
	require.NoError(t, err)

	require.Equal(t, StatusRequiresConfirmation, resp.Status)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, core.CategoryEmail, resp.Hits[0].Category)

	preview, ok := resp.Redacted.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "my email is [EMAIL_REDACTED]", preview["message"])
}

// TestTrailRecordsTokenCount verifies the downstream usage lands in the
// trail record metadata, with an estimate when no generation happened
func TestTrailRecordsTokenCount(t *testing.T) {
	sink := &memSink{}
	gen := &echoGenerator{}
	gw := newTestGateway(nil, sink, gen)

	_, err := gw.Intercept(context.Background(), "req-11", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "what is the capital of France?"},
		Provider: "test",
	})
	require.NoError(t, err)

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Metadata)
	assert.Equal(t, len("what is the capital of France?")/4, recs[0].Metadata["token_count"])

	// A rejected transaction never reaches generation; the count is
	// estimated from the forwarded payload instead.
	judge := &staticJudge{output: `{"verdict": "REJECTED", "compliance_score": 0.0, "reasoning": "no"}`}
	rejSink := &memSink{}
	rejGW := newTestGateway(judge, rejSink, gen)

	_, err = rejGW.Intercept(context.Background(), "req-12", &InterceptRequest{
		Payload:  map[string]interface{}{"user_query": "forbidden topic"},
		Provider: "test",
	})
	require.NoError(t, err)

	rejGW.Flush()
	rejRecs := rejSink.all()
	require.Len(t, rejRecs, 1)
	require.NotNil(t, rejRecs[0].Metadata)
	count, ok := rejRecs[0].Metadata["token_count"].(int)
	require.True(t, ok)
	assert.Greater(t, count, 0)
}

// TestConversationIDCarriedToTrail verifies correlation metadata
// survives the stage-and-confirm round trip into the trail record
func TestConversationIDCarriedToTrail(t *testing.T) {
	sink := &memSink{}
	gw := newTestGateway(nil, sink, &echoGenerator{})

	paused, err := gw.Intercept(context.Background(), "req-9", &InterceptRequest{
		Payload:        map[string]interface{}{"user_query": "ssn 123-45-6789"},
		ConversationID: "conv-42",
	})
	require.NoError(t, err)

	_, err = gw.Confirm(context.Background(), &ConfirmRequest{
		TransactionID: paused.TransactionID,
		Choice:        ChoiceSafe,
	})
	require.NoError(t, err)

	gw.Flush()
	recs := sink.all()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Metadata)
	assert.Equal(t, "conv-42", recs[0].Metadata["conversation_id"])
}

func TestExtractPrompt(t *testing.T) {
	assert.Equal(t, "plain string", extractPrompt("plain string"))

	assert.Equal(t, "from prompt", extractPrompt(map[string]interface{}{
		"prompt": "from prompt",
		"other":  "ignored",
	}))

	// user_query wins over later keys.
	assert.Equal(t, "from query", extractPrompt(map[string]interface{}{
		"user_query": "from query",
		"prompt":     "from prompt",
	}))

	// No known key falls back to indented JSON.
	out := extractPrompt(map[string]interface{}{"foo": "bar"})
	assert.Contains(t, out, `"foo": "bar"`)
}
