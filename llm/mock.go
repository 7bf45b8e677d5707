package llm

import (
	"context"
	"fmt"
)

// MockGenerator is a deterministic Generator for development and tests.
// It echoes a canned acknowledgment of the prompt so callers can see
// exactly what reached the downstream side.
type MockGenerator struct {
	// Err, when set, is returned from every call.
	Err error

	// Response, when set, overrides the default canned text.
	Response string
}

// Generate returns the canned response.
func (m *MockGenerator) Generate(ctx context.Context, prompt, systemInstruction string) (*GenerateResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	text := m.Response
	if text == "" {
		text = fmt.Sprintf("[MOCK RESPONSE] Processed request: %s", truncatePrompt(prompt, 80))
	}

	return &GenerateResponse{
		Text:       text,
		TokenCount: estimateTokens(text),
		Metadata:   map[string]interface{}{"provider": "mock"},
	}, nil
}

func truncatePrompt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
