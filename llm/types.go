// Package llm holds the downstream model capability: the generator
// interface, a provider router that degrades failures to response text,
// and the MCP-backed implementation.
package llm

import (
	"context"
	"time"
)

// DefaultSystemInstruction accompanies forwarded user prompts.
const DefaultSystemInstruction = "You are a helpful AI assistant. Please respond to the user's request."

// GenerateResponse contains the response from content generation.
type GenerateResponse struct {
	Text       string                 `json:"text"`
	TokenCount int                    `json:"token_count"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Generator is the downstream model capability consumed by the gateway.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (*GenerateResponse, error)
}

// MCPConfig holds configuration for MCP-backed generation.
type MCPConfig struct {
	ToolName     string                 // The MCP tool name to call
	Model        string                 // Model name (e.g., "gpt-4", "claude-3")
	Temperature  float64                // Controls randomness (0.0-1.0)
	MaxTokens    int                    // Maximum tokens to generate
	ExtraParams  map[string]interface{} // Any additional model parameters
	Timeout      time.Duration          // Context timeout for calls
	RetryCount   int                    // Number of retries on failure
	RetryBackoff time.Duration          // Backoff duration between retries
}

// estimateTokens approximates token usage when the upstream reports none.
func estimateTokens(text string) int {
	return len(text) / 4
}
