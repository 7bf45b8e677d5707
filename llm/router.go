package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Router dispatches generation requests to a named provider. It never
// returns an error to the caller: an unknown provider falls back to the
// mock generator and a provider failure is degraded to response text,
// so a downstream outage can never break the interception flow.
type Router struct {
	providers map[string]Generator
	fallback  Generator
	logger    *log.Logger
}

// NewRouter creates a router over the given providers. A nil or empty
// provider map leaves only the mock fallback.
func NewRouter(providers map[string]Generator, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Router{
		providers: providers,
		fallback:  &MockGenerator{},
		logger:    logger,
	}
}

// Generate routes the prompt to the named provider. provider is matched
// case-insensitively; empty or unknown names use the mock fallback.
func (r *Router) Generate(ctx context.Context, provider, prompt, systemInstruction string) *GenerateResponse {
	name := strings.ToLower(strings.TrimSpace(provider))

	gen, ok := r.providers[name]
	if !ok {
		if name != "" && name != "mock" {
			r.logger.Warn("unknown provider, using mock fallback", "provider", provider)
		}
		gen = r.fallback
	}

	resp, err := gen.Generate(ctx, prompt, systemInstruction)
	if err != nil {
		r.logger.Error("provider call failed", "provider", name, "err", err)
		text := fmt.Sprintf("Error processing with %s: %v", displayName(name), err)
		return &GenerateResponse{
			Text:       text,
			TokenCount: 0,
			Metadata:   map[string]interface{}{"provider": name, "error": true},
		}
	}
	return resp
}

func displayName(name string) string {
	if name == "" {
		return "mock"
	}
	return name
}
