package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/google/uuid"
)

// MCPGenerator forwards prompts to a downstream model behind an MCP
// server, with retry and exponential backoff on transient failures.
type MCPGenerator struct {
	Client *client.StdioMCPClient
	Config MCPConfig

	logger *log.Logger
}

// NewMCPGenerator initializes a generator against the given MCP server.
// serverPath may be empty, in which case the server is discovered from
// the environment.
func NewMCPGenerator(serverPath string, config *MCPConfig, logger *log.Logger) (*MCPGenerator, error) {
	serverConfig, err := GetMCPServerConfig(serverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to configure MCP server: %w", err)
	}

	config = LoadMCPConfig(config)
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	var mcpClient *client.StdioMCPClient
	switch serverConfig.Transport {
	case "stdio":
		// MCP client expects nil or []string for options
		var opts []string
		if len(serverConfig.Options) > 0 {
			opts = make([]string, 0, len(serverConfig.Options))
			for k, v := range serverConfig.Options {
				opts = append(opts, fmt.Sprintf("%s=%v", k, v))
			}
		}
		mcpClient, err = client.NewStdioMCPClient(serverConfig.Path, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP stdio client: %w", err)
		}
	case "http":
		return nil, fmt.Errorf("HTTP transport not currently supported by this implementation")
	default:
		return nil, fmt.Errorf("unsupported MCP transport type: %s", serverConfig.Transport)
	}

	if logger == nil {
		logger = log.New(io.Discard)
	}

	logger.Info("MCP generator initialized", "server", serverConfig.Path, "tool", config.ToolName)

	return &MCPGenerator{
		Client: mcpClient,
		Config: *config,
		logger: logger,
	}, nil
}

// Generate calls the configured MCP tool with retry logic and returns
// the extracted model output.
func (g *MCPGenerator) Generate(ctx context.Context, prompt, systemInstruction string) (*GenerateResponse, error) {
	requestID := uuid.NewString()
	startTime := time.Now()

	if prompt == "" {
		return nil, newGenerateError(ErrorCategoryValidation, fmt.Errorf("prompt must not be empty"), requestID)
	}
	if systemInstruction == "" {
		systemInstruction = DefaultSystemInstruction
	}

	modelParams := map[string]interface{}{
		"model":       g.Config.Model,
		"temperature": g.Config.Temperature,
		"max_tokens":  g.Config.MaxTokens,
		"request_id":  requestID,
		"system":      systemInstruction,
		"prompt":      prompt,
	}
	for k, v := range g.Config.ExtraParams {
		modelParams[k] = v
	}

	callCtx, cancel := context.WithTimeout(ctx, g.Config.Timeout)
	defer cancel()

	request := mcp.CallToolRequest{}
	request.Params.Name = g.Config.ToolName
	request.Params.Arguments = modelParams

	var result *mcp.CallToolResult
	var err error
	var lastError error

	for attempt := 0; attempt <= g.Config.RetryCount; attempt++ {
		if attempt > 0 {
			// Wait before retry with exponential backoff
			backoffTime := g.Config.RetryBackoff * time.Duration(1<<(attempt-1))
			time.Sleep(backoffTime)
			g.logger.Debug("retrying generate call",
				"request_id", requestID,
				"attempt", attempt,
				"backoff_ms", backoffTime.Milliseconds(),
				"previous_error", lastError)
		}

		result, err = g.Client.CallTool(callCtx, request)
		lastError = err

		if err == nil {
			break
		}

		// Don't retry if context is done
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, newGenerateError(ErrorCategoryTimeout,
				fmt.Errorf("generate call timeout or canceled: %w", err), requestID)
		}
	}

	if err != nil {
		return nil, newGenerateError(categorizeError(err),
			fmt.Errorf("generate call failed after %d attempts: %w", g.Config.RetryCount+1, err), requestID)
	}

	response, err := processGenerateResult(result, requestID)
	if err != nil {
		return nil, newGenerateError(ErrorCategoryModel,
			fmt.Errorf("error processing generate result: %w", err), requestID)
	}

	g.logger.Debug("generate call complete",
		"request_id", requestID,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"output_chars", len(response.Text))

	return response, nil
}

// processGenerateResult extracts and processes result from MCP response
func processGenerateResult(result *mcp.CallToolResult, requestID string) (*GenerateResponse, error) {
	if result.IsError {
		return nil, fmt.Errorf("MCP tool returned an error: %v", result.Result)
	}

	outputStr := ""
	var metadata map[string]interface{}

	if len(result.Content) > 0 {
		for _, content := range result.Content {
			if textContent, ok := content.(mcp.TextContent); ok {
				outputStr += textContent.Text
			}
		}
	}

	if outputStr == "" {
		// Try to extract from result field
		resultJSON, err := json.Marshal(result.Result)
		if err != nil {
			return nil, err
		}

		var outputObj map[string]interface{}
		if err := json.Unmarshal(resultJSON, &outputObj); err == nil {
			// Check for different response formats
			if output, ok := outputObj["output"]; ok {
				outputStr = stringifyField(output)
			} else if content, ok := outputObj["content"]; ok {
				outputStr = stringifyField(content)
			} else if text, ok := outputObj["text"]; ok {
				outputStr = stringifyField(text)
			} else {
				outputStr = string(resultJSON)
			}

			if meta, ok := outputObj["metadata"]; ok {
				if metaMap, ok := meta.(map[string]interface{}); ok {
					metadata = metaMap
				}
			}
		} else {
			outputStr = string(resultJSON)
		}
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["request_id"] = requestID

	return &GenerateResponse{
		Text:       outputStr,
		TokenCount: estimateTokens(outputStr),
		Metadata:   metadata,
	}, nil
}

func stringifyField(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
