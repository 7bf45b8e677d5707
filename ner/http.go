// Package ner provides the entity-classifier adapter that augments
// pattern matching with named-entity recognition from a sidecar model
// service.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bento-labs/sense-go/core"
)

// Client calls an NER sidecar over HTTP. Failures are surfaced as
// errors so the caller can degrade to pattern-only detection.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a classifier client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Entities []struct {
		Label string `json:"label"`
		Text  string `json:"text"`
		Start int    `json:"start_offset"`
		End   int    `json:"end_offset"`
	} `json:"entities"`
}

// ExtractEntities sends the text to the sidecar and maps its labels
// onto detection categories. Labels outside the supported set are
// dropped rather than guessed at.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]core.EntitySpan, error) {
	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build entity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entity classifier unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entity classifier returned status %d", resp.StatusCode)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode entity response: %w", err)
	}

	spans := make([]core.EntitySpan, 0, len(decoded.Entities))
	for _, e := range decoded.Entities {
		cat, ok := mapLabel(e.Label)
		if !ok {
			continue
		}
		spans = append(spans, core.EntitySpan{
			Category: cat,
			Text:     e.Text,
			Start:    e.Start,
			End:      e.End,
		})
	}
	return spans, nil
}

// mapLabel folds classifier labels onto detection categories.
func mapLabel(label string) (core.Category, bool) {
	switch strings.ToUpper(label) {
	case "PERSON", "PER":
		return core.CategoryPerson, true
	case "ORG":
		return core.CategoryOrg, true
	case "GPE", "LOC":
		return core.CategoryLocation, true
	default:
		return "", false
	}
}
