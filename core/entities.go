package core

import "context"

// EntitySpan is one named entity found by the classifier capability:
// a category label and the character offsets of the span within the
// text that was submitted.
type EntitySpan struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
	Start    int      `json:"start_offset"`
	End      int      `json:"end_offset"`
}

// EntityClassifier is the injected named-entity-recognition capability.
// The engine submits already-pattern-redacted text and consumes only the
// returned spans; no NER happens in-process.
type EntityClassifier interface {
	ExtractEntities(ctx context.Context, text string) ([]EntitySpan, error)
}
