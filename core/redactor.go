package core

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// contextWindow is how many characters before a candidate entity are
// inspected for personal trigger phrases.
const contextWindow = 50

// TextResult is the outcome of redacting one text value.
type TextResult struct {
	// Redacted is the rewritten text.
	Redacted string

	// Hits are all recorded matches, pattern passes first, then entities.
	Hits []Hit

	// EntityDegraded reports that entity classification did not run,
	// either because no classifier is wired or because the capability
	// failed. Pattern results are still complete.
	EntityDegraded bool
}

// Result is the outcome of redacting a structured payload.
type Result struct {
	Value          interface{}
	Hits           []Hit
	EntityDegraded bool
}

// Redactor decides, for every candidate hit, whether it is actually
// redacted and with which replacement. It combines the pattern matcher
// with the entity classifier capability and applies whitelist and
// personal-context heuristics to suppress likely false positives.
type Redactor struct {
	rules      *RuleSet
	classifier EntityClassifier
	logger     *log.Logger
}

// NewRedactor creates a redaction engine. classifier may be nil; the
// engine then runs in pattern-only degraded mode.
func NewRedactor(rules *RuleSet, classifier EntityClassifier, logger *log.Logger) *Redactor {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Redactor{rules: rules, classifier: classifier, logger: logger}
}

// RedactText scans one text value and rewrites every confirmed hit.
// This stage has no failure mode: a classifier error degrades to
// pattern-only results, never to an error.
func (r *Redactor) RedactText(ctx context.Context, text string, mode Mode, policy *EffectivePolicy) *TextResult {
	pass := MatchPatterns(text, mode, policy, r.rules)
	result := &TextResult{Redacted: pass.Rewritten, Hits: pass.Hits}

	if r.classifier == nil {
		result.EntityDegraded = true
		return result
	}

	spans, err := r.classifier.ExtractEntities(ctx, result.Redacted)
	if err != nil {
		r.logger.Warn("entity classifier unavailable, pattern-only redaction", "err", err)
		result.EntityDegraded = true
		return result
	}

	result.Redacted, result.Hits = r.applyEntities(result.Redacted, text, mode, policy, spans, result.Hits)
	return result
}

// applyEntities filters candidate entity spans through the context
// heuristics and rewrites the survivors. Spans are applied back to
// front so earlier offsets stay valid during replacement.
func (r *Redactor) applyEntities(working, original string, mode Mode, policy *EffectivePolicy, spans []EntitySpan, hits []Hit) (string, []Hit) {
	lines := strings.Split(working, "\n")

	ordered := append([]EntitySpan(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for _, span := range ordered {
		if !isEntityCategory(span.Category) || !policy.Enabled(span.Category) {
			continue
		}
		if span.Start < 0 || span.End > len(working) || span.Start >= span.End {
			continue
		}

		lo := span.Start - contextWindow
		if lo < 0 {
			lo = 0
		}
		personal := r.rules.HasPersonalTrigger(strings.ToLower(working[lo:span.Start]))

		// Known public entities stay untouched outside personal context.
		if r.rules.IsPublic(span.Text) && !personal {
			continue
		}

		// Locations are lower risk: only redacted in personal context.
		if span.Category == CategoryLocation && !personal {
			continue
		}

		line := lineNumber(working, span.Start)
		hits = append(hits, Hit{
			Category: span.Category,
			Value:    span.Text,
			Line:     line,
			Context:  snippetAt(lines, line-1),
		})

		replacement := Placeholder(span.Category)
		if mode == ModeSwap {
			replacement = r.rules.Synthetic(span.Category, original)
		}
		working = working[:span.Start] + replacement + working[span.End:]
	}

	return working, hits
}

// RedactValue recursively redacts a structured payload: every
// string-valued leaf is scanned independently, hits are unioned across
// leaves, and the structure is rebuilt with redacted leaves. Non-string
// leaves pass through unchanged.
func (r *Redactor) RedactValue(ctx context.Context, value interface{}, mode Mode, policy *EffectivePolicy) *Result {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		res := &Result{Value: out}
		for k, child := range v {
			childRes := r.RedactValue(ctx, child, mode, policy)
			out[k] = childRes.Value
			res.Hits = append(res.Hits, childRes.Hits...)
			res.EntityDegraded = res.EntityDegraded || childRes.EntityDegraded
		}
		return res

	case []interface{}:
		out := make([]interface{}, len(v))
		res := &Result{Value: out}
		for i, child := range v {
			childRes := r.RedactValue(ctx, child, mode, policy)
			out[i] = childRes.Value
			res.Hits = append(res.Hits, childRes.Hits...)
			res.EntityDegraded = res.EntityDegraded || childRes.EntityDegraded
		}
		return res

	case string:
		tr := r.RedactText(ctx, v, mode, policy)
		return &Result{Value: tr.Redacted, Hits: tr.Hits, EntityDegraded: tr.EntityDegraded}

	default:
		return &Result{Value: value}
	}
}

func isEntityCategory(cat Category) bool {
	for _, c := range EntityCategories {
		if c == cat {
			return true
		}
	}
	return false
}
