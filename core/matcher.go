package core

import (
	"regexp"
	"sort"
	"strings"
)

// Fixed structural detectors. Keys must stay in sync with PatternCategories.
var patternDetectors = map[Category]*regexp.Regexp{
	CategoryEmail:      regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	CategoryPhone:      regexp.MustCompile(`\b(?:\+?1?[-.]?\(?\d{3}\)?[-.]?)?\d{3}[-.]?\d{4}\b`),
	CategoryCreditCard: regexp.MustCompile(`\b(?:\d{4}[- ]?){3}\d{4}\b`),
	CategoryAPIKey:     regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	CategorySSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// Placeholder returns the redact-mode replacement token for a category,
// e.g. [EMAIL_REDACTED].
func Placeholder(cat Category) string {
	return "[" + strings.ToUpper(string(cat)) + "_REDACTED]"
}

// customKeywordPlaceholder is the redact-mode token for custom keywords;
// swap mode uses a generic codename instead of a synthetic pool.
const (
	customKeywordPlaceholder = "[REDACTED]"
	customKeywordSwap        = "PROJECT_X"
)

// PatternPass is the outcome of one pattern-matching pass over a text:
// the hits found and the text with matched spans already rewritten.
type PatternPass struct {
	Rewritten string
	Hits      []Hit
}

// MatchPatterns scans text with the fixed structural detectors (gated by
// the policy's per-category flags) and with the policy's custom keywords
// (always on, case-insensitive). It is a pure function: hits are located
// against the original text, ordered by first-match position, while the
// rewrite is applied pass by pass. A custom keyword and a structural
// pattern may both fire on overlapping text; both hits are recorded.
func MatchPatterns(text string, mode Mode, policy *EffectivePolicy, rules *RuleSet) PatternPass {
	lines := strings.Split(text, "\n")
	working := text

	type located struct {
		hit   Hit
		start int
	}
	var found []located

	record := func(cat Category, value string, start int) {
		line := lineNumber(text, start)
		found = append(found, located{
			hit: Hit{
				Category: cat,
				Value:    value,
				Line:     line,
				Context:  snippetAt(lines, line-1),
			},
			start: start,
		})
	}

	// Custom keywords run first and ignore per-category flags.
	for _, keyword := range policy.CustomKeywords {
		if keyword == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(keyword))
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			record(CategoryCustomKeyword, text[loc[0]:loc[1]], loc[0])
		}
		replacement := customKeywordPlaceholder
		if mode == ModeSwap {
			replacement = customKeywordSwap
		}
		working = re.ReplaceAllStringFunc(working, func(string) string { return replacement })
	}

	for _, cat := range PatternCategories {
		if !policy.Enabled(cat) {
			continue
		}
		re := patternDetectors[cat]
		for _, loc := range re.FindAllStringIndex(text, -1) {
			record(cat, text[loc[0]:loc[1]], loc[0])
		}
		replacement := Placeholder(cat)
		if mode == ModeSwap {
			replacement = rules.Synthetic(cat, text)
		}
		working = re.ReplaceAllStringFunc(working, func(string) string { return replacement })
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })

	pass := PatternPass{Rewritten: working}
	for _, f := range found {
		pass.Hits = append(pass.Hits, f.hit)
	}
	return pass
}
