package core

// Category classifies a sensitivity hit. The fixed set mirrors the
// detection engine: five structural pattern categories, the custom
// keyword category, and three named-entity categories.
type Category string

const (
	// CategoryEmail matches email addresses
	CategoryEmail Category = "email"

	// CategoryPhone matches phone numbers
	CategoryPhone Category = "phone"

	// CategoryCreditCard matches payment card numbers
	CategoryCreditCard Category = "credit_card"

	// CategorySSN matches US Social Security Numbers (government id)
	CategorySSN Category = "ssn"

	// CategoryAPIKey matches credential-looking tokens
	CategoryAPIKey Category = "api_key"

	// CategoryCustomKeyword matches caller-supplied keywords
	CategoryCustomKeyword Category = "custom_keyword"

	// CategoryPerson is a person named entity
	CategoryPerson Category = "person"

	// CategoryOrg is an organization named entity
	CategoryOrg Category = "org"

	// CategoryLocation is a geopolitical/location named entity
	CategoryLocation Category = "gpe"
)

// PatternCategories lists the structural pattern categories in scan order.
// Order matters: rewrites are applied pass by pass in this sequence, so
// detection stays deterministic across runs.
var PatternCategories = []Category{
	CategoryEmail,
	CategoryPhone,
	CategoryCreditCard,
	CategoryAPIKey,
	CategorySSN,
}

// EntityCategories lists the named-entity categories the redaction engine
// accepts from the entity classifier capability.
var EntityCategories = []Category{
	CategoryPerson,
	CategoryOrg,
	CategoryLocation,
}

// Mode selects how matched spans are rewritten.
type Mode string

const (
	// ModeRedact replaces a span with a bracketed placeholder naming its category
	ModeRedact Mode = "redact"

	// ModeSwap replaces a span with a deterministic synthetic value
	ModeSwap Mode = "swap"
)

// Snippet is a ±2-line context window around a matched span.
type Snippet struct {
	Before []string `json:"before"`
	Match  string   `json:"match"`
	After  []string `json:"after"`
}

// Hit is one detected sensitive span. Hits are produced fresh per scan
// and only ever aggregated into responses and audit-trail payloads;
// they are never persisted on their own.
type Hit struct {
	// Category of the detector that fired
	Category Category `json:"type"`

	// Value is the original matched text
	Value string `json:"value"`

	// Line is the 1-indexed line number of the match
	Line int `json:"line_number"`

	// Context is the surrounding snippet
	Context Snippet `json:"context"`
}

// DistinctCategories returns the unique hit categories in first-seen order.
func DistinctCategories(hits []Hit) []Category {
	seen := make(map[Category]bool, len(hits))
	var out []Category
	for _, h := range hits {
		if !seen[h.Category] {
			seen[h.Category] = true
			out = append(out, h.Category)
		}
	}
	return out
}

// lineNumber returns the 1-indexed line of a character offset.
func lineNumber(text string, offset int) int {
	n := 1
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			n++
		}
	}
	return n
}

// snippetAt extracts up to two lines before and after the given line index
// (0-indexed) from the pre-split lines of the scanned text.
func snippetAt(lines []string, lineIdx int) Snippet {
	s := Snippet{}
	lo := lineIdx - 2
	if lo < 0 {
		lo = 0
	}
	s.Before = append(s.Before, lines[lo:lineIdx]...)
	if lineIdx < len(lines) {
		s.Match = lines[lineIdx]
	}
	hi := lineIdx + 3
	if hi > len(lines) {
		hi = len(lines)
	}
	if lineIdx+1 < hi {
		s.After = append(s.After, lines[lineIdx+1:hi]...)
	}
	return s
}
