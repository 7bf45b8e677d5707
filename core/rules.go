package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet holds the tunable detection heuristics: the public-entity
// whitelist, the personal-context trigger phrases, and the synthetic
// value pools used by swap mode. A RuleSet is immutable after load.
type RuleSet struct {
	// PublicWhitelist lists well-known entities (brands, cities, public
	// figures) that are not redacted unless personal context is detected.
	PublicWhitelist []string `yaml:"public_whitelist"`

	// PersonalTriggers are phrases that, when found in the 50 characters
	// before a candidate entity, mark the mention as personal context.
	PersonalTriggers []string `yaml:"personal_triggers"`

	// SyntheticPools maps a category to its pool of synthetic replacements.
	SyntheticPools map[string][]string `yaml:"synthetic_pools"`

	whitelist map[string]bool
	triggers  []string
}

// DefaultRuleSet returns the built-in heuristics.
func DefaultRuleSet() *RuleSet {
	rs := &RuleSet{
		PublicWhitelist: []string{
			"madrid", "london", "paris", "new york", "mumbai", "tokyo", "berlin",
			"google", "apple", "microsoft", "amazon", "meta", "nvidia",
			"python", "javascript", "react", "nextjs",
			"elon musk", "bill gates", "steve jobs", "narendra modi", "openai", "groq", "bento",
		},
		PersonalTriggers: []string{
			"my", "live", "living", "staying", "home", "house", "address",
			"born", "from", "born in", "stay at", "stay in", "call me", "name is",
			"reside", "apartment", "landmark", "work at", "office", "desk",
		},
		SyntheticPools: map[string][]string{
			string(CategoryPerson):     {"Alex", "Jordan", "Taylor", "Morgan", "Casey"},
			string(CategoryOrg):        {"Acme Corp", "Globex", "Initech", "Umbrella Corp", "Stark Ind"},
			string(CategoryLocation):   {"Springfield", "Gotham", "Metropolis", "Atlantis", "Wakanda"},
			string(CategoryEmail):      {"user@example.com", "contact@sample.org", "info@demo.net"},
			string(CategoryPhone):      {"+1-555-0123", "555-0199", "555-0100"},
			string(CategoryCreditCard): {"4000-0000-0000-0002", "5100-0000-0000-0008"},
			string(CategorySSN):        {"000-00-0000"},
			string(CategoryAPIKey):     {"sk-XXXXXXXXXXXXXXXXXXXX"},
		},
	}
	rs.index()
	return rs
}

// LoadRuleSet reads a YAML rules file and overlays it on the defaults.
// Sections missing from the file keep their built-in values.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var loaded RuleSet
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rs := DefaultRuleSet()
	if len(loaded.PublicWhitelist) > 0 {
		rs.PublicWhitelist = loaded.PublicWhitelist
	}
	if len(loaded.PersonalTriggers) > 0 {
		rs.PersonalTriggers = loaded.PersonalTriggers
	}
	for k, pool := range loaded.SyntheticPools {
		if len(pool) > 0 {
			rs.SyntheticPools[k] = pool
		}
	}
	rs.index()
	return rs, nil
}

func (rs *RuleSet) index() {
	rs.whitelist = make(map[string]bool, len(rs.PublicWhitelist))
	for _, w := range rs.PublicWhitelist {
		rs.whitelist[strings.ToLower(w)] = true
	}
	rs.triggers = make([]string, len(rs.PersonalTriggers))
	for i, t := range rs.PersonalTriggers {
		rs.triggers[i] = strings.ToLower(t)
	}
}

// IsPublic reports whether the exact text (case-insensitive) is on the
// public-entity whitelist.
func (rs *RuleSet) IsPublic(text string) bool {
	return rs.whitelist[strings.ToLower(text)]
}

// HasPersonalTrigger reports whether the prefix contains any personal
// trigger phrase. The caller passes the lowercased window of text
// immediately preceding a candidate match.
func (rs *RuleSet) HasPersonalTrigger(prefix string) bool {
	for _, t := range rs.triggers {
		if strings.Contains(prefix, t) {
			return true
		}
	}
	return false
}

// Synthetic returns the swap replacement for a category. The pick is a
// stable function of the scanned text's length modulo the pool size, so
// the same input always swaps to the same output. Two matches of one
// category in the same text therefore share a replacement; that is a
// known limitation kept for reproducibility.
func (rs *RuleSet) Synthetic(cat Category, scanned string) string {
	pool := rs.SyntheticPools[string(cat)]
	if len(pool) == 0 {
		return "DATA"
	}
	return pool[len(scanned)%len(pool)]
}
