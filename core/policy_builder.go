package core

// PolicyBuilder provides a fluent interface for assembling a
// PolicyOverride, mainly for callers embedding the gateway as a library.
type PolicyBuilder struct {
	override *PolicyOverride
}

// NewPolicyBuilder creates a new builder with every flag unset.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{override: &PolicyOverride{}}
}

// WithProfileName labels the override.
func (b *PolicyBuilder) WithProfileName(name string) *PolicyBuilder {
	b.override.ProfileName = name
	return b
}

// WithCategory sets the redaction flag for a single category.
func (b *PolicyBuilder) WithCategory(cat Category, redact bool) *PolicyBuilder {
	v := redact
	switch cat {
	case CategoryEmail:
		b.override.RedactEmail = &v
	case CategoryPhone:
		b.override.RedactPhone = &v
	case CategoryCreditCard:
		b.override.RedactCreditCard = &v
	case CategorySSN:
		b.override.RedactSSN = &v
	case CategoryAPIKey:
		b.override.RedactCredentials = &v
	case CategoryPerson:
		b.override.RedactPerson = &v
	case CategoryOrg:
		b.override.RedactOrg = &v
	case CategoryLocation:
		b.override.RedactLocation = &v
	}
	return b
}

// WithKeywords appends custom keywords to the override.
func (b *PolicyBuilder) WithKeywords(keywords ...string) *PolicyBuilder {
	b.override.CustomKeywords = append(b.override.CustomKeywords, keywords...)
	return b
}

// WithAuditorInstruction sets the compliance-judgment instruction.
func (b *PolicyBuilder) WithAuditorInstruction(instruction string) *PolicyBuilder {
	b.override.AuditorInstruction = instruction
	return b
}

// Build returns the assembled override.
func (b *PolicyBuilder) Build() *PolicyOverride {
	return b.override
}
