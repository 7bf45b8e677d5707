package core

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultAuditorInstruction is used when neither the request nor the
// stored profile supplies an audit instruction.
const DefaultAuditorInstruction = "You are a strict compliance officer. " +
	"Flag any personally identifiable information (PII), " +
	"financial data, credentials, or sensitive content. " +
	"If valid, return score 1.0."

// PolicyOverride carries optional per-category redaction flags plus
// custom keywords and an audit instruction. A nil flag means "unset":
// the layer below decides. Overrides come from the request body or from
// a stored profile.
type PolicyOverride struct {
	ProfileName string `json:"profile_name,omitempty"`

	RedactEmail       *bool `json:"redact_email,omitempty"`
	RedactPhone       *bool `json:"redact_phone,omitempty"`
	RedactCreditCard  *bool `json:"redact_credit_card,omitempty"`
	RedactSSN         *bool `json:"redact_ssn,omitempty"`
	RedactCredentials *bool `json:"redact_credentials,omitempty"`
	RedactPerson      *bool `json:"redact_person,omitempty"`
	RedactOrg         *bool `json:"redact_org,omitempty"`
	RedactLocation    *bool `json:"redact_gpe,omitempty"`

	CustomKeywords []string `json:"custom_keywords,omitempty"`

	// AuditorInstruction is the free-text policy prompt handed to the
	// compliance judgment capability.
	AuditorInstruction string `json:"auditor_prompt,omitempty"`
}

// EffectivePolicy is the merged, per-category ruleset for one request.
// It is built once by the resolver, immutable afterwards, and owned
// exclusively by the request that built it.
type EffectivePolicy struct {
	ProfileName string

	Email       bool
	Phone       bool
	CreditCard  bool
	SSN         bool
	Credentials bool
	Person      bool
	Org         bool
	Location    bool

	CustomKeywords     []string
	AuditorInstruction string
}

// Enabled reports whether a category is redacted under this policy.
// Custom keywords are matched regardless of per-category flags, so the
// custom category always reports enabled.
func (p *EffectivePolicy) Enabled(cat Category) bool {
	switch cat {
	case CategoryEmail:
		return p.Email
	case CategoryPhone:
		return p.Phone
	case CategoryCreditCard:
		return p.CreditCard
	case CategorySSN:
		return p.SSN
	case CategoryAPIKey:
		return p.Credentials
	case CategoryPerson:
		return p.Person
	case CategoryOrg:
		return p.Org
	case CategoryLocation:
		return p.Location
	case CategoryCustomKeyword:
		return true
	}
	return false
}

// DefaultPolicy returns the safe default: every category enabled.
// Absence of a flag never means "don't redact".
func DefaultPolicy() *EffectivePolicy {
	return &EffectivePolicy{
		ProfileName: "Safe Default",
		Email:       true,
		Phone:       true,
		CreditCard:  true,
		SSN:         true,
		Credentials: true,
		Person:      true,
		Org:         true,
		Location:    true,

		AuditorInstruction: DefaultAuditorInstruction,
	}
}

// ProfileSource fetches a stored policy profile by owner identity.
// profileID selects a named profile; when empty, the owner's active
// profile is returned. A nil override with nil error means "no profile".
type ProfileSource interface {
	FetchProfile(ctx context.Context, ownerID, profileID string) (*PolicyOverride, error)
}

// PolicyResolver merges the caller-supplied override, the stored profile
// and the safe defaults into one effective configuration.
type PolicyResolver struct {
	profiles ProfileSource
	logger   *log.Logger
}

// NewPolicyResolver creates a resolver. profiles may be nil when no
// profile store is wired; resolution then merges override over defaults.
func NewPolicyResolver(profiles ProfileSource, logger *log.Logger) *PolicyResolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PolicyResolver{profiles: profiles, logger: logger}
}

// Resolve builds the effective policy for one request. Layering is
// defaults < stored profile < request override, merged per key: a flag
// the request leaves unset falls through to the profile, then to the
// default of true. Resolve never fails; a profile fetch error logs a
// warning and the defaults stand in (fail-secure).
func (r *PolicyResolver) Resolve(ctx context.Context, ownerID, profileID string, override *PolicyOverride) *EffectivePolicy {
	policy := DefaultPolicy()

	if r.profiles != nil && ownerID != "" {
		profile, err := r.profiles.FetchProfile(ctx, ownerID, profileID)
		switch {
		case err != nil:
			r.logger.Warn("profile fetch failed, using safe defaults",
				"owner_id", ownerID, "profile_id", profileID, "err", err)
		case profile != nil:
			applyOverride(policy, profile)
		}
	}

	if override != nil {
		applyOverride(policy, override)
	}

	if policy.AuditorInstruction == "" || policy.AuditorInstruction == DefaultAuditorInstruction {
		if synthesized := synthesizeInstruction(policy); synthesized != "" {
			policy.AuditorInstruction = synthesized
		}
	}

	return policy
}

// applyOverride overlays the set fields of an override onto a policy.
func applyOverride(p *EffectivePolicy, o *PolicyOverride) {
	if o.ProfileName != "" {
		p.ProfileName = o.ProfileName
	}
	overlay(&p.Email, o.RedactEmail)
	overlay(&p.Phone, o.RedactPhone)
	overlay(&p.CreditCard, o.RedactCreditCard)
	overlay(&p.SSN, o.RedactSSN)
	overlay(&p.Credentials, o.RedactCredentials)
	overlay(&p.Person, o.RedactPerson)
	overlay(&p.Org, o.RedactOrg)
	overlay(&p.Location, o.RedactLocation)
	if len(o.CustomKeywords) > 0 {
		p.CustomKeywords = append([]string(nil), o.CustomKeywords...)
	}
	if o.AuditorInstruction != "" {
		p.AuditorInstruction = o.AuditorInstruction
	}
}

func overlay(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// synthesizeInstruction derives an audit instruction from the enabled
// protections of a named profile, matching what the profile editor shows
// the user. Unnamed default policies keep the default instruction.
func synthesizeInstruction(p *EffectivePolicy) string {
	if p.ProfileName == "" || p.ProfileName == "Safe Default" {
		return ""
	}

	var protections []string
	if p.Email {
		protections = append(protections, "email addresses")
	}
	if p.Phone {
		protections = append(protections, "phone numbers")
	}
	if p.Person {
		protections = append(protections, "personal names")
	}
	if p.CreditCard {
		protections = append(protections, "payment information")
	}
	if p.Location {
		protections = append(protections, "location data")
	}
	if p.Credentials {
		protections = append(protections, "credentials and secrets")
	}

	joined := "all sensitive data"
	if len(protections) > 0 {
		joined = strings.Join(protections, ", ")
	}

	return "You are a compliance officer for the '" + p.ProfileName + "' privacy context. " +
		"Your role is to protect: " + joined + ". " +
		"Analyze the payload and flag any violations. " +
		"If the content is safe, return a compliance score of 1.0."
}
