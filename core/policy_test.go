package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	override *PolicyOverride
	err      error
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, ownerID, profileID string) (*PolicyOverride, error) {
	return f.override, f.err
}

func boolPtr(v bool) *bool { return &v }

// TestResolveDefaults verifies the safe default enables every category
func TestResolveDefaults(t *testing.T) {
	resolver := NewPolicyResolver(nil, nil)

	policy := resolver.Resolve(context.Background(), "", "", nil)

	assert.Equal(t, "Safe Default", policy.ProfileName)
	for _, cat := range append(append([]Category{}, PatternCategories...), EntityCategories...) {
		assert.True(t, policy.Enabled(cat), "category %s should default to enabled", cat)
	}
	assert.Equal(t, DefaultAuditorInstruction, policy.AuditorInstruction)
}

// TestResolveLayering verifies request override > stored profile > defaults,
// merged per key
func TestResolveLayering(t *testing.T) {
	profiles := &fakeProfiles{override: &PolicyOverride{
		ProfileName: "Work",
		RedactEmail: boolPtr(false),
		RedactPhone: boolPtr(false),
	}}
	resolver := NewPolicyResolver(profiles, nil)

	request := &PolicyOverride{RedactPhone: boolPtr(true)}
	policy := resolver.Resolve(context.Background(), "owner-1", "", request)

	// Request wins for phone, profile wins for email, default for the rest.
	assert.True(t, policy.Phone)
	assert.False(t, policy.Email)
	assert.True(t, policy.SSN)
	assert.Equal(t, "Work", policy.ProfileName)
}

// TestResolveProfileFetchFailure verifies a profile store outage falls
// back to the safe defaults instead of failing the request
func TestResolveProfileFetchFailure(t *testing.T) {
	profiles := &fakeProfiles{err: errors.New("db down")}
	resolver := NewPolicyResolver(profiles, nil)

	policy := resolver.Resolve(context.Background(), "owner-1", "", nil)

	assert.True(t, policy.Email)
	assert.Equal(t, "Safe Default", policy.ProfileName)
}

// TestResolveSynthesizesInstruction verifies a named profile without an
// explicit audit instruction gets one derived from its protections
func TestResolveSynthesizesInstruction(t *testing.T) {
	profiles := &fakeProfiles{override: &PolicyOverride{
		ProfileName: "Healthcare",
		RedactOrg:   boolPtr(false),
	}}
	resolver := NewPolicyResolver(profiles, nil)

	policy := resolver.Resolve(context.Background(), "owner-1", "", nil)

	assert.Contains(t, policy.AuditorInstruction, "Healthcare")
	assert.Contains(t, policy.AuditorInstruction, "email addresses")
}

func TestResolveExplicitInstructionWins(t *testing.T) {
	resolver := NewPolicyResolver(nil, nil)

	request := &PolicyOverride{AuditorInstruction: "Block everything medical."}
	policy := resolver.Resolve(context.Background(), "", "", request)

	assert.Equal(t, "Block everything medical.", policy.AuditorInstruction)
}

func TestPolicyBuilder(t *testing.T) {
	policy := NewPolicyBuilder().
		WithProfileName("Finance").
		WithCategory(CategoryOrg, false).
		WithKeywords("merger", "acquisition").
		WithAuditorInstruction("Protect deal names.").
		Build()

	require.NotNil(t, policy)
	assert.Equal(t, "Finance", policy.ProfileName)
	assert.NotNil(t, policy.RedactOrg)
	assert.False(t, *policy.RedactOrg)
	assert.Equal(t, []string{"merger", "acquisition"}, policy.CustomKeywords)
	assert.Equal(t, "Protect deal names.", policy.AuditorInstruction)
}
