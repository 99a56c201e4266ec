package gatekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCheckerNewChecker tests the checker constructor
func TestCheckerNewChecker(t *testing.T) {
	caps := []CapabilityRecord{
		{Account: "acct-1", Kind: "asset-transfer", GrantedBy: "acct-root", CanDelegate: true},
	}
	checker := NewChecker("id-1", "acct-1", []string{"operator", "auditor"}, caps)

	assert.Equal(t, "id-1", checker.Identity())
	assert.Equal(t, "acct-1", checker.Account())
	assert.False(t, checker.IsEmpty())
}

// TestCheckerHasRole tests role membership checks
func TestCheckerHasRole(t *testing.T) {
	checker := NewChecker("id-1", "acct-1", []string{"operator"}, nil)

	assert.True(t, checker.HasRole("operator"))
	assert.False(t, checker.HasRole("auditor"))
	assert.False(t, checker.HasRole(DefaultAdminRole))
}

// TestCheckerHasAnyRole tests checking for any of multiple roles
func TestCheckerHasAnyRole(t *testing.T) {
	checker := NewChecker("id-1", "acct-1", []string{"operator", "auditor"}, nil)

	assert.True(t, checker.HasAnyRole("operator"))
	assert.True(t, checker.HasAnyRole("missing", "auditor"))
	assert.False(t, checker.HasAnyRole("missing", "absent"))
	assert.False(t, checker.HasAnyRole())
}

// TestCheckerHasAllRoles tests checking for all of multiple roles
func TestCheckerHasAllRoles(t *testing.T) {
	checker := NewChecker("id-1", "acct-1", []string{"operator", "auditor"}, nil)

	assert.True(t, checker.HasAllRoles("operator", "auditor"))
	assert.False(t, checker.HasAllRoles("operator", "missing"))
	assert.True(t, checker.HasAllRoles())
}

// TestCheckerIsAdmin tests root admin role detection
func TestCheckerIsAdmin(t *testing.T) {
	admin := NewChecker("id-1", "acct-1", []string{DefaultAdminRole}, nil)
	assert.True(t, admin.IsAdmin())

	plain := NewChecker("id-2", "acct-1", []string{"operator"}, nil)
	assert.False(t, plain.IsAdmin())
}

// TestCheckerRoles tests the role listing
func TestCheckerRoles(t *testing.T) {
	checker := NewChecker("id-1", "acct-1", []string{"operator", "auditor"}, nil)
	assert.ElementsMatch(t, []string{"operator", "auditor"}, checker.Roles())
}

// TestCheckerCapabilities tests capability lookups
func TestCheckerCapabilities(t *testing.T) {
	caps := []CapabilityRecord{
		{Account: "acct-1", Kind: "asset-transfer", GrantedBy: "acct-root", CanDelegate: true},
		{Account: "acct-1", Kind: "asset-mint", GrantedBy: "acct-root", CanDelegate: false,
			DelegationChain: []string{"acct-root", "acct-mid"}},
	}
	checker := NewChecker("id-1", "acct-1", nil, caps)

	assert.True(t, checker.HasCapability("asset-transfer"))
	assert.True(t, checker.HasCapability("asset-mint"))
	assert.False(t, checker.HasCapability("config-write"))

	assert.True(t, checker.CanDelegate("asset-transfer"))
	assert.False(t, checker.CanDelegate("asset-mint"))
	assert.False(t, checker.CanDelegate("config-write"))

	rec := checker.Capability("asset-transfer")
	assert.NotNil(t, rec)
	assert.Equal(t, "acct-root", rec.GrantedBy)
	assert.Nil(t, checker.Capability("config-write"))
}

// TestCheckerDelegationChain tests provenance chain access
func TestCheckerDelegationChain(t *testing.T) {
	caps := []CapabilityRecord{
		{Account: "acct-1", Kind: "asset-mint",
			DelegationChain: []string{"acct-root", "acct-mid"}},
		{Account: "acct-1", Kind: "asset-transfer"},
	}
	checker := NewChecker("id-1", "acct-1", nil, caps)

	chain := checker.DelegationChain("asset-mint")
	assert.Equal(t, []string{"acct-root", "acct-mid"}, chain)

	// Returned chain is a copy.
	chain[0] = "mutated"
	assert.Equal(t, []string{"acct-root", "acct-mid"}, checker.DelegationChain("asset-mint"))

	assert.Empty(t, checker.DelegationChain("asset-transfer"))
	assert.Nil(t, checker.DelegationChain("config-write"))
}

// TestCheckerIsEmpty tests the empty snapshot check
func TestCheckerIsEmpty(t *testing.T) {
	assert.True(t, NewChecker("id-1", "acct-1", nil, nil).IsEmpty())
	assert.False(t, NewChecker("id-1", "acct-1", []string{"operator"}, nil).IsEmpty())
	assert.False(t, NewChecker("id-1", "acct-1", nil, []CapabilityRecord{{Kind: "asset-mint"}}).IsEmpty())
}
