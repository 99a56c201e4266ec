package gatekit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// TestRegistryInitialization tests registry creation with a real database
func TestRegistryInitialization(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	account := uniqueID("test-acct")
	ctx = WithActorID(ctx, owner)

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	// The creator holds the root admin role, which administers itself.
	if !service.HasRole(ctx, account, DefaultAdminRole, owner) {
		t.Error("Creator should hold the root admin role")
	}

	admin, err := service.GetRoleAdmin(ctx, account, DefaultAdminRole)
	if err != nil {
		t.Fatalf("GetRoleAdmin failed: %v", err)
	}
	if admin != DefaultAdminRole {
		t.Errorf("Root admin role should administer itself, got %s", admin)
	}

	// Double initialization fails.
	err = service.InitializeRegistry(ctx, owner, account)
	if !IsAlreadyExists(err) {
		t.Errorf("Expected AlreadyExists on double init, got: %v", err)
	}
}

// TestGrantAndRevokeRole tests the grant/revoke lifecycle
func TestGrantAndRevokeRole(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	target := uniqueID("test-target")
	account := uniqueID("test-acct")
	ctx = WithActorID(ctx, owner)

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	// Roles are created lazily on first grant, administered by the root role.
	if err := service.GrantRole(ctx, owner, account, "operator", target); err != nil {
		t.Fatalf("GrantRole failed: %v", err)
	}
	if !service.HasRole(ctx, account, "operator", target) {
		t.Error("Target should hold the operator role after grant")
	}

	admin, err := service.GetRoleAdmin(ctx, account, "operator")
	if err != nil {
		t.Fatalf("GetRoleAdmin failed: %v", err)
	}
	if admin != DefaultAdminRole {
		t.Errorf("Lazily created role should be administered by %s, got %s", DefaultAdminRole, admin)
	}

	// Re-granting an active membership is a no-op.
	if err := service.GrantRole(ctx, owner, account, "operator", target); err != nil {
		t.Errorf("Idempotent grant should not fail: %v", err)
	}

	// Revoke tombstones the membership.
	if err := service.RevokeRole(ctx, owner, account, "operator", target); err != nil {
		t.Fatalf("RevokeRole failed: %v", err)
	}
	if service.HasRole(ctx, account, "operator", target) {
		t.Error("Target should not hold the operator role after revoke")
	}

	// Revoking again is a silent no-op.
	if err := service.RevokeRole(ctx, owner, account, "operator", target); err != nil {
		t.Errorf("Revoking an absent membership should be a no-op: %v", err)
	}

	// Re-grant reactivates the tombstoned row.
	if err := service.GrantRole(ctx, owner, account, "operator", target); err != nil {
		t.Fatalf("Re-grant after revoke failed: %v", err)
	}
	if !service.HasRole(ctx, account, "operator", target) {
		t.Error("Target should hold the operator role after re-grant")
	}
}

// TestGrantRoleRequiresAdmin tests the admin gate on grants
func TestGrantRoleRequiresAdmin(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	outsider := uniqueID("test-outsider")
	target := uniqueID("test-target")
	account := uniqueID("test-acct")
	ctx = WithActorID(ctx, outsider)

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	err = service.GrantRole(ctx, outsider, account, "operator", target)
	if !IsPermissionDenied(err) {
		t.Errorf("Expected PermissionDenied for non-admin grant, got: %v", err)
	}
	if service.HasRole(ctx, account, "operator", target) {
		t.Error("Denied grant must not create a membership")
	}

	err = service.RevokeRole(ctx, outsider, account, DefaultAdminRole, owner)
	if !IsPermissionDenied(err) {
		t.Errorf("Expected PermissionDenied for non-admin revoke, got: %v", err)
	}
}

// TestRenounceRole tests self-removal with confirmation
func TestRenounceRole(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	member := uniqueID("test-member")
	account := uniqueID("test-acct")
	ctx = WithActorID(ctx, owner)

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	if err := service.GrantRole(ctx, owner, account, "operator", member); err != nil {
		t.Fatalf("GrantRole failed: %v", err)
	}

	// Confirmation mismatch fails before touching state.
	err = service.RenounceRole(ctx, member, account, "operator", owner)
	if !IsInvalidArgument(err) {
		t.Errorf("Expected InvalidArgument on confirmation mismatch, got: %v", err)
	}
	if !service.HasRole(ctx, account, "operator", member) {
		t.Error("Failed renounce must not remove the membership")
	}

	// Matching confirmation removes the membership, no admin role needed.
	if err := service.RenounceRole(ctx, member, account, "operator", member); err != nil {
		t.Fatalf("RenounceRole failed: %v", err)
	}
	if service.HasRole(ctx, account, "operator", member) {
		t.Error("Member should not hold the role after renounce")
	}

	// Renouncing an absent membership is a no-op.
	if err := service.RenounceRole(ctx, member, account, "operator", member); err != nil {
		t.Errorf("Renouncing an absent membership should be a no-op: %v", err)
	}
}

// TestSetupRoleAdminChain tests custom admin relations
func TestSetupRoleAdminChain(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	manager := uniqueID("test-manager")
	worker := uniqueID("test-worker")
	account := uniqueID("test-acct")
	ctx = WithActorID(ctx, owner)

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}

	// operator is administered by operator-admin, not the root role.
	if err := service.SetupRole(ctx, owner, account, "operator", "operator-admin"); err != nil {
		t.Fatalf("SetupRole failed: %v", err)
	}

	admin, err := service.GetRoleAdmin(ctx, account, "operator")
	if err != nil {
		t.Fatalf("GetRoleAdmin failed: %v", err)
	}
	if admin != "operator-admin" {
		t.Errorf("Expected operator-admin, got %s", admin)
	}

	// Root admin can grant operator-admin (lazily created, root-administered)
	// but not operator directly.
	if err := service.GrantRole(ctx, owner, account, "operator-admin", manager); err != nil {
		t.Fatalf("GrantRole operator-admin failed: %v", err)
	}

	err = service.GrantRole(ctx, owner, account, "operator", worker)
	if !IsPermissionDenied(err) {
		t.Errorf("Root admin should not grant a role with another admin, got: %v", err)
	}

	// The operator-admin holder can.
	if err := service.GrantRole(ctx, manager, account, "operator", worker); err != nil {
		t.Fatalf("GrantRole by role admin failed: %v", err)
	}
	if !service.HasRole(ctx, account, "operator", worker) {
		t.Error("Worker should hold the operator role")
	}

	// SetupRole requires the root admin role.
	err = service.SetupRole(ctx, manager, account, "another-role", "operator")
	if !IsPermissionDenied(err) {
		t.Errorf("Expected PermissionDenied for non-root SetupRole, got: %v", err)
	}
}

// TestGetIdentityRolesAndChecker tests bulk role retrieval
func TestGetIdentityRolesAndChecker(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	account := uniqueID("test-acct")
	ctx = WithActorID(ctx, owner)

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	if err := service.GrantRole(ctx, owner, account, "operator", owner); err != nil {
		t.Fatalf("GrantRole failed: %v", err)
	}

	roles, err := service.GetIdentityRoles(ctx, account, owner)
	if err != nil {
		t.Fatalf("GetIdentityRoles failed: %v", err)
	}
	if len(roles) != 2 {
		t.Errorf("Expected 2 roles, got %d: %v", len(roles), roles)
	}

	checker, err := service.GetAccountChecker(ctx, account, owner)
	if err != nil {
		t.Fatalf("GetAccountChecker failed: %v", err)
	}
	if !checker.IsAdmin() {
		t.Error("Checker should report the root admin role")
	}
	if !checker.HasRole("operator") {
		t.Error("Checker should report the operator role")
	}
}

// TestRoleAuditTrail tests that role operations write audit rows
func TestRoleAuditTrail(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}

	owner := uniqueID("test-owner")
	target := uniqueID("test-target")
	account := uniqueID("test-acct")
	ctx = WithAuditContext(ctx, AuditContext{
		ActorID:   owner,
		IPAddress: "203.0.113.7",
		RequestID: uniqueID("req"),
	})

	if err := service.InitializeRegistry(ctx, owner, account); err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	if err := service.GrantRole(ctx, owner, account, "operator", target); err != nil {
		t.Fatalf("GrantRole failed: %v", err)
	}
	if err := service.RevokeRole(ctx, owner, account, "operator", target); err != nil {
		t.Fatalf("RevokeRole failed: %v", err)
	}

	entries, err := service.GetAuditLog(ctx, NewAuditLogFilter().WithAccount(account))
	if err != nil {
		t.Fatalf("GetAuditLog failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 audit entries, got %d", len(entries))
	}

	actions := make(map[string]bool)
	for _, e := range entries {
		actions[e.Action] = true
		if e.ActorID != owner {
			t.Errorf("Audit actor should be %s, got %s", owner, e.ActorID)
		}
		if e.IPAddress != "203.0.113.7" {
			t.Errorf("Audit entry should carry the request IP, got %q", e.IPAddress)
		}
	}
	for _, want := range []AuditAction{AuditActionRegistryInitialized, AuditActionRoleGranted, AuditActionRoleRevoked} {
		if !actions[string(want)] {
			t.Errorf("Missing audit action %s", want)
		}
	}
}
