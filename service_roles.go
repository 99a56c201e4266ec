package gatekit

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE REGISTRY OPERATIONS
// ============================================================================

// InitializeRegistry creates an account's role registry with the creator as
// the sole member of the root admin role. Fails with ErrAlreadyExists if the
// registry was already initialized.
//
// Example:
//
//	err := service.InitializeRegistry(ctx, creatorID, accountID)
func (s *Service) InitializeRegistry(ctx context.Context, creator, account string) error {
	initialized, err := s.registryInitialized(ctx, account)
	if err != nil {
		return err
	}
	if initialized {
		return NewError(ErrAlreadyExists, "registry already initialized").
			WithAccount(account)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		rule := &RoleAdminRule{
			Account:   account,
			Role:      DefaultAdminRole,
			AdminRole: DefaultAdminRole,
		}
		result, err := s.conn(ctx).NewInsert().Model(rule).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateRootAdminRule").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create root admin rule").
				WithAccount(account)
		}

		membership := &RoleMembership{
			Account: account,
			Role:    DefaultAdminRole,
			Member:  creator,
			Active:  true,
		}
		result, err = s.conn(ctx).NewInsert().Model(membership).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateRootMembership").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create root membership").
				WithAccount(account).
				WithIdentity(creator)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{
		ActorID:  creator,
		Action:   AuditActionRegistryInitialized,
		Account:  account,
		TargetID: creator,
		Role:     DefaultAdminRole,
	})

	return nil
}

// HasRole checks if an identity is an active member of a role in an
// account's registry. A missing registry, role, or membership yields false;
// HasRole never aborts.
func (s *Service) HasRole(ctx context.Context, account, role, identity string) bool {
	exists, err := dbkit.Exists[RoleMembership](ctx, s.conn(ctx), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("account = ? AND role = ? AND member = ? AND active", account, role, identity)
	})
	if err != nil {
		return false
	}
	return exists
}

// GetRoleAdmin returns the role that administers the given role. Roles with
// no recorded admin relation default to DefaultAdminRole.
func (s *Service) GetRoleAdmin(ctx context.Context, account, role string) (string, error) {
	var rule RoleAdminRule
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&rule).
		Where("account = ? AND role = ?", account, role).
		Limit(1).Scan(ctx), "GetRoleAdmin").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return DefaultAdminRole, nil
		}
		return "", err
	}
	return rule.AdminRole, nil
}

// GrantRole adds target as a member of a role. The caller must hold the
// role's admin role. The role is created lazily, administered by
// DefaultAdminRole, when no admin relation exists yet. Granting an already
// active membership is a no-op and writes no audit entry.
//
// Example:
//
//	err := service.GrantRole(ctx, adminID, accountID, "operator", targetID)
func (s *Service) GrantRole(ctx context.Context, caller, account, role, target string) error {
	if err := s.requireRoleAdmin(ctx, caller, account, role); err != nil {
		return err
	}

	var granted bool
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.ensureRoleRule(ctx, account, role); err != nil {
			return err
		}

		existing, err := s.findMembership(ctx, account, role, target)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			membership := &RoleMembership{
				Account: account,
				Role:    role,
				Member:  target,
				Active:  true,
			}
			result, err := s.conn(ctx).NewInsert().Model(membership).Exec(ctx)
			if err := dbkit.WithErr(result, err, "CreateRoleMembership").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to create role membership").
					WithAccount(account).
					WithRole(role).
					WithIdentity(target)
			}
			granted = true

		case !existing.Active:
			result, err := s.conn(ctx).NewUpdate().Table("role_memberships").
				Set("active = TRUE").
				Set("updated_at = current_timestamp").
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "ReactivateRoleMembership").Err(); err != nil {
				return NewError(ErrDatabaseError, "failed to reactivate role membership").
					WithAccount(account).
					WithRole(role).
					WithIdentity(target)
			}
			granted = true
		}
		// Active membership already present: idempotent no-op.
		return nil
	})
	if err != nil {
		return err
	}

	if granted {
		s.audit(ctx, &AuditEntry{
			ActorID:  caller,
			Action:   AuditActionRoleGranted,
			Account:  account,
			TargetID: target,
			Role:     role,
		})
	}

	return nil
}

// RevokeRole tombstones target's membership in a role. The caller must hold
// the role's admin role. Revoking an absent or already revoked membership is
// a no-op.
//
// Example:
//
//	err := service.RevokeRole(ctx, adminID, accountID, "operator", targetID)
func (s *Service) RevokeRole(ctx context.Context, caller, account, role, target string) error {
	if err := s.requireRoleAdmin(ctx, caller, account, role); err != nil {
		return err
	}

	revoked, err := s.deactivateMembership(ctx, account, role, target)
	if err != nil {
		return err
	}

	if revoked {
		s.audit(ctx, &AuditEntry{
			ActorID:  caller,
			Action:   AuditActionRoleRevoked,
			Account:  account,
			TargetID: target,
			Role:     role,
		})
	}

	return nil
}

// RenounceRole removes the caller's own membership in a role, without any
// admin check. selfConfirm must equal caller, as an explicit guard against
// renouncing by mistake; a mismatch fails with ErrInvalidArgument.
//
// Example:
//
//	err := service.RenounceRole(ctx, identity, accountID, "operator", identity)
func (s *Service) RenounceRole(ctx context.Context, caller, account, role, selfConfirm string) error {
	if selfConfirm != caller {
		return NewError(ErrInvalidArgument, "can only renounce roles for self").
			WithAccount(account).
			WithRole(role).
			WithIdentity(caller)
	}

	renounced, err := s.deactivateMembership(ctx, account, role, caller)
	if err != nil {
		return err
	}

	if renounced {
		s.audit(ctx, &AuditEntry{
			ActorID:  caller,
			Action:   AuditActionRoleRenounced,
			Account:  account,
			TargetID: caller,
			Role:     role,
		})
	}

	return nil
}

// SetupRole declares the admin relationship for a role, creating or
// replacing its admin rule. The caller must hold the account's root admin
// role. No cycle detection is performed on the admin-role graph.
//
// Example:
//
//	err := service.SetupRole(ctx, rootAdminID, accountID, "operator", "operator-admin")
func (s *Service) SetupRole(ctx context.Context, caller, account, newRole, adminRole string) error {
	if !s.HasRole(ctx, account, DefaultAdminRole, caller) {
		return NewError(ErrPermissionDenied, "caller does not hold the root admin role").
			WithAccount(account).
			WithRole(newRole).
			WithActor(caller)
	}

	rule := &RoleAdminRule{
		Account:   account,
		Role:      newRole,
		AdminRole: adminRole,
	}
	result, err := s.conn(ctx).NewInsert().Model(rule).
		On("CONFLICT (account, role) DO UPDATE").
		Set("admin_role = EXCLUDED.admin_role").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "SetupRoleAdminRule").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to set role admin rule").
			WithAccount(account).
			WithRole(newRole)
	}

	s.audit(ctx, &AuditEntry{
		ActorID: caller,
		Action:  AuditActionRoleSetup,
		Account: account,
		Role:    newRole,
		Metadata: map[string]any{
			"admin_role": adminRole,
		},
	})

	return nil
}

// requireRoleAdmin resolves the role's admin role and checks the caller's
// membership in it.
func (s *Service) requireRoleAdmin(ctx context.Context, caller, account, role string) error {
	adminRole, err := s.GetRoleAdmin(ctx, account, role)
	if err != nil {
		return err
	}
	if !s.HasRole(ctx, account, adminRole, caller) {
		return NewError(ErrPermissionDenied, "caller does not hold the admin role").
			WithAccount(account).
			WithRole(role).
			WithActor(caller)
	}
	return nil
}
