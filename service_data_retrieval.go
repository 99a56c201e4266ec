package gatekit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// DATA RETRIEVAL
// ============================================================================

// GetIdentityRoles retrieves the names of all roles an identity actively
// holds in an account's registry.
func (s *Service) GetIdentityRoles(ctx context.Context, account, identity string) ([]string, error) {
	var roles []string
	err := dbkit.WithErr1(s.conn(ctx).NewRaw(
		"SELECT role FROM role_memberships WHERE account = ? AND member = ? AND active",
		account, identity).Scan(ctx, &roles), "GetIdentityRoles").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return roles, nil
}

// GetRoleMembers retrieves all active members of a role.
func (s *Service) GetRoleMembers(ctx context.Context, account, role string) ([]RoleMembership, error) {
	var memberships []RoleMembership
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&memberships).
		Where("account = ? AND role = ? AND active", account, role).
		Scan(ctx), "GetRoleMembers").Err()
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

// GetAccountCapabilities retrieves all capability records held by an
// account.
func (s *Service) GetAccountCapabilities(ctx context.Context, account string) ([]CapabilityRecord, error) {
	var records []CapabilityRecord
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&records).
		Where("account = ?", account).
		Scan(ctx), "GetAccountCapabilities").Err()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetAccountChecker creates a Checker snapshot of an identity's roles in an
// account and, when the identity is itself an account, its held
// capabilities. This can be stored in context for efficient checks in
// handlers.
func (s *Service) GetAccountChecker(ctx context.Context, account, identity string) (*Checker, error) {
	roles, err := s.GetIdentityRoles(ctx, account, identity)
	if err != nil {
		return nil, err
	}
	caps, err := s.GetAccountCapabilities(ctx, identity)
	if err != nil {
		return nil, err
	}
	return NewChecker(identity, account, roles, caps), nil
}

// GetCheckerFromContext creates a Checker using the identity from context.
func (s *Service) GetCheckerFromContext(ctx context.Context, account string) (*Checker, error) {
	identity := GetIdentity(ctx)
	if identity == "" {
		return nil, NewError(ErrInvalidArgument, "no identity in context").WithAccount(account)
	}
	return s.GetAccountChecker(ctx, account, identity)
}
