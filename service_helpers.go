package gatekit

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/fernandezvara/dbkit"
	"go.uber.org/zap"
)

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func (s *Service) registryInitialized(ctx context.Context, account string) (bool, error) {
	var rule RoleAdminRule
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&rule).
		Where("account = ? AND role = ?", account, DefaultAdminRole).
		Limit(1).Scan(ctx), "RegistryInitialized").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ensureRoleRule lazily creates a role's admin rule, administered by the
// root role, when no explicit relation was declared yet.
func (s *Service) ensureRoleRule(ctx context.Context, account, role string) error {
	rule := &RoleAdminRule{
		Account:   account,
		Role:      role,
		AdminRole: DefaultAdminRole,
	}
	result, err := s.conn(ctx).NewInsert().Model(rule).
		On("CONFLICT (account, role) DO NOTHING").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "EnsureRoleRule").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to create role rule").
			WithAccount(account).
			WithRole(role)
	}
	return nil
}

// findMembership loads a membership row including tombstoned ones. Returns
// nil when the identity was never a member.
func (s *Service) findMembership(ctx context.Context, account, role, member string) (*RoleMembership, error) {
	var membership RoleMembership
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&membership).
		Where("account = ? AND role = ? AND member = ?", account, role, member).
		Limit(1).Scan(ctx), "FindMembership").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// deactivateMembership tombstones an active membership and reports whether
// a transition happened.
func (s *Service) deactivateMembership(ctx context.Context, account, role, member string) (bool, error) {
	result, err := s.conn(ctx).NewUpdate().Table("role_memberships").
		Set("active = FALSE").
		Set("updated_at = current_timestamp").
		Where("account = ? AND role = ? AND member = ? AND active", account, role, member).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "DeactivateMembership").Err(); err != nil {
		return false, NewError(ErrDatabaseError, "failed to deactivate membership").
			WithAccount(account).
			WithRole(role).
			WithIdentity(member)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Service) ledgerExists(ctx context.Context, account string) (bool, error) {
	var mark CapabilityLedgerMark
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&mark).
		Where("account = ?", account).
		Limit(1).Scan(ctx), "LedgerExists").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findCapabilityRecord returns nil when the account holds no record of this
// kind.
func (s *Service) findCapabilityRecord(ctx context.Context, account, kind string) (*CapabilityRecord, error) {
	var rec CapabilityRecord
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&rec).
		Where("account = ? AND kind = ?", account, kind).
		Limit(1).Scan(ctx), "FindCapabilityRecord").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// upsertCapabilityRecord installs a record for (account, kind), replacing
// any previous grant of the same kind.
func (s *Service) upsertCapabilityRecord(ctx context.Context, rec *CapabilityRecord) error {
	result, err := s.conn(ctx).NewInsert().Model(rec).
		On("CONFLICT (account, kind) DO UPDATE").
		Set("granted_by = EXCLUDED.granted_by").
		Set("can_delegate = EXCLUDED.can_delegate").
		Set("delegation_chain = EXCLUDED.delegation_chain").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "UpsertCapabilityRecord").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to install capability record").
			WithAccount(rec.Account).
			WithKind(rec.Kind)
	}
	return nil
}

func (s *Service) findLimiterConfig(ctx context.Context, account string) (*LimiterConfig, error) {
	var cfg LimiterConfig
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&cfg).
		Where("account = ?", account).
		Limit(1).Scan(ctx), "FindLimiterConfig").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *Service) findAccessRecord(ctx context.Context, account, identity string) (*AccessRecord, error) {
	var rec AccessRecord
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&rec).
		Where("account = ? AND identity = ?", account, identity).
		Limit(1).Scan(ctx), "FindAccessRecord").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// audit writes a best-effort audit row enriched with request metadata from
// context. Failures are logged and never abort the audited operation.
func (s *Service) audit(ctx context.Context, entry *AuditEntry) {
	ac := GetAuditContext(ctx)
	if entry.ActorID == "" {
		entry.ActorID = ac.ActorID
	}
	entry.IPAddress = ac.IPAddress
	entry.UserAgent = ac.UserAgent
	entry.RequestID = ac.RequestID

	_, err := s.conn(ctx).NewInsert().Model(entry.ToModel()).Exec(ctx)
	if err := dbkit.WithErr1(err, "LogAudit").Err(); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.String("account", entry.Account),
			zap.Error(err))
	}
}

// ============================================================================
// RETRY HELPERS
// ============================================================================

// GrantRoleWithRetry grants a role with automatic retry for transient
// database errors.
func (s *Service) GrantRoleWithRetry(ctx context.Context, caller, account, role, target string) error {
	return s.withRetry(ctx, 3, func() error {
		return s.GrantRole(ctx, caller, account, role, target)
	})
}

// RequireAccessWithRetry asserts and records an access with automatic retry
// for transient database errors. ErrRateLimited is never retried.
func (s *Service) RequireAccessWithRetry(ctx context.Context, identity, account string) error {
	return s.withRetry(ctx, 3, func() error {
		return s.RequireAccess(ctx, identity, account)
	})
}

// withRetry runs fn up to maxAttempts times with exponential backoff and
// jitter, retrying only transient errors.
func (s *Service) withRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(backoff) * 0.1 * (0.5 + rand.Float64()))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// isTransientError checks if an error is transient and can be retried.
// Domain failures (permission, rate limit, not found) never are.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, ErrDatabaseError) {
		var e *Error
		if errors.As(err, &e) {
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	transient := []string{
		"connection",
		"timeout",
		"deadlock",
		"broken pipe",
		"temporary failure",
		"try again",
		"resource temporarily unavailable",
	}
	for _, marker := range transient {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return errors.Is(err, context.DeadlineExceeded)
}
