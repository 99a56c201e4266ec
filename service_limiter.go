package gatekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// RATE LIMITER OPERATIONS
// ============================================================================

// InitLimiter creates an account's rate limiter configuration. Fails with
// ErrAlreadyExists if a configuration already exists, and with
// ErrInvalidArgument on unusable limits.
//
// Example:
//
//	err := service.InitLimiter(ctx, accountID, gatekit.LimiterConfig{
//	    MaxPerBlockWindow: 10, BlockWindowSize: 100,
//	    MaxPerTimeWindow: 10, TimeWindow: time.Minute,
//	    BlockCooldown: 1, TimeCooldown: time.Second,
//	    Admin: adminID,
//	})
func (s *Service) InitLimiter(ctx context.Context, account string, cfg LimiterConfig) error {
	cfg.Account = account
	if err := cfg.Validate(); err != nil {
		return err
	}

	existing, err := s.findLimiterConfig(ctx, account)
	if err != nil {
		return err
	}
	if existing != nil {
		return NewError(ErrAlreadyExists, "limiter already configured").
			WithAccount(account)
	}

	result, err := s.conn(ctx).NewInsert().Model(&cfg).Exec(ctx)
	if err := dbkit.WithErr(result, err, "CreateLimiterConfig").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to create limiter config").
			WithAccount(account)
	}

	s.audit(ctx, &AuditEntry{
		ActorID: GetActorID(ctx),
		Action:  AuditActionLimiterInitialized,
		Account: account,
	})

	return nil
}

// GetLimiterConfig returns an account's limiter configuration. Fails with
// ErrNotFound when the account has no limiter.
func (s *Service) GetLimiterConfig(ctx context.Context, account string) (*LimiterConfig, error) {
	cfg, err := s.findLimiterConfig(ctx, account)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, NewError(ErrNotFound, "limiter not configured").
			WithAccount(account)
	}
	return cfg, nil
}

// IsAccessAllowed reports whether an access by identity against the account
// would be permitted right now. It is a pure read: no record is created or
// updated, and repeated calls observe the same answer. Accounts without a
// limiter, and identities never seen before, are always allowed.
func (s *Service) IsAccessAllowed(ctx context.Context, account, identity string) (bool, error) {
	cfg, err := s.findLimiterConfig(ctx, account)
	if err != nil {
		return false, err
	}
	if cfg == nil {
		return true, nil
	}

	rec, err := s.findAccessRecord(ctx, account, identity)
	if err != nil {
		return false, err
	}

	return cfg.Allows(rec, s.now()), nil
}

// RecordAccess applies one access to the identity's accounting state,
// creating the record on first access. It does not check whether the access
// was allowed; pair it with IsAccessAllowed or use RequireAccess. Accounts
// without a limiter are a no-op.
func (s *Service) RecordAccess(ctx context.Context, identity, account string) error {
	cfg, err := s.findLimiterConfig(ctx, account)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	return s.recordAccess(ctx, cfg, identity, s.now())
}

// RequireAccess asserts that an access by identity is allowed and records
// it, as one atomic transition. A cooldown or window violation fails with
// ErrRateLimited and leaves the accounting state untouched. Accounts
// without a limiter always pass.
//
// Example:
//
//	if err := service.RequireAccess(ctx, identity, accountID); err != nil {
//	    // gatekit.IsRateLimited(err)
//	}
func (s *Service) RequireAccess(ctx context.Context, identity, account string) error {
	cfg, err := s.findLimiterConfig(ctx, account)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	at := s.now()
	return s.Transaction(ctx, func(ctx context.Context) error {
		rec, err := s.findAccessRecord(ctx, account, identity)
		if err != nil {
			return err
		}
		if !cfg.Allows(rec, at) {
			return NewError(ErrRateLimited, "access denied by cooldown or window limit").
				WithAccount(account).
				WithIdentity(identity)
		}
		return s.applyAccess(ctx, cfg, rec, identity, at)
	})
}

// UpdateBlockLimits replaces the block-dimension limits of an account's
// limiter. Only the configured admin may update; others fail with
// ErrPermissionDenied.
func (s *Service) UpdateBlockLimits(ctx context.Context, caller, account string, maxPerWindow, windowSize, cooldown int64) error {
	cfg, err := s.requireLimiterAdmin(ctx, caller, account)
	if err != nil {
		return err
	}

	next := *cfg
	next.MaxPerBlockWindow = maxPerWindow
	next.BlockWindowSize = windowSize
	next.BlockCooldown = cooldown
	if err := next.Validate(); err != nil {
		return err
	}

	result, err := s.conn(ctx).NewUpdate().Table("limiter_configs").
		Set("max_per_block_window = ?", maxPerWindow).
		Set("block_window_size = ?", windowSize).
		Set("block_cooldown = ?", cooldown).
		Set("updated_at = current_timestamp").
		Where("account = ?", account).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "UpdateBlockLimits").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to update block limits").
			WithAccount(account)
	}

	s.audit(ctx, &AuditEntry{
		ActorID: caller,
		Action:  AuditActionBlockLimitsUpdated,
		Account: account,
		Metadata: map[string]any{
			"max_per_block_window": maxPerWindow,
			"block_window_size":    windowSize,
			"block_cooldown":       cooldown,
		},
	})

	return nil
}

// UpdateTimeLimits replaces the time-dimension limits of an account's
// limiter. Only the configured admin may update.
func (s *Service) UpdateTimeLimits(ctx context.Context, caller, account string, maxPerWindow int64, window, cooldown time.Duration) error {
	cfg, err := s.requireLimiterAdmin(ctx, caller, account)
	if err != nil {
		return err
	}

	next := *cfg
	next.MaxPerTimeWindow = maxPerWindow
	next.TimeWindow = window
	next.TimeCooldown = cooldown
	if err := next.Validate(); err != nil {
		return err
	}

	result, err := s.conn(ctx).NewUpdate().Table("limiter_configs").
		Set("max_per_time_window = ?", maxPerWindow).
		Set("time_window_ns = ?", window).
		Set("time_cooldown_ns = ?", cooldown).
		Set("updated_at = current_timestamp").
		Where("account = ?", account).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "UpdateTimeLimits").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to update time limits").
			WithAccount(account)
	}

	s.audit(ctx, &AuditEntry{
		ActorID: caller,
		Action:  AuditActionTimeLimitsUpdated,
		Account: account,
		Metadata: map[string]any{
			"max_per_time_window": maxPerWindow,
			"time_window":         window.String(),
			"time_cooldown":       cooldown.String(),
		},
	})

	return nil
}

// ResetAccessRecord deletes an identity's accounting state, as if it had
// never accessed the account. Only the configured admin may reset.
// Resetting an absent record is a no-op.
func (s *Service) ResetAccessRecord(ctx context.Context, caller, account, identity string) error {
	if _, err := s.requireLimiterAdmin(ctx, caller, account); err != nil {
		return err
	}

	result, err := s.conn(ctx).NewDelete().Table("access_records").
		Where("account = ? AND identity = ?", account, identity).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "ResetAccessRecord").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to reset access record").
			WithAccount(account).
			WithIdentity(identity)
	}

	s.audit(ctx, &AuditEntry{
		ActorID:  caller,
		Action:   AuditActionAccessRecordReset,
		Account:  account,
		TargetID: identity,
	})

	return nil
}

// recordAccess is the unconditional record path used by RecordAccess.
func (s *Service) recordAccess(ctx context.Context, cfg *LimiterConfig, identity string, at AccessPoint) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		rec, err := s.findAccessRecord(ctx, cfg.Account, identity)
		if err != nil {
			return err
		}
		return s.applyAccess(ctx, cfg, rec, identity, at)
	})
}

// applyAccess persists one access: first access inserts a fresh record,
// later accesses advance the loaded one.
func (s *Service) applyAccess(ctx context.Context, cfg *LimiterConfig, rec *AccessRecord, identity string, at AccessPoint) error {
	if rec == nil {
		fresh := NewAccessRecord(cfg.Account, identity, at)
		result, err := s.conn(ctx).NewInsert().Model(fresh).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateAccessRecord").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to create access record").
				WithAccount(cfg.Account).
				WithIdentity(identity)
		}
		return nil
	}

	rec.Advance(cfg, at)
	result, err := s.conn(ctx).NewUpdate().Table("access_records").
		Set("last_access_block = ?", rec.LastAccessBlock).
		Set("last_access_time = ?", rec.LastAccessTime).
		Set("count_in_window = ?", rec.CountInWindow).
		Set("window_start_block = ?", rec.WindowStartBlock).
		Set("window_start_time = ?", rec.WindowStartTime).
		Set("updated_at = current_timestamp").
		Where("id = ?", rec.ID).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "UpdateAccessRecord").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to update access record").
			WithAccount(cfg.Account).
			WithIdentity(identity)
	}
	return nil
}

// requireLimiterAdmin loads the config and checks the caller against its
// admin.
func (s *Service) requireLimiterAdmin(ctx context.Context, caller, account string) (*LimiterConfig, error) {
	cfg, err := s.GetLimiterConfig(ctx, account)
	if err != nil {
		return nil, err
	}
	if caller != cfg.Admin {
		return nil, NewError(ErrPermissionDenied, "caller is not the limiter admin").
			WithAccount(account).
			WithActor(caller)
	}
	return cfg, nil
}
