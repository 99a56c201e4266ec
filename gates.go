package gatekit

import (
	"context"
)

// PauseFunc reports whether an account is paused. Applications supply their
// own implementation; gatekit only consumes the answer.
type PauseFunc func(ctx context.Context, account string) (bool, error)

// OwnerFunc reports whether an identity owns an account. Applications supply
// their own implementation; gatekit only consumes the answer.
type OwnerFunc func(ctx context.Context, identity, account string) (bool, error)

// Requirement is a single authorization condition checked by a Guard after
// the pause gate and access limiter have passed.
type Requirement func(ctx context.Context, s *Service, identity, account string) error

// RequireRoleHeld returns a Requirement that passes when the identity holds
// the given role on the account.
func RequireRoleHeld(role string) Requirement {
	return func(ctx context.Context, s *Service, identity, account string) error {
		if !s.HasRole(ctx, account, role, identity) {
			return NewError(ErrPermissionDenied, "role not held").
				WithAccount(account).WithRole(role).WithIdentity(identity)
		}
		return nil
	}
}

// RequireCapabilityHeld returns a Requirement that passes when the guarded
// account itself holds a capability of the given kind. Capabilities attach
// to accounts, not identities, so the calling identity plays no part in this
// check.
func RequireCapabilityHeld(kind string) Requirement {
	return func(ctx context.Context, s *Service, identity, account string) error {
		return s.AssertCapability(ctx, account, kind)
	}
}

// RequireOwner returns a Requirement that passes when the supplied OwnerFunc
// confirms the identity owns the account.
func RequireOwner(isOwner OwnerFunc) Requirement {
	return func(ctx context.Context, s *Service, identity, account string) error {
		ok, err := isOwner(ctx, identity, account)
		if err != nil {
			return NewError(ErrDatabaseError, "owner check failed: "+err.Error()).
				WithAccount(account).WithIdentity(identity)
		}
		if !ok {
			return NewError(ErrPermissionDenied, "identity does not own account").
				WithAccount(account).WithIdentity(identity)
		}
		return nil
	}
}

// Guard composes the protected-call flow for an account: the pause gate runs
// first, then the access limiter, then each Requirement in order. The first
// failure aborts the call.
type Guard struct {
	service      *Service
	isPaused     PauseFunc
	skipLimiter  bool
	requirements []Requirement
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithPauseGate installs a pause predicate checked before anything else.
func WithPauseGate(isPaused PauseFunc) GuardOption {
	return func(g *Guard) {
		g.isPaused = isPaused
	}
}

// WithoutLimiter skips the RequireAccess step. Used for read paths that must
// not consume the caller's access budget.
func WithoutLimiter() GuardOption {
	return func(g *Guard) {
		g.skipLimiter = true
	}
}

// WithRequirement appends an authorization condition to the Guard.
func WithRequirement(req Requirement) GuardOption {
	return func(g *Guard) {
		g.requirements = append(g.requirements, req)
	}
}

// NewGuard creates a Guard bound to a Service.
func NewGuard(service *Service, opts ...GuardOption) *Guard {
	g := &Guard{service: service}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs the protected-call flow for identity against account. A nil
// return means the guarded operation may proceed; RequireAccess has already
// recorded the access.
func (g *Guard) Check(ctx context.Context, identity, account string) error {
	if g.isPaused != nil {
		paused, err := g.isPaused(ctx, account)
		if err != nil {
			return NewError(ErrDatabaseError, "pause check failed: "+err.Error()).
				WithAccount(account)
		}
		if paused {
			return NewError(ErrPaused, "account is paused").WithAccount(account)
		}
	}

	if !g.skipLimiter {
		if err := g.service.RequireAccess(ctx, identity, account); err != nil {
			return err
		}
	}

	for _, req := range g.requirements {
		if err := req(ctx, g.service, identity, account); err != nil {
			return err
		}
	}

	return nil
}
