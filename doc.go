// Package gatekit provides an embeddable authorization and access-rate-control
// layer for transactional applications.
//
// GateKit combines three cooperating primitives, each scoped to an owning
// account:
//
// Role registry: a hierarchical role-membership store. Every role has exactly
// one admin role; granting or revoking a role requires membership in that
// admin role. Roles with no explicit admin relation are administered by the
// root "default-admin" role, which administers itself.
//
// Capability ledger: a generic, delegatable permission store with provenance
// tracking. A capability record remembers who granted it, whether it may be
// re-delegated, and the ordered chain of delegators it passed through.
// Delegated records can never be re-delegated, which structurally prevents
// delegation loops within a single lineage.
//
// Rate limiter: per-identity access accounting over two coupled sliding
// windows (block height and wall clock) with independent cooldowns. A window
// reset in either dimension re-anchors both windows.
//
// # Basic Usage
//
//	// 1. Declare your capability kinds (at application startup)
//	kinds := gatekit.NewKindRegistry()
//
//	kinds.Define("mint").
//	    Description("allows minting new assets").
//	    Define("withdraw").
//	    Description("allows withdrawing funds")
//
//	// 2. Create the service
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := gatekit.NewService(kinds, db)
//
//	// 3. Run migrations
//	db.Migrate(ctx, service.Migrations())
//
//	// 4. Bootstrap an account
//	service.InitializeRegistry(ctx, creatorID, accountID)
//	service.InitializeLedger(ctx, accountID)
//	service.InitLimiter(ctx, accountID, gatekit.LimiterConfig{
//	    MaxPerBlockWindow: 10, BlockWindowSize: 100,
//	    MaxPerTimeWindow: 10, TimeWindow: time.Minute,
//	    BlockCooldown: 1, TimeCooldown: time.Second,
//	    Admin: creatorID,
//	})
//
//	// 5. Gate your operations
//	if err := service.RequireAccess(ctx, identity, accountID); err != nil {
//	    // gatekit.IsRateLimited(err)
//	}
//	if service.HasRole(ctx, accountID, "operator", identity) {
//	    // identity holds the operator role
//	}
//	if err := service.AssertCapability(ctx, identity, "mint"); err != nil {
//	    // gatekit.IsPermissionDenied(err)
//	}
//
// # Protected-Call Flow
//
// The intended composition for a protected operation is pause gate, then rate
// limiter, then role or capability check, then business logic. The Guard type
// wires external isOwner/isPaused predicates into that flow:
//
//	guard := gatekit.NewGuard(service,
//	    gatekit.WithPauseGate(isPaused),
//	    gatekit.WithRequirement(gatekit.RequireOwner(isOwner)),
//	    gatekit.WithRequirement(gatekit.RequireRoleHeld("operator")),
//	    gatekit.WithRequirement(gatekit.RequireCapabilityHeld("mint")),
//	)
//	err := guard.Check(ctx, identity, accountID)
//
// Ownership and pause are consumed as predicates only; GateKit does not
// implement them.
//
// # Delegation
//
//	// Grant with delegation rights
//	service.GrantCapability(ctx, granterID, accountA, "mint", payload, true)
//
//	// accountA passes it on; the delegated record carries the provenance
//	// chain and can not be re-delegated
//	service.DelegateCapability(ctx, accountA, accountB, "mint", payload)
//
//	meta, _ := service.GetCapabilityMetadata(ctx, accountB, "mint")
//	// meta.GrantedBy == granterID, meta.CanDelegate == false,
//	// meta.DelegationChain == ["accountA"]
//
// # Middleware Usage
//
//	mw := gatekit.NewMiddleware(service)
//
//	router.With(mw.RateLimit(gatekit.AccountFromParam("accountID"))).
//	    With(mw.RequireRole("operator", gatekit.AccountFromParam("accountID"))).
//	    Post("/accounts/{accountID}/mint", mintHandler)
//
// # Time and Blocks
//
// The rate limiter consumes a wall clock and a monotonic block-height source
// through the Clock and BlockSource interfaces. SystemClock and
// IntervalBlockSource are real implementations; both are injectable for
// deterministic tests.
//
// # Audit Log
//
// Every state-changing operation writes a best-effort audit row with actor,
// action, account, role or capability kind, target, and request metadata.
// Audit failures never abort the audited operation.
package gatekit
