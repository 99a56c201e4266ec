package gatekit

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// CAPABILITY LEDGER OPERATIONS
// ============================================================================

// InitializeLedger creates an account's capability ledger. Fails with
// ErrAlreadyExists if the ledger was already initialized. Grants and
// delegations require the target account's ledger to exist.
func (s *Service) InitializeLedger(ctx context.Context, account string) error {
	exists, err := s.ledgerExists(ctx, account)
	if err != nil {
		return err
	}
	if exists {
		return NewError(ErrAlreadyExists, "capability ledger already initialized").
			WithAccount(account)
	}

	mark := &CapabilityLedgerMark{Account: account}
	result, err := s.conn(ctx).NewInsert().Model(mark).Exec(ctx)
	if err := dbkit.WithErr(result, err, "CreateCapabilityLedger").Err(); err != nil {
		return NewError(ErrDatabaseError, "failed to create capability ledger").
			WithAccount(account)
	}

	s.audit(ctx, &AuditEntry{
		ActorID: GetActorID(ctx),
		Action:  AuditActionLedgerInitialized,
		Account: account,
	})

	return nil
}

// GrantCapability installs a fresh capability record on the grantee account:
// granted by granter, with an empty delegation chain, delegatable iff
// canDelegate. Re-granting an existing kind replaces the record, including
// its chain and payload. The payload is validated against the kind registry
// and persisted as the typed payload for (account, kind).
//
// Example:
//
//	err := service.GrantCapability(ctx, granterID, accountID, "mint",
//	    MintLimits{PerDay: 100}, true)
func (s *Service) GrantCapability(ctx context.Context, granter, account, kind string, payload any, canDelegate bool) error {
	data, err := EncodePayload(payload)
	if err != nil {
		return err
	}
	if err := s.kinds.Validate(kind, data); err != nil {
		return err
	}

	exists, err := s.ledgerExists(ctx, account)
	if err != nil {
		return err
	}
	if !exists {
		return NewError(ErrNotFound, "capability ledger not initialized").
			WithAccount(account).
			WithKind(kind)
	}

	if err := s.upsertCapabilityRecord(ctx, &CapabilityRecord{
		Account:         account,
		Kind:            kind,
		GrantedBy:       granter,
		CanDelegate:     canDelegate,
		DelegationChain: []string{},
		Payload:         data,
	}); err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{
		ActorID:  granter,
		Action:   AuditActionCapabilityGranted,
		Account:  account,
		TargetID: account,
		Kind:     kind,
		Metadata: map[string]any{
			"can_delegate": canDelegate,
		},
	})

	return nil
}

// RevokeCapability deletes an account's capability record, its payload, and
// its reverse-delegation index entries. Only the original granter or the
// holding account itself may revoke. Revoking an absent capability fails
// with ErrNotFound.
func (s *Service) RevokeCapability(ctx context.Context, revoker, account, kind string) error {
	rec, err := s.findCapabilityRecord(ctx, account, kind)
	if err != nil {
		return err
	}
	if rec == nil {
		return NewError(ErrNotFound, "capability not granted").
			WithAccount(account).
			WithKind(kind)
	}

	if revoker != rec.GrantedBy && revoker != account {
		return NewError(ErrPermissionDenied, "only the granter or the holder may revoke").
			WithAccount(account).
			WithKind(kind).
			WithActor(revoker)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		result, err := s.conn(ctx).NewDelete().Table("capability_records").
			Where("account = ? AND kind = ?", account, kind).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteCapabilityRecord").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete capability record").
				WithAccount(account).
				WithKind(kind)
		}

		result, err = s.conn(ctx).NewDelete().Table("delegation_edges").
			Where("account = ? AND kind = ?", account, kind).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteDelegationEdges").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to delete delegation edges").
				WithAccount(account).
				WithKind(kind)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{
		ActorID:  revoker,
		Action:   AuditActionCapabilityRevoked,
		Account:  account,
		TargetID: account,
		Kind:     kind,
	})

	return nil
}

// DelegateCapability passes the delegator account's capability on to the
// delegatee. The delegator's own record must be delegatable; the installed
// record keeps the original granter, extends the provenance chain with the
// delegator, and is itself never delegatable, so a lineage cannot loop. A
// delegation edge is recorded on the delegatee.
//
// Example:
//
//	err := service.DelegateCapability(ctx, accountA, accountB, "mint", payload)
func (s *Service) DelegateCapability(ctx context.Context, delegator, delegatee, kind string, payload any) error {
	data, err := EncodePayload(payload)
	if err != nil {
		return err
	}
	if err := s.kinds.Validate(kind, data); err != nil {
		return err
	}

	rec, err := s.findCapabilityRecord(ctx, delegator, kind)
	if err != nil {
		return err
	}
	if rec == nil {
		return NewError(ErrNotFound, "delegator does not hold this capability").
			WithAccount(delegator).
			WithKind(kind)
	}
	if !rec.CanDelegate {
		return NewError(ErrPermissionDenied, "capability is not delegatable").
			WithAccount(delegator).
			WithKind(kind).
			WithActor(delegator)
	}

	exists, err := s.ledgerExists(ctx, delegatee)
	if err != nil {
		return err
	}
	if !exists {
		return NewError(ErrNotFound, "delegatee ledger not initialized").
			WithAccount(delegatee).
			WithKind(kind)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.upsertCapabilityRecord(ctx, &CapabilityRecord{
			Account:         delegatee,
			Kind:            kind,
			GrantedBy:       rec.GrantedBy,
			CanDelegate:     false, // forced, regardless of caller intent
			DelegationChain: rec.ChildChain(delegator),
			Payload:         data,
		}); err != nil {
			return err
		}

		edge := &DelegationEdge{
			Account:   delegatee,
			Kind:      kind,
			Delegator: delegator,
		}
		result, err := s.conn(ctx).NewInsert().Model(edge).Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateDelegationEdge").Err(); err != nil {
			return NewError(ErrDatabaseError, "failed to record delegation edge").
				WithAccount(delegatee).
				WithKind(kind)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, &AuditEntry{
		ActorID:  delegator,
		Action:   AuditActionCapabilityDelegated,
		Account:  delegatee,
		TargetID: delegatee,
		Kind:     kind,
		Metadata: map[string]any{
			"granted_by":   rec.GrantedBy,
			"chain_length": len(rec.DelegationChain) + 1,
		},
	})

	return nil
}

// HasCapability checks if an account holds a capability kind. A missing
// ledger or record yields false; HasCapability never aborts.
func (s *Service) HasCapability(ctx context.Context, account, kind string) bool {
	exists, err := dbkit.Exists[CapabilityRecord](ctx, s.conn(ctx), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("account = ? AND kind = ?", account, kind)
	})
	if err != nil {
		return false
	}
	return exists
}

// AssertCapability fails with ErrPermissionDenied unless the caller's
// account holds the capability kind.
func (s *Service) AssertCapability(ctx context.Context, caller, kind string) error {
	if !s.HasCapability(ctx, caller, kind) {
		return NewError(ErrPermissionDenied, "capability not held").
			WithAccount(caller).
			WithKind(kind).
			WithActor(caller)
	}
	return nil
}

// GetCapabilityMetadata returns the granter, delegatability, and provenance
// chain of an account's capability. Fails with ErrNotFound if absent.
func (s *Service) GetCapabilityMetadata(ctx context.Context, account, kind string) (*CapabilityMetadata, error) {
	rec, err := s.findCapabilityRecord(ctx, account, kind)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewError(ErrNotFound, "capability not granted").
			WithAccount(account).
			WithKind(kind)
	}
	meta := rec.Metadata()
	return &meta, nil
}

// GetDelegationEdges returns the reverse delegation index entries recorded
// on an account for a kind, oldest first.
func (s *Service) GetDelegationEdges(ctx context.Context, account, kind string) ([]DelegationEdge, error) {
	var edges []DelegationEdge
	err := dbkit.WithErr1(s.conn(ctx).NewSelect().Model(&edges).
		Where("account = ? AND kind = ?", account, kind).
		Order("created_at ASC").
		Scan(ctx), "GetDelegationEdges").Err()
	if err != nil {
		return nil, err
	}
	return edges, nil
}
