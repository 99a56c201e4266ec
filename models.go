package gatekit

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultAdminRole is the root admin role of every account registry. It
// administers itself, and every role without an explicit admin relation
// defaults to it.
const DefaultAdminRole = "default-admin"

// RoleMembership represents one identity's membership in a role of an
// account's registry. Revocation is a tombstone: the row stays with
// Active = false rather than being deleted.
type RoleMembership struct {
	bun.BaseModel `bun:"table:role_memberships,alias:rm"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account   string    `bun:"account,notnull"`
	Role      string    `bun:"role,notnull"`
	Member    string    `bun:"member,notnull"`
	Active    bool      `bun:"active,notnull,default:true"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// RoleAdminRule declares which role administers another role within an
// account's registry. A role with no rule is administered by
// DefaultAdminRole. The presence of a rule is also what marks a role as
// existing; GrantRole creates the rule lazily.
type RoleAdminRule struct {
	bun.BaseModel `bun:"table:role_admins,alias:rad"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account   string    `bun:"account,notnull"`
	Role      string    `bun:"role,notnull"`
	AdminRole string    `bun:"admin_role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// CapabilityLedgerMark records that an account's capability ledger has been
// initialized. Grants and delegations require the target ledger to exist.
type CapabilityLedgerMark struct {
	bun.BaseModel `bun:"table:capability_ledgers,alias:cl"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account   string    `bun:"account,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// CapabilityRecord is one capability held by an account, keyed by
// (account, kind). A record created by delegation always has
// CanDelegate = false and carries the provenance chain of every delegator
// it passed through, oldest first.
type CapabilityRecord struct {
	bun.BaseModel `bun:"table:capability_records,alias:cr"`

	ID              string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account         string    `bun:"account,notnull"`
	Kind            string    `bun:"kind,notnull"`
	GrantedBy       string    `bun:"granted_by,notnull"`
	CanDelegate     bool      `bun:"can_delegate,notnull"`
	DelegationChain []string  `bun:"delegation_chain,type:text[]"`
	Payload         []byte    `bun:"payload,type:jsonb"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// DelegationEdge is the reverse delegation index: one row per delegation,
// stored on the delegatee. Revoking the capability removes the edges.
type DelegationEdge struct {
	bun.BaseModel `bun:"table:delegation_edges,alias:de"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Account   string    `bun:"account,notnull"` // delegatee account
	Kind      string    `bun:"kind,notnull"`
	Delegator string    `bun:"delegator,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// CapabilityMetadata is the read view of a capability record.
type CapabilityMetadata struct {
	GrantedBy       string
	CanDelegate     bool
	DelegationChain []string
}

// Metadata returns the read view of the record.
func (r *CapabilityRecord) Metadata() CapabilityMetadata {
	return CapabilityMetadata{
		GrantedBy:       r.GrantedBy,
		CanDelegate:     r.CanDelegate,
		DelegationChain: append([]string(nil), r.DelegationChain...),
	}
}

// ChildChain returns the delegation chain a delegatee record must carry:
// this record's chain plus the delegating account.
func (r *CapabilityRecord) ChildChain(delegator string) []string {
	chain := make([]string, 0, len(r.DelegationChain)+1)
	chain = append(chain, r.DelegationChain...)
	return append(chain, delegator)
}

// GateAuditLog records all registry, ledger, and limiter changes for
// compliance and debugging.
type GateAuditLog struct {
	bun.BaseModel `bun:"table:gate_audit_log,alias:gal"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Who performed the action
	ActorID string `bun:"actor_id,notnull"`

	// What action was performed
	Action string `bun:"action,notnull"`

	// Target of the action
	Account  string `bun:"account,notnull"`
	TargetID string `bun:"target_id"` // member, delegatee, or identity
	Role     string `bun:"role"`
	Kind     string `bun:"kind"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`

	// Additional context (JSON)
	Metadata map[string]any `bun:"metadata,type:jsonb"`
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionRegistryInitialized AuditAction = "registry_initialized"
	AuditActionRoleGranted         AuditAction = "role_granted"
	AuditActionRoleRevoked         AuditAction = "role_revoked"
	AuditActionRoleRenounced       AuditAction = "role_renounced"
	AuditActionRoleSetup           AuditAction = "role_setup"
	AuditActionLedgerInitialized   AuditAction = "ledger_initialized"
	AuditActionCapabilityGranted   AuditAction = "capability_granted"
	AuditActionCapabilityRevoked   AuditAction = "capability_revoked"
	AuditActionCapabilityDelegated AuditAction = "capability_delegated"
	AuditActionLimiterInitialized  AuditAction = "limiter_initialized"
	AuditActionBlockLimitsUpdated  AuditAction = "block_limits_updated"
	AuditActionTimeLimitsUpdated   AuditAction = "time_limits_updated"
	AuditActionAccessRecordReset   AuditAction = "access_record_reset"
)

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	ActorID   string
	Action    AuditAction
	Account   string
	TargetID  string
	Role      string
	Kind      string
	IPAddress string
	UserAgent string
	RequestID string
	Metadata  map[string]any
}

// ToModel converts an AuditEntry to a GateAuditLog model.
func (e *AuditEntry) ToModel() *GateAuditLog {
	return &GateAuditLog{
		ActorID:   e.ActorID,
		Action:    string(e.Action),
		Account:   e.Account,
		TargetID:  e.TargetID,
		Role:      e.Role,
		Kind:      e.Kind,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		RequestID: e.RequestID,
		Metadata:  e.Metadata,
		Timestamp: time.Now(),
	}
}
