package gatekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// RoleManager defines the role-membership registry interface
type RoleManager interface {
	InitializeRegistry(ctx context.Context, creator, account string) error
	HasRole(ctx context.Context, account, role, identity string) bool
	GetRoleAdmin(ctx context.Context, account, role string) (string, error)
	GrantRole(ctx context.Context, caller, account, role, target string) error
	RevokeRole(ctx context.Context, caller, account, role, target string) error
	RenounceRole(ctx context.Context, caller, account, role, selfConfirm string) error
	SetupRole(ctx context.Context, caller, account, newRole, adminRole string) error
}

// CapabilityManager defines the capability ledger interface
type CapabilityManager interface {
	InitializeLedger(ctx context.Context, account string) error
	GrantCapability(ctx context.Context, granter, account, kind string, payload any, canDelegate bool) error
	RevokeCapability(ctx context.Context, revoker, account, kind string) error
	DelegateCapability(ctx context.Context, delegator, delegatee, kind string, payload any) error
	HasCapability(ctx context.Context, account, kind string) bool
	AssertCapability(ctx context.Context, caller, kind string) error
	GetCapabilityMetadata(ctx context.Context, account, kind string) (*CapabilityMetadata, error)
}

// AccessLimiter defines the access-rate control interface
type AccessLimiter interface {
	InitLimiter(ctx context.Context, account string, cfg LimiterConfig) error
	IsAccessAllowed(ctx context.Context, account, identity string) (bool, error)
	RecordAccess(ctx context.Context, identity, account string) error
	RequireAccess(ctx context.Context, identity, account string) error
	UpdateBlockLimits(ctx context.Context, caller, account string, maxPerWindow, windowSize, cooldown int64) error
	UpdateTimeLimits(ctx context.Context, caller, account string, maxPerWindow int64, window, cooldown time.Duration) error
	ResetAccessRecord(ctx context.Context, caller, account, identity string) error
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	ResetConnectionPool() error
}

// AuditLogger defines the audit log query interface
type AuditLogger interface {
	GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]GateAuditLog, error)
}

// TransactionMonitor defines the transaction monitoring interface
type TransactionMonitor interface {
	GetTransactionMetrics() TransactionMetrics
	ResetTransactionMetrics()
	IsTransactionHealthy() bool
}
