package gatekit

import (
	"github.com/fernandezvara/dbkit"
)

// Migrations returns all database migrations required by GateKit.
// Use db.Migrate(ctx, service.Migrations()) to run them.
func (s *Service) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "gatekit-001",
			Description: "Create role_memberships table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_memberships (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL,
                    role TEXT NOT NULL,
                    member TEXT NOT NULL,
                    active BOOLEAN NOT NULL DEFAULT TRUE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (account, role, member)
                )`,
		},
		{
			ID:          "gatekit-002",
			Description: "Create role_admins table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_admins (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL,
                    role TEXT NOT NULL,
                    admin_role TEXT NOT NULL,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (account, role)
                )`,
		},
		{
			ID:          "gatekit-003",
			Description: "Create capability_ledgers table",
			SQL: `
                CREATE TABLE IF NOT EXISTS capability_ledgers (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL UNIQUE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "gatekit-004",
			Description: "Create capability_records table",
			SQL: `
                CREATE TABLE IF NOT EXISTS capability_records (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL,
                    kind TEXT NOT NULL,
                    granted_by TEXT NOT NULL,
                    can_delegate BOOLEAN NOT NULL DEFAULT FALSE,
                    delegation_chain TEXT[] NOT NULL DEFAULT '{}',
                    payload JSONB,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (account, kind)
                )`,
		},
		{
			ID:          "gatekit-005",
			Description: "Create delegation_edges table",
			SQL: `
                CREATE TABLE IF NOT EXISTS delegation_edges (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL,
                    kind TEXT NOT NULL,
                    delegator TEXT NOT NULL,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "gatekit-006",
			Description: "Create limiter_configs table",
			SQL: `
                CREATE TABLE IF NOT EXISTS limiter_configs (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL UNIQUE,
                    max_per_block_window BIGINT NOT NULL,
                    block_window_size BIGINT NOT NULL,
                    max_per_time_window BIGINT NOT NULL,
                    time_window_ns BIGINT NOT NULL,
                    block_cooldown BIGINT NOT NULL,
                    time_cooldown_ns BIGINT NOT NULL,
                    admin TEXT NOT NULL,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "gatekit-007",
			Description: "Create access_records table",
			SQL: `
                CREATE TABLE IF NOT EXISTS access_records (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    account TEXT NOT NULL,
                    identity TEXT NOT NULL,
                    last_access_block BIGINT NOT NULL,
                    last_access_time TIMESTAMPTZ NOT NULL,
                    count_in_window BIGINT NOT NULL,
                    window_start_block BIGINT NOT NULL,
                    window_start_time TIMESTAMPTZ NOT NULL,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (account, identity)
                )`,
		},
		{
			ID:          "gatekit-008",
			Description: "Create gate_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS gate_audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL,
                    action TEXT NOT NULL,
                    account TEXT NOT NULL,
                    target_id TEXT,
                    role TEXT,
                    kind TEXT,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT,
                    metadata JSONB
                )`,
		},
	}
}
