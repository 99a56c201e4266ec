package gatekit

import (
	"context"
	"time"

	"github.com/fernandezvara/dbkit"
	"go.uber.org/zap"
)

// Service provides the role registry, capability ledger, and rate limiter
// over a shared database connection. It integrates with the database through
// dbkit with enhanced error handling.
//
// Error Handling:
// Domain failures carry one of the gatekit sentinel errors and can be
// classified with the IsX predicates. Database failures are wrapped with
// dbkit's chainable error context (operation name, table, constraint) and
// surface as ErrDatabaseError.
//
// Example error handling:
//
//	err := service.GrantRole(ctx, caller, account, "operator", target)
//	if err != nil {
//	    switch {
//	    case gatekit.IsPermissionDenied(err):
//	        // caller does not hold the role's admin role
//	    case gatekit.IsNotFound(err):
//	        // registry not initialized
//	    }
//	}
type Service struct {
	db        dbkit.IDB
	kinds     *KindRegistry
	clock     Clock
	blocks    BlockSource
	logger    *zap.Logger
	txMonitor *transactionMonitor
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithClock substitutes the wall-clock source used by the rate limiter.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithBlockSource substitutes the block-height source used by the rate
// limiter.
func WithBlockSource(blocks BlockSource) ServiceOption {
	return func(s *Service) {
		s.blocks = blocks
	}
}

// WithLogger sets the structured logger. The default is a nop logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new GateKit service.
//
// Example:
//
//	kinds := gatekit.NewKindRegistry()
//	// ... define capability kinds ...
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := gatekit.NewService(kinds, db)
func NewService(kinds *KindRegistry, db dbkit.IDB, opts ...ServiceOption) *Service {
	s := &Service{
		db:        db,
		kinds:     kinds,
		clock:     SystemClock,
		blocks:    NewIntervalBlockSource(time.Unix(0, 0).UTC(), time.Second),
		logger:    zap.NewNop(),
		txMonitor: newTransactionMonitor(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Kinds returns the capability kind registry.
func (s *Service) Kinds() *KindRegistry {
	return s.kinds
}

// now samples both limiter dimensions at once.
func (s *Service) now() AccessPoint {
	return AccessPoint{Block: s.blocks.Height(), Time: s.clock.Now()}
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// GetAuditLog retrieves audit log entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]GateAuditLog, error) {
	var logs []GateAuditLog
	q := s.conn(ctx).NewSelect().Model(&logs)
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetID != "" {
		q = q.Where("target_id = ?", filter.TargetID)
	}
	if filter.Account != "" {
		q = q.Where("account = ?", filter.Account)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}
