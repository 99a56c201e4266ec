package gatekit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// txContextKey carries the active transaction through the context so that
// every query issued inside a Transaction callback runs on it.
type txContextKey struct{}

func withTxContext(ctx context.Context, tx *dbkit.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// conn returns the transaction bound to ctx when one is active, otherwise
// the service's database handle. All query helpers go through this, which
// is what makes operations inside a Transaction callback atomic.
func (s *Service) conn(ctx context.Context) dbkit.IDB {
	if tx, ok := ctx.Value(txContextKey{}).(*dbkit.Tx); ok {
		return tx
	}
	return s.db
}

// Transaction executes a function within a database transaction with
// automatic commit/rollback. If the function returns an error, the
// transaction is rolled back; a nested call reuses the ambient transaction
// through a savepoint. Every multi-row gatekit operation runs through this,
// which is what makes each operation a single atomic transition.
//
// Example:
//
//	err := service.Transaction(ctx, func(ctx context.Context) error {
//	    if err := service.GrantRole(ctx, admin, account, "operator", userA); err != nil {
//	        return err // rollback
//	    }
//	    return service.GrantCapability(ctx, admin, account, "mint", nil, false)
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error

	switch db := s.conn(ctx).(type) {
	case *dbkit.Tx:
		// Already in a transaction: nest via savepoint.
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(withTxContext(ctx, tx))
		})
	case *dbkit.DBKit:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(withTxContext(ctx, tx))
		})
	default:
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.txMonitor.record(time.Since(start), err == nil)

	return err
}

// TransactionWithOptions executes a function within a database transaction
// with custom options (isolation level, read-only).
//
// Example:
//
//	err := service.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(ctx context.Context) error {
//	    return service.RequireAccess(ctx, identity, account)
//	})
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error {
	if tx, ok := s.conn(ctx).(*dbkit.Tx); ok {
		// Savepoints do not take options.
		return tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(withTxContext(ctx, tx))
		})
	}

	if db, ok := s.conn(ctx).(*dbkit.DBKit); ok {
		return db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(withTxContext(ctx, tx))
		})
	}

	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

// ReadOnlyTransaction executes a function within a read-only database
// transaction, for consistent multi-read snapshots.
//
// Example:
//
//	err := service.ReadOnlyTransaction(ctx, func(ctx context.Context) error {
//	    checker, err := service.GetAccountChecker(ctx, account, identity)
//	    ...
//	})
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}
