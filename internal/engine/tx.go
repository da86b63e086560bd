package engine

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// BeginTransaction starts a transaction on the handle. Transactions do not
// nest.
func (e *Engine) BeginTransaction(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return types.NewTransactionError("begin", e.name, "", types.ErrClosed)
	}
	if e.inTx {
		return types.NewTransactionError("begin", e.name, "", types.ErrTransactionActive)
	}
	if _, err := e.conn.Execute(ctx, "BEGIN IMMEDIATE"); err != nil {
		return types.NewTransactionError("begin", e.name, "", err)
	}
	e.inTx = true
	return nil
}

// Commit commits the current transaction. A failed commit leaves the
// transaction open so the caller can roll it back.
func (e *Engine) Commit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.inTx {
		return types.NewTransactionError("commit", e.name, "", types.ErrNoTransaction)
	}
	if _, err := e.conn.Execute(ctx, "COMMIT"); err != nil {
		return types.NewTransactionError("commit", e.name, "", err)
	}
	e.inTx = false
	return nil
}

// Rollback abandons the current transaction. The transaction flag is
// cleared even when the store reports an error.
func (e *Engine) Rollback(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.inTx {
		return types.NewTransactionError("rollback", e.name, "", types.ErrNoTransaction)
	}
	e.inTx = false
	if _, err := e.conn.Execute(ctx, "ROLLBACK"); err != nil {
		return types.NewTransactionError("rollback", e.name, "", err)
	}
	// Rolled back DDL may have changed column metadata.
	e.tables.Purge()
	return nil
}

// InTransaction reports whether a transaction is open.
func (e *Engine) InTransaction() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inTx
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back otherwise. A rollback failure is reported alongside
// the original error, which stays matchable with errors.Is.
func (e *Engine) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := e.BeginTransaction(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = e.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		return e.rollbackWith(ctx, err)
	}
	if err := e.Commit(ctx); err != nil {
		return e.rollbackWith(ctx, err)
	}
	return nil
}

func (e *Engine) rollbackWith(ctx context.Context, cause error) error {
	if rbErr := e.Rollback(ctx); rbErr != nil {
		e.log.Warn("rollback failed", "error", rbErr, "cause", cause)
		return fmt.Errorf("%w (rollback failed: %v)", cause, rbErr)
	}
	return cause
}
