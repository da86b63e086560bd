package manager

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/unisql/internal/engine"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

// ExecuteCrossSchemaTransaction opens a transaction on every named
// database, runs fn with their DAOs and commits them in order. If a begin
// or fn fails, every begun transaction is rolled back. A commit failure
// rolls back the databases not yet committed; the ones already committed
// stay committed and the error says how many.
func (m *Manager) ExecuteCrossSchemaTransaction(ctx context.Context, names []string, fn func(ctx context.Context, daos map[string]types.DAO) error) error {
	var engines []*engine.Engine
	daos := make(map[string]types.DAO, len(names))
	for _, name := range names {
		if _, ok := daos[name]; ok {
			continue
		}
		e, err := m.getOrOpen(ctx, "cross_schema_transaction", name, false)
		if err != nil {
			return err
		}
		engines = append(engines, e)
		daos[name] = e
	}

	var begun []*engine.Engine
	for _, e := range engines {
		if err := e.BeginTransaction(ctx); err != nil {
			return m.rollbackAll(ctx, begun, err)
		}
		begun = append(begun, e)
	}

	if err := fn(ctx, daos); err != nil {
		return m.rollbackAll(ctx, begun, err)
	}

	for i, e := range engines {
		if err := e.Commit(ctx); err != nil {
			cause := m.rollbackAll(ctx, engines[i:], err)
			return types.NewTransactionError("cross_schema_commit", e.Name(),
				fmt.Sprintf("%d of %d databases committed", i, len(engines)), cause)
		}
	}
	return nil
}

func (m *Manager) rollbackAll(ctx context.Context, engines []*engine.Engine, cause error) error {
	var failed []string
	for _, e := range engines {
		if !e.InTransaction() {
			continue
		}
		if err := e.Rollback(ctx); err != nil {
			m.log.Warn("cross schema rollback failed", "db", e.Name(), "error", err)
			failed = append(failed, e.Name())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w (rollback failed for %v)", cause, failed)
	}
	return cause
}
