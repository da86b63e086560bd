package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// ImportData inserts opts.Rows into opts.Table inside one transaction.
//
// Without SkipErrors the first failing row rolls back the whole job and
// its error is returned together with the result. With SkipErrors each row
// runs under its own savepoint, so a failing row leaves nothing behind and
// the remaining rows still commit.
func (e *Engine) ImportData(ctx context.Context, opts types.ImportOptions) (*types.ImportResult, error) {
	start := time.Now()
	result := &types.ImportResult{TotalRows: len(opts.Rows)}
	target := e.qualify(opts.Table)

	if !validIdent(opts.Table) {
		return result, types.NewImportError("import", target, "", types.ErrInvalidIdentifier)
	}
	if e.InTransaction() {
		return result, types.NewImportError("import", target, "import runs its own transaction", types.ErrTransactionActive)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = types.DefaultImportBatchSize
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = types.DefaultImportProgressInterval
	}

	cols, err := e.columns(ctx, opts.Table)
	if err != nil {
		return result, types.NewImportError("import", target, "resolving columns", err)
	}
	if opts.UpdateOnConflict && len(opts.ConflictColumns) == 0 {
		opts.ConflictColumns = e.defaultConflictColumns(opts.Table, cols, opts.IncludeAutoIncrement)
	}

	imp := &importer{e: e, opts: opts, cols: cols}
	total := len(opts.Rows)

	err = e.WithTransaction(ctx, func(ctx context.Context) error {
		for first := 0; first < total; first += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			last := min(first+opts.BatchSize, total)
			for i := first; i < last; i++ {
				if err := imp.importRow(ctx, i); err != nil {
					ie := types.ImportError{RowIndex: i, Row: opts.Rows[i], Err: err}
					result.ErrorRows++
					result.Errors = append(result.Errors, ie)
					if opts.OnError != nil {
						opts.OnError(ie)
					}
					if !opts.SkipErrors {
						return ie
					}
				} else {
					result.SuccessRows++
				}
				if processed := i + 1; opts.OnProgress != nil && processed%opts.ProgressInterval == 0 && processed < total {
					opts.OnProgress(processed, total)
				}
			}
			e.log.Debug("import batch done", "table", opts.Table, "rows", last-first, "processed", last)
		}
		return nil
	})
	result.ExecutionTime = time.Since(start)

	if err != nil {
		// Nothing from this call survives the rollback.
		result.SuccessRows = 0
		e.log.Warn("import rolled back", "table", opts.Table, "error", err)
		return result, types.NewImportError("import", target, "rolled back", err)
	}

	if opts.OnProgress != nil {
		opts.OnProgress(total, total)
	}
	e.log.Info("import finished", "table", opts.Table,
		"total", result.TotalRows, "ok", result.SuccessRows, "failed", result.ErrorRows,
		"elapsed", result.ExecutionTime)
	return result, nil
}

type importer struct {
	e    *Engine
	opts types.ImportOptions
	cols []column
}

// importRow writes one row. With SkipErrors it is wrapped in a savepoint.
func (imp *importer) importRow(ctx context.Context, i int) error {
	row, err := imp.convert(imp.opts.Rows[i])
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return types.ErrEmptyData
	}
	if !imp.opts.SkipErrors {
		return imp.write(ctx, row)
	}

	sp := fmt.Sprintf("sp_%d", i)
	if _, err := imp.e.exec(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := imp.write(ctx, row); err != nil {
		if _, rbErr := imp.e.exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		_, _ = imp.e.exec(ctx, "RELEASE SAVEPOINT "+sp)
		return err
	}
	if _, err := imp.e.exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// convert applies column mappings, drops columns the table does not have,
// validates and coerces. The source row is not modified.
func (imp *importer) convert(src types.Row) (types.Row, error) {
	mapped := make(types.Row, len(src))
	for k, v := range src {
		mapped[k] = v
	}
	for _, m := range imp.opts.ColumnMappings {
		v, ok := mapped[m.Source]
		if !ok {
			continue
		}
		delete(mapped, m.Source)
		if m.Transform != nil {
			var err error
			if v, err = m.Transform(v); err != nil {
				return nil, fmt.Errorf("mapping %s: %w", m.Source, err)
			}
		}
		target := m.Target
		if target == "" {
			target = m.Source
		}
		mapped[target] = v
	}

	strict := imp.opts.ValidateData
	out := make(types.Row, len(mapped))
	for _, c := range imp.cols {
		v, ok := mapped[c.name]
		if c.autoIncrement && !imp.opts.IncludeAutoIncrement {
			continue
		}
		if c.primaryKey && c.isUUID() && (!ok || v == nil || v == "") {
			out[c.name] = newUUID()
			continue
		}
		if strict && c.notNull && !c.hasDefault && (!ok || v == nil) {
			return nil, fmt.Errorf("column %s: %w", c.name, types.ErrNotNullViolation)
		}
		if !ok {
			continue
		}
		cv, err := coerce(c, v, strict)
		if err != nil {
			return nil, err
		}
		out[c.name] = cv
	}
	return out, nil
}

// write inserts row, falling back to an UPDATE keyed by the conflict
// columns on a unique violation when UpdateOnConflict is set.
func (imp *importer) write(ctx context.Context, row types.Row) error {
	qt, _ := quote(imp.opts.Table)
	query, args, err := insertSQL(qt, row)
	if err != nil {
		return err
	}
	_, err = imp.e.exec(ctx, query, args...)
	if err == nil || !imp.opts.UpdateOnConflict || !errors.Is(err, types.ErrUniqueViolation) {
		return err
	}

	where := make([]types.WhereClause, 0, len(imp.opts.ConflictColumns))
	data := make(types.Row, len(row))
	conflict := make(map[string]bool, len(imp.opts.ConflictColumns))
	for _, c := range imp.opts.ConflictColumns {
		v, ok := row[c]
		if !ok {
			return fmt.Errorf("conflict column %s has no value: %w", c, err)
		}
		conflict[c] = true
		where = append(where, types.Eq(c, v))
	}
	if len(where) == 0 {
		return err
	}
	for k, v := range row {
		if !conflict[k] {
			data[k] = v
		}
	}
	if len(data) == 0 {
		return nil
	}
	_, updErr := imp.e.Update(ctx, imp.opts.Table, data, where)
	return updErr
}

// defaultConflictColumns keys conflict updates on the primary key. An
// auto-increment key that the import drops from every row cannot match, so
// the table's declared UNIQUE columns are used instead.
func (e *Engine) defaultConflictColumns(table string, cols []column, includeAuto bool) []string {
	var keys []string
	for _, c := range cols {
		if c.primaryKey && (includeAuto || !c.autoIncrement) {
			keys = append(keys, c.name)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	if schema := e.Schema(); schema != nil {
		if t, ok := schema.Table(table); ok {
			for _, c := range t.Columns() {
				if c.Unique && !c.PrimaryKey {
					keys = append(keys, c.Name)
				}
			}
		}
	}
	return keys
}
