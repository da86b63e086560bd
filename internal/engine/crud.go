package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// prepareRow copies data, fills generated uuid primary keys of declared
// tables and converts values for storage.
func (e *Engine) prepareRow(table string, data types.Row) types.Row {
	e.mu.Lock()
	declared := schemaColumns(e.schema, e.typeMap, table)
	e.mu.Unlock()

	out := make(types.Row, len(data))
	for k, v := range data {
		out[k] = toStorage(declared[k], v)
	}
	for name, c := range declared {
		if !c.primaryKey || !c.isUUID() {
			continue
		}
		if v, ok := out[name]; !ok || v == nil || v == "" {
			out[name] = newUUID()
		}
	}
	return out
}

// binder converts WHERE values using the declared column types of table.
func (e *Engine) binder(table string) func(string, any) any {
	e.mu.Lock()
	declared := schemaColumns(e.schema, e.typeMap, table)
	e.mu.Unlock()
	return func(field string, v any) any {
		return toStorage(declared[field], v)
	}
}

// decodeRows converts stored values back to their logical Go types.
func (e *Engine) decodeRows(table string, rows []types.Row) []types.Row {
	e.mu.Lock()
	declared := schemaColumns(e.schema, e.typeMap, table)
	e.mu.Unlock()
	if len(declared) == 0 {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			if c, ok := declared[k]; ok {
				row[k] = fromStorage(c, v)
			}
		}
	}
	return rows
}

func insertSQL(qt string, row types.Row) (string, []any, error) {
	cols := sortedColumns(row)
	qc, err := quoteAll(cols)
	if err != nil {
		return "", nil, err
	}
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(qc, ", "), placeholders(len(cols))), args, nil
}

// Insert adds one row. Result.LastInsertID carries the rowid of the new
// row.
func (e *Engine) Insert(ctx context.Context, table string, data types.Row) (*types.Result, error) {
	qt, err := quote(table)
	if err != nil {
		return nil, e.fail("insert", table, err)
	}
	if len(data) == 0 {
		return nil, types.NewQueryError("insert", e.qualify(table), "", types.ErrEmptyData)
	}
	query, args, err := insertSQL(qt, e.prepareRow(table, data))
	if err != nil {
		return nil, e.fail("insert", table, err)
	}
	res, err := e.exec(ctx, query, args...)
	if err != nil {
		return nil, e.fail("insert", table, err)
	}
	return res, nil
}

// Update sets data on the rows matching where. A where that matches every
// row, empty or made only of NOT IN against empty lists, is refused before
// anything reaches the store.
func (e *Engine) Update(ctx context.Context, table string, data types.Row, where []types.WhereClause) (*types.Result, error) {
	if unconditional(where) {
		return nil, types.NewQueryError("update", e.qualify(table), "", types.ErrUnconditionalWrite)
	}
	qt, err := quote(table)
	if err != nil {
		return nil, e.fail("update", table, err)
	}
	if len(data) == 0 {
		return nil, types.NewQueryError("update", e.qualify(table), "", types.ErrEmptyData)
	}

	row := make(types.Row, len(data))
	e.mu.Lock()
	declared := schemaColumns(e.schema, e.typeMap, table)
	e.mu.Unlock()
	for k, v := range data {
		row[k] = toStorage(declared[k], v)
	}

	cols := sortedColumns(row)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(where))
	for i, c := range cols {
		qc, err := quote(c)
		if err != nil {
			return nil, e.fail("update", table, err)
		}
		sets[i] = qc + " = ?"
		args = append(args, row[c])
	}
	clause, whereArgs, err := buildWhere(where, e.binder(table))
	if err != nil {
		return nil, e.fail("update", table, err)
	}
	args = append(args, whereArgs...)

	res, err := e.exec(ctx, fmt.Sprintf("UPDATE %s SET %s%s", qt, strings.Join(sets, ", "), clause), args...)
	if err != nil {
		return nil, e.fail("update", table, err)
	}
	return res, nil
}

// Delete removes the rows matching where. It refuses the same
// unconditional where clauses as Update.
func (e *Engine) Delete(ctx context.Context, table string, where []types.WhereClause) (*types.Result, error) {
	if unconditional(where) {
		return nil, types.NewQueryError("delete", e.qualify(table), "", types.ErrUnconditionalWrite)
	}
	qt, err := quote(table)
	if err != nil {
		return nil, e.fail("delete", table, err)
	}
	clause, args, err := buildWhere(where, e.binder(table))
	if err != nil {
		return nil, e.fail("delete", table, err)
	}
	res, err := e.exec(ctx, "DELETE FROM "+qt+clause, args...)
	if err != nil {
		return nil, e.fail("delete", table, err)
	}
	return res, nil
}

// Upsert inserts data or, when a row with the same conflict columns
// exists, updates its remaining columns. conflictColumns defaults to the
// table's primary key.
func (e *Engine) Upsert(ctx context.Context, table string, data types.Row, conflictColumns []string) (*types.Result, error) {
	qt, err := quote(table)
	if err != nil {
		return nil, e.fail("upsert", table, err)
	}
	if len(data) == 0 {
		return nil, types.NewQueryError("upsert", e.qualify(table), "", types.ErrEmptyData)
	}
	if len(conflictColumns) == 0 {
		conflictColumns, err = e.primaryKeys(ctx, table)
		if err != nil {
			return nil, e.fail("upsert", table, err)
		}
		if len(conflictColumns) == 0 {
			return nil, types.NewQueryError("upsert", e.qualify(table), "no conflict columns and no primary key", nil)
		}
	}
	qconf, err := quoteAll(conflictColumns)
	if err != nil {
		return nil, e.fail("upsert", table, err)
	}

	row := e.prepareRow(table, data)
	query, args, err := insertSQL(qt, row)
	if err != nil {
		return nil, e.fail("upsert", table, err)
	}

	conflict := make(map[string]bool, len(conflictColumns))
	for _, c := range conflictColumns {
		conflict[c] = true
	}
	var sets []string
	for _, c := range sortedColumns(row) {
		if conflict[c] {
			continue
		}
		qc, _ := quote(c)
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", qc, qc))
	}
	if len(sets) == 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(qconf, ", "))
	} else {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(qconf, ", "), strings.Join(sets, ", "))
	}

	res, err := e.exec(ctx, query, args...)
	if err != nil {
		return nil, e.fail("upsert", table, err)
	}
	return res, nil
}

// Select returns the first row matching opts, or ErrNotFound.
func (e *Engine) Select(ctx context.Context, table string, opts types.QueryOptions) (types.Row, error) {
	opts.Limit = 1
	rows, err := e.selectRows(ctx, "select", table, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.NewQueryError("select", e.qualify(table), "", types.ErrNotFound)
	}
	return rows[0], nil
}

// SelectAll returns every row matching opts. No match is an empty slice.
func (e *Engine) SelectAll(ctx context.Context, table string, opts types.QueryOptions) ([]types.Row, error) {
	rows, err := e.selectRows(ctx, "select_all", table, opts)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []types.Row{}
	}
	return rows, nil
}

func (e *Engine) selectRows(ctx context.Context, op, table string, opts types.QueryOptions) ([]types.Row, error) {
	query, args, err := buildSelect(table, opts, e.binder(table))
	if err != nil {
		return nil, e.fail(op, table, err)
	}
	res, err := e.exec(ctx, query, args...)
	if err != nil {
		return nil, e.fail(op, table, err)
	}
	return e.decodeRows(table, res.Rows), nil
}

// FindByID selects the row whose single-column primary key equals id.
func (e *Engine) FindByID(ctx context.Context, table string, id any) (types.Row, error) {
	pks, err := e.primaryKeys(ctx, table)
	if err != nil {
		return nil, e.fail("find_by_id", table, err)
	}
	if len(pks) != 1 {
		return nil, types.NewQueryError("find_by_id", e.qualify(table),
			fmt.Sprintf("table has %d primary key columns, need exactly one", len(pks)), nil)
	}
	return e.Select(ctx, table, types.QueryOptions{Where: []types.WhereClause{types.Eq(pks[0], id)}})
}

// Count returns the number of rows matching where.
func (e *Engine) Count(ctx context.Context, table string, where []types.WhereClause) (int64, error) {
	qt, err := quote(table)
	if err != nil {
		return 0, e.fail("count", table, err)
	}
	clause, args, err := buildWhere(where, e.binder(table))
	if err != nil {
		return 0, e.fail("count", table, err)
	}
	res, err := e.exec(ctx, "SELECT COUNT(*) AS n FROM "+qt+clause, args...)
	if err != nil {
		return 0, e.fail("count", table, err)
	}
	n, err := toInt64(res.First()["n"])
	if err != nil {
		return 0, e.fail("count", table, err)
	}
	return n, nil
}

// Exists reports whether any row matches where.
func (e *Engine) Exists(ctx context.Context, table string, where []types.WhereClause) (bool, error) {
	qt, err := quote(table)
	if err != nil {
		return false, e.fail("exists", table, err)
	}
	clause, args, err := buildWhere(where, e.binder(table))
	if err != nil {
		return false, e.fail("exists", table, err)
	}
	res, err := e.exec(ctx, "SELECT 1 AS found FROM "+qt+clause+" LIMIT 1", args...)
	if err != nil {
		return false, e.fail("exists", table, err)
	}
	return len(res.Rows) > 0, nil
}
