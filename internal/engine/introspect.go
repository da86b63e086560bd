package engine

import (
	"context"
	"strings"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// GetTableInfo returns the physical columns of table. Results are cached
// until the next schema change made through this engine.
func (e *Engine) GetTableInfo(ctx context.Context, table string) ([]types.TableInfo, error) {
	qt, err := quote(table)
	if err != nil {
		return nil, e.fail("get_table_info", table, err)
	}
	if info, ok := e.tables.Get(table); ok {
		return info, nil
	}

	res, err := e.exec(ctx, "PRAGMA table_info("+qt+")")
	if err != nil {
		return nil, e.fail("get_table_info", table, err)
	}
	if len(res.Rows) == 0 {
		return nil, types.NewQueryError("get_table_info", e.qualify(table), "table does not exist", types.ErrNotFound)
	}

	info := make([]types.TableInfo, 0, len(res.Rows))
	for _, row := range res.Rows {
		cid, _ := toInt64(row["cid"])
		notNull, _ := toInt64(row["notnull"])
		pk, _ := toInt64(row["pk"])
		info = append(info, types.TableInfo{
			CID:          int(cid),
			Name:         toString(row["name"]),
			Type:         toString(row["type"]),
			NotNull:      notNull != 0,
			DefaultValue: row["dflt_value"],
			PrimaryKey:   pk != 0,
		})
	}
	e.tables.Add(table, info)
	return info, nil
}

// ListTables returns the user tables in name order. SQLite internal tables
// and the bookkeeping table are excluded.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	names, err := e.userTables(ctx, false)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (e *Engine) userTables(ctx context.Context, includeBookkeeping bool) ([]string, error) {
	res, err := e.exec(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, e.fail("list_tables", "", err)
	}
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		name := toString(row["name"])
		if name == SchemaInfoTable && !includeBookkeeping {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// TableExists reports whether table exists in the store.
func (e *Engine) TableExists(ctx context.Context, table string) (bool, error) {
	if !validIdent(table) {
		return false, e.fail("table_exists", table, types.ErrInvalidIdentifier)
	}
	ok, err := e.tableExists(ctx, table)
	if err != nil {
		return false, e.fail("table_exists", table, err)
	}
	return ok, nil
}

func (e *Engine) tableExists(ctx context.Context, table string) (bool, error) {
	res, err := e.exec(ctx, "SELECT 1 AS found FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// DropTable drops table if it exists.
func (e *Engine) DropTable(ctx context.Context, table string) error {
	qt, err := quote(table)
	if err != nil {
		return e.fail("drop_table", table, err)
	}
	if _, err := e.exec(ctx, "DROP TABLE IF EXISTS "+qt); err != nil {
		return e.fail("drop_table", table, err)
	}
	e.tables.Remove(table)
	e.log.Info("dropped table", "table", table)
	return nil
}

// TruncateTable deletes every row of table and resets its auto-increment
// counter.
func (e *Engine) TruncateTable(ctx context.Context, table string) error {
	qt, err := quote(table)
	if err != nil {
		return e.fail("truncate_table", table, err)
	}
	if _, err := e.exec(ctx, "DELETE FROM "+qt); err != nil {
		return e.fail("truncate_table", table, err)
	}
	// sqlite_sequence only exists once an AUTOINCREMENT table was created.
	hasSeq, err := e.tableExists(ctx, "sqlite_sequence")
	if err != nil {
		return e.fail("truncate_table", table, err)
	}
	if hasSeq {
		if _, err := e.exec(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
			return e.fail("truncate_table", table, err)
		}
	}
	return nil
}

// GetDatabaseInfo summarises the store.
func (e *Engine) GetDatabaseInfo(ctx context.Context) (*types.DatabaseInfo, error) {
	version, err := e.GetSchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := e.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	info := &types.DatabaseInfo{
		Name:          e.name,
		Version:       version,
		Tables:        tables,
		InTransaction: e.InTransaction(),
	}
	for pragma, dst := range map[string]*int64{
		"page_count": &info.PageCount,
		"page_size":  &info.PageSize,
	} {
		res, err := e.exec(ctx, "PRAGMA "+pragma)
		if err != nil {
			return nil, e.fail("get_database_info", "", err)
		}
		if row := res.First(); row != nil {
			*dst, _ = toInt64(row[pragma])
		}
	}
	return info, nil
}

// Vacuum rebuilds the store file. SQLite refuses to vacuum inside a
// transaction.
func (e *Engine) Vacuum(ctx context.Context) error {
	if e.InTransaction() {
		return types.NewTransactionError("vacuum", e.name, "", types.ErrTransactionActive)
	}
	if _, err := e.exec(ctx, "VACUUM"); err != nil {
		return e.fail("vacuum", "", err)
	}
	return nil
}

// columns merges physical column facts with the schema declaration of
// table. Without a declaration, a single INTEGER primary key is treated as
// auto-assigned because SQLite aliases it to the rowid.
func (e *Engine) columns(ctx context.Context, table string) ([]column, error) {
	info, err := e.GetTableInfo(ctx, table)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	declared := schemaColumns(e.schema, e.typeMap, table)
	e.mu.Unlock()

	pkCount := 0
	for _, ti := range info {
		if ti.PrimaryKey {
			pkCount++
		}
	}

	cols := make([]column, 0, len(info))
	for _, ti := range info {
		c := column{
			name:       ti.Name,
			physical:   strings.ToUpper(ti.Type),
			primaryKey: ti.PrimaryKey,
			notNull:    ti.NotNull,
			hasDefault: ti.DefaultValue != nil,
		}
		if d, ok := declared[ti.Name]; ok {
			c.logical = d.logical
			c.autoIncrement = d.autoIncrement
			c.enum = d.enum
			c.hasDefault = c.hasDefault || d.hasDefault
		} else {
			c.autoIncrement = ti.PrimaryKey && pkCount == 1 && c.physical == "INTEGER"
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// primaryKeys returns the primary key columns of table, from the schema
// when declared there and from the store otherwise.
func (e *Engine) primaryKeys(ctx context.Context, table string) ([]string, error) {
	e.mu.Lock()
	schema := e.schema
	e.mu.Unlock()
	if schema != nil {
		if t, ok := schema.Table(table); ok {
			if pks := t.PrimaryKeys(); len(pks) > 0 {
				return pks, nil
			}
		}
	}
	info, err := e.GetTableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	var pks []string
	for _, ti := range info {
		if ti.PrimaryKey {
			pks = append(pks, ti.Name)
		}
	}
	return pks, nil
}
