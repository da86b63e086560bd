package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// SchemaInfoTable is the bookkeeping table holding the applied schema
// versions. It is append-only; the newest row is the current version.
const SchemaInfoTable = "_schema_info"

const createSchemaInfo = `CREATE TABLE IF NOT EXISTS "` + SchemaInfoTable + `" (
    version TEXT NOT NULL,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// InitializeFromSchema brings the store in line with schema. A store with
// no recorded version is created. A store whose version differs is an
// integrity error unless opts.ForceRecreate is set, in which case every
// user table is dropped and the schema is created afresh. A store whose
// version matches is trusted and no DDL is issued unless
// opts.CreateIfNotExists asks for missing tables to be added.
func (e *Engine) InitializeFromSchema(ctx context.Context, schema *types.DatabaseSchema, opts types.InitOptions) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if e.InTransaction() {
		return types.NewTransactionError("initialize", e.name, "schema initialisation runs its own transaction", types.ErrTransactionActive)
	}

	typeMap := mergeTypeMap(schema.TypeMapping)
	e.mu.Lock()
	e.schema = schema
	e.typeMap = typeMap
	e.mu.Unlock()

	version, found, err := e.readVersion(ctx)
	if err != nil {
		return types.NewIntegrityError("initialize", e.name, "reading schema version", err)
	}

	switch {
	case !found:
		e.log.Info("creating schema", "version", schema.Version, "tables", len(schema.Schemas))
		return e.createSchema(ctx, schema, true)

	case opts.ForceRecreate:
		e.log.Warn("recreating schema", "from", version, "to", schema.Version)
		if err := e.dropAllTables(ctx); err != nil {
			return err
		}
		return e.createSchema(ctx, schema, true)

	case version != schema.Version:
		return types.NewIntegrityError("initialize", e.name,
			fmt.Sprintf("store is at version %q, schema declares %q", version, schema.Version),
			types.ErrSchemaVersionMismatch)

	case opts.CreateIfNotExists:
		e.log.Debug("ensuring schema objects exist", "version", version)
		return e.createSchema(ctx, schema, false)
	}

	e.log.Debug("schema current", "version", version)
	return nil
}

// GetSchemaVersion returns the current recorded version, or "" when the
// store has none.
func (e *Engine) GetSchemaVersion(ctx context.Context) (string, error) {
	version, _, err := e.readVersion(ctx)
	if err != nil {
		return "", e.fail("get_schema_version", SchemaInfoTable, err)
	}
	return version, nil
}

// readVersion reads the bookkeeping table without creating it.
func (e *Engine) readVersion(ctx context.Context) (string, bool, error) {
	exists, err := e.tableExists(ctx, SchemaInfoTable)
	if err != nil || !exists {
		return "", false, err
	}
	res, err := e.exec(ctx, `SELECT version FROM "`+SchemaInfoTable+`" ORDER BY applied_at DESC, rowid DESC LIMIT 1`)
	if err != nil {
		return "", false, err
	}
	row := res.First()
	if row == nil {
		return "", false, nil
	}
	return toString(row["version"]), true, nil
}

// createSchema issues the bookkeeping table, every declared table, and
// their indexes in one transaction. recordVersion appends the version row.
func (e *Engine) createSchema(ctx context.Context, schema *types.DatabaseSchema, recordVersion bool) error {
	stmts, err := schemaDDL(schema, mergeTypeMap(schema.TypeMapping))
	if err != nil {
		return err
	}

	err = e.WithTransaction(ctx, func(ctx context.Context) error {
		for _, stmt := range stmts {
			e.log.Debug("ddl", "sql", stmt)
			if _, err := e.exec(ctx, stmt); err != nil {
				return e.fail("create_schema", "", fmt.Errorf("%s: %w", firstLine(stmt), err))
			}
		}
		if recordVersion {
			if _, err := e.exec(ctx, `INSERT INTO "`+SchemaInfoTable+`" (version) VALUES (?)`, schema.Version); err != nil {
				return e.fail("create_schema", SchemaInfoTable, err)
			}
		}
		return nil
	})
	e.tables.Purge()
	return err
}

// dropAllTables drops every user table, the bookkeeping table included, in
// one transaction. Foreign keys are deferred so drop order does not matter.
func (e *Engine) dropAllTables(ctx context.Context) error {
	err := e.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := e.exec(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
			return e.fail("drop_all", "", err)
		}
		names, err := e.userTables(ctx, true)
		if err != nil {
			return err
		}
		for _, name := range names {
			q, err := quote(name)
			if err != nil {
				// Tables created outside this layer may carry names we
				// would not generate; quote them verbatim.
				q = `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
			}
			if _, err := e.exec(ctx, "DROP TABLE IF EXISTS "+q); err != nil {
				return e.fail("drop_all", name, err)
			}
		}
		return nil
	})
	e.tables.Purge()
	return err
}

// schemaDDL renders the statements that create schema. Tables are emitted
// in name order, each followed by its indexes.
func schemaDDL(schema *types.DatabaseSchema, typeMap map[string]string) ([]string, error) {
	stmts := []string{createSchemaInfo}
	for _, name := range schema.TableNames() {
		t, _ := schema.Table(name)
		ddl, err := tableDDL(t, typeMap)
		if err != nil {
			return nil, types.NewConfigurationError("create_schema", schema.DatabaseName+"."+name, "", err)
		}
		stmts = append(stmts, ddl)
		idx, err := indexDDL(t)
		if err != nil {
			return nil, types.NewConfigurationError("create_schema", schema.DatabaseName+"."+name, "", err)
		}
		stmts = append(stmts, idx...)
	}
	return stmts, nil
}

func tableDDL(t types.TableSchema, typeMap map[string]string) (string, error) {
	qt, err := quote(t.Name)
	if err != nil {
		return "", err
	}
	cols := t.Columns()
	pks := t.PrimaryKeys()

	var defs []string
	for _, c := range cols {
		qc, err := quote(c.Name)
		if err != nil {
			return "", err
		}
		phys := physicalType(typeMap, c.Type)
		def := qc + " " + phys
		if c.PrimaryKey && len(pks) == 1 {
			def += " PRIMARY KEY"
			if c.AutoIncrement && phys == "INTEGER" {
				def += " AUTOINCREMENT"
			}
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Unique && !(c.PrimaryKey && len(pks) == 1) {
			def += " UNIQUE"
		}
		if c.HasDefault() {
			def += " DEFAULT " + defaultLiteral(c.Default)
		}
		if len(c.Enum) > 0 {
			vals := make([]string, len(c.Enum))
			for i, v := range c.Enum {
				vals[i] = sqlString(v)
			}
			def += fmt.Sprintf(" CHECK (%s IN (%s))", qc, strings.Join(vals, ", "))
		}
		defs = append(defs, def)
	}

	if len(pks) > 1 {
		qk, err := quoteAll(pks)
		if err != nil {
			return "", err
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(qk, ", ")+")")
	}

	for _, fk := range t.ForeignKeys {
		qc, err := quote(fk.Column)
		if err != nil {
			return "", err
		}
		rt, err := quote(fk.References.Table)
		if err != nil {
			return "", err
		}
		rc, err := quote(fk.References.Column)
		if err != nil {
			return "", err
		}
		def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", qc, rt, rc)
		for _, action := range []struct{ clause, value string }{
			{"ON DELETE", fk.OnDelete},
			{"ON UPDATE", fk.OnUpdate},
		} {
			if action.value == "" {
				continue
			}
			a, err := referentialAction(action.value)
			if err != nil {
				return "", err
			}
			def += " " + action.clause + " " + a
		}
		defs = append(defs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", qt, strings.Join(defs, ",\n    ")), nil
}

func indexDDL(t types.TableSchema) ([]string, error) {
	qt, err := quote(t.Name)
	if err != nil {
		return nil, err
	}
	var stmts []string
	for _, idx := range t.Indexes {
		name := idx.Name
		if name == "" {
			name = "idx_" + t.Name + "_" + strings.Join(idx.Columns, "_")
		}
		qi, err := quote(name)
		if err != nil {
			return nil, err
		}
		qc, err := quoteAll(idx.Columns)
		if err != nil {
			return nil, err
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)", unique, qi, qt, strings.Join(qc, ", ")))
	}
	return stmts, nil
}

func referentialAction(a string) (string, error) {
	u := strings.ToUpper(strings.Join(strings.Fields(a), " "))
	switch u {
	case "CASCADE", "SET NULL", "SET DEFAULT", "RESTRICT", "NO ACTION":
		return u, nil
	}
	return "", fmt.Errorf("invalid referential action %q", a)
}

// defaultLiteral renders a column default. SQL keywords pass through;
// every other string is quoted.
func defaultLiteral(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		switch strings.ToUpper(x) {
		case "CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "NULL":
			return strings.ToUpper(x)
		}
		return sqlString(x)
	}
	return sqlString(fmt.Sprint(v))
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
