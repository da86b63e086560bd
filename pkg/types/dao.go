package types

import "context"

// TableInfo is one physical column as reported by the store.
type TableInfo struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue any
	PrimaryKey   bool
}

// DatabaseInfo summarises a physical store.
type DatabaseInfo struct {
	Name          string
	Version       string
	Tables        []string
	PageCount     int64
	PageSize      int64
	InTransaction bool
}

// InitOptions is the creation policy applied when a store is initialised
// from its schema. The zero value trusts an existing store whose version
// matches and issues no DDL.
type InitOptions struct {
	// CreateIfNotExists re-runs the idempotent creation pass on a store
	// whose version matches, adding tables and indexes that are missing.
	CreateIfNotExists bool `json:"create_if_not_exists" yaml:"create_if_not_exists"`

	// ForceRecreate drops every user table before creating the schema.
	ForceRecreate bool `json:"force_recreate" yaml:"force_recreate"`
}

// DAO is the driver-agnostic data-access surface bound to one handle.
type DAO interface {
	// Name returns the logical database name this DAO serves.
	Name() string

	InitializeFromSchema(ctx context.Context, schema *DatabaseSchema, opts InitOptions) error
	GetSchemaVersion(ctx context.Context) (string, error)

	Execute(ctx context.Context, query string, params ...any) (*Result, error)
	Insert(ctx context.Context, table string, data Row) (*Result, error)
	Update(ctx context.Context, table string, data Row, where []WhereClause) (*Result, error)
	Delete(ctx context.Context, table string, where []WhereClause) (*Result, error)
	Upsert(ctx context.Context, table string, data Row, conflictColumns []string) (*Result, error)
	Select(ctx context.Context, table string, opts QueryOptions) (Row, error)
	SelectAll(ctx context.Context, table string, opts QueryOptions) ([]Row, error)
	FindByID(ctx context.Context, table string, id any) (Row, error)
	Count(ctx context.Context, table string, where []WhereClause) (int64, error)
	Exists(ctx context.Context, table string, where []WhereClause) (bool, error)

	BeginTransaction(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	InTransaction() bool
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	ImportData(ctx context.Context, opts ImportOptions) (*ImportResult, error)

	GetTableInfo(ctx context.Context, table string) ([]TableInfo, error)
	ListTables(ctx context.Context) ([]string, error)
	TableExists(ctx context.Context, table string) (bool, error)
	DropTable(ctx context.Context, table string) error
	TruncateTable(ctx context.Context, table string) error
	GetDatabaseInfo(ctx context.Context) (*DatabaseInfo, error)
	Vacuum(ctx context.Context) error

	// Ping runs the liveness probe against the handle.
	Ping(ctx context.Context) error
	// Close closes the underlying handle.
	Close() error
}
