// Package engine implements the schema-driven data-access layer bound to a
// single store handle: schema initialisation and versioning, CRUD built
// from descriptors, transactions, introspection and bulk import.
//
// Every value reaches the store as a bound parameter. Identifiers are
// validated and quoted before they are spliced into SQL.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mesh-intelligence/unisql/internal/logging"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

// DefaultTableCacheSize is the number of tables whose column metadata is
// cached per engine.
const DefaultTableCacheSize = 64

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTableCacheSize sets how many tables' column metadata are cached.
func WithTableCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// Engine is the data-access surface for one logical database.
type Engine struct {
	name string
	conn types.Conn
	log  *logging.Logger

	mu      sync.Mutex
	schema  *types.DatabaseSchema
	typeMap map[string]string
	inTx    bool
	closed  bool

	cacheSize int
	tables    *lru.Cache[string, []types.TableInfo]
}

var _ types.DAO = (*Engine)(nil)

// New binds an engine to conn. name is the logical database name used in
// errors and logs.
func New(name string, conn types.Conn, opts ...Option) *Engine {
	e := &Engine{
		name:      name,
		conn:      conn,
		log:       logging.Discard(),
		typeMap:   defaultTypeMap(),
		cacheSize: DefaultTableCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cacheSize < 1 {
		e.cacheSize = 1
	}
	// lru.New only fails for a non-positive size.
	e.tables, _ = lru.New[string, []types.TableInfo](e.cacheSize)
	e.log = e.log.With("db", name)
	return e
}

// Name returns the logical database name.
func (e *Engine) Name() string { return e.name }

// Schema returns the schema the engine was initialised from, or nil.
func (e *Engine) Schema() *types.DatabaseSchema {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.schema
}

// Execute runs raw SQL with bound params. Statements that change the
// schema invalidate the column metadata cache.
func (e *Engine) Execute(ctx context.Context, query string, params ...any) (*types.Result, error) {
	res, err := e.exec(ctx, query, params...)
	if err != nil {
		return nil, e.fail("execute", "", err)
	}
	if isSchemaChange(query) {
		e.tables.Purge()
	}
	return res, nil
}

// Ping runs the liveness probe.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.exec(ctx, "SELECT 1"); err != nil {
		return types.NewConnectionError("ping", e.name, "liveness probe failed", err)
	}
	return nil
}

// QuickCheck runs PRAGMA quick_check and fails unless the store reports ok.
func (e *Engine) QuickCheck(ctx context.Context) error {
	res, err := e.exec(ctx, "PRAGMA quick_check")
	if err != nil {
		return types.NewIntegrityError("quick_check", e.name, "", errors.Join(types.ErrIntegrityCheck, err))
	}
	for _, row := range res.Rows {
		for _, v := range row {
			if s, _ := v.(string); s != "ok" {
				return types.NewIntegrityError("quick_check", e.name, toString(v), types.ErrIntegrityCheck)
			}
		}
	}
	return nil
}

// Close rolls back any open transaction and closes the handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	inTx := e.inTx
	e.inTx = false
	e.mu.Unlock()

	if inTx {
		if _, err := e.conn.Execute(context.Background(), "ROLLBACK"); err != nil {
			e.log.Warn("rollback on close failed", "error", err)
		}
	}
	e.tables.Purge()
	return e.conn.Close()
}

func (e *Engine) exec(ctx context.Context, query string, params ...any) (*types.Result, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, types.ErrClosed
	}
	return e.conn.Execute(ctx, query, params...)
}

// fail attaches the operation and target to err. Constraint errors keep
// their classification.
func (e *Engine) fail(op, table string, err error) error {
	target := e.qualify(table)
	var dbErr *types.DatabaseError
	if errors.As(err, &dbErr) {
		if dbErr.Target == "" {
			dbErr.Target = target
		}
		if dbErr.Operation == "" || dbErr.Operation == "execute" {
			dbErr.Operation = op
		}
		return err
	}
	return types.NewQueryError(op, target, "", err)
}

func (e *Engine) qualify(table string) string {
	if table == "" {
		return e.name
	}
	if e.name == "" {
		return table
	}
	return e.name + "." + table
}

func isSchemaChange(query string) bool {
	fields := strings.Fields(strings.ToUpper(query))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "CREATE", "DROP", "ALTER":
		return true
	}
	return false
}
