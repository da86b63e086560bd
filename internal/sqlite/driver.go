// Package sqlite adapts database/sql SQLite drivers to the types.Driver
// capability interface. The pure-Go modernc.org/sqlite driver is always
// linked; the CGO mattn/go-sqlite3 driver is linked with the cgo_sqlite
// build tag and, when present, is preferred.
//
// Build modes:
//   - Default (CGO_ENABLED=0): modernc.org/sqlite only
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3 first, modernc second
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Driver names as they appear in configuration.
const (
	DriverName    = "modernc"
	CGODriverName = "mattn"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// Option configures a Driver.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	foreignKeys bool
}

// WithBusyTimeout sets PRAGMA busy_timeout on every handle.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// WithForeignKeys toggles PRAGMA foreign_keys. Foreign keys are on by default.
func WithForeignKeys(enabled bool) Option {
	return func(o *options) {
		o.foreignKeys = enabled
	}
}

// Driver opens SQLite stores through one database/sql driver.
type Driver struct {
	name      string
	sqlName   string
	opts      options
	classify  func(error) error
	supported func() bool
}

// cgoDriver is set by the cgo_sqlite build.
var cgoDriver func(opts ...Option) *Driver

func newDriver(name, sqlName string, classify func(error) error, opts []Option) *Driver {
	o := options{busyTimeout: types.DefaultBusyTimeout, foreignKeys: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Driver{
		name:      name,
		sqlName:   sqlName,
		opts:      o,
		classify:  classify,
		supported: func() bool { return true },
	}
}

// NewDriver returns the pure-Go driver backed by modernc.org/sqlite.
func NewDriver(opts ...Option) *Driver {
	return newDriver(DriverName, "sqlite", classifyModernc, opts)
}

// DefaultDrivers returns the drivers linked into this build in preference
// order.
func DefaultDrivers(opts ...Option) []types.Driver {
	var drivers []types.Driver
	if cgoDriver != nil {
		drivers = append(drivers, cgoDriver(opts...))
	}
	return append(drivers, NewDriver(opts...))
}

// Name returns the configuration name of the driver.
func (d *Driver) Name() string { return d.name }

// IsSupported reports whether the driver can open stores in this process.
func (d *Driver) IsSupported() bool { return d.supported() }

// Connect opens the store at path, pins a single session and applies the
// connection pragmas. An empty path opens an in-memory store.
func (d *Driver) Connect(ctx context.Context, path string) (types.Conn, error) {
	if path == "" {
		path = MemoryPath
	}
	db, err := sql.Open(d.sqlName, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// Transaction statements arrive through Execute, so every statement
	// must run on the same session.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}

	for _, pragma := range d.pragmas() {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			db.Close()
			return nil, fmt.Errorf("applying %q to %s: %w", pragma, path, err)
		}
	}

	return &Conn{
		db:       db,
		conn:     conn,
		path:     path,
		classify: d.classify,
	}, nil
}

func (d *Driver) pragmas() []string {
	fk := "OFF"
	if d.opts.foreignKeys {
		fk = "ON"
	}
	return []string{
		"PRAGMA foreign_keys = " + fk,
		fmt.Sprintf("PRAGMA busy_timeout = %d", d.opts.busyTimeout.Milliseconds()),
	}
}
