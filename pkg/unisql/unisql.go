// Package unisql is the public entry point: it builds a connection manager
// over the SQLite drivers linked into the binary.
//
// Example:
//
//	mgr, err := unisql.New(types.Config{DataDir: "/var/lib/app"},
//	    unisql.WithSchemaDir("/etc/app/schemas"))
//	if err != nil {
//	    return err
//	}
//	defer mgr.CloseAll(ctx)
//
//	core, err := mgr.GetOrOpenConnection(ctx, types.CoreDatabase)
package unisql

import (
	"log/slog"
	"path/filepath"

	"github.com/mesh-intelligence/unisql/internal/logging"
	"github.com/mesh-intelligence/unisql/internal/manager"
	"github.com/mesh-intelligence/unisql/internal/schemafile"
	"github.com/mesh-intelligence/unisql/internal/sqlite"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Version is the library and CLI version.
const Version = "0.3.0"

type settings struct {
	managerOpts []manager.Option
	schemaDir   string
}

// Option configures New.
type Option func(*settings)

// WithLogger routes manager and engine logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.managerOpts = append(s.managerOpts, manager.WithLogger(&logging.Logger{Logger: l}))
		}
	}
}

// WithDrivers replaces the linked SQLite drivers. Drivers are tried in the
// given order.
func WithDrivers(drivers ...types.Driver) Option {
	return func(s *settings) {
		s.managerOpts = append(s.managerOpts, manager.WithDrivers(drivers...))
	}
}

// WithSchemaDir registers every schema file in dir and the roles in
// dir/roles.yaml, and serves schemas added to dir later on demand.
func WithSchemaDir(dir string) Option {
	return func(s *settings) {
		s.schemaDir = dir
	}
}

// Drivers returns the SQLite drivers linked into this build, preferred
// first.
func Drivers() []types.Driver {
	return sqlite.DefaultDrivers()
}

// New creates a connection manager. Nothing is opened until the first
// GetOrOpenConnection.
func New(cfg types.Config, opts ...Option) (types.ConnectionManager, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	var (
		schemas map[string]*types.DatabaseSchema
		roles   []types.RoleConfig
	)
	if s.schemaDir != "" {
		var err error
		if schemas, err = schemafile.LoadDir(s.schemaDir); err != nil {
			return nil, err
		}
		if roles, err = schemafile.LoadRoles(filepath.Join(s.schemaDir, schemafile.RolesFile)); err != nil {
			return nil, err
		}
		s.managerOpts = append(s.managerOpts, manager.WithSchemaProvider(schemafile.NewProvider(s.schemaDir)))
	}

	m, err := manager.New(cfg, s.managerOpts...)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterSchemas(schemas); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if err := m.RegisterRole(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}
