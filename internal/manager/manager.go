// Package manager owns the handles of every logical database a process
// uses. It opens stores lazily on first access, enforces the connection
// ceiling, applies role-based access, suspends and resumes handles and
// tells subscribers when a handle was replaced.
package manager

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/unisql/internal/driver"
	"github.com/mesh-intelligence/unisql/internal/engine"
	"github.com/mesh-intelligence/unisql/internal/logging"
	"github.com/mesh-intelligence/unisql/internal/registry"
	"github.com/mesh-intelligence/unisql/internal/sqlite"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger. Engines inherit it.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithDrivers replaces the default driver list. Drivers are tried in the
// given order.
func WithDrivers(drivers ...types.Driver) Option {
	return func(m *Manager) {
		m.drivers = driver.NewRegistry(drivers...)
	}
}

// WithRegistry shares an existing schema and role registry.
func WithRegistry(r *registry.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithSchemaProvider attaches a fallback schema source to the registry.
func WithSchemaProvider(p registry.SchemaProvider) Option {
	return func(m *Manager) {
		m.provider = p
	}
}

// WithEngineOptions passes options to every engine the manager creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// entry is one open handle.
type entry struct {
	engine  *engine.Engine
	path    string
	driver  string
	version string
}

type subscriber struct {
	id string
	fn types.ReconnectFunc
}

// Manager implements types.ConnectionManager.
type Manager struct {
	cfg        types.Config
	registry   *registry.Registry
	provider   registry.SchemaProvider
	drivers    *driver.Registry
	log        *logging.Logger
	engineOpts []engine.Option
	group      singleflight.Group

	mu        sync.Mutex
	maxConns  int
	conns     map[string]*entry
	opening   map[string]bool
	closing   map[string]int // handles still being closed, per name
	policies  map[string]types.InitOptions
	roles     []string
	primary   string
	active    map[string]bool // nil until a role session starts
	wasActive []string
	subs      map[string][]subscriber
}

var _ types.ConnectionManager = (*Manager)(nil)

// New creates a manager. Zero values in cfg take their defaults.
func New(cfg types.Config, opts ...Option) (*Manager, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		maxConns: cfg.MaxConnections,
		conns:    make(map[string]*entry),
		opening:  make(map[string]bool),
		closing:  make(map[string]int),
		policies: make(map[string]types.InitOptions),
		subs:     make(map[string][]subscriber),
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = registry.New()
	}
	if m.provider != nil {
		m.registry.SetProvider(m.provider)
	}
	if m.drivers == nil {
		m.drivers = driver.NewRegistry(sqlite.DefaultDrivers(sqlite.WithBusyTimeout(cfg.BusyTimeout))...)
	}
	m.log = m.log.With("component", "manager")
	m.engineOpts = append([]engine.Option{engine.WithLogger(m.log.With("component", "engine"))}, m.engineOpts...)

	m.log.Debug("manager created",
		"max_connections", cfg.MaxConnections,
		"data_dir", cfg.DataDir,
		"drivers", m.drivers.Names())
	return m, nil
}

// Registry returns the schema and role registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// RegisterSchema registers schema under name.
func (m *Manager) RegisterSchema(name string, schema *types.DatabaseSchema) error {
	return m.registry.RegisterSchema(name, schema)
}

// RegisterSchemas registers every entry in schemas.
func (m *Manager) RegisterSchemas(schemas map[string]*types.DatabaseSchema) error {
	return m.registry.RegisterSchemas(schemas)
}

// RegisterRole registers a role configuration.
func (m *Manager) RegisterRole(role types.RoleConfig) error {
	return m.registry.RegisterRole(role)
}

// SetCreationPolicy sets how the store for name is initialised the next
// time it is opened.
func (m *Manager) SetCreationPolicy(name string, opts types.InitOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[name] = opts
}

// SetMaxConnections changes the connection ceiling. It fails when n is
// below one or below the number of handles currently holding a slot.
func (m *Manager) SetMaxConnections(n int) error {
	if n < 1 {
		return types.NewConfigurationError("set_max_connections", "max_connections",
			fmt.Sprintf("must be at least 1, got %d", n), types.ErrInvalidCapacity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if used := m.slotsInUse(); n < used {
		return types.NewCapacityError("set_max_connections", "max_connections",
			fmt.Sprintf("%d handles open, cannot lower ceiling to %d", used, n))
	}
	m.maxConns = n
	return nil
}

// MaxConnections returns the connection ceiling.
func (m *Manager) MaxConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConns
}

// OpenCount returns the number of open handles.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// OpenNames returns the names with an open handle, sorted.
func (m *Manager) OpenNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.conns)
}

// Status reports every name the manager knows about.
func (m *Manager) Status() []types.ConnectionStatus {
	registered := m.registry.SchemaNames()

	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]bool)
	for _, n := range registered {
		known[n] = true
	}
	for n := range m.conns {
		known[n] = true
	}
	for n := range m.opening {
		known[n] = true
	}
	for n := range m.closing {
		known[n] = true
	}

	isRegistered := make(map[string]bool, len(registered))
	for _, n := range registered {
		isRegistered[n] = true
	}

	out := make([]types.ConnectionStatus, 0, len(known))
	for _, name := range sortedKeys(known) {
		st := types.ConnectionStatus{
			Name:   name,
			State:  types.StateUnregistered,
			Path:   m.storePath(name),
			Active: m.active == nil || m.active[name],
		}
		switch {
		case m.closing[name] > 0:
			st.State = types.StateClosing
		case m.conns[name] != nil:
			st.State = types.StateOpen
			st.Version = m.conns[name].version
		case m.opening[name]:
			st.State = types.StateConnecting
		case isRegistered[name]:
			st.State = types.StateRegistered
		}
		out = append(out, st)
	}
	return out
}

// slotsInUse counts handles that hold a connection slot: open, opening, and
// those whose Close has not returned yet. Callers hold m.mu.
func (m *Manager) slotsInUse() int {
	used := len(m.conns) + len(m.opening)
	for _, n := range m.closing {
		used += n
	}
	return used
}

// storePath maps a logical name to its store. Without a data directory
// every store lives in memory.
func (m *Manager) storePath(name string) string {
	if m.cfg.DataDir == "" {
		return sqlite.MemoryPath
	}
	return filepath.Join(m.cfg.DataDir, name+".db")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
