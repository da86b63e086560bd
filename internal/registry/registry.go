// Package registry stores the schema definitions and role configurations a
// manager serves. A registry is an explicit value owned by its manager.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// SchemaProvider supplies schemas that were not registered directly, for
// example from a directory of definition files.
type SchemaProvider interface {
	Schema(name string) (*types.DatabaseSchema, bool, error)
}

// Registry maps logical database names to schemas and role names to role
// configurations.
type Registry struct {
	mu       sync.RWMutex
	schemas  map[string]*types.DatabaseSchema
	roles    map[string]types.RoleConfig
	provider SchemaProvider
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		schemas: make(map[string]*types.DatabaseSchema),
		roles:   make(map[string]types.RoleConfig),
	}
}

// SetProvider attaches a fallback provider consulted by GetSchema after the
// internal store. A nil provider detaches it.
func (r *Registry) SetProvider(p SchemaProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = p
}

// RegisterSchema stores schema under name, replacing any earlier entry.
func (r *Registry) RegisterSchema(name string, schema *types.DatabaseSchema) error {
	if name == "" {
		return types.NewConfigurationError("register_schema", name, "name is empty", types.ErrInvalidIdentifier)
	}
	if schema == nil {
		return types.NewConfigurationError("register_schema", name, "schema is nil", types.ErrInvalidSchema)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[name] = schema
	return nil
}

// RegisterSchemas registers every entry in schemas. Entries are applied in
// name order and the first failure stops the batch.
func (r *Registry) RegisterSchemas(schemas map[string]*types.DatabaseSchema) error {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.RegisterSchema(name, schemas[name]); err != nil {
			return err
		}
	}
	return nil
}

// GetSchema returns the schema registered under name, falling back to the
// provider. Provider results are not copied into the registry.
func (r *Registry) GetSchema(name string) (*types.DatabaseSchema, error) {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	provider := r.provider
	r.mu.RUnlock()

	if ok {
		return schema, nil
	}
	if provider != nil {
		schema, found, err := provider.Schema(name)
		if err != nil {
			return nil, types.NewConfigurationError("get_schema", name, "provider failed", err)
		}
		if found {
			return schema, nil
		}
	}
	return nil, types.NewConfigurationError("get_schema", name, "", types.ErrSchemaNotFound)
}

// HasSchema reports whether GetSchema would find name.
func (r *Registry) HasSchema(name string) bool {
	_, err := r.GetSchema(name)
	return err == nil
}

// Unregister removes the schema registered under name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schemas, name)
}

// SchemaNames returns the directly registered schema names, sorted.
func (r *Registry) SchemaNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.schemas)
}

// RegisterRole stores cfg under its role name.
func (r *Registry) RegisterRole(cfg types.RoleConfig) error {
	if cfg.RoleName == "" {
		return types.NewConfigurationError("register_role", "", "role name is empty", types.ErrInvalidIdentifier)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[cfg.RoleName] = cfg
	return nil
}

// RegisterRoles registers each role in order.
func (r *Registry) RegisterRoles(roles []types.RoleConfig) error {
	for _, cfg := range roles {
		if err := r.RegisterRole(cfg); err != nil {
			return err
		}
	}
	return nil
}

// GetRole returns the role registered under name.
func (r *Registry) GetRole(name string) (types.RoleConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.roles[name]
	if !ok {
		return types.RoleConfig{}, types.NewConfigurationError("get_role", name, "", types.ErrRoleNotFound)
	}
	return cfg, nil
}

// GetRoleDatabases returns the required then optional databases of the
// role, deduplicated.
func (r *Registry) GetRoleDatabases(name string) ([]string, error) {
	cfg, err := r.GetRole(name)
	if err != nil {
		return nil, err
	}
	return cfg.Databases(), nil
}

// RoleNames returns the registered role names, sorted.
func (r *Registry) RoleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.roles)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String summarises the registry for logs.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("registry(%d schemas, %d roles)", len(r.schemas), len(r.roles))
}
