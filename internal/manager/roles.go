package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// SetUserRoles replaces the role session. The new active set is every
// database the roles name plus core. Required databases that are not yet
// open are opened first; if any of them fails, the handles opened by this
// call are closed again, the previous session stays in force and the error
// names every failure. Optional databases are opened best-effort. Handles
// outside the new set are closed.
func (m *Manager) SetUserRoles(ctx context.Context, roles []string, primary string) error {
	required := map[string]bool{}
	optional := map[string]bool{}
	if m.registry.HasSchema(types.CoreDatabase) {
		required[types.CoreDatabase] = true
	}

	for _, r := range roles {
		cfg, err := m.registry.GetRole(r)
		if err != nil {
			return err
		}
		for _, db := range cfg.RequiredDatabases {
			required[db] = true
		}
		for _, db := range cfg.OptionalDatabases {
			optional[db] = true
		}
	}
	if primary != "" && !slices.Contains(roles, primary) {
		return types.NewConfigurationError("set_user_roles", primary, "primary role is not among the roles", types.ErrRoleNotFound)
	}

	active := map[string]bool{types.CoreDatabase: true}
	for db := range required {
		active[db] = true
	}
	for db := range optional {
		active[db] = true
	}

	var (
		opened []string
		failed []string
		errs   []error
	)
	for _, db := range sortedKeys(required) {
		if m.isOpen(db) {
			continue
		}
		if _, err := m.open(ctx, db); err != nil {
			failed = append(failed, db)
			errs = append(errs, fmt.Errorf("%s: %w", db, err))
			continue
		}
		opened = append(opened, db)
	}
	if len(errs) > 0 {
		for _, db := range opened {
			if err := m.CloseConnection(ctx, db); err != nil {
				m.log.Warn("closing handle after failed role change", "db", db, "error", err)
			}
		}
		m.log.Warn("role change rejected", "roles", roles, "failed", failed)
		return types.NewConnectionError("set_user_roles", strings.Join(failed, ","),
			"required databases failed to open", errors.Join(errs...))
	}

	for _, db := range sortedKeys(optional) {
		if required[db] || m.isOpen(db) {
			continue
		}
		if _, err := m.open(ctx, db); err != nil {
			m.log.Warn("optional database unavailable", "db", db, "error", err)
		}
	}

	m.mu.Lock()
	m.roles = slices.Clone(roles)
	m.primary = primary
	m.active = active
	stale := make([]string, 0)
	for name := range m.conns {
		if !active[name] {
			stale = append(stale, name)
		}
	}
	m.mu.Unlock()

	sort.Strings(stale)
	for _, name := range stale {
		if err := m.CloseConnection(ctx, name); err != nil {
			m.log.Warn("closing handle outside active roles", "db", name, "error", err)
		}
	}

	m.log.Info("roles changed", "roles", roles, "primary", primary, "active", sortedKeys(active))
	return nil
}

// CurrentRoles returns the roles of the current session.
func (m *Manager) CurrentRoles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.roles)
}

// PrimaryRole returns the primary role of the current session.
func (m *Manager) PrimaryRole() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

// ActiveDatabases returns the sorted active set, or nil when no role
// session has started.
func (m *Manager) ActiveDatabases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return sortedKeys(m.active)
}

func (m *Manager) isOpen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[name]
	return ok
}

// requiredByRoles lists core and the required databases of the current
// roles.
func (m *Manager) requiredByRoles() []string {
	m.mu.Lock()
	roles := slices.Clone(m.roles)
	m.mu.Unlock()

	set := map[string]bool{}
	if m.registry.HasSchema(types.CoreDatabase) {
		set[types.CoreDatabase] = true
	}
	for _, r := range roles {
		cfg, err := m.registry.GetRole(r)
		if err != nil {
			m.log.Warn("role vanished from registry", "role", r, "error", err)
			continue
		}
		for _, db := range cfg.RequiredDatabases {
			set[db] = true
		}
	}
	return sortedKeys(set)
}
