package manager

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/unisql/internal/engine"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

// HasAccess reports whether name may be opened under the current role
// session. Before any session starts every registered schema is reachable.
func (m *Manager) HasAccess(name string) bool {
	if !m.registry.HasSchema(name) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active == nil || m.active[name]
}

func (m *Manager) checkAccess(op, name string) error {
	if !m.registry.HasSchema(name) {
		return types.NewDatabaseError(types.ErrorTypeAccess, op, name, "no schema registered",
			fmt.Errorf("%w: %w", types.ErrAccessDenied, types.ErrSchemaNotFound))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && !m.active[name] {
		return types.NewAccessError(op, name, "not granted by the active roles")
	}
	return nil
}

// GetOrOpenConnection returns the DAO for name, opening the store on first
// use. A cached handle that fails its liveness check is closed and
// reopened, and reconnect subscribers are told about the replacement.
func (m *Manager) GetOrOpenConnection(ctx context.Context, name string) (types.DAO, error) {
	e, err := m.getOrOpen(ctx, "get_connection", name, false)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EnsureConnection is GetOrOpenConnection with the full post-open probe
// applied to a cached handle as well.
func (m *Manager) EnsureConnection(ctx context.Context, name string) (types.DAO, error) {
	e, err := m.getOrOpen(ctx, "ensure_connection", name, true)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (m *Manager) getOrOpen(ctx context.Context, op, name string, full bool) (*engine.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.checkAccess(op, name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	ent := m.conns[name]
	m.mu.Unlock()

	if ent == nil {
		return m.open(ctx, name)
	}

	var err error
	if full {
		err = m.probe(ctx, ent.engine)
	} else {
		err = ent.engine.Ping(ctx)
	}
	if err == nil {
		return ent.engine, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	m.log.Warn("handle failed liveness check, reopening", "db", name, "error", err)
	m.drop(name, ent)
	e, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	m.publish(ctx, name, e)
	return e, nil
}

// open returns the open handle for name or opens one. Concurrent callers
// for the same name share a single attempt. Access is not checked here.
func (m *Manager) open(ctx context.Context, name string) (*engine.Engine, error) {
	// Joined callers must not inherit the first caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, joined := m.group.Do(name, func() (any, error) {
		return m.doOpen(shared, name)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		m.log.Debug("joined in-flight open", "db", name)
	}
	return v.(*engine.Engine), nil
}

func (m *Manager) doOpen(ctx context.Context, name string) (*engine.Engine, error) {
	schema, err := m.registry.GetSchema(name)
	if err != nil {
		return nil, types.NewDatabaseError(types.ErrorTypeAccess, "open_connection", name, "no schema registered",
			fmt.Errorf("%w: %w", types.ErrAccessDenied, err))
	}

	m.mu.Lock()
	if ent, ok := m.conns[name]; ok {
		m.mu.Unlock()
		return ent.engine, nil
	}
	if used := m.slotsInUse(); used >= m.maxConns {
		m.mu.Unlock()
		return nil, types.NewCapacityError("open_connection", name,
			fmt.Sprintf("%d of %d handles open", used, m.maxConns))
	}
	m.opening[name] = true
	policy := m.policies[name]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.opening, name)
		m.mu.Unlock()
	}()

	drv, err := m.drivers.Select(m.cfg.Driver)
	if err != nil {
		return nil, err
	}
	if m.cfg.DataDir != "" {
		if err := os.MkdirAll(m.cfg.DataDir, 0o755); err != nil {
			return nil, types.NewConnectionError("open_connection", name, "creating data directory", err)
		}
	}

	path := m.storePath(name)
	conn, err := drv.Connect(ctx, path)
	if err != nil {
		return nil, types.NewConnectionError("open_connection", name, "connecting with driver "+drv.Name(), err)
	}

	e := engine.New(name, conn, m.engineOpts...)
	if err := m.probe(ctx, e); err != nil {
		m.discard(name, e)
		return nil, types.NewIntegrityError("open_connection", name, "post-open probe failed",
			fmt.Errorf("%w: %w", types.ErrIntegrityCheck, err))
	}
	if err := e.InitializeFromSchema(ctx, schema, policy); err != nil {
		m.discard(name, e)
		return nil, err
	}
	version, err := e.GetSchemaVersion(ctx)
	if err != nil {
		m.discard(name, e)
		return nil, err
	}

	m.mu.Lock()
	m.conns[name] = &entry{engine: e, path: path, driver: drv.Name(), version: version}
	m.mu.Unlock()

	m.log.Info("connection opened", "db", name, "path", path, "driver", drv.Name(), "version", version)
	return e, nil
}

// probe is the check run after every open: a round trip, and an
// integrity scan when VerifyIntegrity is set.
func (m *Manager) probe(ctx context.Context, e *engine.Engine) error {
	if err := e.Ping(ctx); err != nil {
		return err
	}
	if m.cfg.VerifyIntegrity {
		return e.QuickCheck(ctx)
	}
	return nil
}

// discard closes a handle that never made it into the open set.
func (m *Manager) discard(name string, e *engine.Engine) {
	if err := e.Close(); err != nil {
		m.log.Warn("closing failed handle", "db", name, "error", err)
	}
}

// drop removes ent from the open set, if it is still the current entry,
// and closes it. The slot stays taken until Close returns.
func (m *Manager) drop(name string, ent *entry) {
	m.mu.Lock()
	if m.conns[name] != ent {
		m.mu.Unlock()
		return
	}
	delete(m.conns, name)
	m.closing[name]++
	m.mu.Unlock()

	m.discard(name, ent.engine)
	m.doneClosing(name)
}

func (m *Manager) doneClosing(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing[name]--; m.closing[name] <= 0 {
		delete(m.closing, name)
	}
}

// CloseConnection closes the handle for name. Closing a name with no open
// handle is a no-op.
func (m *Manager) CloseConnection(ctx context.Context, name string) error {
	m.mu.Lock()
	ent, ok := m.conns[name]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.conns, name)
	m.closing[name]++
	m.mu.Unlock()

	err := ent.engine.Close()
	m.doneClosing(name)

	if err != nil {
		return types.NewConnectionError("close_connection", name, "", err)
	}
	m.log.Info("connection closed", "db", name)
	return nil
}

// CloseAll closes every open handle and reports every failure.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, name := range m.OpenNames() {
		if err := m.CloseConnection(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
