package manager

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Suspend closes every open handle and remembers which names were open so
// Resume can bring them back. Repeated suspends accumulate names until the
// next Resume. Close failures are logged, not returned.
func (m *Manager) Suspend(ctx context.Context) error {
	names := m.OpenNames()

	m.mu.Lock()
	for _, name := range names {
		if !slices.Contains(m.wasActive, name) {
			m.wasActive = append(m.wasActive, name)
		}
	}
	m.mu.Unlock()

	for _, name := range names {
		if err := m.CloseConnection(ctx, name); err != nil {
			m.log.Warn("closing handle on suspend", "db", name, "error", err)
		}
	}
	m.log.Info("suspended", "closed", len(names))
	return nil
}

// Resume reopens core, the required databases of the current roles and
// everything that was open at Suspend, in parallel. Each database that
// ends up open is announced to its reconnect subscribers. A database that
// fails to reopen is logged and skipped.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	was := m.wasActive
	m.wasActive = nil
	m.mu.Unlock()

	seen := map[string]bool{}
	var targets []string
	for _, list := range [][]string{m.requiredByRoles(), was} {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				targets = append(targets, name)
			}
		}
	}

	var (
		mu     sync.Mutex
		opened = make(map[string]types.DAO, len(targets))
		g      errgroup.Group
	)
	for _, name := range targets {
		g.Go(func() error {
			e, err := m.open(ctx, name)
			if err != nil {
				m.log.Warn("reopen failed", "db", name, "error", err)
				return nil
			}
			mu.Lock()
			opened[name] = e
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, name := range targets {
		if dao, ok := opened[name]; ok {
			m.publish(ctx, name, dao)
		}
	}
	m.log.Info("resumed", "requested", len(targets), "open", len(opened))
	return nil
}

// ReconnectAll suspends and resumes every handle.
func (m *Manager) ReconnectAll(ctx context.Context) error {
	if err := m.Suspend(ctx); err != nil {
		return err
	}
	return m.Resume(ctx)
}

// OnReconnect subscribes fn to replacements of the handle for name.
// Subscribers run in subscription order.
func (m *Manager) OnReconnect(name string, fn types.ReconnectFunc) types.Subscription {
	sub := types.Subscription{ID: uuid.NewString(), Name: name}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[name] = append(m.subs[name], subscriber{id: sub.ID, fn: fn})
	return sub
}

// OffReconnect removes a subscription. It reports whether it was present.
func (m *Manager) OffReconnect(sub types.Subscription) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.subs[sub.Name]
	for i, s := range list {
		if s.id == sub.ID {
			m.subs[sub.Name] = append(list[:i:i], list[i+1:]...)
			if len(m.subs[sub.Name]) == 0 {
				delete(m.subs, sub.Name)
			}
			return true
		}
	}
	return false
}

// publish tells every subscriber of name about dao. A subscriber that
// fails or panics is logged; the others still run.
func (m *Manager) publish(ctx context.Context, name string, dao types.DAO) {
	m.mu.Lock()
	subs := append([]subscriber(nil), m.subs[name]...)
	m.mu.Unlock()

	for _, s := range subs {
		if err := m.notify(ctx, s, dao); err != nil {
			m.log.Warn("reconnect subscriber failed", "db", name, "subscription", s.id, "error", err)
		}
	}
}

func (m *Manager) notify(ctx context.Context, s subscriber, dao types.DAO) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, dao)
}
