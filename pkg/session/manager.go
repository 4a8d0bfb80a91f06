package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
	"github.com/aretw0/tops/pkg/statechart"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// BinderFactory supplies the UI elements of a session's machine.
type BinderFactory func(sessionID string) ports.Binder

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	chart *statechart.Chart
	root  string
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	binders BinderFactory
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithBinderFactory replaces the default headless binder.
func WithBinderFactory(f BinderFactory) Option {
	return func(m *Manager) {
		m.binders = f
	}
}

// WithLifecycleHooks observes the machines driven by the manager.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager for chart. New sessions are initialized at root.
func NewManager(chart *statechart.Chart, root string, store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		chart:   chart,
		root:    root,
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	decls := chart.Declarations()
	m.binders = func(string) ports.Binder { return memory.NewDocumentFor(decls) }
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Chart returns the compiled chart shared by every session.
func (m *Manager) Chart() *statechart.Chart { return m.chart }

// Root returns the state new sessions start in.
func (m *Manager) Root() string { return m.root }

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore { return m.store }

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry when it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves an existing session snapshot.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snap, err
}

// LoadOrStart loads a session, initializing and persisting a new one at the root if it does not exist.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.Do(ctx, sessionID, func(context.Context, *statechart.Machine) error { return nil })
}

// Apply performs a transition request ("NAME" or "recall(NAME)") on a session.
// On failure the stored snapshot is left untouched and the current snapshot is returned with the error.
func (m *Manager) Apply(ctx context.Context, sessionID, request string) (*domain.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, mc *statechart.Machine) error {
		return mc.SetState(ctx, request)
	})
}

// Fire activates a trigger of the session's current path by label.
func (m *Manager) Fire(ctx context.Context, sessionID, label string) (*domain.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, mc *statechart.Machine) error {
		return mc.Fire(ctx, label)
	})
}

// Triggers lists the enabled triggers of a session.
func (m *Manager) Triggers(ctx context.Context, sessionID string) ([]statechart.ActiveTrigger, error) {
	var out []statechart.ActiveTrigger
	_, err := m.Do(ctx, sessionID, func(_ context.Context, mc *statechart.Machine) error {
		out = mc.ActiveTriggers()
		return nil
	})
	return out, err
}

// Do restores the session's machine, runs fn on it, and saves the resulting snapshot.
// A session that does not exist yet, or whose snapshot no longer fits the chart,
// is started at the root first.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(context.Context, *statechart.Machine) error) (*domain.Snapshot, error) {
	_, snap, err := m.Transition(ctx, sessionID, fn)
	return snap, err
}

// Transition is Do that also returns the snapshot the operation started from,
// read under the same lock. before is nil when the session was (re)started,
// so diffing against it yields the whole snapshot.
func (m *Manager) Transition(ctx context.Context, sessionID string, fn func(context.Context, *statechart.Machine) error) (before, after *domain.Snapshot, err error) {
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var e error
		before, after, e = m.run(ctx, sessionID, true, fn)
		return e
	})
	return before, after, err
}

// Inspect returns the snapshot and the enabled triggers of an existing session.
// It fails with domain.ErrSessionNotFound instead of starting one.
func (m *Manager) Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, []statechart.ActiveTrigger, error) {
	var snap *domain.Snapshot
	var triggers []statechart.ActiveTrigger
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		_, snap, err = m.run(ctx, sessionID, false, func(_ context.Context, mc *statechart.Machine) error {
			triggers = mc.ActiveTriggers()
			return nil
		})
		return err
	})
	return snap, triggers, err
}

// run must be called with the session lock held.
func (m *Manager) run(ctx context.Context, sessionID string, create bool, fn func(context.Context, *statechart.Machine) error) (*domain.Snapshot, *domain.Snapshot, error) {
	mc, fresh, err := m.machine(ctx, sessionID, create)
	if err != nil {
		return nil, nil, err
	}
	before := mc.Snapshot()

	fnErr := fn(ctx, mc)
	after := mc.Snapshot()
	if fresh {
		if err := m.store.Save(ctx, sessionID, after); err != nil {
			return nil, after, fmt.Errorf("failed to save session: %w", err)
		}
		return nil, after, fnErr
	}
	if fnErr != nil {
		return before, after, fnErr
	}
	if domain.Diff(before, after) != nil || after.Transitions != before.Transitions {
		if err := m.store.Save(ctx, sessionID, after); err != nil {
			return before, after, fmt.Errorf("failed to save session: %w", err)
		}
	}
	return before, after, nil
}

// machine builds a machine for the session, restored from the store when possible.
// Without create, a missing session is an error.
func (m *Manager) machine(ctx context.Context, sessionID string, create bool) (*statechart.Machine, bool, error) {
	stored, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) && !create {
		return nil, false, err
	}
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to check session existence: %w", err)
	}
	fresh := err != nil

	opts := []statechart.Option{
		statechart.WithSessionID(sessionID),
		statechart.WithLogger(m.logger),
	}
	if fresh {
		opts = append(opts, statechart.WithLifecycleHooks(m.hooks))
	}
	mc := statechart.NewMachine(m.chart, m.binders(sessionID), opts...)
	if err := mc.Initialize(ctx, m.root); err != nil {
		return nil, false, fmt.Errorf("failed to initialize session %q: %w", sessionID, err)
	}
	if fresh {
		m.logger.Debug("session started", "session_id", sessionID, "state", mc.Current())
		return mc, true, nil
	}

	err = mc.Restore(ctx, stored)
	mc.SetLifecycleHooks(m.hooks)
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		// The chart changed under the session: start over at the root.
		m.logger.Warn("Session discarded", "session_id", sessionID, "state", stored.Current, "err", err)
		return mc, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to restore session %q: %w", sessionID, err)
	}
	return mc, false, nil
}

// Save persists a snapshot as is, e.g. when importing a session.
func (m *Manager) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, snap)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}
