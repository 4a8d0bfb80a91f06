package tops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/tops/internal/logging"
	loamAdapter "github.com/aretw0/tops/pkg/adapters/loam"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
	"github.com/aretw0/tops/pkg/session"
	"github.com/aretw0/tops/pkg/statechart"
)

// ErrWatchUnsupported is returned by Watch when the loader cannot report changes.
var ErrWatchUnsupported = errors.New("loader does not support watching")

// ErrEmptyChart is returned when the loader declares no states.
var ErrEmptyChart = errors.New("chart declares no states")

// Engine is the high-level entry point of the library.
// It owns a compiled chart and the session manager that drives it.
type Engine struct {
	loader      ports.ChartLoader
	chart       *statechart.Chart
	root        string
	store       ports.SnapshotStore
	sessionOpts []session.Option
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	sessions    *session.Manager
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom ChartLoader, bypassing the default Loam initialization.
func WithLoader(l ports.ChartLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithRoot sets the state new machines and sessions start in.
// Without it the first root of the chart is used.
func WithRoot(name string) Option {
	return func(e *Engine) {
		e.root = name
	}
}

// WithStore sets the snapshot store of the session manager (default: in memory).
func WithStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithSessionOptions forwards options to the session manager, e.g. a distributed locker.
func WithSessionOptions(opts ...session.Option) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, opts...)
	}
}

// WithLifecycleHooks registers observability hooks on every machine.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New loads and compiles the chart declared in repoPath.
func New(repoPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		logger: logging.NewNop(),
		Name:   filepath.Base(repoPath),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		l, err := loamAdapter.Open(repoPath)
		if err != nil {
			return nil, err
		}
		eng.loader = l
	}

	decls, err := eng.loader.Declarations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load declarations: %w", err)
	}
	if len(decls) == 0 {
		return nil, ErrEmptyChart
	}
	chart, err := statechart.Compile(decls)
	if err != nil {
		return nil, err
	}
	eng.chart = chart

	if eng.root == "" {
		eng.root = chart.Roots()[0]
	} else if !chart.Has(eng.root) {
		return nil, fmt.Errorf("root %q: %w", eng.root, domain.ErrUnknownState)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	sessionOpts := append([]session.Option{
		session.WithLifecycleHooks(eng.hooks),
		session.WithLogger(eng.logger),
	}, eng.sessionOpts...)
	eng.sessions = session.NewManager(chart, eng.root, eng.store, sessionOpts...)

	eng.logger.Debug("chart compiled", "name", eng.Name, "states", chart.Len(), "root", eng.root)
	return eng, nil
}

// Chart returns the compiled chart.
func (e *Engine) Chart() *statechart.Chart { return e.chart }

// Root returns the state new machines start in.
func (e *Engine) Root() string { return e.root }

// Loader returns the loader the chart was read from.
func (e *Engine) Loader() ports.ChartLoader { return e.loader }

// Sessions returns the manager of persisted sessions.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// NewMachine builds an uninitialized machine over binder, carrying the engine hooks and logger.
func (e *Engine) NewMachine(binder ports.Binder, opts ...statechart.Option) *statechart.Machine {
	base := []statechart.Option{
		statechart.WithLifecycleHooks(e.hooks),
		statechart.WithLogger(e.logger),
	}
	return statechart.NewMachine(e.chart, binder, append(base, opts...)...)
}

// Start builds a machine over binder and initializes it at the engine root.
func (e *Engine) Start(ctx context.Context, binder ports.Binder, opts ...statechart.Option) (*statechart.Machine, error) {
	m := e.NewMachine(binder, opts...)
	if err := m.Initialize(ctx, e.root); err != nil {
		return nil, err
	}
	return m, nil
}

// Watch reports the names of changed declarations when the loader supports it.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	return w.Watch(ctx)
}
