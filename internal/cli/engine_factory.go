package cli

import (
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/internal/config"
	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/pkg/adapters/file"
	"github.com/aretw0/tops/pkg/adapters/redis"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/observability"
	"github.com/aretw0/tops/pkg/ports"
	"github.com/aretw0/tops/pkg/session"
)

// LockPrefix namespaces the distributed session locks.
// The locker appends "lock:" and the session ID.
const LockPrefix = "tops:"

// EngineOptions carries the process-level collaborators of an engine.
type EngineOptions struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// CreateEngine initializes an engine with standard CLI conventions:
// declarations from cfg.Chart.Dir, sessions in Redis when a URL is set
// and in cfg.Chart.Sessions otherwise. The returned close function releases the store.
func CreateEngine(cfg config.Config, opts EngineOptions) (*tops.Engine, func() error, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	store, sessionOpts, closeFn, err := createStore(cfg.Chart)
	if err != nil {
		return nil, nil, err
	}

	hooks := observability.LoggingHooks(logger)
	if opts.Metrics != nil {
		hooks = hooks.Merge(opts.Metrics.Hooks())
	}

	engineOpts := []tops.Option{
		tops.WithLogger(logger),
		tops.WithStore(store),
		tops.WithLifecycleHooks(hooks),
		tops.WithSessionOptions(sessionOpts...),
	}
	if cfg.Chart.Root != "" {
		engineOpts = append(engineOpts, tops.WithRoot(cfg.Chart.Root))
	}

	eng, err := tops.New(cfg.Chart.Dir, engineOpts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, closeFn, nil
}

// CreateStore opens the session store described by cfg, without a chart.
func CreateStore(cfg config.ChartConfig) (ports.SnapshotStore, func() error, error) {
	store, _, closeFn, err := createStore(cfg)
	return store, closeFn, err
}

func createStore(cfg config.ChartConfig) (ports.SnapshotStore, []session.Option, func() error, error) {
	nop := func() error { return nil }
	lockTTL := session.WithLockTTL(cfg.LockTTL)

	if cfg.RedisURL == "" {
		return file.New(cfg.Sessions), []session.Option{lockTTL}, nop, nil
	}

	redisOpts, err := backend.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: chart.redis_url: %v", domain.ErrConfiguration, err)
	}
	client := backend.NewClient(redisOpts)
	store := redis.NewFromClient(client, redis.WithTTL(cfg.SessionTTL))
	locker := redis.NewLocker(client, LockPrefix)
	return store, []session.Option{session.WithLocker(locker), lockTTL}, store.Close, nil
}
