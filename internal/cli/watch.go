package cli

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/internal/logging"
)

// reloadBackoff is how long the watcher waits before retrying a broken chart.
const reloadBackoff = 2 * time.Second

// WatchSessionID scopes the default watch session by project path.
func WatchSessionID(dir string) string {
	hash := md5.Sum([]byte(dir))
	return fmt.Sprintf("watch-%x", hash[:4])
}

// RunWatch runs the chart in development mode: every change to a declaration
// rebuilds the engine and resumes the persisted session on the new chart.
// build is called once per iteration.
func RunWatch(ctx context.Context, build func() (*tops.Engine, error), opts ChartOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	fresh := opts.Fresh

	for {
		iter := opts
		iter.Fresh = fresh
		reload, err := runWatchIteration(ctx, build, iter, logger)
		if err != nil {
			return err
		}
		if !reload {
			return nil
		}
		fresh = false
		logger.Info("Watcher restarting")
	}
}

func runWatchIteration(parent context.Context, build func() (*tops.Engine, error), opts ChartOptions, logger *slog.Logger) (bool, error) {
	eng, err := build()
	if err != nil {
		logger.Error("Engine initialization failed", "err", err)
		printSystemMessage(opts.Out, "Chart is broken: %v", err)
		select {
		case <-parent.Done():
			return false, nil
		case <-time.After(reloadBackoff):
			return true, nil
		}
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	changes, err := eng.Watch(ctx)
	if err != nil {
		return false, err
	}

	reloadCh := make(chan string, 1)
	go func() {
		select {
		case <-ctx.Done():
		case name, ok := <-changes:
			if !ok {
				return
			}
			reloadCh <- name
			cancel()
		}
	}()

	_, runErr := RunChart(ctx, eng, opts)

	select {
	case name := <-reloadCh:
		logger.Info("Change detected, triggering reload", "event", name)
		printSystemMessage(opts.Out, "Change detected in '%s'.", name)
		return true, nil
	default:
	}
	if parent.Err() != nil || errors.Is(runErr, context.Canceled) {
		return false, nil
	}
	return false, runErr
}
