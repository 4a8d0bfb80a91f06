package cli

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/dsl"
	"github.com/aretw0/tops/pkg/ports"
)

// watchedLoader reports the changes the test pushes.
type watchedLoader struct {
	ports.ChartLoader
	changes chan string
}

func (l *watchedLoader) Watch(context.Context) (<-chan string, error) {
	return l.changes, nil
}

func newWatchedLoader(t *testing.T) *watchedLoader {
	t.Helper()
	b := dsl.New()
	b.Add("panel").Initial("general")
	b.Add("general").Parent("panel").Enter("Advanced", "advanced")
	b.Add("advanced").Parent("panel").Initial("network")
	b.Add("network").Parent("advanced").Enter("Back", "general")
	loader, err := b.Loader()
	require.NoError(t, err)
	return &watchedLoader{ChartLoader: loader, changes: make(chan string)}
}

func startWatch(t *testing.T, build func() (*tops.Engine, error), opts ChartOptions) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunWatch(ctx, build, opts) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitWatch(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunWatch_ReloadResumesSession(t *testing.T) {
	store := memory.NewStore()
	loader := newWatchedLoader(t)
	var builds atomic.Int32
	build := func() (*tops.Engine, error) {
		builds.Add(1)
		return tops.New("", tops.WithLoader(loader), tops.WithStore(store))
	}

	keysCh := make(chan rune)
	out := &syncBuffer{}
	cancel, done := startWatch(t, build, ChartOptions{SessionID: "w1", Keys: keysCh, Out: out, Plain: true})

	keysCh <- '1'
	assert.Eventually(t, func() bool {
		snap, err := store.Load(context.Background(), "w1")
		return err == nil && snap.Current == "network"
	}, 2*time.Second, 10*time.Millisecond)

	loader.changes <- "general"
	assert.Eventually(t, func() bool {
		return builds.Load() == 2 && strings.Contains(out.String(), "Resuming at 'network' state...")
	}, 2*time.Second, 10*time.Millisecond, out.String())
	assert.Contains(t, out.String(), "Change detected in 'general'.")

	keysCh <- '1'
	assert.Eventually(t, func() bool {
		snap, err := store.Load(context.Background(), "w1")
		return err == nil && snap.Current == "general"
	}, 2*time.Second, 10*time.Millisecond, "the reloaded chart keeps driving the same session")

	cancel()
	waitWatch(t, done)
}

func TestRunWatch_RetriesBrokenChart(t *testing.T) {
	store := memory.NewStore()
	loader := newWatchedLoader(t)
	var builds atomic.Int32
	build := func() (*tops.Engine, error) {
		if builds.Add(1) == 1 {
			return nil, errors.New("unexpected token")
		}
		return tops.New("", tops.WithLoader(loader), tops.WithStore(store))
	}

	out := &syncBuffer{}
	cancel, done := startWatch(t, build, ChartOptions{SessionID: "w2", Keys: make(chan rune), Out: out, Plain: true})

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Chart is broken: unexpected token")
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Session 'w2' active.")
	}, reloadBackoff+2*time.Second, 20*time.Millisecond, out.String())
	assert.Equal(t, int32(2), builds.Load())

	cancel()
	waitWatch(t, done)
}

func TestRunWatch_CancelDuringBackoff(t *testing.T) {
	build := func() (*tops.Engine, error) { return nil, errors.New("unexpected token") }
	out := &syncBuffer{}
	cancel, done := startWatch(t, build, ChartOptions{Keys: make(chan rune), Out: out, Plain: true})

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Chart is broken")
	}, time.Second, 10*time.Millisecond)
	cancel()
	waitWatch(t, done)
}

func TestRunWatch_RequiresWatchableLoader(t *testing.T) {
	loader := newWatchedLoader(t).ChartLoader
	build := func() (*tops.Engine, error) {
		return tops.New("", tops.WithLoader(loader), tops.WithStore(memory.NewStore()))
	}
	err := RunWatch(context.Background(), build, ChartOptions{Keys: make(chan rune), Out: &syncBuffer{}})
	assert.ErrorIs(t, err, tops.ErrWatchUnsupported)
}
