package viewer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tops/pkg/viewer"
)

func TestPoller_StartStop(t *testing.T) {
	var calls atomic.Int32
	p := viewer.NewPoller("test", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}, nil)

	assert.ErrorIs(t, p.Start(context.Background(), 0), viewer.ErrInvalidInterval)
	assert.False(t, p.Running())

	require.NoError(t, p.Start(context.Background(), 5*time.Millisecond))
	assert.True(t, p.Running())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Wait()
	assert.False(t, p.Running())
	seen := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, calls.Load(), "no polls after Stop")
}

func TestPoller_ErrorHalts(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	reported := make(chan error, 1)
	obs := &countingObserver{}

	p := viewer.NewPoller("test", func(ctx context.Context) (int, error) {
		if calls.Add(1) == 2 {
			return 0, boom
		}
		return 3, nil
	}, func(err error) { reported <- err }, viewer.WithObserver(obs))

	require.NoError(t, p.Start(context.Background(), 5*time.Millisecond))

	select {
	case err := <-reported:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("error was not reported")
	}
	p.Wait()
	assert.False(t, p.Running())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, obs.polls())
	assert.Equal(t, 1, obs.failures())
}

func TestPoller_ContextCancelHalts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := viewer.NewPoller("test", func(ctx context.Context) (int, error) { return 0, nil }, func(err error) {
		t.Errorf("unexpected error report: %v", err)
	})
	require.NoError(t, p.Start(ctx, time.Hour))
	cancel()
	p.Wait()
	assert.False(t, p.Running())
}

func TestPoller_Restart(t *testing.T) {
	p := viewer.NewPoller("test", func(ctx context.Context) (int, error) { return 0, nil }, nil)
	require.NoError(t, p.Start(context.Background(), time.Hour))
	require.NoError(t, p.Start(context.Background(), time.Hour))
	assert.True(t, p.Running())
	p.Stop()
	p.Stop()
	p.Wait()
	assert.False(t, p.Running())
}

func TestPoller_ConcurrentStartKeepsOneLoop(t *testing.T) {
	var calls atomic.Int32
	p := viewer.NewPoller("test", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Start(context.Background(), 2*time.Millisecond))
		}()
	}
	wg.Wait()
	assert.True(t, p.Running())

	p.Stop()
	p.Wait()
	assert.False(t, p.Running())
	time.Sleep(10 * time.Millisecond)
	seen := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, calls.Load(), "every replaced loop was stopped")
}
