package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tops/pkg/adapters/memory"
	"github.com/aretw0/tops/pkg/adapters/redis"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/session"
	"github.com/aretw0/tops/pkg/statechart"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChart(t *testing.T) *statechart.Chart {
	t.Helper()
	chart, err := statechart.Compile([]domain.Declaration{
		{Name: "A", Initial: "B"},
		{Name: "B", Parent: "A", Triggers: []domain.Trigger{{Label: "next", Target: "C"}}},
		{Name: "C", Parent: "A"},
		{Name: "D", Triggers: []domain.Trigger{{Label: "back", Target: "recall(A)"}}},
	})
	require.NoError(t, err)
	return chart
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, sessionID, snap)
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, sessionID)
}

func TestManager_LoadOrStart(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(testChart(t), "A", store)
	ctx := context.Background()

	snap, err := mgr.LoadOrStart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", snap.Current)
	assert.Equal(t, "s1", snap.SessionID)

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err, "a new session is persisted immediately")
	assert.Equal(t, "B", stored.Current)

	_, err = mgr.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ApplyPersistsHistory(t *testing.T) {
	mgr := session.NewManager(testChart(t), "A", memory.NewStore())
	ctx := context.Background()

	for _, req := range []string{"C", "D"} {
		_, err := mgr.Apply(ctx, "s1", req)
		require.NoError(t, err)
	}

	snap, err := mgr.Apply(ctx, "s1", "recall(A)")
	require.NoError(t, err)
	assert.Equal(t, "C", snap.Current, "history survives the round trip through the store")
	assert.Equal(t, 4, snap.Transitions)
}

func TestManager_ApplyFailureKeepsSnapshot(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(testChart(t), "A", store)
	ctx := context.Background()

	_, err := mgr.Apply(ctx, "s1", "C")
	require.NoError(t, err)

	snap, err := mgr.Apply(ctx, "s1", "unknown")
	assert.ErrorIs(t, err, domain.ErrUnknownState)
	assert.Equal(t, "C", snap.Current)

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "C", stored.Current)
}

func TestManager_FireAndTriggers(t *testing.T) {
	mgr := session.NewManager(testChart(t), "A", memory.NewStore())
	ctx := context.Background()

	triggers, err := mgr.Triggers(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []statechart.ActiveTrigger{{State: "B", Label: "next", Target: "C"}}, triggers)

	snap, err := mgr.Fire(ctx, "s1", "next")
	require.NoError(t, err)
	assert.Equal(t, "C", snap.Current)

	_, err = mgr.Fire(ctx, "s1", "back")
	assert.ErrorIs(t, err, statechart.ErrNoSuchTrigger)
}

func TestManager_Hooks(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	hooks := domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, e.SessionID+":"+e.To)
		},
	}
	mgr := session.NewManager(testChart(t), "A", memory.NewStore(), session.WithLifecycleHooks(hooks))
	ctx := context.Background()

	_, err := mgr.LoadOrStart(ctx, "s1")
	require.NoError(t, err)
	_, err = mgr.Apply(ctx, "s1", "D")
	require.NoError(t, err)

	assert.Equal(t, []string{"s1:B", "s1:D"}, transitions, "restoring a session is not a transition")
}

func TestManager_Locking(t *testing.T) {
	mgr := session.NewManager(testChart(t), "A", &SlowStore{Store: memory.NewStore()})
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := "C"
			if i%2 == 0 {
				target = "D"
			}
			_, err := mgr.Apply(ctx, id, target)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 11, snap.Transitions, "no update may be lost")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewFromClient(client)
	mgr := session.NewManager(testChart(t), "A", store,
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTTL(5*time.Second),
	)
	ctx := context.Background()

	_, err := mgr.Apply(ctx, "s1", "C")
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:s1"), "lock is released after the operation")

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, mgr.Delete(ctx, "s1"))
	_, err = mgr.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_StaleSessionStartsOver(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(testChart(t), "A", store)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", &domain.Snapshot{
		SessionID: "s1",
		Current:   "GONE",
		History:   map[string]string{},
	}))

	for i := 0; i < 2; i++ {
		snap, err := mgr.Apply(ctx, "s1", "C")
		require.NoError(t, err)
		assert.Equal(t, "C", snap.Current)
	}

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "C", stored.Current, "the recovered session replaces the stale one")

	triggers, err := mgr.Triggers(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestManager_StaleHistoryStartsOver(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(testChart(t), "A", store)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", &domain.Snapshot{
		SessionID: "s1",
		Current:   "C",
		History:   map[string]string{"A": "D"},
	}))

	before, after, err := mgr.Transition(ctx, "s1", func(context.Context, *statechart.Machine) error { return nil })
	require.NoError(t, err)
	assert.Nil(t, before, "a discarded session has no prior snapshot")
	assert.Equal(t, "B", after.Current)
}

func TestManager_Inspect(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(testChart(t), "A", store)
	ctx := context.Background()

	_, _, err := mgr.Inspect(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "inspecting never creates a session")

	require.NoError(t, store.Save(ctx, "s1", &domain.Snapshot{SessionID: "s1", Current: "GONE"}))
	snap, triggers, err := mgr.Inspect(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", snap.Current)
	assert.Equal(t, []statechart.ActiveTrigger{{State: "B", Label: "next", Target: "C"}}, triggers)

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", stored.Current)
}

func TestManager_TransitionReportsStartingSnapshot(t *testing.T) {
	mgr := session.NewManager(testChart(t), "A", &SlowStore{Store: memory.NewStore()})
	ctx := context.Background()

	before, after, err := mgr.Transition(ctx, "s1", func(context.Context, *statechart.Machine) error { return nil })
	require.NoError(t, err)
	assert.Nil(t, before, "a new session has no prior snapshot")
	assert.Equal(t, "B", after.Current)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			before, after, err := mgr.Transition(ctx, "s1", func(ctx context.Context, mc *statechart.Machine) error {
				if mc.Current() == "C" {
					return mc.SetState(ctx, "D")
				}
				return mc.SetState(ctx, "C")
			})
			if !assert.NoError(t, err) || !assert.NotNil(t, before) {
				return
			}
			assert.Equal(t, before.Transitions+1, after.Transitions)
			assert.NotEqual(t, before.Current, after.Current)
		}()
	}
	wg.Wait()
}
