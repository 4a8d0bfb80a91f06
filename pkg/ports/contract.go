package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract checks the behavior every SnapshotStore shares.
// It only touches session IDs it creates, so it can run against a shared backend.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	id := "contract-" + time.Now().Format("20060102150405.000000")

	advanced := func(sid string) *domain.Snapshot {
		snap := domain.NewSnapshot(sid)
		snap.Current = "network"
		snap.History["panel"] = "advanced"
		snap.History["advanced"] = "network"
		snap.Transitions = 3
		return snap
	}

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, id, advanced(id)))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "network", loaded.Current)
		assert.Equal(t, map[string]string{"panel": "advanced", "advanced": "network"}, loaded.History)
		assert.Equal(t, 3, loaded.Transitions)
	})

	t.Run("LoadReturnsCopy", func(t *testing.T) {
		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		loaded.History["panel"] = "general"

		again, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "advanced", again.History["panel"])
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		snap := domain.NewSnapshot(id)
		snap.Current = "general"
		snap.Transitions = 4
		require.NoError(t, store.Save(ctx, id, snap))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "general", loaded.Current)
		assert.Empty(t, loaded.History)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		_, err := store.Load(ctx, id+"-missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, id))
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.NoError(t, store.Delete(ctx, id), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		a, b := id+"-a", id+"-b"
		require.NoError(t, store.Save(ctx, a, advanced(a)))
		require.NoError(t, store.Save(ctx, b, advanced(b)))
		t.Cleanup(func() {
			_ = store.Delete(ctx, a)
			_ = store.Delete(ctx, b)
		})

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, a)
		assert.Contains(t, ids, b)
		assert.NotContains(t, ids, id)
	})
}
