package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tops/pkg/adapters/file"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.SnapshotStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	snap := domain.NewSnapshot("s1")
	snap.Current = "B"

	require.NoError(t, store.Save(context.Background(), "s1", snap))

	data, err := os.ReadFile(filepath.Join(dir, "s1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current": "B"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_RejectsBadIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, "", domain.NewSnapshot("")), file.ErrEmptySessionID)
	assert.Error(t, store.Save(ctx, "../escape", domain.NewSnapshot("x")))
	_, err := store.Load(ctx, "a/b")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
