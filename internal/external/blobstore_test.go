package external_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/external"
)

func newBlobStore(t *testing.T) *external.LocalBlobStore {
	t.Helper()
	store, err := external.NewLocalBlobStore(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	return store
}

func TestLocalBlobStore_UploadBytesThenList(t *testing.T) {
	store := newBlobStore(t)
	ctx := context.Background()

	key := "indeed/20260730/python-developer_1.json"
	url, err := store.UploadBytes(ctx, "raw-data", key, []byte(`{"title":"Python Developer"}`))
	require.NoError(t, err)
	assert.Contains(t, url, "raw-data")

	keys, err := store.List(ctx, "raw-data", "indeed/20260730")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestLocalBlobStore_UploadTextRoundTrip(t *testing.T) {
	store := newBlobStore(t)
	ctx := context.Background()

	key := "seek/20260730/engineer_1.txt"
	url, err := store.UploadText(ctx, "cleaned-data", key, "cleaned description")
	require.NoError(t, err)
	assert.Contains(t, url, filepath.Base(key))
}

func TestLocalBlobStore_ListHonorsPrefix(t *testing.T) {
	store := newBlobStore(t)
	ctx := context.Background()

	_, err := store.UploadBytes(ctx, "final-data", "indeed/20260730/a_1.json", []byte("a"))
	require.NoError(t, err)
	_, err = store.UploadBytes(ctx, "final-data", "seek/20260730/b_1.json", []byte("b"))
	require.NoError(t, err)

	keys, err := store.List(ctx, "final-data", "indeed/")
	require.NoError(t, err)
	assert.Equal(t, []string{"indeed/20260730/a_1.json"}, keys)
}

func TestLocalBlobStore_Delete(t *testing.T) {
	store := newBlobStore(t)
	ctx := context.Background()

	key := "gone.json"
	_, err := store.UploadBytes(ctx, "raw-data", "gone.json", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "raw-data", "gone.json"))

	keys, err := store.List(ctx, "raw-data", "")
	require.NoError(t, err)
	assert.NotContains(t, keys, key)

	// deleting an already-absent key is not an error
	assert.NoError(t, store.Delete(ctx, "raw-data", "gone.json"))
}
