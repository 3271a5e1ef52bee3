package hybrid_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
	"github.com/ternarybob/jobscout/internal/storage/cachestore"
	"github.com/ternarybob/jobscout/internal/storage/filestore"
	"github.com/ternarybob/jobscout/internal/storage/hybrid"
)

func newHybrid(t *testing.T) *hybrid.Store {
	t.Helper()
	ctx := context.Background()

	mem, err := cachestore.New(cachestore.Config{MaxSize: 100}, arbor.NewLogger())
	require.NoError(t, err)

	durable := filestore.New(filepath.Join(t.TempDir(), "jobs.json"), arbor.NewLogger())

	h := hybrid.New(mem, durable)
	require.NoError(t, h.Initialize(ctx))
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHybrid_WritesGoToBothTiers(t *testing.T) {
	h := newHybrid(t)
	ctx := context.Background()

	require.NoError(t, h.Store(ctx, models.JobRecord{JobID: "job-1", Title: "Engineer", Company: "Acme", URL: "https://x/1"}))

	n, err := h.Count(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHybrid_MemoryMissFallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	mem, err := cachestore.New(cachestore.Config{MaxSize: 1}, arbor.NewLogger())
	require.NoError(t, err)
	durable := filestore.New(filepath.Join(t.TempDir(), "jobs.json"), arbor.NewLogger())
	h := hybrid.New(mem, durable)
	require.NoError(t, h.Initialize(ctx))
	defer h.Close()

	// write two jobs; cache holds only 1, so one is evicted from memory
	// but remains in durable storage
	require.NoError(t, h.Store(ctx, models.JobRecord{JobID: "job-1", Title: "A", Company: "Acme", URL: "https://x/1"}))
	require.NoError(t, h.Store(ctx, models.JobRecord{JobID: "job-2", Title: "B", Company: "Acme", URL: "https://x/2"}))

	got, err := h.Retrieve(ctx, storage.Query{}.Eq("job_id", "job-1"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
}
