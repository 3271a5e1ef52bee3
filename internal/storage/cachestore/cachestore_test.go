package cachestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
	"github.com/ternarybob/jobscout/internal/storage/cachestore"
)

func job(id string) models.JobRecord {
	return models.JobRecord{JobID: id, Title: "Engineer", Company: "Acme", URL: "https://x/" + id}
}

func TestStore_EvictsUnderLRU(t *testing.T) {
	ctx := context.Background()
	s, err := cachestore.New(cachestore.Config{MaxSize: 2, Policy: cachestore.PolicyLRU}, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))
	defer s.Close()

	require.NoError(t, s.Store(ctx, job("a")))
	require.NoError(t, s.Store(ctx, job("b")))

	// touch "a" so it's most-recently-used, "b" becomes the LRU victim
	_, err = s.Retrieve(ctx, storage.Query{}.Eq("job_id", "a"))
	require.NoError(t, err)

	require.NoError(t, s.Store(ctx, job("c")))

	n, _ := s.Count(ctx, storage.Query{}.Eq("job_id", "b"))
	assert.Equal(t, 0, n)
	n, _ = s.Count(ctx, storage.Query{}.Eq("job_id", "a"))
	assert.Equal(t, 1, n)
}

func TestStore_TTLExpiryTreatedAsMiss(t *testing.T) {
	ctx := context.Background()
	s, err := cachestore.New(cachestore.Config{MaxSize: 10, Policy: cachestore.PolicyTTL, TTL: 10 * time.Millisecond}, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))
	defer s.Close()

	require.NoError(t, s.Store(ctx, job("a")))
	time.Sleep(30 * time.Millisecond)

	got, err := s.Retrieve(ctx, storage.Query{}.Eq("job_id", "a"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_StatsMonotonic(t *testing.T) {
	ctx := context.Background()
	s, err := cachestore.New(cachestore.Config{MaxSize: 10}, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))
	defer s.Close()

	require.NoError(t, s.Store(ctx, job("a")))
	_, _ = s.Retrieve(ctx, storage.Query{}.Eq("job_id", "a"))
	_, _ = s.Retrieve(ctx, storage.Query{}.Eq("job_id", "missing"))
	_, _ = s.Delete(ctx, storage.Query{}.Eq("job_id", "a"))

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Sets)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Deletes)
}

func TestStore_LFUEviction(t *testing.T) {
	ctx := context.Background()
	s, err := cachestore.New(cachestore.Config{MaxSize: 2, Policy: cachestore.PolicyLFU}, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))
	defer s.Close()

	require.NoError(t, s.Store(ctx, job("a")))
	require.NoError(t, s.Store(ctx, job("b")))

	// access "b" three times so "a" has the lowest access count
	for i := 0; i < 3; i++ {
		_, _ = s.Retrieve(ctx, storage.Query{}.Eq("job_id", "b"))
	}

	require.NoError(t, s.Store(ctx, job("c")))

	n, _ := s.Count(ctx, storage.Query{}.Eq("job_id", "a"))
	assert.Equal(t, 0, n)
}
