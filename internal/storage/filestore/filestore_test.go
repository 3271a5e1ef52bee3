package filestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
	"github.com/ternarybob/jobscout/internal/storage/filestore"
)

func TestStore_PersistsAcrossReload_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()

	s1 := filestore.New(path, arbor.NewLogger())
	require.NoError(t, s1.Initialize(ctx))
	require.NoError(t, s1.Store(ctx, models.JobRecord{JobID: "job-1", Platform: "indeed", Title: "Engineer", Company: "Acme", URL: "https://x/1"}))

	s2 := filestore.New(path, arbor.NewLogger())
	require.NoError(t, s2.Initialize(ctx))

	got, err := s2.Retrieve(ctx, storage.Query{}.Eq("job_id", "job-1"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Engineer", got[0].Title)
}

func TestStore_PersistsAcrossReload_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.csv")
	ctx := context.Background()

	s1 := filestore.New(path, arbor.NewLogger())
	require.NoError(t, s1.Initialize(ctx))
	salaryMin := 70000
	require.NoError(t, s1.Store(ctx, models.JobRecord{
		JobID: "job-2", Platform: "linkedin", Title: "Data Engineer", Company: "Acme",
		URL: "https://x/2", SalaryMin: &salaryMin,
	}))

	s2 := filestore.New(path, arbor.NewLogger())
	require.NoError(t, s2.Initialize(ctx))

	got, err := s2.Retrieve(ctx, storage.Query{}.Eq("job_id", "job-2"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].SalaryMin)
	assert.Equal(t, 70000, *got[0].SalaryMin)
}

func TestStore_UpsertKeyedByJobID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()
	s := filestore.New(path, arbor.NewLogger())
	require.NoError(t, s.Initialize(ctx))

	require.NoError(t, s.Store(ctx, models.JobRecord{JobID: "job-1", Title: "v1", Company: "Acme", URL: "https://x/1"}))
	require.NoError(t, s.Store(ctx, models.JobRecord{JobID: "job-1", Title: "v2", Company: "Acme", URL: "https://x/1"}))

	n, err := s.Count(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ContainsFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()
	s := filestore.New(path, arbor.NewLogger())
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Store(ctx,
		models.JobRecord{JobID: "job-1", Title: "Backend Engineer", Company: "Acme", URL: "https://x/1"},
		models.JobRecord{JobID: "job-2", Title: "Product Manager", Company: "Acme", URL: "https://x/2"},
	))

	got, err := s.Retrieve(ctx, storage.Query{}.Contains("title", "engineer"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "job-1", got[0].JobID)
}
