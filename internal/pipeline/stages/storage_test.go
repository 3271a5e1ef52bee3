package stages_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
	"github.com/ternarybob/jobscout/internal/storage"
	"github.com/ternarybob/jobscout/internal/storage/filestore"
)

func TestStorage_WritesThroughToBackend(t *testing.T) {
	store := filestore.New(t.TempDir()+"/jobs.json", arbor.NewLogger())
	require.NoError(t, store.Initialize(context.Background()))

	s := stages.NewStorage(store)
	result := s.Process(context.Background(), models.JobRecord{JobID: "1", Title: "Engineer", Company: "Acme"})

	require.Equal(t, models.PipelineCompleted, result.Status)
	count, err := store.Count(context.Background(), storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
