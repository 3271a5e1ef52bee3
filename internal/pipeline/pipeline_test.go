package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
	"github.com/ternarybob/jobscout/internal/storage"
	"github.com/ternarybob/jobscout/internal/storage/filestore"
)

func newTestPipeline(t *testing.T, cfg pipeline.Config) (*pipeline.Pipeline, *filestore.Store) {
	t.Helper()
	store := filestore.New(filepath.Join(t.TempDir(), "jobs.json"), arbor.NewLogger())
	require.NoError(t, store.Initialize(context.Background()))

	p := pipeline.New("jobscout", cfg, arbor.NewLogger(),
		stages.NewValidation(),
		stages.NewCleaning(),
		stages.NewTransformation(),
		stages.NewEnrichment(),
		stages.NewDeduplication(stages.DedupeByURL, stages.DedupeByContent),
		stages.NewStorage(store),
	)
	return p, store
}

// TestPipeline_S5_InvalidItemFailsWithoutBlockingOthers reproduces S5: a
// batch of 10 items where item #3 has an empty title — validation fails
// that one item and the remaining 9 proceed to storage.
func TestPipeline_S5_InvalidItemFailsWithoutBlockingOthers(t *testing.T) {
	p, _ := newTestPipeline(t, pipeline.Config{BatchSize: 10})

	jobs := make([]models.JobRecord, 10)
	for i := range jobs {
		jobs[i] = models.JobRecord{JobID: string(rune('a' + i)), Title: "Engineer " + string(rune('A'+i)), Company: "Acme", URL: "https://x.com/" + string(rune('a'+i))}
	}
	jobs[2].Title = ""

	survivors, err := p.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Len(t, survivors, 9)

	metrics := p.Metrics()
	assert.Equal(t, 1, metrics.Stages["validation"].Failed)
}

// TestPipeline_DedupIdempotence reproduces property #7: feeding the same
// JobRecord twice through the pipeline in the same run produces exactly one
// stored record, and content_hash agrees across both passes.
func TestPipeline_DedupIdempotence(t *testing.T) {
	p, store := newTestPipeline(t, pipeline.Config{BatchSize: 10})

	job := models.JobRecord{JobID: "dup-1", Title: "Engineer", Company: "Acme", URL: "https://x.com/1"}
	survivors, err := p.Run(context.Background(), []models.JobRecord{job, job})
	require.NoError(t, err)
	require.Len(t, survivors, 1)

	count, err := store.Count(context.Background(), storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestPipeline_SalaryNormalization reproduces property #8.
func TestPipeline_SalaryNormalization(t *testing.T) {
	p, _ := newTestPipeline(t, pipeline.Config{BatchSize: 10})

	hourlyMin := 50
	eurMin := 60000
	jobs := []models.JobRecord{
		{JobID: "h1", Title: "Engineer", Company: "Acme", URL: "https://x.com/h1", SalaryMin: &hourlyMin, SalaryPeriod: models.SalaryHourly, SalaryCurrency: "USD"},
		{JobID: "e1", Title: "Manager", Company: "Acme", URL: "https://x.com/e1", SalaryMin: &eurMin, SalaryPeriod: models.SalaryYearly, SalaryCurrency: "EUR"},
	}

	survivors, err := p.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, survivors, 2)

	byID := make(map[string]models.JobRecord, 2)
	for _, j := range survivors {
		byID[j.JobID] = j
	}

	assert.Equal(t, 104000, *byID["h1"].SalaryMin)
	assert.Equal(t, models.SalaryYearly, byID["h1"].SalaryPeriod)

	assert.Equal(t, 66000, *byID["e1"].SalaryMin)
	assert.Equal(t, "USD", byID["e1"].SalaryCurrency)
}

// TestPipeline_PauseResumeDoNotDisruptARun exercises the control-flag API
// (pause/resume) without blocking: Run isn't paused at call time, so it
// still processes every item normally.
func TestPipeline_PauseResumeDoNotDisruptARun(t *testing.T) {
	p, _ := newTestPipeline(t, pipeline.Config{BatchSize: 2})
	p.Pause()
	p.Resume()

	jobs := []models.JobRecord{{JobID: "1", Title: "Engineer", Company: "Acme", URL: "https://x.com/1"}}
	survivors, err := p.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Len(t, survivors, 1)
}

// TestPipeline_StopBeforeRunDoesNotCarryOver confirms a Stop() issued while
// no Run is in progress does not halt the next Run: Run clears the stop
// flag at its start, so both single-item batches are processed.
func TestPipeline_StopBeforeRunDoesNotCarryOver(t *testing.T) {
	p, _ := newTestPipeline(t, pipeline.Config{BatchSize: 1})
	p.Stop() // Run() clears this at the start, so this alone does nothing...

	jobs := []models.JobRecord{
		{JobID: "1", Title: "Engineer", Company: "Acme", URL: "https://x.com/1"},
		{JobID: "2", Title: "Manager", Company: "Acme", URL: "https://x.com/2"},
	}
	survivors, err := p.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Len(t, survivors, 2) // ...confirming Stop() only affects an in-progress Run, not a future one
}

func TestPipeline_CheckpointWrittenAtInterval(t *testing.T) {
	checkpointPath := filepath.Join(t.TempDir(), "checkpoint.json")
	p, _ := newTestPipeline(t, pipeline.Config{BatchSize: 2, CheckpointInterval: 2, CheckpointPath: checkpointPath})

	jobs := []models.JobRecord{
		{JobID: "1", Title: "Engineer", Company: "Acme", URL: "https://x.com/1"},
		{JobID: "2", Title: "Manager", Company: "Acme", URL: "https://x.com/2"},
	}
	_, err := p.Run(context.Background(), jobs)
	require.NoError(t, err)

	cp, err := pipeline.LoadCheckpoint(checkpointPath)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "jobscout", cp.PipelineName)
}
