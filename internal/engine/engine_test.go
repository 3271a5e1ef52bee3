package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/costtracker"
	"github.com/ternarybob/jobscout/internal/engine"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
	"github.com/ternarybob/jobscout/internal/platform"
	"github.com/ternarybob/jobscout/internal/scheduler"
	"github.com/ternarybob/jobscout/internal/storage/filestore"
)

type fakeAdapter struct {
	name      string
	jobs      []models.JobRecord
	searchErr error
}

func (f *fakeAdapter) PlatformName() string { return f.name }
func (f *fakeAdapter) SupportedCapabilities() []models.Capability {
	return []models.Capability{models.CapabilityJobSearch}
}
func (f *fakeAdapter) SupportedMethods() []models.Method { return []models.Method{models.MethodScraping} }
func (f *fakeAdapter) BuildSearchURL(req models.SearchRequest) (string, error) { return "https://x", nil }
func (f *fakeAdapter) GetJobDetails(ctx context.Context, url string, method models.Method) (*models.JobRecord, error) {
	return nil, nil
}
func (f *fakeAdapter) ExtractJobLinks(ctx context.Context, page platform.Page) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapter) ParseJobData(ctx context.Context, page platform.Page, url string) (*models.JobRecord, error) {
	return nil, nil
}
func (f *fakeAdapter) BestMethod(req models.SearchRequest) models.Method { return models.MethodScraping }
func (f *fakeAdapter) HasCredentials() bool                              { return false }
func (f *fakeAdapter) Stats() platform.Stats                             { return platform.Stats{} }
func (f *fakeAdapter) SearchJobs(ctx context.Context, req models.SearchRequest, method models.Method) (models.SearchResult, error) {
	if f.searchErr != nil {
		return models.SearchResult{}, f.searchErr
	}
	return models.SearchResult{Jobs: f.jobs, SuccessfulPlatforms: []string{f.name}}, nil
}

func newTestEngine(t *testing.T, platformAdapters map[string]*fakeAdapter) *engine.Engine {
	t.Helper()
	logger := arbor.NewLogger()

	sched := scheduler.New(5, logger)
	sched.Start()
	t.Cleanup(sched.Stop)

	registry := platform.New(logger)
	for name, adapter := range platformAdapters {
		a := adapter
		registry.Register(name, func() (platform.Adapter, error) { return a, nil }, 1, true)
	}

	store := filestore.New(filepath.Join(t.TempDir(), "jobs.json"), logger)
	require.NoError(t, store.Initialize(context.Background()))

	pl := pipeline.New("jobscout-engine", pipeline.Config{BatchSize: 10}, logger,
		stages.NewValidation(),
		stages.NewCleaning(),
		stages.NewDeduplication(stages.DedupeByURL),
		stages.NewStorage(store),
	)

	cost, err := costtracker.New(filepath.Join(t.TempDir(), "usage.json"), costtracker.Limits{Hourly: 100, Daily: 100, Monthly: 100}, logger)
	require.NoError(t, err)

	cfg := common.EngineConfig{MaxConcurrentPlatforms: 3, ProgressBufferSize: 16}
	return engine.New(cfg, logger, sched, registry, pl, cost, nil)
}

func job(id, url string) models.JobRecord {
	return models.JobRecord{JobID: id, Title: "Python Developer", Company: "Acme", URL: url}
}

// TestSearchJobs_S1_DedupesAndReportsConfidence reproduces S1: a stub
// adapter returns 3 records including one duplicate URL; the engine should
// report 2 surviving jobs, the platform as successful, and a positive
// confidence score.
func TestSearchJobs_S1_DedupesAndReportsConfidence(t *testing.T) {
	e := newTestEngine(t, map[string]*fakeAdapter{
		"stub": {name: "stub", jobs: []models.JobRecord{
			job("1", "https://x.com/1"),
			job("2", "https://x.com/2"),
			job("3", "https://x.com/1"),
		}},
	})

	result, err := e.SearchJobs(context.Background(), models.SearchRequest{
		Query: "python developer", Location: "Sydney", MaxResults: 10, Platforms: []string{"stub"},
	})
	require.NoError(t, err)

	assert.Len(t, result.Jobs, 2)
	assert.Equal(t, []string{"stub"}, result.SuccessfulPlatforms)
	assert.Greater(t, result.ConfidenceScore, 0.0)
}

// TestSearchJobs_RejectsEmptyQuery reproduces validation's fatal,
// non-retryable path.
func TestSearchJobs_RejectsEmptyQuery(t *testing.T) {
	e := newTestEngine(t, map[string]*fakeAdapter{})
	_, err := e.SearchJobs(context.Background(), models.SearchRequest{Query: "", MaxResults: 10})
	require.Error(t, err)
	assert.IsType(t, &common.ValidationError{}, err)
}

// TestSearchJobs_OnePlatformFailsWithoutAbortingTheOther covers the
// engine's partial-failure guarantee: a broken adapter is reported as a
// failed platform, but the healthy one's jobs still come through.
func TestSearchJobs_OnePlatformFailsWithoutAbortingTheOther(t *testing.T) {
	e := newTestEngine(t, map[string]*fakeAdapter{
		"good":   {name: "good", jobs: []models.JobRecord{job("1", "https://x.com/1")}},
		"broken": {name: "broken", searchErr: assertError{}},
	})

	result, err := e.SearchJobs(context.Background(), models.SearchRequest{
		Query: "engineer", MaxResults: 10, Platforms: []string{"good", "broken"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"good"}, result.SuccessfulPlatforms)
	assert.ElementsMatch(t, []string{"broken"}, result.FailedPlatforms)
	assert.Len(t, result.Jobs, 1)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

// TestSearchJobsStream_EmitsProgressInOrder checks the streaming API emits
// the documented stage sequence ending in "completed".
func TestSearchJobsStream_EmitsProgressInOrder(t *testing.T) {
	e := newTestEngine(t, map[string]*fakeAdapter{
		"stub": {name: "stub", jobs: []models.JobRecord{job("1", "https://x.com/1")}},
	})

	progress := make(chan engine.ProgressEvent, 16)
	_, _, err := e.SearchJobsStream(context.Background(), models.SearchRequest{
		Query: "engineer", MaxResults: 10, Platforms: []string{"stub"},
	}, progress)
	require.NoError(t, err)
	close(progress)

	var stages []engine.ProgressStage
	for event := range progress {
		stages = append(stages, event.Stage)
	}
	require.NotEmpty(t, stages)
	assert.Equal(t, engine.StageValidation, stages[0])
	assert.Equal(t, engine.StageCompleted, stages[len(stages)-1])
}

// TestConfidenceScore exercises the weighting formula directly.
func TestConfidenceScore(t *testing.T) {
	assert.InDelta(t, 0.7+0.3*(20.0/50.0), engine.ConfidenceScore(1, 1, 20), 0.0001)
	assert.InDelta(t, 0.7*0.5+0.3, engine.ConfidenceScore(1, 2, 100), 0.0001)
	assert.Equal(t, 0.0, engine.ConfidenceScore(0, 0, 0))
}
