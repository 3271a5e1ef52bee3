package stages_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
)

// TestDeduplication_SkipsRepeatURL reproduces S1's core assertion: three
// records where one repeats a URL reduce to two survivors.
func TestDeduplication_SkipsRepeatURL(t *testing.T) {
	d := stages.NewDeduplication(stages.DedupeByURL)
	jobs := []models.JobRecord{
		{Title: "A", Company: "Acme", URL: "https://x.com/1"},
		{Title: "B", Company: "Acme", URL: "https://x.com/2"},
		{Title: "A dup", Company: "Acme", URL: "https://x.com/1"},
	}

	var survivors int
	for _, j := range jobs {
		r := d.Process(context.Background(), j)
		if r.Status == models.PipelineCompleted {
			survivors++
		}
	}
	assert.Equal(t, 2, survivors)
}

func TestDeduplication_SkipsIdenticalContentHash(t *testing.T) {
	d := stages.NewDeduplication(stages.DedupeByContent)
	job := models.JobRecord{Title: "Engineer", Company: "Acme", Location: "Sydney", Description: "Build things"}

	first := d.Process(context.Background(), job)
	second := d.Process(context.Background(), job)

	require.Equal(t, models.PipelineCompleted, first.Status)
	assert.Equal(t, models.PipelineSkipped, second.Status)
	assert.NotEmpty(t, first.Data.ContentHash)
}

func TestDeduplication_SimilarityThresholdCatchesNearDuplicates(t *testing.T) {
	d := stages.NewDeduplication(stages.DedupeBySimilarity)
	d.SimilarityThreshold = 0.8

	a := models.JobRecord{Title: "Senior Backend Engineer", Company: "Acme", Description: "Build scalable backend systems in Go"}
	b := models.JobRecord{Title: "Senior Backend Engineer", Company: "Acme", Description: "Build scalable backend systems in Go today"}

	first := d.Process(context.Background(), a)
	second := d.Process(context.Background(), b)

	require.Equal(t, models.PipelineCompleted, first.Status)
	assert.Equal(t, models.PipelineSkipped, second.Status)
}
