package stages_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
)

func TestValidation_RejectsMissingRequiredFields(t *testing.T) {
	v := stages.NewValidation()
	result := v.Process(context.Background(), models.JobRecord{URL: "https://x.com/1", ScrapedDate: time.Now()})
	assert.Equal(t, models.PipelineFailed, result.Status)
}

func TestValidation_RejectsSalaryMinAboveMax(t *testing.T) {
	v := stages.NewValidation()
	min, max := 100000, 50000
	result := v.Process(context.Background(), models.JobRecord{
		Title: "Engineer", Company: "Acme", ScrapedDate: time.Now(),
		SalaryMin: &min, SalaryMax: &max,
	})
	assert.Equal(t, models.PipelineFailed, result.Status)
}

func TestValidation_RejectsFutureScrapedDate(t *testing.T) {
	v := stages.NewValidation()
	result := v.Process(context.Background(), models.JobRecord{
		Title: "Engineer", Company: "Acme", ScrapedDate: time.Now().Add(time.Hour),
	})
	assert.Equal(t, models.PipelineFailed, result.Status)
}

func TestValidation_PassesAndAttachesQualityMetrics(t *testing.T) {
	v := stages.NewValidation()
	result := v.Process(context.Background(), models.JobRecord{
		Title: "Engineer", Company: "Acme", URL: "https://x.com/1", ScrapedDate: time.Now(),
	})
	require.Equal(t, models.PipelineCompleted, result.Status)
	require.NotNil(t, result.Data)
	metrics, ok := result.Data.Raw["quality_metrics"].(models.DataQualityMetrics)
	require.True(t, ok)
	assert.Greater(t, metrics.Overall, 0.0)
	assert.Equal(t, metrics.Overall, result.Data.QualityScore)
}
