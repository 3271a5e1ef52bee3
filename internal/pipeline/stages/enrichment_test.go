package stages_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
)

func TestEnrichment_SplitsLocationAndTagsCompany(t *testing.T) {
	e := stages.NewEnrichment()
	result := e.Process(context.Background(), models.JobRecord{
		Title: "Senior Engineer", Company: "Google", Location: "Sydney, NSW",
	})
	require.Equal(t, models.PipelineCompleted, result.Status)
	assert.Equal(t, "Sydney", result.Data.Raw["city"])
	assert.Equal(t, "NSW", result.Data.Raw["region"])
	assert.Equal(t, "tech_giant", result.Data.Raw["company_type"])
	assert.Equal(t, "senior", result.Data.Raw["salary_level"])
}

func TestEnrichment_DefaultsSalaryLevelToMid(t *testing.T) {
	e := stages.NewEnrichment()
	result := e.Process(context.Background(), models.JobRecord{Title: "Engineer", Company: "Acme"})
	require.Equal(t, models.PipelineCompleted, result.Status)
	assert.Equal(t, "mid", result.Data.Raw["salary_level"])
}
