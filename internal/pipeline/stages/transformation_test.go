package stages_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
)

func TestTransformation_HourlyToYearly(t *testing.T) {
	tr := stages.NewTransformation()
	min, max := 50, 80
	result := tr.Process(context.Background(), models.JobRecord{
		SalaryMin: &min, SalaryMax: &max, SalaryPeriod: models.SalaryHourly, SalaryCurrency: "USD",
	})
	require.Equal(t, models.PipelineCompleted, result.Status)
	assert.Equal(t, 50*2080, *result.Data.SalaryMin)
	assert.Equal(t, 80*2080, *result.Data.SalaryMax)
	assert.Equal(t, models.SalaryYearly, result.Data.SalaryPeriod)
}

func TestTransformation_MonthlyToYearly(t *testing.T) {
	tr := stages.NewTransformation()
	min := 5000
	result := tr.Process(context.Background(), models.JobRecord{
		SalaryMin: &min, SalaryPeriod: models.SalaryMonthly, SalaryCurrency: "USD",
	})
	require.Equal(t, models.PipelineCompleted, result.Status)
	assert.Equal(t, 5000*12, *result.Data.SalaryMin)
}

func TestTransformation_ConvertsCurrencyToUSD(t *testing.T) {
	tr := stages.NewTransformation()
	min := 100000
	result := tr.Process(context.Background(), models.JobRecord{
		SalaryMin: &min, SalaryPeriod: models.SalaryYearly, SalaryCurrency: "EUR",
	})
	require.Equal(t, models.PipelineCompleted, result.Status)
	assert.Equal(t, 110000, *result.Data.SalaryMin)
	assert.Equal(t, "USD", result.Data.SalaryCurrency)
}
