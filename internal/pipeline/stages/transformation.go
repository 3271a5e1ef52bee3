package stages

import (
	"context"
	"strings"

	"github.com/ternarybob/jobscout/internal/models"
)

// currencyToUSD is the static conversion table the spec pins; real-time
// rates are a non-goal.
var currencyToUSD = map[string]float64{
	"EUR": 1.1,
	"GBP": 1.3,
	"CAD": 0.8,
	"AUD": 0.7,
}

// Transformation normalizes salary figures to a yearly USD basis. The
// conversion strategy is pluggable via CurrencyRates so callers can supply
// live rates without changing the stage.
type Transformation struct {
	CurrencyRates map[string]float64
}

// NewTransformation constructs a Transformation stage using the spec's
// static conversion table.
func NewTransformation() *Transformation {
	return &Transformation{CurrencyRates: currencyToUSD}
}

func (t *Transformation) Name() string { return "transformation" }

func (t *Transformation) Process(ctx context.Context, job models.JobRecord) models.PipelineResult {
	if job.SalaryMin == nil && job.SalaryMax == nil {
		return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
	}

	switch job.SalaryPeriod {
	case models.SalaryHourly:
		scale(&job.SalaryMin, &job.SalaryMax, 2080)
		job.SalaryPeriod = models.SalaryYearly
	case models.SalaryMonthly:
		scale(&job.SalaryMin, &job.SalaryMax, 12)
		job.SalaryPeriod = models.SalaryYearly
	}

	currency := strings.ToUpper(job.SalaryCurrency)
	if currency != "" && currency != "USD" {
		rates := t.CurrencyRates
		if rates == nil {
			rates = currencyToUSD
		}
		if rate, ok := rates[currency]; ok {
			scaleFloat(&job.SalaryMin, &job.SalaryMax, rate)
			job.SalaryCurrency = "USD"
		}
	}

	return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
}

func scale(min, max *int, factor int) {
	if min != nil {
		*min = *min * factor
	}
	if max != nil {
		*max = *max * factor
	}
}

func scaleFloat(min, max *int, factor float64) {
	if min != nil {
		*min = int(float64(*min) * factor)
	}
	if max != nil {
		*max = int(float64(*max) * factor)
	}
}
