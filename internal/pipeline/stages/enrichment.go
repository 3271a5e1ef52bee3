package stages

import (
	"context"
	"strings"

	"github.com/ternarybob/jobscout/internal/models"
)

// Enrichment splits location into city/region, tags well-known employers
// into a company_type bucket, and heuristically stamps a salary_level from
// title keywords. None of this is required for a record to be valid; it's
// best-effort annotation stored in Raw.
type Enrichment struct{}

func NewEnrichment() *Enrichment { return &Enrichment{} }

func (e *Enrichment) Name() string { return "enrichment" }

func (e *Enrichment) Process(ctx context.Context, job models.JobRecord) models.PipelineResult {
	if job.Raw == nil {
		job.Raw = make(map[string]interface{})
	}

	if job.Location != "" {
		if city, region, ok := splitLocation(job.Location); ok {
			job.Raw["city"] = city
			job.Raw["region"] = region
		}
	}

	if job.Company != "" {
		if companyType := classifyCompany(job.Company); companyType != "" {
			job.Raw["company_type"] = companyType
		}
	}

	job.Raw["salary_level"] = salaryLevelFromTitle(job.Title)

	return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
}

func splitLocation(location string) (city, region string, ok bool) {
	parts := strings.SplitN(location, ",", 2)
	if len(parts) < 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

var techGiants = []string{"google", "microsoft", "apple", "amazon", "meta", "facebook"}

func classifyCompany(company string) string {
	lower := strings.ToLower(company)
	for _, giant := range techGiants {
		if strings.Contains(lower, giant) {
			return "tech_giant"
		}
	}
	return ""
}

func salaryLevelFromTitle(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "senior") || strings.Contains(lower, "lead") || strings.Contains(lower, "principal"):
		return "senior"
	case strings.Contains(lower, "junior") || strings.Contains(lower, "entry") || strings.Contains(lower, "graduate"):
		return "junior"
	default:
		return "mid"
	}
}
