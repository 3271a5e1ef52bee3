package stages

import (
	"context"
	"net/url"
	"time"

	"github.com/ternarybob/jobscout/internal/models"
)

// Validation checks required fields, URL well-formedness, salary ordering,
// and date sanity, then attaches a DataQualityMetrics snapshot to the item's
// Raw bag under "quality_metrics". A failing check fails the item rather
// than silently dropping it.
type Validation struct {
	MaxFutureTolerance time.Duration // scraped_date may be this far in the future, default 5 minutes
}

// NewValidation constructs a Validation stage with spec defaults.
func NewValidation() *Validation {
	return &Validation{MaxFutureTolerance: 5 * time.Minute}
}

func (v *Validation) Name() string { return "validation" }

func (v *Validation) Process(ctx context.Context, job models.JobRecord) models.PipelineResult {
	var errs []string

	if job.Title == "" {
		errs = append(errs, "title is required")
	}
	if job.Company == "" {
		errs = append(errs, "company is required")
	}
	if job.URL != "" && !isValidURL(job.URL) {
		errs = append(errs, "url is malformed")
	}
	if job.SalaryMin != nil && job.SalaryMax != nil && *job.SalaryMin > *job.SalaryMax {
		errs = append(errs, "salary_min exceeds salary_max")
	}

	now := time.Now()
	tolerance := v.MaxFutureTolerance
	if tolerance == 0 {
		tolerance = 5 * time.Minute
	}
	if job.ScrapedDate.After(now.Add(tolerance)) {
		errs = append(errs, "scraped_date is in the future")
	}
	if job.PostedDate != nil {
		if job.PostedDate.After(now) {
			errs = append(errs, "posted_date is in the future")
		}
		if !job.ScrapedDate.IsZero() && job.PostedDate.After(job.ScrapedDate) {
			errs = append(errs, "posted_date is after scraped_date")
		}
	}

	if len(errs) > 0 {
		return models.PipelineResult{
			Status: models.PipelineFailed,
			Error:  &validationFailure{reasons: errs},
		}
	}

	metrics := computeQualityMetrics(job)
	if job.Raw == nil {
		job.Raw = make(map[string]interface{})
	}
	job.Raw["quality_metrics"] = metrics
	job.QualityScore = metrics.Overall

	return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
}

type validationFailure struct {
	reasons []string
}

func (e *validationFailure) Error() string {
	msg := "validation failed:"
	for _, r := range e.reasons {
		msg += " " + r + ";"
	}
	return msg
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// computeQualityMetrics scores completeness, accuracy, consistency,
// validity, uniqueness, and timeliness, each in [0,1], then averages them
// into Overall.
func computeQualityMetrics(job models.JobRecord) models.DataQualityMetrics {
	var m models.DataQualityMetrics

	total := 10.0
	filled := 0.0
	if job.Title != "" {
		filled++
	}
	if job.Company != "" {
		filled++
	}
	if job.Location != "" {
		filled++
	}
	if job.Description != "" {
		filled++
	}
	if job.SalaryMin != nil || job.SalaryMax != nil {
		filled++
	}
	if job.JobType != "" {
		filled++
	}
	if job.ExperienceLevel != "" {
		filled++
	}
	if job.PostedDate != nil {
		filled++
	}
	if job.URL != "" {
		filled++
	}
	if job.JobID != "" {
		filled++
	}
	m.Completeness = filled / total

	accuracyChecks, accuracyScore := 0.0, 0.0
	if job.URL != "" {
		accuracyChecks++
		if isValidURL(job.URL) {
			accuracyScore++
		}
	}
	if job.SalaryMin != nil {
		accuracyChecks++
		if *job.SalaryMin >= 0 {
			accuracyScore++
		}
	}
	if accuracyChecks > 0 {
		m.Accuracy = accuracyScore / accuracyChecks
	} else {
		m.Accuracy = 1.0
	}

	m.Consistency = 1.0

	valid := true
	if job.SalaryMin != nil && job.SalaryMax != nil && *job.SalaryMin > *job.SalaryMax {
		valid = false
	}
	if valid {
		m.Validity = 1.0
	} else {
		m.Validity = 0.5
	}

	m.Uniqueness = 1.0 // the deduplication stage owns this axis

	if job.PostedDate != nil {
		daysOld := time.Since(*job.PostedDate).Hours() / 24
		m.Timeliness = max0(1.0 - daysOld/30)
	} else {
		m.Timeliness = 0.5
	}

	m.Overall = (m.Completeness + m.Accuracy + m.Consistency + m.Validity + m.Uniqueness + m.Timeliness) / 6
	return m
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
