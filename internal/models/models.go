// Package models defines the plain-data types that flow between jobscout's
// components: job records, usage records, registry entries, scheduler tasks,
// and pipeline results.
package models

import "time"

// SalaryPeriod is the normalized pay-period enumeration for JobRecord.
type SalaryPeriod string

const (
	SalaryHourly  SalaryPeriod = "hourly"
	SalaryMonthly SalaryPeriod = "monthly"
	SalaryYearly  SalaryPeriod = "yearly"
)

// JobType is the normalized employment-type enumeration for JobRecord.
type JobType string

const (
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
)

// ExperienceLevel is the normalized seniority enumeration for JobRecord.
type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "entry"
	ExperienceMid       ExperienceLevel = "mid"
	ExperienceSenior    ExperienceLevel = "senior"
	ExperienceExecutive ExperienceLevel = "executive"
)

// JobRecord is the unit that flows through the ETL pipeline, from an
// adapter's raw search/detail fetch through to storage.
//
// Invariants: SalaryMin <= SalaryMax when both are set; PostedDate <=
// ScrapedDate when both are set; a record that survives validation has a
// non-empty Title and Company; after the pipeline runs, JobID and
// ContentHash are non-empty.
type JobRecord struct {
	// Identity
	Platform    string
	ExternalID  *string
	JobID       string
	ContentHash string

	// Descriptive
	Title       string
	Company     string
	Location    string
	Description string
	URL         string

	// Compensation (yearly-normalized once the transformation stage runs)
	SalaryMin      *int
	SalaryMax      *int
	SalaryCurrency string
	SalaryPeriod   SalaryPeriod

	// Classification
	JobType         JobType
	ExperienceLevel ExperienceLevel
	Remote          *bool

	// Temporal
	PostedDate  *time.Time
	ScrapedDate time.Time

	// Quality
	QualityScore    float64
	ConfidenceScore float64

	// Engagement signals some platforms expose; never required
	ApplicantCount *int
	ViewCount      *int

	// Extracted during cleaning, from dictionary match over the description
	Skills   []string
	Benefits []string

	// Opaque per-platform bag (includes skill_categories, quality metrics, etc.)
	Raw map[string]interface{}
}

// UsageRecord captures one external-model (LLM) call, append-only and
// persisted to the cost tracker's journal.
type UsageRecord struct {
	Timestamp    time.Time
	Model        string
	TokensIn     int
	TokensOut    int
	CostUSD      float64
	RequestType  string
	Platform     *string
	Success      bool
	ErrorMessage *string
}

// Method is a platform adapter's fetch strategy.
type Method string

const (
	MethodAPI      Method = "API"
	MethodScraping Method = "SCRAPING"
	MethodVision   Method = "VISION"
	MethodHybrid   Method = "HYBRID"
)

// Capability is a category of data a platform adapter can supply.
type Capability string

const (
	CapabilityJobSearch          Capability = "job_search"
	CapabilityJobDetails         Capability = "job_details"
	CapabilityCompanyInfo        Capability = "company_info"
	CapabilitySalaryInfo         Capability = "salary_info"
	CapabilityCompanyReviews     Capability = "company_reviews"
	CapabilityProfileInfo        Capability = "profile_info"
	CapabilityApplicationTracker Capability = "application_tracking"
)

// PlatformHealth is the registry's mutable health state for one platform entry.
type PlatformHealth struct {
	HealthScore     float64
	SuccessCount    int
	ErrorCount      int
	LastHealthCheck time.Time
}

// Priority is a scheduler task's dispatch priority.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// TaskStatus is a scheduler task's lifecycle state.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// PipelineItemStatus is a single item's outcome from one pipeline stage.
type PipelineItemStatus string

const (
	PipelineCompleted PipelineItemStatus = "completed"
	PipelineFailed    PipelineItemStatus = "failed"
	PipelineSkipped   PipelineItemStatus = "skipped"
)

// PipelineResult is one item's outcome after passing through a pipeline stage.
type PipelineResult struct {
	Status          PipelineItemStatus
	Data            *JobRecord
	Error           error
	Stage           string
	ProcessingTime  time.Duration
}

// DataQualityMetrics scores a JobRecord along several independent axes,
// computed by the validation stage and attached to Raw["quality_metrics"].
type DataQualityMetrics struct {
	Completeness float64
	Accuracy     float64
	Consistency  float64
	Validity     float64
	Uniqueness   float64
	Timeliness   float64
	Overall      float64
}

// SearchFilters narrows a SearchRequest beyond the free-text query.
type SearchFilters struct {
	JobType          *JobType
	ExperienceLevel  *ExperienceLevel
	SalaryMin        *int
	SalaryMax        *int
	Remote           *bool
	PostedWithinDays *int // supplements the distillation's date_posted filter
}

// SearchRequest describes one call to the crawler engine or a platform adapter.
type SearchRequest struct {
	Query       string `validate:"required"`
	Location    string
	MaxResults  int `validate:"gte=1,lte=1000"`
	Page        int
	SortBy      string
	Platforms   []string // empty means "let the registry choose"
	Filters     SearchFilters
	ExtraParams map[string]string // platform-version-specific query params, passed through untouched
}

// SearchResult is the crawler engine's always-returned (never-raised) outcome.
type SearchResult struct {
	Jobs                []JobRecord
	TotalFound          int
	SuccessfulPlatforms []string
	FailedPlatforms     []string
	ProcessingTimeMs    int64
	CostBreakdown       map[string]float64
	ConfidenceScore     float64
	Metadata            map[string]interface{}
	CreatedAt           time.Time
}
