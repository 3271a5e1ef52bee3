// Package platform defines the adapter contract every job board integration
// implements (C5): capability/method declaration, request validation,
// per-adapter rate limiting, and the registry that selects and fans out
// across adapters.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/jobscout/internal/models"
)

var requestValidator = validator.New()

// Page is the capability adapters use to drive a scraping fetch. Adapters
// depend only on this interface; they never manage a browser's lifetime.
type Page interface {
	Goto(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	QuerySelector(ctx context.Context, selector string) (string, bool, error)
	QuerySelectorAll(ctx context.Context, selector string) ([]string, error)
	Evaluate(ctx context.Context, js string) (interface{}, error)
	Title(ctx context.Context) (string, error)
	URL() string
	Screenshot(ctx context.Context) ([]byte, error)
}

// Stats is an adapter's running performance counters.
type Stats struct {
	SuccessCount int
	ErrorCount   int
	TotalSearches int
	LastSearchAt time.Time
}

func (s Stats) SuccessRate() float64 {
	total := s.SuccessCount + s.ErrorCount
	if total == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(total)
}

// Adapter is the contract every platform integration implements.
type Adapter interface {
	PlatformName() string
	SupportedCapabilities() []models.Capability
	SupportedMethods() []models.Method
	BuildSearchURL(req models.SearchRequest) (string, error)
	SearchJobs(ctx context.Context, req models.SearchRequest, method models.Method) (models.SearchResult, error)
	GetJobDetails(ctx context.Context, url string, method models.Method) (*models.JobRecord, error)
	ExtractJobLinks(ctx context.Context, page Page) ([]string, error)
	ParseJobData(ctx context.Context, page Page, url string) (*models.JobRecord, error)
	BestMethod(req models.SearchRequest) models.Method
	HasCredentials() bool
	Stats() Stats
}

// ValidateRequest rejects an empty query, a negative page, or a limit
// outside [1, maxResultsPerPage]. Page 0 is accepted.
func ValidateRequest(req models.SearchRequest, maxResultsPerPage int) error {
	if err := requestValidator.Struct(req); err != nil {
		return fmt.Errorf("invalid search request: %w", err)
	}
	if req.Page < 0 {
		return fmt.Errorf("invalid page: %d", req.Page)
	}
	if maxResultsPerPage > 0 && req.MaxResults > maxResultsPerPage {
		return fmt.Errorf("invalid max_results %d: must be at most %d", req.MaxResults, maxResultsPerPage)
	}
	return nil
}

// BestMethod selects API if credentialed, else HYBRID, else SCRAPING, else
// VISION, restricted to methods supported. Falls back to the first
// supported method if none of the preferred tiers apply.
func BestMethod(supported []models.Method, hasCredentials bool) models.Method {
	has := func(m models.Method) bool {
		for _, s := range supported {
			if s == m {
				return true
			}
		}
		return false
	}

	if hasCredentials && has(models.MethodAPI) {
		return models.MethodAPI
	}
	if has(models.MethodHybrid) {
		return models.MethodHybrid
	}
	if has(models.MethodScraping) {
		return models.MethodScraping
	}
	if has(models.MethodVision) {
		return models.MethodVision
	}
	if len(supported) > 0 {
		return supported[0]
	}
	return models.MethodScraping
}
