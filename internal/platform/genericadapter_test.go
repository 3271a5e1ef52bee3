package platform_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/platform"
)

const searchResultsHTML = `
<html><body>
<div class="job_card">
  <h2 class="job_title"><a class="job_link" href="/viewjob?id=1">Backend Engineer</a></h2>
  <span class="company_name">Acme Corp</span>
  <span class="location">Sydney</span>
  <div class="description">Build things.</div>
</div>
<div class="job_card">
  <h2 class="job_title"><a class="job_link" href="/viewjob?id=2">Frontend Engineer</a></h2>
  <span class="company_name">Acme Corp</span>
  <span class="location">Melbourne</span>
  <div class="description">Build other things.</div>
</div>
</body></html>
`

func newTestAdapter(t *testing.T, baseURL string) *platform.GenericAdapter {
	t.Helper()
	a, err := platform.NewGenericAdapter(platform.GenericConfig{
		Name:       "stubboard",
		BaseURL:    baseURL,
		SearchPath: "/search?q={query}&l={location}",
		Selectors: platform.Selectors{
			"job_cards":    ".job_card",
			"job_title":    ".job_title",
			"job_link":     ".job_link",
			"company_name": ".company_name",
			"location":     ".location",
			"description":  ".description",
		},
		Capabilities:       []models.Capability{models.CapabilityJobSearch},
		Methods:            []models.Method{models.MethodScraping},
		MaxResultsPerPage:  25,
		RateLimitPerMinute: 600,
	}, true, arbor.NewLogger())
	require.NoError(t, err)
	return a
}

func TestBuildSearchURL_EncodesQueryAndLocation(t *testing.T) {
	a := newTestAdapter(t, "https://example.com")
	u, err := a.BuildSearchURL(models.SearchRequest{Query: "python developer", Location: "Sydney AU", MaxResults: 10})
	require.NoError(t, err)
	assert.Contains(t, u, "q=python")
	assert.Contains(t, u, "l=Sydney")
}

func TestBuildSearchURL_RejectsEmptyQuery(t *testing.T) {
	a := newTestAdapter(t, "https://example.com")
	_, err := a.BuildSearchURL(models.SearchRequest{Query: "", MaxResults: 10})
	assert.Error(t, err)
}

// TestSearchJobs_ParsesJobCards reproduces S1's shape: a stub adapter
// returning multiple job cards parsed out of a search-results page.
func TestSearchJobs_ParsesJobCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchResultsHTML))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	result, err := a.SearchJobs(context.Background(), models.SearchRequest{Query: "engineer", MaxResults: 10}, models.MethodScraping)
	require.NoError(t, err)
	require.Len(t, result.Jobs, 2)
	assert.Equal(t, "Backend Engineer", result.Jobs[0].Title)
	assert.Equal(t, "stubboard", result.Jobs[0].Platform)
	assert.Contains(t, result.SuccessfulPlatforms, "stubboard")
}

func TestSearchJobs_BlockedResponseReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.SearchJobs(context.Background(), models.SearchRequest{Query: "engineer", MaxResults: 10}, models.MethodScraping)
	require.Error(t, err)
}

func TestBestMethod_PrefersAPIWhenCredentialed(t *testing.T) {
	a, err := platform.NewGenericAdapter(platform.GenericConfig{
		Name:               "withapi",
		BaseURL:            "https://example.com",
		APIKey:             "secret",
		Methods:            []models.Method{models.MethodScraping, models.MethodAPI},
		RateLimitPerMinute: 60,
	}, true, arbor.NewLogger())
	require.NoError(t, err)

	assert.Equal(t, models.MethodAPI, a.BestMethod(models.SearchRequest{Query: "x"}))
}

func TestRateLimiterIntegration_SpacesRequests(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(searchResultsHTML))
	}))
	defer srv.Close()

	a, err := platform.NewGenericAdapter(platform.GenericConfig{
		Name:               "spaced",
		BaseURL:            srv.URL,
		SearchPath:         "/search?q={query}",
		Selectors:          platform.Selectors{"job_cards": ".job_card", "job_title": ".job_title", "job_link": ".job_link", "company_name": ".company_name", "location": ".location", "description": ".description"},
		Capabilities:       []models.Capability{models.CapabilityJobSearch},
		Methods:            []models.Method{models.MethodScraping},
		RateLimitPerMinute: 600,
		MinRequestDelay:    20 * time.Millisecond,
		MaxRequestDelay:    20 * time.Millisecond,
	}, true, arbor.NewLogger())
	require.NoError(t, err)

	start := time.Now()
	_, _ = a.SearchJobs(context.Background(), models.SearchRequest{Query: "a", MaxResults: 10}, models.MethodScraping)
	_, _ = a.SearchJobs(context.Background(), models.SearchRequest{Query: "b", MaxResults: 10}, models.MethodScraping)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Equal(t, 2, hits)
}
