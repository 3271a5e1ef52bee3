package platform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/platform"
)

type fakeAdapter struct {
	name         string
	capabilities []models.Capability
	methods      []models.Method
	stats        platform.Stats
	searchErr    error
	jobs         []models.JobRecord
}

func (f *fakeAdapter) PlatformName() string                               { return f.name }
func (f *fakeAdapter) SupportedCapabilities() []models.Capability          { return f.capabilities }
func (f *fakeAdapter) SupportedMethods() []models.Method                  { return f.methods }
func (f *fakeAdapter) BuildSearchURL(req models.SearchRequest) (string, error) { return "https://x", nil }
func (f *fakeAdapter) GetJobDetails(ctx context.Context, url string, method models.Method) (*models.JobRecord, error) {
	return nil, nil
}
func (f *fakeAdapter) ExtractJobLinks(ctx context.Context, page platform.Page) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapter) ParseJobData(ctx context.Context, page platform.Page, url string) (*models.JobRecord, error) {
	return nil, nil
}
func (f *fakeAdapter) BestMethod(req models.SearchRequest) models.Method { return models.MethodScraping }
func (f *fakeAdapter) HasCredentials() bool                              { return false }
func (f *fakeAdapter) Stats() platform.Stats                             { return f.stats }
func (f *fakeAdapter) SearchJobs(ctx context.Context, req models.SearchRequest, method models.Method) (models.SearchResult, error) {
	if f.searchErr != nil {
		return models.SearchResult{}, f.searchErr
	}
	return models.SearchResult{Jobs: f.jobs, SuccessfulPlatforms: []string{f.name}}, nil
}

func newRegistry(t *testing.T) *platform.Registry {
	return platform.New(arbor.NewLogger())
}

// TestPlatformsByCapability_OrderedByPriority reproduces testable property
// #10's ordering rule: higher priority sorts first.
func TestPlatformsByCapability_OrderedByPriority(t *testing.T) {
	r := newRegistry(t)

	r.Register("low", func() (platform.Adapter, error) {
		return &fakeAdapter{name: "low", capabilities: []models.Capability{models.CapabilityJobSearch}}, nil
	}, 1, true)
	r.Register("high", func() (platform.Adapter, error) {
		return &fakeAdapter{name: "high", capabilities: []models.Capability{models.CapabilityJobSearch}}, nil
	}, 2, true)

	names := r.PlatformsByCapability(models.CapabilityJobSearch)
	require.Equal(t, []string{"high", "low"}, names)
}

// TestHealthCheck_AutoDisablesBelowThreshold reproduces the S6 scenario:
// after repeated failures, a platform's health drops below 0.3 and it is
// auto-disabled from selection.
func TestHealthCheck_AutoDisablesBelowThreshold(t *testing.T) {
	r := newRegistry(t)
	r.Register("bad", func() (platform.Adapter, error) {
		return nil, errors.New("unreachable")
	}, 1, true)
	r.Register("good", func() (platform.Adapter, error) {
		return &fakeAdapter{name: "good", capabilities: []models.Capability{models.CapabilityJobSearch}}, nil
	}, 1, true)

	for i := 0; i < 5; i++ {
		r.HealthCheck(context.Background(), "bad")
	}

	names := r.SelectBest(models.SearchRequest{Query: "engineer"}, models.CapabilityJobSearch, 3)
	assert.Equal(t, []string{"good"}, names)
}

func TestSearchMultiple_AdapterFailureYieldsFailedResultNotAbort(t *testing.T) {
	r := newRegistry(t)
	r.Register("ok", func() (platform.Adapter, error) {
		return &fakeAdapter{name: "ok", capabilities: []models.Capability{models.CapabilityJobSearch}, jobs: []models.JobRecord{{JobID: "1"}}}, nil
	}, 1, true)
	r.Register("broken", func() (platform.Adapter, error) {
		return &fakeAdapter{name: "broken", capabilities: []models.Capability{models.CapabilityJobSearch}, searchErr: errors.New("boom")}, nil
	}, 1, true)

	results := r.SearchMultiple(context.Background(), models.SearchRequest{Query: "engineer"}, []string{"ok", "broken"}, 2)

	require.Contains(t, results, "ok")
	require.Contains(t, results, "broken")
	assert.Len(t, results["ok"].Jobs, 1)
	assert.Contains(t, results["broken"].FailedPlatforms, "broken")
}

func TestSelectBest_RespectsMax(t *testing.T) {
	r := newRegistry(t)
	for _, name := range []string{"a", "b", "c"} {
		name := name
		r.Register(name, func() (platform.Adapter, error) {
			return &fakeAdapter{name: name, capabilities: []models.Capability{models.CapabilityJobSearch}}, nil
		}, 1, true)
	}

	names := r.SelectBest(models.SearchRequest{Query: "engineer"}, models.CapabilityJobSearch, 2)
	assert.Len(t, names, 2)
}
