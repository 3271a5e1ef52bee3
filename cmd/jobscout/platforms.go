package main

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/platform"
)

// builtinCatalog is the fixed set of GenericAdapter configurations this
// build ships with, one per job board the original crawler supported.
// Selectors are grounded on the original platform modules' own selector
// maps (crawler_engine/platforms/{indeed,seek}); registry entries beyond
// this catalog require a future config-driven platform loader, noted as
// an open question in DESIGN.md.
func builtinCatalog(cfg common.PlatformsConfig) map[string]platform.GenericConfig {
	return map[string]platform.GenericConfig{
		"indeed": {
			Name:       "indeed",
			BaseURL:    "https://www.indeed.com",
			SearchPath: "/jobs?q={query}&l={location}&start={page}",
			Selectors: platform.Selectors{
				"job_cards":    "[data-jk]",
				"job_title":    "h2.jobTitle a span",
				"job_link":     "h2.jobTitle a",
				"company_name": "[data-testid='company-name']",
				"location":     "[data-testid='job-location']",
				"salary":       "[data-testid='attribute_snippet_testid']",
				"description":  "[data-testid='job-snippet']",
				"next_page":    "a[aria-label='Next Page']",
			},
			Capabilities:       []models.Capability{models.CapabilityJobSearch, models.CapabilityJobDetails},
			Methods:            []models.Method{models.MethodScraping, models.MethodVision, models.MethodHybrid},
			MaxResultsPerPage:  15,
			RateLimitPerMinute: 20,
			MinRequestDelay:    cfg.MinRequestDelay,
			MaxRequestDelay:    cfg.MaxRequestDelay,
			UserAgent:          cfg.UserAgent,
		},
		"seek": {
			Name:       "seek",
			BaseURL:    "https://www.seek.com.au",
			SearchPath: "/jobs?keywords={query}&where={location}&page={page}",
			Selectors: platform.Selectors{
				"job_cards":    "[data-automation='normalJob']",
				"job_title":    "[data-automation='jobTitle'] a span",
				"job_link":     "[data-automation='jobTitle'] a",
				"company_name": "[data-automation='jobCompany'] a span",
				"location":     "[data-automation='jobLocation'] span",
				"salary":       "[data-automation='jobSalary'] span",
				"description":  "[data-automation='jobAdDetails']",
				"next_page":    "[data-automation='page-next']",
			},
			Capabilities:       []models.Capability{models.CapabilityJobSearch, models.CapabilityJobDetails},
			Methods:            []models.Method{models.MethodScraping, models.MethodHybrid},
			MaxResultsPerPage:  20,
			RateLimitPerMinute: 15,
			MinRequestDelay:    cfg.MinRequestDelay,
			MaxRequestDelay:    cfg.MaxRequestDelay,
			UserAgent:          cfg.UserAgent,
		},
	}
}

// registerPlatforms registers one GenericAdapter per name in cfg.Enabled
// that the catalog recognizes; unrecognized names are logged and skipped
// rather than failing startup.
func registerPlatforms(registry *platform.Registry, fullCfg *common.Config, logger arbor.ILogger) {
	cfg := fullCfg.Platforms
	allowTestURLs := fullCfg.AllowTestURLs()
	catalog := builtinCatalog(cfg)
	for priority, name := range cfg.Enabled {
		genericCfg, ok := catalog[name]
		if !ok {
			logger.Warn().Str("platform", name).Msg("enabled platform has no built-in catalog entry, skipping")
			continue
		}
		genericCfg := genericCfg
		registry.Register(name, func() (platform.Adapter, error) {
			return platform.NewGenericAdapter(genericCfg, allowTestURLs, logger)
		}, len(cfg.Enabled)-priority, true)
	}
}
