package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
)

// Selectors names the CSS selectors a generic scraping adapter needs, per
// the per-platform selector configuration job-board adapters use to pick
// job cards apart (job_cards, job_title, job_link, company_name, location,
// salary, description, next_page).
type Selectors map[string]string

// GenericConfig configures a GenericAdapter instance.
type GenericConfig struct {
	Name               string
	BaseURL            string
	SearchPath         string // e.g. "/jobs?q={query}&l={location}"
	Selectors          Selectors
	Capabilities       []models.Capability
	Methods            []models.Method
	APIKey             string
	MaxResultsPerPage  int
	RateLimitPerMinute int
	MinRequestDelay    time.Duration
	MaxRequestDelay    time.Duration
	UserAgent          string
}

// GenericAdapter is a selector-driven scraping adapter suitable for any job
// board whose search-results page is plain HTML: it builds the search URL,
// fetches it over HTTP, and extracts job cards with goquery. Platforms
// needing JavaScript rendering instead drive it through the Page
// capability (ExtractJobLinks/ParseJobData).
type GenericAdapter struct {
	cfg    GenericConfig
	logger arbor.ILogger
	client *http.Client
	limiter *RateLimiter

	mu    sync.Mutex
	stats Stats
}

// NewGenericAdapter constructs a GenericAdapter from cfg. allowTestURLs
// gates whether a localhost/127.0.0.1/test-port base URL is accepted;
// production deployments should pass false so a misconfigured job board
// pointing at a dev server fails loudly at registration time rather than
// silently scraping nothing.
func NewGenericAdapter(cfg GenericConfig, allowTestURLs bool, logger arbor.ILogger) (*GenericAdapter, error) {
	if cfg.MaxResultsPerPage == 0 {
		cfg.MaxResultsPerPage = 25
	}

	_, isTestURL, warnings, err := common.ValidateBaseURL(cfg.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("platform %s: %w", cfg.Name, err)
	}
	if isTestURL && !allowTestURLs {
		return nil, fmt.Errorf("platform %s: %s", cfg.Name, strings.Join(warnings, "; "))
	}

	return &GenericAdapter{
		cfg:     cfg,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: NewRateLimiter(cfg.RateLimitPerMinute, cfg.MinRequestDelay, cfg.MaxRequestDelay),
	}, nil
}

func (a *GenericAdapter) PlatformName() string { return a.cfg.Name }

func (a *GenericAdapter) SupportedCapabilities() []models.Capability { return a.cfg.Capabilities }

func (a *GenericAdapter) SupportedMethods() []models.Method { return a.cfg.Methods }

func (a *GenericAdapter) HasCredentials() bool { return a.cfg.APIKey != "" }

func (a *GenericAdapter) BestMethod(req models.SearchRequest) models.Method {
	return BestMethod(a.cfg.Methods, a.HasCredentials())
}

func (a *GenericAdapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// BuildSearchURL substitutes the query, location, and page placeholders into
// cfg.SearchPath, query-encoding each value; filters are appended as query
// parameters rather than substituted.
func (a *GenericAdapter) BuildSearchURL(req models.SearchRequest) (string, error) {
	if err := ValidateRequest(req, a.cfg.MaxResultsPerPage); err != nil {
		return "", err
	}

	path := a.cfg.SearchPath
	path = strings.ReplaceAll(path, "{query}", url.QueryEscape(req.Query))
	path = strings.ReplaceAll(path, "{location}", url.QueryEscape(req.Location))
	path = strings.ReplaceAll(path, "{page}", strconv.Itoa(req.Page))

	full := strings.TrimRight(a.cfg.BaseURL, "/") + path

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("building search url: %w", err)
	}

	q := u.Query()
	if req.Filters.JobType != nil {
		q.Set("job_type", string(*req.Filters.JobType))
	}
	if req.Filters.SalaryMin != nil {
		q.Set("salary_min", strconv.Itoa(*req.Filters.SalaryMin))
	}
	if req.Filters.SalaryMax != nil {
		q.Set("salary_max", strconv.Itoa(*req.Filters.SalaryMax))
	}
	if req.Filters.Remote != nil && *req.Filters.Remote {
		q.Set("remote", "true")
	}
	if req.Filters.PostedWithinDays != nil {
		q.Set("date_posted", strconv.Itoa(*req.Filters.PostedWithinDays))
	}
	if req.SortBy != "" {
		q.Set("sort", req.SortBy)
	}
	for k, v := range req.ExtraParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// SearchJobs validates the request, enforces rate limiting, fetches the
// search-results page, and parses job cards out of it with goquery.
// Adapter failures never propagate as an error to the registry's batch:
// they're captured into a failed SearchResult by the caller, but SearchJobs
// itself does return an error so the caller can distinguish and log it.
func (a *GenericAdapter) SearchJobs(ctx context.Context, req models.SearchRequest, method models.Method) (models.SearchResult, error) {
	start := time.Now()

	searchURL, err := a.BuildSearchURL(req)
	if err != nil {
		a.bumpStats(false)
		return models.SearchResult{}, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		a.bumpStats(false)
		return models.SearchResult{}, err
	}

	html, err := a.fetch(ctx, searchURL)
	if err != nil {
		a.bumpStats(false)
		return models.SearchResult{}, &common.NetworkError{Op: "fetch search results", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.bumpStats(false)
		return models.SearchResult{}, &common.ParseError{Platform: a.cfg.Name, Detail: err.Error()}
	}

	jobs := a.parseSearchResults(doc, req)
	a.bumpStats(true)

	return models.SearchResult{
		Jobs:                jobs,
		TotalFound:          len(jobs),
		SuccessfulPlatforms: []string{a.cfg.Name},
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		ConfidenceScore:     1.0,
		CreatedAt:           time.Now(),
	}, nil
}

func (a *GenericAdapter) parseSearchResults(doc *goquery.Document, req models.SearchRequest) []models.JobRecord {
	var jobs []models.JobRecord
	doc.Find(a.cfg.Selectors["job_cards"]).Each(func(i int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find(a.cfg.Selectors["job_title"]).First().Text())
		if title == "" {
			return
		}
		link, _ := card.Find(a.cfg.Selectors["job_link"]).First().Attr("href")
		company := strings.TrimSpace(card.Find(a.cfg.Selectors["company_name"]).First().Text())
		location := strings.TrimSpace(card.Find(a.cfg.Selectors["location"]).First().Text())
		snippet := strings.TrimSpace(card.Find(a.cfg.Selectors["description"]).First().Text())

		resolvedURL := link
		if u, err := url.Parse(link); err == nil && !u.IsAbs() {
			resolvedURL = strings.TrimRight(a.cfg.BaseURL, "/") + link
		}

		jobs = append(jobs, models.JobRecord{
			Platform:    a.cfg.Name,
			Title:       title,
			Company:     company,
			Location:    location,
			Description: snippet,
			URL:         resolvedURL,
			ScrapedDate: time.Now(),
		})
	})
	return jobs
}

// GetJobDetails fetches a single job-posting URL and parses its detail page.
func (a *GenericAdapter) GetJobDetails(ctx context.Context, jobURL string, method models.Method) (*models.JobRecord, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	html, err := a.fetch(ctx, jobURL)
	if err != nil {
		return nil, &common.NetworkError{Op: "fetch job details", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &common.ParseError{Platform: a.cfg.Name, Detail: err.Error()}
	}

	title := strings.TrimSpace(doc.Find(a.cfg.Selectors["job_header"]).First().Text())
	if title == "" {
		return nil, nil
	}
	company := strings.TrimSpace(doc.Find(a.cfg.Selectors["company_info"]).First().Text())
	description := strings.TrimSpace(doc.Find(a.cfg.Selectors["job_description"]).First().Text())

	return &models.JobRecord{
		Platform:    a.cfg.Name,
		Title:       title,
		Company:     company,
		Description: description,
		URL:         jobURL,
		ScrapedDate: time.Now(),
	}, nil
}

// ExtractJobLinks drives the borrowed Page capability (a JS-rendering
// backend) to pull job-card links off a search-results page.
func (a *GenericAdapter) ExtractJobLinks(ctx context.Context, page Page) ([]string, error) {
	if err := page.WaitForSelector(ctx, a.cfg.Selectors["job_cards"], 10*time.Second); err != nil {
		return nil, &common.TimeoutError{Op: "wait for job cards", Timeout: 10 * time.Second}
	}
	return page.QuerySelectorAll(ctx, a.cfg.Selectors["job_link"])
}

// ParseJobData drives the borrowed Page capability to extract one job
// posting's structured fields.
func (a *GenericAdapter) ParseJobData(ctx context.Context, page Page, jobURL string) (*models.JobRecord, error) {
	title, ok, err := page.QuerySelector(ctx, a.cfg.Selectors["job_header"])
	if err != nil || !ok || title == "" {
		return nil, err
	}
	company, _, _ := page.QuerySelector(ctx, a.cfg.Selectors["company_info"])
	description, _, _ := page.QuerySelector(ctx, a.cfg.Selectors["job_description"])

	return &models.JobRecord{
		Platform:    a.cfg.Name,
		Title:       title,
		Company:     company,
		Description: description,
		URL:         jobURL,
		ScrapedDate: time.Now(),
	}, nil
}

func (a *GenericAdapter) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &common.RateLimitError{Platform: a.cfg.Name, RetryAfter: time.Minute}
	}
	if resp.StatusCode == http.StatusForbidden {
		return "", &common.BlockedError{Platform: a.cfg.Name, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var buf strings.Builder
	buf.Grow(4096)
	chunk := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if readErr != nil {
			break
		}
	}
	return buf.String(), nil
}

func (a *GenericAdapter) bumpStats(success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalSearches++
	a.stats.LastSearchAt = time.Now()
	if success {
		a.stats.SuccessCount++
	} else {
		a.stats.ErrorCount++
	}
}

var _ Adapter = (*GenericAdapter)(nil)
