// Package engine implements the crawler engine orchestrator (C7): given a
// SearchRequest, it validates, checks the cost budget, selects platforms via
// the registry, dispatches one scheduler task per platform, waits for every
// platform task to settle, runs the pipeline once over the combined jobs,
// and assembles a SearchResult that is always returned, never raised.
// Results are not fed into the pipeline as individual tasks complete.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/costtracker"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline"
	"github.com/ternarybob/jobscout/internal/platform"
	"github.com/ternarybob/jobscout/internal/scheduler"
)

// ProgressStage names one of the discrete, externally observable stages of
// a search, in the order the engine moves through them.
type ProgressStage string

const (
	StageValidation        ProgressStage = "validation"
	StageAnalysis          ProgressStage = "analysis"
	StagePlatformSelection ProgressStage = "platform_selection"
	StageSearching         ProgressStage = "searching"
	StageProcessing        ProgressStage = "processing"
	StageStorage           ProgressStage = "storage"
	StageCompleted         ProgressStage = "completed"
)

// ProgressEvent is one update pushed to a caller observing a search in
// flight. Progress is a percent-complete estimate, not a precise fraction.
type ProgressEvent struct {
	RequestID string        `json:"request_id"`
	Stage     ProgressStage `json:"stage"`
	Message   string        `json:"message"`
	Progress  int           `json:"progress"`
}

// ModelClient is the narrow capability the engine needs from whatever model
// backend is wired in: a best-effort text analysis of the query. The
// analysis is computed for every search, but platform selection does not
// use it. Nil is a valid Engine.Models value — analysis then falls back to
// a keyword split.
type ModelClient interface {
	TextAnalyze(ctx context.Context, text string, prompt string) (QueryAnalysis, error)
}

// QueryAnalysis is what query analysis — AI-backed or the keyword-split
// fallback — yields about a search query.
type QueryAnalysis struct {
	Keywords        []string
	JobType         string
	ExperienceLevel string
	Industry        string
}

// Engine owns a Scheduler, a Registry, a Pipeline, and (transitively) the
// Storage the pipeline's storage stage writes to.
type Engine struct {
	cfg    common.EngineConfig
	logger arbor.ILogger

	scheduler *scheduler.Scheduler
	registry  *platform.Registry
	pipeline  *pipeline.Pipeline
	cost      *costtracker.Tracker
	models    ModelClient

	progressBuffer int
}

// New constructs an Engine. sched must already be started (sched.Start()).
func New(cfg common.EngineConfig, logger arbor.ILogger, sched *scheduler.Scheduler, registry *platform.Registry, pl *pipeline.Pipeline, cost *costtracker.Tracker, models ModelClient) *Engine {
	buf := cfg.ProgressBufferSize
	if buf <= 0 {
		buf = 16
	}
	return &Engine{
		cfg: cfg, logger: logger,
		scheduler: sched, registry: registry, pipeline: pl, cost: cost, models: models,
		progressBuffer: buf,
	}
}

// SearchJobs runs req to completion and returns the assembled SearchResult.
// It never returns an error for a partial or total platform failure — those
// are reported through SuccessfulPlatforms/FailedPlatforms instead. The only
// errors returned are ones that abort the whole call up front: validation
// failure and budget exhaustion.
func (e *Engine) SearchJobs(ctx context.Context, req models.SearchRequest) (models.SearchResult, error) {
	result, _, err := e.SearchJobsStream(ctx, req, nil)
	return result, err
}

// SearchJobsStream is SearchJobs with an optional progress channel. If
// progress is non-nil, the engine sends a ProgressEvent at each stage
// transition; it never blocks indefinitely on a full channel — events are
// dropped rather than stalling the search. The returned string is the
// request ID assigned to this call, useful for correlating dropped events
// with the final result.
func (e *Engine) SearchJobsStream(ctx context.Context, req models.SearchRequest, progress chan<- ProgressEvent) (models.SearchResult, string, error) {
	requestID := newRequestID()
	start := time.Now()

	emit := func(stage ProgressStage, pct int, msg string) {
		if progress == nil {
			return
		}
		select {
		case progress <- ProgressEvent{RequestID: requestID, Stage: stage, Message: msg, Progress: pct}:
		default:
		}
	}

	emit(StageValidation, 5, "validating search request")
	if err := e.validate(req); err != nil {
		return models.SearchResult{}, requestID, err
	}

	emit(StageAnalysis, 15, "analyzing search query")
	analysis := e.analyzeQuery(ctx, req)

	emit(StagePlatformSelection, 25, "selecting platforms")
	platforms := e.selectPlatforms(req, analysis)

	emit(StageSearching, 40, "searching platforms")
	platformResults := e.searchPlatforms(ctx, req, platforms)

	var successful, failed []string
	var allJobs []models.JobRecord
	for _, name := range platforms {
		res, ok := platformResults[name]
		if !ok || len(res.SuccessfulPlatforms) == 0 {
			failed = append(failed, name)
			continue
		}
		successful = append(successful, name)
		allJobs = append(allJobs, res.Jobs...)
	}

	emit(StageProcessing, 85, "running the ETL pipeline")
	survivors, err := e.pipeline.Run(ctx, allJobs)
	if err != nil {
		e.logger.Error().Err(err).Str("request_id", requestID).Msg("pipeline run failed")
	}

	emit(StageStorage, 95, "persisting results")
	confidence := ConfidenceScore(len(successful), len(successful)+len(failed), len(survivors))

	result := models.SearchResult{
		Jobs:                survivors,
		TotalFound:          len(allJobs),
		SuccessfulPlatforms: successful,
		FailedPlatforms:     failed,
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		CostBreakdown:       e.costBreakdown(),
		ConfidenceScore:     confidence,
		Metadata: map[string]interface{}{
			"query":    req.Query,
			"location": req.Location,
			"request_id": requestID,
		},
		CreatedAt: start,
	}

	emit(StageCompleted, 100, "search complete")
	return result, requestID, nil
}

func (e *Engine) validate(req models.SearchRequest) error {
	if err := platform.ValidateRequest(req, 1000); err != nil {
		return &common.ValidationError{Field: "search_request", Reason: err.Error()}
	}
	if e.cost != nil {
		check := e.cost.CheckLimits()
		switch {
		case !check.DailyOK:
			return &common.BudgetExceededError{Window: "daily", Limit: check.DailyRemaining, Attempted: check.DailyCost}
		case !check.HourlyOK:
			return &common.BudgetExceededError{Window: "hourly", Limit: check.HourlyRemaining, Attempted: check.HourlyCost}
		case !check.MonthlyOK:
			return &common.BudgetExceededError{Window: "monthly", Limit: check.MonthlyRemaining, Attempted: check.MonthlyCost}
		}
	}
	return nil
}

// analyzeQuery asks the model client (if configured) to analyze the query,
// falling back to a bare keyword split otherwise.
func (e *Engine) analyzeQuery(ctx context.Context, req models.SearchRequest) QueryAnalysis {
	if e.models != nil {
		if analysis, err := e.models.TextAnalyze(ctx, req.Query, "extract job_type, experience_level, industry, and keywords"); err == nil {
			return analysis
		}
	}
	return QueryAnalysis{Keywords: splitKeywords(req.Query), JobType: "unknown", ExperienceLevel: "unknown", Industry: "unknown"}
}

func splitKeywords(query string) []string {
	var words []string
	var cur []rune
	for _, r := range query {
		if r == ' ' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

// selectPlatforms honors the caller's explicit platform list when given,
// otherwise asks the registry to pick the best candidates for the query.
func (e *Engine) selectPlatforms(req models.SearchRequest, analysis QueryAnalysis) []string {
	if len(req.Platforms) > 0 {
		return req.Platforms
	}
	max := e.cfg.MaxConcurrentPlatforms
	if max <= 0 {
		max = 3
	}
	return e.registry.SelectBest(req, models.CapabilityJobSearch, max)
}

// searchPlatforms submits one scheduler task per platform, each invoking
// that platform's adapter at its best-supported method, and polls until
// every task reaches a terminal state. The scheduler owns retries
// internally, so a task may run more than once before settling — this is
// why completion is observed via Status rather than a WaitGroup signaled
// from inside the (possibly re-invoked) task function. A task's eventual
// failure becomes an empty, failed SearchResult for that platform rather
// than aborting the others.
func (e *Engine) searchPlatforms(ctx context.Context, req models.SearchRequest, platforms []string) map[string]models.SearchResult {
	taskIDs := make(map[string]string, len(platforms))
	for _, name := range platforms {
		name := name
		taskIDs[name] = e.scheduler.Submit(func(taskCtx context.Context) (interface{}, error) {
			adapter, err := e.registry.GetAdapter(name)
			if err != nil {
				return nil, err
			}
			if adapter == nil {
				return nil, fmt.Errorf("platform %s is not registered or disabled", name)
			}
			return adapter.SearchJobs(taskCtx, req, adapter.BestMethod(req))
		}, models.PriorityNormal, 2, 30*time.Second)
	}

	out := make(map[string]models.SearchResult, len(platforms))
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	pending := len(taskIDs)
	for pending > 0 {
		select {
		case <-ctx.Done():
			for name := range taskIDs {
				if _, done := out[name]; !done {
					out[name] = models.SearchResult{FailedPlatforms: []string{name}}
				}
			}
			return out
		case <-ticker.C:
			for name, id := range taskIDs {
				if _, done := out[name]; done {
					continue
				}
				status, ok := e.scheduler.Status(id)
				if !ok || !isTerminal(status.Status) {
					continue
				}
				raw, err := e.scheduler.Result(id)
				if err != nil {
					out[name] = models.SearchResult{FailedPlatforms: []string{name}}
				} else if res, ok := raw.(models.SearchResult); ok {
					res.SuccessfulPlatforms = []string{name}
					out[name] = res
				} else {
					out[name] = models.SearchResult{FailedPlatforms: []string{name}}
				}
				pending--
			}
		}
	}
	return out
}

func isTerminal(status models.TaskStatus) bool {
	return status == models.TaskCompleted || status == models.TaskFailed || status == models.TaskCancelled
}

func (e *Engine) costBreakdown() map[string]float64 {
	if e.cost == nil {
		return map[string]float64{}
	}
	return map[string]float64{
		"hourly_usd":  e.cost.HourlyCost(),
		"daily_usd":   e.cost.DailyCost(),
		"monthly_usd": e.cost.MonthlyCost(),
	}
}

var requestSeq struct {
	mu  sync.Mutex
	n   int
}

// newRequestID assigns a process-unique, monotonically increasing request
// ID. Using a counter rather than a UUID library keeps correlation
// deterministic for tests without reaching for an extra dependency the rest
// of the engine has no other use for.
func newRequestID() string {
	requestSeq.mu.Lock()
	requestSeq.n++
	n := requestSeq.n
	requestSeq.mu.Unlock()
	return fmt.Sprintf("req-%d", n)
}
