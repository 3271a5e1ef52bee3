// Package pipeline implements the ETL pipeline (C6): a sequence of pluggable
// stages, run in the order they are registered, that carries JobRecords from
// raw scrape output through stages such as validation, cleaning,
// transformation, enrichment, deduplication, and storage. File export
// (stages.Export) is not a Stage and runs separately over Run's survivors.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
)

// Stage is one named step in the pipeline. Process runs once per item;
// implementations that can run items independently should be safe to call
// concurrently when the pipeline's parallelism is enabled.
type Stage interface {
	Name() string
	Process(ctx context.Context, job models.JobRecord) models.PipelineResult
}

// Config controls batching, parallelism, and checkpointing.
type Config struct {
	BatchSize         int
	MaxWorkers        int
	ParallelEnabled   bool
	CheckpointInterval int
	CheckpointPath    string
}

func (c Config) withDefaults() Config {
	if c.BatchSize < 1 {
		c.BatchSize = 100
	}
	if c.MaxWorkers < 1 {
		c.MaxWorkers = 4
	}
	return c
}

// StageMetrics accumulates one stage's outcome counts and timing.
type StageMetrics struct {
	Processed     int
	Failed        int
	Skipped       int
	TotalTime     time.Duration
}

// AvgTime is the mean per-item processing time for the stage.
func (m StageMetrics) AvgTime() time.Duration {
	total := m.Processed + m.Failed + m.Skipped
	if total == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(total)
}

// Metrics is the pipeline's overall and per-stage run state.
type Metrics struct {
	Total     int
	Processed int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time

	Stages map[string]*StageMetrics
}

// SuccessRate is Processed/Total, or 0 when nothing has run yet.
func (m Metrics) SuccessRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Processed) / float64(m.Total)
}

// Throughput is Processed items per second of wall-clock run time.
func (m Metrics) Throughput() float64 {
	elapsed := m.EndTime.Sub(m.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.Processed) / elapsed
}

type checkpoint struct {
	PipelineName   string    `json:"pipeline_name"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessedCount int       `json:"processed_count"`
	Counters       struct {
		Total     int `json:"total"`
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
		Skipped   int `json:"skipped"`
	} `json:"counters"`
}

// Pipeline runs a fixed, ordered sequence of registered stages over batches
// of JobRecords.
type Pipeline struct {
	name   string
	cfg    Config
	logger arbor.ILogger

	mu     sync.Mutex
	stages []Stage

	metrics Metrics

	paused  bool
	stopped bool
}

// New constructs a Pipeline with the given stages run in the order given.
func New(name string, cfg Config, logger arbor.ILogger, stages ...Stage) *Pipeline {
	return &Pipeline{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: logger,
		stages: stages,
		metrics: Metrics{
			Stages: make(map[string]*StageMetrics),
		},
	}
}

// Pause sets a flag observed between batches; the current batch still
// finishes.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.logger.Info().Str("pipeline", p.name).Msg("pipeline paused")
}

// Resume clears the pause flag.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.logger.Info().Str("pipeline", p.name).Msg("pipeline resumed")
}

// Stop drains the in-flight batch then exits Run.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.logger.Info().Str("pipeline", p.name).Msg("pipeline stop requested")
}

func (p *Pipeline) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Pipeline) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Metrics returns a snapshot of the pipeline's run metrics.
func (p *Pipeline) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// Run processes jobs in batches of cfg.BatchSize, advancing every item
// stage-by-stage, and returns the survivors (items that completed every
// stage without being filtered or failed).
func (p *Pipeline) Run(ctx context.Context, jobs []models.JobRecord) ([]models.JobRecord, error) {
	p.mu.Lock()
	p.metrics = Metrics{Total: len(jobs), StartTime: time.Now(), Stages: make(map[string]*StageMetrics)}
	p.stopped = false
	p.mu.Unlock()

	var survivors []models.JobRecord
	processedSoFar := 0

	for i := 0; i < len(jobs); i += p.cfg.BatchSize {
		if p.isStopped() {
			break
		}
		for p.isPaused() && !p.isStopped() {
			select {
			case <-ctx.Done():
				return survivors, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}

		end := i + p.cfg.BatchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batch := jobs[i:end]

		results := p.runBatch(ctx, batch)
		for _, r := range results {
			processedSoFar++
			switch r.Status {
			case models.PipelineCompleted:
				if r.Data != nil {
					survivors = append(survivors, *r.Data)
				}
			case models.PipelineFailed:
				p.logger.Debug().Str("pipeline", p.name).Str("stage", r.Stage).Err(r.Error).Msg("item failed in pipeline")
			}
		}

		if p.cfg.CheckpointInterval > 0 && processedSoFar%p.cfg.CheckpointInterval == 0 {
			p.writeCheckpoint(processedSoFar)
		}
	}

	p.mu.Lock()
	p.metrics.EndTime = time.Now()
	p.mu.Unlock()

	p.logger.Info().
		Str("pipeline", p.name).
		Int("total", p.metrics.Total).
		Int("processed", p.metrics.Processed).
		Int("failed", p.metrics.Failed).
		Int("skipped", p.metrics.Skipped).
		Float64("success_rate", p.metrics.SuccessRate()).
		Float64("throughput", p.metrics.Throughput()).
		Msg("pipeline run complete")

	return survivors, nil
}

// runBatch advances one batch through every registered stage in order,
// preserving input order, and returns one PipelineResult per input item.
// An item that fails or is skipped keeps that result and is not passed to
// the later stages.
func (p *Pipeline) runBatch(ctx context.Context, batch []models.JobRecord) []models.PipelineResult {
	current := make([]models.PipelineResult, len(batch))
	for i, job := range batch {
		j := job
		current[i] = models.PipelineResult{Status: models.PipelineCompleted, Data: &j}
	}

	for _, stage := range p.stages {
		stageStart := time.Now()

		live := make([]models.PipelineResult, 0, len(current))
		liveIdx := make([]int, 0, len(current))
		for i, r := range current {
			if r.Status == models.PipelineCompleted && r.Data != nil {
				live = append(live, r)
				liveIdx = append(liveIdx, i)
			}
		}

		var stageResults []models.PipelineResult
		if p.cfg.ParallelEnabled && len(live) > 1 {
			stageResults = p.processParallel(ctx, stage, live)
		} else {
			stageResults = p.processSequential(ctx, stage, live)
		}

		for j, idx := range liveIdx {
			current[idx] = stageResults[j]
		}

		p.recordStageMetrics(stage.Name(), stageResults, time.Since(stageStart))
	}

	p.updateOverallMetrics(current)
	return current
}

func (p *Pipeline) processSequential(ctx context.Context, stage Stage, items []models.PipelineResult) []models.PipelineResult {
	results := make([]models.PipelineResult, len(items))
	for i, r := range items {
		results[i] = p.safeProcess(ctx, stage, *r.Data)
	}
	return results
}

func (p *Pipeline) processParallel(ctx context.Context, stage Stage, items []models.PipelineResult) []models.PipelineResult {
	results := make([]models.PipelineResult, len(items))
	sem := make(chan struct{}, p.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, r := range items {
		i, job := i, *r.Data
		wg.Add(1)
		sem <- struct{}{}
		common.SafeGo(p.logger, fmt.Sprintf("pipeline-%s-%s", p.name, stage.Name()), func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.safeProcess(ctx, stage, job)
		})
	}
	wg.Wait()
	return results
}

func (p *Pipeline) safeProcess(ctx context.Context, stage Stage, job models.JobRecord) (result models.PipelineResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = models.PipelineResult{
				Status: models.PipelineFailed,
				Error:  fmt.Errorf("stage %s panicked: %v", stage.Name(), rec),
				Stage:  stage.Name(),
			}
		}
		result.ProcessingTime = time.Since(start)
		result.Stage = stage.Name()
	}()
	return stage.Process(ctx, job)
}

func (p *Pipeline) recordStageMetrics(stageName string, results []models.PipelineResult, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sm, ok := p.metrics.Stages[stageName]
	if !ok {
		sm = &StageMetrics{}
		p.metrics.Stages[stageName] = sm
	}
	for _, r := range results {
		switch r.Status {
		case models.PipelineCompleted:
			sm.Processed++
		case models.PipelineFailed:
			sm.Failed++
		case models.PipelineSkipped:
			sm.Skipped++
		}
	}
	sm.TotalTime += elapsed
}

func (p *Pipeline) updateOverallMetrics(results []models.PipelineResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range results {
		switch r.Status {
		case models.PipelineCompleted:
			p.metrics.Processed++
		case models.PipelineFailed:
			p.metrics.Failed++
		case models.PipelineSkipped:
			p.metrics.Skipped++
		}
	}
}

func (p *Pipeline) writeCheckpoint(processedCount int) {
	if p.cfg.CheckpointPath == "" {
		return
	}

	p.mu.Lock()
	cp := checkpoint{
		PipelineName:   p.name,
		Timestamp:      time.Now(),
		ProcessedCount: processedCount,
	}
	cp.Counters.Total = p.metrics.Total
	cp.Counters.Processed = p.metrics.Processed
	cp.Counters.Failed = p.metrics.Failed
	cp.Counters.Skipped = p.metrics.Skipped
	p.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to marshal checkpoint")
		return
	}

	if err := os.MkdirAll(filepath.Dir(p.cfg.CheckpointPath), 0o755); err != nil {
		p.logger.Warn().Err(err).Msg("failed to create checkpoint directory")
		return
	}

	tmp := p.cfg.CheckpointPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		p.logger.Warn().Err(err).Msg("failed to write checkpoint")
		return
	}
	if err := os.Rename(tmp, p.cfg.CheckpointPath); err != nil {
		p.logger.Warn().Err(err).Msg("failed to finalize checkpoint")
	}
}

// LoadCheckpoint reads and returns the last-written checkpoint, or nil if
// none exists. Restart resumes metrics bookkeeping from it; reprocessing of
// already-stored items is safe because storage upserts on job_id.
func LoadCheckpoint(path string) (*struct {
	PipelineName   string
	Timestamp      time.Time
	ProcessedCount int
}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &struct {
		PipelineName   string
		Timestamp      time.Time
		ProcessedCount int
	}{PipelineName: cp.PipelineName, Timestamp: cp.Timestamp, ProcessedCount: cp.ProcessedCount}, nil
}
