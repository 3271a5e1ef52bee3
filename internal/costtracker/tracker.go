// Package costtracker implements the cost tracker (C3): per-request model
// usage estimation, budget gating against hourly/daily/monthly caps, and a
// capped on-disk JSON journal replayed at startup.
package costtracker

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobscout/internal/models"
)

const journalCap = 1000

// Limits holds the three fixed USD budget caps.
type Limits struct {
	Hourly  float64
	Daily   float64
	Monthly float64
}

// LimitCheck is the result of check_limits: an ok flag plus remaining budget
// for each window.
type LimitCheck struct {
	HourlyOK        bool
	DailyOK         bool
	MonthlyOK       bool
	HourlyCost      float64
	DailyCost       float64
	MonthlyCost     float64
	HourlyRemaining float64
	DailyRemaining  float64
	MonthlyRemaining float64
}

// Tracker is the cost tracker. All mutation goes through a single mutex; the
// journal file has exactly one writer (this Tracker), matching the "commit
// to a single writer" resolution for the original's cross-process journal.
type Tracker struct {
	logger      arbor.ILogger
	journalPath string
	limits      Limits

	mu      sync.Mutex
	records []models.UsageRecord
}

// New constructs a Tracker and replays any existing journal at journalPath
// into memory. A missing journal file is not an error.
func New(journalPath string, limits Limits, logger arbor.ILogger) (*Tracker, error) {
	t := &Tracker{
		logger:      logger,
		journalPath: journalPath,
		limits:      limits,
	}

	if err := t.replay(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) replay() error {
	data, err := os.ReadFile(t.journalPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cost journal: %w", err)
	}

	var records []models.UsageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.logger.Warn().Err(err).Str("path", t.journalPath).Msg("cost journal unreadable, starting fresh")
		return nil
	}

	t.records = records
	t.logger.Info().Int("count", len(records)).Msg("cost journal replayed")
	return nil
}

// Estimate computes a dollar cost for one model call. An unrecognized model
// falls back to the default model's pricing and logs a warning. Estimation
// never errors; failures return 0 and are logged.
func (t *Tracker) Estimate(model string, tokens int, hasImage bool, inTokens, outTokens *int) float64 {
	price, known := priceFor(model)
	if !known {
		t.logger.Warn().Str("model", model).Msg("unknown model, using default pricing")
	}

	var cost float64
	if inTokens != nil && outTokens != nil {
		cost += float64(*inTokens) / 1000 * price.InputPer1K
		cost += float64(*outTokens) / 1000 * price.OutputPer1K
	} else {
		avg := (price.InputPer1K + price.OutputPer1K) / 2
		cost += float64(tokens) / 1000 * avg
	}

	if hasImage && price.PerImage > 0 {
		cost += price.PerImage
	}

	return round6(cost)
}

// Record appends a usage record and persists the journal. Persistence
// failures are logged but never returned to the caller (fire-and-forget).
func (t *Tracker) Record(record models.UsageRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, record)
	if len(t.records) > journalCap {
		t.records = t.records[len(t.records)-journalCap:]
	}

	if err := t.persistLocked(); err != nil {
		t.logger.Error().Err(err).Msg("failed to persist cost journal")
	}
}

func (t *Tracker) persistLocked() error {
	data, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cost journal: %w", err)
	}

	if dir := filepath.Dir(t.journalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating journal dir: %w", err)
		}
	}

	tmp := t.journalPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing journal temp file: %w", err)
	}
	return os.Rename(tmp, t.journalPath)
}

// HourlyCost sums costs recorded in the current hour.
func (t *Tracker) HourlyCost() float64 { return t.costSince(time.Now().Truncate(time.Hour)) }

// DailyCost sums costs recorded since local midnight.
func (t *Tracker) DailyCost() float64 {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return t.costSince(start)
}

// MonthlyCost sums costs recorded since the first of the current month.
func (t *Tracker) MonthlyCost() float64 {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return t.costSince(start)
}

func (t *Tracker) costSince(start time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum float64
	for _, r := range t.records {
		if !r.Timestamp.Before(start) {
			sum += r.CostUSD
		}
	}
	return round6(sum)
}

// CheckLimits returns whether each window is within budget, alongside
// current cost and remaining headroom. Callers MUST consult this before a
// billable call and refuse it when the applicable limit is exceeded.
func (t *Tracker) CheckLimits() LimitCheck {
	hourly := t.HourlyCost()
	daily := t.DailyCost()
	monthly := t.MonthlyCost()

	return LimitCheck{
		HourlyOK:         hourly < t.limits.Hourly,
		DailyOK:          daily < t.limits.Daily,
		MonthlyOK:        monthly < t.limits.Monthly,
		HourlyCost:       hourly,
		DailyCost:        daily,
		MonthlyCost:      monthly,
		HourlyRemaining:  maxFloat(0, t.limits.Hourly-hourly),
		DailyRemaining:   maxFloat(0, t.limits.Daily-daily),
		MonthlyRemaining: maxFloat(0, t.limits.Monthly-monthly),
	}
}

// UsageStats is the aggregate returned by UsageStats for a trailing window.
type UsageStats struct {
	WindowDays         int
	TotalCostUSD       float64
	TotalTokens        int
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	ByModel            map[string]*Bucket
	ByRequestType      map[string]*Bucket
	ByPlatform         map[string]*Bucket
}

// Bucket is one group's aggregate within UsageStats.
type Bucket struct {
	Requests int
	Tokens   int
	CostUSD  float64
}

// UsageStats aggregates records from the trailing windowDays into per-model,
// per-request-type, and per-platform buckets.
func (t *Tracker) UsageStats(windowDays int) UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now().AddDate(0, 0, -windowDays)
	stats := UsageStats{
		WindowDays:    windowDays,
		ByModel:       make(map[string]*Bucket),
		ByRequestType: make(map[string]*Bucket),
		ByPlatform:    make(map[string]*Bucket),
	}

	for _, r := range t.records {
		if r.Timestamp.Before(start) {
			continue
		}
		stats.TotalCostUSD += r.CostUSD
		stats.TotalTokens += r.TokensIn + r.TokensOut
		stats.TotalRequests++
		if r.Success {
			stats.SuccessfulRequests++
		} else {
			stats.FailedRequests++
		}

		bump(stats.ByModel, r.Model, r)
		bump(stats.ByRequestType, r.RequestType, r)

		platform := "unknown"
		if r.Platform != nil {
			platform = *r.Platform
		}
		bump(stats.ByPlatform, platform, r)
	}

	stats.TotalCostUSD = round6(stats.TotalCostUSD)
	return stats
}

func bump(m map[string]*Bucket, key string, r models.UsageRecord) {
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	b.Requests++
	b.Tokens += r.TokensIn + r.TokensOut
	b.CostUSD = round6(b.CostUSD + r.CostUSD)
}

// Export writes records within [start, end) to dir in the given format
// ("json" or "csv") and returns the written file's path.
func (t *Tracker) Export(start, end time.Time, format, dir string) (string, error) {
	t.mu.Lock()
	var period []models.UsageRecord
	for _, r := range t.records {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			period = append(period, r)
		}
	}
	t.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")

	switch format {
	case "json":
		path := filepath.Join(dir, fmt.Sprintf("usage_export_%s.json", stamp))
		data, err := json.MarshalIndent(period, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling usage export: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("writing usage export: %w", err)
		}
		return path, nil

	case "csv":
		path := filepath.Join(dir, fmt.Sprintf("usage_export_%s.csv", stamp))
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("creating usage export: %w", err)
		}
		defer f.Close()

		w := csv.NewWriter(f)
		defer w.Flush()

		header := []string{"timestamp", "model", "tokens_in", "tokens_out", "cost_usd", "request_type", "platform", "success", "error_message"}
		if err := w.Write(header); err != nil {
			return "", err
		}
		for _, r := range period {
			platform := ""
			if r.Platform != nil {
				platform = *r.Platform
			}
			errMsg := ""
			if r.ErrorMessage != nil {
				errMsg = *r.ErrorMessage
			}
			row := []string{
				r.Timestamp.Format(time.RFC3339),
				r.Model,
				strconv.Itoa(r.TokensIn),
				strconv.Itoa(r.TokensOut),
				strconv.FormatFloat(r.CostUSD, 'f', -1, 64),
				r.RequestType,
				platform,
				strconv.FormatBool(r.Success),
				errMsg,
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
		return path, nil

	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func round6(f float64) float64 {
	const factor = 1e6
	return float64(int64(f*factor+0.5)) / factor
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
