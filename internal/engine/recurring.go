package engine

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ternarybob/jobscout/internal/models"
)

// RecurringSearch runs a fixed SearchRequest on a cron schedule, using
// robfig/cron the same way the teacher's scheduler service does for its
// own periodic jobs — a single *cron.Cron instance, one entry per
// registration, guarded against overlapping runs of the same entry.
type RecurringSearch struct {
	engine *Engine
	cron   *cron.Cron

	mu      sync.Mutex
	running map[cron.EntryID]bool
}

// NewRecurringSearch wraps engine with a cron driver. Call Start/Stop to
// control the underlying scheduler.
func NewRecurringSearch(e *Engine) *RecurringSearch {
	return &RecurringSearch{engine: e, cron: cron.New(), running: make(map[cron.EntryID]bool)}
}

// Register schedules req to run on spec (standard 5-field cron syntax,
// e.g. "0 */6 * * *" for every six hours). onResult, if non-nil, is called
// with every completed SearchResult. A run already in flight when its next
// tick arrives is skipped rather than stacked.
func (r *RecurringSearch) Register(spec string, req models.SearchRequest, onResult func(models.SearchResult)) (cron.EntryID, error) {
	var id cron.EntryID
	entryID, err := r.cron.AddFunc(spec, func() {
		r.mu.Lock()
		if r.running[id] {
			r.mu.Unlock()
			return
		}
		r.running[id] = true
		r.mu.Unlock()

		defer func() {
			r.mu.Lock()
			r.running[id] = false
			r.mu.Unlock()
		}()

		result, err := r.engine.SearchJobs(context.Background(), req)
		if err != nil {
			r.engine.logger.Error().Err(err).Msg("recurring search failed")
			return
		}
		if onResult != nil {
			onResult(result)
		}
	})
	id = entryID
	return entryID, err
}

// Start begins dispatching scheduled entries.
func (r *RecurringSearch) Start() { r.cron.Start() }

// Stop halts dispatch; entries already running finish.
func (r *RecurringSearch) Stop() { r.cron.Stop() }
