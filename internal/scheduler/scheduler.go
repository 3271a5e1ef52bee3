package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
)

const (
	dispatchInterval = 100 * time.Millisecond
	completedCap     = 1000
	maxRetryDelay    = 60 * time.Second
)

// Scheduler is the C2 task runner: a priority pending queue plus a
// bounded-concurrency dispatch loop, matching the original's heapq +
// asyncio.sleep(0.1) shape.
type Scheduler struct {
	logger        arbor.ILogger
	maxConcurrent int

	mu        sync.Mutex
	pending   *taskHeap
	running   map[string]*Task
	completed map[string]*Task
	nextSeq   uint64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// New constructs a Scheduler with the given concurrency bound. Call Start to
// begin the dispatch loop.
func New(maxConcurrent int, logger arbor.ILogger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		logger:        logger,
		maxConcurrent: maxConcurrent,
		pending:       newTaskHeap(),
		running:       make(map[string]*Task),
		completed:     make(map[string]*Task),
	}
}

// Start launches the dispatch loop in the background. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.wg.Add(1)
	dispatchCtx := s.ctx
	common.SafeGoWithContext(dispatchCtx, s.logger, "scheduler-dispatch", func() {
		s.dispatchLoop(dispatchCtx)
	})

	s.logger.Info().Int("max_concurrent", s.maxConcurrent).Msg("scheduler started")
}

// Stop signals the dispatch loop to exit, cancels the context in-flight
// tasks run under, and blocks until the dispatch loop, running tasks, and
// scheduled retries have finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Submit enqueues fn as a new task and returns its id.
func (s *Scheduler) Submit(fn Func, priority models.Priority, maxRetries int, timeout time.Duration) string {
	task := NewTask(fn, priority, maxRetries, timeout)

	s.mu.Lock()
	task.seq = s.nextSeq
	s.nextSeq++
	heap.Push(s.pending, task)
	s.mu.Unlock()

	s.logger.Debug().Str("task_id", task.ID).Str("priority", priority.String()).Msg("task submitted")
	return task.ID
}

// Status returns the current status snapshot of a task, if known.
func (s *Scheduler) Status(id string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.running[id]; ok {
		return t.snapshot(), true
	}
	if t, ok := s.completed[id]; ok {
		return t.snapshot(), true
	}
	for _, t := range *s.pending {
		if t.ID == id {
			return t.snapshot(), true
		}
	}
	return Status{}, false
}

// Result returns a completed task's result, or an error if it is not
// completed or failed.
func (s *Scheduler) Result(id string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.completed[id]
	if !ok {
		return nil, fmt.Errorf("task %s not completed", id)
	}
	return t.result, t.err
}

// Cancel requests cancellation of a task. A pending task is removed from the
// queue and marked cancelled synchronously. A running task's context is
// cancelled; the running function is responsible for honoring it.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range *s.pending {
		if t.ID == id {
			heap.Remove(s.pending, i)
			t.status = models.TaskCancelled
			t.completed = time.Now()
			s.addCompletedLocked(t)
			return true
		}
	}

	if t, ok := s.running[id]; ok {
		if t.cancel != nil {
			t.cancel()
		}
		return true
	}

	return false
}

// Stats is the scheduler's counter snapshot.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// Stats returns current queue/running/terminal counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Pending: s.pending.Len(), Running: len(s.running)}
	for _, t := range s.completed {
		switch t.status {
		case models.TaskCompleted:
			stats.Completed++
		case models.TaskFailed:
			stats.Failed++
		case models.TaskCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	// addCompletedLocked evicts down to completedCap on every insert, so the
	// completed map never exceeds the cap between ticks.

	slots := s.maxConcurrent - len(s.running)
	var toStart []*Task
	for slots > 0 && s.pending.Len() > 0 {
		task := heap.Pop(s.pending).(*Task)
		toStart = append(toStart, task)
		slots--
	}
	s.mu.Unlock()

	for _, task := range toStart {
		s.startTask(ctx, task)
	}
}

func (s *Scheduler) startTask(ctx context.Context, task *Task) {
	taskCtx, cancel := context.WithCancel(ctx)
	if task.Timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, task.Timeout)
	}
	task.cancel = cancel
	task.status = models.TaskRunning
	task.started = time.Now()

	s.mu.Lock()
	s.running[task.ID] = task
	s.mu.Unlock()

	s.wg.Add(1)
	common.SafeGo(s.logger, "scheduler-task-"+task.ID, func() {
		defer s.wg.Done()
		defer cancel()
		s.runTask(taskCtx, task)
	})
}

func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	result, err := task.fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, task.ID)

	// A deadline is retry-eligible under the scheduler's retry policy, same
	// as any other task error; only an explicit cancel terminates the task.
	if ctx.Err() != nil && err != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		task.status = models.TaskCancelled
		task.completed = time.Now()
		s.addCompletedLocked(task)
		return
	}

	if err != nil {
		task.retryCount++
		if task.retryCount < task.MaxRetries {
			task.status = models.TaskPending
			task.err = err
			s.scheduleRetryLocked(task)
			return
		}
		task.status = models.TaskFailed
		task.err = err
		task.completed = time.Now()
		s.addCompletedLocked(task)
		s.logger.Error().Str("task_id", task.ID).Err(err).Int("retries", task.retryCount).Msg("task failed")
		return
	}

	task.status = models.TaskCompleted
	task.result = result
	task.completed = time.Now()
	s.addCompletedLocked(task)
}

// scheduleRetryLocked sleeps min(60s, 2^retry_count) then re-enqueues by
// priority. Called with s.mu held; spawns a goroutine for the sleep so the
// dispatch loop isn't blocked.
func (s *Scheduler) scheduleRetryLocked(task *Task) {
	delay := time.Duration(1<<uint(task.retryCount)) * time.Second
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	s.wg.Add(1)
	common.SafeGo(s.logger, "scheduler-retry-"+task.ID, func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.Lock()
		task.seq = s.nextSeq
		s.nextSeq++
		heap.Push(s.pending, task)
		s.mu.Unlock()
	})
}

// addCompletedLocked stores a terminal task, evicting the oldest-completed
// entries once the map exceeds completedCap.
func (s *Scheduler) addCompletedLocked(task *Task) {
	s.completed[task.ID] = task
	if len(s.completed) <= completedCap {
		return
	}

	type kv struct {
		id string
		at time.Time
	}
	all := make([]kv, 0, len(s.completed))
	for id, t := range s.completed {
		all = append(all, kv{id, t.completed})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	excess := len(s.completed) - completedCap
	for i := 0; i < excess; i++ {
		delete(s.completed, all[i].id)
	}
}
