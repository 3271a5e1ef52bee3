package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/scheduler"
)

func noopLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %v", timeout)
}

// TestPriorityOrdering verifies that urgent tasks are dispatched ahead of
// lower-priority ones submitted earlier, as long as they are still pending
// when a slot opens (priority never inverts).
func TestPriorityOrdering(t *testing.T) {
	s := scheduler.New(1, noopLogger())
	s.Start()
	defer s.Stop()

	gate := make(chan struct{})
	var order []string
	done := make(chan struct{}, 3)

	blockerID := s.Submit(func(ctx context.Context) (interface{}, error) {
		<-gate
		return nil, nil
	}, models.PriorityNormal, 0, 0)

	s.Submit(func(ctx context.Context) (interface{}, error) {
		order = append(order, "low")
		done <- struct{}{}
		return nil, nil
	}, models.PriorityLow, 0, 0)

	s.Submit(func(ctx context.Context) (interface{}, error) {
		order = append(order, "urgent")
		done <- struct{}{}
		return nil, nil
	}, models.PriorityUrgent, 0, 0)

	waitFor(t, time.Second, func() bool {
		st, ok := s.Status(blockerID)
		return ok && st.Status == models.TaskRunning
	})
	close(gate)

	<-done
	<-done

	require.Len(t, order, 2)
	assert.Equal(t, "urgent", order[0])
	assert.Equal(t, "low", order[1])
}

// TestConcurrencyBound verifies at most max_concurrent tasks run
// simultaneously: 5 tasks of ~100ms each with max_concurrent=2, recording
// the highest number running at once.
func TestConcurrencyBound(t *testing.T) {
	s := scheduler.New(2, noopLogger())
	s.Start()
	defer s.Stop()

	var concurrent int32
	var maxSeen int32
	const n = 5

	results := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		s.Submit(func(ctx context.Context) (interface{}, error) {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, cur) {
					break
				}
			}
			time.Sleep(100 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			results <- struct{}{}
			return nil, nil
		}, models.PriorityNormal, 0, 0)
	}

	for i := 0; i < n; i++ {
		<-results
	}

	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), 2)
}

// TestRetryThenFail verifies a task that always errors retries up to
// max_retries then is marked failed.
func TestRetryThenFail(t *testing.T) {
	s := scheduler.New(2, noopLogger())
	s.Start()
	defer s.Stop()

	var attempts int32
	id := s.Submit(func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("boom")
	}, models.PriorityNormal, 2, 0)

	waitFor(t, 5*time.Second, func() bool {
		st, ok := s.Status(id)
		return ok && st.Status == models.TaskFailed
	})

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&attempts)), 2)
}

// TestTimeoutRetries verifies a running task whose context deadline expires
// is retried like any other task error, not terminated as cancelled.
func TestTimeoutRetries(t *testing.T) {
	s := scheduler.New(2, noopLogger())
	s.Start()
	defer s.Stop()

	var attempts int32
	id := s.Submit(func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "done", nil
	}, models.PriorityNormal, 2, 50*time.Millisecond)

	waitFor(t, 5*time.Second, func() bool {
		st, ok := s.Status(id)
		return ok && st.Status == models.TaskCompleted
	})

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&attempts)), 2)
	st, _ := s.Status(id)
	assert.Equal(t, models.TaskCompleted, st.Status)
}

// TestCancelPending verifies a pending task's cancellation is synchronous.
func TestCancelPending(t *testing.T) {
	s := scheduler.New(1, noopLogger())
	// Not started: the dispatch loop never drains the queue, so the task
	// stays pending until explicitly cancelled.

	gate := make(chan struct{})
	_ = s.Submit(func(ctx context.Context) (interface{}, error) {
		<-gate
		return nil, nil
	}, models.PriorityNormal, 0, 0)

	id := s.Submit(func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, models.PriorityNormal, 0, 0)

	ok := s.Cancel(id)
	assert.True(t, ok)

	st, found := s.Status(id)
	require.True(t, found)
	assert.Equal(t, models.TaskCancelled, st.Status)
	close(gate)
}

func TestStatsCounters(t *testing.T) {
	s := scheduler.New(2, noopLogger())
	s.Start()
	defer s.Stop()

	id := s.Submit(func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, models.PriorityNormal, 0, 0)

	waitFor(t, time.Second, func() bool {
		st, ok := s.Status(id)
		return ok && st.Status == models.TaskCompleted
	})

	stats := s.Stats()
	assert.Equal(t, 1, stats.Completed)

	result, err := s.Result(id)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
