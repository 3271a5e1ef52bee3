// Package scheduler implements the admission-controlled, priority-ordered,
// concurrency-limited async task runner (C2): a pending priority queue plus
// a bounded-concurrency dispatch loop.
package scheduler

import (
	"context"
	"time"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
)

// Func is the operation a Task wraps. It receives the scheduler's dispatch
// context, which is cancelled on Cancel or scheduler Stop.
type Func func(ctx context.Context) (interface{}, error)

// Task is one unit of scheduled work.
type Task struct {
	ID         string
	Priority   models.Priority
	MaxRetries int
	Timeout    time.Duration

	fn Func

	status     models.TaskStatus
	result     interface{}
	err        error
	retryCount int
	submitted  time.Time
	started    time.Time
	completed  time.Time
	seq        uint64 // breaks priority ties FIFO
	cancel     context.CancelFunc
}

// NewTask constructs a pending task. A zero Priority is models.PriorityLow.
func NewTask(fn Func, priority models.Priority, maxRetries int, timeout time.Duration) *Task {
	return &Task{
		ID:         common.NewTaskID(),
		Priority:   priority,
		MaxRetries: maxRetries,
		Timeout:    timeout,
		fn:         fn,
		status:     models.TaskPending,
		submitted:  time.Now(),
	}
}

// Status is the snapshot returned by Scheduler.Status.
type Status struct {
	ID         string
	Priority   models.Priority
	Status     models.TaskStatus
	RetryCount int
	Submitted  time.Time
	Started    time.Time
	Completed  time.Time
	Err        error
}

func (t *Task) snapshot() Status {
	return Status{
		ID:         t.ID,
		Priority:   t.Priority,
		Status:     t.status,
		RetryCount: t.retryCount,
		Submitted:  t.submitted,
		Started:    t.started,
		Completed:  t.completed,
		Err:        t.err,
	}
}
