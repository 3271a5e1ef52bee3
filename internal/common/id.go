package common

import (
	"github.com/google/uuid"
)

// NewTaskID generates a unique scheduler task ID with the "task_" prefix.
// Format: task_<uuid>
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewJobID generates a unique job-record ID with the "job_" prefix, used when
// a platform adapter cannot supply a stable platform-native job identifier.
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}
