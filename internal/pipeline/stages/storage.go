package stages

import (
	"context"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
)

// Storage delegates each item to a Store backend; a write failure fails the
// item rather than aborting the batch.
type Storage struct {
	store storage.Store
}

// NewStorage constructs a Storage stage writing through store.
func NewStorage(store storage.Store) *Storage {
	return &Storage{store: store}
}

func (s *Storage) Name() string { return "storage" }

func (s *Storage) Process(ctx context.Context, job models.JobRecord) models.PipelineResult {
	if err := s.store.Store(ctx, job); err != nil {
		return models.PipelineResult{
			Status: models.PipelineFailed,
			Error:  &common.StorageError{Op: "pipeline storage stage", Err: err},
		}
	}
	return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
}
