// Package hybrid composes cachestore in front of a durable backend
// (sqlstore or filestore): reads try memory first, then the durable
// backend; durable hits are written back into memory; writes go to both.
package hybrid

import (
	"context"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
)

// Store composes a fast in-memory front with a durable backend.
type Store struct {
	memory  storage.Store
	durable storage.Store
}

// New composes memory in front of durable. memory is typically a
// *cachestore.Store; durable a *sqlstore.Store or *filestore.Store.
func New(memory, durable storage.Store) *Store {
	return &Store{memory: memory, durable: durable}
}

func (s *Store) Initialize(ctx context.Context) error {
	if err := s.durable.Initialize(ctx); err != nil {
		return err
	}
	return s.memory.Initialize(ctx)
}

// Store writes to both tiers.
func (s *Store) Store(ctx context.Context, jobs ...models.JobRecord) error {
	if err := s.durable.Store(ctx, jobs...); err != nil {
		return err
	}
	return s.memory.Store(ctx, jobs...)
}

// Retrieve tries memory first and returns its matches if there are any;
// only when memory has no match is durable storage queried, and its
// matches are written back into memory.
func (s *Store) Retrieve(ctx context.Context, query storage.Query) ([]models.JobRecord, error) {
	fromMemory, err := s.memory.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(fromMemory) > 0 {
		return fromMemory, nil
	}

	fromDurable, err := s.durable.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(fromDurable) > 0 {
		_ = s.memory.Store(ctx, fromDurable...)
	}
	return fromDurable, nil
}

// Update applies patch to the durable backend (source of truth), then
// invalidates/refreshes the matching memory entries.
func (s *Store) Update(ctx context.Context, query storage.Query, patch storage.Patch) (int, error) {
	affected, err := s.durable.Update(ctx, query, patch)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		if refreshed, rerr := s.durable.Retrieve(ctx, query); rerr == nil && len(refreshed) > 0 {
			_ = s.memory.Store(ctx, refreshed...)
		}
	}
	return affected, nil
}

// Delete removes from both tiers.
func (s *Store) Delete(ctx context.Context, query storage.Query) (int, error) {
	if _, err := s.memory.Delete(ctx, query); err != nil {
		return 0, err
	}
	return s.durable.Delete(ctx, query)
}

// Count defers to the durable backend, the source of truth for totals.
func (s *Store) Count(ctx context.Context, query storage.Query) (int, error) {
	return s.durable.Count(ctx, query)
}

// Exists checks memory first, then durable.
func (s *Store) Exists(ctx context.Context, query storage.Query) (bool, error) {
	ok, err := s.memory.Exists(ctx, query)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return s.durable.Exists(ctx, query)
}

// Cleanup runs on both tiers.
func (s *Store) Cleanup(ctx context.Context) error {
	if err := s.memory.Cleanup(ctx); err != nil {
		return err
	}
	return s.durable.Cleanup(ctx)
}

func (s *Store) Close() error {
	if err := s.memory.Close(); err != nil {
		return err
	}
	return s.durable.Close()
}

// Stats reports the memory tier's counters (hits/misses are only meaningful
// at the cache layer; durable backends serve as fallback, not cache).
func (s *Store) Stats() storage.Stats {
	return s.memory.Stats()
}

var _ storage.Store = (*Store)(nil)
