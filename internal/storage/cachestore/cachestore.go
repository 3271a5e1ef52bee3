// Package cachestore is the bounded in-memory job-record backend (C4): a
// fixed-size map keyed by job_id with LRU/LFU/FIFO/TTL eviction, a
// background sweeper that clears expired entries, and an optional
// badgerhold-backed persistent tier for entries that survive a restart.
package cachestore

import (
	"context"
	"crypto/md5"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
)

// Policy is the eviction policy applied on insertion overflow.
type Policy string

const (
	PolicyLRU  Policy = "lru"
	PolicyLFU  Policy = "lfu"
	PolicyFIFO Policy = "fifo"
	PolicyTTL  Policy = "ttl"
)

type entry struct {
	key         string
	job         models.JobRecord
	insertedAt  time.Time
	lastAccess  time.Time
	accessCount int
	ttl         time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.insertedAt.Add(e.ttl))
}

// Store is the in-memory storage.Store implementation.
type Store struct {
	logger   arbor.ILogger
	maxSize  int
	policy   Policy
	ttl      time.Duration
	sweepInt time.Duration

	persistent *badgerhold.Store // nil disables the persistent tier

	mu      sync.Mutex
	entries map[string]*entry
	stats   storage.Stats

	stopSweep context.CancelFunc
}

// Config configures a Store.
type Config struct {
	MaxSize       int
	Policy        Policy
	TTL           time.Duration
	SweepInterval time.Duration
	// BadgerPath, if non-empty, enables a badgerhold-backed persistent tier:
	// entries survive process restarts and are replayed on Initialize.
	BadgerPath string
}

// New constructs a Store. If cfg.BadgerPath is set, a badgerhold-backed
// persistent tier opens alongside the in-memory map.
func New(cfg Config, logger arbor.ILogger) (*Store, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10000
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyLRU
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	s := &Store{
		logger:   logger,
		maxSize:  cfg.MaxSize,
		policy:   cfg.Policy,
		ttl:      cfg.TTL,
		sweepInt: cfg.SweepInterval,
		entries:  make(map[string]*entry),
	}

	if cfg.BadgerPath != "" {
		opts := badgerhold.DefaultOptions
		opts.Dir = cfg.BadgerPath
		opts.ValueDir = cfg.BadgerPath
		opts.Logger = nil
		store, err := badgerhold.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("opening badgerhold persistent tier: %w", err)
		}
		s.persistent = store
	}

	return s, nil
}

// cacheKey mirrors the spec's key convention: job_id when present, else an
// md5 hash of platform|title|company|url.
func cacheKey(job models.JobRecord) string {
	if job.JobID != "" {
		return "job:" + job.JobID
	}
	sum := md5.Sum([]byte(job.Platform + "|" + job.Title + "|" + job.Company + "|" + job.URL))
	return fmt.Sprintf("job:%x", sum)
}

// Initialize replays the persistent tier (if any) into memory and starts the sweeper.
func (s *Store) Initialize(ctx context.Context) error {
	if s.persistent != nil {
		var jobs []models.JobRecord
		if err := s.persistent.Find(&jobs, badgerhold.Where(badgerhold.Key).Ne(nil)); err != nil {
			return fmt.Errorf("replaying badgerhold persistent tier: %w", err)
		}
		s.mu.Lock()
		for _, j := range jobs {
			s.insertLocked(j)
		}
		s.mu.Unlock()
		s.logger.Info().Int("count", len(jobs)).Msg("cachestore persistent tier replayed")
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	common.SafeGoWithContext(sweepCtx, s.logger, "cachestore-sweep", func() {
		s.sweepLoop(sweepCtx)
	})
	return nil
}

func (s *Store) sweepLoop(ctx context.Context) {
	interval := s.sweepInt
	if s.ttl > 0 && s.ttl/4 < interval {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			s.stats.Evictions++
		}
	}
}

func (s *Store) Close() error {
	if s.stopSweep != nil {
		s.stopSweep()
	}
	if s.persistent != nil {
		return s.persistent.Close()
	}
	return nil
}

func (s *Store) Stats() storage.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Store inserts or refreshes each record, evicting per policy on overflow.
func (s *Store) Store(ctx context.Context, jobs ...models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range jobs {
		s.insertLocked(j)
	}
	s.stats.Sets += uint64(len(jobs))

	if s.persistent != nil {
		for _, j := range jobs {
			if err := s.persistent.Upsert(cacheKey(j), j); err != nil {
				s.logger.Warn().Err(err).Str("key", cacheKey(j)).Msg("cachestore persistent upsert failed")
			}
		}
	}
	return nil
}

func (s *Store) insertLocked(job models.JobRecord) {
	key := cacheKey(job)
	now := time.Now()
	if e, ok := s.entries[key]; ok {
		e.job = job
		e.lastAccess = now
		return
	}

	if len(s.entries) >= s.maxSize {
		s.evictOneLocked()
	}

	s.entries[key] = &entry{
		key:        key,
		job:        job,
		insertedAt: now,
		lastAccess: now,
		ttl:        s.ttl,
	}
}

func (s *Store) evictOneLocked() {
	if len(s.entries) == 0 {
		return
	}

	var victim *entry
	for _, e := range s.entries {
		if victim == nil {
			victim = e
			continue
		}
		if s.beats(e, victim) {
			victim = e
		}
	}
	if victim != nil {
		delete(s.entries, victim.key)
		s.stats.Evictions++
	}
}

// beats reports whether candidate should be evicted in place of current
// under the configured policy.
func (s *Store) beats(candidate, current *entry) bool {
	switch s.policy {
	case PolicyLFU:
		if candidate.accessCount != current.accessCount {
			return candidate.accessCount < current.accessCount
		}
		return candidate.lastAccess.Before(current.lastAccess)
	case PolicyFIFO:
		return candidate.insertedAt.Before(current.insertedAt)
	case PolicyTTL:
		return candidate.expiry().Before(current.expiry())
	default: // LRU
		return candidate.lastAccess.Before(current.lastAccess)
	}
}

func (e *entry) expiry() time.Time {
	if e.ttl <= 0 {
		return time.Unix(1<<62, 0) // effectively never, sorts last
	}
	return e.insertedAt.Add(e.ttl)
}

// Retrieve scans the in-memory set; a TTL-expired entry is treated as a
// miss and removed rather than returned.
func (s *Store) Retrieve(ctx context.Context, query storage.Query) ([]models.JobRecord, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.JobRecord
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			continue
		}
		if query.Matches(e.job) {
			e.lastAccess = now
			e.accessCount++
			out = append(out, e.job)
			if query.Limit > 0 && len(out) >= query.Limit {
				break
			}
		}
	}
	if len(out) > 0 {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
	return out, nil
}

// Update applies patch to every matching, non-expired entry.
func (s *Store) Update(ctx context.Context, query storage.Query, patch storage.Patch) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			continue
		}
		if !query.Matches(e.job) {
			continue
		}
		applyPatch(&e.job, patch)
		affected++
	}
	return affected, nil
}

func applyPatch(j *models.JobRecord, patch storage.Patch) {
	if patch.Title != nil {
		j.Title = *patch.Title
	}
	if patch.Description != nil {
		j.Description = *patch.Description
	}
	if patch.SalaryMin != nil {
		j.SalaryMin = patch.SalaryMin
	}
	if patch.SalaryMax != nil {
		j.SalaryMax = patch.SalaryMax
	}
	if patch.QualityScore != nil {
		j.QualityScore = *patch.QualityScore
	}
	if patch.ConfidenceScore != nil {
		j.ConfidenceScore = *patch.ConfidenceScore
	}
}

// Delete removes every matching entry.
func (s *Store) Delete(ctx context.Context, query storage.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int
	for k, e := range s.entries {
		if query.Matches(e.job) {
			delete(s.entries, k)
			affected++
		}
	}
	s.stats.Deletes += uint64(affected)
	return affected, nil
}

// Count returns the number of non-expired entries matching query.
func (s *Store) Count(ctx context.Context, query storage.Query) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if query.Matches(e.job) {
			n++
		}
	}
	return n, nil
}

// Exists reports whether any non-expired entry matches query.
func (s *Store) Exists(ctx context.Context, query storage.Query) (bool, error) {
	n, err := s.Count(ctx, query)
	return n > 0, err
}

// Cleanup runs one immediate expiry sweep.
func (s *Store) Cleanup(ctx context.Context) error {
	s.sweepExpired()
	return nil
}

var _ storage.Store = (*Store)(nil)
