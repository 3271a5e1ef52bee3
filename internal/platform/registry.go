package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
)

// Constructor lazily builds an adapter instance on first use.
type Constructor func() (Adapter, error)

type entry struct {
	name        string
	constructor Constructor
	priority    int
	enabled     bool
	adapter     Adapter // lazily instantiated
	health      models.PlatformHealth
}

// Registry tracks registered platform adapters, their health, and selects
// and fans searches out across them.
type Registry struct {
	logger arbor.ILogger

	mu       sync.Mutex
	entries  map[string]*entry
}

// New constructs an empty Registry.
func New(logger arbor.ILogger) *Registry {
	return &Registry{logger: logger, entries: make(map[string]*entry)}
}

// Register adds a platform under name with the given construction function
// and dispatch priority. enabled controls whether it participates in
// selection immediately.
func (r *Registry) Register(name string, constructor Constructor, priority int, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{
		name: name, constructor: constructor, priority: priority, enabled: enabled,
		health: models.PlatformHealth{HealthScore: 1.0},
	}
}

// Unregister removes a platform entirely.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Enable re-enables a previously disabled platform.
func (r *Registry) Enable(name string) bool {
	return r.setEnabled(name, true)
}

// Disable removes a platform from selection without unregistering it.
func (r *Registry) Disable(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.enabled = enabled
	return true
}

// GetAdapter lazily instantiates and returns the named adapter, or nil if
// unregistered or disabled.
func (r *Registry) GetAdapter(name string) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok || !e.enabled {
		return nil, nil
	}
	if e.adapter == nil {
		adapter, err := e.constructor()
		if err != nil {
			return nil, fmt.Errorf("constructing adapter %s: %w", name, err)
		}
		e.adapter = adapter
	}
	return e.adapter, nil
}

// PlatformsByCapability returns enabled platform names supporting c,
// sorted by (priority DESC, health_score DESC).
func (r *Registry) PlatformsByCapability(c models.Capability) []string {
	return r.platformsWhere(func(adapter Adapter) bool {
		for _, cap := range adapter.SupportedCapabilities() {
			if cap == c {
				return true
			}
		}
		return false
	})
}

// PlatformsByMethod returns enabled platform names supporting m, sorted by
// (priority DESC, health_score DESC).
func (r *Registry) PlatformsByMethod(m models.Method) []string {
	return r.platformsWhere(func(adapter Adapter) bool {
		for _, method := range adapter.SupportedMethods() {
			if method == m {
				return true
			}
		}
		return false
	})
}

func (r *Registry) platformsWhere(predicate func(Adapter) bool) []string {
	r.mu.Lock()
	type candidate struct {
		name     string
		priority int
		health   float64
	}
	var candidates []candidate
	for name, e := range r.entries {
		if !e.enabled {
			continue
		}
		adapter, err := r.getAdapterLocked(e)
		if err != nil || adapter == nil {
			continue
		}
		if !predicate(adapter) {
			continue
		}
		candidates = append(candidates, candidate{name: name, priority: e.priority, health: e.health.HealthScore})
	}
	r.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].health > candidates[j].health
	})

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

func (r *Registry) getAdapterLocked(e *entry) (Adapter, error) {
	if e.adapter == nil {
		adapter, err := e.constructor()
		if err != nil {
			return nil, err
		}
		e.adapter = adapter
	}
	return e.adapter, nil
}

// SelectBest scores every enabled platform supporting capability and
// returns up to max names ordered best-first, per spec.md's selection
// score: 10*priority + 20*health_score + 30*success_rate + 5*|methods| +
// domain_bonus.
func (r *Registry) SelectBest(req models.SearchRequest, capability models.Capability, max int) []string {
	r.mu.Lock()
	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for name, e := range r.entries {
		if !e.enabled {
			continue
		}
		adapter, err := r.getAdapterLocked(e)
		if err != nil || adapter == nil {
			continue
		}
		if !supportsCapability(adapter, capability) {
			continue
		}
		candidates = append(candidates, scored{name: name, score: score(e, adapter, req)})
	}
	r.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if max <= 0 || max > len(candidates) {
		max = len(candidates)
	}
	names := make([]string, max)
	for i := 0; i < max; i++ {
		names[i] = candidates[i].name
	}
	return names
}

func supportsCapability(adapter Adapter, c models.Capability) bool {
	for _, cap := range adapter.SupportedCapabilities() {
		if cap == c {
			return true
		}
	}
	return false
}

func score(e *entry, adapter Adapter, req models.SearchRequest) float64 {
	s := float64(e.priority) * 10
	s += e.health.HealthScore * 20
	s += adapter.Stats().SuccessRate() * 30
	s += float64(len(adapter.SupportedMethods())) * 5
	s += domainBonus(e.name, req)
	return s
}

// domainBonus is a small additive nudge based on the request shape: a
// salary-sensitive query favors a salary-rich platform, a seniority-laden
// query favors a platform known for professional listings.
func domainBonus(name string, req models.SearchRequest) float64 {
	lowerQuery := strings.ToLower(req.Query)
	switch name {
	case "linkedin":
		for _, kw := range []string{"senior", "manager", "director", "lead", "architect"} {
			if strings.Contains(lowerQuery, kw) {
				return 10
			}
		}
	case "glassdoor":
		if req.Filters.SalaryMin != nil || req.Filters.SalaryMax != nil {
			return 10
		}
	case "indeed":
		return 15
	}
	return 0
}

// SearchMultiple fans a search out across names (or, if empty, every
// enabled job_search platform) bounded by maxConcurrent. An adapter
// failure yields a failed SearchResult rather than aborting the batch.
func (r *Registry) SearchMultiple(ctx context.Context, req models.SearchRequest, names []string, maxConcurrent int) map[string]models.SearchResult {
	if len(names) == 0 {
		names = r.PlatformsByCapability(models.CapabilityJobSearch)
	}
	if maxConcurrent < 1 {
		maxConcurrent = 3
	}

	results := make(map[string]models.SearchResult, len(names))
	var mu sync.Mutex
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, name := range names {
		name := name
		wg.Add(1)
		sem <- struct{}{}
		common.SafeGo(r.logger, "registry-search-"+name, func() {
			defer wg.Done()
			defer func() { <-sem }()
			result := r.searchOne(ctx, name, req)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}

func (r *Registry) searchOne(ctx context.Context, name string, req models.SearchRequest) models.SearchResult {
	adapter, err := r.GetAdapter(name)
	if err != nil || adapter == nil {
		return models.SearchResult{
			SuccessfulPlatforms: nil,
			FailedPlatforms:     []string{name},
			Metadata:            map[string]interface{}{"error_message": fmt.Sprintf("adapter unavailable: %v", err)},
			CreatedAt:           time.Now(),
		}
	}

	method := adapter.BestMethod(req)
	result, err := adapter.SearchJobs(ctx, req, method)
	if err != nil {
		r.recordHealth(name, false)
		return models.SearchResult{
			FailedPlatforms: []string{name},
			Metadata:        map[string]interface{}{"error_message": err.Error()},
			CreatedAt:       time.Now(),
		}
	}
	r.recordHealth(name, true)
	return result
}

// HealthCheck probes one platform (or every registered one when name is
// empty) and updates its health score: +0.1 on success capped at 1.0, -0.2
// on failure floored at 0.0. A platform whose score drops below 0.3 is
// auto-disabled.
func (r *Registry) HealthCheck(ctx context.Context, name string) map[string]bool {
	names := []string{name}
	if name == "" {
		r.mu.Lock()
		names = names[:0]
		for n := range r.entries {
			names = append(names, n)
		}
		r.mu.Unlock()
	}

	results := make(map[string]bool, len(names))
	for _, n := range names {
		adapter, err := r.GetAdapter(n)
		healthy := err == nil && adapter != nil
		results[n] = healthy
		r.recordHealth(n, healthy)
	}
	return results
}

func (r *Registry) recordHealth(name string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.health.LastHealthCheck = time.Now()
	if success {
		e.health.HealthScore = min1(e.health.HealthScore + 0.1)
		e.health.SuccessCount++
		return
	}
	e.health.HealthScore = max0(e.health.HealthScore - 0.2)
	e.health.ErrorCount++
	if e.health.HealthScore < 0.3 {
		r.logger.Warn().Str("platform", name).Float64("health_score", e.health.HealthScore).Msg("platform health below threshold, auto-disabling")
		e.enabled = false
	}
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Health returns a snapshot of one platform's health state.
func (r *Registry) Health(name string) (models.PlatformHealth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return models.PlatformHealth{}, false
	}
	return e.health, true
}
