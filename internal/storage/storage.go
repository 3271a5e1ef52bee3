// Package storage defines the common contract job-record backends (C4)
// implement: sqlstore (SQLite relational), filestore (flat JSON/CSV), and
// cachestore (bounded in-memory, optionally badger-backed). A hybrid
// composition layers cachestore in front of either durable backend.
package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/jobscout/internal/models"
)

// Store is the common backend contract: initialize, store, retrieve, update,
// delete, count, exists, cleanup.
type Store interface {
	Initialize(ctx context.Context) error
	Store(ctx context.Context, jobs ...models.JobRecord) error
	Retrieve(ctx context.Context, query Query) ([]models.JobRecord, error)
	Update(ctx context.Context, query Query, patch Patch) (int, error)
	Delete(ctx context.Context, query Query) (int, error)
	Count(ctx context.Context, query Query) (int, error)
	Exists(ctx context.Context, query Query) (bool, error)
	Cleanup(ctx context.Context) error
	Stats() Stats
	Close() error
}

// Patch is a sparse set of field updates applied by Update. Only non-nil
// fields are written.
type Patch struct {
	Title           *string
	Description     *string
	SalaryMin       *int
	SalaryMax       *int
	QualityScore    *float64
	ConfidenceScore *float64
}

// Filter is one field constraint within a Query. Op is "eq" (default),
// "gte", "lte", or "contains" (substring match, strings only).
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// Query is the common filter/limit vocabulary every backend accepts: a set
// of field filters plus an optional result cap. Field names are the
// lowercase JobRecord field names (job_id, platform, company, location,
// posted_date, salary_min, salary_max, ...).
type Query struct {
	Filters []Filter
	Limit   int
}

// Eq adds an equality filter and returns q for chaining.
func (q Query) Eq(field string, value interface{}) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: "eq", Value: value})
	return q
}

// Gte adds a "field >= value" filter.
func (q Query) Gte(field string, value interface{}) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: "gte", Value: value})
	return q
}

// Lte adds a "field <= value" filter.
func (q Query) Lte(field string, value interface{}) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: "lte", Value: value})
	return q
}

// Contains adds a substring-match filter (strings only).
func (q Query) Contains(field string, value string) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: "contains", Value: value})
	return q
}

// WithLimit sets the result cap and returns q for chaining.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Stats tracks the monotonic counters every backend's invariants require.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Sets      uint64
	Deletes   uint64
	Evictions uint64
}

// Matches evaluates every filter in q against a job record field map built
// by FieldValue. Backends that can push filters down to a native query
// language (SQL WHERE, badger index scan) may bypass this, but in-memory
// backends (filestore, cachestore) use it directly.
func (q Query) Matches(job models.JobRecord) bool {
	for _, f := range q.Filters {
		if !f.matches(job) {
			return false
		}
	}
	return true
}

func (f Filter) matches(job models.JobRecord) bool {
	actual, ok := FieldValue(job, f.Field)
	if !ok {
		return false
	}
	switch f.Op {
	case "gte":
		return compare(actual, f.Value) >= 0
	case "lte":
		return compare(actual, f.Value) <= 0
	case "contains":
		as, aok := actual.(string)
		vs, vok := f.Value.(string)
		return aok && vok && strings.Contains(strings.ToLower(as), strings.ToLower(vs))
	default:
		return compare(actual, f.Value) == 0
	}
}

// FieldValue extracts the named field from a JobRecord as a comparable
// value (string, int, float64, or time.Time). Pointer fields dereference to
// their zero value when nil so ordering comparisons stay well-defined.
func FieldValue(job models.JobRecord, field string) (interface{}, bool) {
	switch field {
	case "job_id":
		return job.JobID, true
	case "platform":
		return job.Platform, true
	case "company":
		return job.Company, true
	case "location":
		return job.Location, true
	case "title":
		return job.Title, true
	case "url":
		return job.URL, true
	case "job_type":
		return string(job.JobType), true
	case "experience_level":
		return string(job.ExperienceLevel), true
	case "salary_min":
		if job.SalaryMin == nil {
			return 0, true
		}
		return *job.SalaryMin, true
	case "salary_max":
		if job.SalaryMax == nil {
			return 0, true
		}
		return *job.SalaryMax, true
	case "posted_date":
		if job.PostedDate == nil {
			return time.Time{}, true
		}
		return *job.PostedDate, true
	case "scraped_date":
		return job.ScrapedDate, true
	case "quality_score":
		return job.QualityScore, true
	default:
		return nil, false
	}
}

// compare orders two field values of the same dynamic type, returning
// negative/zero/positive like strings.Compare. Mismatched types compare
// unequal via their string forms as a last resort.
func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int:
		bv := toInt(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := toFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}
