// Package sqlstore is the relational job-record backend (C4): one SQLite
// table keyed by a surrogate id with a unique index on job_id, written
// through a process-wide lock and an UPSERT on conflict.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/retry"
	"github.com/ternarybob/jobscout/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id           TEXT NOT NULL UNIQUE,
	platform         TEXT NOT NULL,
	external_id      TEXT,
	content_hash     TEXT NOT NULL,
	title            TEXT NOT NULL,
	company          TEXT NOT NULL,
	location         TEXT NOT NULL,
	description      TEXT,
	url              TEXT NOT NULL,
	salary_min       INTEGER,
	salary_max       INTEGER,
	salary_currency  TEXT,
	salary_period    TEXT,
	job_type         TEXT,
	experience_level TEXT,
	remote           INTEGER,
	posted_date      INTEGER,
	scraped_date     INTEGER NOT NULL,
	quality_score    REAL,
	confidence_score REAL,
	applicant_count  INTEGER,
	view_count       INTEGER,
	skills_json      TEXT,
	benefits_json    TEXT,
	raw_json         TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_platform ON jobs(platform);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company);
CREATE INDEX IF NOT EXISTS idx_jobs_location ON jobs(location);
CREATE INDEX IF NOT EXISTS idx_jobs_posted_date ON jobs(posted_date);
`

// Store is the SQLite-backed storage.Store implementation.
type Store struct {
	db     *sql.DB
	logger arbor.ILogger
	path   string

	mu    sync.Mutex // process-wide write lock: SQLite tolerates one writer
	stats storage.Stats
}

// New opens (creating if needed) the SQLite database at path.
func New(path string, logger arbor.ILogger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlstore dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", pragma, err)
		}
	}

	return &Store{db: db, logger: logger, path: path}, nil
}

// Initialize creates the schema if it doesn't exist.
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("initializing sqlstore schema: %w", err)
	}
	s.logger.Info().Str("path", s.path).Msg("sqlstore schema initialized")
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Stats() storage.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// isBusy reports whether err is SQLite's transient lock-contention signal.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// withRetry wraps a SQLite write in the API retry profile, retrying only on
// SQLITE_BUSY — every other error (constraint violation, syntax) is fatal.
func withRetry(ctx context.Context, logger arbor.ILogger, op string, fn func() error) error {
	cfg := retry.API()
	cfg.Retryable = isBusy
	_, err := retry.ExecuteWithLogging(ctx, cfg, logger, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Store upserts the given job records keyed by job_id.
func (s *Store) Store(ctx context.Context, jobs ...models.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	return withRetry(ctx, s.logger, "sqlstore.Store", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		for _, job := range jobs {
			if err := upsertOne(ctx, tx, job); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		s.stats.Sets += uint64(len(jobs))
		return nil
	})
}

func upsertOne(ctx context.Context, tx *sql.Tx, job models.JobRecord) error {
	skillsJSON, err := json.Marshal(job.Skills)
	if err != nil {
		return fmt.Errorf("marshaling skills: %w", err)
	}
	benefitsJSON, err := json.Marshal(job.Benefits)
	if err != nil {
		return fmt.Errorf("marshaling benefits: %w", err)
	}
	rawJSON, err := json.Marshal(job.Raw)
	if err != nil {
		return fmt.Errorf("marshaling raw: %w", err)
	}

	var postedDate sql.NullInt64
	if job.PostedDate != nil {
		postedDate.Valid = true
		postedDate.Int64 = job.PostedDate.Unix()
	}

	remote := sql.NullBool{}
	if job.Remote != nil {
		remote.Valid = true
		remote.Bool = *job.Remote
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (
			job_id, platform, external_id, content_hash, title, company, location,
			description, url, salary_min, salary_max, salary_currency, salary_period,
			job_type, experience_level, remote, posted_date, scraped_date,
			quality_score, confidence_score, applicant_count, view_count,
			skills_json, benefits_json, raw_json
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(job_id) DO UPDATE SET
			platform = excluded.platform,
			external_id = excluded.external_id,
			content_hash = excluded.content_hash,
			title = excluded.title,
			company = excluded.company,
			location = excluded.location,
			description = excluded.description,
			url = excluded.url,
			salary_min = excluded.salary_min,
			salary_max = excluded.salary_max,
			salary_currency = excluded.salary_currency,
			salary_period = excluded.salary_period,
			job_type = excluded.job_type,
			experience_level = excluded.experience_level,
			remote = excluded.remote,
			posted_date = excluded.posted_date,
			scraped_date = excluded.scraped_date,
			quality_score = excluded.quality_score,
			confidence_score = excluded.confidence_score,
			applicant_count = excluded.applicant_count,
			view_count = excluded.view_count,
			skills_json = excluded.skills_json,
			benefits_json = excluded.benefits_json,
			raw_json = excluded.raw_json
	`,
		job.JobID, job.Platform, job.ExternalID, job.ContentHash, job.Title, job.Company, job.Location,
		job.Description, job.URL, job.SalaryMin, job.SalaryMax, job.SalaryCurrency, string(job.SalaryPeriod),
		string(job.JobType), string(job.ExperienceLevel), remote, postedDate, job.ScrapedDate.Unix(),
		job.QualityScore, job.ConfidenceScore, job.ApplicantCount, job.ViewCount,
		string(skillsJSON), string(benefitsJSON), string(rawJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", job.JobID, err)
	}
	return nil
}

// Retrieve runs query against the jobs table, translating filters into a
// WHERE clause where the column supports it and falling back to an
// in-process scan for fields SQL can't index directly (none currently).
func (s *Store) Retrieve(ctx context.Context, query storage.Query) ([]models.JobRecord, error) {
	where, args := buildWhere(query)
	sqlQuery := "SELECT job_id, platform, external_id, content_hash, title, company, location, description, url, salary_min, salary_max, salary_currency, salary_period, job_type, experience_level, remote, posted_date, scraped_date, quality_score, confidence_score, applicant_count, view_count, skills_json, benefits_json, raw_json FROM jobs" + where
	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var out []models.JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if len(out) > 0 {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
	s.mu.Unlock()
	return out, nil
}

func scanJob(rows *sql.Rows) (models.JobRecord, error) {
	var job models.JobRecord
	var externalID sql.NullString
	var salaryMin, salaryMax sql.NullInt64
	var salaryPeriod, jobType, experienceLevel string
	var remote sql.NullBool
	var postedDate sql.NullInt64
	var scrapedDateUnix int64
	var applicantCount, viewCount sql.NullInt64
	var skillsJSON, benefitsJSON, rawJSON string

	err := rows.Scan(
		&job.JobID, &job.Platform, &externalID, &job.ContentHash, &job.Title, &job.Company, &job.Location,
		&job.Description, &job.URL, &salaryMin, &salaryMax, &job.SalaryCurrency, &salaryPeriod,
		&jobType, &experienceLevel, &remote, &postedDate, &scrapedDateUnix,
		&job.QualityScore, &job.ConfidenceScore, &applicantCount, &viewCount,
		&skillsJSON, &benefitsJSON, &rawJSON,
	)
	if err != nil {
		return job, fmt.Errorf("scanning job row: %w", err)
	}

	if externalID.Valid {
		job.ExternalID = &externalID.String
	}
	if salaryMin.Valid {
		v := int(salaryMin.Int64)
		job.SalaryMin = &v
	}
	if salaryMax.Valid {
		v := int(salaryMax.Int64)
		job.SalaryMax = &v
	}
	job.SalaryPeriod = models.SalaryPeriod(salaryPeriod)
	job.JobType = models.JobType(jobType)
	job.ExperienceLevel = models.ExperienceLevel(experienceLevel)
	if remote.Valid {
		v := remote.Bool
		job.Remote = &v
	}
	if postedDate.Valid {
		t := time.Unix(postedDate.Int64, 0)
		job.PostedDate = &t
	}
	job.ScrapedDate = time.Unix(scrapedDateUnix, 0)
	if applicantCount.Valid {
		v := int(applicantCount.Int64)
		job.ApplicantCount = &v
	}
	if viewCount.Valid {
		v := int(viewCount.Int64)
		job.ViewCount = &v
	}
	_ = json.Unmarshal([]byte(skillsJSON), &job.Skills)
	_ = json.Unmarshal([]byte(benefitsJSON), &job.Benefits)
	_ = json.Unmarshal([]byte(rawJSON), &job.Raw)

	return job, nil
}

// buildWhere translates a storage.Query into a SQL WHERE clause. Only
// fields that map onto an indexed or direct column are pushed down;
// filters on any other field are skipped, not rejected.
func buildWhere(query storage.Query) (string, []interface{}) {
	if len(query.Filters) == 0 {
		return "", nil
	}

	var clauses []string
	var args []interface{}
	for _, f := range query.Filters {
		col, ok := columnFor(f.Field)
		if !ok {
			continue
		}
		switch f.Op {
		case "gte":
			clauses = append(clauses, col+" >= ?")
			args = append(args, toColumnValue(f.Field, f.Value))
		case "lte":
			clauses = append(clauses, col+" <= ?")
			args = append(args, toColumnValue(f.Field, f.Value))
		case "contains":
			clauses = append(clauses, "LOWER("+col+") LIKE ?")
			args = append(args, "%"+strings.ToLower(fmt.Sprint(f.Value))+"%")
		default:
			clauses = append(clauses, col+" = ?")
			args = append(args, toColumnValue(f.Field, f.Value))
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func columnFor(field string) (string, bool) {
	switch field {
	case "job_id", "platform", "company", "location", "title", "url", "job_type", "experience_level", "salary_min", "salary_max", "quality_score":
		return field, true
	case "posted_date", "scraped_date":
		return field, true
	default:
		return "", false
	}
}

func toColumnValue(field string, v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.Unix()
	}
	return v
}

// Update applies patch to every row matching query, returning the affected count.
func (s *Store) Update(ctx context.Context, query storage.Query, patch storage.Patch) (int, error) {
	set, args := buildSet(patch)
	if set == "" {
		return 0, nil
	}
	where, whereArgs := buildWhere(query)
	args = append(args, whereArgs...)

	var affected int64
	err := withRetry(ctx, s.logger, "sqlstore.Update", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := s.db.ExecContext(ctx, "UPDATE jobs SET "+set+where, args...)
		if err != nil {
			return fmt.Errorf("updating jobs: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return int(affected), err
}

func buildSet(patch storage.Patch) (string, []interface{}) {
	var sets []string
	var args []interface{}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.SalaryMin != nil {
		sets = append(sets, "salary_min = ?")
		args = append(args, *patch.SalaryMin)
	}
	if patch.SalaryMax != nil {
		sets = append(sets, "salary_max = ?")
		args = append(args, *patch.SalaryMax)
	}
	if patch.QualityScore != nil {
		sets = append(sets, "quality_score = ?")
		args = append(args, *patch.QualityScore)
	}
	if patch.ConfidenceScore != nil {
		sets = append(sets, "confidence_score = ?")
		args = append(args, *patch.ConfidenceScore)
	}
	if len(sets) == 0 {
		return "", nil
	}
	return strings.Join(sets, ", "), args
}

// Delete removes every row matching query, returning the affected count.
func (s *Store) Delete(ctx context.Context, query storage.Query) (int, error) {
	where, args := buildWhere(query)
	var affected int64
	err := withRetry(ctx, s.logger, "sqlstore.Delete", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := s.db.ExecContext(ctx, "DELETE FROM jobs"+where, args...)
		if err != nil {
			return fmt.Errorf("deleting jobs: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err == nil {
		s.mu.Lock()
		s.stats.Deletes += uint64(affected)
		s.mu.Unlock()
	}
	return int(affected), err
}

// Count returns the number of rows matching query (0 filters counts all).
func (s *Store) Count(ctx context.Context, query storage.Query) (int, error) {
	where, args := buildWhere(query)
	var n int
	s.mu.Lock()
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+where, args...).Scan(&n)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// Exists reports whether any row matches query.
func (s *Store) Exists(ctx context.Context, query storage.Query) (bool, error) {
	n, err := s.Count(ctx, query.WithLimit(1))
	return n > 0, err
}

// Cleanup is a no-op for sqlstore: SQLite has no background compaction this
// backend relies on. It satisfies the Store interface for composition with
// hybrid/cachestore, which do have expiry work to do here.
func (s *Store) Cleanup(ctx context.Context) error {
	return nil
}

var _ storage.Store = (*Store)(nil)
