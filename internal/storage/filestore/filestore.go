// Package filestore is the flat-file job-record backend (C4): a single JSON
// array or CSV file loaded entirely into memory on Initialize, upserted
// in-process by job_id, and persisted whole on every mutation via a
// write-to-temp-then-rename.
package filestore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
)

// csvHeader is the enumerated column set written/read by the CSV format.
var csvHeader = []string{
	"job_id", "platform", "external_id", "content_hash", "title", "company", "location",
	"description", "url", "salary_min", "salary_max", "salary_currency", "salary_period",
	"job_type", "experience_level", "remote", "posted_date", "scraped_date",
	"quality_score", "confidence_score", "applicant_count", "view_count", "skills", "benefits",
}

// Store is the flat-file storage.Store implementation. Format is "json" or
// "csv", chosen by the file extension at construction.
type Store struct {
	path   string
	format string
	logger arbor.ILogger

	mu    sync.Mutex
	jobs  map[string]models.JobRecord // keyed by job_id
	stats storage.Stats
}

// New returns a Store for path; format is inferred from the extension
// (".csv" or anything else treated as JSON).
func New(path string, logger arbor.ILogger) *Store {
	format := "json"
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		format = "csv"
	}
	return &Store{path: path, format: format, logger: logger, jobs: make(map[string]models.JobRecord)}
}

// Initialize loads the file into memory if it exists; a missing file starts empty.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug().Str("path", s.path).Msg("filestore file not found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading filestore file: %w", err)
	}

	var jobs []models.JobRecord
	if s.format == "csv" {
		jobs, err = decodeCSV(data)
	} else {
		err = json.Unmarshal(data, &jobs)
	}
	if err != nil {
		return fmt.Errorf("decoding filestore file: %w", err)
	}

	for _, j := range jobs {
		s.jobs[j.JobID] = j
	}
	s.logger.Info().Int("count", len(jobs)).Str("path", s.path).Msg("filestore loaded")
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Stats() storage.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Store performs an in-memory upsert keyed by job_id, then persists the
// whole file.
func (s *Store) Store(ctx context.Context, jobs ...models.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range jobs {
		s.jobs[j.JobID] = j
	}
	s.stats.Sets += uint64(len(jobs))
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	all := make([]models.JobRecord, 0, len(s.jobs))
	for _, j := range s.jobs {
		all = append(all, j)
	}

	var data []byte
	var err error
	if s.format == "csv" {
		data, err = encodeCSV(all)
	} else {
		data, err = json.MarshalIndent(all, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding filestore data: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating filestore dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing filestore temp file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Retrieve scans the in-memory job set against query.
func (s *Store) Retrieve(ctx context.Context, query storage.Query) ([]models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.JobRecord
	for _, j := range s.jobs {
		if query.Matches(j) {
			out = append(out, j)
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

// Update applies patch to every matching record and persists.
func (s *Store) Update(ctx context.Context, query storage.Query, patch storage.Patch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int
	for id, j := range s.jobs {
		if !query.Matches(j) {
			continue
		}
		applyPatch(&j, patch)
		s.jobs[id] = j
		affected++
	}
	if affected == 0 {
		return 0, nil
	}
	return affected, s.persistLocked()
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

// Delete removes every matching record and persists.
func (s *Store) Delete(ctx context.Context, query storage.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int
	for id, j := range s.jobs {
		if query.Matches(j) {
			delete(s.jobs, id)
			affected++
		}
	}
	if affected == 0 {
		return 0, nil
	}
	s.stats.Deletes += uint64(affected)
	return affected, s.persistLocked()
}

// Count returns the number of records matching query.
func (s *Store) Count(ctx context.Context, query storage.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, j := range s.jobs {
		if query.Matches(j) {
			n++
		}
	}
	return n, nil
}

// Exists reports whether any record matches query.
func (s *Store) Exists(ctx context.Context, query storage.Query) (bool, error) {
	n, err := s.Count(ctx, query)
	return n > 0, err
}

// Cleanup is a no-op: filestore has no expiring entries.
func (s *Store) Cleanup(ctx context.Context) error { return nil }

func decodeCSV(data []byte) ([]models.JobRecord, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	jobs := make([]models.JobRecord, 0, len(records)-1)
	for _, row := range records[1:] {
		jobs = append(jobs, rowToJob(row, idx))
	}
	return jobs, nil
}

func rowToJob(row []string, idx map[string]int) models.JobRecord {
	get := func(field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var job models.JobRecord
	job.JobID = get("job_id")
	job.Platform = get("platform")
	if v := get("external_id"); v != "" {
		job.ExternalID = &v
	}
	job.ContentHash = get("content_hash")
	job.Title = get("title")
	job.Company = get("company")
	job.Location = get("location")
	job.Description = get("description")
	job.URL = get("url")
	if v := get("salary_min"); v != "" {
		n, _ := strconv.Atoi(v)
		job.SalaryMin = &n
	}
	if v := get("salary_max"); v != "" {
		n, _ := strconv.Atoi(v)
		job.SalaryMax = &n
	}
	job.SalaryCurrency = get("salary_currency")
	job.SalaryPeriod = models.SalaryPeriod(get("salary_period"))
	job.JobType = models.JobType(get("job_type"))
	job.ExperienceLevel = models.ExperienceLevel(get("experience_level"))
	if v := get("remote"); v != "" {
		b := v == "true"
		job.Remote = &b
	}
	if v := get("posted_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			job.PostedDate = &t
		}
	}
	if v := get("scraped_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			job.ScrapedDate = t
		}
	}
	if v := get("quality_score"); v != "" {
		job.QualityScore, _ = strconv.ParseFloat(v, 64)
	}
	if v := get("confidence_score"); v != "" {
		job.ConfidenceScore, _ = strconv.ParseFloat(v, 64)
	}
	if v := get("applicant_count"); v != "" {
		n, _ := strconv.Atoi(v)
		job.ApplicantCount = &n
	}
	if v := get("view_count"); v != "" {
		n, _ := strconv.Atoi(v)
		job.ViewCount = &n
	}
	if v := get("skills"); v != "" {
		job.Skills = strings.Split(v, "|")
	}
	if v := get("benefits"); v != "" {
		job.Benefits = strings.Split(v, "|")
	}
	return job
}

func encodeCSV(jobs []models.JobRecord) ([]byte, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if err := w.Write(jobToRow(j)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func jobToRow(j models.JobRecord) []string {
	externalID := ""
	if j.ExternalID != nil {
		externalID = *j.ExternalID
	}
	salaryMin, salaryMax := "", ""
	if j.SalaryMin != nil {
		salaryMin = strconv.Itoa(*j.SalaryMin)
	}
	if j.SalaryMax != nil {
		salaryMax = strconv.Itoa(*j.SalaryMax)
	}
	remote := ""
	if j.Remote != nil {
		remote = strconv.FormatBool(*j.Remote)
	}
	postedDate := ""
	if j.PostedDate != nil {
		postedDate = j.PostedDate.Format(time.RFC3339)
	}
	applicantCount, viewCount := "", ""
	if j.ApplicantCount != nil {
		applicantCount = strconv.Itoa(*j.ApplicantCount)
	}
	if j.ViewCount != nil {
		viewCount = strconv.Itoa(*j.ViewCount)
	}

	return []string{
		j.JobID, j.Platform, externalID, j.ContentHash, j.Title, j.Company, j.Location,
		j.Description, j.URL, salaryMin, salaryMax, j.SalaryCurrency, string(j.SalaryPeriod),
		string(j.JobType), string(j.ExperienceLevel), remote, postedDate, j.ScrapedDate.Format(time.RFC3339),
		strconv.FormatFloat(j.QualityScore, 'f', -1, 64), strconv.FormatFloat(j.ConfidenceScore, 'f', -1, 64),
		applicantCount, viewCount, strings.Join(j.Skills, "|"), strings.Join(j.Benefits, "|"),
	}
}

var _ storage.Store = (*Store)(nil)
