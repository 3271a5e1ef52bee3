package stages

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v2"

	"github.com/ternarybob/jobscout/internal/models"
)

// ExportFormat selects the file format Export writes.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportJSON  ExportFormat = "json"
	ExportExcel ExportFormat = "excel"
	ExportHTML  ExportFormat = "html"
)

// Export is not a per-item Stage: the pipeline's other stages process one
// JobRecord at a time, but a file export is necessarily a whole-batch
// operation, so it runs once over the pipeline's survivors after Run
// completes, optionally splitting into multiple files when the predicted
// size would exceed MaxFileSizeBytes.
type Export struct {
	Format           ExportFormat
	Dir              string
	MaxFileSizeBytes int64
}

// NewExport constructs an Export writer for dir in format.
func NewExport(format ExportFormat, dir string) *Export {
	return &Export{Format: format, Dir: dir}
}

var exportColumns = []string{
	"job_id", "platform", "title", "company", "location", "url",
	"salary_min", "salary_max", "salary_currency", "job_type",
	"experience_level", "posted_date", "scraped_date", "quality_score",
}

func rowValues(job models.JobRecord) []string {
	posted := ""
	if job.PostedDate != nil {
		posted = job.PostedDate.Format(time.RFC3339)
	}
	return []string{
		job.JobID, job.Platform, job.Title, job.Company, job.Location, job.URL,
		intOrEmpty(job.SalaryMin), intOrEmpty(job.SalaryMax), job.SalaryCurrency,
		string(job.JobType), string(job.ExperienceLevel), posted,
		job.ScrapedDate.Format(time.RFC3339), strconv.FormatFloat(job.QualityScore, 'f', 4, 64),
	}
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Write exports jobs to one or more files under e.Dir, splitting across
// parts when the predicted output size exceeds MaxFileSizeBytes, and
// returns the paths written.
func (e *Export) Write(jobs []models.JobRecord) ([]string, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	batches := e.splitBatches(jobs)
	var paths []string
	for i, batch := range batches {
		path, err := e.writeBatch(batch, i)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// splitBatches predicts each job's contribution to file size (a rough
// per-row byte estimate) and splits once the running total would exceed
// MaxFileSizeBytes. A zero limit means "one file".
func (e *Export) splitBatches(jobs []models.JobRecord) [][]models.JobRecord {
	if e.MaxFileSizeBytes <= 0 {
		return [][]models.JobRecord{jobs}
	}

	var batches [][]models.JobRecord
	var current []models.JobRecord
	var size int64
	for _, job := range jobs {
		rowSize := int64(len(job.Title) + len(job.Company) + len(job.Description) + 200)
		if size+rowSize > e.MaxFileSizeBytes && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, job)
		size += rowSize
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (e *Export) writeBatch(jobs []models.JobRecord, part int) (string, error) {
	suffix := ""
	if part > 0 {
		suffix = fmt.Sprintf("-part%d", part+1)
	}

	switch e.Format {
	case ExportJSON:
		return e.writeJSON(jobs, suffix)
	case ExportExcel:
		return e.writeExcel(jobs, suffix)
	case ExportHTML:
		return e.writeHTML(jobs, suffix)
	default:
		return e.writeCSV(jobs, suffix)
	}
}

func (e *Export) writeCSV(jobs []models.JobRecord, suffix string) (string, error) {
	path := fmt.Sprintf("%s/jobs%s.csv", e.Dir, suffix)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportColumns); err != nil {
		return "", err
	}
	for _, job := range jobs {
		if err := w.Write(rowValues(job)); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

func (e *Export) writeJSON(jobs []models.JobRecord, suffix string) (string, error) {
	path := fmt.Sprintf("%s/jobs%s.json", e.Dir, suffix)
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Export) writeExcel(jobs []models.JobRecord, suffix string) (string, error) {
	path := fmt.Sprintf("%s/jobs%s.xlsx", e.Dir, suffix)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("jobs")
	if err != nil {
		return "", err
	}

	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().Value = col
	}

	for _, job := range jobs {
		row := sheet.AddRow()
		for _, v := range rowValues(job) {
			row.AddCell().Value = v
		}
	}

	if err := file.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Export) writeHTML(jobs []models.JobRecord, suffix string) (string, error) {
	path := fmt.Sprintf("%s/jobs%s.html", e.Dir, suffix)

	var b strings.Builder
	b.WriteString("<html><body><table border=\"1\"><tr>")
	for _, col := range exportColumns {
		b.WriteString("<th>" + html.EscapeString(col) + "</th>")
	}
	b.WriteString("</tr>\n")

	for _, job := range jobs {
		b.WriteString("<tr>")
		for _, v := range rowValues(job) {
			b.WriteString("<td>" + html.EscapeString(v) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table></body></html>")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
