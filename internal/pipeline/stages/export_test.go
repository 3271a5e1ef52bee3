package stages_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/pipeline/stages"
)

func sampleExportJobs() []models.JobRecord {
	return []models.JobRecord{
		{JobID: "1", Platform: "indeed", Title: "Engineer", Company: "Acme"},
		{JobID: "2", Platform: "indeed", Title: "Manager", Company: "Acme"},
	}
}

func TestExport_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	e := stages.NewExport(stages.ExportCSV, dir)
	paths, err := e.Write(sampleExportJobs())
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Engineer")
}

func TestExport_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	e := stages.NewExport(stages.ExportJSON, dir)
	paths, err := e.Write(sampleExportJobs())
	require.NoError(t, err)
	assert.FileExists(t, paths[0])
	assert.Equal(t, ".json", filepath.Ext(paths[0]))
}

func TestExport_SplitsAcrossFilesWhenOverSizeLimit(t *testing.T) {
	dir := t.TempDir()
	e := stages.NewExport(stages.ExportCSV, dir)
	e.MaxFileSizeBytes = 210 // small enough to force a split across 2 jobs
	paths, err := e.Write(sampleExportJobs())
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestExport_WritesExcel(t *testing.T) {
	dir := t.TempDir()
	e := stages.NewExport(stages.ExportExcel, dir)
	paths, err := e.Write(sampleExportJobs())
	require.NoError(t, err)
	assert.FileExists(t, paths[0])
}
