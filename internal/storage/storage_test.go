package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/jobscout/internal/models"
	"github.com/ternarybob/jobscout/internal/storage"
)

func TestQuery_EqContainsGteLte(t *testing.T) {
	salaryMin := 90000
	job := models.JobRecord{
		JobID: "job-1", Platform: "indeed", Company: "Acme Corp", Title: "Senior Backend Engineer",
		SalaryMin: &salaryMin,
	}

	assert.True(t, storage.Query{}.Eq("platform", "indeed").Matches(job))
	assert.False(t, storage.Query{}.Eq("platform", "linkedin").Matches(job))
	assert.True(t, storage.Query{}.Contains("title", "backend").Matches(job))
	assert.True(t, storage.Query{}.Gte("salary_min", 80000).Matches(job))
	assert.False(t, storage.Query{}.Lte("salary_min", 80000).Matches(job))
}

func TestQuery_MultipleFiltersAreANDed(t *testing.T) {
	job := models.JobRecord{Platform: "indeed", Company: "Acme"}
	q := storage.Query{}.Eq("platform", "indeed").Eq("company", "Other")
	assert.False(t, q.Matches(job))
}
