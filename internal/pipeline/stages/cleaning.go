package stages

import (
	"context"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/models"
)

// Cleaning strips markup from text fields, collapses whitespace, decodes
// common HTML entities, bounds title length, drops duplicate description
// paragraphs, normalizes job_type/experience_level, and extracts a skill set
// by dictionary match.
type Cleaning struct {
	MinTitleLength int
	MaxTitleLength int
}

// NewCleaning constructs a Cleaning stage with spec defaults ([2,200]).
func NewCleaning() *Cleaning {
	return &Cleaning{MinTitleLength: 2, MaxTitleLength: 200}
}

func (c *Cleaning) Name() string { return "cleaning" }

func (c *Cleaning) Process(ctx context.Context, job models.JobRecord) models.PipelineResult {
	if job.JobID == "" {
		job.JobID = common.NewJobID()
	}

	job.Title = boundLength(collapseWhitespace(stripHTML(job.Title)), c.MinTitleLength, c.MaxTitleLength)
	job.Company = collapseWhitespace(stripHTML(job.Company))
	job.Location = collapseWhitespace(stripHTML(job.Location))
	job.Description = cleanDescription(job.Description)

	job.JobType = normalizeJobType(job.JobType)
	job.ExperienceLevel = normalizeExperienceLevel(job.ExperienceLevel)

	skills := extractSkills(job.Description)
	if len(skills) > 0 {
		job.Skills = skills
		if job.Raw == nil {
			job.Raw = make(map[string]interface{})
		}
		job.Raw["skill_categories"] = categorizeSkills(job.Description)
	}

	return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&nbsp;": " ",
}

// stripHTML converts HTML into plain text via the html-to-markdown
// converter, falling back to a regex tag strip if conversion fails or
// produces nothing — the same two-step approach the crawler's transform
// service uses for scraped page content.
func stripHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") {
		return decodeEntities(s)
	}

	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(s)
	if err != nil || strings.TrimSpace(converted) == "" {
		return decodeEntities(htmlTagPattern.ReplaceAllString(s, ""))
	}
	return decodeEntities(converted)
}

func decodeEntities(s string) string {
	for entity, ch := range htmlEntities {
		s = strings.ReplaceAll(s, entity, ch)
	}
	return s
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.TrimSpace(strings.Join(fields, " "))
}

func boundLength(s string, min, max int) string {
	if len(s) > max {
		return s[:max]
	}
	_ = min // min is not enforced: shorter strings pass through unchanged
	return s
}

// cleanDescription strips markup, splits on paragraph boundaries, drops
// repeated paragraphs (scrapers often echo a boilerplate blurb across
// listings), collapses whitespace within each surviving paragraph, and
// rejoins them. Paragraph splitting has to happen before whitespace
// collapsing, not after, or the line breaks it depends on are already gone.
func cleanDescription(s string) string {
	stripped := stripHTML(s)
	paragraphs := strings.Split(stripped, "\n")
	seen := make(map[string]bool, len(paragraphs))
	var kept []string
	for _, p := range paragraphs {
		cleaned := collapseWhitespace(p)
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		kept = append(kept, cleaned)
	}
	return strings.Join(kept, "\n")
}

var jobTypeAliases = map[string]models.JobType{
	"full-time": models.JobTypeFullTime, "fulltime": models.JobTypeFullTime, "full time": models.JobTypeFullTime,
	"part-time": models.JobTypePartTime, "parttime": models.JobTypePartTime, "part time": models.JobTypePartTime,
	"contract": models.JobTypeContract, "contractor": models.JobTypeContract,
	"temporary": models.JobTypeTemporary, "temp": models.JobTypeTemporary,
	"internship": models.JobTypeInternship, "intern": models.JobTypeInternship,
}

func normalizeJobType(jt models.JobType) models.JobType {
	if jt == "" {
		return jt
	}
	key := strings.ToLower(strings.TrimSpace(string(jt)))
	if normalized, ok := jobTypeAliases[key]; ok {
		return normalized
	}
	return jt
}

var experienceAliases = map[string]models.ExperienceLevel{
	"entry": models.ExperienceEntry, "entry-level": models.ExperienceEntry, "junior": models.ExperienceEntry, "associate": models.ExperienceEntry,
	"mid": models.ExperienceMid, "mid-level": models.ExperienceMid, "intermediate": models.ExperienceMid,
	"senior": models.ExperienceSenior, "senior-level": models.ExperienceSenior, "lead": models.ExperienceSenior, "principal": models.ExperienceSenior,
	"executive": models.ExperienceExecutive, "director": models.ExperienceExecutive, "manager": models.ExperienceExecutive,
}

func normalizeExperienceLevel(lvl models.ExperienceLevel) models.ExperienceLevel {
	if lvl == "" {
		return lvl
	}
	key := strings.ToLower(strings.TrimSpace(string(lvl)))
	if normalized, ok := experienceAliases[key]; ok {
		return normalized
	}
	return lvl
}

var skillKeywords = map[string][]string{
	"programming": {"python", "java", "javascript", "typescript", "c++", "c#", "go", "rust", "php", "ruby", "swift", "kotlin", "scala", "sql"},
	"frameworks":  {"react", "angular", "vue", "django", "flask", "spring", "express", "rails", "tensorflow", "pytorch"},
	"tools":       {"git", "docker", "kubernetes", "jenkins", "aws", "azure", "gcp", "linux", "mysql", "postgresql", "mongodb", "redis"},
	"soft-skills": {"leadership", "communication", "teamwork", "problem solving", "analytical", "detail oriented"},
}

// categorizeSkills returns the skill keywords found in description grouped
// by category, for the item's Raw bag.
func categorizeSkills(description string) map[string][]string {
	lower := strings.ToLower(description)
	found := make(map[string][]string)
	for category, keywords := range skillKeywords {
		var matched []string
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			found[category] = matched
		}
	}
	return found
}

// extractSkills flattens categorizeSkills into the single Skills list
// JobRecord carries.
func extractSkills(description string) []string {
	var all []string
	for _, kws := range categorizeSkills(description) {
		all = append(all, kws...)
	}
	return all
}

func containsWord(haystack, word string) bool {
	pattern := `\b` + regexp.QuoteMeta(word) + `\b`
	matched, _ := regexp.MatchString(pattern, haystack)
	return matched
}
