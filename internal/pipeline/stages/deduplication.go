package stages

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/ternarybob/jobscout/internal/models"
)

// DedupeStrategy is one orthogonal duplicate-detection rule; any subset can
// be active at once.
type DedupeStrategy string

const (
	DedupeByURL        DedupeStrategy = "url"
	DedupeByContent    DedupeStrategy = "content"
	DedupeBySimilarity DedupeStrategy = "similarity"
)

// signatureCacheCap and signatureCacheRetain bound the similarity stage's
// in-memory text cache: once it exceeds the cap, only the most recent
// entries are retained.
const (
	signatureCacheCap    = 10000
	signatureCacheRetain = 5000
)

// Deduplication flags items a URL set, a content-hash set, or Jaccard
// similarity over token sets has already seen. A duplicate is skipped, not
// failed — it's a legitimate outcome, not an error.
type Deduplication struct {
	Strategies          map[DedupeStrategy]bool
	SimilarityThreshold float64

	mu           sync.Mutex
	seenURLs     map[string]bool
	seenHashes   map[string]bool
	seenContent  []string // bounded signature cache for the similarity strategy
}

// NewDeduplication constructs a Deduplication stage running the given
// strategies (url+content when none are given) at the spec's default 0.85
// similarity threshold.
func NewDeduplication(strategies ...DedupeStrategy) *Deduplication {
	if len(strategies) == 0 {
		strategies = []DedupeStrategy{DedupeByURL, DedupeByContent}
	}
	active := make(map[DedupeStrategy]bool, len(strategies))
	for _, s := range strategies {
		active[s] = true
	}
	return &Deduplication{
		Strategies:          active,
		SimilarityThreshold: 0.85,
		seenURLs:            make(map[string]bool),
		seenHashes:          make(map[string]bool),
	}
}

func (d *Deduplication) Name() string { return "deduplication" }

func (d *Deduplication) Process(ctx context.Context, job models.JobRecord) models.PipelineResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Strategies[DedupeByURL] && job.URL != "" {
		if d.seenURLs[job.URL] {
			return models.PipelineResult{Status: models.PipelineSkipped}
		}
	}

	hash := contentHash(job)
	if d.Strategies[DedupeByContent] {
		if d.seenHashes[hash] {
			return models.PipelineResult{Status: models.PipelineSkipped}
		}
	}

	if d.Strategies[DedupeBySimilarity] {
		current := strings.ToLower(job.Title + " " + job.Company + " " + job.Description)
		for _, existing := range d.seenContent {
			if jaccardSimilarity(current, existing) >= d.SimilarityThreshold {
				return models.PipelineResult{Status: models.PipelineSkipped}
			}
		}
		d.seenContent = append(d.seenContent, current)
		if len(d.seenContent) > signatureCacheCap {
			d.seenContent = append([]string{}, d.seenContent[len(d.seenContent)-signatureCacheRetain:]...)
		}
	}

	if job.URL != "" {
		d.seenURLs[job.URL] = true
	}
	d.seenHashes[hash] = true
	job.ContentHash = hash

	return models.PipelineResult{Status: models.PipelineCompleted, Data: &job}
}

func contentHash(job models.JobRecord) string {
	desc := job.Description
	if len(desc) > 500 {
		desc = desc[:500]
	}
	parts := []string{job.Title, job.Company, job.Location, desc}
	sum := md5.Sum([]byte(strings.ToLower(strings.Join(parts, "|"))))
	return hex.EncodeToString(sum[:])
}

func jaccardSimilarity(a, b string) float64 {
	wordsA := tokenSet(a)
	wordsB := tokenSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
