package external_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/external"
)

// TestNewChromeDPPool_AcceptsEmptyConfig mirrors the teacher's own chromedp
// pool smoke test in spirit: an empty config still yields a pool. The full
// Init()/NewPage() path needs a real Chrome binary and isn't exercised in
// unit tests.
func TestNewChromeDPPool_AcceptsEmptyConfig(t *testing.T) {
	pool := external.NewChromeDPPool(external.ChromeDPPoolConfig{}, arbor.NewLogger())
	assert.NotNil(t, pool)
}

func TestChromeDPPool_NewPageBeforeInitFails(t *testing.T) {
	pool := external.NewChromeDPPool(external.ChromeDPPoolConfig{MaxInstances: 1}, arbor.NewLogger())
	_, _, err := pool.NewPage(context.Background())
	assert.Error(t, err)
}
