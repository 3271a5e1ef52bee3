package platform_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/platform"
)

func TestRateLimiter_EnforcesMinimumSpacing(t *testing.T) {
	rl := platform.NewRateLimiter(1000, 30*time.Millisecond, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx))
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestRateLimiter_ContextCancellationStopsWait(t *testing.T) {
	rl := platform.NewRateLimiter(1, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, rl.Wait(ctx))
	cancel()

	err := rl.Wait(ctx)
	assert.Error(t, err)
}
