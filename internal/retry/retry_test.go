package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/retry"
)

func TestExecute_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := retry.Execute(context.Background(), retry.Network(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetriesOnRetryableThenSucceeds(t *testing.T) {
	calls := 0
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2}

	result, err := retry.Execute(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &common.NetworkError{Op: "fetch", Err: errors.New("connection reset")}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecute_NonRetryableInvokesOnce(t *testing.T) {
	calls := 0
	cfg := retry.Config{MaxAttempts: 5, BaseDelay: time.Millisecond}

	_, err := retry.Execute(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, &common.ValidationError{Field: "query", Reason: "empty"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var valErr *common.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestExecute_ExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	cfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2}

	_, err := retry.Execute(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, &common.NetworkError{Op: "fetch", Err: errors.New("down")}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestExecute_ContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := retry.Config{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Execute(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, &common.NetworkError{Op: "fetch", Err: errors.New("down")}
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestPreconfiguredProfiles(t *testing.T) {
	net := retry.Network()
	assert.Equal(t, 3, net.MaxAttempts)
	assert.Equal(t, time.Second, net.BaseDelay)

	api := retry.API()
	assert.Equal(t, 5, api.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, api.BaseDelay)

	scraping := retry.Scraping()
	assert.Equal(t, 3, scraping.MaxAttempts)
	assert.Equal(t, 2*time.Second, scraping.BaseDelay)
}
