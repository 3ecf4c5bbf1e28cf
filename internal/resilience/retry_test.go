package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), "test", fastPolicy(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, MarkTransient(eris.New("overloaded"), 503)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), "test", fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), "test", fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, MarkTransient(eris.New("still down"), 502)
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, "test", fastPolicy(10), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, MarkTransient(eris.New("flaky"), 500)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation stops the retry loop")
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(MarkTransient(eris.New("rate limited"), 429)))
	assert.True(t, IsTransient(eris.Wrap(MarkTransient(eris.New("x"), 503), "imagery: fetch")))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
}

func TestRetryableStatus(t *testing.T) {
	for _, s := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(s), "status %d", s)
	}
	for _, s := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, RetryableStatus(s), "status %d", s)
	}
}
