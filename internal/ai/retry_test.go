package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cvoptimizer/internal/errors"
)

// recordingSleeper records requested waits without sleeping
type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return r.err
}

func throttled() error {
	return apperrors.NewProviderError(ProviderGemini, "throttled", true, errors.New("rate limit"))
}

func terminal() error {
	return apperrors.NewProviderError(ProviderGemini, "bad request", false, errors.New("invalid argument"))
}

func TestRetryPolicyNext(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, Wait: 60 * time.Second}

	tests := []struct {
		name    string
		attempt int
		err     error
		want    Decision
	}{
		{"success never retries", 0, nil, Decision{}},
		{"terminal error", 0, terminal(), Decision{}},
		{"plain error is not retryable", 0, errors.New("rate limit"), Decision{}},
		{"first throttle", 0, throttled(), Decision{Retry: true, Wait: 60 * time.Second}},
		{"second throttle", 1, throttled(), Decision{Retry: true, Wait: 60 * time.Second}},
		{"budget spent", 2, throttled(), Decision{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Next(tt.attempt, tt.err))
		})
	}
}

func TestRetryPolicyZeroRetries(t *testing.T) {
	assert.Equal(t, Decision{}, RetryPolicy{MaxRetries: 0, Wait: time.Second}.Next(0, throttled()))
}

func newTestRetrier(maxRetries int, sleeper *recordingSleeper) retrier {
	return retrier{
		provider: ProviderGemini,
		policy:   RetryPolicy{MaxRetries: maxRetries, Wait: 60 * time.Second},
		sleep:    sleeper.Sleep,
		logger:   testLogger,
	}
}

func TestRunRetriesThrottlingThenSucceeds(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	out, err := run(context.Background(), newTestRetrier(2, sleeper), "generate", func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", throttled()
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, sleeper.waits)
}

func TestRunExhaustsRetries(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	_, err := run(context.Background(), newTestRetrier(2, sleeper), "generate", func(context.Context) (string, error) {
		calls++
		return "", throttled()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.waits, 2)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRetryExhausted))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 3, appErr.Context["attempts"])
}

func TestRunStopsOnTerminalError(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0
	want := terminal()

	_, err := run(context.Background(), newTestRetrier(5, sleeper), "generate", func(context.Context) (string, error) {
		calls++
		return "", want
	})

	assert.Same(t, want, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
}

func TestRunInterruptedWait(t *testing.T) {
	sleeper := &recordingSleeper{err: context.Canceled}
	calls := 0

	_, err := run(context.Background(), newTestRetrier(2, sleeper), "generate", func(context.Context) (string, error) {
		calls++
		return "", throttled()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestRunInvokesRetryHook(t *testing.T) {
	sleeper := &recordingSleeper{}
	hooks := 0
	r := newTestRetrier(1, sleeper)
	r.onRetry = func(context.Context) { hooks++ }

	_, _ = run(context.Background(), r, "generate", func(context.Context) (string, error) {
		return "", throttled()
	})
	assert.Equal(t, 1, hooks)
}

func TestContextSleep(t *testing.T) {
	require.NoError(t, ContextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := ContextSleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
