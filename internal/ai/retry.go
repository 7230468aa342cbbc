package ai

import (
	"context"
	"time"

	"cvoptimizer/internal/errors"
)

// Decision is the outcome of consulting a RetryPolicy after a failed attempt
type Decision struct {
	Retry bool
	Wait  time.Duration
}

// RetryPolicy retries throttled calls a bounded number of times with a fixed wait
type RetryPolicy struct {
	MaxRetries int
	Wait       time.Duration
}

// Next decides what to do after attempt (0-based) failed with err.
// Only errors classified as retryable are retried.
func (p RetryPolicy) Next(attempt int, err error) Decision {
	if err == nil || !errors.IsRetryable(err) || attempt >= p.MaxRetries {
		return Decision{}
	}
	return Decision{Retry: true, Wait: p.Wait}
}

// Sleeper suspends the calling goroutine for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retrier runs a call under a RetryPolicy, suspending between attempts
type retrier struct {
	provider string
	policy   RetryPolicy
	sleep    Sleeper
	logger   *errors.Logger
	onRetry  func(ctx context.Context)
}

// run returns fn's result, a RETRY_EXHAUSTED error when the policy gives up
// on a retryable failure, or fn's terminal error unchanged.
func run[T any](ctx context.Context, r retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Provider call succeeded after retry",
					"provider", r.provider,
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return out, nil
		}

		retryable := errors.IsRetryable(err)
		r.logger.Warn("Provider attempt failed",
			"provider", r.provider,
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", r.policy.MaxRetries+1,
			"retryable", retryable,
			"error", err.Error())

		decision := r.policy.Next(attempt, err)
		if !decision.Retry {
			if retryable {
				return zero, errors.NewRetryExhaustedError(r.provider, attempt+1, err)
			}
			return zero, err
		}

		r.logger.Info("Provider throttled, waiting before retry",
			"provider", r.provider,
			"operation", operation,
			"wait", decision.Wait.String(),
			"next_attempt", attempt+2)
		if r.onRetry != nil {
			r.onRetry(ctx)
		}

		if err := r.sleep(ctx, decision.Wait); err != nil {
			return zero, errors.NewProviderError(r.provider, "retry wait interrupted", false, err)
		}
	}
}
