package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/parley/parley/internal/metrics"
)

// retryableError marks an LLM call failure as eligible for the retry
// policy: network timeout, provider rate-limit, or another transient
// provider error. Wrap with Retryable; anything else is treated as
// non-retryable and propagates on the first attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as retryable so callWithRetry keeps attempting.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func isRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// IsRetryable reports whether err was produced by Retryable. Exposed so
// ChatModel implementations and their tests can confirm the LLM-facing
// error they return will actually engage the retry policy.
func IsRetryable(err error) bool {
	return isRetryable(err)
}

const maxLLMAttempts = 10

// newLLMBackoff builds the exemplar's exponential backoff: 5s initial,
// doubling, capped at 120s.
func newLLMBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 120 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// callWithRetry wraps an LLM completion call with the retry policy: up to
// 10 attempts with exponential backoff. A non-retryable error (or the
// final attempt's error) is returned to the caller, which must not crash
// the session — at worst the agent falls silent for that turn.
func callWithRetry(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	bo := newLLMBackoff()
	var lastErr error
	for attempt := 1; attempt <= maxLLMAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
		if attempt == maxLLMAttempts {
			break
		}

		metrics.LLMRetriesTotal.Inc()
		interval := bo.NextBackOff()
		slog.Warn("agent: llm call failed, retrying", "attempt", attempt, "backoff", interval, "error", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
	return "", lastErr
}
