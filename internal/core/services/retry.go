package services

import (
	"context"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// maxBackoff caps the inter-retry delay.
const maxBackoff = 30 * time.Second

// retrySleep is swappable for tests.
var retrySleep = sleepCtx

// backoffDelay returns the wait before attempt k (1-based).
// Attempt k (k >= 2) waits min(2^(k-2), 30) seconds.
func backoffDelay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	shift := attempt - 2
	if shift > 5 {
		// 2^5 = 32s already exceeds the cap.
		return maxBackoff
	}
	d := time.Duration(1<<uint(shift)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// retryWithBackoff runs op up to maxAttempts times, waiting
// min(2^(k-2), 30) seconds before attempt k. Reachability is checked
// immediately before each retry; connectivity lost while waiting aborts
// with domain.ErrUnreachable. Non-retryable errors short-circuit without
// consuming further attempts.
func retryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	reachable func() bool,
	op func(ctx context.Context) error,
) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if delay := backoffDelay(attempt); delay > 0 {
			logger.Debug("retry: attempt %d in %s", attempt, delay)
			if err := retrySleep(ctx, delay); err != nil {
				return err
			}
			if reachable != nil && !reachable() {
				return domain.ErrUnreachable
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		logger.Debug("retry: attempt %d failed: %v", attempt, lastErr)
	}
	return lastErr
}
