package mcp

import (
	"context"
	"time"
)

// Backoff defaults for connection retries.
const (
	backoffBase = 1 * time.Second
	backoffMax  = 30 * time.Second
)

// backoffDelay computes the exponential backoff delay for a 0-indexed
// retry attempt: min(base * 2^attempt, max) plus up to 50% random jitter
// so a fleet of reconnecting servers does not stampede. jitter returns a
// value in [0, 1); pass a fixed function in tests to make delays
// deterministic.
func backoffDelay(attempt int, base, max time.Duration, jitter func() float64) time.Duration {
	delay := base
	for i := 0; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay + time.Duration(jitter()*0.5*float64(delay))
}

// sleepCtx sleeps for d or until ctx is cancelled, returning ctx.Err() in
// the cancelled case.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
