package objstore

import (
	"context"
	"time"
)

// RetryPolicy retries an operation with a pluggable backoff. Both upload
// call sites share this mechanism; they differ only in configuration.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	// Sleep is injectable for tests; nil means a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// LinearBackoff waits base×attempt after the attempt-th failure.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// SingleAttempt performs no retries at all.
func SingleAttempt() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Do runs op up to MaxAttempts times, waiting Backoff(n) after the n-th
// failure. The last underlying error is returned once attempts are
// exhausted.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = waitCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || p.Backoff == nil {
			continue
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func waitCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
