package objstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryLinearBackoffWaits(t *testing.T) {
	var waits []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(1000 * time.Millisecond),
		Sleep: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}

	failures := 2
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls <= failures {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != failures+1 {
		t.Fatalf("expected %d calls, got %d", failures+1, calls)
	}

	var total time.Duration
	for _, w := range waits {
		total += w
	}
	want := 1000*time.Millisecond + 2000*time.Millisecond
	if total != want {
		t.Fatalf("expected total wait %v, got %v", want, total)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	lastErr := errors.New("attempt 3 failed")
	calls := 0
	policy := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Millisecond),
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls == 3 {
			return lastErr
		}
		return errors.New("earlier failure")
	})
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last underlying error, got %v", err)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	policy := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Millisecond),
	}
	err := policy.Do(ctx, func() error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", calls)
	}
}

func TestSingleAttemptNeverRetries(t *testing.T) {
	calls := 0
	err := SingleAttempt().Do(context.Background(), func() error {
		calls++
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}
