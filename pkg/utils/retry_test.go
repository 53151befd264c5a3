package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetryConfig(5), func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryWithResultReturnsValue(t *testing.T) {
	got, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("RetryWithResult = (%d, %v), want (42, nil)", got, err)
	}
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	if got := CalculateBackoff(0, base, max, 2.0); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := CalculateBackoff(2, base, max, 2.0); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := CalculateBackoff(10, base, max, 2.0); got != max {
		t.Fatalf("attempt 10 = %v, want cap %v", got, max)
	}
}

func TestSessionExpiryIsNextMorning(t *testing.T) {
	expiry := SessionExpiry()
	now := time.Now().In(IndiaLocation)

	if !expiry.After(now) {
		t.Fatalf("expiry %v is not in the future", expiry)
	}
	if expiry.Hour() != 6 || expiry.Minute() != 0 {
		t.Fatalf("expiry %v is not at 6 AM", expiry)
	}
	if expiry.Sub(now) > 30*time.Hour {
		t.Fatalf("expiry %v is more than a day away", expiry)
	}
}
