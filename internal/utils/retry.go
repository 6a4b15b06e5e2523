package utils

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times. After the n-th failure it sleeps
// baseDelay * 2^(n-1) before trying again. The last error is returned once
// attempts are exhausted, or ctx.Err() if the context ends during a sleep.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if serr := Sleep(ctx, Backoff(baseDelay, attempt-1)); serr != nil {
			return serr
		}
	}
	return err
}

// Backoff returns base * 2^n.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return base << uint(n)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
