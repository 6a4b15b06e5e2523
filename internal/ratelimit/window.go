// Package ratelimit implements sliding-window admission control keyed by
// operation name.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrRateLimited is matched by every RateLimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitError reports a refused admission and when the oldest admission leaves the window.
type RateLimitError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Op, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Window admits at most max operations per key within any trailing span of
// length window. It keeps the timestamps of recent admissions per key.
type Window struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewWindow builds a limiter. A nil clock uses the real clock.
func NewWindow(window time.Duration, max int, clock clockwork.Clock) *Window {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if max < 1 {
		max = 1
	}
	return &Window{
		clock:  clock,
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records an admission for op, or returns a *RateLimitError when op
// already has max admissions inside the window.
func (w *Window) Allow(op string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	hits := w.evict(op, now)
	if len(hits) >= w.max {
		return &RateLimitError{Op: op, RetryAfter: hits[0].Add(w.window).Sub(now)}
	}
	w.hits[op] = append(hits, now)
	return nil
}

// Count returns the admissions for op currently inside the window.
func (w *Window) Count(op string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.evict(op, w.clock.Now()))
}

// Keys returns the number of operations with live admissions.
func (w *Window) Keys() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.clock.Now()
	for op := range w.hits {
		w.evict(op, now)
	}
	return len(w.hits)
}

// evict drops admissions older than the window. Caller holds mu.
func (w *Window) evict(op string, now time.Time) []time.Time {
	hits := w.hits[op]
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	if len(hits) == 0 {
		delete(w.hits, op)
		return nil
	}
	w.hits[op] = hits
	return hits
}
