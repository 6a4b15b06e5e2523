// Package reconcile runs background reconciliation jobs with bounded
// concurrency, a per-attempt timeout and exponential-backoff retries.
//
// The queue is in-memory only. Jobs submitted while every slot is busy are
// dropped, and jobs that exhaust their retries are abandoned; both are
// logged and counted but never reported to the submitter.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"fleetops/internal/logging"
	"fleetops/internal/utils"
)

type Kind string

const (
	// KindVehicle recomputes one vehicle's latest-trip pointer.
	KindVehicle Kind = "vehicle"
	// KindBatch recomputes the pointers of many vehicles.
	KindBatch Kind = "batch"
)

type Job struct {
	ID             string
	Kind           Kind
	VehicleNumbers []string
	Reason         string
	Attempt        int // 0 for the first run
}

// Runner executes one attempt of a job. It must honour ctx cancellation.
type Runner func(ctx context.Context, job Job) error

type Config struct {
	Concurrency int           // jobs running at once, retries included
	Timeout     time.Duration // per attempt
	MaxRetries  int           // retries after the first attempt
	BaseDelay   time.Duration // backoff = BaseDelay * 2^attempt
}

type Stats struct {
	Capacity  int    `json:"capacity"`
	Active    int    `json:"active"`
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"`
	Completed uint64 `json:"completed"`
	Retried   uint64 `json:"retried"`
	Abandoned uint64 `json:"abandoned"`
}

type Queue struct {
	cfg    Config
	run    Runner
	logger *slog.Logger

	slots  *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // orders Submit's admission against Close
	wg     sync.WaitGroup
	closed atomic.Bool

	active    atomic.Int64
	submitted atomic.Uint64
	dropped   atomic.Uint64
	completed atomic.Uint64
	retried   atomic.Uint64
	abandoned atomic.Uint64
}

func New(cfg Config, run Runner, logger *slog.Logger) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:    cfg,
		run:    run,
		logger: logging.Default(logger).With("component", "reconcile-queue"),
		slots:  semaphore.NewWeighted(int64(cfg.Concurrency)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit starts job if a slot is free and reports whether it was accepted.
func (q *Queue) Submit(job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	q.submitted.Add(1)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.Load() || !q.slots.TryAcquire(1) {
		q.dropped.Add(1)
		q.logger.Warn("reconciliation queue full, dropping job",
			"job", job.ID, "kind", job.Kind, "vehicles", len(job.VehicleNumbers), "reason", job.Reason)
		return false
	}

	q.active.Add(1)
	q.wg.Go(func() {
		defer func() {
			q.active.Add(-1)
			q.slots.Release(1)
		}()
		q.execute(job)
	})
	return true
}

func (q *Queue) execute(job Job) {
	for attempt := 0; ; attempt++ {
		job.Attempt = attempt
		err := q.attempt(job)
		if err == nil {
			q.completed.Add(1)
			q.logger.Debug("reconciliation job done", "job", job.ID, "kind", job.Kind, "attempt", attempt)
			return
		}
		if attempt >= q.cfg.MaxRetries {
			q.abandoned.Add(1)
			q.logger.Error("reconciliation job abandoned",
				"job", job.ID, "kind", job.Kind, "vehicles", job.VehicleNumbers, "attempts", attempt+1, "error", err)
			return
		}

		delay := utils.Backoff(q.cfg.BaseDelay, attempt)
		q.retried.Add(1)
		q.logger.Warn("reconciliation job failed, retrying",
			"job", job.ID, "kind", job.Kind, "attempt", attempt, "delay", delay, "error", err)
		if utils.Sleep(q.ctx, delay) != nil {
			q.abandoned.Add(1)
			q.logger.Warn("reconciliation job cancelled during backoff", "job", job.ID)
			return
		}
	}
}

// attempt races the runner against the per-attempt timeout. A runner that
// ignores ctx keeps running in the background but its result is discarded.
func (q *Queue) attempt(job Job) error {
	ctx, cancel := context.WithTimeout(q.ctx, q.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job %s panicked: %v", job.ID, r)
			}
		}()
		done <- q.run(ctx, job)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("job %s attempt %d: %w", job.ID, job.Attempt, ctx.Err())
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		Capacity:  q.cfg.Concurrency,
		Active:    int(q.active.Load()),
		Submitted: q.submitted.Load(),
		Dropped:   q.dropped.Load(),
		Completed: q.completed.Load(),
		Retried:   q.retried.Load(),
		Abandoned: q.abandoned.Load(),
	}
}

// Wait blocks until no job is running or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops admitting jobs and waits for running ones. If ctx ends first,
// pending backoffs and attempts are cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed.Store(true)
	q.mu.Unlock()
	err := q.Wait(ctx)
	q.cancel()
	return err
}
