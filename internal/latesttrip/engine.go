// Package latesttrip keeps each vehicle's denormalized latest-trip pointer in
// step with its trips.
//
// Writes to the trip collection call into the Engine: new trips get a rank
// among same-day siblings, single-document writes synchronize their vehicle
// inline, and multi-document or bulk writes hand their vehicles to the batch
// synchronizer in the background. Nothing here returns an error to the trip
// write that triggered it; failed reconciliations are retried through the
// reconcile queue and eventually abandoned.
//
// There is no per-vehicle lock. Two writes racing on the same vehicle may
// interleave their read-resolve-write steps and the last pointer write wins.
package latesttrip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"fleetops/internal/logging"
	"fleetops/internal/ratelimit"
	"fleetops/internal/reconcile"
	"fleetops/internal/utils"
)

// batchOp is the limiter key for batch chunk admission.
const batchOp = "latest-trip-batch"

type Config struct {
	QueueConcurrency int
	JobTimeout       time.Duration
	JobMaxRetries    int
	JobBaseDelay     time.Duration

	WriteAttempts  int
	WriteBaseDelay time.Duration
	OpTimeout      time.Duration

	ChunkSize       int
	RateLimitWindow time.Duration
	RateLimitMax    int
	RateLimitDelay  time.Duration

	CacheSize int
	CacheTTL  time.Duration

	// Location decides calendar days for rank assignment.
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		QueueConcurrency: 3,
		JobTimeout:       10 * time.Second,
		JobMaxRetries:    2,
		JobBaseDelay:     time.Second,
		WriteAttempts:    3,
		WriteBaseDelay:   100 * time.Millisecond,
		OpTimeout:        5 * time.Second,
		ChunkSize:        10,
		RateLimitWindow:  time.Second,
		RateLimitMax:     5,
		RateLimitDelay:   250 * time.Millisecond,
		CacheSize:        4096,
		CacheTTL:         5 * time.Minute,
		Location:         time.Local,
	}
}

type Option func(*Engine)

// WithClock sets the clock used by the batch rate limiter.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithEnqueuer replaces the built-in reconcile queue.
func WithEnqueuer(q Enqueuer) Option {
	return func(e *Engine) { e.queue = q }
}

type Engine struct {
	trips    TripStore
	vehicles VehicleStore
	cfg      Config
	logger   *slog.Logger

	clock   clockwork.Clock
	cache   *Cache
	limiter *ratelimit.Window
	queue   Enqueuer

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Go's closed check and Add against Close.
	mu       sync.Mutex
	detached sync.WaitGroup
	inFlight atomic.Int64
	closed   atomic.Bool
}

func New(trips TripStore, vehicles VehicleStore, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	cfg = withDefaults(cfg)
	logger = logging.Default(logger)
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		trips:    trips,
		vehicles: vehicles,
		cfg:      cfg,
		logger:   logger.With("component", "latest-trip"),
		cache:    NewCache(cfg.CacheSize, cfg.CacheTTL),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.limiter = ratelimit.NewWindow(cfg.RateLimitWindow, cfg.RateLimitMax, e.clock)
	if e.queue == nil {
		e.queue = reconcile.New(reconcile.Config{
			Concurrency: cfg.QueueConcurrency,
			Timeout:     cfg.JobTimeout,
			MaxRetries:  cfg.JobMaxRetries,
			BaseDelay:   cfg.JobBaseDelay,
		}, e.runJob, logger)
	}
	return e
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = def.QueueConcurrency
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.JobMaxRetries < 0 {
		cfg.JobMaxRetries = 0
	}
	if cfg.JobBaseDelay <= 0 {
		cfg.JobBaseDelay = def.JobBaseDelay
	}
	if cfg.WriteAttempts <= 0 {
		cfg.WriteAttempts = def.WriteAttempts
	}
	if cfg.WriteBaseDelay <= 0 {
		cfg.WriteBaseDelay = def.WriteBaseDelay
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = def.RateLimitMax
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = def.RateLimitDelay
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	return cfg
}

// Go runs fn detached from the caller, tracked so Close can wait for it.
// It reports false once the engine is closed.
func (e *Engine) Go(name string, fn func(ctx context.Context)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		e.logger.Warn("engine closed, skipping background work", "work", name)
		return false
	}
	e.inFlight.Add(1)
	e.detached.Go(func() {
		defer e.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("background work panicked", "work", name, "panic", r)
			}
		}()
		fn(e.ctx)
	})
	return true
}

// SyncBatchAsync schedules SyncBatch in the background.
func (e *Engine) SyncBatchAsync(vehicles []string) {
	vehicles = utils.UniqueVehicleNumbers(vehicles)
	if len(vehicles) == 0 {
		return
	}
	e.Go("sync-batch", func(ctx context.Context) { e.SyncBatch(ctx, vehicles) })
}

// SyncBulkAsync schedules SyncBulk in the background.
func (e *Engine) SyncBulkAsync(vehicles []string) {
	vehicles = utils.UniqueVehicleNumbers(vehicles)
	if len(vehicles) == 0 {
		return
	}
	e.Go("sync-bulk", func(ctx context.Context) { e.SyncBulk(ctx, vehicles) })
}

// ReconcileVehicle queues a single-vehicle job.
func (e *Engine) ReconcileVehicle(vehicleNumber, reason string) bool {
	return e.enqueue(reconcile.Job{
		Kind:           reconcile.KindVehicle,
		VehicleNumbers: []string{vehicleNumber},
		Reason:         reason,
	})
}

// ReconcileAll queues one batch job covering every registered vehicle.
func (e *Engine) ReconcileAll(ctx context.Context, reason string) (int, bool, error) {
	vehicles, err := e.vehicles.ListVehicleNumbers(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("list vehicle numbers: %w", err)
	}
	vehicles = utils.UniqueVehicleNumbers(vehicles)
	if len(vehicles) == 0 {
		return 0, true, nil
	}
	ok := e.enqueue(reconcile.Job{Kind: reconcile.KindBatch, VehicleNumbers: vehicles, Reason: reason})
	return len(vehicles), ok, nil
}

// LatestTrip reads a vehicle's pointer through the cache. "" means no trip.
func (e *Engine) LatestTrip(ctx context.Context, vehicleNumber string) (string, error) {
	if entry, ok := e.cache.Get(vehicleNumber); ok {
		return entry.TripID, nil
	}
	gen := e.cache.Generation(vehicleNumber)
	id, err := e.vehicles.FindLatestTripPointer(ctx, vehicleNumber)
	if err != nil {
		return "", err
	}
	if !e.cache.PutIfCurrent(vehicleNumber, id, gen) {
		e.logger.Debug("pointer changed during read, not caching", "vehicle", vehicleNumber)
	}
	return id, nil
}

func (e *Engine) enqueue(job reconcile.Job) bool {
	return e.queue.Submit(job)
}

// runJob executes one attempt of a reconciliation job.
func (e *Engine) runJob(ctx context.Context, job reconcile.Job) error {
	switch job.Kind {
	case reconcile.KindVehicle:
		var errs []error
		for _, v := range utils.UniqueVehicleNumbers(job.VehicleNumbers) {
			if _, err := e.syncVehicle(ctx, v, nil); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case reconcile.KindBatch:
		res := e.syncChunked(ctx, utils.UniqueVehicleNumbers(job.VehicleNumbers), false)
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d of %d vehicles failed: %v", len(res.Failed), len(res.Failed)+len(res.Synced), res.Failed)
		}
		return nil
	default:
		return fmt.Errorf("unknown reconciliation job kind %q", job.Kind)
	}
}

// Close stops background admission, waits for detached batches and drains
// the reconcile queue. Work still running when ctx ends is cancelled.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed.Store(true)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.detached.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	e.cancel()
	return errors.Join(err, e.queue.Close(ctx))
}
