package latesttrip

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"fleetops/internal/domain/models"
	"fleetops/internal/ratelimit"
	"fleetops/internal/reconcile"
	"fleetops/internal/utils"
)

// BatchResult lists which vehicles ended with a fresh pointer.
type BatchResult struct {
	Synced   []string `json:"synced"`
	Failed   []string `json:"failed"`
	Combined bool     `json:"combined"` // the single batched write succeeded
}

// SyncBatch reconciles many vehicles in rate-limited chunks. Vehicles in a
// chunk are resolved and written concurrently and fail independently;
// failures are re-queued as single-vehicle jobs.
func (e *Engine) SyncBatch(ctx context.Context, vehicles []string) BatchResult {
	return e.syncChunked(ctx, utils.UniqueVehicleNumbers(vehicles), true)
}

// SyncBulk resolves every vehicle in parallel and issues one batched pointer
// write. Vehicles that could not be resolved, or all of them when the
// batched write fails, go through the chunked path of SyncBatch.
func (e *Engine) SyncBulk(ctx context.Context, vehicles []string) BatchResult {
	vehicles = utils.UniqueVehicleNumbers(vehicles)
	if len(vehicles) < 2 {
		return e.syncChunked(ctx, vehicles, true)
	}

	updates := make([]models.PointerUpdate, len(vehicles))
	errs := make([]error, len(vehicles))
	var g errgroup.Group
	g.SetLimit(e.cfg.ChunkSize)
	for i, v := range vehicles {
		g.Go(func() error {
			err := e.withOpTimeout(ctx, func(ctx context.Context) error {
				latest, _, err := e.trips.FindLatestTripSummary(ctx, v)
				updates[i] = models.PointerUpdate{VehicleNumber: v, TripID: latest.ID}
				return err
			})
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var resolved []models.PointerUpdate
	var fallback []string
	for i, v := range vehicles {
		if errs[i] != nil {
			e.logger.Warn("bulk sync: resolve failed", "vehicle", v, "error", errs[i])
			fallback = append(fallback, v)
			continue
		}
		resolved = append(resolved, updates[i])
	}

	var res BatchResult
	if len(resolved) > 0 {
		err := e.admit(ctx)
		if err == nil {
			err = e.retryWrite(ctx, func(ctx context.Context) error {
				return e.vehicles.BulkSetLatestTripPointers(ctx, resolved)
			})
		}
		if err != nil {
			e.logger.Warn("bulk sync: combined write failed, falling back to per-vehicle writes",
				"vehicles", len(resolved), "error", err)
			for _, u := range resolved {
				fallback = append(fallback, u.VehicleNumber)
			}
		} else {
			res.Combined = true
			for _, u := range resolved {
				e.cache.Invalidate(u.VehicleNumber)
				res.Synced = append(res.Synced, u.VehicleNumber)
			}
		}
	}

	if len(fallback) > 0 {
		fb := e.syncChunked(ctx, utils.UniqueVehicleNumbers(fallback), true)
		res.Synced = append(res.Synced, fb.Synced...)
		res.Failed = append(res.Failed, fb.Failed...)
	}
	sort.Strings(res.Synced)
	sort.Strings(res.Failed)
	e.logger.Info("bulk sync finished",
		"vehicles", len(vehicles), "synced", len(res.Synced), "failed", len(res.Failed), "combined", res.Combined)
	return res
}

func (e *Engine) syncChunked(ctx context.Context, vehicles []string, requeue bool) BatchResult {
	var res BatchResult
	chunks := utils.Chunk(vehicles, e.cfg.ChunkSize)
	for n, chunk := range chunks {
		if err := e.admit(ctx); err != nil {
			for _, rest := range chunks[n:] {
				for _, v := range rest {
					e.cache.Invalidate(v)
				}
				res.Failed = append(res.Failed, rest...)
			}
			e.logger.Warn("batch sync: interrupted while waiting for admission",
				"remaining", len(vehicles)-len(res.Synced), "error", err)
			break
		}
		synced, failed := e.syncChunk(ctx, chunk)
		res.Synced = append(res.Synced, synced...)
		res.Failed = append(res.Failed, failed...)
	}

	if requeue {
		for _, v := range res.Failed {
			e.enqueue(reconcile.Job{
				Kind:           reconcile.KindVehicle,
				VehicleNumbers: []string{v},
				Reason:         "batch sync failed",
			})
		}
	}
	return res
}

// syncChunk resolves and writes each vehicle concurrently. One vehicle's
// failure never affects the others.
func (e *Engine) syncChunk(ctx context.Context, chunk []string) (synced, failed []string) {
	errs := make([]error, len(chunk))
	var g errgroup.Group
	for i, v := range chunk {
		g.Go(func() error {
			errs[i] = e.retryWrite(ctx, func(ctx context.Context) error {
				latest, _, err := e.trips.FindLatestTripSummary(ctx, v)
				if err != nil {
					return fmt.Errorf("find latest trip for %s: %w", v, err)
				}
				return e.vehicles.SetLatestTripPointer(ctx, v, latest.ID)
			})
			e.cache.Invalidate(v)
			return nil
		})
	}
	_ = g.Wait()

	for i, v := range chunk {
		if errs[i] != nil {
			e.logger.Warn("batch sync: vehicle failed", "vehicle", v, "error", errs[i])
			failed = append(failed, v)
			continue
		}
		synced = append(synced, v)
	}
	return synced, failed
}

// admit blocks until the limiter lets a chunk through, sleeping
// RateLimitDelay after each refusal.
func (e *Engine) admit(ctx context.Context) error {
	for {
		err := e.limiter.Allow(batchOp)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ratelimit.ErrRateLimited) {
			return err
		}
		e.logger.Debug("batch chunk rate limited", "error", err)
		if err := utils.Sleep(ctx, e.cfg.RateLimitDelay); err != nil {
			return err
		}
	}
}
