package latesttrip

import (
	"context"
	"fmt"
	"strings"

	"fleetops/internal/domain/models"
	"fleetops/internal/reconcile"
	"fleetops/internal/utils"
)

// Synchronize recomputes vehicleNumber's latest trip and writes the pointer.
// written, when non-nil, is the summary produced by the triggering write and
// overrides any stored entry with the same id.
//
// It never fails the caller: on error the vehicle is handed to the
// reconcile queue.
func (e *Engine) Synchronize(ctx context.Context, vehicleNumber string, written *models.TripSummary) {
	vehicleNumber = strings.TrimSpace(vehicleNumber)
	if vehicleNumber == "" {
		return
	}
	latest, err := e.syncVehicle(context.WithoutCancel(ctx), vehicleNumber, written)
	if err != nil {
		e.logger.Warn("synchronize failed, queueing reconciliation", "vehicle", vehicleNumber, "error", err)
		e.enqueue(reconcile.Job{
			Kind:           reconcile.KindVehicle,
			VehicleNumbers: []string{vehicleNumber},
			Reason:         "synchronize failed",
		})
		return
	}
	e.logger.Debug("latest trip synchronized", "vehicle", vehicleNumber, "trip", latest)
}

func (e *Engine) syncVehicle(ctx context.Context, vehicleNumber string, written *models.TripSummary) (string, error) {
	var summaries []models.TripSummary
	err := e.withOpTimeout(ctx, func(ctx context.Context) error {
		var err error
		summaries, err = e.trips.FindTripSummaries(ctx, vehicleNumber)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("find trip summaries for %s: %w", vehicleNumber, err)
	}
	if written != nil {
		summaries = Merge(summaries, *written)
	}

	latest, _ := Resolve(summaries)
	if err := e.writePointer(ctx, vehicleNumber, latest); err != nil {
		return "", err
	}
	return latest, nil
}

// writePointer sets (or clears, for "") the pointer and drops the cache entry.
func (e *Engine) writePointer(ctx context.Context, vehicleNumber, tripID string) error {
	err := e.retryWrite(ctx, func(ctx context.Context) error {
		return e.vehicles.SetLatestTripPointer(ctx, vehicleNumber, tripID)
	})
	if err != nil {
		return fmt.Errorf("set latest trip pointer for %s: %w", vehicleNumber, err)
	}
	e.cache.Invalidate(vehicleNumber)
	return nil
}

// retryWrite wraps a store write in retry-with-backoff, each attempt bounded by OpTimeout.
func (e *Engine) retryWrite(ctx context.Context, fn func(context.Context) error) error {
	return utils.Retry(ctx, e.cfg.WriteAttempts, e.cfg.WriteBaseDelay, func(ctx context.Context) error {
		return e.withOpTimeout(ctx, fn)
	})
}

func (e *Engine) withOpTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OpTimeout)
	defer cancel()
	return fn(ctx)
}
