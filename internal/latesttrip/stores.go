package latesttrip

import (
	"context"
	"time"

	"fleetops/internal/domain/models"
	"fleetops/internal/reconcile"
)

// TripStore is the read side of the trip collection plus the rank writes
// the Rank Assigner needs.
type TripStore interface {
	// FindTripSummaries returns every trip of the vehicle projected to
	// {id, startDate, rankIndex}.
	FindTripSummaries(ctx context.Context, vehicleNumber string) ([]models.TripSummary, error)
	// FindLatestTripSummary returns the vehicle's current trip using the
	// resolver ordering; ok is false when no trip has a start date.
	FindLatestTripSummary(ctx context.Context, vehicleNumber string) (summary models.TripSummary, ok bool, err error)
	// FindSameDaySiblings returns trips of the vehicle starting in [from, to), excluding excludeID.
	FindSameDaySiblings(ctx context.Context, vehicleNumber string, from, to time.Time, excludeID string) ([]models.TripSummary, error)
	IncrementRanks(ctx context.Context, ids []string) error
	SetRank(ctx context.Context, id string, rank int) error
}

// VehicleStore owns the latest-trip pointer. Only the engine writes it.
type VehicleStore interface {
	FindLatestTripPointer(ctx context.Context, vehicleNumber string) (string, error)
	// SetLatestTripPointer writes tripID, or clears the pointer when tripID is "".
	SetLatestTripPointer(ctx context.Context, vehicleNumber, tripID string) error
	BulkSetLatestTripPointers(ctx context.Context, updates []models.PointerUpdate) error
	ListVehicleNumbers(ctx context.Context) ([]string, error)
}

// Enqueuer accepts background reconciliation jobs. *reconcile.Queue implements it.
type Enqueuer interface {
	Submit(job reconcile.Job) bool
	Stats() reconcile.Stats
	Close(ctx context.Context) error
}
