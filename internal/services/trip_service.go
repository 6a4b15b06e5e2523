package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"fleetops/internal/domain"
	"fleetops/internal/domain/models"
	"fleetops/internal/latesttrip"
	"fleetops/internal/repositories"
	"fleetops/internal/utils"
)

// TripService wraps every trip write so the owning vehicles' latest-trip
// pointers follow. Errors returned here come from the trip write itself;
// pointer maintenance only logs and queues.
type TripService struct {
	Trips     repositories.TripRepository
	Engine    *latesttrip.Engine
	Logger    *slog.Logger
	RequestID string
}

// Create inserts t, then ranks it among same-day trips and synchronizes
// its vehicle. Placeholder trips (no start date) skip both.
func (s TripService) Create(ctx context.Context, t models.Trip) (models.Trip, error) {
	t, err := prepareInsert(t)
	if err != nil {
		return models.Trip{}, err
	}
	if err := s.Trips.Insert(ctx, t); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "trips", "create", fmt.Sprintf("id=%s vehicle=%s", t.ID, t.VehicleNumber))

	if t.StartDate != nil {
		summary := s.Engine.AssignRank(ctx, t)
		t.RankIndex = summary.RankIndex
		s.Engine.Synchronize(ctx, t.VehicleNumber, &summary)
	}
	return t, nil
}

// UpdateOne patches the first trip matching f and synchronizes the vehicle
// it belonged to before and after the write.
func (s TripService) UpdateOne(ctx context.Context, f models.TripFilter, p models.TripPatch) (models.Trip, error) {
	if f.IsEmpty() {
		return models.Trip{}, domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
	}
	if err := validatePatch(p); err != nil {
		return models.Trip{}, err
	}

	before, err := s.Trips.FindOne(ctx, f)
	if err != nil {
		return models.Trip{}, err
	}
	if _, err := s.Trips.UpdateByIDs(ctx, []string{before.ID}, p); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "trips", "update_one", "id="+before.ID)

	after, err := s.Trips.FindOne(ctx, models.TripFilter{ID: before.ID})
	if err != nil {
		// The row's vehicle is unknown; recompute every one it could be on.
		for _, v := range affectedVehicles(f, []models.Trip{before}, p) {
			s.Engine.Synchronize(ctx, v, nil)
		}
		if domain.IsNotFound(err) {
			// Deleted concurrently after the update went through.
			return before, nil
		}
		return models.Trip{}, fmt.Errorf("reread trip %s: %w", before.ID, err)
	}
	if p.TouchesResolution() {
		if before.VehicleNumber != after.VehicleNumber {
			s.Engine.Synchronize(ctx, before.VehicleNumber, nil)
		}
		summary := after.Summary()
		s.Engine.Synchronize(ctx, after.VehicleNumber, &summary)
	}
	return after, nil
}

// DeleteOne removes the first trip matching f. The vehicle is read before
// the row disappears.
func (s TripService) DeleteOne(ctx context.Context, f models.TripFilter) (models.Trip, error) {
	if f.IsEmpty() {
		return models.Trip{}, domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
	}
	before, err := s.Trips.FindOne(ctx, f)
	if err != nil {
		return models.Trip{}, err
	}
	if _, err := s.Trips.DeleteByIDs(ctx, []string{before.ID}); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "trips", "delete_one", "id="+before.ID)

	s.Engine.Synchronize(ctx, before.VehicleNumber, nil)
	return before, nil
}

// UpdateMany patches every trip matching f. Affected vehicles are
// synchronized in the background.
func (s TripService) UpdateMany(ctx context.Context, f models.TripFilter, p models.TripPatch) (int64, error) {
	if f.IsEmpty() {
		return 0, domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
	}
	if err := validatePatch(p); err != nil {
		return 0, err
	}

	matched, err := s.Trips.Find(ctx, f, 0)
	if err != nil {
		return 0, err
	}
	n, err := s.Trips.UpdateByIDs(ctx, tripIDs(matched), p)
	if err != nil {
		return 0, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "trips", "update_many", fmt.Sprintf("matched=%d modified=%d", len(matched), n))

	if p.TouchesResolution() {
		s.Engine.SyncBatchAsync(affectedVehicles(f, matched, p))
	}
	return n, nil
}

// DeleteMany removes every trip matching f. Affected vehicles are
// synchronized in the background.
func (s TripService) DeleteMany(ctx context.Context, f models.TripFilter) (int64, error) {
	if f.IsEmpty() {
		return 0, domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
	}
	matched, err := s.Trips.Find(ctx, f, 0)
	if err != nil {
		return 0, err
	}
	n, err := s.Trips.DeleteByIDs(ctx, tripIDs(matched))
	if err != nil {
		return 0, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "trips", "delete_many", fmt.Sprintf("matched=%d deleted=%d", len(matched), n))

	s.Engine.SyncBatchAsync(affectedVehicles(f, matched, models.TripPatch{}))
	return n, nil
}

// BulkWrite applies ops in order and stops at the first failing op. Every
// vehicle touched by the ops that ran is synchronized in the background,
// including when an error is returned.
func (s TripService) BulkWrite(ctx context.Context, ops []models.BulkOp) (models.BulkResult, error) {
	var res models.BulkResult
	if len(ops) == 0 {
		return res, domain.ValidationError{Field: "ops", Msg: "operasi bulk kosong"}
	}
	for i, op := range ops {
		if err := validateBulkOp(op); err != nil {
			return res, fmt.Errorf("op %d: %w", i, err)
		}
	}

	var vehicles []string
	defer func() {
		utils.LogEvent(s.Logger, s.RequestID, "trips", "bulk_write",
			fmt.Sprintf("ops=%d inserted=%d modified=%d deleted=%d", len(ops), res.Inserted, res.Modified, res.Deleted))
		s.Engine.SyncBulkAsync(vehicles)
	}()

	for i, op := range ops {
		touched, err := s.applyBulkOp(ctx, op, &res)
		vehicles = append(vehicles, touched...)
		if err != nil {
			return res, fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	return res, nil
}

func (s TripService) applyBulkOp(ctx context.Context, op models.BulkOp, res *models.BulkResult) ([]string, error) {
	limit := 1
	if op.Many {
		limit = 0
	}

	switch op.Kind {
	case models.BulkInsert:
		t, err := prepareInsert(*op.Trip)
		if err != nil {
			return nil, err
		}
		if err := s.Trips.Insert(ctx, t); err != nil {
			return nil, err
		}
		res.Inserted++
		return []string{t.VehicleNumber}, nil

	case models.BulkUpdate:
		matched, err := s.Trips.Find(ctx, op.Filter, limit)
		if err != nil {
			return nil, err
		}
		n, err := s.Trips.UpdateByIDs(ctx, tripIDs(matched), op.Patch)
		res.Modified += n
		return affectedVehicles(op.Filter, matched, op.Patch), err

	case models.BulkDelete:
		matched, err := s.Trips.Find(ctx, op.Filter, limit)
		if err != nil {
			return nil, err
		}
		n, err := s.Trips.DeleteByIDs(ctx, tripIDs(matched))
		res.Deleted += n
		return affectedVehicles(op.Filter, matched, models.TripPatch{}), err

	case models.BulkReplace:
		matched, err := s.Trips.Find(ctx, op.Filter, 1)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			return []string{op.Filter.VehicleNumber}, nil
		}
		n, err := s.Trips.Replace(ctx, matched[0].ID, *op.Trip)
		res.Modified += n
		return []string{op.Filter.VehicleNumber, matched[0].VehicleNumber, op.Trip.VehicleNumber}, err
	}
	return nil, domain.ValidationError{Field: "kind", Msg: "jenis operasi tidak dikenali: " + string(op.Kind)}
}

func prepareInsert(t models.Trip) (models.Trip, error) {
	t.VehicleNumber = strings.TrimSpace(t.VehicleNumber)
	if t.VehicleNumber == "" {
		return t, domain.ValidationError{Field: "vehicleNumber", Msg: "vehicleNumber wajib diisi"}
	}
	if t.RankIndex < 0 {
		return t, domain.ValidationError{Field: "rankIndex", Msg: "rankIndex tidak boleh negatif"}
	}
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = newTripID()
	}
	return t, nil
}

func validatePatch(p models.TripPatch) error {
	if p.IsEmpty() {
		return domain.ValidationError{Field: "patch", Msg: "tidak ada field yang diubah"}
	}
	if p.VehicleNumber != nil && strings.TrimSpace(*p.VehicleNumber) == "" {
		return domain.ValidationError{Field: "vehicleNumber", Msg: "vehicleNumber tidak boleh kosong"}
	}
	if p.RankIndex != nil && *p.RankIndex < 0 {
		return domain.ValidationError{Field: "rankIndex", Msg: "rankIndex tidak boleh negatif"}
	}
	return nil
}

func validateBulkOp(op models.BulkOp) error {
	switch op.Kind {
	case models.BulkInsert:
		if op.Trip == nil {
			return domain.ValidationError{Field: "trip", Msg: "insert membutuhkan trip"}
		}
		_, err := prepareInsert(*op.Trip)
		return err
	case models.BulkUpdate:
		if op.Filter.IsEmpty() {
			return domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
		}
		return validatePatch(op.Patch)
	case models.BulkDelete:
		if op.Filter.IsEmpty() {
			return domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
		}
		return nil
	case models.BulkReplace:
		if op.Filter.IsEmpty() {
			return domain.ValidationError{Field: "filter", Msg: "filter tidak boleh kosong"}
		}
		if op.Trip == nil || strings.TrimSpace(op.Trip.VehicleNumber) == "" {
			return domain.ValidationError{Field: "trip", Msg: "replace membutuhkan trip dengan vehicleNumber"}
		}
		return nil
	}
	return domain.ValidationError{Field: "kind", Msg: "jenis operasi tidak dikenali: " + string(op.Kind)}
}

// affectedVehicles collects vehicle numbers from the filter, the matched
// snapshots and the patch payload.
func affectedVehicles(f models.TripFilter, matched []models.Trip, p models.TripPatch) []string {
	out := []string{f.VehicleNumber}
	for _, t := range matched {
		out = append(out, t.VehicleNumber)
	}
	if p.VehicleNumber != nil {
		out = append(out, *p.VehicleNumber)
	}
	return utils.UniqueVehicleNumbers(out)
}

func tripIDs(trips []models.Trip) []string {
	ids := make([]string, 0, len(trips))
	for _, t := range trips {
		ids = append(ids, t.ID)
	}
	return ids
}

// newTripID returns a time-ordered UUID so ids also sort by creation.
func newTripID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
