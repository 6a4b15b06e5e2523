package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fleetops/internal/domain"
	"fleetops/internal/domain/models"
	"fleetops/internal/latesttrip"
	"fleetops/internal/repositories"
	"fleetops/internal/utils"
)

type VehicleService struct {
	Vehicles  repositories.VehicleRepository
	Engine    *latesttrip.Engine
	Logger    *slog.Logger
	RequestID string
}

func (s VehicleService) Register(ctx context.Context, p models.VehiclePayload) (models.Vehicle, error) {
	v := models.Vehicle{
		VehicleNumber: strings.TrimSpace(p.VehicleNumber),
		PlateNumber:   strings.TrimSpace(p.PlateNumber),
	}
	if v.VehicleNumber == "" {
		return models.Vehicle{}, domain.ValidationError{Field: "vehicleNumber", Msg: "vehicleNumber wajib diisi"}
	}
	if err := s.Vehicles.Create(ctx, v); err != nil {
		return models.Vehicle{}, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "vehicles", "register", "vehicle="+v.VehicleNumber)

	// Trips may have been written before the vehicle existed.
	s.Engine.Synchronize(ctx, v.VehicleNumber, nil)
	return s.Vehicles.Get(ctx, v.VehicleNumber)
}

// LatestTrip returns the vehicle's pointer through the engine cache.
func (s VehicleService) LatestTrip(ctx context.Context, vehicleNumber string) (models.Vehicle, error) {
	vehicleNumber = strings.TrimSpace(vehicleNumber)
	id, err := s.Engine.LatestTrip(ctx, vehicleNumber)
	if err != nil {
		return models.Vehicle{}, err
	}
	return models.Vehicle{VehicleNumber: vehicleNumber, LatestTripID: id}, nil
}

// Reconcile queues a single-vehicle job after checking the vehicle exists.
func (s VehicleService) Reconcile(ctx context.Context, vehicleNumber string) (bool, error) {
	vehicleNumber = strings.TrimSpace(vehicleNumber)
	if _, err := s.Vehicles.Get(ctx, vehicleNumber); err != nil {
		return false, err
	}
	queued := s.Engine.ReconcileVehicle(vehicleNumber, "manual request")
	utils.LogEvent(s.Logger, s.RequestID, "vehicles", "reconcile", "vehicle="+vehicleNumber)
	return queued, nil
}

// ReconcileAll queues one batch job over every registered vehicle.
func (s VehicleService) ReconcileAll(ctx context.Context) (int, bool, error) {
	n, queued, err := s.Engine.ReconcileAll(ctx, "manual request")
	if err != nil {
		return 0, false, err
	}
	utils.LogEvent(s.Logger, s.RequestID, "vehicles", "reconcile_all", fmt.Sprintf("vehicles=%d", n))
	return n, queued, nil
}
