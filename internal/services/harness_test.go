package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"fleetops/internal/domain/models"
	"fleetops/internal/latesttrip"
	"fleetops/internal/logging"
	"fleetops/internal/repositories"
)

type harness struct {
	db       *sql.DB
	trips    TripService
	vehicles VehicleService
	engine   *latesttrip.Engine
}

func newHarness(t *testing.T, vehicleNumbers ...string) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, repositories.EnsureSchema(ctx, db, repositories.DialectSQLite))

	cfg := latesttrip.DefaultConfig()
	cfg.Location = time.UTC
	cfg.WriteBaseDelay = time.Millisecond
	cfg.JobBaseDelay = time.Millisecond
	cfg.RateLimitDelay = time.Millisecond

	tripRepo := repositories.TripRepository{DB: db}
	vehicleRepo := repositories.VehicleRepository{DB: db}
	engine := latesttrip.New(tripRepo, vehicleRepo, cfg, logging.Discard())

	h := &harness{
		db:       db,
		trips:    TripService{Trips: tripRepo, Engine: engine, Logger: logging.Discard(), RequestID: "test"},
		vehicles: VehicleService{Vehicles: vehicleRepo, Engine: engine, Logger: logging.Discard(), RequestID: "test"},
		engine:   engine,
	}
	t.Cleanup(func() {
		h.drain(t)
		db.Close()
	})

	for _, v := range vehicleNumbers {
		require.NoError(t, vehicleRepo.Create(ctx, models.Vehicle{VehicleNumber: v}))
	}
	return h
}

// drain waits for detached batch syncs and queued jobs. The engine accepts
// no background work afterwards.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Close(ctx))
}

func (h *harness) pointer(t *testing.T, vehicle string) string {
	t.Helper()
	v, err := h.vehicles.Vehicles.Get(context.Background(), vehicle)
	require.NoError(t, err)
	return v.LatestTripID
}

func (h *harness) rank(t *testing.T, id string) int {
	t.Helper()
	trip, err := h.trips.Trips.FindOne(context.Background(), models.TripFilter{ID: id})
	require.NoError(t, err)
	return trip.RankIndex
}

func date(y int, m time.Month, d, hour int) *time.Time {
	t := time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	return &t
}

func ptr[T any](v T) *T { return &v }
