package handlers

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/middleware"
	"fleetops/internal/latesttrip"
	"fleetops/internal/logging"
	"fleetops/internal/repositories"
	"fleetops/internal/services"
)

// Handlers holds what the HTTP layer needs to build per-request services.
type Handlers struct {
	DB       *sql.DB
	Trips    repositories.TripRepository
	Vehicles repositories.VehicleRepository
	Engine   *latesttrip.Engine
	Logger   *slog.Logger
	// Location interprets dates without a zone in request payloads.
	Location *time.Location
	// Dialect selects the schema queries of the db-check endpoint.
	Dialect string

	router *gin.Engine
}

func New(db *sql.DB, engine *latesttrip.Engine, loc *time.Location, logger *slog.Logger) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		DB:       db,
		Trips:    repositories.TripRepository{DB: db},
		Vehicles: repositories.VehicleRepository{DB: db},
		Engine:   engine,
		Logger:   logging.Default(logger),
		Location: loc,
	}
}

// SetRouter stores the active gin engine for /api/routes.
func (h *Handlers) SetRouter(r *gin.Engine) { h.router = r }

func (h *Handlers) tripService(c *gin.Context) services.TripService {
	return services.TripService{
		Trips:     h.Trips,
		Engine:    h.Engine,
		Logger:    h.Logger,
		RequestID: middleware.GetRequestID(c),
	}
}

func (h *Handlers) vehicleService(c *gin.Context) services.VehicleService {
	return services.VehicleService{
		Vehicles:  h.Vehicles,
		Engine:    h.Engine,
		Logger:    h.Logger,
		RequestID: middleware.GetRequestID(c),
	}
}
