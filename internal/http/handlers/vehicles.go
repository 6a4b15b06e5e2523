package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/domain/models"
)

// POST /api/vehicles
func (h *Handlers) CreateVehicle(c *gin.Context) {
	var p models.VehiclePayload
	if !BindJSONOrError(c, &p) {
		return
	}
	v, err := h.vehicleService(c).Register(c.Request.Context(), p)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GET /api/vehicles/:number
func (h *Handlers) GetVehicle(c *gin.Context) {
	v, err := h.Vehicles.Get(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// GET /api/vehicles/:number/latest-trip
func (h *Handlers) GetLatestTrip(c *gin.Context) {
	v, err := h.vehicleService(c).LatestTrip(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicleNumber": v.VehicleNumber, "latestTripId": v.LatestTripID})
}

// POST /api/vehicles/:number/reconcile
func (h *Handlers) ReconcileVehicle(c *gin.Context) {
	queued, err := h.vehicleService(c).Reconcile(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	if !queued {
		RespondError(c, http.StatusServiceUnavailable, "antrian rekonsiliasi penuh", nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "rekonsiliasi dijadwalkan", "vehicleNumber": c.Param("number")})
}

// POST /api/vehicles/reconcile
func (h *Handlers) ReconcileVehicles(c *gin.Context) {
	n, queued, err := h.vehicleService(c).ReconcileAll(c.Request.Context())
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	if !queued {
		RespondError(c, http.StatusServiceUnavailable, "antrian rekonsiliasi penuh", nil)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "rekonsiliasi dijadwalkan", "vehicles": n})
}
