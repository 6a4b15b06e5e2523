package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetops/internal/domain"
	"fleetops/internal/domain/models"
)

const maxTripListLimit = 500

// GET /api/trips?vehicleNumber=B1234&startFrom=2024-01-01&limit=50
func (h *Handlers) ListTrips(c *gin.Context) {
	var fp filterPayload
	if err := c.ShouldBindQuery(&fp); err != nil {
		RespondError(c, http.StatusBadRequest, "query tidak valid", err)
		return
	}
	f, err := fp.toFilter(h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}

	limit := 100
	if s := strings.TrimSpace(c.Query("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "limit harus angka positif", err)
			return
		}
		limit = min(n, maxTripListLimit)
	}

	trips, err := h.Trips.Find(c.Request.Context(), f, limit)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trips, "count": len(trips)})
}

// GET /api/trips/:id
func (h *Handlers) GetTrip(c *gin.Context) {
	t, err := h.Trips.FindOne(c.Request.Context(), models.TripFilter{ID: c.Param("id")})
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /api/trips
func (h *Handlers) CreateTrip(c *gin.Context) {
	var p tripPayload
	if !BindJSONOrError(c, &p) {
		return
	}
	t, err := p.toTrip(h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	created, err := h.tripService(c).Create(c.Request.Context(), t)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PUT /api/trips/:id
// Only keys present in the body are changed; "startDate": null clears it.
func (h *Handlers) UpdateTrip(c *gin.Context) {
	var raw map[string]json.RawMessage
	if !BindJSONOrError(c, &raw) {
		return
	}
	patch, err := parsePatch(raw, h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	updated, err := h.tripService(c).UpdateOne(c.Request.Context(), models.TripFilter{ID: c.Param("id")}, patch)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /api/trips/:id
func (h *Handlers) DeleteTrip(c *gin.Context) {
	deleted, err := h.tripService(c).DeleteOne(c.Request.Context(), models.TripFilter{ID: c.Param("id")})
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trip dihapus", "data": deleted})
}

type updateManyPayload struct {
	Filter filterPayload              `json:"filter"`
	Update map[string]json.RawMessage `json:"update" binding:"required"`
}

// PATCH /api/trips
// Body: {"filter": {...}, "update": {...}}. Vehicles are synchronized in the background.
func (h *Handlers) UpdateTrips(c *gin.Context) {
	var p updateManyPayload
	if !BindJSONOrError(c, &p) {
		return
	}
	f, err := p.Filter.toFilter(h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	patch, err := parsePatch(p.Update, h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	n, err := h.tripService(c).UpdateMany(c.Request.Context(), f, patch)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modified": n})
}

// DELETE /api/trips?vehicleNumber=B1234&status=cancelled
func (h *Handlers) DeleteTrips(c *gin.Context) {
	var fp filterPayload
	if err := c.ShouldBindQuery(&fp); err != nil {
		RespondError(c, http.StatusBadRequest, "query tidak valid", err)
		return
	}
	f, err := fp.toFilter(h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	n, err := h.tripService(c).DeleteMany(c.Request.Context(), f)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// POST /api/trips/bulk
// Ops run in order and stop at the first failure; the counts so far are
// returned with the error.
func (h *Handlers) BulkTrips(c *gin.Context) {
	var p bulkPayload
	if !BindJSONOrError(c, &p) {
		return
	}
	ops, err := p.toOps(h.Location)
	if err != nil {
		h.RespondDomainError(c, err)
		return
	}
	res, err := h.tripService(c).BulkWrite(c.Request.Context(), ops)
	if err != nil {
		if res != (models.BulkResult{}) && !domain.IsValidation(err) {
			c.JSON(http.StatusMultiStatus, gin.H{"result": res, "error": err.Error()})
			return
		}
		h.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}
