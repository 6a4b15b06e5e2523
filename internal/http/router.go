package api

import (
	"log/slog"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	intconfig "fleetops/internal/config"
	h "fleetops/internal/http/handlers"
	"fleetops/internal/http/middleware"
	"fleetops/internal/logging"
)

// NewRouter mounts the API. bulkLimiter, when non-nil, guards the endpoints
// that fan out into batch synchronization.
func NewRouter(env intconfig.Env, hs *h.Handlers, bulkLimiter *middleware.IPRateLimiter, logger *slog.Logger) *gin.Engine {
	logger = logging.Default(logger)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), gin.Recovery(), middleware.CORS(env.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Warn("failed to set trusted proxies", "error", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route tidak ditemukan",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	fanOut := api.Group("")
	if bulkLimiter != nil {
		fanOut.Use(middleware.RateLimit(bulkLimiter))
	}
	{
		api.GET("/health", hs.Health)
		api.GET("/db-check", hs.DBCheck)
		api.GET("/routes", hs.Routes)

		trips := api.Group("/trips")
		trips.GET("", hs.ListTrips)
		trips.POST("", hs.CreateTrip)
		trips.GET("/:id", hs.GetTrip)
		trips.PUT("/:id", hs.UpdateTrip)
		trips.DELETE("/:id", hs.DeleteTrip)
		fanOut.PATCH("/trips", hs.UpdateTrips)
		fanOut.DELETE("/trips", hs.DeleteTrips)
		fanOut.POST("/trips/bulk", hs.BulkTrips)

		vehicles := api.Group("/vehicles")
		vehicles.POST("", hs.CreateVehicle)
		fanOut.POST("/vehicles/reconcile", hs.ReconcileVehicles)
		vehicles.GET("/:number", hs.GetVehicle)
		vehicles.GET("/:number/latest-trip", hs.GetLatestTrip)
		vehicles.POST("/:number/reconcile", hs.ReconcileVehicle)
	}

	hs.SetRouter(r)
	return r
}
