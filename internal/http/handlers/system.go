package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetops/internal/config"
	"fleetops/internal/latesttrip"
	"fleetops/internal/repositories"
)

// GET /api/health
func (h *Handlers) Health(c *gin.Context) {
	health := h.Engine.Health()
	status := http.StatusOK
	if health.Status == latesttrip.StatusStopped {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     health.Status,
		"message":    "fleetops berjalan",
		"latestTrip": health,
	})
}

// GET /api/db-check
func (h *Handlers) DBCheck(c *gin.Context) {
	ctx := c.Request.Context()
	if err := config.Ping(ctx, h.DB); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "gagal ping database: " + err.Error()})
		return
	}
	tables := gin.H{}
	for _, table := range repositories.SchemaTables {
		ok, err := repositories.HasTable(ctx, h.DB, h.Dialect, table)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "gagal query ke database: " + err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tabel " + table + " belum ada, jalankan migrate"})
			return
		}
		tables[table] = true
	}
	var count int
	if err := h.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicles").Scan(&count); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "gagal query ke database: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "koneksi database OK", "tables": tables, "vehicles_in_db": count})
}

// GET /api/routes
func (h *Handlers) Routes(c *gin.Context) {
	if h.router == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "router belum siap"})
		return
	}
	routes := h.router.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{"method": rt.Method, "path": rt.Path})
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}
