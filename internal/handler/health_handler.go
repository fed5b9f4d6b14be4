package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nipark/booking/pkg/config"
	pkgredis "github.com/nipark/booking/pkg/redis"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	cfg   *config.Config
	redis *pkgredis.Client
}

// NewHealthHandler creates a health handler
func NewHealthHandler(cfg *config.Config, redis *pkgredis.Client) *HealthHandler {
	return &HealthHandler{cfg: cfg, redis: redis}
}

// RegisterRoutes mounts the probe routes on the engine root
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/status", h.Status)
}

// Health is the liveness probe
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether dependencies are reachable. Redis is the only
// hard runtime dependency the probe can check cheaply; the data API is
// checked per-request.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"redis":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Status reports service identity and environment
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     h.cfg.App.Name,
		"version":     h.cfg.App.Version,
		"environment": h.cfg.App.Environment,
	})
}
