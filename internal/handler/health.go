package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"trainworker/internal/trainclient"
)

type HealthHandler struct {
	DB      *gorm.DB
	Backend *trainclient.Client
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/healthz", h.live)
	r.GET("/readyz", h.ready)
}

// health is the platform-facing check: database reachability plus whether a
// training backend is configured. Matches the shape the scheduler probes.
func (h *HealthHandler) health(c *gin.Context) {
	wandb := "not_configured"
	if h.Backend.Configured() {
		wandb = "configured"
	}
	body := gin.H{
		"status":    "healthy",
		"database":  "connected",
		"wandb":     wandb,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.pingDB(); err != nil {
		body["status"] = "unhealthy"
		body["database"] = "disconnected"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if err := h.pingDB(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *HealthHandler) pingDB() error {
	if h.DB == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
