package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trainworker/internal/store"
	"trainworker/internal/trajectory"
)

// WindowHandler lists the windows currently eligible for training, with
// per-window statistics. The ready-window view operators check before
// triggering a batch.
type WindowHandler struct {
	Reader    *store.Reader
	MinAgents int
	Lookback  time.Duration
}

func (h *WindowHandler) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.GET("/windows", h.list)
	v1.GET("/windows/:windowId/stats", h.stats)
}

func (h *WindowHandler) list(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.Reader.WindowIDs(ctx, h.MinAgents, h.Lookback)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	out := make([]*trajectory.WindowStatistics, 0, len(ids))
	for _, id := range ids {
		stats, err := h.Reader.WindowStats(ctx, id)
		if err != nil {
			Error(c, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		if stats != nil {
			out = append(out, stats)
		}
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

func (h *WindowHandler) stats(c *gin.Context) {
	windowID := c.Param("windowId")
	if _, err := trajectory.ParseWindowID(windowID); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stats, err := h.Reader.WindowStats(c.Request.Context(), windowID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if stats == nil {
		Error(c, http.StatusNotFound, "window has no trajectories", nil)
		return
	}
	Ok(c, stats, nil)
}
