package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trainworker/internal/repository"
)

// BatchHandler exposes read-only batch state for operators. Mutations go
// through /train and the poll loop only.
type BatchHandler struct {
	Repo repository.Repository
}

func (h *BatchHandler) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.GET("/batches", h.list)
	v1.GET("/batches/:batchId", h.get)
}

func (h *BatchHandler) list(c *gin.Context) {
	params := repository.ListTrainingBatchesParams{
		Status: c.Query("status"),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	items, err := h.Repo.ListTrainingBatches(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *BatchHandler) get(c *gin.Context) {
	item, err := h.Repo.GetTrainingBatchByBatchID(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "batch not found", nil)
		return
	}
	Ok(c, item, nil)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
