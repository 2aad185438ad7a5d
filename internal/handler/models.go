package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trainworker/internal/repository"
)

type ModelHandler struct {
	Repo repository.Repository
}

func (h *ModelHandler) Register(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.GET("/models", h.list)
}

func (h *ModelHandler) list(c *gin.Context) {
	items, err := h.Repo.ListTrainedModels(c.Request.Context(), intQuery(c, "limit", 50), intQuery(c, "offset", 0))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}
