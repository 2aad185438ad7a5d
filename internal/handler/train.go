package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trainworker/internal/worker"
)

type trainRequest struct {
	BatchID string `json:"batchId" binding:"required"`
	Source  string `json:"source"`
}

// TrainHandler accepts training triggers from the platform scheduler. The
// response is immediate; processing continues on a context detached from the
// request so a closed connection cannot cancel a running batch.
type TrainHandler struct {
	Worker  *worker.Worker
	Logger  *zap.Logger
	BaseCtx context.Context
}

func (h *TrainHandler) Register(r *gin.Engine) {
	r.POST("/train", h.train)
}

func (h *TrainHandler) train(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "batchId is required", nil)
		return
	}
	req.BatchID = strings.TrimSpace(req.BatchID)
	if req.BatchID == "" {
		Error(c, http.StatusBadRequest, "batchId is required", nil)
		return
	}

	h.Logger.Info("training triggered",
		zap.String("batch_id", req.BatchID),
		zap.String("source", req.Source),
	)

	ctx := context.WithoutCancel(h.BaseCtx)
	go func() {
		if err := h.Worker.ProcessBatch(ctx, req.BatchID); err != nil {
			h.Logger.Error("triggered batch failed",
				zap.String("batch_id", req.BatchID), zap.Error(err))
		}
	}()

	c.JSON(http.StatusOK, gin.H{
		"status":  "started",
		"batchId": req.BatchID,
		"message": "training started in background",
	})
}
