package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trainworker/internal/models"
	"trainworker/internal/repository"
)

// BatchTrainer runs a claimed batch to completion.
type BatchTrainer interface {
	TrainWindow(ctx context.Context, windowID string, batchID string, modelVersion string) error
	TrainBatch(ctx context.Context, batch *models.TrainingBatch) error
}

// Worker drains pending training batches. One instance per process; the
// atomic claim keeps concurrent instances (or the HTTP trigger racing the
// poll loop) from double-training a batch.
type Worker struct {
	Repo       repository.Repository
	Trainer    BatchTrainer
	Logger     *zap.Logger
	BatchLimit int
	AutoDeploy bool
	StaleAfter time.Duration
}

// ProcessBatch claims and trains one batch. The batch's scenario id names
// the target window; a batch without one trains across all eligible windows.
// A missing batch or a batch in any state but pending is logged and skipped;
// losing the claim race is a silent return.
func (w *Worker) ProcessBatch(ctx context.Context, batchID string) error {
	batch, err := w.Repo.GetTrainingBatchByBatchID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		w.Logger.Error("batch not found", zap.String("batch_id", batchID))
		return nil
	}
	if batch.Status != models.BatchStatusPending {
		w.Logger.Warn("batch not pending, skipping",
			zap.String("batch_id", batchID),
			zap.String("status", batch.Status),
		)
		return nil
	}

	claimed, err := w.Repo.ClaimTrainingBatch(ctx, batchID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !claimed {
		w.Logger.Debug("batch claimed elsewhere", zap.String("batch_id", batchID))
		return nil
	}

	w.Logger.Info("batch claimed",
		zap.String("batch_id", batchID),
		zap.String("model_version", batch.ModelVersion),
		zap.String("scenario_id", batch.ScenarioID),
	)
	if batch.ScenarioID != "" {
		return w.Trainer.TrainWindow(ctx, batch.ScenarioID, batch.BatchID, batch.ModelVersion)
	}
	return w.Trainer.TrainBatch(ctx, batch)
}

// RunOnce is one poll tick: process pending batches oldest first, then
// deploy the newest ready model if enabled. Per-batch failures do not stop
// the tick.
func (w *Worker) RunOnce(ctx context.Context) error {
	batches, err := w.Repo.ListPendingTrainingBatches(ctx, w.BatchLimit)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.ProcessBatch(ctx, batch.BatchID); err != nil {
			w.Logger.Error("batch processing failed",
				zap.String("batch_id", batch.BatchID), zap.Error(err))
		}
	}

	if w.AutoDeploy {
		if err := w.deployNext(ctx); err != nil {
			w.Logger.Error("auto deploy failed", zap.Error(err))
		}
	}
	return nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Logger.Info("worker started", zap.Duration("poll_interval", interval))
	for {
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.Logger.Error("poll tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.Logger.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepStale fails batches stuck in training longer than StaleAfter. A crash
// mid-training would otherwise pin the batch in a non-terminal state forever.
func (w *Worker) SweepStale(ctx context.Context) error {
	if w.StaleAfter <= 0 {
		return nil
	}
	n, err := w.Repo.SweepStaleTrainingBatches(ctx, time.Now().UTC().Add(-w.StaleAfter))
	if err != nil {
		return err
	}
	if n > 0 {
		w.Logger.Warn("stale training batches failed", zap.Int64("count", n))
	}
	return nil
}

func (w *Worker) deployNext(ctx context.Context) error {
	model, err := w.Repo.NextDeployableModel(ctx)
	if err != nil {
		return err
	}
	if model == nil {
		return nil
	}
	if err := w.Repo.MarkModelDeployed(ctx, model.ModelID, time.Now().UTC()); err != nil {
		return err
	}
	w.Logger.Info("model deployed",
		zap.String("model_id", model.ModelID),
		zap.String("storage_path", model.StoragePath),
	)
	return nil
}
