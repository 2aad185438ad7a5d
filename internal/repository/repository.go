package repository

import (
	"context"
	"time"

	"trainworker/internal/models"
)

// WindowAggregate is the per-window rollup used for eligibility checks and
// the readiness API.
type WindowAggregate struct {
	WindowID        string    `gorm:"column:window_id"`
	AgentCount      int       `gorm:"column:agent_count"`
	TrajectoryCount int       `gorm:"column:trajectory_count"`
	TotalActions    int       `gorm:"column:total_actions"`
	AvgPnL          float64   `gorm:"column:avg_pnl"`
	MinPnL          float64   `gorm:"column:min_pnl"`
	MaxPnL          float64   `gorm:"column:max_pnl"`
	StartTime       time.Time `gorm:"column:start_time"`
	EndTime         time.Time `gorm:"column:end_time"`
}

type ListTrainingBatchesParams struct {
	Status string
	Limit  int
	Offset int
}

// Repository is all database access for the training pipeline. One gorm
// implementation in production; tests provide in-memory stubs.
type Repository interface {
	// Trajectories (read side; usedInTraining/aiJudgeReward are the only writes).
	ListWindowIDs(ctx context.Context, minAgents int, lookback time.Duration) ([]string, error)
	ListTrajectoriesByWindow(ctx context.Context, windowID string) ([]models.Trajectory, error)
	GetWindowAggregate(ctx context.Context, windowID string) (*WindowAggregate, error)
	MarkTrajectoriesUsed(ctx context.Context, trajectoryIDs []string) (int64, error)
	SetTrajectoryJudgeReward(ctx context.Context, trajectoryID string, reward float64) error

	// Market outcomes (read only).
	ListMarketOutcomesByWindow(ctx context.Context, windowID string) ([]models.MarketOutcome, error)

	// Training batches: status transitions are the only mutation path.
	GetTrainingBatchByBatchID(ctx context.Context, batchID string) (*models.TrainingBatch, error)
	ListTrainingBatches(ctx context.Context, params ListTrainingBatchesParams) ([]models.TrainingBatch, error)
	ListPendingTrainingBatches(ctx context.Context, limit int) ([]models.TrainingBatch, error)
	ClaimTrainingBatch(ctx context.Context, batchID string, now time.Time) (bool, error)
	MarkTrainingBatchCompleted(ctx context.Context, batchID string, now time.Time) error
	MarkTrainingBatchFailed(ctx context.Context, batchID string, errText string) error
	SweepStaleTrainingBatches(ctx context.Context, startedBefore time.Time) (int64, error)

	// Trained models.
	UpsertTrainedModel(ctx context.Context, item *models.TrainedModel) error
	GetTrainedModelByModelID(ctx context.Context, modelID string) (*models.TrainedModel, error)
	ListTrainedModels(ctx context.Context, limit int, offset int) ([]models.TrainedModel, error)
	NextDeployableModel(ctx context.Context) (*models.TrainedModel, error)
	MarkModelDeployed(ctx context.Context, modelID string, now time.Time) error
}
