package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trainworker/internal/convert"
	"trainworker/internal/models"
	"trainworker/internal/pipeline"
	"trainworker/internal/repository"
	"trainworker/internal/trainclient"
)

// Options carry the per-run knobs the trainer reads from config.
type Options struct {
	MinAgents    int
	MinActions   int
	Lookback     time.Duration
	MaxWindows   int
	MaxPerWindow int
	LearningRate float64
	BaseModel    string
}

// Trainer runs one training batch end to end: collect, convert, score,
// submit, persist. It assumes the batch has already been claimed; on any
// failure it marks the batch failed with the error text and re-raises.
type Trainer struct {
	Preparer *pipeline.Preparer
	Backend  *trainclient.Client
	Repo     repository.Repository
	Logger   *zap.Logger
	Opts     Options
}

// TrainBatch prepares scored groups across all eligible windows and performs
// one training update for the batch's model version.
func (t *Trainer) TrainBatch(ctx context.Context, batch *models.TrainingBatch) error {
	groups, err := t.Preparer.PrepareTrainingBatch(ctx,
		t.Opts.MinAgents, t.Opts.Lookback, t.Opts.MaxWindows, t.Opts.MinActions, t.Opts.MaxPerWindow)
	if err != nil {
		return t.fail(ctx, batch.BatchID, err)
	}
	return t.train(ctx, batch.BatchID, batch.ModelVersion, groups)
}

// TrainWindow trains on a single window. Used by the HTTP trigger when the
// request pins a window; the poll loop goes through TrainBatch.
func (t *Trainer) TrainWindow(ctx context.Context, windowID string, batchID string, modelVersion string) error {
	group, err := t.Preparer.PrepareAndScoreWindow(ctx, windowID, t.Opts.MinActions, t.Opts.MaxPerWindow)
	if err != nil {
		return t.fail(ctx, batchID, err)
	}
	if agents := distinctAgents(group); agents < t.Opts.MinAgents {
		err := fmt.Errorf("window %s has %d distinct agents, need %d", windowID, agents, t.Opts.MinAgents)
		return t.fail(ctx, batchID, err)
	}
	return t.train(ctx, batchID, modelVersion, []*convert.Group{group})
}

func (t *Trainer) train(ctx context.Context, batchID string, modelVersion string, groups []*convert.Group) error {
	summary, err := pipeline.Summary(groups)
	if err != nil {
		return t.fail(ctx, batchID, err)
	}
	t.Logger.Info("batch prepared",
		zap.String("batch_id", batchID),
		zap.Int("windows", summary.Windows),
		zap.Int("trajectories", summary.TotalTrajectories),
		zap.Float64("score_min", summary.ScoreMin),
		zap.Float64("score_max", summary.ScoreMax),
		zap.Float64("score_avg", summary.ScoreAvg),
		zap.Float64("pnl_avg", summary.PnLAvg),
	)

	inferenceName, err := t.Backend.RegisterModel(ctx, modelVersion)
	if err != nil {
		return t.fail(ctx, batchID, err)
	}
	if err := t.Backend.Train(ctx, inferenceName, groups, t.Opts.LearningRate); err != nil {
		return t.fail(ctx, batchID, err)
	}
	step, err := t.Backend.Step(ctx, inferenceName)
	if err != nil {
		return t.fail(ctx, batchID, err)
	}

	model := &models.TrainedModel{
		ID:            uuid.NewString(),
		ModelID:       modelVersion,
		Version:       modelVersion,
		BaseModel:     t.Opts.BaseModel,
		TrainingBatch: batchID,
		StoragePath:   fmt.Sprintf("%s:step%d", inferenceName, step),
		Status:        models.ModelStatusReady,
		AvgReward:     summary.ScoreAvg,
	}
	if err := t.Repo.UpsertTrainedModel(ctx, model); err != nil {
		return t.fail(ctx, batchID, err)
	}

	if err := t.Repo.MarkTrainingBatchCompleted(ctx, batchID, time.Now().UTC()); err != nil {
		return t.fail(ctx, batchID, err)
	}

	t.recordTrajectoryResults(ctx, groups)

	t.Logger.Info("batch completed",
		zap.String("batch_id", batchID),
		zap.String("model_id", model.ModelID),
		zap.String("storage_path", model.StoragePath),
		zap.Float64("avg_reward", model.AvgReward),
	)
	return nil
}

// recordTrajectoryResults flags consumed trajectories and persists their
// judge rewards. Failures here are logged, not fatal: the model is already
// trained and the batch completed.
func (t *Trainer) recordTrajectoryResults(ctx context.Context, groups []*convert.Group) {
	var ids []string
	for _, group := range groups {
		for _, ex := range group.Examples {
			id := ex.Metadata["trajectory_id"]
			if id == "" {
				continue
			}
			ids = append(ids, id)
			if err := t.Repo.SetTrajectoryJudgeReward(ctx, id, ex.Reward); err != nil {
				t.Logger.Warn("judge reward not persisted", zap.String("trajectory_id", id), zap.Error(err))
			}
		}
	}
	if _, err := t.Repo.MarkTrajectoriesUsed(ctx, ids); err != nil {
		t.Logger.Warn("trajectories not flagged as used", zap.Int("count", len(ids)), zap.Error(err))
	}
}

func (t *Trainer) fail(ctx context.Context, batchID string, cause error) error {
	t.Logger.Error("batch failed", zap.String("batch_id", batchID), zap.Error(cause))
	if err := t.Repo.MarkTrainingBatchFailed(ctx, batchID, cause.Error()); err != nil {
		t.Logger.Error("batch failure not recorded", zap.String("batch_id", batchID), zap.Error(err))
	}
	return cause
}

func distinctAgents(group *convert.Group) int {
	agents := make(map[string]struct{}, len(group.Examples))
	for _, ex := range group.Examples {
		agents[ex.Metadata["agent_id"]] = struct{}{}
	}
	return len(agents)
}
