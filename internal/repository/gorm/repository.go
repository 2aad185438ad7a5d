package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trainworker/internal/models"
	"trainworker/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var ErrNotConnected = errors.New("repository: database handle is nil")

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotConnected
	}
	return nil
}

// --- trajectories -----------------------------------------------------------

func (s *Store) ListWindowIDs(ctx context.Context, minAgents int, lookback time.Duration) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if minAgents < 1 {
		minAgents = 1
	}
	cutoff := time.Now().UTC().Add(-lookback)
	var ids []string
	err := s.db.WithContext(ctx).Raw(`
		SELECT "windowId"
		FROM trajectories
		WHERE "windowId" IS NOT NULL
		  AND "windowId" <> ''
		  AND "createdAt" > ?
		GROUP BY "windowId"
		HAVING COUNT(DISTINCT "agentId") >= ?
		ORDER BY "windowId" DESC`,
		cutoff, minAgents,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ListTrajectoriesByWindow(ctx context.Context, windowID string) ([]models.Trajectory, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var items []models.Trajectory
	err := s.db.WithContext(ctx).
		Where(`"windowId" = ?`, windowID).
		Order(`"createdAt" asc`).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetWindowAggregate(ctx context.Context, windowID string) (*repository.WindowAggregate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var agg repository.WindowAggregate
	res := s.db.WithContext(ctx).Raw(`
		SELECT
			"windowId"                                   AS window_id,
			COUNT(DISTINCT "agentId")                    AS agent_count,
			COUNT(*)                                     AS trajectory_count,
			COALESCE(SUM("episodeLength"), 0)            AS total_actions,
			COALESCE(AVG("finalPnl"), 0)                 AS avg_pnl,
			COALESCE(MIN("finalPnl"), 0)                 AS min_pnl,
			COALESCE(MAX("finalPnl"), 0)                 AS max_pnl,
			MIN("startTime")                             AS start_time,
			MAX("endTime")                               AS end_time
		FROM trajectories
		WHERE "windowId" = ?
		GROUP BY "windowId"`,
		windowID,
	).Scan(&agg)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || agg.WindowID == "" {
		return nil, nil
	}
	return &agg, nil
}

func (s *Store) MarkTrajectoriesUsed(ctx context.Context, trajectoryIDs []string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(trajectoryIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Trajectory{}).
		Where(`"trajectoryId" IN ?`, trajectoryIDs).
		Update("usedInTraining", true)
	return res.RowsAffected, res.Error
}

func (s *Store) SetTrajectoryJudgeReward(ctx context.Context, trajectoryID string, reward float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Trajectory{}).
		Where(`"trajectoryId" = ?`, trajectoryID).
		Update("aiJudgeReward", reward).Error
}

// --- market outcomes --------------------------------------------------------

func (s *Store) ListMarketOutcomesByWindow(ctx context.Context, windowID string) ([]models.MarketOutcome, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var items []models.MarketOutcome
	err := s.db.WithContext(ctx).
		Where("window_id = ? AND stock_ticker IS NOT NULL AND stock_ticker <> ''", windowID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- training batches -------------------------------------------------------

func (s *Store) GetTrainingBatchByBatchID(ctx context.Context, batchID string) (*models.TrainingBatch, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item models.TrainingBatch
	err := s.db.WithContext(ctx).Where(`"batchId" = ?`, batchID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTrainingBatches(ctx context.Context, params repository.ListTrainingBatchesParams) ([]models.TrainingBatch, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&models.TrainingBatch{})
	if status := strings.TrimSpace(params.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var items []models.TrainingBatch
	err := query.Order(`"createdAt" desc`).Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPendingTrainingBatches(ctx context.Context, limit int) ([]models.TrainingBatch, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	var items []models.TrainingBatch
	err := s.db.WithContext(ctx).
		Where("status = ?", models.BatchStatusPending).
		Order(`"createdAt" asc`).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ClaimTrainingBatch atomically moves a batch from pending to training.
// Returns false when another worker already holds the batch (or it is in a
// terminal state). The rows-affected check is the dispatch guard shared by
// the HTTP trigger and the poll loop.
func (s *Store) ClaimTrainingBatch(ctx context.Context, batchID string, now time.Time) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(&models.TrainingBatch{}).
		Where(`"batchId" = ? AND status = ?`, batchID, models.BatchStatusPending).
		Updates(map[string]any{
			"status":    models.BatchStatusTraining,
			"startedAt": now,
			"error":     nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) MarkTrainingBatchCompleted(ctx context.Context, batchID string, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.TrainingBatch{}).
		Where(`"batchId" = ?`, batchID).
		Updates(map[string]any{
			"status":      models.BatchStatusCompleted,
			"completedAt": now,
		}).Error
}

func (s *Store) MarkTrainingBatchFailed(ctx context.Context, batchID string, errText string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.TrainingBatch{}).
		Where(`"batchId" = ?`, batchID).
		Updates(map[string]any{
			"status": models.BatchStatusFailed,
			"error":  errText,
		}).Error
}

func (s *Store) SweepStaleTrainingBatches(ctx context.Context, startedBefore time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.TrainingBatch{}).
		Where(`status = ? AND "startedAt" IS NOT NULL AND "startedAt" < ?`, models.BatchStatusTraining, startedBefore).
		Updates(map[string]any{
			"status": models.BatchStatusFailed,
			"error":  "training exceeded stale deadline",
		})
	return res.RowsAffected, res.Error
}

// --- trained models ---------------------------------------------------------

func (s *Store) UpsertTrainedModel(ctx context.Context, item *models.TrainedModel) error {
	if err := s.ready(); err != nil {
		return err
	}
	if item == nil || strings.TrimSpace(item.ModelID) == "" {
		return errors.New("trained model requires a model id")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "modelId"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"version",
			"baseModel",
			"trainingBatch",
			"storagePath",
			"status",
			"avgReward",
			"updatedAt",
		}),
	}).Create(item).Error
}

func (s *Store) GetTrainedModelByModelID(ctx context.Context, modelID string) (*models.TrainedModel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item models.TrainedModel
	err := s.db.WithContext(ctx).Where(`"modelId" = ?`, modelID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTrainedModels(ctx context.Context, limit int, offset int) ([]models.TrainedModel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var items []models.TrainedModel
	err := s.db.WithContext(ctx).
		Order(`"createdAt" desc`).
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// NextDeployableModel returns the newest ready model whose batch completed
// and that has not been deployed yet.
func (s *Store) NextDeployableModel(ctx context.Context) (*models.TrainedModel, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var item models.TrainedModel
	res := s.db.WithContext(ctx).Raw(`
		SELECT m.*
		FROM trained_models m
		JOIN training_batches b ON b."batchId" = m."trainingBatch"
		WHERE b.status = ?
		  AND m.status = ?
		  AND m."deployedAt" IS NULL
		ORDER BY b."completedAt" DESC NULLS LAST
		LIMIT 1`,
		models.BatchStatusCompleted, models.ModelStatusReady,
	).Scan(&item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || item.ModelID == "" {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) MarkModelDeployed(ctx context.Context, modelID string, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.TrainedModel{}).
		Where(`"modelId" = ?`, modelID).
		Updates(map[string]any{
			"status":     models.ModelStatusDeployed,
			"deployedAt": now,
		}).Error
}
