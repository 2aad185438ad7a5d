package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"trainworker/internal/models"
	"trainworker/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository
// covering the batch/model paths the worker exercises.
type stubRepo struct {
	batches        map[string]*models.TrainingBatch
	pending        []models.TrainingBatch
	claimResult    bool
	claimCalls     int
	deployable     *models.TrainedModel
	deployedModels []string
	sweptCount     int64
}

func (s *stubRepo) ListWindowIDs(ctx context.Context, minAgents int, lookback time.Duration) ([]string, error) {
	return nil, nil
}
func (s *stubRepo) ListTrajectoriesByWindow(ctx context.Context, windowID string) ([]models.Trajectory, error) {
	return nil, nil
}
func (s *stubRepo) GetWindowAggregate(ctx context.Context, windowID string) (*repository.WindowAggregate, error) {
	return nil, nil
}
func (s *stubRepo) MarkTrajectoriesUsed(ctx context.Context, trajectoryIDs []string) (int64, error) {
	return 0, nil
}
func (s *stubRepo) SetTrajectoryJudgeReward(ctx context.Context, trajectoryID string, reward float64) error {
	return nil
}
func (s *stubRepo) ListMarketOutcomesByWindow(ctx context.Context, windowID string) ([]models.MarketOutcome, error) {
	return nil, nil
}
func (s *stubRepo) GetTrainingBatchByBatchID(ctx context.Context, batchID string) (*models.TrainingBatch, error) {
	return s.batches[batchID], nil
}
func (s *stubRepo) ListTrainingBatches(ctx context.Context, params repository.ListTrainingBatchesParams) ([]models.TrainingBatch, error) {
	return nil, nil
}
func (s *stubRepo) ListPendingTrainingBatches(ctx context.Context, limit int) ([]models.TrainingBatch, error) {
	return s.pending, nil
}
func (s *stubRepo) ClaimTrainingBatch(ctx context.Context, batchID string, now time.Time) (bool, error) {
	s.claimCalls++
	return s.claimResult, nil
}
func (s *stubRepo) MarkTrainingBatchCompleted(ctx context.Context, batchID string, now time.Time) error {
	return nil
}
func (s *stubRepo) MarkTrainingBatchFailed(ctx context.Context, batchID string, errText string) error {
	return nil
}
func (s *stubRepo) SweepStaleTrainingBatches(ctx context.Context, startedBefore time.Time) (int64, error) {
	return s.sweptCount, nil
}
func (s *stubRepo) UpsertTrainedModel(ctx context.Context, item *models.TrainedModel) error {
	return nil
}
func (s *stubRepo) GetTrainedModelByModelID(ctx context.Context, modelID string) (*models.TrainedModel, error) {
	return nil, nil
}
func (s *stubRepo) ListTrainedModels(ctx context.Context, limit int, offset int) ([]models.TrainedModel, error) {
	return nil, nil
}
func (s *stubRepo) NextDeployableModel(ctx context.Context) (*models.TrainedModel, error) {
	return s.deployable, nil
}
func (s *stubRepo) MarkModelDeployed(ctx context.Context, modelID string, now time.Time) error {
	s.deployedModels = append(s.deployedModels, modelID)
	return nil
}

// stubTrainer records which training path a claimed batch was routed to.
type stubTrainer struct {
	windows []string
	batches []string
}

func (s *stubTrainer) TrainWindow(ctx context.Context, windowID string, batchID string, modelVersion string) error {
	s.windows = append(s.windows, windowID)
	return nil
}

func (s *stubTrainer) TrainBatch(ctx context.Context, batch *models.TrainingBatch) error {
	s.batches = append(s.batches, batch.BatchID)
	return nil
}

func newWorker(repo *stubRepo) *Worker {
	return &Worker{
		Repo:       repo,
		Logger:     zap.NewNop(),
		BatchLimit: 5,
	}
}

func TestProcessBatch_MissingBatch(t *testing.T) {
	repo := &stubRepo{batches: map[string]*models.TrainingBatch{}}
	w := newWorker(repo)

	if err := w.ProcessBatch(context.Background(), "nope"); err != nil {
		t.Fatalf("err=%v want nil for missing batch", err)
	}
	if repo.claimCalls != 0 {
		t.Fatalf("claim attempted for missing batch")
	}
}

func TestProcessBatch_SkipsNonPending(t *testing.T) {
	for _, status := range []string{
		models.BatchStatusTraining,
		models.BatchStatusCompleted,
		models.BatchStatusFailed,
	} {
		repo := &stubRepo{batches: map[string]*models.TrainingBatch{
			"b1": {BatchID: "b1", Status: status},
		}}
		w := newWorker(repo)

		if err := w.ProcessBatch(context.Background(), "b1"); err != nil {
			t.Fatalf("status=%s err=%v want nil", status, err)
		}
		if repo.claimCalls != 0 {
			t.Fatalf("status=%s claim attempted, want skip", status)
		}
	}
}

func TestProcessBatch_ClaimContested(t *testing.T) {
	repo := &stubRepo{
		batches: map[string]*models.TrainingBatch{
			"b1": {BatchID: "b1", Status: models.BatchStatusPending},
		},
		claimResult: false,
	}
	w := newWorker(repo)

	// Trainer is nil; losing the claim must return before reaching it.
	if err := w.ProcessBatch(context.Background(), "b1"); err != nil {
		t.Fatalf("err=%v want nil on contested claim", err)
	}
	if repo.claimCalls != 1 {
		t.Fatalf("claim calls=%d want=1", repo.claimCalls)
	}
}

func TestProcessBatch_TrainsTheScenarioWindow(t *testing.T) {
	repo := &stubRepo{
		batches: map[string]*models.TrainingBatch{
			"b1": {
				BatchID:      "b1",
				ScenarioID:   "2025-06-15T10:00",
				ModelVersion: "babylon-v4",
				Status:       models.BatchStatusPending,
			},
		},
		claimResult: true,
	}
	w := newWorker(repo)
	tr := &stubTrainer{}
	w.Trainer = tr

	if err := w.ProcessBatch(context.Background(), "b1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(tr.windows) != 1 || tr.windows[0] != "2025-06-15T10:00" {
		t.Fatalf("windows=%v want [2025-06-15T10:00]", tr.windows)
	}
	if len(tr.batches) != 0 {
		t.Fatalf("batch-wide path taken for a targeted batch: %v", tr.batches)
	}
}

func TestProcessBatch_UntargetedBatchTrainsAllWindows(t *testing.T) {
	repo := &stubRepo{
		batches: map[string]*models.TrainingBatch{
			"b1": {BatchID: "b1", ModelVersion: "babylon-v4", Status: models.BatchStatusPending},
		},
		claimResult: true,
	}
	w := newWorker(repo)
	tr := &stubTrainer{}
	w.Trainer = tr

	if err := w.ProcessBatch(context.Background(), "b1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(tr.batches) != 1 || tr.batches[0] != "b1" {
		t.Fatalf("batches=%v want [b1]", tr.batches)
	}
	if len(tr.windows) != 0 {
		t.Fatalf("window path taken without a scenario id: %v", tr.windows)
	}
}

func TestRunOnce_AutoDeploysReadyModel(t *testing.T) {
	repo := &stubRepo{
		deployable: &models.TrainedModel{ModelID: "babylon-v4", Status: models.ModelStatusReady},
	}
	w := newWorker(repo)
	w.AutoDeploy = true

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(repo.deployedModels) != 1 || repo.deployedModels[0] != "babylon-v4" {
		t.Fatalf("deployed=%v want [babylon-v4]", repo.deployedModels)
	}
}

func TestRunOnce_NoDeployWhenDisabled(t *testing.T) {
	repo := &stubRepo{
		deployable: &models.TrainedModel{ModelID: "babylon-v4", Status: models.ModelStatusReady},
	}
	w := newWorker(repo)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(repo.deployedModels) != 0 {
		t.Fatalf("deployed=%v want none", repo.deployedModels)
	}
}

func TestSweepStale(t *testing.T) {
	repo := &stubRepo{sweptCount: 2}
	w := newWorker(repo)
	w.StaleAfter = time.Hour

	if err := w.SweepStale(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	w.StaleAfter = 0
	if err := w.SweepStale(context.Background()); err != nil {
		t.Fatalf("sweep disabled: %v", err)
	}
}
