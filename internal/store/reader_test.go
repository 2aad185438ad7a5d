package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"trainworker/internal/models"
	"trainworker/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Only the read-side methods matter here; the rest return zero values.
type stubRepo struct {
	windowIDs    []string
	trajectories map[string][]models.Trajectory
	outcomes     map[string][]models.MarketOutcome
	aggregates   map[string]*repository.WindowAggregate
}

func (s *stubRepo) ListWindowIDs(ctx context.Context, minAgents int, lookback time.Duration) ([]string, error) {
	return s.windowIDs, nil
}
func (s *stubRepo) ListTrajectoriesByWindow(ctx context.Context, windowID string) ([]models.Trajectory, error) {
	return s.trajectories[windowID], nil
}
func (s *stubRepo) GetWindowAggregate(ctx context.Context, windowID string) (*repository.WindowAggregate, error) {
	return s.aggregates[windowID], nil
}
func (s *stubRepo) MarkTrajectoriesUsed(ctx context.Context, trajectoryIDs []string) (int64, error) {
	return int64(len(trajectoryIDs)), nil
}
func (s *stubRepo) SetTrajectoryJudgeReward(ctx context.Context, trajectoryID string, reward float64) error {
	return nil
}
func (s *stubRepo) ListMarketOutcomesByWindow(ctx context.Context, windowID string) ([]models.MarketOutcome, error) {
	return s.outcomes[windowID], nil
}
func (s *stubRepo) GetTrainingBatchByBatchID(ctx context.Context, batchID string) (*models.TrainingBatch, error) {
	return nil, nil
}
func (s *stubRepo) ListTrainingBatches(ctx context.Context, params repository.ListTrainingBatchesParams) ([]models.TrainingBatch, error) {
	return nil, nil
}
func (s *stubRepo) ListPendingTrainingBatches(ctx context.Context, limit int) ([]models.TrainingBatch, error) {
	return nil, nil
}
func (s *stubRepo) ClaimTrainingBatch(ctx context.Context, batchID string, now time.Time) (bool, error) {
	return false, nil
}
func (s *stubRepo) MarkTrainingBatchCompleted(ctx context.Context, batchID string, now time.Time) error {
	return nil
}
func (s *stubRepo) MarkTrainingBatchFailed(ctx context.Context, batchID string, errText string) error {
	return nil
}
func (s *stubRepo) SweepStaleTrainingBatches(ctx context.Context, startedBefore time.Time) (int64, error) {
	return 0, nil
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
	return nil, nil
}
func (s *stubRepo) MarkModelDeployed(ctx context.Context, modelID string, now time.Time) error {
	return nil
}

func trajectoryRow(id, agent, window string, steps string) models.Trajectory {
	return models.Trajectory{
		ID:           id,
		TrajectoryID: id,
		AgentID:      agent,
		WindowID:     window,
		StepsJSON:    datatypes.JSON(steps),
		FinalPnL:     decimal.NewFromFloat(100),
		FinalStatus:  "completed",
	}
}

const twoSteps = `[
	{"stepNumber": 1, "llmCalls": [{"model": "m", "userPrompt": "u", "response": "r"}], "action": {"actionType": "buy"}},
	{"stepNumber": 2, "llmCalls": [], "action": {"actionType": "hold"}}
]`

func TestTrajectoriesByWindow_FiltersByMinActions(t *testing.T) {
	repo := &stubRepo{trajectories: map[string][]models.Trajectory{
		"2025-06-15T14:00": {
			trajectoryRow("t1", "a1", "2025-06-15T14:00", twoSteps),
			trajectoryRow("t2", "a2", "2025-06-15T14:00", `[]`),
		},
	}}
	r := &Reader{Repo: repo}

	got, err := r.TrajectoriesByWindow(context.Background(), "2025-06-15T14:00", 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].TrajectoryID != "t1" {
		t.Fatalf("got=%+v want only t1", got)
	}
	if len(got[0].Steps) != 2 {
		t.Fatalf("steps=%d want=2", len(got[0].Steps))
	}
	if got[0].FinalPnL != 100 {
		t.Fatalf("pnl=%v want=100", got[0].FinalPnL)
	}
}

func TestTrajectoriesByWindow_EmptyStepsIsNotAnError(t *testing.T) {
	repo := &stubRepo{trajectories: map[string][]models.Trajectory{
		"w": {
			trajectoryRow("t1", "a1", "w", `[]`),
			{ID: "t2", TrajectoryID: "t2", AgentID: "a2", WindowID: "w"},
		},
	}}
	r := &Reader{Repo: repo}

	got, err := r.TrajectoriesByWindow(context.Background(), "w", 1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got=%d want=0", len(got))
	}
}

func TestTrajectoriesByWindow_MalformedStepsFails(t *testing.T) {
	repo := &stubRepo{trajectories: map[string][]models.Trajectory{
		"w": {trajectoryRow("t1", "a1", "w", `[{"stepNumber":`)},
	}}
	r := &Reader{Repo: repo}

	if _, err := r.TrajectoriesByWindow(context.Background(), "w", 1); err == nil {
		t.Fatal("want error for malformed steps")
	}
}

func TestMarketOutcomes(t *testing.T) {
	sentiment := "BULLISH"
	repo := &stubRepo{outcomes: map[string][]models.MarketOutcome{
		"2025-06-15T14:00": {{
			WindowID:      "2025-06-15T14:00",
			StockTicker:   "TSLA",
			StartPrice:    decimal.NewFromInt(250),
			EndPrice:      decimal.NewFromInt(260),
			ChangePercent: decimal.NewFromInt(4),
			Sentiment:     &sentiment,
			NewsEvents:    datatypes.JSON(`["earnings beat"]`),
		}},
	}}
	r := &Reader{Repo: repo}

	got, err := r.MarketOutcomes(context.Background(), "2025-06-15T14:00")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got == nil {
		t.Fatal("got nil outcomes")
	}
	if got.WindowEnd.Sub(got.WindowStart) != time.Hour {
		t.Fatalf("window span=%s", got.WindowEnd.Sub(got.WindowStart))
	}
	stock, ok := got.Stocks["TSLA"]
	if !ok {
		t.Fatalf("stocks=%v", got.Stocks)
	}
	if stock.Sentiment != "BULLISH" || len(stock.NewsEvents) != 1 {
		t.Fatalf("stock=%+v", stock)
	}
}

func TestMarketOutcomes_NoRows(t *testing.T) {
	r := &Reader{Repo: &stubRepo{outcomes: map[string][]models.MarketOutcome{}}}
	got, err := r.MarketOutcomes(context.Background(), "2025-06-15T14:00")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != nil {
		t.Fatalf("got=%+v want nil", got)
	}
}

func TestWindowStats_NoRows(t *testing.T) {
	r := &Reader{Repo: &stubRepo{aggregates: map[string]*repository.WindowAggregate{}}}
	got, err := r.WindowStats(context.Background(), "2025-06-15T14:00")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != nil {
		t.Fatalf("got=%+v want nil", got)
	}
}
