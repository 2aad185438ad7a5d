package trajectory

import (
	"time"
)

// Trajectory is the decoded view of one stored episode: the row's scalar
// fields plus the parsed step sequence. Produced by the store reader;
// immutable downstream.
type Trajectory struct {
	ID           string
	TrajectoryID string
	AgentID      string
	WindowID     string

	StartTime  time.Time
	EndTime    time.Time
	DurationMs int64

	Steps []Step

	TotalReward    float64
	FinalPnL       float64
	FinalBalance   *float64
	TradesExecuted int
	PostsCreated   int
	EpisodeLength  int
	FinalStatus    string
}

type StockOutcome struct {
	Ticker        string
	StartPrice    float64
	EndPrice      float64
	ChangePercent float64
	Sentiment     string
	NewsEvents    []string
}

// MarketOutcomes aggregates the recorded per-ticker ground truth for one
// window. Context only; never mutated by the pipeline.
type MarketOutcomes struct {
	WindowID    string
	WindowStart time.Time
	WindowEnd   time.Time
	Stocks      map[string]StockOutcome
}

type WindowStatistics struct {
	WindowID        string
	AgentCount      int
	TrajectoryCount int
	TotalActions    int
	AvgPnL          float64
	MinPnL          float64
	MaxPnL          float64
	StartTime       time.Time
	EndTime         time.Time
}

type BatchSummary struct {
	Windows                  int
	TotalTrajectories        int
	AvgTrajectoriesPerWindow float64
	ScoreMin                 float64
	ScoreMax                 float64
	ScoreAvg                 float64
	PnLMin                   float64
	PnLMax                   float64
	PnLAvg                   float64
}
