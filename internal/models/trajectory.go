package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Trajectory is one agent's recorded episode for one time window. Rows are
// written by the agent platform (camelCase columns come from its migration
// tool); the pipeline only ever flips UsedInTraining and AIJudgeReward.
type Trajectory struct {
	ID           string `gorm:"column:id;primaryKey;type:text"`
	TrajectoryID string `gorm:"column:trajectoryId;type:text;uniqueIndex;not null"`
	AgentID      string `gorm:"column:agentId;type:text;index;not null"`
	WindowID     string `gorm:"column:windowId;type:text;index"`
	ScenarioID   *string `gorm:"column:scenarioId;type:text;index"`
	EpisodeID    *string `gorm:"column:episodeId;type:text"`

	StartTime  time.Time `gorm:"column:startTime;type:timestamptz;not null"`
	EndTime    time.Time `gorm:"column:endTime;type:timestamptz;not null"`
	DurationMs int64     `gorm:"column:durationMs;not null"`

	StepsJSON datatypes.JSON `gorm:"column:stepsJson;type:jsonb"`

	TotalReward  float64          `gorm:"column:totalReward;not null"`
	FinalPnL     decimal.Decimal  `gorm:"column:finalPnl;type:numeric(30,10);not null"`
	FinalBalance *decimal.Decimal `gorm:"column:finalBalance;type:numeric(30,10)"`

	TradesExecuted *int   `gorm:"column:tradesExecuted"`
	PostsCreated   *int   `gorm:"column:postsCreated"`
	EpisodeLength  int    `gorm:"column:episodeLength;not null"`
	FinalStatus    string `gorm:"column:finalStatus;type:varchar(50);not null"`

	IsTrainingData bool     `gorm:"column:isTrainingData;not null;default:false"`
	UsedInTraining bool     `gorm:"column:usedInTraining;not null;default:false"`
	AIJudgeReward  *float64 `gorm:"column:aiJudgeReward"`

	CreatedAt time.Time `gorm:"column:createdAt;type:timestamptz;autoCreateTime;index"`
}

func (Trajectory) TableName() string {
	return "trajectories"
}
