package models

import (
	"time"
)

const (
	BatchStatusPending   = "pending"
	BatchStatusTraining  = "training"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// TrainingBatch is one persisted unit of training work. Rows are created by
// the platform's scheduler; this service owns the status transitions
// (pending → training → completed|failed) and nothing else.
type TrainingBatch struct {
	ID           string  `gorm:"column:id;primaryKey;type:text"`
	BatchID      string  `gorm:"column:batchId;type:text;uniqueIndex;not null"`
	ScenarioID   string  `gorm:"column:scenarioId;type:text;index;not null"`
	ModelVersion string  `gorm:"column:modelVersion;type:text;not null"`
	Status       string  `gorm:"column:status;type:varchar(20);not null;default:'pending';index"`
	Error        *string `gorm:"column:error;type:text"`

	StartedAt   *time.Time `gorm:"column:startedAt;type:timestamptz"`
	CompletedAt *time.Time `gorm:"column:completedAt;type:timestamptz"`
	CreatedAt   time.Time  `gorm:"column:createdAt;type:timestamptz;autoCreateTime;index"`
}

func (TrainingBatch) TableName() string {
	return "training_batches"
}
