package models

import (
	"time"
)

const (
	ModelStatusReady    = "ready"
	ModelStatusDeployed = "deployed"
)

// TrainedModel records one completed training run. Upserts are keyed on
// ModelID so re-running a batch updates the row in place.
type TrainedModel struct {
	ID            string `gorm:"column:id;primaryKey;type:text"`
	ModelID       string `gorm:"column:modelId;type:text;uniqueIndex;not null"`
	Version       string `gorm:"column:version;type:text;not null"`
	BaseModel     string `gorm:"column:baseModel;type:text;not null"`
	TrainingBatch string `gorm:"column:trainingBatch;type:text;index;not null"`

	// Opaque inference identifier from the training backend
	// ("<inference_name>:step<N>"); stored, never parsed.
	StoragePath string `gorm:"column:storagePath;type:text;not null"`

	Status    string  `gorm:"column:status;type:varchar(20);not null;default:'ready';index"`
	AvgReward float64 `gorm:"column:avgReward;not null"`

	DeployedAt *time.Time `gorm:"column:deployedAt;type:timestamptz"`
	CreatedAt  time.Time  `gorm:"column:createdAt;type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updatedAt;type:timestamptz;autoUpdateTime"`
}

func (TrainedModel) TableName() string {
	return "trained_models"
}
