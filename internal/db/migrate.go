package db

import (
	"trainworker/internal/models"
)

// AutoMigrate creates the pipeline tables. The production schema is owned by
// the agent platform's migration tool; this exists for local and test setups
// and is gated behind db.auto_migrate.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Trajectory{},
		&models.TrainingBatch{},
		&models.TrainedModel{},
		&models.MarketOutcome{},
	)
}
