package db

import (
	"tradeanalytics/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Account{},
		&models.ExecutionRecord{},
		&models.LedgerRecord{},
		&models.RiskLimit{},
		&models.SystemSetting{},
		&models.AnalysisDocument{},
		&models.UserAnalysisRecord{},
	)
}
