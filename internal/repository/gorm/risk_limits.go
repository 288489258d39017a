package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeanalytics/internal/models"
)

// GetRiskLimit returns nil, nil when the superadmin keeps the defaults.
func (s *Store) GetRiskLimit(ctx context.Context, superadminID string) (*models.RiskLimit, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	superadminID = strings.TrimSpace(superadminID)
	if superadminID == "" {
		return nil, nil
	}
	var item models.RiskLimit
	err := s.db.WithContext(ctx).Model(&models.RiskLimit{}).Where("superadmin_id = ?", superadminID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertRiskLimit(ctx context.Context, item *models.RiskLimit) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.SuperadminID = strings.TrimSpace(item.SuperadminID)
	if item.SuperadminID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "superadmin_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"max_trades",
			"average_trading_volume",
			"win_rate_percentage",
			"negative_balance",
			"updated_at",
		}),
	}).Create(item).Error
}
