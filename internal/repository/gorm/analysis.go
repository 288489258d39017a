package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

var analysisDocumentColumns = []string{
	"start_date_anchor",
	"window_start",
	"window_end",
	"daily_window_start",
	"daily_window_end",
	"timezone",
	"total_trades",
	"win_trades",
	"win_percent",
	"total_volume",
	"total_deposits",
	"total_withdrawals",
	"net_balance",
	"tx_count",
	"avg_risk_score",
	"avg_risk_status",
	"total_users",
	"active_users",
	"wash_trade_user_ids",
	"weekly",
	"daily",
	"generated_at",
	"updated_at",
}

var userSnapshotColumns = []string{
	"master_id",
	"name",
	"email",
	"status",
	"total_trades",
	"win_trades",
	"win_percent",
	"total_volume",
	"balance",
	"avg_holding_minutes",
	"risk_score_user",
	"risk_status",
	"wash_trade",
	"window_start",
	"window_end",
	"timezone",
	"generated_at",
	"updated_at",
}

func (s *Store) UpsertAnalysisDocument(ctx context.Context, doc *models.AnalysisDocument) error {
	if s == nil || s.db == nil || doc == nil {
		return nil
	}
	doc.Scope = strings.TrimSpace(doc.Scope)
	doc.OwnerID = strings.TrimSpace(doc.OwnerID)
	if doc.Scope == "" || doc.OwnerID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns(analysisDocumentColumns),
	}).Create(doc).Error
}

func (s *Store) GetAnalysisDocument(ctx context.Context, key models.AnalysisKey) (*models.AnalysisDocument, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var doc models.AnalysisDocument
	err := s.db.WithContext(ctx).
		Model(&models.AnalysisDocument{}).
		Where("scope = ? AND owner_id = ?", key.Scope, key.OwnerID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) GetAnchor(ctx context.Context, key models.AnalysisKey) (*time.Time, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var doc models.AnalysisDocument
	err := s.db.WithContext(ctx).
		Model(&models.AnalysisDocument{}).
		Select("start_date_anchor").
		Where("scope = ? AND owner_id = ?", key.Scope, key.OwnerID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.StartDateAnchor, nil
}

func (s *Store) SetAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	anchor = anchor.UTC()
	doc := &models.AnalysisDocument{
		Scope:           key.Scope,
		OwnerID:         key.OwnerID,
		StartDateAnchor: &anchor,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_date_anchor", "updated_at"}),
	}).Create(doc).Error
}

func (s *Store) UpdateAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.AnalysisDocument{}).
		Where("scope = ? AND owner_id = ?", key.Scope, key.OwnerID).
		Updates(map[string]any{
			"start_date_anchor": anchor.UTC(),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) UpsertUserSnapshot(ctx context.Context, rec *models.UserAnalysisRecord) error {
	if s == nil || s.db == nil || rec == nil {
		return nil
	}
	rec.SuperadminID = strings.TrimSpace(rec.SuperadminID)
	rec.UserID = strings.TrimSpace(rec.UserID)
	if rec.SuperadminID == "" || rec.UserID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "superadmin_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(userSnapshotColumns),
	}).Create(rec).Error
}

// ListTopRiskUsers ranks snapshots by risk score, then volume, win rate and
// recency.
func (s *Store) ListTopRiskUsers(ctx context.Context, params repository.TopRiskUsersParams) ([]models.UserAnalysisRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.UserAnalysisRecord{})
	if params.SuperadminID != nil && strings.TrimSpace(*params.SuperadminID) != "" {
		query = query.Where("superadmin_id = ?", strings.TrimSpace(*params.SuperadminID))
	}
	if params.From != nil {
		query = query.Where("generated_at >= ?", params.From.UTC())
	}
	if params.To != nil {
		query = query.Where("generated_at < ?", params.To.UTC())
	}
	if params.MinScore > 0 {
		query = query.Where("risk_score_user >= ?", params.MinScore)
	}
	limit := normalizeLimit(params.Limit, 10)
	var items []models.UserAnalysisRecord
	if err := query.
		Order("risk_score_user desc").
		Order("total_volume desc").
		Order("win_percent desc").
		Order("generated_at desc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
