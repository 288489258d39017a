package gormrepository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

// FetchExecutionRecords returns executions of the given users inside the
// half-open range, ordered by (execution_time, id). Side and status come back
// lower cased.
func (s *Store) FetchExecutionRecords(ctx context.Context, q repository.ExecutionQuery) ([]models.ExecutionRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids := cleanStrings(q.UserIDs)
	if len(ids) == 0 {
		return []models.ExecutionRecord{}, nil
	}
	sides := lowerStrings(q.Sides)
	statuses := lowerStrings(q.Statuses)

	out := make([]models.ExecutionRecord, 0)
	for _, chunk := range chunks(ids, queryChunk) {
		query := s.db.WithContext(ctx).
			Model(&models.ExecutionRecord{}).
			Where("user_id IN ?", chunk)
		if !q.Range.Start.IsZero() {
			query = query.Where("execution_time >= ?", q.Range.Start.UTC())
		}
		if !q.Range.End.IsZero() {
			query = query.Where("execution_time < ?", q.Range.End.UTC())
		}
		if len(sides) > 0 {
			query = query.Where("LOWER(side) IN ?", sides)
		}
		if len(statuses) > 0 {
			query = query.Where("LOWER(status) IN ?", statuses)
		}
		var part []models.ExecutionRecord
		if err := query.Order("execution_time asc").Order("id asc").Find(&part).Error; err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	for i := range out {
		out[i].Side = strings.ToLower(strings.TrimSpace(out[i].Side))
		out[i].Status = strings.ToLower(strings.TrimSpace(out[i].Status))
	}
	return out, nil
}

func (s *Store) FetchLedgerRecords(ctx context.Context, q repository.LedgerQuery) ([]models.LedgerRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids := cleanStrings(q.UserIDs)
	if len(ids) == 0 {
		return []models.LedgerRecord{}, nil
	}
	statuses := lowerStrings(q.Statuses)

	out := make([]models.LedgerRecord, 0)
	for _, chunk := range chunks(ids, queryChunk) {
		query := s.db.WithContext(ctx).
			Model(&models.LedgerRecord{}).
			Where("user_id IN ?", chunk)
		if !q.Range.Start.IsZero() {
			query = query.Where("created_at >= ?", q.Range.Start.UTC())
		}
		if !q.Range.End.IsZero() {
			query = query.Where("created_at < ?", q.Range.End.UTC())
		}
		if len(statuses) > 0 {
			query = query.Where("LOWER(status) IN ?", statuses)
		}
		var part []models.LedgerRecord
		if err := query.Order("created_at asc").Order("id asc").Find(&part).Error; err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	for i := range out {
		out[i].Type = strings.ToLower(strings.TrimSpace(out[i].Type))
	}
	return out, nil
}

// FetchBalance reads the wallet balance; an unknown user has zero.
func (s *Store) FetchBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	var acc models.Account
	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Select("balance").
		Where("id = ?", strings.TrimSpace(userID)).
		First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}
