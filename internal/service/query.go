package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

const (
	defaultTopRiskLimit = 10
	maxTopRiskLimit     = 500
)

// QueryService serves the read side of materialized analysis.
type QueryService struct {
	Store repository.AnalysisStore
}

func (s *QueryService) GetOwnerAnalysis(ctx context.Context, scope, ownerID string) (*models.AnalysisDocument, error) {
	scope, err := validScope(scope)
	if err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: empty owner id", ErrInput)
	}
	if s == nil || s.Store == nil {
		return nil, fmt.Errorf("%w: analysis store not configured", ErrPersistence)
	}
	doc, err := s.Store.GetAnalysisDocument(ctx, models.AnalysisKey{Scope: scope, OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("%w: read analysis %s/%s: %w", ErrPersistence, scope, ownerID, err)
	}
	// A row holding only an anchor has never been materialized.
	if doc == nil || doc.GeneratedAt.IsZero() {
		return nil, fmt.Errorf("%w: analysis %s/%s", ErrNotFound, scope, ownerID)
	}
	return doc, nil
}

// TopRiskFilter selects snapshots; Start and End bound the generation time.
type TopRiskFilter struct {
	SuperadminID string
	Start        *time.Time
	End          *time.Time
	MinScore     float64
}

func (s *QueryService) GetTopRiskUsers(ctx context.Context, filter TopRiskFilter, limit int) ([]models.UserAnalysisRecord, error) {
	if filter.MinScore < 0 || filter.MinScore > 10 {
		return nil, fmt.Errorf("%w: min_score %v outside [0,10]", ErrInput, filter.MinScore)
	}
	if filter.Start != nil && filter.End != nil && !filter.End.After(*filter.Start) {
		return nil, fmt.Errorf("%w: window end must be after start", ErrInput)
	}
	if limit <= 0 {
		limit = defaultTopRiskLimit
	}
	if limit > maxTopRiskLimit {
		limit = maxTopRiskLimit
	}
	if s == nil || s.Store == nil {
		return nil, fmt.Errorf("%w: analysis store not configured", ErrPersistence)
	}
	params := repository.TopRiskUsersParams{
		From:     filter.Start,
		To:       filter.End,
		MinScore: filter.MinScore,
		Limit:    limit,
	}
	if id := strings.TrimSpace(filter.SuperadminID); id != "" {
		params.SuperadminID = &id
	}
	items, err := s.Store.ListTopRiskUsers(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: list top risk users: %w", ErrPersistence, err)
	}
	if items == nil {
		items = []models.UserAnalysisRecord{}
	}
	return items, nil
}
