package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"tradeanalytics/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// queryChunk bounds the number of bind parameters of one IN clause.
const queryChunk = 1000

func chunks(items []string, size int) [][]string {
	if size <= 0 {
		size = queryChunk
	}
	out := make([][]string, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

func lowerStrings(items []string) []string {
	out := cleanStrings(items)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

var (
	_ repository.HierarchyResolver = (*Store)(nil)
	_ repository.RecordSource      = (*Store)(nil)
	_ repository.AnalysisStore     = (*Store)(nil)
	_ repository.SettingsStore     = (*Store)(nil)
	_ repository.RiskLimitStore    = (*Store)(nil)
)
