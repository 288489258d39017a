package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

const (
	FeatureAnalysisCron  = "feature.analysis_cron"
	FeatureWashTrade     = "feature.wash_trade"
	FeatureUserSnapshots = "feature.user_snapshots"
	FeatureDailyBlock    = "feature.daily_block"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureAnalysisCron:  true,
		FeatureWashTrade:     true,
		FeatureUserSnapshots: true,
		FeatureDailyBlock:    true,
	}
}

// IsKnownSwitch reports whether key is one of the default feature switches.
func IsKnownSwitch(key string) bool {
	_, ok := DefaultFeatureSwitches()[strings.TrimSpace(key)]
	return ok
}

// FeatureSwitches is the read side used by jobs and the materializer.
type FeatureSwitches interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

type SystemSettingsService struct {
	Repo repository.SettingsStore
}

// EnsureDefaultSwitches inserts missing switches. Stored values are never changed.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	keys := make([]string, 0)
	for key := range DefaultFeatureSwitches() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return fmt.Errorf("%w: read switch %s: %w", ErrPersistence, key, err)
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(DefaultFeatureSwitches()[key])
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return fmt.Errorf("%w: write switch %s: %w", ErrPersistence, key, err)
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty switch name", ErrInput)
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
		return fmt.Errorf("%w: write switch %s: %w", ErrPersistence, key, err)
	}
	return nil
}
