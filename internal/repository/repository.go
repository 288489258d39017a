package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
)

// ErrOwnerNotFound is returned when the owner id does not exist in the given scope.
var ErrOwnerNotFound = errors.New("owner not found")

// HierarchyResolver answers "who sits under this owner".
type HierarchyResolver interface {
	ListOwners(ctx context.Context, scope string) ([]Owner, error)
	ResolveUsersUnderOwner(ctx context.Context, ownerID string, scope string) ([]UserSummary, error)
}

type ExecutionSource interface {
	FetchExecutionRecords(ctx context.Context, query ExecutionQuery) ([]models.ExecutionRecord, error)
}

type LedgerSource interface {
	FetchLedgerRecords(ctx context.Context, query LedgerQuery) ([]models.LedgerRecord, error)
}

type BalanceSource interface {
	FetchBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type RiskLimitSource interface {
	GetRiskLimit(ctx context.Context, superadminID string) (*models.RiskLimit, error)
}

// RecordSource bundles every read the materializer performs per owner.
type RecordSource interface {
	ExecutionSource
	LedgerSource
	BalanceSource
}

// AnalysisStore persists materialized documents. Upserts are keyed on
// (scope, owner_id) and (superadmin_id, user_id); at most one row per key.
// Getters return nil, nil when nothing is stored.
type AnalysisStore interface {
	UpsertAnalysisDocument(ctx context.Context, doc *models.AnalysisDocument) error
	GetAnalysisDocument(ctx context.Context, key models.AnalysisKey) (*models.AnalysisDocument, error)

	GetAnchor(ctx context.Context, key models.AnalysisKey) (*time.Time, error)
	// SetAnchor writes the anchor, creating a bare document for the key if needed.
	SetAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) error
	// UpdateAnchor only touches an existing document and reports whether one matched.
	UpdateAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) (bool, error)

	UpsertUserSnapshot(ctx context.Context, rec *models.UserAnalysisRecord) error
	ListTopRiskUsers(ctx context.Context, params TopRiskUsersParams) ([]models.UserAnalysisRecord, error)
}

type SettingsStore interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

type RiskLimitStore interface {
	RiskLimitSource
	UpsertRiskLimit(ctx context.Context, item *models.RiskLimit) error
}

type Owner struct {
	ID    string
	Scope string
	Name  string
}

type UserSummary struct {
	ID           string
	Name         string
	Email        string
	Status       int
	Balance      *decimal.Decimal
	MasterID     string
	SuperadminID string
}

func (u UserSummary) Active() bool {
	return u.Status == models.AccountStatusActive
}

// TimeRange is half open: Start <= t < End.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.End.After(r.Start)
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

type ExecutionQuery struct {
	UserIDs  []string
	Range    TimeRange
	Sides    []string
	Statuses []string
}

type LedgerQuery struct {
	UserIDs  []string
	Range    TimeRange
	Statuses []string
}

// TopRiskUsersParams filters snapshots; From and To bound GeneratedAt.
type TopRiskUsersParams struct {
	SuperadminID *string
	From         *time.Time
	To           *time.Time
	MinScore     float64
	Limit        int
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
