package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"tradeanalytics/internal/analytics"
	"tradeanalytics/internal/grouping"
	"tradeanalytics/internal/metrics"
	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
	"tradeanalytics/internal/risk"
)

const (
	ScopeUser = "user"

	DefaultLeaderboardLimit = 10
)

// WashDetector is satisfied by *washtrade.Detector.
type WashDetector interface {
	Detect(ctx context.Context, masterID string, window repository.TimeRange, thresholdDays int) (map[string]struct{}, error)
}

type MaterializerConfig struct {
	Location          *time.Location
	Limit             int
	WashThresholdDays int
	// Concurrency bounds how many owners of one batch run at once.
	Concurrency       int
	ExecutionStatuses []string
	LedgerStatuses    []string
	Weights           risk.Weights
	Limits            risk.Limits
}

func DefaultMaterializerConfig() MaterializerConfig {
	return MaterializerConfig{
		Location:          time.UTC,
		Limit:             DefaultLeaderboardLimit,
		Concurrency:       1,
		ExecutionStatuses: []string{models.ExecutionStatusExecuted},
		LedgerStatuses:    []string{models.LedgerStatusCompleted},
		Weights:           risk.DefaultWeights(),
		Limits:            risk.DefaultLimits(),
	}
}

// Materializer turns raw executions and ledger entries into persisted
// analysis documents and user snapshots.
type Materializer struct {
	Hierarchy  repository.HierarchyResolver
	Executions repository.ExecutionSource
	Ledger     repository.LedgerSource
	Balances   repository.BalanceSource
	Limits     repository.RiskLimitSource
	Store      repository.AnalysisStore
	Detector   WashDetector
	Switches   FeatureSwitches
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Config     MaterializerConfig

	// Now defaults to time.Now.
	Now func() time.Time
}

type OwnerFailure struct {
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// BatchResult aggregates one pass over every owner of a scope.
type BatchResult struct {
	Scope   string         `json:"scope"`
	Updated []string       `json:"updated"`
	Failed  []OwnerFailure `json:"failed"`
	Partial bool           `json:"partial"`
}

func (b *BatchResult) finish() {
	sort.Strings(b.Updated)
	sort.Slice(b.Failed, func(i, j int) bool { return b.Failed[i].OwnerID < b.Failed[j].OwnerID })
	b.Partial = len(b.Failed) > 0
}

func (m *Materializer) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (m *Materializer) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Materializer) location() *time.Location {
	if m.Config.Location == nil {
		return time.UTC
	}
	return m.Config.Location
}

func (m *Materializer) limit() int {
	if m.Config.Limit <= 0 {
		return DefaultLeaderboardLimit
	}
	return m.Config.Limit
}

func (m *Materializer) weights() risk.Weights {
	w := m.Config.Weights
	if w == (risk.Weights{}) {
		return risk.DefaultWeights()
	}
	return w
}

func (m *Materializer) baseLimits() risk.Limits {
	l := m.Config.Limits
	if l.TradesCap == 0 && l.VolumeCap.IsZero() {
		return risk.DefaultLimits()
	}
	return l
}

func (m *Materializer) enabled(ctx context.Context, key string) bool {
	if m.Switches == nil {
		return true
	}
	return m.Switches.IsEnabled(ctx, key, true)
}

func validScope(scope string) (string, error) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if !models.IsOwnerRole(scope) {
		return "", fmt.Errorf("%w: unknown scope %q", ErrInput, scope)
	}
	return scope, nil
}

// MaterializeOwners rebuilds the document of every owner in scope. A failing
// owner is recorded in the result and never stops its siblings.
func (m *Materializer) MaterializeOwners(ctx context.Context, scope string) (BatchResult, error) {
	scope, err := validScope(scope)
	if err != nil {
		return BatchResult{Scope: scope}, err
	}
	result := BatchResult{Scope: scope, Updated: []string{}, Failed: []OwnerFailure{}}
	if m.Hierarchy == nil {
		return result, fmt.Errorf("%w: hierarchy resolver not configured", ErrUpstreamFetch)
	}
	owners, err := m.Hierarchy.ListOwners(ctx, scope)
	if err != nil {
		return result, fmt.Errorf("%w: list %s owners: %w", ErrUpstreamFetch, scope, err)
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	limit := m.Config.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, owner := range owners {
		g.Go(func() error {
			err := m.materializeSafely(ctx, scope, owner.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, m.recordFailure(scope, owner.ID, err))
				return nil
			}
			result.Updated = append(result.Updated, owner.ID)
			return nil
		})
	}
	_ = g.Wait()
	result.finish()

	m.logger().Info("owner batch materialized",
		zap.String("scope", scope),
		zap.Int("owners", len(owners)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (m *Materializer) materializeSafely(ctx context.Context, scope, ownerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic materializing %s/%s: %v", scope, ownerID, r)
		}
	}()
	_, err = m.MaterializeOwner(ctx, scope, ownerID)
	return err
}

func (m *Materializer) recordFailure(scope, ownerID string, err error) OwnerFailure {
	kind := ErrorKind(err)
	m.Metrics.OwnerFailed(scope, kind)
	m.logger().Warn("owner materialization failed",
		zap.String("scope", scope),
		zap.String("owner_id", ownerID),
		zap.String("kind", kind),
		zap.Error(err),
	)
	return OwnerFailure{OwnerID: ownerID, Kind: kind, Error: err.Error()}
}

// MaterializeOwner builds and upserts the document of one owner.
func (m *Materializer) MaterializeOwner(ctx context.Context, scope, ownerID string) (*models.AnalysisDocument, error) {
	scope, err := validScope(scope)
	if err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: empty owner id", ErrInput)
	}
	if m.Hierarchy == nil || m.Executions == nil || m.Ledger == nil {
		return nil, fmt.Errorf("%w: record sources not configured", ErrUpstreamFetch)
	}
	// an unknown owner must not leave an anchor behind
	users, err := m.Hierarchy.ResolveUsersUnderOwner(ctx, ownerID, scope)
	if errors.Is(err, repository.ErrOwnerNotFound) {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrInput, scope, ownerID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolve users under %s %s: %w", ErrUpstreamFetch, scope, ownerID, err)
	}

	key := models.AnalysisKey{Scope: scope, OwnerID: ownerID}
	loc := m.location()
	window, err := ResolveWindow(ctx, m.Store, key, m.now(), loc)
	if err != nil {
		return nil, err
	}
	ids := userIDs(users)
	fetch := window.FetchRange()

	var records []models.ExecutionRecord
	var ledger []models.LedgerRecord
	if len(ids) > 0 {
		records, err = m.Executions.FetchExecutionRecords(ctx, repository.ExecutionQuery{
			UserIDs:  ids,
			Range:    fetch,
			Statuses: m.Config.ExecutionStatuses,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: fetch executions for %s %s: %w", ErrUpstreamFetch, scope, ownerID, err)
		}
		ledger, err = m.Ledger.FetchLedgerRecords(ctx, repository.LedgerQuery{
			UserIDs:  ids,
			Range:    fetch,
			Statuses: m.Config.LedgerStatuses,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: fetch ledger for %s %s: %w", ErrUpstreamFetch, scope, ownerID, err)
		}
	}

	accounts := m.accounts(ctx, users)
	weights := m.weights()
	weekly, _ := analytics.BuildBlock(analytics.BlockInput{
		Start:    window.Weekly.Start,
		End:      window.Weekly.End,
		Records:  executionsIn(records, window.Weekly),
		Ledger:   ledgerIn(ledger, window.Weekly),
		Accounts: accounts,
		Weights:  weights,
		Limit:    m.limit(),
	})
	daily := models.AnalysisBlock{WindowStart: window.Daily.Start, WindowEnd: window.Daily.End}
	if m.enabled(ctx, FeatureDailyBlock) {
		daily, _ = analytics.BuildBlock(analytics.BlockInput{
			Start:    window.Daily.Start,
			End:      window.Daily.End,
			Records:  executionsIn(records, window.Daily),
			Ledger:   ledgerIn(ledger, window.Daily),
			Accounts: accounts,
			Weights:  weights,
			Limit:    m.limit(),
		})
	}

	washIDs := []string{}
	if scope == models.RoleMaster && m.Detector != nil && m.enabled(ctx, FeatureWashTrade) {
		flagged, err := m.Detector.Detect(ctx, ownerID, window.Weekly, m.Config.WashThresholdDays)
		if err != nil {
			return nil, fmt.Errorf("%w: wash detection for master %s: %w", ErrUpstreamFetch, ownerID, err)
		}
		washIDs = sortedSet(flagged)
		m.Metrics.SetWashFlagged(ownerID, len(washIDs))
	}

	active := 0
	for _, u := range users {
		if u.Active() {
			active++
		}
	}
	anchor := window.Anchor.UTC()
	doc := &models.AnalysisDocument{
		Scope:            scope,
		OwnerID:          ownerID,
		StartDateAnchor:  &anchor,
		WindowStart:      window.Weekly.Start.UTC(),
		WindowEnd:        window.Weekly.End.UTC(),
		DailyWindowStart: window.Daily.Start.UTC(),
		DailyWindowEnd:   window.Daily.End.UTC(),
		Timezone:         loc.String(),
		TotalTrades:      weekly.KPIs.TotalTrades,
		WinTrades:        weekly.KPIs.WinTrades,
		WinPercent:       weekly.KPIs.WinPercent,
		TotalVolume:      weekly.KPIs.TotalVolume,
		TotalDeposits:    weekly.KPIs.TotalDeposits,
		TotalWithdrawals: weekly.KPIs.TotalWithdrawals,
		NetBalance:       weekly.KPIs.NetBalance,
		TxCount:          weekly.KPIs.TxCount,
		AvgRiskScore:     weekly.KPIs.AvgRiskScore,
		AvgRiskStatus:    weekly.KPIs.AvgRiskStatus,
		TotalUsers:       len(users),
		ActiveUsers:      active,
		WashTradeUserIDs: datatypes.JSONSlice[string](washIDs),
		GeneratedAt:      m.now().UTC(),
	}
	doc.Weekly = datatypes.NewJSONType(weekly)
	doc.Daily = datatypes.NewJSONType(daily)

	if err := m.Store.UpsertAnalysisDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: upsert analysis %s/%s: %w", ErrPersistence, scope, ownerID, err)
	}
	m.Metrics.DocumentWritten("analysis_document")
	m.logger().Debug("analysis document written",
		zap.String("scope", scope),
		zap.String("owner_id", ownerID),
		zap.Int("users", len(users)),
		zap.Int("trades", doc.TotalTrades),
	)
	return doc, nil
}

// MaterializeUserSnapshots writes one snapshot per active user under every
// superadmin, using the superadmin's window. Wash flags are computed once per
// master and fail open: a detector error leaves the users unflagged.
func (m *Materializer) MaterializeUserSnapshots(ctx context.Context) (BatchResult, error) {
	result := BatchResult{Scope: ScopeUser, Updated: []string{}, Failed: []OwnerFailure{}}
	if m.Hierarchy == nil || m.Executions == nil {
		return result, fmt.Errorf("%w: record sources not configured", ErrUpstreamFetch)
	}
	superadmins, err := m.Hierarchy.ListOwners(ctx, models.RoleSuperadmin)
	if err != nil {
		return result, fmt.Errorf("%w: list superadmins: %w", ErrUpstreamFetch, err)
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	limit := m.Config.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, sa := range superadmins {
		g.Go(func() error {
			updated, failed := m.snapshotSuperadminSafely(ctx, sa.ID)
			mu.Lock()
			defer mu.Unlock()
			result.Updated = append(result.Updated, updated...)
			result.Failed = append(result.Failed, failed...)
			return nil
		})
	}
	_ = g.Wait()
	result.finish()

	m.logger().Info("user snapshots materialized",
		zap.Int("superadmins", len(superadmins)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (m *Materializer) snapshotSuperadminSafely(ctx context.Context, superadminID string) (updated []string, failed []OwnerFailure) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic snapshotting superadmin %s: %v", superadminID, r)
			failed = append(failed, m.recordFailure(ScopeUser, superadminID, err))
		}
	}()
	return m.snapshotSuperadmin(ctx, superadminID)
}

func (m *Materializer) snapshotSuperadmin(ctx context.Context, superadminID string) ([]string, []OwnerFailure) {
	updated := make([]string, 0)
	failed := make([]OwnerFailure, 0)
	fail := func(id string, err error) {
		failed = append(failed, m.recordFailure(ScopeUser, id, err))
	}

	users, err := m.Hierarchy.ResolveUsersUnderOwner(ctx, superadminID, models.RoleSuperadmin)
	if err != nil {
		fail(superadminID, fmt.Errorf("%w: resolve users under superadmin %s: %w", ErrUpstreamFetch, superadminID, err))
		return updated, failed
	}
	loc := m.location()
	key := models.AnalysisKey{Scope: models.RoleSuperadmin, OwnerID: superadminID}
	window, err := ResolveWindow(ctx, m.Store, key, m.now(), loc)
	if err != nil {
		fail(superadminID, err)
		return updated, failed
	}
	active := make([]repository.UserSummary, 0, len(users))
	for _, u := range users {
		if u.Active() {
			active = append(active, u)
		}
	}
	if len(active) == 0 {
		return updated, failed
	}
	records, err := m.Executions.FetchExecutionRecords(ctx, repository.ExecutionQuery{
		UserIDs:  userIDs(active),
		Range:    window.Weekly,
		Statuses: m.Config.ExecutionStatuses,
	})
	if err != nil {
		fail(superadminID, fmt.Errorf("%w: fetch executions for superadmin %s: %w", ErrUpstreamFetch, superadminID, err))
		return updated, failed
	}

	accounts := m.accounts(ctx, active)
	groups := grouping.GroupTrades(records)
	kpis := analytics.ComputeKPIs(groups, accounts, m.weights())

	washByMaster := make(map[string]map[string]struct{})
	washEnabled := m.Detector != nil && m.enabled(ctx, FeatureWashTrade)
	washed := func(u repository.UserSummary) bool {
		if !washEnabled || u.MasterID == "" {
			return false
		}
		set, ok := washByMaster[u.MasterID]
		if !ok {
			var derr error
			set, derr = m.Detector.Detect(ctx, u.MasterID, window.Weekly, m.Config.WashThresholdDays)
			if derr != nil {
				m.logger().Warn("wash detection failed, snapshots left unflagged",
					zap.String("master_id", u.MasterID),
					zap.Error(derr),
				)
				set = map[string]struct{}{}
			}
			washByMaster[u.MasterID] = set
		}
		_, hit := set[u.ID]
		return hit
	}

	generated := m.now().UTC()
	for _, u := range active {
		stats := kpis.Users[u.ID]
		if stats == nil {
			balance := accounts.Balances[u.ID]
			score := risk.Score(risk.Input{Balance: balance}, accountLimits(accounts, u.ID), m.weights())
			stats = &analytics.UserStats{
				UserID:     u.ID,
				Volume:     decimal.Zero,
				Balance:    balance,
				RiskScore:  score,
				RiskStatus: risk.Bucket(score),
			}
		}
		rec := &models.UserAnalysisRecord{
			SuperadminID:      superadminID,
			UserID:            u.ID,
			MasterID:          u.MasterID,
			Name:              u.Name,
			Email:             u.Email,
			Status:            u.Status,
			TotalTrades:       stats.Trades,
			WinTrades:         stats.WinTrades,
			WinPercent:        stats.WinPercent,
			TotalVolume:       stats.Volume,
			Balance:           stats.Balance,
			AvgHoldingMinutes: stats.AvgHoldingMinutes,
			RiskScoreUser:     stats.RiskScore,
			RiskStatus:        stats.RiskStatus,
			WashTrade:         washed(u),
			WindowStart:       window.Weekly.Start.UTC(),
			WindowEnd:         window.Weekly.End.UTC(),
			Timezone:          loc.String(),
			GeneratedAt:       generated,
		}
		if err := m.Store.UpsertUserSnapshot(ctx, rec); err != nil {
			fail(u.ID, fmt.Errorf("%w: upsert snapshot %s/%s: %w", ErrPersistence, superadminID, u.ID, err))
			continue
		}
		m.Metrics.DocumentWritten("user_snapshot")
		updated = append(updated, u.ID)
	}
	return updated, failed
}

// SetOwnerAnchor moves the window start of an existing owner document.
func (m *Materializer) SetOwnerAnchor(ctx context.Context, scope, ownerID string, start time.Time) error {
	scope, err := validScope(scope)
	if err != nil {
		return err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return fmt.Errorf("%w: empty owner id", ErrInput)
	}
	if start.IsZero() {
		return fmt.Errorf("%w: empty anchor", ErrInput)
	}
	if start.After(m.now()) {
		return fmt.Errorf("%w: anchor %s is in the future", ErrInput, start.Format(time.RFC3339))
	}
	key := models.AnalysisKey{Scope: scope, OwnerID: ownerID}
	ok, err := m.Store.UpdateAnchor(ctx, key, start.UTC())
	if err != nil {
		return fmt.Errorf("%w: update anchor %s/%s: %w", ErrPersistence, scope, ownerID, err)
	}
	if !ok {
		return fmt.Errorf("%w: analysis %s/%s", ErrNotFound, scope, ownerID)
	}
	m.logger().Info("analysis anchor updated",
		zap.String("scope", scope),
		zap.String("owner_id", ownerID),
		zap.Time("anchor", start.UTC()),
	)
	return nil
}

// accounts gathers balances and per-superadmin limits for users. A failed
// lookup falls back to a zero balance or the default limits.
func (m *Materializer) accounts(ctx context.Context, users []repository.UserSummary) analytics.Accounts {
	base := m.baseLimits()
	out := analytics.Accounts{
		Balances: make(map[string]decimal.Decimal, len(users)),
		Limits:   make(map[string]risk.Limits, len(users)),
		Default:  base,
	}
	bySuperadmin := make(map[string]risk.Limits)
	for _, u := range users {
		switch {
		case u.Balance != nil:
			out.Balances[u.ID] = *u.Balance
		case m.Balances != nil:
			bal, err := m.Balances.FetchBalance(ctx, u.ID)
			if err != nil {
				m.logger().Warn("balance lookup failed, using zero",
					zap.String("user_id", u.ID),
					zap.Error(err),
				)
				bal = decimal.Zero
			}
			out.Balances[u.ID] = bal
		default:
			out.Balances[u.ID] = decimal.Zero
		}

		if u.SuperadminID == "" || m.Limits == nil {
			continue
		}
		limits, ok := bySuperadmin[u.SuperadminID]
		if !ok {
			limits = base
			override, err := m.Limits.GetRiskLimit(ctx, u.SuperadminID)
			if err != nil {
				m.logger().Warn("risk limit lookup failed, using defaults",
					zap.String("superadmin_id", u.SuperadminID),
					zap.Error(err),
				)
			} else {
				limits = base.WithOverride(override)
			}
			bySuperadmin[u.SuperadminID] = limits
		}
		out.Limits[u.ID] = limits
	}
	return out
}

func accountLimits(a analytics.Accounts, userID string) risk.Limits {
	if l, ok := a.Limits[userID]; ok {
		return l
	}
	if a.Default.TradesCap == 0 && a.Default.VolumeCap.IsZero() {
		return risk.DefaultLimits()
	}
	return a.Default
}

func userIDs(users []repository.UserSummary) []string {
	seen := make(map[string]struct{}, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}
	return ids
}

func executionsIn(records []models.ExecutionRecord, r repository.TimeRange) []models.ExecutionRecord {
	out := make([]models.ExecutionRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.ExecutionTime) {
			out = append(out, rec)
		}
	}
	return out
}

func ledgerIn(records []models.LedgerRecord, r repository.TimeRange) []models.LedgerRecord {
	out := make([]models.LedgerRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.CreatedAt) {
			out = append(out, rec)
		}
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
