package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

type memStore struct {
	mu        sync.Mutex
	docs      map[models.AnalysisKey]models.AnalysisDocument
	snapshots map[[2]string]models.UserAnalysisRecord
	settings  map[string]models.SystemSetting

	upsertErr   error
	snapshotErr error
	writes      int
}

func newMemStore() *memStore {
	return &memStore{
		docs:      map[models.AnalysisKey]models.AnalysisDocument{},
		snapshots: map[[2]string]models.UserAnalysisRecord{},
		settings:  map[string]models.SystemSetting{},
	}
}

func (s *memStore) UpsertAnalysisDocument(ctx context.Context, doc *models.AnalysisDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.writes++
	s.docs[doc.Key()] = *doc
	return nil
}

func (s *memStore) GetAnalysisDocument(ctx context.Context, key models.AnalysisKey) (*models.AnalysisDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *memStore) GetAnchor(ctx context.Context, key models.AnalysisKey) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return doc.StartDateAnchor, nil
}

func (s *memStore) SetAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docs[key]
	doc.Scope, doc.OwnerID = key.Scope, key.OwnerID
	doc.StartDateAnchor = &anchor
	s.docs[key] = doc
	return nil
}

func (s *memStore) UpdateAnchor(ctx context.Context, key models.AnalysisKey, anchor time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	doc.StartDateAnchor = &anchor
	s.docs[key] = doc
	return true, nil
}

func (s *memStore) UpsertUserSnapshot(ctx context.Context, rec *models.UserAnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshotErr != nil {
		return s.snapshotErr
	}
	s.snapshots[[2]string{rec.SuperadminID, rec.UserID}] = *rec
	return nil
}

func (s *memStore) ListTopRiskUsers(ctx context.Context, params repository.TopRiskUsersParams) ([]models.UserAnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserAnalysisRecord, 0)
	for _, rec := range s.snapshots {
		if params.SuperadminID != nil && rec.SuperadminID != *params.SuperadminID {
			continue
		}
		if rec.RiskScoreUser < params.MinScore {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RiskScoreUser > out[j].RiskScoreUser })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *memStore) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[item.Key] = *item
	return nil
}

func (s *memStore) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *memStore) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(s.settings))
	for _, item := range s.settings {
		out = append(out, item)
	}
	return out, nil
}

func (s *memStore) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.settings)), nil
}

type stubHierarchy struct {
	owners map[string][]repository.Owner
	users  map[string][]repository.UserSummary
	fail   map[string]error
}

func (h *stubHierarchy) ListOwners(ctx context.Context, scope string) ([]repository.Owner, error) {
	return h.owners[scope], nil
}

func (h *stubHierarchy) ResolveUsersUnderOwner(ctx context.Context, ownerID string, scope string) ([]repository.UserSummary, error) {
	if err := h.fail[ownerID]; err != nil {
		return nil, err
	}
	return h.users[ownerID], nil
}

type stubRecords struct {
	executions []models.ExecutionRecord
	ledger     []models.LedgerRecord
	balances   map[string]decimal.Decimal
	balanceErr error
}

func (r *stubRecords) FetchExecutionRecords(ctx context.Context, q repository.ExecutionQuery) ([]models.ExecutionRecord, error) {
	ids := toSet(q.UserIDs)
	out := make([]models.ExecutionRecord, 0)
	for _, rec := range r.executions {
		if _, ok := ids[rec.UserID]; ok && q.Range.Contains(rec.ExecutionTime) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *stubRecords) FetchLedgerRecords(ctx context.Context, q repository.LedgerQuery) ([]models.LedgerRecord, error) {
	ids := toSet(q.UserIDs)
	out := make([]models.LedgerRecord, 0)
	for _, rec := range r.ledger {
		if _, ok := ids[rec.UserID]; ok && q.Range.Contains(rec.CreatedAt) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *stubRecords) FetchBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if r.balanceErr != nil {
		return decimal.Zero, r.balanceErr
	}
	return r.balances[userID], nil
}

type stubLimits struct {
	items map[string]*models.RiskLimit
}

func (l *stubLimits) GetRiskLimit(ctx context.Context, superadminID string) (*models.RiskLimit, error) {
	return l.items[superadminID], nil
}

type stubDetector struct {
	mu      sync.Mutex
	flagged map[string][]string
	err     error
	calls   map[string]int
}

func (d *stubDetector) Detect(ctx context.Context, masterID string, window repository.TimeRange, thresholdDays int) (map[string]struct{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls == nil {
		d.calls = map[string]int{}
	}
	d.calls[masterID]++
	if d.err != nil {
		return nil, d.err
	}
	return toSet(d.flagged[masterID]), nil
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
