package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
	"tradeanalytics/internal/risk"
)

var fixedNow = time.Date(2025, 3, 5, 12, 0, 0, 0, ist)

func trade(id, user string, qty, buy, sell int64, at time.Time) []models.ExecutionRecord {
	b := models.ExecutionRecord{
		ID:            id + "-b",
		UserID:        user,
		SymbolID:      "NIFTY",
		SymbolName:    "NIFTY FUT",
		ProductType:   "MIS",
		Side:          models.SideBuy,
		Price:         decimal.NewFromInt(buy),
		Quantity:      decimal.NewFromInt(qty),
		LotSize:       decimal.NewFromInt(1),
		ExecutionTime: at,
		Status:        models.ExecutionStatusExecuted,
	}
	s := b
	s.ID = id + "-s"
	s.Side = models.SideSell
	s.Price = decimal.NewFromInt(sell)
	s.ExecutionTime = at.Add(time.Hour)
	return []models.ExecutionRecord{b, s}
}

func ledgerEntry(id, user, kind string, amount int64, at time.Time) models.LedgerRecord {
	return models.LedgerRecord{
		ID:        id,
		UserID:    user,
		Type:      kind,
		Amount:    decimal.NewFromInt(amount),
		Status:    models.LedgerStatusCompleted,
		CreatedAt: at,
	}
}

type fixture struct {
	store    *memStore
	hier     *stubHierarchy
	records  *stubRecords
	detector *stubDetector
	limits   *stubLimits
	m        *Materializer
}

func newFixture() *fixture {
	users := []repository.UserSummary{
		{ID: "u1", Name: "One", Status: models.AccountStatusActive, MasterID: "m1", SuperadminID: "s1"},
		{ID: "u2", Name: "Two", Status: models.AccountStatusActive, MasterID: "m1", SuperadminID: "s1"},
	}
	var execs []models.ExecutionRecord
	execs = append(execs, trade("t1", "u1", 5, 100, 120, time.Date(2025, 3, 4, 10, 0, 0, 0, ist))...)
	execs = append(execs, trade("t2", "u2", 10, 50, 40, time.Date(2025, 3, 5, 9, 0, 0, 0, ist))...)
	// before the anchor
	execs = append(execs, trade("t0", "u1", 1, 10, 1000, time.Date(2025, 3, 1, 9, 0, 0, 0, ist))...)

	f := &fixture{
		store: newMemStore(),
		hier: &stubHierarchy{
			owners: map[string][]repository.Owner{
				models.RoleSuperadmin: {{ID: "s1", Scope: models.RoleSuperadmin}},
				models.RoleAdmin:      {{ID: "a1", Scope: models.RoleAdmin}, {ID: "a2", Scope: models.RoleAdmin}},
				models.RoleMaster:     {{ID: "m1", Scope: models.RoleMaster}},
			},
			users: map[string][]repository.UserSummary{
				"s1": users,
				"a1": users,
				"a2": users,
				"m1": users,
			},
			fail: map[string]error{},
		},
		records: &stubRecords{
			executions: execs,
			ledger: []models.LedgerRecord{
				ledgerEntry("l1", "u1", models.LedgerCredit, 1000, time.Date(2025, 3, 4, 9, 0, 0, 0, ist)),
				ledgerEntry("l2", "u2", models.LedgerDebit, 200, time.Date(2025, 3, 5, 8, 0, 0, 0, ist)),
			},
			balances: map[string]decimal.Decimal{},
		},
		detector: &stubDetector{flagged: map[string][]string{}},
		limits:   &stubLimits{items: map[string]*models.RiskLimit{}},
	}
	cfg := DefaultMaterializerConfig()
	cfg.Location = ist
	f.m = &Materializer{
		Hierarchy:  f.hier,
		Executions: f.records,
		Ledger:     f.records,
		Balances:   f.records,
		Limits:     f.limits,
		Store:      f.store,
		Detector:   f.detector,
		Config:     cfg,
		Now:        func() time.Time { return fixedNow },
	}
	return f
}

func TestMaterializeOwner_BuildsWeeklyAndDailyBlocks(t *testing.T) {
	f := newFixture()
	doc, err := f.m.MaterializeOwner(context.Background(), models.RoleAdmin, "a1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if doc.TotalTrades != 2 || doc.WinTrades != 1 || doc.WinPercent != 50 {
		t.Fatalf("trades=%d wins=%d pct=%v", doc.TotalTrades, doc.WinTrades, doc.WinPercent)
	}
	if !doc.TotalVolume.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("volume=%s want=1000", doc.TotalVolume)
	}
	if !doc.TotalDeposits.Equal(decimal.NewFromInt(1000)) || !doc.TotalWithdrawals.Equal(decimal.NewFromInt(200)) || !doc.NetBalance.Equal(decimal.NewFromInt(800)) || doc.TxCount != 2 {
		t.Fatalf("ledger=%s/%s/%s/%d", doc.TotalDeposits, doc.TotalWithdrawals, doc.NetBalance, doc.TxCount)
	}
	if doc.TotalUsers != 2 || doc.ActiveUsers != 2 {
		t.Fatalf("users=%d active=%d", doc.TotalUsers, doc.ActiveUsers)
	}
	daily := doc.Daily.Data()
	if daily.KPIs.TotalTrades != 1 || len(daily.TopLosers) != 1 || daily.TopLosers[0].UserID != "u2" {
		t.Fatalf("daily=%+v", daily.KPIs)
	}
	weekly := doc.Weekly.Data()
	if len(weekly.TopProfitable) != 2 || weekly.TopProfitable[0].UserID != "u1" {
		t.Fatalf("weekly profitable=%+v", weekly.TopProfitable)
	}
	if doc.StartDateAnchor == nil || !doc.StartDateAnchor.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, ist)) {
		t.Fatalf("anchor=%v", doc.StartDateAnchor)
	}
	if len(doc.WashTradeUserIDs) != 0 {
		t.Fatalf("admin documents carry no wash set")
	}
}

func TestMaterializeOwner_IsIdempotentPerKey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.m.MaterializeOwner(ctx, models.RoleAdmin, "a1"); err != nil {
		t.Fatalf("err=%v", err)
	}
	f.records.executions = append(f.records.executions, trade("t3", "u1", 1, 10, 20, time.Date(2025, 3, 5, 10, 0, 0, 0, ist))...)
	if _, err := f.m.MaterializeOwner(ctx, models.RoleAdmin, "a1"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(f.store.docs) != 1 {
		t.Fatalf("docs=%d want=1", len(f.store.docs))
	}
	doc, _ := f.store.GetAnalysisDocument(ctx, models.AnalysisKey{Scope: models.RoleAdmin, OwnerID: "a1"})
	if doc.TotalTrades != 3 {
		t.Fatalf("trades=%d want=3 (second run overwrites)", doc.TotalTrades)
	}
}

func TestMaterializeOwner_UnknownOwnerLeavesNoAnchor(t *testing.T) {
	f := newFixture()
	f.hier.fail["ghost"] = fmt.Errorf("%w: admin ghost", repository.ErrOwnerNotFound)
	_, err := f.m.MaterializeOwner(context.Background(), models.RoleAdmin, "ghost")
	if !errors.Is(err, ErrInput) {
		t.Fatalf("err=%v want ErrInput", err)
	}
	if _, ok := f.store.docs[models.AnalysisKey{Scope: models.RoleAdmin, OwnerID: "ghost"}]; ok {
		t.Fatalf("rejected owner left a document behind")
	}
	if f.store.writes != 0 {
		t.Fatalf("writes=%d want=0", f.store.writes)
	}
}

func TestMaterializeOwner_DailyWindowEndsAtNow(t *testing.T) {
	f := newFixture()
	doc, err := f.m.MaterializeOwner(context.Background(), models.RoleAdmin, "a1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !doc.DailyWindowStart.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, ist)) || !doc.DailyWindowEnd.Equal(fixedNow) {
		t.Fatalf("daily=%v..%v want end %v", doc.DailyWindowStart, doc.DailyWindowEnd, fixedNow)
	}
	if !doc.DailyWindowEnd.Equal(doc.WindowEnd) {
		t.Fatalf("daily end=%v weekly end=%v", doc.DailyWindowEnd, doc.WindowEnd)
	}
}

func TestMaterializeOwners_PartialFailureContinues(t *testing.T) {
	f := newFixture()
	f.hier.fail["a2"] = errors.New("hierarchy down")
	res, err := f.m.MaterializeOwners(context.Background(), models.RoleAdmin)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.Partial || len(res.Updated) != 1 || res.Updated[0] != "a1" {
		t.Fatalf("res=%+v", res)
	}
	if len(res.Failed) != 1 || res.Failed[0].OwnerID != "a2" || res.Failed[0].Kind != KindUpstream {
		t.Fatalf("failed=%+v", res.Failed)
	}
}

func TestMaterializeOwners_ConcurrentOwners(t *testing.T) {
	f := newFixture()
	f.m.Config.Concurrency = 4
	res, err := f.m.MaterializeOwners(context.Background(), models.RoleAdmin)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Partial || len(res.Updated) != 2 || res.Updated[0] != "a1" || res.Updated[1] != "a2" {
		t.Fatalf("res=%+v", res)
	}
}

func TestMaterializeOwners_PersistenceFailureIsClassified(t *testing.T) {
	f := newFixture()
	f.store.upsertErr = errors.New("disk full")
	res, err := f.m.MaterializeOwners(context.Background(), models.RoleMaster)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Kind != KindPersistence {
		t.Fatalf("failed=%+v", res.Failed)
	}
}

func TestMaterializeOwners_RejectsUnknownScope(t *testing.T) {
	f := newFixture()
	if _, err := f.m.MaterializeOwners(context.Background(), "user"); !errors.Is(err, ErrInput) {
		t.Fatalf("err=%v want ErrInput", err)
	}
}

func TestMaterializeOwner_MasterCarriesWashSet(t *testing.T) {
	f := newFixture()
	f.detector.flagged["m1"] = []string{"u2", "u1"}
	doc, err := f.m.MaterializeOwner(context.Background(), models.RoleMaster, "m1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(doc.WashTradeUserIDs) != 2 || doc.WashTradeUserIDs[0] != "u1" || doc.WashTradeUserIDs[1] != "u2" {
		t.Fatalf("wash=%v", doc.WashTradeUserIDs)
	}
}

func TestMaterializeOwner_WashErrorFailsMaster(t *testing.T) {
	f := newFixture()
	f.detector.err = errors.New("timeout")
	_, err := f.m.MaterializeOwner(context.Background(), models.RoleMaster, "m1")
	if !errors.Is(err, ErrUpstreamFetch) {
		t.Fatalf("err=%v want ErrUpstreamFetch", err)
	}
	if f.store.writes != 0 {
		t.Fatalf("writes=%d want=0", f.store.writes)
	}
}

func TestMaterializeOwner_WashSwitchOff(t *testing.T) {
	f := newFixture()
	settings := &SystemSettingsService{Repo: f.store}
	if err := settings.EnsureDefaultSwitches(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := settings.SetEnabled(context.Background(), FeatureWashTrade, false); err != nil {
		t.Fatalf("err=%v", err)
	}
	f.m.Switches = settings
	f.detector.flagged["m1"] = []string{"u1", "u2"}
	doc, err := f.m.MaterializeOwner(context.Background(), models.RoleMaster, "m1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(doc.WashTradeUserIDs) != 0 || f.detector.calls["m1"] != 0 {
		t.Fatalf("wash=%v calls=%d", doc.WashTradeUserIDs, f.detector.calls["m1"])
	}
}

func TestMaterializeUserSnapshots(t *testing.T) {
	f := newFixture()
	f.hier.users["s1"] = []repository.UserSummary{
		{ID: "u1", Status: models.AccountStatusActive, MasterID: "m1", SuperadminID: "s1"},
		{ID: "u2", Status: models.AccountStatusActive, MasterID: "m1", SuperadminID: "s1"},
		{ID: "u3", Status: 0, MasterID: "m1", SuperadminID: "s1"},
		{ID: "u4", Status: models.AccountStatusActive, MasterID: "m2", SuperadminID: "s1"},
	}
	f.detector.flagged["m1"] = []string{"u1"}

	res, err := f.m.MaterializeUserSnapshots(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Partial || len(res.Updated) != 3 {
		t.Fatalf("res=%+v", res)
	}
	if _, ok := f.store.snapshots[[2]string{"s1", "u3"}]; ok {
		t.Fatalf("inactive user must not get a snapshot")
	}
	u1 := f.store.snapshots[[2]string{"s1", "u1"}]
	if !u1.WashTrade || u1.TotalTrades != 1 || u1.WinPercent != 100 || u1.AvgHoldingMinutes != 60 {
		t.Fatalf("u1=%+v", u1)
	}
	if u2 := f.store.snapshots[[2]string{"s1", "u2"}]; u2.WashTrade {
		t.Fatalf("u2 must not be flagged")
	}
	u4 := f.store.snapshots[[2]string{"s1", "u4"}]
	if u4.TotalTrades != 0 || u4.RiskScoreUser != 0 || u4.RiskStatus != risk.StatusLow {
		t.Fatalf("u4=%+v", u4)
	}
	if f.detector.calls["m1"] != 1 || f.detector.calls["m2"] != 1 {
		t.Fatalf("detector calls=%v want one per master", f.detector.calls)
	}
}

func TestMaterializeUserSnapshots_WashFailsOpen(t *testing.T) {
	f := newFixture()
	f.detector.err = errors.New("timeout")
	res, err := f.m.MaterializeUserSnapshots(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Partial || len(res.Updated) != 2 {
		t.Fatalf("res=%+v", res)
	}
	for _, rec := range f.store.snapshots {
		if rec.WashTrade {
			t.Fatalf("%s flagged despite detector failure", rec.UserID)
		}
	}
}

func TestMaterializeUserSnapshots_HierarchyFailureLeavesNoAnchor(t *testing.T) {
	f := newFixture()
	f.hier.fail["s1"] = errors.New("hierarchy down")
	res, err := f.m.MaterializeUserSnapshots(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].OwnerID != "s1" || res.Failed[0].Kind != KindUpstream {
		t.Fatalf("failed=%+v", res.Failed)
	}
	if _, ok := f.store.docs[models.AnalysisKey{Scope: models.RoleSuperadmin, OwnerID: "s1"}]; ok {
		t.Fatalf("failed superadmin left an anchor behind")
	}
}

func TestMaterializeUserSnapshots_AppliesRiskLimitOverride(t *testing.T) {
	f := newFixture()
	if _, err := f.m.MaterializeUserSnapshots(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := f.store.snapshots[[2]string{"s1", "u1"}].RiskScoreUser; got != 4.1 {
		t.Fatalf("default score=%v want=4.1", got)
	}

	f.limits.items["s1"] = &models.RiskLimit{SuperadminID: "s1", MaxTrades: 1}
	if _, err := f.m.MaterializeUserSnapshots(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	rec := f.store.snapshots[[2]string{"s1", "u1"}]
	if rec.RiskScoreUser != 7 || rec.RiskStatus != risk.StatusHigh {
		t.Fatalf("override score=%v status=%s want 7 High", rec.RiskScoreUser, rec.RiskStatus)
	}
}

func TestSetOwnerAnchor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	start := time.Date(2025, 2, 24, 0, 0, 0, 0, ist)

	if err := f.m.SetOwnerAnchor(ctx, models.RoleAdmin, "a1", start); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if _, err := f.m.MaterializeOwner(ctx, models.RoleAdmin, "a1"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := f.m.SetOwnerAnchor(ctx, models.RoleAdmin, "a1", start); err != nil {
		t.Fatalf("err=%v", err)
	}
	doc, err := f.m.MaterializeOwner(ctx, models.RoleAdmin, "a1")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// the old trade on 1 March is now inside the window
	if !doc.WindowStart.Equal(start) || doc.TotalTrades != 3 {
		t.Fatalf("start=%v trades=%d", doc.WindowStart, doc.TotalTrades)
	}
	if err := f.m.SetOwnerAnchor(ctx, models.RoleAdmin, "a1", fixedNow.Add(time.Hour)); !errors.Is(err, ErrInput) {
		t.Fatalf("err=%v want ErrInput", err)
	}
}

func TestQueryService(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	q := &QueryService{Store: f.store}

	if _, err := q.GetOwnerAnalysis(ctx, models.RoleAdmin, "a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if _, err := f.m.MaterializeUserSnapshots(ctx); err != nil {
		t.Fatalf("err=%v", err)
	}
	// the snapshot run wrote only an anchor for s1
	if _, err := q.GetOwnerAnalysis(ctx, models.RoleSuperadmin, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound for anchor-only row", err)
	}
	if _, err := f.m.MaterializeOwner(ctx, models.RoleSuperadmin, "s1"); err != nil {
		t.Fatalf("err=%v", err)
	}
	doc, err := q.GetOwnerAnalysis(ctx, "SUPERADMIN", "s1")
	if err != nil || doc.OwnerID != "s1" {
		t.Fatalf("doc=%v err=%v", doc, err)
	}

	if _, err := q.GetTopRiskUsers(ctx, TopRiskFilter{MinScore: 11}, 10); !errors.Is(err, ErrInput) {
		t.Fatalf("err=%v want ErrInput", err)
	}
	top, err := q.GetTopRiskUsers(ctx, TopRiskFilter{SuperadminID: "s1"}, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(top) != 2 || top[0].UserID != "u1" {
		t.Fatalf("top=%+v", top)
	}
}
