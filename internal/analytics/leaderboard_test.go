package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/grouping"
	"tradeanalytics/internal/models"
)

func fixtureGroups() ([]models.ExecutionRecord, []grouping.TradeGroup) {
	records := build(map[string]roundTrip{
		"a": {user: "u1", symbol: "s1", label: "INFY", qty: 10, buy: 100, sell: 110, at: 0},
		"b": {user: "u1", symbol: "s2", label: "TCS", qty: 10, buy: 100, sell: 90, at: time.Minute},
		"c": {user: "u2", symbol: "s1", label: "INFY", qty: 20, buy: 50, sell: 55, at: 2 * time.Minute},
		"d": {user: "u2", symbol: "s3", label: "HDFC", qty: 1, buy: 1000, sell: 1000, at: 3 * time.Minute},
		"e": {user: "u3", symbol: "s4", label: "AXIS", qty: 4, buy: 250, sell: 260, at: 4 * time.Minute},
	})
	return records, grouping.GroupTrades(records)
}

func buyIDs(rows []models.TradeRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.BuyID)
	}
	return out
}

func TestTopProfitableAndLosers(t *testing.T) {
	_, groups := fixtureGroups()
	if got := buyIDs(TopProfitable(groups, 2)); !reflect.DeepEqual(got, []string{"a-b", "c-b"}) {
		t.Fatalf("profitable=%v", got)
	}
	if got := buyIDs(TopLosers(groups, 2)); !reflect.DeepEqual(got, []string{"b-b", "d-b"}) {
		t.Fatalf("losers=%v", got)
	}
}

func TestTopBiggestTrades_Deterministic(t *testing.T) {
	records, groups := fixtureGroups()
	first := TopBiggestTrades(groups, 3)
	// a, b, c, d, e all have entry notional 1000; ties fall back to entry time
	if got := buyIDs(first); !reflect.DeepEqual(got, []string{"a-b", "b-b", "c-b"}) {
		t.Fatalf("biggest=%v", got)
	}
	for i := 0; i < 5; i++ {
		shuffled := append([]models.ExecutionRecord(nil), records...)
		for l, r := 0, len(shuffled)-1; l < r; l, r = l+1, r-1 {
			shuffled[l], shuffled[r] = shuffled[r], shuffled[l]
		}
		again := TopBiggestTrades(grouping.GroupTrades(shuffled), 3)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, buyIDs(first), buyIDs(again))
		}
	}
}

func TestTradedInstruments(t *testing.T) {
	_, groups := fixtureGroups()
	most := MostTradedInstruments(groups, 2)
	if len(most) != 2 || most[0].SymbolID != "s1" || most[0].TotalTrades != 2 || most[1].Label != "AXIS" {
		t.Fatalf("most=%+v", most)
	}
	least := LeastTradedInstruments(groups, 10)
	labels := make([]string, 0, len(least))
	for _, r := range least {
		labels = append(labels, r.Label)
	}
	if !reflect.DeepEqual(labels, []string{"AXIS", "HDFC", "TCS", "INFY"}) {
		t.Fatalf("least=%v", labels)
	}
}

func TestTopBiggestOrders(t *testing.T) {
	records, _ := fixtureGroups()
	zero := records[0]
	zero.ID = "zero"
	zero.Price = decimal.Zero
	records = append(records, zero)

	buys := TopBiggestOrders(records, models.SideBuy, 10)
	if len(buys) != 5 {
		t.Fatalf("buys=%d want=5", len(buys))
	}
	for _, row := range buys {
		if row.ID == "zero" {
			t.Fatalf("zero notional order ranked")
		}
	}
	sells := TopBiggestOrders(records, models.SideSell, 1)
	if len(sells) != 1 || sells[0].ID != "c-s" {
		t.Fatalf("sells=%+v want c-s", sells)
	}
	if got := TopBiggestOrders(records, models.SideBuy, 0); len(got) != 0 {
		t.Fatalf("limit 0 returned %d rows", len(got))
	}
}

func TestTopLedgerRankings(t *testing.T) {
	ledger := []models.LedgerRecord{
		{ID: "l1", UserID: "u1", Type: "credit", Amount: decimal.NewFromInt(500), CreatedAt: base},
		{ID: "l2", UserID: "u2", Type: "credit", Amount: decimal.NewFromInt(500), CreatedAt: base.Add(time.Hour)},
		{ID: "l0", UserID: "u2", Type: "credit", Amount: decimal.NewFromInt(500), CreatedAt: base.Add(time.Hour)},
		{ID: "l3", UserID: "u1", Type: "credit", Amount: decimal.NewFromInt(-5), CreatedAt: base},
		{ID: "l4", UserID: "u1", Type: "debit", Amount: decimal.NewFromInt(200), CreatedAt: base},
		{ID: "l5", UserID: "u1", Type: "bonus", Amount: decimal.NewFromInt(900), CreatedAt: base},
	}
	deposits := TopBiggestDeposits(ledger, 10)
	ids := []string{}
	for _, r := range deposits {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"l0", "l2", "l1"}) {
		t.Fatalf("deposits=%v", ids)
	}
	if w := TopBiggestWithdrawals(ledger, 10); len(w) != 1 || w[0].ID != "l4" {
		t.Fatalf("withdrawals=%+v", w)
	}

	sum := SummarizeLedger(ledger)
	if !sum.TotalDeposits.Equal(decimal.NewFromInt(1495)) || !sum.TotalWithdrawals.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("summary=%+v", sum)
	}
	if !sum.NetBalance.Equal(decimal.NewFromInt(1295)) || sum.TxCount != 5 {
		t.Fatalf("summary=%+v", sum)
	}
}
