package analytics

import (
	"sort"
	"strings"

	"tradeanalytics/internal/grouping"
	"tradeanalytics/internal/models"
)

// All rankings are stable: equal primary values fall back to fixed secondary
// keys so identical input always yields identical output.

func TopProfitable(groups []grouping.TradeGroup, limit int) []models.TradeRow {
	rows := tradeRows(groups)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].PnL.Cmp(rows[j].PnL); c != 0 {
			return c > 0
		}
		return tradeTieBreak(rows[i], rows[j])
	})
	return head(rows, limit)
}

func TopLosers(groups []grouping.TradeGroup, limit int) []models.TradeRow {
	rows := tradeRows(groups)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].PnL.Cmp(rows[j].PnL); c != 0 {
			return c < 0
		}
		return tradeTieBreak(rows[i], rows[j])
	})
	return head(rows, limit)
}

// TopBiggestTrades ranks closed trades by entry notional.
func TopBiggestTrades(groups []grouping.TradeGroup, limit int) []models.TradeRow {
	rows := tradeRows(groups)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].TradeValue.Cmp(rows[j].TradeValue); c != 0 {
			return c > 0
		}
		return tradeTieBreak(rows[i], rows[j])
	})
	return head(rows, limit)
}

func MostTradedInstruments(groups []grouping.TradeGroup, limit int) []models.InstrumentRow {
	rows := instrumentRows(groups)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalTrades != rows[j].TotalTrades {
			return rows[i].TotalTrades > rows[j].TotalTrades
		}
		return instrumentTieBreak(rows[i], rows[j])
	})
	return head(rows, limit)
}

func LeastTradedInstruments(groups []grouping.TradeGroup, limit int) []models.InstrumentRow {
	rows := instrumentRows(groups)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalTrades != rows[j].TotalTrades {
			return rows[i].TotalTrades < rows[j].TotalTrades
		}
		return instrumentTieBreak(rows[i], rows[j])
	})
	return head(rows, limit)
}

// TopBiggestOrders ranks raw executions of one side by notional.
func TopBiggestOrders(records []models.ExecutionRecord, side string, limit int) []models.OrderRow {
	side = strings.ToLower(strings.TrimSpace(side))
	rows := make([]models.OrderRow, 0)
	for _, rec := range records {
		if strings.ToLower(strings.TrimSpace(rec.Side)) != side {
			continue
		}
		notional := rec.Notional()
		if !notional.IsPositive() {
			continue
		}
		rows = append(rows, models.OrderRow{
			ID:            rec.ID,
			UserID:        rec.UserID,
			SymbolID:      rec.SymbolID,
			SymbolName:    rec.SymbolName,
			Side:          side,
			Price:         rec.Price,
			Quantity:      rec.Quantity,
			LotSize:       rec.EffectiveLotSize(),
			Notional:      notional.Round(2),
			ExecutionTime: rec.ExecutionTime,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Notional.Cmp(rows[j].Notional); c != 0 {
			return c > 0
		}
		if !rows[i].ExecutionTime.Equal(rows[j].ExecutionTime) {
			return rows[i].ExecutionTime.After(rows[j].ExecutionTime)
		}
		return rows[i].ID < rows[j].ID
	})
	return head(rows, limit)
}

func TopBiggestDeposits(ledger []models.LedgerRecord, limit int) []models.LedgerRow {
	return topLedger(ledger, models.LedgerCredit, limit)
}

func TopBiggestWithdrawals(ledger []models.LedgerRecord, limit int) []models.LedgerRow {
	return topLedger(ledger, models.LedgerDebit, limit)
}

func topLedger(ledger []models.LedgerRecord, kind string, limit int) []models.LedgerRow {
	rows := make([]models.LedgerRow, 0)
	for _, rec := range ledger {
		if strings.ToLower(strings.TrimSpace(rec.Type)) != kind || !rec.Amount.IsPositive() {
			continue
		}
		rows = append(rows, models.LedgerRow{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Type:      kind,
			Amount:    rec.Amount,
			CreatedAt: rec.CreatedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Amount.Cmp(rows[j].Amount); c != 0 {
			return c > 0
		}
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return head(rows, limit)
}

func tradeRows(groups []grouping.TradeGroup) []models.TradeRow {
	rows := make([]models.TradeRow, 0, len(groups))
	for _, g := range groups {
		if !g.Closed() {
			continue
		}
		rows = append(rows, models.TradeRow{
			BuyID:       g.Buy.ID,
			UserID:      g.Key.UserID,
			SymbolID:    g.Key.SymbolID,
			SymbolName:  g.SymbolLabel(),
			ProductType: g.Key.ProductType,
			PnL:         g.PnL,
			TradeValue:  g.EntryNotional().Round(2),
			EntryTime:   g.Buy.ExecutionTime,
		})
	}
	return rows
}

func tradeTieBreak(a, b models.TradeRow) bool {
	if !a.EntryTime.Equal(b.EntryTime) {
		return a.EntryTime.Before(b.EntryTime)
	}
	return a.BuyID < b.BuyID
}

func instrumentRows(groups []grouping.TradeGroup) []models.InstrumentRow {
	counts := make(map[string]*models.InstrumentRow)
	order := make([]string, 0)
	for _, g := range groups {
		if !g.Closed() {
			continue
		}
		row, ok := counts[g.Key.SymbolID]
		if !ok {
			row = &models.InstrumentRow{SymbolID: g.Key.SymbolID, Label: g.SymbolLabel()}
			counts[g.Key.SymbolID] = row
			order = append(order, g.Key.SymbolID)
		}
		row.TotalTrades++
	}
	rows := make([]models.InstrumentRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *counts[id])
	}
	return rows
}

func instrumentTieBreak(a, b models.InstrumentRow) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return a.SymbolID < b.SymbolID
}

func head[T any](rows []T, limit int) []T {
	if limit <= 0 {
		return []T{}
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
