// Package grouping turns raw buy/sell executions into closed round-trip trades.
package grouping

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
)

// Key partitions executions; lots never match across keys.
type Key struct {
	UserID      string
	SymbolID    string
	ProductType string
}

func (k Key) less(o Key) bool {
	if k.UserID != o.UserID {
		return k.UserID < o.UserID
	}
	if k.SymbolID != o.SymbolID {
		return k.SymbolID < o.SymbolID
	}
	return k.ProductType < o.ProductType
}

// Match is the part of one sell that closed part of one buy lot.
type Match struct {
	SellID     string
	MatchedQty decimal.Decimal
	BuyPrice   decimal.Decimal
	SellPrice  decimal.Decimal
	SellTime   time.Time
	// Directed is true when the sell named this lot as its parent.
	Directed bool
}

// TradeGroup is one buy leg plus every sell matched against it.
type TradeGroup struct {
	Key     Key
	Buy     models.ExecutionRecord
	Matches []Match

	TotalBuyQty  decimal.Decimal
	TotalSellQty decimal.Decimal
	RemainingQty decimal.Decimal

	PnL             decimal.Decimal
	HoldingDuration time.Duration
}

// Closed reports whether at least part of the buy was sold.
func (g TradeGroup) Closed() bool {
	return g.TotalSellQty.IsPositive()
}

func (g TradeGroup) Win() bool {
	return g.PnL.IsPositive()
}

// EntryNotional is buy quantity * buy price * lot size.
func (g TradeGroup) EntryNotional() decimal.Decimal {
	return g.Buy.Notional()
}

func (g TradeGroup) SymbolLabel() string {
	if label := strings.TrimSpace(g.Buy.SymbolName); label != "" {
		return label
	}
	return g.Key.SymbolID
}

type lot struct {
	group     *TradeGroup
	remaining decimal.Decimal
}

// GroupTrades matches sells to buys per (user, symbol, product type) and
// returns only closed groups. Input order does not matter; output is ordered
// by key and then by buy execution order.
func GroupTrades(records []models.ExecutionRecord) []TradeGroup {
	if len(records) == 0 {
		return nil
	}
	partitions := make(map[Key][]models.ExecutionRecord)
	for _, rec := range records {
		k := Key{UserID: rec.UserID, SymbolID: rec.SymbolID, ProductType: rec.ProductType}
		partitions[k] = append(partitions[k], rec)
	}
	keys := make([]Key, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	var out []TradeGroup
	for _, k := range keys {
		out = append(out, matchPartition(k, partitions[k])...)
	}
	return out
}

func matchPartition(key Key, records []models.ExecutionRecord) []TradeGroup {
	sorted := make([]models.ExecutionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExecutionTime.Equal(sorted[j].ExecutionTime) {
			return sorted[i].ExecutionTime.Before(sorted[j].ExecutionTime)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var groups []*TradeGroup
	var open []*lot
	byID := make(map[string]*lot)

	for _, rec := range sorted {
		switch normalizeSide(rec.Side) {
		case models.SideBuy:
			g := &TradeGroup{
				Key:          key,
				Buy:          rec,
				TotalBuyQty:  rec.Quantity,
				TotalSellQty: decimal.Zero,
			}
			groups = append(groups, g)
			if !rec.Quantity.IsPositive() {
				continue
			}
			l := &lot{group: g, remaining: rec.Quantity}
			open = append(open, l)
			byID[rec.ID] = l
		case models.SideSell:
			if !rec.Quantity.IsPositive() {
				continue
			}
			remaining := rec.Quantity
			if rec.ParentOrderID != nil {
				if l, ok := byID[*rec.ParentOrderID]; ok {
					remaining = consume(l, rec, remaining, true)
				}
			}
			for _, l := range open {
				if !remaining.IsPositive() {
					break
				}
				remaining = consume(l, rec, remaining, false)
			}
			open = compact(open, byID)
		}
	}

	out := make([]TradeGroup, 0, len(groups))
	for _, g := range groups {
		finalize(g)
		if g.Closed() {
			out = append(out, *g)
		}
	}
	return out
}

func consume(l *lot, sell models.ExecutionRecord, want decimal.Decimal, directed bool) decimal.Decimal {
	if !l.remaining.IsPositive() || !want.IsPositive() {
		return want
	}
	qty := decimal.Min(l.remaining, want)
	l.remaining = l.remaining.Sub(qty)
	l.group.Matches = append(l.group.Matches, Match{
		SellID:     sell.ID,
		MatchedQty: qty,
		BuyPrice:   l.group.Buy.Price,
		SellPrice:  sell.Price,
		SellTime:   sell.ExecutionTime,
		Directed:   directed,
	})
	return want.Sub(qty)
}

func compact(open []*lot, byID map[string]*lot) []*lot {
	next := open[:0]
	for _, l := range open {
		if l.remaining.IsPositive() {
			next = append(next, l)
			continue
		}
		delete(byID, l.group.Buy.ID)
	}
	for i := len(next); i < len(open); i++ {
		open[i] = nil
	}
	return next
}

func finalize(g *TradeGroup) {
	lotSize := g.Buy.EffectiveLotSize()
	sold := decimal.Zero
	pnl := decimal.Zero
	var lastSell time.Time
	for _, m := range g.Matches {
		sold = sold.Add(m.MatchedQty)
		pnl = pnl.Add(m.SellPrice.Sub(m.BuyPrice).Mul(m.MatchedQty).Mul(lotSize))
		if m.SellTime.After(lastSell) {
			lastSell = m.SellTime
		}
	}
	g.TotalSellQty = sold
	g.RemainingQty = g.TotalBuyQty.Sub(sold)
	g.PnL = pnl.Round(2)
	if len(g.Matches) > 0 {
		if held := lastSell.Sub(g.Buy.ExecutionTime); held > 0 {
			g.HoldingDuration = held
		}
	}
}

func normalizeSide(side string) string {
	return strings.ToLower(strings.TrimSpace(side))
}
