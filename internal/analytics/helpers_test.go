package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
)

var base = time.Date(2025, 3, 4, 4, 0, 0, 0, time.UTC)

type roundTrip struct {
	user, symbol, label string
	qty, buy, sell      int64
	at                  time.Duration
}

func (rt roundTrip) records(id string) []models.ExecutionRecord {
	buy := models.ExecutionRecord{
		ID:            id + "-b",
		UserID:        rt.user,
		SymbolID:      rt.symbol,
		SymbolName:    rt.label,
		ProductType:   "MIS",
		Side:          models.SideBuy,
		Price:         decimal.NewFromInt(rt.buy),
		Quantity:      decimal.NewFromInt(rt.qty),
		LotSize:       decimal.NewFromInt(1),
		ExecutionTime: base.Add(rt.at),
	}
	sell := buy
	sell.ID = id + "-s"
	sell.Side = models.SideSell
	sell.Price = decimal.NewFromInt(rt.sell)
	sell.ExecutionTime = buy.ExecutionTime.Add(30 * time.Minute)
	return []models.ExecutionRecord{buy, sell}
}

func build(trips map[string]roundTrip) []models.ExecutionRecord {
	var out []models.ExecutionRecord
	for id, rt := range trips {
		out = append(out, rt.records(id)...)
	}
	return out
}
