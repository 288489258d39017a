package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockKPIs are the aggregate figures of one reporting window.
type BlockKPIs struct {
	TotalTrades      int             `json:"total_trades" bson:"total_trades"`
	WinTrades        int             `json:"win_trades" bson:"win_trades"`
	WinPercent       float64         `json:"win_percent" bson:"win_percent"`
	TotalVolume      decimal.Decimal `json:"total_volume" bson:"total_volume"`
	AvgRiskScore     float64         `json:"avg_risk_score" bson:"avg_risk_score"`
	AvgRiskStatus    string          `json:"avg_risk_status" bson:"avg_risk_status"`
	TotalDeposits    decimal.Decimal `json:"total_deposits" bson:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals" bson:"total_withdrawals"`
	NetBalance       decimal.Decimal `json:"net_balance" bson:"net_balance"`
	TxCount          int             `json:"tx_count" bson:"tx_count"`
}

// TradeRow is one closed round trip in a ranking.
type TradeRow struct {
	BuyID       string          `json:"buy_id" bson:"buy_id"`
	UserID      string          `json:"user_id" bson:"user_id"`
	SymbolID    string          `json:"symbol_id" bson:"symbol_id"`
	SymbolName  string          `json:"symbol_name" bson:"symbol_name"`
	ProductType string          `json:"product_type" bson:"product_type"`
	PnL         decimal.Decimal `json:"pnl" bson:"pnl"`
	TradeValue  decimal.Decimal `json:"trade_value" bson:"trade_value"`
	EntryTime   time.Time       `json:"entry_time" bson:"entry_time"`
}

// InstrumentRow counts closed round trips per instrument.
type InstrumentRow struct {
	SymbolID    string `json:"symbol_id" bson:"symbol_id"`
	Label       string `json:"label" bson:"label"`
	TotalTrades int    `json:"total_trades" bson:"total_trades"`
}

// OrderRow is a single raw execution ranked by notional.
type OrderRow struct {
	ID            string          `json:"id" bson:"id"`
	UserID        string          `json:"user_id" bson:"user_id"`
	SymbolID      string          `json:"symbol_id" bson:"symbol_id"`
	SymbolName    string          `json:"symbol_name" bson:"symbol_name"`
	Side          string          `json:"side" bson:"side"`
	Price         decimal.Decimal `json:"price" bson:"price"`
	Quantity      decimal.Decimal `json:"quantity" bson:"quantity"`
	LotSize       decimal.Decimal `json:"lot_size" bson:"lot_size"`
	Notional      decimal.Decimal `json:"notional" bson:"notional"`
	ExecutionTime time.Time       `json:"execution_time" bson:"execution_time"`
}

// LedgerRow is a single deposit or withdrawal in a ranking.
type LedgerRow struct {
	ID        string          `json:"id" bson:"id"`
	UserID    string          `json:"user_id" bson:"user_id"`
	Type      string          `json:"type" bson:"type"`
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

// AnalysisBlock holds KPIs and every ranking for one window.
type AnalysisBlock struct {
	WindowStart time.Time `json:"window_start" bson:"window_start"`
	WindowEnd   time.Time `json:"window_end" bson:"window_end"`

	KPIs BlockKPIs `json:"kpis" bson:"kpis"`

	TopProfitable      []TradeRow      `json:"top_profitable_trades" bson:"top_profitable_trades"`
	TopLosers          []TradeRow      `json:"top_loser_trades" bson:"top_loser_trades"`
	TopBiggestTrades   []TradeRow      `json:"top_biggest_trades" bson:"top_biggest_trades"`
	MostTraded         []InstrumentRow `json:"most_traded_instruments" bson:"most_traded_instruments"`
	LeastTraded        []InstrumentRow `json:"least_traded_instruments" bson:"least_traded_instruments"`
	BiggestBuys        []OrderRow      `json:"biggest_buy_orders" bson:"biggest_buy_orders"`
	BiggestSells       []OrderRow      `json:"biggest_sell_orders" bson:"biggest_sell_orders"`
	BiggestDeposits    []LedgerRow     `json:"biggest_deposits" bson:"biggest_deposits"`
	BiggestWithdrawals []LedgerRow     `json:"biggest_withdrawals" bson:"biggest_withdrawals"`
}
