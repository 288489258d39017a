package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	ExecutionStatusExecuted = "executed"
)

// ExecutionRecord is one executed order leg. The engine never writes to it.
type ExecutionRecord struct {
	ID          string `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID      string `gorm:"type:varchar(64);not null;index:idx_exec_user_time,priority:1" json:"user_id"`
	SymbolID    string `gorm:"type:varchar(64);not null;index" json:"symbol_id"`
	SymbolName  string `gorm:"type:varchar(160)" json:"symbol_name"`
	ProductType string `gorm:"type:varchar(32)" json:"product_type"`
	Side        string `gorm:"type:varchar(8);not null" json:"side"`

	Price    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"price"`
	Quantity decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"quantity"`
	LotSize  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:1" json:"lot_size"`

	ExecutionTime time.Time `gorm:"not null;index:idx_exec_user_time,priority:2" json:"execution_time"`

	// ParentOrderID optionally points at the buy leg this sell is meant to close.
	ParentOrderID *string `gorm:"type:varchar(64)" json:"parent_order_id,omitempty"`
	Status        string  `gorm:"type:varchar(24);index" json:"status"`
}

func (ExecutionRecord) TableName() string {
	return "execution_records"
}

// EffectiveLotSize treats a missing lot size as one unit.
func (r ExecutionRecord) EffectiveLotSize() decimal.Decimal {
	if r.LotSize.IsZero() {
		return decimal.NewFromInt(1)
	}
	return r.LotSize
}

// Notional is quantity * price * lot size.
func (r ExecutionRecord) Notional() decimal.Decimal {
	return r.Quantity.Mul(r.Price).Mul(r.EffectiveLotSize())
}
