package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLimit overrides the default risk caps for every user under one superadmin.
// Zero values leave the corresponding default in place.
type RiskLimit struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SuperadminID string `gorm:"type:varchar(64);not null;uniqueIndex" json:"superadmin_id"`

	MaxTrades            int              `gorm:"not null;default:0" json:"max_trades"`
	AverageTradingVolume decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0" json:"average_trading_volume"`
	WinRatePercentage    float64          `gorm:"not null;default:0" json:"win_rate_percentage"`
	NegativeBalance      *decimal.Decimal `gorm:"type:numeric(30,10)" json:"negative_balance,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RiskLimit) TableName() string {
	return "risk_limits"
}
