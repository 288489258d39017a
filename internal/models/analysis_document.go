package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AnalysisKey identifies the single analysis document of one owner.
type AnalysisKey struct {
	Scope   string `json:"scope"`
	OwnerID string `json:"owner_id"`
}

// AnalysisDocument is the materialized summary of one owner. Exactly one row
// exists per (scope, owner_id); writers always upsert on that pair.
type AnalysisDocument struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	Scope   string `gorm:"type:varchar(16);not null;uniqueIndex:idx_analysis_scope_owner,priority:1" json:"scope"`
	OwnerID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_analysis_scope_owner,priority:2" json:"owner_id"`

	// StartDateAnchor is set once and reused as the window start of every run.
	StartDateAnchor  *time.Time `json:"start_date_anchor,omitempty"`
	WindowStart      time.Time  `json:"window_start"`
	WindowEnd        time.Time  `json:"window_end"`
	DailyWindowStart time.Time  `json:"daily_window_start"`
	DailyWindowEnd   time.Time  `json:"daily_window_end"`
	Timezone         string     `gorm:"type:varchar(64)" json:"timezone"`

	TotalTrades      int             `gorm:"not null;default:0" json:"total_trades"`
	WinTrades        int             `gorm:"not null;default:0" json:"win_trades"`
	WinPercent       float64         `gorm:"not null;default:0" json:"win_percent"`
	TotalVolume      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"total_volume"`
	TotalDeposits    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"total_withdrawals"`
	NetBalance       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"net_balance"`
	TxCount          int             `gorm:"not null;default:0" json:"tx_count"`
	AvgRiskScore     float64         `gorm:"not null;default:0" json:"avg_risk_score"`
	AvgRiskStatus    string          `gorm:"type:varchar(24)" json:"avg_risk_status"`
	TotalUsers       int             `gorm:"not null;default:0" json:"total_users"`
	ActiveUsers      int             `gorm:"not null;default:0" json:"active_users"`

	// WashTradeUserIDs is only filled for master documents.
	WashTradeUserIDs datatypes.JSONSlice[string] `gorm:"column:wash_trade_user_ids" json:"wash_trade_user_ids"`

	Weekly datatypes.JSONType[AnalysisBlock] `json:"weekly"`
	Daily  datatypes.JSONType[AnalysisBlock] `json:"daily"`

	GeneratedAt time.Time `gorm:"index" json:"generated_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AnalysisDocument) TableName() string {
	return "analysis_documents"
}

func (d AnalysisDocument) Key() AnalysisKey {
	return AnalysisKey{Scope: d.Scope, OwnerID: d.OwnerID}
}
