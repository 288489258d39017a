package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserAnalysisRecord is the per-user snapshot, unique on (superadmin_id, user_id).
type UserAnalysisRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	SuperadminID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_analysis_owner_user,priority:1" json:"superadmin_id"`
	UserID       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_analysis_owner_user,priority:2" json:"user_id"`
	MasterID     string `gorm:"type:varchar(64);index" json:"master_id"`

	Name   string `gorm:"type:varchar(200)" json:"name"`
	Email  string `gorm:"type:varchar(200)" json:"email"`
	Status int    `gorm:"not null;default:0" json:"status"`

	TotalTrades       int             `gorm:"not null;default:0" json:"total_trades"`
	WinTrades         int             `gorm:"not null;default:0" json:"win_trades"`
	WinPercent        float64         `gorm:"not null;default:0" json:"win_percent"`
	TotalVolume       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0;index" json:"total_volume"`
	Balance           decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"balance"`
	AvgHoldingMinutes float64         `gorm:"not null;default:0" json:"avg_holding_minutes"`
	RiskScoreUser     float64         `gorm:"not null;default:0;index" json:"risk_score_user"`
	RiskStatus        string          `gorm:"type:varchar(24)" json:"risk_status"`
	WashTrade         bool            `gorm:"not null;default:false" json:"wash_trade"`

	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Timezone    string    `gorm:"type:varchar(64)" json:"timezone"`

	GeneratedAt time.Time `gorm:"index" json:"generated_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserAnalysisRecord) TableName() string {
	return "user_analysis_records"
}
