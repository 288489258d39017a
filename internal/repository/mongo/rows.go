package mongorepository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"tradeanalytics/internal/models"
)

type analysisRow struct {
	Scope   string `bson:"scope"`
	OwnerID string `bson:"owner_id"`

	StartDateAnchor  *time.Time `bson:"start_date_anchor,omitempty"`
	WindowStart      time.Time  `bson:"window_start"`
	WindowEnd        time.Time  `bson:"window_end"`
	DailyWindowStart time.Time  `bson:"daily_window_start"`
	DailyWindowEnd   time.Time  `bson:"daily_window_end"`
	Timezone         string     `bson:"timezone"`

	TotalTrades      int             `bson:"total_trades"`
	WinTrades        int             `bson:"win_trades"`
	WinPercent       float64         `bson:"win_percent"`
	TotalVolume      decimal.Decimal `bson:"total_volume"`
	TotalDeposits    decimal.Decimal `bson:"total_deposits"`
	TotalWithdrawals decimal.Decimal `bson:"total_withdrawals"`
	NetBalance       decimal.Decimal `bson:"net_balance"`
	TxCount          int             `bson:"tx_count"`
	AvgRiskScore     float64         `bson:"avg_risk_score"`
	AvgRiskStatus    string          `bson:"avg_risk_status"`
	TotalUsers       int             `bson:"total_users"`
	ActiveUsers      int             `bson:"active_users"`

	WashTradeUserIDs []string `bson:"wash_trade_user_ids"`

	Weekly models.AnalysisBlock `bson:"weekly"`
	Daily  models.AnalysisBlock `bson:"daily"`

	GeneratedAt time.Time `bson:"generated_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toAnalysisRow(doc *models.AnalysisDocument, now time.Time) analysisRow {
	wash := []string(doc.WashTradeUserIDs)
	if wash == nil {
		wash = []string{}
	}
	return analysisRow{
		Scope:            doc.Scope,
		OwnerID:          doc.OwnerID,
		StartDateAnchor:  doc.StartDateAnchor,
		WindowStart:      doc.WindowStart,
		WindowEnd:        doc.WindowEnd,
		DailyWindowStart: doc.DailyWindowStart,
		DailyWindowEnd:   doc.DailyWindowEnd,
		Timezone:         doc.Timezone,
		TotalTrades:      doc.TotalTrades,
		WinTrades:        doc.WinTrades,
		WinPercent:       doc.WinPercent,
		TotalVolume:      doc.TotalVolume,
		TotalDeposits:    doc.TotalDeposits,
		TotalWithdrawals: doc.TotalWithdrawals,
		NetBalance:       doc.NetBalance,
		TxCount:          doc.TxCount,
		AvgRiskScore:     doc.AvgRiskScore,
		AvgRiskStatus:    doc.AvgRiskStatus,
		TotalUsers:       doc.TotalUsers,
		ActiveUsers:      doc.ActiveUsers,
		WashTradeUserIDs: wash,
		Weekly:           doc.Weekly.Data(),
		Daily:            doc.Daily.Data(),
		GeneratedAt:      doc.GeneratedAt,
		UpdatedAt:        now,
	}
}

func (r analysisRow) toModel() *models.AnalysisDocument {
	return &models.AnalysisDocument{
		Scope:            r.Scope,
		OwnerID:          r.OwnerID,
		StartDateAnchor:  r.StartDateAnchor,
		WindowStart:      r.WindowStart,
		WindowEnd:        r.WindowEnd,
		DailyWindowStart: r.DailyWindowStart,
		DailyWindowEnd:   r.DailyWindowEnd,
		Timezone:         r.Timezone,
		TotalTrades:      r.TotalTrades,
		WinTrades:        r.WinTrades,
		WinPercent:       r.WinPercent,
		TotalVolume:      r.TotalVolume,
		TotalDeposits:    r.TotalDeposits,
		TotalWithdrawals: r.TotalWithdrawals,
		NetBalance:       r.NetBalance,
		TxCount:          r.TxCount,
		AvgRiskScore:     r.AvgRiskScore,
		AvgRiskStatus:    r.AvgRiskStatus,
		TotalUsers:       r.TotalUsers,
		ActiveUsers:      r.ActiveUsers,
		WashTradeUserIDs: datatypes.JSONSlice[string](r.WashTradeUserIDs),
		Weekly:           datatypes.NewJSONType(r.Weekly),
		Daily:            datatypes.NewJSONType(r.Daily),
		GeneratedAt:      r.GeneratedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type snapshotRow struct {
	SuperadminID string `bson:"superadmin_id"`
	UserID       string `bson:"user_id"`
	MasterID     string `bson:"master_id"`

	Name   string `bson:"name"`
	Email  string `bson:"email"`
	Status int    `bson:"status"`

	TotalTrades       int             `bson:"total_trades"`
	WinTrades         int             `bson:"win_trades"`
	WinPercent        float64         `bson:"win_percent"`
	TotalVolume       decimal.Decimal `bson:"total_volume"`
	Balance           decimal.Decimal `bson:"balance"`
	AvgHoldingMinutes float64         `bson:"avg_holding_minutes"`
	RiskScoreUser     float64         `bson:"risk_score_user"`
	RiskStatus        string          `bson:"risk_status"`
	WashTrade         bool            `bson:"wash_trade"`

	WindowStart time.Time `bson:"window_start"`
	WindowEnd   time.Time `bson:"window_end"`
	Timezone    string    `bson:"timezone"`

	GeneratedAt time.Time `bson:"generated_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toSnapshotRow(rec *models.UserAnalysisRecord, now time.Time) snapshotRow {
	return snapshotRow{
		SuperadminID:      rec.SuperadminID,
		UserID:            rec.UserID,
		MasterID:          rec.MasterID,
		Name:              rec.Name,
		Email:             rec.Email,
		Status:            rec.Status,
		TotalTrades:       rec.TotalTrades,
		WinTrades:         rec.WinTrades,
		WinPercent:        rec.WinPercent,
		TotalVolume:       rec.TotalVolume,
		Balance:           rec.Balance,
		AvgHoldingMinutes: rec.AvgHoldingMinutes,
		RiskScoreUser:     rec.RiskScoreUser,
		RiskStatus:        rec.RiskStatus,
		WashTrade:         rec.WashTrade,
		WindowStart:       rec.WindowStart,
		WindowEnd:         rec.WindowEnd,
		Timezone:          rec.Timezone,
		GeneratedAt:       rec.GeneratedAt,
		UpdatedAt:         now,
	}
}

func (r snapshotRow) toModel() models.UserAnalysisRecord {
	return models.UserAnalysisRecord{
		SuperadminID:      r.SuperadminID,
		UserID:            r.UserID,
		MasterID:          r.MasterID,
		Name:              r.Name,
		Email:             r.Email,
		Status:            r.Status,
		TotalTrades:       r.TotalTrades,
		WinTrades:         r.WinTrades,
		WinPercent:        r.WinPercent,
		TotalVolume:       r.TotalVolume,
		Balance:           r.Balance,
		AvgHoldingMinutes: r.AvgHoldingMinutes,
		RiskScoreUser:     r.RiskScoreUser,
		RiskStatus:        r.RiskStatus,
		WashTrade:         r.WashTrade,
		WindowStart:       r.WindowStart,
		WindowEnd:         r.WindowEnd,
		Timezone:          r.Timezone,
		GeneratedAt:       r.GeneratedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
