package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerCredit = "credit"
	LedgerDebit  = "debit"

	LedgerStatusCompleted = "completed"
)

// LedgerRecord is a wallet deposit (credit) or withdrawal (debit).
type LedgerRecord struct {
	ID        string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string          `gorm:"type:varchar(64);not null;index:idx_ledger_user_time,priority:1" json:"user_id"`
	Type      string          `gorm:"type:varchar(8);not null" json:"type"`
	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`
	Status    string          `gorm:"type:varchar(24);index" json:"status"`
	CreatedAt time.Time       `gorm:"not null;index:idx_ledger_user_time,priority:2" json:"created_at"`
}

func (LedgerRecord) TableName() string {
	return "ledger_records"
}
