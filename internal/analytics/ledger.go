package analytics

import (
	"strings"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
)

type LedgerSummary struct {
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	NetBalance       decimal.Decimal
	TxCount          int
}

// SummarizeLedger totals credits and debits. Records of any other type are skipped.
func SummarizeLedger(records []models.LedgerRecord) LedgerSummary {
	out := LedgerSummary{
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
	}
	for _, rec := range records {
		switch strings.ToLower(strings.TrimSpace(rec.Type)) {
		case models.LedgerCredit:
			out.TotalDeposits = out.TotalDeposits.Add(rec.Amount)
		case models.LedgerDebit:
			out.TotalWithdrawals = out.TotalWithdrawals.Add(rec.Amount)
		default:
			continue
		}
		out.TxCount++
	}
	out.TotalDeposits = out.TotalDeposits.Round(2)
	out.TotalWithdrawals = out.TotalWithdrawals.Round(2)
	out.NetBalance = out.TotalDeposits.Sub(out.TotalWithdrawals)
	return out
}
