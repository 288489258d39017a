package analytics

import (
	"time"

	"tradeanalytics/internal/grouping"
	"tradeanalytics/internal/models"
	"tradeanalytics/internal/risk"
)

type BlockInput struct {
	Start    time.Time
	End      time.Time
	Records  []models.ExecutionRecord
	Ledger   []models.LedgerRecord
	Accounts Accounts
	Weights  risk.Weights
	Limit    int
}

// BuildBlock groups the window's executions and assembles KPIs plus every
// ranking. The KPI result is returned as well for per-user consumers.
func BuildBlock(in BlockInput) (models.AnalysisBlock, KPIResult) {
	groups := grouping.GroupTrades(in.Records)
	kpis := ComputeKPIs(groups, in.Accounts, in.Weights)
	ledger := SummarizeLedger(in.Ledger)

	block := models.AnalysisBlock{
		WindowStart: in.Start,
		WindowEnd:   in.End,
		KPIs: models.BlockKPIs{
			TotalTrades:      kpis.TotalTrades,
			WinTrades:        kpis.WinTrades,
			WinPercent:       kpis.WinPercent,
			TotalVolume:      kpis.TotalVolume,
			AvgRiskScore:     kpis.AvgRiskScore,
			AvgRiskStatus:    kpis.AvgRiskStatus,
			TotalDeposits:    ledger.TotalDeposits,
			TotalWithdrawals: ledger.TotalWithdrawals,
			NetBalance:       ledger.NetBalance,
			TxCount:          ledger.TxCount,
		},
		TopProfitable:      TopProfitable(groups, in.Limit),
		TopLosers:          TopLosers(groups, in.Limit),
		TopBiggestTrades:   TopBiggestTrades(groups, in.Limit),
		MostTraded:         MostTradedInstruments(groups, in.Limit),
		LeastTraded:        LeastTradedInstruments(groups, in.Limit),
		BiggestBuys:        TopBiggestOrders(in.Records, models.SideBuy, in.Limit),
		BiggestSells:       TopBiggestOrders(in.Records, models.SideSell, in.Limit),
		BiggestDeposits:    TopBiggestDeposits(in.Ledger, in.Limit),
		BiggestWithdrawals: TopBiggestWithdrawals(in.Ledger, in.Limit),
	}
	return block, kpis
}
