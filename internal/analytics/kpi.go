// Package analytics derives KPIs, risk scores and rankings from closed trades.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/grouping"
	"tradeanalytics/internal/risk"
)

// Accounts carries what the scorer needs to know about each user.
type Accounts struct {
	Balances map[string]decimal.Decimal
	// Limits holds per-user overrides; users without one use Default.
	Limits  map[string]risk.Limits
	Default risk.Limits
}

func (a Accounts) balance(userID string) decimal.Decimal {
	if b, ok := a.Balances[userID]; ok {
		return b
	}
	return decimal.Zero
}

func (a Accounts) limits(userID string) risk.Limits {
	if l, ok := a.Limits[userID]; ok {
		return l
	}
	if a.Default.TradesCap == 0 && a.Default.VolumeCap.IsZero() {
		return risk.DefaultLimits()
	}
	return a.Default
}

type UserStats struct {
	UserID            string
	Trades            int
	WinTrades         int
	WinPercent        float64
	Volume            decimal.Decimal
	AvgHoldingMinutes float64
	Balance           decimal.Decimal
	RiskScore         float64
	RiskStatus        string

	holdingSum   float64
	holdingCount int
}

type KPIResult struct {
	TotalTrades   int
	WinTrades     int
	WinPercent    float64
	TotalVolume   decimal.Decimal
	AvgRiskScore  float64
	AvgRiskStatus string
	Users         map[string]*UserStats
}

// ComputeKPIs aggregates closed groups overall and per user, then scores
// every user that has at least one closed trade.
func ComputeKPIs(groups []grouping.TradeGroup, accounts Accounts, weights risk.Weights) KPIResult {
	res := KPIResult{
		TotalVolume:   decimal.Zero,
		AvgRiskStatus: risk.StatusLow,
		Users:         make(map[string]*UserStats),
	}
	for _, g := range groups {
		if !g.Closed() {
			continue
		}
		vol := g.EntryNotional()
		res.TotalTrades++
		res.TotalVolume = res.TotalVolume.Add(vol)

		u, ok := res.Users[g.Key.UserID]
		if !ok {
			u = &UserStats{UserID: g.Key.UserID, Volume: decimal.Zero}
			res.Users[g.Key.UserID] = u
		}
		u.Trades++
		u.Volume = u.Volume.Add(vol)
		if g.Win() {
			res.WinTrades++
			u.WinTrades++
		}
		if g.HoldingDuration > 0 {
			u.holdingSum += g.HoldingDuration.Minutes()
			u.holdingCount++
		}
	}
	res.TotalVolume = res.TotalVolume.Round(2)
	res.WinPercent = percent(res.WinTrades, res.TotalTrades)

	ids := make([]string, 0, len(res.Users))
	for id := range res.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var scoreSum float64
	for _, id := range ids {
		u := res.Users[id]
		u.Balance = accounts.balance(id)
		u.WinPercent = percent(u.WinTrades, u.Trades)
		if u.holdingCount > 0 {
			u.AvgHoldingMinutes = risk.Round(u.holdingSum/float64(u.holdingCount), 2)
		}
		u.RiskScore = risk.Score(risk.Input{
			Trades:    u.Trades,
			WinTrades: u.WinTrades,
			Volume:    u.Volume,
			Balance:   u.Balance,
		}, accounts.limits(id), weights)
		u.RiskStatus = risk.Bucket(u.RiskScore)
		u.Volume = u.Volume.Round(2)
		scoreSum += u.RiskScore
	}
	if len(ids) > 0 {
		res.AvgRiskScore = risk.Round(scoreSum/float64(len(ids)), 1)
	}
	res.AvgRiskStatus = risk.Bucket(res.AvgRiskScore)
	return res
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return risk.Round(float64(part)*100/float64(total), 2)
}
