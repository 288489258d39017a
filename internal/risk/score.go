// Package risk scores a user's trading behaviour on a 0-10 scale.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
)

const (
	StatusLow    = "Low Risk"
	StatusMedium = "Medium Risk"
	StatusHigh   = "High Risk"
)

const (
	PresetThreeFactor = "three_factor"
	PresetFourFactor  = "four_factor"
)

// Weights of each normalized factor; they must sum to 1.
type Weights struct {
	Win        float64 `mapstructure:"win" json:"win"`
	Trades     float64 `mapstructure:"trades" json:"trades"`
	Volume     float64 `mapstructure:"volume" json:"volume"`
	NegBalance float64 `mapstructure:"neg_balance" json:"neg_balance"`
}

var (
	ThreeFactorWeights = Weights{Win: 0.4, Trades: 0.3, Volume: 0.3}
	FourFactorWeights  = Weights{Win: 0.25, Trades: 0.25, Volume: 0.25, NegBalance: 0.25}
)

func DefaultWeights() Weights {
	return ThreeFactorWeights
}

func WeightsForPreset(name string) (Weights, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetThreeFactor:
		return ThreeFactorWeights, nil
	case PresetFourFactor:
		return FourFactorWeights, nil
	default:
		return Weights{}, fmt.Errorf("unknown risk weights preset %q", name)
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{"win": w.Win, "trades": w.Trades, "volume": w.Volume, "neg_balance": w.NegBalance} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("risk weight %s must be >= 0, got %v", name, v)
		}
	}
	sum := w.Win + w.Trades + w.Volume + w.NegBalance
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("risk weights must sum to 1, got %v", sum)
	}
	return nil
}

// Limits selects the caps that normalize trade count and volume.
type Limits struct {
	TradesCap            int
	VolumeCap            decimal.Decimal
	HighBalanceTradesCap int
	HighBalanceVolumeCap decimal.Decimal
	HighBalanceThreshold decimal.Decimal
	WinRateThreshold     float64

	// NegativeBalanceFloor enables the negative balance factor when set.
	NegativeBalanceFloor *decimal.Decimal
	// NegativeBalanceFullFactor is the multiple of the floor at which the factor saturates.
	NegativeBalanceFullFactor float64
}

func DefaultLimits() Limits {
	return Limits{
		TradesCap:                 50,
		VolumeCap:                 decimal.NewFromInt(10_000_000),
		HighBalanceTradesCap:      150,
		HighBalanceVolumeCap:      decimal.NewFromInt(100_000_000),
		HighBalanceThreshold:      decimal.NewFromInt(1_000_000),
		WinRateThreshold:          70,
		NegativeBalanceFullFactor: 10,
	}
}

// Caps returns the trade and volume caps for a wallet balance.
func (l Limits) Caps(balance decimal.Decimal) (int, decimal.Decimal) {
	if balance.GreaterThanOrEqual(l.HighBalanceThreshold) {
		return l.HighBalanceTradesCap, l.HighBalanceVolumeCap
	}
	return l.TradesCap, l.VolumeCap
}

// WithOverride applies a superadmin's configured limits on top of l.
func (l Limits) WithOverride(o *models.RiskLimit) Limits {
	if o == nil {
		return l
	}
	next := l
	if o.MaxTrades > 0 {
		next.TradesCap = o.MaxTrades
		next.HighBalanceTradesCap = o.MaxTrades
	}
	if o.AverageTradingVolume.IsPositive() {
		next.VolumeCap = o.AverageTradingVolume
		next.HighBalanceVolumeCap = o.AverageTradingVolume
	}
	if o.WinRatePercentage > 0 {
		next.WinRateThreshold = o.WinRatePercentage
	}
	if o.NegativeBalance != nil {
		floor := *o.NegativeBalance
		next.NegativeBalanceFloor = &floor
	}
	return next
}

// Input is one user's aggregate over the window.
type Input struct {
	Trades    int
	WinTrades int
	Volume    decimal.Decimal
	Balance   decimal.Decimal
}

// WinPercent is rounded to two decimals, the precision reports show.
func (in Input) WinPercent() float64 {
	if in.Trades <= 0 {
		return 0
	}
	return Round(float64(in.WinTrades)*100/float64(in.Trades), 2)
}

// Factors are the normalized [0,1] components of a score.
type Factors struct {
	WinRisk        float64
	TradesNorm     float64
	VolumeNorm     float64
	NegBalanceNorm float64
}

func ComputeFactors(in Input, l Limits) Factors {
	var f Factors
	winPct := in.WinPercent()
	if l.WinRateThreshold > 0 && winPct >= l.WinRateThreshold {
		f.WinRisk = 1
	} else {
		f.WinRisk = clamp01(winPct / 100)
	}
	tradesCap, volumeCap := l.Caps(in.Balance)
	if tradesCap > 0 {
		f.TradesNorm = math.Min(float64(in.Trades)/float64(tradesCap), 1)
	}
	if volumeCap.IsPositive() {
		f.VolumeNorm = math.Min(in.Volume.Div(volumeCap).InexactFloat64(), 1)
	}
	f.NegBalanceNorm = negBalanceNorm(in.Balance, l)
	return f
}

func negBalanceNorm(balance decimal.Decimal, l Limits) float64 {
	if l.NegativeBalanceFloor == nil || !balance.IsNegative() {
		return 0
	}
	floor := l.NegativeBalanceFloor.Abs()
	factor := l.NegativeBalanceFullFactor
	if factor <= 0 {
		factor = 10
	}
	deficit := decimal.Max(decimal.Zero, balance.Abs().Sub(floor))
	span := decimal.Max(floor.Mul(decimal.NewFromFloat(factor)).Sub(floor), decimal.NewFromInt(1))
	return math.Min(deficit.Div(span).InexactFloat64(), 1)
}

// Score returns the 0-10 risk score rounded to one decimal.
func Score(in Input, l Limits, w Weights) float64 {
	f := ComputeFactors(in, l)
	sum := w.Win*f.WinRisk + w.Trades*f.TradesNorm + w.Volume*f.VolumeNorm + w.NegBalance*f.NegBalanceNorm
	return math.Min(math.Max(Round(sum*10, 1), 0), 10)
}

func Bucket(score float64) string {
	switch {
	case score < 4:
		return StatusLow
	case score < 7:
		return StatusMedium
	default:
		return StatusHigh
	}
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
