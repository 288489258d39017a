package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradeanalytics/internal/models"
)

func TestScore_ThreeFactor(t *testing.T) {
	cases := []struct {
		name   string
		in     Input
		want   float64
		bucket string
	}{
		{
			name:   "high win rate saturates win factor",
			in:     Input{Trades: 10, WinTrades: 8, Volume: decimal.NewFromInt(1_000_000)},
			want:   4.9,
			bucket: StatusMedium,
		},
		{
			name:   "large balance uses wide caps",
			in:     Input{Trades: 10, WinTrades: 5, Volume: decimal.NewFromInt(1_000_000), Balance: decimal.NewFromInt(2_000_000)},
			want:   2.2,
			bucket: StatusLow,
		},
		{
			name:   "everything capped",
			in:     Input{Trades: 500, WinTrades: 500, Volume: decimal.NewFromInt(1_000_000_000)},
			want:   10,
			bucket: StatusHigh,
		},
		{
			name:   "no trades",
			in:     Input{},
			want:   0,
			bucket: StatusLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.in, DefaultLimits(), DefaultWeights())
			if got != tc.want {
				t.Fatalf("score=%v want=%v", got, tc.want)
			}
			if b := Bucket(got); b != tc.bucket {
				t.Fatalf("bucket=%s want=%s", b, tc.bucket)
			}
		})
	}
}

func TestScore_NegativeBalanceFactor(t *testing.T) {
	floor := decimal.NewFromInt(-1000)
	limits := DefaultLimits()
	limits.NegativeBalanceFloor = &floor

	f := ComputeFactors(Input{Balance: decimal.NewFromInt(-3000)}, limits)
	// deficit 2000 over span 9000
	if f.NegBalanceNorm < 0.2222 || f.NegBalanceNorm > 0.2223 {
		t.Fatalf("norm=%v want~0.2222", f.NegBalanceNorm)
	}
	if got := Score(Input{Balance: decimal.NewFromInt(-3000)}, limits, FourFactorWeights); got != 0.6 {
		t.Fatalf("score=%v want=0.6", got)
	}
	if f := ComputeFactors(Input{Balance: decimal.NewFromInt(-500)}, limits); f.NegBalanceNorm != 0 {
		t.Fatalf("within floor norm=%v want=0", f.NegBalanceNorm)
	}
	if f := ComputeFactors(Input{Balance: decimal.NewFromInt(-50_000)}, limits); f.NegBalanceNorm != 1 {
		t.Fatalf("saturated norm=%v want=1", f.NegBalanceNorm)
	}
	if f := ComputeFactors(Input{Balance: decimal.NewFromInt(-3000)}, DefaultLimits()); f.NegBalanceNorm != 0 {
		t.Fatalf("without floor norm=%v want=0", f.NegBalanceNorm)
	}
}

func TestLimits_WithOverride(t *testing.T) {
	floor := decimal.NewFromInt(-200)
	limits := DefaultLimits().WithOverride(&models.RiskLimit{
		MaxTrades:            20,
		AverageTradingVolume: decimal.NewFromInt(1000),
		WinRatePercentage:    90,
		NegativeBalance:      &floor,
	})
	trades, volume := limits.Caps(decimal.NewFromInt(5_000_000))
	if trades != 20 || !volume.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("caps=%d/%s want=20/1000", trades, volume)
	}
	f := ComputeFactors(Input{Trades: 10, WinTrades: 8}, limits)
	if f.WinRisk != 0.8 {
		t.Fatalf("winRisk=%v want=0.8 below raised threshold", f.WinRisk)
	}
	if f.TradesNorm != 0.5 {
		t.Fatalf("tradesNorm=%v want=0.5", f.TradesNorm)
	}
	if limits.NegativeBalanceFloor == nil || !limits.NegativeBalanceFloor.Equal(floor) {
		t.Fatalf("floor not applied")
	}
	if same := DefaultLimits().WithOverride(nil); same.TradesCap != 50 {
		t.Fatalf("nil override changed caps")
	}
}

func TestBucketEdges(t *testing.T) {
	cases := map[float64]string{3.9: StatusLow, 4: StatusMedium, 6.9: StatusMedium, 7: StatusHigh}
	for score, want := range cases {
		if got := Bucket(score); got != want {
			t.Fatalf("Bucket(%v)=%s want=%s", score, got, want)
		}
	}
}

func TestWeights(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	if err := FourFactorWeights.Validate(); err != nil {
		t.Fatalf("four factor weights invalid: %v", err)
	}
	if err := (Weights{Win: 0.5, Trades: 0.3}).Validate(); err == nil {
		t.Fatalf("expected sum error")
	}
	if err := (Weights{Win: 1.2, Trades: -0.2}).Validate(); err == nil {
		t.Fatalf("expected negative weight error")
	}
	w, err := WeightsForPreset("four_factor")
	if err != nil || w != FourFactorWeights {
		t.Fatalf("preset=%v err=%v", w, err)
	}
	if _, err := WeightsForPreset("nope"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
}

func TestScore_WinThresholdUsesReportedPercent(t *testing.T) {
	// 17499 of 25000 is 69.996%, reported as 70.00%
	in := Input{Trades: 25000, WinTrades: 17499}
	if got := in.WinPercent(); got != 70 {
		t.Fatalf("win percent=%v want=70", got)
	}
	if f := ComputeFactors(in, DefaultLimits()); f.WinRisk != 1 {
		t.Fatalf("win risk=%v want=1", f.WinRisk)
	}
	if got := Score(in, DefaultLimits(), DefaultWeights()); got != 7 {
		t.Fatalf("score=%v want=7", got)
	}
}
