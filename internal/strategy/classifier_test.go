package strategy

import (
	"errors"
	"math"
	"testing"

	"signal-backtest-lab/internal/domain"
)

const eps = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func defaultParams() Params {
	return Params{StopLossPct: 0.05, RiskReward: 3}
}

func TestClassify_BullishStopLoss(t *testing.T) {
	w := domain.PriceWindow{EntryPrice: 100, FutureHigh: 101, FutureLow: 94}

	got, err := Classify(domain.DirectionBullish, w, defaultParams())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if got.Outcome != domain.OutcomeSL {
		t.Errorf("expected SL, got %s", got.Outcome)
	}
	if !approxEqual(got.SLPrice, 95) {
		t.Errorf("expected sl=95, got %v", got.SLPrice)
	}
	if !approxEqual(got.TPPrice, 115) {
		t.Errorf("expected tp=115, got %v", got.TPPrice)
	}
	if !approxEqual(got.GainPct, -5) {
		t.Errorf("expected gain -5, got %v", got.GainPct)
	}
	if !approxEqual(got.DrawdownPct, 6) {
		t.Errorf("expected drawdown 6, got %v", got.DrawdownPct)
	}
}

func TestClassify_BearishTakeProfit(t *testing.T) {
	w := domain.PriceWindow{EntryPrice: 100, FutureHigh: 103, FutureLow: 80}

	got, err := Classify(domain.DirectionBearish, w, defaultParams())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if got.Outcome != domain.OutcomeTP {
		t.Errorf("expected TP, got %s", got.Outcome)
	}
	if !approxEqual(got.SLPrice, 105) {
		t.Errorf("expected sl=105, got %v", got.SLPrice)
	}
	if !approxEqual(got.TPPrice, 85) {
		t.Errorf("expected tp=85, got %v", got.TPPrice)
	}
	if !approxEqual(got.GainPct, 15) {
		t.Errorf("expected gain 15, got %v", got.GainPct)
	}
	if !approxEqual(got.DrawdownPct, 3) {
		t.Errorf("expected drawdown 3, got %v", got.DrawdownPct)
	}
}

func TestClassify_BullishUndecided(t *testing.T) {
	w := domain.PriceWindow{EntryPrice: 100, FutureHigh: 110, FutureLow: 97}

	got, err := Classify(domain.DirectionBullish, w, defaultParams())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if got.Outcome != domain.OutcomeNone {
		t.Errorf("expected None, got %s", got.Outcome)
	}
	if !approxEqual(got.GainPct, 10) {
		t.Errorf("expected gain 10, got %v", got.GainPct)
	}
	if !approxEqual(got.DrawdownPct, 3) {
		t.Errorf("expected drawdown 3, got %v", got.DrawdownPct)
	}
}

func TestClassify_BearishUndecided(t *testing.T) {
	w := domain.PriceWindow{EntryPrice: 100, FutureHigh: 102, FutureLow: 96}

	got, err := Classify(domain.DirectionBearish, w, defaultParams())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if got.Outcome != domain.OutcomeNone {
		t.Errorf("expected None, got %s", got.Outcome)
	}
	if !approxEqual(got.GainPct, 4) {
		t.Errorf("expected gain 4, got %v", got.GainPct)
	}
	if !approxEqual(got.DrawdownPct, 2) {
		t.Errorf("expected drawdown 2, got %v", got.DrawdownPct)
	}
}

// Known limitation: a price window carries only its extremes, not the order
// in which they were reached. When both levels are crossed the trade is
// always booked as a stop-loss, even if take-profit was touched first.
func TestClassify_LimitationStopLossWinsWhenBothLevelsCrossed(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.Direction
		window    domain.PriceWindow
	}{
		{
			name:      "bullish crosses both",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: 130, FutureLow: 90},
		},
		{
			name:      "bearish crosses both",
			direction: domain.DirectionBearish,
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: 110, FutureLow: 70},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.direction, tt.window, defaultParams())
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.Outcome != domain.OutcomeSL {
				t.Errorf("expected SL, got %s", got.Outcome)
			}
			if got.GainPct != -0.05*100 {
				t.Errorf("expected gain exactly %v, got %v", -0.05*100, got.GainPct)
			}
		})
	}
}

func TestClassify_StopLossAlwaysCapsLoss(t *testing.T) {
	p := defaultParams()
	for low := 50.0; low <= 95; low += 2.5 {
		for high := 100.0; high <= 140; high += 5 {
			w := domain.PriceWindow{EntryPrice: 100, FutureHigh: high, FutureLow: low}
			got, err := Classify(domain.DirectionBullish, w, p)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.Outcome != domain.OutcomeSL || got.GainPct != -p.StopLossPct*100 {
				t.Errorf("bullish low=%v high=%v: got %s %v", low, high, got.Outcome, got.GainPct)
			}

			// Mirror for bearish: swap roles of high and low around entry.
			mw := domain.PriceWindow{EntryPrice: 100, FutureHigh: 200 - low, FutureLow: 200 - high}
			got, err = Classify(domain.DirectionBearish, mw, p)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got.Outcome != domain.OutcomeSL || got.GainPct != -p.StopLossPct*100 {
				t.Errorf("bearish high=%v low=%v: got %s %v", mw.FutureHigh, mw.FutureLow, got.Outcome, got.GainPct)
			}
		}
	}
}

func TestClassify_UndecidedGainStrictlyInsideLevels(t *testing.T) {
	p := defaultParams()
	slBound := -p.StopLossPct * 100
	tpBound := p.TakeProfitDistance() * 100

	for _, dir := range []domain.Direction{domain.DirectionBullish, domain.DirectionBearish} {
		for low := 80.0; low <= 100; low += 0.5 {
			for high := 100.0; high <= 120; high += 0.5 {
				w := domain.PriceWindow{EntryPrice: 100, FutureHigh: high, FutureLow: low}
				got, err := Classify(dir, w, p)
				if err != nil {
					t.Fatalf("Classify failed: %v", err)
				}
				if got.Outcome != domain.OutcomeNone {
					continue
				}
				if !(slBound < got.GainPct && got.GainPct < tpBound) {
					t.Errorf("%s low=%v high=%v: gain %v outside (%v, %v)", dir, low, high, got.GainPct, slBound, tpBound)
				}
			}
		}
	}
}

func TestClassify_ExplicitTakeProfit(t *testing.T) {
	tp := 0.02
	p := Params{StopLossPct: 0.05, RiskReward: 3, TakeProfitPct: &tp}
	w := domain.PriceWindow{EntryPrice: 100, FutureHigh: 102.5, FutureLow: 99}

	got, err := Classify(domain.DirectionBullish, w, p)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Outcome != domain.OutcomeTP {
		t.Errorf("expected TP, got %s", got.Outcome)
	}
	if !approxEqual(got.TPPrice, 102) {
		t.Errorf("expected tp=102, got %v", got.TPPrice)
	}
	if !approxEqual(got.GainPct, 2) {
		t.Errorf("expected gain 2, got %v", got.GainPct)
	}
}

func TestClassify_ZeroRiskRewardMeansEntryIsTarget(t *testing.T) {
	p := Params{StopLossPct: 0.05, RiskReward: 0}
	w := domain.PriceWindow{EntryPrice: 100, FutureHigh: 100, FutureLow: 99}

	got, err := Classify(domain.DirectionBullish, w, p)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Outcome != domain.OutcomeTP || got.GainPct != 0 {
		t.Errorf("expected TP with zero gain, got %s %v", got.Outcome, got.GainPct)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	w := domain.PriceWindow{EntryPrice: 42.5, FutureHigh: 44.1, FutureLow: 41.9}
	first, err := Classify(domain.DirectionBullish, w, defaultParams())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	for run := 0; run < 5; run++ {
		got, _ := Classify(domain.DirectionBullish, w, defaultParams())
		if got != first {
			t.Errorf("Run %d: result differs: %+v != %+v", run, got, first)
		}
	}
}

func TestClassify_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		direction domain.Direction
		window    domain.PriceWindow
		params    Params
		wantErr   error
	}{
		{
			name:      "zero entry",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: 0, FutureHigh: 1, FutureLow: 0},
			params:    defaultParams(),
			wantErr:   ErrInvalidEntryPrice,
		},
		{
			name:      "negative entry",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: -1, FutureHigh: 1, FutureLow: 0},
			params:    defaultParams(),
			wantErr:   ErrInvalidEntryPrice,
		},
		{
			name:      "NaN entry",
			direction: domain.DirectionBearish,
			window:    domain.PriceWindow{EntryPrice: math.NaN(), FutureHigh: 1, FutureLow: 0},
			params:    defaultParams(),
			wantErr:   ErrInvalidEntryPrice,
		},
		{
			name:      "infinite high",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: math.Inf(1), FutureLow: 90},
			params:    defaultParams(),
			wantErr:   ErrInvalidWindow,
		},
		{
			name:      "high below low",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: 90, FutureLow: 95},
			params:    defaultParams(),
			wantErr:   ErrInvalidWindow,
		},
		{
			name:      "zero stop loss",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: 101, FutureLow: 99},
			params:    Params{StopLossPct: 0, RiskReward: 3},
			wantErr:   ErrInvalidParams,
		},
		{
			name:      "negative risk reward",
			direction: domain.DirectionBullish,
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: 101, FutureLow: 99},
			params:    Params{StopLossPct: 0.05, RiskReward: -1},
			wantErr:   ErrInvalidParams,
		},
		{
			name:      "unknown direction",
			direction: domain.Direction("Sideways"),
			window:    domain.PriceWindow{EntryPrice: 100, FutureHigh: 101, FutureLow: 99},
			params:    defaultParams(),
			wantErr:   ErrUnknownDirection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.direction, tt.window, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParams_ID(t *testing.T) {
	tp := 0.06
	if got := (Params{StopLossPct: 0.05, RiskReward: 3}).ID(); got != "sl=0.05|rr=3" {
		t.Errorf("unexpected ID %q", got)
	}
	if got := (Params{StopLossPct: 0.02, RiskReward: 3, TakeProfitPct: &tp}).ID(); got != "sl=0.02|tp=0.06" {
		t.Errorf("unexpected ID %q", got)
	}
}

func TestNewParams(t *testing.T) {
	if _, err := NewParams(0.05, 3, nil); err != nil {
		t.Errorf("expected valid params, got %v", err)
	}
	if _, err := NewParams(-0.01, 3, nil); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
	bad := -0.1
	if _, err := NewParams(0.05, 3, &bad); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
}
