package strategy

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"signal-backtest-lab/internal/domain"
)

// Classifier errors
var (
	ErrInvalidEntryPrice = errors.New("entry price must be finite and > 0")
	ErrInvalidWindow     = errors.New("price window high/low must be finite with high >= low")
	ErrInvalidParams     = errors.New("invalid classifier parameters")
	ErrUnknownDirection  = errors.New("unknown direction")
)

// Params configures stop-loss/take-profit levels.
// StopLossPct is a fraction of entry (0.05 = 5%).
// Take-profit distance is StopLossPct*RiskReward unless TakeProfitPct is set,
// in which case it is used directly (also a fraction).
type Params struct {
	StopLossPct   float64
	RiskReward    float64
	TakeProfitPct *float64
}

// Validate checks that parameters describe usable levels.
func (p Params) Validate() error {
	if !isFinite(p.StopLossPct) || p.StopLossPct <= 0 {
		return fmt.Errorf("%w: stop_loss_pct must be > 0, got %v", ErrInvalidParams, p.StopLossPct)
	}
	if p.TakeProfitPct != nil {
		if !isFinite(*p.TakeProfitPct) || *p.TakeProfitPct < 0 {
			return fmt.Errorf("%w: take_profit_pct must be >= 0, got %v", ErrInvalidParams, *p.TakeProfitPct)
		}
		return nil
	}
	if !isFinite(p.RiskReward) || p.RiskReward < 0 {
		return fmt.Errorf("%w: risk_reward must be >= 0, got %v", ErrInvalidParams, p.RiskReward)
	}
	return nil
}

// TakeProfitDistance returns the take-profit distance as a fraction of entry.
func (p Params) TakeProfitDistance() float64 {
	if p.TakeProfitPct != nil {
		return *p.TakeProfitPct
	}
	return p.StopLossPct * p.RiskReward
}

// ID returns a stable identifier for the parameter set.
func (p Params) ID() string {
	sl := strconv.FormatFloat(p.StopLossPct, 'g', -1, 64)
	if p.TakeProfitPct != nil {
		return "sl=" + sl + "|tp=" + strconv.FormatFloat(*p.TakeProfitPct, 'g', -1, 64)
	}
	return "sl=" + sl + "|rr=" + strconv.FormatFloat(p.RiskReward, 'g', -1, 64)
}

// Classification holds the classifier output for a single trade.
// Percentages are signed, relative to EntryPrice and unrounded.
type Classification struct {
	EntryPrice  float64
	TPPrice     float64
	SLPrice     float64
	GainPct     float64
	DrawdownPct float64
	Outcome     domain.Outcome
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
