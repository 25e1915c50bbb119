package strategy

import (
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// Classify resolves one trade against its price window.
//
// Bullish: sl = entry*(1-slPct), tp = entry*(1+tpDist).
// Bearish: sl = entry*(1+slPct), tp = entry*(1-tpDist).
//
// The stop-loss check runs before the take-profit check, so a window that
// crosses both levels resolves to SL. The window carries no intrabar
// ordering, so this order is fixed.
//
// Undecided trades report the favourable excursion as gain.
// Drawdown is the adverse excursion and is computed for every outcome.
func Classify(direction domain.Direction, w domain.PriceWindow, p Params) (Classification, error) {
	if err := p.Validate(); err != nil {
		return Classification{}, err
	}
	if err := validateWindow(w); err != nil {
		return Classification{}, err
	}

	entry := w.EntryPrice
	slPct := p.StopLossPct
	tpDist := p.TakeProfitDistance()

	var c Classification
	c.EntryPrice = entry

	switch direction {
	case domain.DirectionBullish:
		c.SLPrice = entry * (1 - slPct)
		c.TPPrice = entry * (1 + tpDist)
		c.DrawdownPct = (entry - w.FutureLow) / entry * 100

		// Check exit conditions (order matters)
		switch {
		case w.FutureLow <= c.SLPrice:
			c.Outcome = domain.OutcomeSL
			c.GainPct = -slPct * 100
		case w.FutureHigh >= c.TPPrice:
			c.Outcome = domain.OutcomeTP
			c.GainPct = tpDist * 100
		default:
			c.Outcome = domain.OutcomeNone
			c.GainPct = (w.FutureHigh - entry) / entry * 100
		}

	case domain.DirectionBearish:
		c.SLPrice = entry * (1 + slPct)
		c.TPPrice = entry * (1 - tpDist)
		c.DrawdownPct = (w.FutureHigh - entry) / entry * 100

		switch {
		case w.FutureHigh >= c.SLPrice:
			c.Outcome = domain.OutcomeSL
			c.GainPct = -slPct * 100
		case w.FutureLow <= c.TPPrice:
			c.Outcome = domain.OutcomeTP
			c.GainPct = tpDist * 100
		default:
			c.Outcome = domain.OutcomeNone
			c.GainPct = (entry - w.FutureLow) / entry * 100
		}

	default:
		return Classification{}, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	return c, nil
}

func validateWindow(w domain.PriceWindow) error {
	if !isFinite(w.EntryPrice) || w.EntryPrice <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidEntryPrice, w.EntryPrice)
	}
	if !isFinite(w.FutureHigh) || !isFinite(w.FutureLow) || w.FutureHigh < w.FutureLow {
		return fmt.Errorf("%w: high=%v low=%v", ErrInvalidWindow, w.FutureHigh, w.FutureLow)
	}
	return nil
}
