package equity

import (
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// NormalizedStart is the starting equity of a capped replay.
const NormalizedStart = 100.0

// CappedParams configures SimulateCapped. All values are percentages:
// StopLossPct 2 caps losses at -2%, RiskPerTradePct 1 risks 1% of equity.
type CappedParams struct {
	StopLossPct     float64
	TakeProfitPct   float64
	RiskPerTradePct float64
}

// Clamp bounds a gain to [-stopLossPct, takeProfitPct].
func Clamp(gainPct, stopLossPct, takeProfitPct float64) float64 {
	if gainPct < -stopLossPct {
		return -stopLossPct
	}
	if gainPct > takeProfitPct {
		return takeProfitPct
	}
	return gainPct
}

// SimulateCapped clamps each gain to the stop-loss/take-profit levels and
// replays the adjusted gains from a normalized equity of 100.
// A trade counts as winning when its adjusted gain is > 0.
// Empty input returns a zero CappedReplay without validating params.
func SimulateCapped(gains []float64, p CappedParams) (domain.CappedReplay, error) {
	if len(gains) == 0 {
		return domain.CappedReplay{EquityCurve: []float64{}}, nil
	}

	if !isFinite(p.StopLossPct) || !isFinite(p.TakeProfitPct) || p.StopLossPct < 0 || p.TakeProfitPct < 0 {
		return domain.CappedReplay{}, fmt.Errorf("%w: sl=%v tp=%v", ErrInvalidLevels, p.StopLossPct, p.TakeProfitPct)
	}
	if !isFinite(p.RiskPerTradePct) || p.RiskPerTradePct <= 0 {
		return domain.CappedReplay{}, fmt.Errorf("%w: %v", ErrInvalidRisk, p.RiskPerTradePct)
	}

	adjusted := make([]float64, len(gains))
	winning := 0
	for i, g := range gains {
		if !isFinite(g) {
			return domain.CappedReplay{}, fmt.Errorf("%w: gains[%d]=%v", ErrInvalidGain, i, g)
		}
		adjusted[i] = Clamp(g, p.StopLossPct, p.TakeProfitPct)
		if adjusted[i] > 0 {
			winning++
		}
	}

	points, err := Simulate(adjusted, NormalizedStart, p.RiskPerTradePct/100)
	if err != nil {
		return domain.CappedReplay{}, err
	}
	curve := domain.Balances(points)
	final := curve[len(curve)-1]

	return domain.CappedReplay{
		TotalTrades:   len(gains),
		WinningTrades: winning,
		Accuracy:      float64(winning) / float64(len(gains)) * 100,
		NetGainPct:    (final - NormalizedStart) / NormalizedStart * 100,
		EquityCurve:   curve,
	}, nil
}
