package domain

// EquityPoint is one balance observation on an equity curve.
// Index 0 is the starting balance; each later point follows one trade.
type EquityPoint struct {
	Index   int
	Balance float64
}

// CappedReplay is the result of replaying clamped gains through a
// normalized account that starts at 100.
type CappedReplay struct {
	TotalTrades   int
	WinningTrades int       // adjusted gain > 0
	Accuracy      float64   // winning / total * 100
	NetGainPct    float64   // (final - 100) / 100 * 100
	EquityCurve   []float64 // starts at 100; empty when there were no trades
}

// Balances extracts the balance values of an equity curve.
func Balances(points []EquityPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Balance
	}
	return out
}
