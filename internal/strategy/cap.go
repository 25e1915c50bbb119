package strategy

// CapGain applies post-hoc stop-loss/take-profit levels to a realised trade.
// All arguments are percentages (2 = 2%). gainPct and drawdownPct are the
// direction-adjusted excursions recorded by Classify, so the rule is the
// same for both directions. Stop-loss is checked first:
//
//	drawdown >= sl  -> -sl
//	gain >= tp      -> tp
//	otherwise       -> gain
func CapGain(gainPct, drawdownPct, slPct, tpPct float64) float64 {
	if drawdownPct >= slPct {
		return -slPct
	}
	if gainPct >= tpPct {
		return tpPct
	}
	return gainPct
}
