package strategy

// NewParams builds validated Params.
// A nil takeProfitPct derives the take-profit distance from riskReward.
func NewParams(stopLossPct, riskReward float64, takeProfitPct *float64) (Params, error) {
	p := Params{
		StopLossPct:   stopLossPct,
		RiskReward:    riskReward,
		TakeProfitPct: takeProfitPct,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
