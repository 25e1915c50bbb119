package domain

import "time"

// OptimizationResult is one cell of a stop-loss/take-profit grid sweep.
// SLPct and TPPct are expressed in percent (1.5 = 1.5%).
type OptimizationResult struct {
	RunID          string
	SessionID      string
	SLPct          float64
	TPPct          float64
	InitialBalance float64
	FinalBalance   float64
	TotalReturnPct float64 // (final - initial) / initial * 100
	Trades         int     // rows that took part in compounding
	EquityCurve    []float64
	CreatedAt      time.Time
}
