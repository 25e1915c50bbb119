// Package equity replays per-trade gains through a compounding account.
package equity

import (
	"errors"
	"fmt"
	"math"

	"signal-backtest-lab/internal/domain"
)

// Simulator errors
var (
	ErrInvalidRisk    = errors.New("risk per trade must be finite and > 0")
	ErrInvalidBalance = errors.New("starting balance must be finite and > 0")
	ErrInvalidGain    = errors.New("gain must be finite")
	ErrInvalidLevels  = errors.New("stop-loss/take-profit levels must be finite and >= 0")
	ErrEmptyGrid      = errors.New("optimizer grid has no stop-loss or take-profit values")
	ErrInvalidGrid    = errors.New("optimizer grid values must be finite, >= 0 and unique")
)

// Simulate replays gains (percent) in input order.
// riskPerTrade is a fraction of current balance (0.01 = 1%).
//
//	balance[0] = startingBalance
//	balance[i] = balance[i-1] + balance[i-1]*riskPerTrade*(gains[i-1]/100)
//
// The result has len(gains)+1 points.
func Simulate(gains []float64, startingBalance, riskPerTrade float64) ([]domain.EquityPoint, error) {
	if err := validateAccount(startingBalance, riskPerTrade); err != nil {
		return nil, err
	}

	points := make([]domain.EquityPoint, 0, len(gains)+1)
	balance := startingBalance
	points = append(points, domain.EquityPoint{Index: 0, Balance: balance})

	for i, g := range gains {
		if !isFinite(g) {
			return nil, fmt.Errorf("%w: gains[%d]=%v", ErrInvalidGain, i, g)
		}
		balance = step(balance, riskPerTrade, g)
		points = append(points, domain.EquityPoint{Index: i + 1, Balance: balance})
	}

	return points, nil
}

// step applies one trade to a balance.
func step(balance, riskPerTrade, gainPct float64) float64 {
	return balance + balance*riskPerTrade*(gainPct/100)
}

func validateAccount(balance, risk float64) error {
	if !isFinite(balance) || balance <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBalance, balance)
	}
	if !isFinite(risk) || risk <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRisk, risk)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
