package reporting

import (
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/metrics"
)

// Report is the backtest report of one session.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Session     domain.Session
	ParamsID    string // empty when the report covers every parameter set

	// Data Summary
	DateRangeStart time.Time
	DateRangeEnd   time.Time

	// Statistics
	Summary  metrics.Summary
	Outcomes OutcomeCounts
	Setups   SetupCounts
	Coins    CoinPerformance

	// Latest optimization run, best cell first (may be empty)
	Optimization []domain.OptimizationResult
}

// CoinPerformance holds the mean gain per coin, ascending by mean.
type CoinPerformance struct {
	Coins   []string  `json:"coins"`
	AvgGain []float64 `json:"avg_gain"`
}

// SetupCounts counts trades per direction label.
type SetupCounts struct {
	BuySetup  int `json:"Buy Setup"`
	SellSetup int `json:"Sell setup"`
}

// OutcomeCounts counts trades per outcome.
type OutcomeCounts struct {
	TP   int `json:"TP"`
	SL   int `json:"SL"`
	None int `json:"None"`
}

// DrawdownDistribution pairs each drawdown with its coin.
type DrawdownDistribution struct {
	Coins     []string  `json:"coins"`
	Drawdowns []float64 `json:"drawdowns"`
}

// EquitySeries is an equity curve paired with formatted timestamps.
// Point i is the balance after trade i; the starting balance is omitted.
type EquitySeries struct {
	Timestamps []string  `json:"timestamps"`
	Equity     []float64 `json:"equity"`
}

// Heatmap is a SL x TP pivot of total return.
// Values[i][j] is the return of (SLPcts[i], TPPcts[j]); nil when the cell is absent.
type Heatmap struct {
	SLPcts []float64
	TPPcts []float64
	Values [][]*float64
}
