package reporting

import (
	"math"
	"sort"
	"strings"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/equity"
)

// CoinPerformanceOf computes the mean gain per coin, sorted ascending by mean
// (coin name on ties). Non-finite gains are ignored.
func CoinPerformanceOf(results []*domain.TradeResult) CoinPerformance {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[string]*acc)
	for _, r := range results {
		if r.Coin == "" || !isFinite(r.GainPct) {
			continue
		}
		a := groups[r.Coin]
		if a == nil {
			a = &acc{}
			groups[r.Coin] = a
		}
		a.sum += r.GainPct
		a.n++
	}

	type row struct {
		coin string
		mean float64
	}
	rows := make([]row, 0, len(groups))
	for coin, a := range groups {
		rows = append(rows, row{coin: coin, mean: a.sum / float64(a.n)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].mean != rows[j].mean {
			return rows[i].mean < rows[j].mean
		}
		return rows[i].coin < rows[j].coin
	})

	out := CoinPerformance{
		Coins:   make([]string, len(rows)),
		AvgGain: make([]float64, len(rows)),
	}
	for i, r := range rows {
		out.Coins[i] = r.coin
		out.AvgGain[i] = r.mean
	}
	return out
}

// SetupCountsOf counts bullish and bearish trades (case-insensitive labels).
func SetupCountsOf(results []*domain.TradeResult) SetupCounts {
	var c SetupCounts
	for _, r := range results {
		switch strings.ToLower(strings.TrimSpace(string(r.Direction))) {
		case "bullish":
			c.BuySetup++
		case "bearish":
			c.SellSetup++
		}
	}
	return c
}

// OutcomeCountsOf counts trades per outcome.
func OutcomeCountsOf(results []*domain.TradeResult) OutcomeCounts {
	var c OutcomeCounts
	for _, r := range results {
		switch r.Outcome {
		case domain.OutcomeTP:
			c.TP++
		case domain.OutcomeSL:
			c.SL++
		case domain.OutcomeNone:
			c.None++
		}
	}
	return c
}

// GainDistribution returns every finite gain, in input order.
func GainDistribution(results []*domain.TradeResult) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		if isFinite(r.GainPct) {
			out = append(out, r.GainPct)
		}
	}
	return out
}

// DrawdownDistributionOf returns every finite drawdown with its coin.
// Rows without a coin are dropped.
func DrawdownDistributionOf(results []*domain.TradeResult) DrawdownDistribution {
	out := DrawdownDistribution{
		Coins:     make([]string, 0, len(results)),
		Drawdowns: make([]float64, 0, len(results)),
	}
	for _, r := range results {
		if r.Coin == "" || !isFinite(r.DrawdownPct) {
			continue
		}
		out.Coins = append(out.Coins, r.Coin)
		out.Drawdowns = append(out.Drawdowns, r.DrawdownPct)
	}
	return out
}

// EquitySeriesOf replays gains in ascending timestamp order (input order on
// ties) from capital and labels each point with its trade time.
// Trades with a non-finite gain are left out.
func EquitySeriesOf(results []*domain.TradeResult, capital, riskPerTrade float64) (EquitySeries, error) {
	sorted := make([]*domain.TradeResult, 0, len(results))
	for _, r := range results {
		if isFinite(r.GainPct) {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	gains := make([]float64, len(sorted))
	labels := make([]string, len(sorted))
	for i, r := range sorted {
		gains[i] = r.GainPct
		labels[i] = r.Timestamp.UTC().Format(domain.ChartTimeLayout)
	}

	points, err := equity.Simulate(gains, capital, riskPerTrade)
	if err != nil {
		return EquitySeries{}, err
	}

	return EquitySeries{
		Timestamps: labels,
		Equity:     domain.Balances(points[1:]),
	}, nil
}

// HeatmapOf pivots optimization cells into a SL x TP grid, both axes ascending.
func HeatmapOf(cells []domain.OptimizationResult) Heatmap {
	slSet := make(map[float64]struct{})
	tpSet := make(map[float64]struct{})
	for _, c := range cells {
		slSet[c.SLPct] = struct{}{}
		tpSet[c.TPPct] = struct{}{}
	}

	h := Heatmap{
		SLPcts: sortedKeys(slSet),
		TPPcts: sortedKeys(tpSet),
	}
	slIdx := indexOf(h.SLPcts)
	tpIdx := indexOf(h.TPPcts)

	h.Values = make([][]*float64, len(h.SLPcts))
	for i := range h.Values {
		h.Values[i] = make([]*float64, len(h.TPPcts))
	}
	for _, c := range cells {
		v := c.TotalReturnPct
		h.Values[slIdx[c.SLPct]][tpIdx[c.TPPct]] = &v
	}
	return h
}

func sortedKeys(m map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}

func indexOf(vs []float64) map[float64]int {
	m := make(map[float64]int, len(vs))
	for i, v := range vs {
		m[v] = i
	}
	return m
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
