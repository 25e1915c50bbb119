package metrics

import (
	"math"
	"sort"

	"signal-backtest-lab/internal/domain"
)

// Summary holds aggregate statistics over classified trades.
// Rates are percentages of Total (classified trades); skipped signals
// are reported separately and never enter any denominator.
type Summary struct {
	// Counts
	Total     int
	Skipped   int
	Wins      int // outcome TP
	Losses    int // outcome SL
	Undecided int // outcome None

	// Rates (percent)
	WinRate       float64
	LossRate      float64
	UndecidedRate float64

	// Gain distribution (percent)
	AvgGainPct    float64
	MaxGainPct    float64
	MinGainPct    float64
	MedianGainPct float64
	P10GainPct    float64
	P90GainPct    float64
	GainStddev    float64

	// Drawdown
	AvgDrawdownPct float64

	// Order-dependent (input order)
	MaxConsecutiveLosses int
}

// Summarize computes statistics over trades in the given order.
// An empty input yields a zero Summary.
func Summarize(trades []*domain.TradeResult) Summary {
	n := len(trades)
	if n == 0 {
		return Summary{}
	}

	var s Summary
	s.Total = n

	gains := make([]float64, 0, n)
	drawdowns := make([]float64, 0, n)
	for _, t := range trades {
		switch t.Outcome {
		case domain.OutcomeTP:
			s.Wins++
		case domain.OutcomeSL:
			s.Losses++
		default:
			s.Undecided++
		}
		gains = append(gains, t.GainPct)
		drawdowns = append(drawdowns, t.DrawdownPct)
	}

	s.WinRate = computeRate(s.Wins, n)
	s.LossRate = computeRate(s.Losses, n)
	s.UndecidedRate = computeRate(s.Undecided, n)

	sortedGains := make([]float64, n)
	copy(sortedGains, gains)
	sort.Float64s(sortedGains)

	s.AvgGainPct = computeMean(gains)
	s.MinGainPct = sortedGains[0]
	s.MaxGainPct = sortedGains[n-1]
	s.MedianGainPct = computePercentile(sortedGains, 0.50)
	s.P10GainPct = computePercentile(sortedGains, 0.10)
	s.P90GainPct = computePercentile(sortedGains, 0.90)
	s.GainStddev = computeStddev(gains, s.AvgGainPct)
	s.AvgDrawdownPct = computeMean(drawdowns)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(trades)

	return s
}

// computeRate returns count / total * 100.
func computeRate(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxConsecutiveLosses finds the longest streak of SL outcomes.
func computeMaxConsecutiveLosses(trades []*domain.TradeResult) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.Outcome == domain.OutcomeSL {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
