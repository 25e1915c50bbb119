package reporting

import (
	"fmt"
	"strings"
	"time"

	"signal-backtest-lab/internal/numfmt"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Session.Name))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.ParamsID != "" {
		sb.WriteString(fmt.Sprintf("Parameters: `%s`\n\n", r.ParamsID))
	}

	// Data Summary
	s := r.Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Signals | %d |\n", r.Session.SignalCount))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.Total))
	sb.WriteString(fmt.Sprintf("| Skipped | %d |\n", s.Skipped))
	if !r.DateRangeStart.IsZero() {
		sb.WriteString(fmt.Sprintf("| Date Range | %s .. %s |\n",
			r.DateRangeStart.Format(time.RFC3339), r.DateRangeEnd.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Backtest Summary
	sb.WriteString("## Backtest Summary\n\n")
	if s.Total == 0 {
		sb.WriteString("No trades available.\n\n")
	} else {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Win Rate (TP) | %s%% |\n", numfmt.Fixed(s.WinRate, 2)))
		sb.WriteString(fmt.Sprintf("| Loss Rate (SL) | %s%% |\n", numfmt.Fixed(s.LossRate, 2)))
		sb.WriteString(fmt.Sprintf("| No Decision | %s%% |\n", numfmt.Fixed(s.UndecidedRate, 2)))
		sb.WriteString(fmt.Sprintf("| Avg Gain | %s%% |\n", numfmt.Fixed(s.AvgGainPct, 2)))
		sb.WriteString(fmt.Sprintf("| Max Gain | %s%% |\n", numfmt.Fixed(s.MaxGainPct, 2)))
		sb.WriteString(fmt.Sprintf("| Min Gain | %s%% |\n", numfmt.Fixed(s.MinGainPct, 2)))
		sb.WriteString(fmt.Sprintf("| Median Gain | %s%% |\n", numfmt.Fixed(s.MedianGainPct, 2)))
		sb.WriteString(fmt.Sprintf("| Avg Drawdown | %s%% |\n", numfmt.Fixed(s.AvgDrawdownPct, 2)))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLosses))
		sb.WriteString("\n")
	}

	// Outcomes and setups
	sb.WriteString("## Outcomes\n\n")
	sb.WriteString("| TP | SL | None | Buy Setup | Sell setup |\n")
	sb.WriteString("|----|----|------|-----------|------------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d |\n\n",
		r.Outcomes.TP, r.Outcomes.SL, r.Outcomes.None, r.Setups.BuySetup, r.Setups.SellSetup))

	// Coin Performance
	sb.WriteString("## Coin Performance\n\n")
	if len(r.Coins.Coins) > 0 {
		sb.WriteString("| Coin | Avg Gain % |\n")
		sb.WriteString("|------|------------|\n")
		for i, coin := range r.Coins.Coins {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", coin, numfmt.Fixed(r.Coins.AvgGain[i], 2)))
		}
	} else {
		sb.WriteString("No coin data available.\n")
	}
	sb.WriteString("\n")

	// Optimization
	sb.WriteString("## SL/TP Optimization\n\n")
	if len(r.Optimization) > 0 {
		sb.WriteString("| SL% | TP% | Final Balance | Total Return % |\n")
		sb.WriteString("|-----|-----|---------------|----------------|\n")
		for _, c := range r.Optimization {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				numfmt.Plain(c.SLPct, 4), numfmt.Plain(c.TPPct, 4),
				numfmt.Fixed(c.FinalBalance, 2), numfmt.Fixed(c.TotalReturnPct, 2)))
		}
		sb.WriteString("\n")
		sb.WriteString(RenderHeatmapMarkdown(HeatmapOf(r.Optimization)))
	} else {
		sb.WriteString("No optimization runs available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderHeatmapMarkdown renders the SL x TP total-return pivot (1 decimal).
func RenderHeatmapMarkdown(h Heatmap) string {
	var sb strings.Builder

	sb.WriteString("### Total Return % (SL vs TP)\n\n")
	if len(h.SLPcts) == 0 {
		sb.WriteString("No cells.\n")
		return sb.String()
	}

	sb.WriteString("| SL% \\ TP% |")
	for _, tp := range h.TPPcts {
		sb.WriteString(fmt.Sprintf(" %s |", numfmt.Plain(tp, 4)))
	}
	sb.WriteString("\n|---|")
	for range h.TPPcts {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for i, sl := range h.SLPcts {
		sb.WriteString(fmt.Sprintf("| %s |", numfmt.Plain(sl, 4)))
		for _, v := range h.Values[i] {
			if v == nil {
				sb.WriteString(" - |")
				continue
			}
			sb.WriteString(fmt.Sprintf(" %s |", numfmt.Fixed(*v, 1)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
