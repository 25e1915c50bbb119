package reporting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/numfmt"
)

// TradeResultColumns is the column order of a trade results file.
var TradeResultColumns = []string{
	"timestamp", "coin", "direction", "entry_price", "TP_price", "SL_price",
	"gain_pct", "drawdown_pct", "outcome", "raw_message",
}

// OptimizationColumns is the column order of an optimization summary file.
var OptimizationColumns = []string{"SL%", "TP%", "Final Balance", "Total Return %"}

// ErrMissingColumn is returned when a results file lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RenderTradeResultsCSV renders trade results. Gain and drawdown are rounded
// to 2 decimals; prices are written at full precision.
func RenderTradeResultsCSV(results []*domain.TradeResult) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(TradeResultColumns); err != nil {
		return "", err
	}
	for _, r := range results {
		rec := []string{
			domain.FormatTimestamp(r.Timestamp),
			r.Coin,
			string(r.Direction),
			formatPrice(r.EntryPrice),
			formatPrice(r.TPPrice),
			formatPrice(r.SLPrice),
			numfmt.Plain(r.GainPct, 2),
			numfmt.Plain(r.DrawdownPct, 2),
			string(r.Outcome),
			r.RawMessage,
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ParseTradeResultsCSV reads a trade results file. Columns are matched by
// header name; timestamp, coin, direction, gain_pct and drawdown_pct are
// required. Malformed numbers or timestamps fail with the offending line.
// Directions are canonicalized when recognized and kept verbatim otherwise.
func ParseTradeResultsCSV(r io.Reader) ([]*domain.TradeResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range []string{"timestamp", "coin", "direction", "gain_pct", "drawdown_pct"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var out []*domain.TradeResult
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := domain.ParseTimestamp(get(rec, "timestamp"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		res := &domain.TradeResult{
			Timestamp:  ts,
			Coin:       strings.ToUpper(strings.TrimSpace(get(rec, "coin"))),
			Direction:  domain.Direction(strings.TrimSpace(get(rec, "direction"))),
			RawMessage: get(rec, "raw_message"),
		}
		if d, ok := domain.ParseDirection(get(rec, "direction")); ok {
			res.Direction = d
		}
		if o, ok := domain.ParseOutcome(strings.TrimSpace(get(rec, "outcome"))); ok {
			res.Outcome = o
		}

		fields := []struct {
			col      string
			dst      *float64
			required bool
		}{
			{"gain_pct", &res.GainPct, true},
			{"drawdown_pct", &res.DrawdownPct, true},
			{"entry_price", &res.EntryPrice, false},
			{"TP_price", &res.TPPrice, false},
			{"SL_price", &res.SLPrice, false},
		}
		for _, f := range fields {
			raw := strings.TrimSpace(get(rec, f.col))
			if raw == "" && !f.required {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, f.col, err)
			}
			*f.dst = v
		}

		out = append(out, res)
	}

	return out, nil
}

// RenderOptimizationCSV renders optimization cells in the given order,
// balances and returns rounded to 2 decimals.
func RenderOptimizationCSV(cells []domain.OptimizationResult) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(OptimizationColumns); err != nil {
		return "", err
	}
	for _, c := range cells {
		rec := []string{
			numfmt.Plain(c.SLPct, 4),
			numfmt.Plain(c.TPPct, 4),
			numfmt.Plain(c.FinalBalance, 2),
			numfmt.Plain(c.TotalReturnPct, 2),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
