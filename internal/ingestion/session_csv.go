package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"signal-backtest-lab/internal/domain"
)

// Session file columns.
var (
	SessionColumns       = []string{"timestamp", "coin", "direction", "raw_message"}
	PricedSessionColumns = []string{"timestamp", "coin", "direction", "entry_price", "future_high", "future_low", "raw_message"}
)

// ErrInvalidSession is returned when a session file lacks a required column.
var ErrInvalidSession = errors.New("invalid session file")

// ReadSessionCSV reads a session file. timestamp, coin, direction and
// raw_message are required; entry_price, future_high and future_low are
// optional, and a row gets a price window only when all three are set.
// Directions are kept as written so the runner can report unknown labels.
func ReadSessionCSV(r io.Reader) ([]*domain.PricedSignal, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidSession)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range SessionColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrInvalidSession, col)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []*domain.PricedSignal
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

		ps := &domain.PricedSignal{
			Signal: domain.Signal{
				Timestamp:  ts,
				Coin:       strings.ToUpper(get(rec, "coin")),
				Direction:  get(rec, "direction"),
				RawMessage: get(rec, "raw_message"),
			},
		}

		w, err := readWindow(get(rec, "entry_price"), get(rec, "future_high"), get(rec, "future_low"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ps.Window = w

		out = append(out, ps)
	}

	return out, nil
}

// WriteSessionCSV writes signals as a session file. When any signal has a
// price window the priced layout is used and unpriced rows leave the price
// columns empty.
func WriteSessionCSV(w io.Writer, signals []*domain.PricedSignal) error {
	priced := false
	for _, ps := range signals {
		if ps.Window != nil {
			priced = true
			break
		}
	}

	cw := csv.NewWriter(w)
	header := SessionColumns
	if priced {
		header = PricedSessionColumns
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, ps := range signals {
		s := ps.Signal
		ts := domain.FormatTimestamp(s.Timestamp)

		var rec []string
		if priced {
			entry, high, low := "", "", ""
			if ps.Window != nil {
				entry = formatFloat(ps.Window.EntryPrice)
				high = formatFloat(ps.Window.FutureHigh)
				low = formatFloat(ps.Window.FutureLow)
			}
			rec = []string{ts, s.Coin, s.Direction, entry, high, low, s.RawMessage}
		} else {
			rec = []string{ts, s.Coin, s.Direction, s.RawMessage}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func readWindow(entry, high, low string) (*domain.PriceWindow, error) {
	if entry == "" || high == "" || low == "" {
		return nil, nil
	}

	var w domain.PriceWindow
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"entry_price", entry, &w.EntryPrice},
		{"future_high", high, &w.FutureHigh},
		{"future_low", low, &w.FutureLow},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return &w, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
