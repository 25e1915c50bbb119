package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

// ErrNoCandles is returned when the exchange has no candles for the window.
var ErrNoCandles = errors.New("no candles in lookahead window")

// Symbol maps a coin to its USDT spot pair ("btc" -> "BTCUSDT").
func Symbol(coin string) string {
	return strings.ToUpper(strings.TrimSpace(coin)) + "USDT"
}

// WindowFromKlines builds a price window: entry is the close of the first
// candle, high and low are the extremes over all candles.
func WindowFromKlines(klines []Kline) (domain.PriceWindow, error) {
	if len(klines) == 0 {
		return domain.PriceWindow{}, ErrNoCandles
	}

	w := domain.PriceWindow{
		EntryPrice: klines[0].Close,
		FutureHigh: klines[0].High,
		FutureLow:  klines[0].Low,
	}
	for _, k := range klines[1:] {
		if k.High > w.FutureHigh {
			w.FutureHigh = k.High
		}
		if k.Low < w.FutureLow {
			w.FutureLow = k.Low
		}
	}
	return w, nil
}

// WindowFetcher resolves the price window following a signal.
type WindowFetcher struct {
	source    KlineSource
	interval  string
	lookahead time.Duration
}

// NewWindowFetcher creates a fetcher over [ts, ts+lookahead] candles.
func NewWindowFetcher(source KlineSource, interval string, lookahead time.Duration) *WindowFetcher {
	return &WindowFetcher{source: source, interval: interval, lookahead: lookahead}
}

// WindowFor fetches the window of sig. Returns ErrNoCandles when the pair has
// no data for the period.
func (f *WindowFetcher) WindowFor(ctx context.Context, sig domain.Signal) (domain.PriceWindow, error) {
	start := sig.Timestamp.UTC()
	klines, err := f.source.Klines(ctx, Symbol(sig.Coin), f.interval, start, start.Add(f.lookahead))
	if err != nil {
		return domain.PriceWindow{}, err
	}
	return WindowFromKlines(klines)
}
