// Package pricing attaches historical price windows to signals.
package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"signal-backtest-lab/internal/observability"
)

// DefaultBaseURL is the public Binance spot REST endpoint.
const DefaultBaseURL = "https://api.binance.com"

// maxKlinesPerRequest is the page size limit of /api/v3/klines.
const maxKlinesPerRequest = 1000

// Kline is one OHLCV candle.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// KlineSource provides historical candles.
type KlineSource interface {
	// Klines returns candles of symbol opened within [start, end], oldest first.
	Klines(ctx context.Context, symbol, interval string, start, end time.Time) ([]Kline, error)
}

// BinanceClient reads public market data. No API key is needed.
type BinanceClient struct {
	baseURL string
	http    *http.Client
}

// BinanceOptions contains configuration for creating a BinanceClient.
type BinanceOptions struct {
	BaseURL string        // defaults to DefaultBaseURL
	Timeout time.Duration // defaults to 10s
}

// NewBinanceClient creates a new client.
func NewBinanceClient(opts BinanceOptions) *BinanceClient {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BinanceClient{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is the error body returned by Binance.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Klines implements KlineSource, following pagination until end is reached.
func (c *BinanceClient) Klines(ctx context.Context, symbol, interval string, start, end time.Time) (klines []Kline, err error) {
	defer func(began time.Time) {
		observability.RecordPriceFetch(time.Since(began).Seconds(), err)
	}(time.Now())

	from := start.UnixMilli()
	to := end.UnixMilli()

	for from <= to {
		page, err := c.fetchPage(ctx, symbol, interval, from, to)
		if err != nil {
			return nil, err
		}
		klines = append(klines, page...)

		if len(page) < maxKlinesPerRequest {
			break
		}
		from = page[len(page)-1].OpenTime.UnixMilli() + 1
	}

	return klines, nil
}

func (c *BinanceClient) fetchPage(ctx context.Context, symbol, interval string, from, to int64) ([]Kline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(from, 10))
	q.Set("endTime", strconv.FormatInt(to, 10))
	q.Set("limit", strconv.Itoa(maxKlinesPerRequest))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build klines request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines %s", symbol)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read klines %s", symbol)
	}

	if resp.StatusCode/100 != 2 {
		var apiErr apiError
		if sonic.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("binance %s: http %d: code=%d msg=%s", symbol, resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("binance %s: http %d: %s", symbol, resp.StatusCode, string(body))
	}

	var rows [][]interface{}
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrapf(err, "decode klines %s", symbol)
	}

	klines := make([]Kline, 0, len(rows))
	for i, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			return nil, errors.Wrapf(err, "kline %d of %s", i, symbol)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
// Prices arrive as decimal strings.
func parseKline(row []interface{}) (Kline, error) {
	if len(row) < 6 {
		return Kline{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}

	openMs, ok := row[0].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("open time: unexpected type %T", row[0])
	}

	var vals [5]float64
	for i := range vals {
		v, err := toFloat(row[i+1])
		if err != nil {
			return Kline{}, err
		}
		vals[i] = v
	}

	return Kline{
		OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected price type %T", v)
	}
}

var _ KlineSource = (*BinanceClient)(nil)
