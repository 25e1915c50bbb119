package domain

import (
	"strings"
	"time"
)

// Direction is the side of a trade call.
type Direction string

// Direction constants (canonical spelling).
const (
	DirectionBullish Direction = "Bullish"
	DirectionBearish Direction = "Bearish"
)

// ParseDirection normalizes a direction label.
// Matching is case-insensitive and ignores surrounding whitespace,
// so "bullish", "BULLISH" and " Bullish " all map to DirectionBullish.
// Returns false for anything else.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bullish":
		return DirectionBullish, true
	case "bearish":
		return DirectionBearish, true
	default:
		return "", false
	}
}

// Signal is a directional trade call extracted from a channel message.
// Direction holds the label as it was received; use ParseDirection
// to interpret it.
type Signal struct {
	SignalID   string    // deterministic hash, see idhash.ComputeSignalID
	SessionID  string    // owning session
	Timestamp  time.Time // message time (UTC)
	Coin       string    // symbol, upper-case (e.g. "BTC")
	Direction  string    // "Bullish" | "Bearish" (raw label)
	RawMessage string    // original message text, passed through unmodified
}

// PriceWindow is the price excursion envelope over a fixed lookahead horizon
// following a signal's timestamp.
type PriceWindow struct {
	EntryPrice float64 // close of the entry candle
	FutureHigh float64 // highest high over the lookahead
	FutureLow  float64 // lowest low over the lookahead
}

// PricedSignal pairs a signal with its price window.
// Window is nil when no price data could be fetched.
type PricedSignal struct {
	Signal Signal
	Window *PriceWindow
}
