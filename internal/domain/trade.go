package domain

import "time"

// Outcome classifies how a trade resolved inside the lookahead window.
type Outcome string

// Outcome constants. The string values are part of the persisted contract.
const (
	OutcomeTP   Outcome = "TP"
	OutcomeSL   Outcome = "SL"
	OutcomeNone Outcome = "None"
)

// ParseOutcome maps a persisted outcome label back to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(s) {
	case OutcomeTP, OutcomeSL, OutcomeNone:
		return Outcome(s), true
	default:
		return "", false
	}
}

// TradeResult is the simulated outcome of one signal.
// Created once per (Signal, PriceWindow) pair; never mutated.
// GainPct and DrawdownPct are signed percentages relative to EntryPrice
// and are kept at full precision; rounding happens at output boundaries.
type TradeResult struct {
	TradeID   string // deterministic hash, see idhash.ComputeTradeID
	SessionID string
	SignalID  string
	ParamsID  string // classifier parameter set, see strategy.Params.ID

	// Signal
	Timestamp  time.Time
	Coin       string
	Direction  Direction
	RawMessage string

	// Levels
	EntryPrice float64
	TPPrice    float64
	SLPrice    float64

	// Result
	GainPct     float64
	DrawdownPct float64
	Outcome     Outcome
}
