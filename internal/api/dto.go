package api

import (
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/numfmt"
)

type sessionDTO struct {
	SessionID   string    `json:"session_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SignalCount int       `json:"signal_count"`
}

func toSessionDTO(s *domain.Session) sessionDTO {
	return sessionDTO{
		SessionID:   s.SessionID,
		Name:        s.Name,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		SignalCount: s.SignalCount,
	}
}

// tradeDTO is the external trade result contract.
type tradeDTO struct {
	Timestamp   string  `json:"timestamp"`
	Coin        string  `json:"coin"`
	Direction   string  `json:"direction"`
	EntryPrice  float64 `json:"entry_price"`
	TPPrice     float64 `json:"TP_price"`
	SLPrice     float64 `json:"SL_price"`
	GainPct     float64 `json:"gain_pct"`
	DrawdownPct float64 `json:"drawdown_pct"`
	Outcome     string  `json:"outcome"`
	RawMessage  string  `json:"raw_message"`
}

func toTradeDTOs(results []*domain.TradeResult) []tradeDTO {
	out := make([]tradeDTO, len(results))
	for i, r := range results {
		out[i] = tradeDTO{
			Timestamp:   domain.FormatTimestamp(r.Timestamp),
			Coin:        r.Coin,
			Direction:   string(r.Direction),
			EntryPrice:  r.EntryPrice,
			TPPrice:     r.TPPrice,
			SLPrice:     r.SLPrice,
			GainPct:     numfmt.Round(r.GainPct, 2),
			DrawdownPct: numfmt.Round(r.DrawdownPct, 2),
			Outcome:     string(r.Outcome),
			RawMessage:  r.RawMessage,
		}
	}
	return out
}

type summaryDTO struct {
	Total                int     `json:"total"`
	Skipped              int     `json:"skipped"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	Undecided            int     `json:"undecided"`
	WinRate              float64 `json:"win_rate"`
	LossRate             float64 `json:"loss_rate"`
	UndecidedRate        float64 `json:"undecided_rate"`
	AvgGainPct           float64 `json:"avg_gain_pct"`
	MaxGainPct           float64 `json:"max_gain_pct"`
	MinGainPct           float64 `json:"min_gain_pct"`
	AvgDrawdownPct       float64 `json:"avg_drawdown_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

func toSummaryDTO(s metrics.Summary) summaryDTO {
	return summaryDTO{
		Total:                s.Total,
		Skipped:              s.Skipped,
		Wins:                 s.Wins,
		Losses:               s.Losses,
		Undecided:            s.Undecided,
		WinRate:              numfmt.Round(s.WinRate, 2),
		LossRate:             numfmt.Round(s.LossRate, 2),
		UndecidedRate:        numfmt.Round(s.UndecidedRate, 2),
		AvgGainPct:           numfmt.Round(s.AvgGainPct, 2),
		MaxGainPct:           numfmt.Round(s.MaxGainPct, 2),
		MinGainPct:           numfmt.Round(s.MinGainPct, 2),
		AvgDrawdownPct:       numfmt.Round(s.AvgDrawdownPct, 2),
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
	}
}

// optimizationRowDTO is one row of the optimizer table.
type optimizationRowDTO struct {
	SLPct          float64 `json:"SL%"`
	TPPct          float64 `json:"TP%"`
	FinalBalance   float64 `json:"Final Balance"`
	TotalReturnPct float64 `json:"Total Return %"`
}

func toOptimizationRow(c domain.OptimizationResult) optimizationRowDTO {
	return optimizationRowDTO{
		SLPct:          c.SLPct,
		TPPct:          c.TPPct,
		FinalBalance:   numfmt.Round(c.FinalBalance, 2),
		TotalReturnPct: numfmt.Round(c.TotalReturnPct, 2),
	}
}

func toOptimizationRows(cells []domain.OptimizationResult) []optimizationRowDTO {
	out := make([]optimizationRowDTO, len(cells))
	for i, c := range cells {
		out[i] = toOptimizationRow(c)
	}
	return out
}

// backtestRequest overrides the default classifier parameters.
type backtestRequest struct {
	StopLossPct   *float64 `json:"stop_loss_pct"`
	RiskReward    *float64 `json:"risk_reward"`
	TakeProfitPct *float64 `json:"take_profit_pct"`
}

// simulateRequest is a capped replay request. Percent values throughout.
type simulateRequest struct {
	Gains           []float64 `json:"gains"`
	StopLossPct     float64   `json:"stop_loss_pct"`
	TakeProfitPct   float64   `json:"take_profit_pct"`
	RiskPerTradePct float64   `json:"risk_per_trade_pct"`
}

type simulateResponse struct {
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	Accuracy      float64   `json:"accuracy"`
	NetGainPct    float64   `json:"net_gain_pct"`
	EquityCurve   []float64 `json:"equity_curve"`
}

// equityCurvePlaces keeps sub-cent moves of a curve normalised to 100 visible.
const equityCurvePlaces = 4

func toSimulateResponse(r domain.CappedReplay) simulateResponse {
	return simulateResponse{
		TotalTrades:   r.TotalTrades,
		WinningTrades: r.WinningTrades,
		Accuracy:      numfmt.Round(r.Accuracy, 2),
		NetGainPct:    numfmt.Round(r.NetGainPct, 2),
		EquityCurve:   numfmt.RoundAll(r.EquityCurve, equityCurvePlaces),
	}
}

// optimizeRequest runs a grid sweep over stored results. Omitted fields
// fall back to the server defaults.
type optimizeRequest struct {
	Session        string    `json:"session"`
	ParamsID       string    `json:"params_id"`
	SLValues       []float64 `json:"sl_values"`
	TPValues       []float64 `json:"tp_values"`
	InitialBalance float64   `json:"initial_balance"`
	RiskPerTrade   float64   `json:"risk_per_trade"`
}

type optimizeResponse struct {
	RunID   string               `json:"run_id"`
	Session string               `json:"session"`
	Results []optimizationRowDTO `json:"results"`
}

// streamMessage is one websocket frame of /ws/optimize.
type streamMessage struct {
	Type    string               `json:"type"` // "cell", "done" or "error"
	Cell    *optimizationRowDTO  `json:"cell,omitempty"`
	RunID   string               `json:"run_id,omitempty"`
	Results []optimizationRowDTO `json:"results,omitempty"`
	Error   string               `json:"error,omitempty"`
}
