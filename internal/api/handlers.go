package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/strategy"
)

// Chart names served under /api/chart/:name/:chart.
const (
	ChartEquityCurve          = "equity_curve"
	ChartWinLoss              = "win_loss"
	ChartGainDistribution     = "gain_distribution"
	ChartDrawdownDistribution = "drawdown_distribution"
	ChartCoinPerformance      = "coin_performance"
	ChartOutcomes             = "outcomes"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.orch.Sessions(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]sessionDTO, len(sessions))
	for i, sess := range sessions {
		out[i] = toSessionDTO(sess)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// handleSession returns a session with the summary of its stored results.
func (s *Server) handleSession(c *gin.Context) {
	session, results, err := s.orch.Results(c.Request.Context(), c.Param("name"), c.Query("params_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  toSessionDTO(session),
		"summary":  toSummaryDTO(metrics.Summarize(results)),
		"outcomes": reporting.OutcomeCountsOf(results),
		"setups":   reporting.SetupCountsOf(results),
		"trades":   toTradeDTOs(results),
	})
}

// handleBacktest runs the classifier over the session and drops its cached charts.
func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	params := s.defaults.Params
	if req.StopLossPct != nil {
		params.StopLossPct = *req.StopLossPct
	}
	if req.RiskReward != nil {
		params.RiskReward = *req.RiskReward
	}
	if req.TakeProfitPct != nil {
		params.TakeProfitPct = req.TakeProfitPct
	}
	params, err := strategy.NewParams(params.StopLossPct, params.RiskReward, params.TakeProfitPct)
	if err != nil {
		abortWithError(c, err)
		return
	}

	name := c.Param("name")
	res, err := s.orch.Run(c.Request.Context(), name, params)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.invalidate(c, name)

	skipped := make(map[string]int, len(res.Batch.Skipped))
	for reason, n := range res.Batch.Skipped {
		skipped[string(reason)] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"session":   toSessionDTO(res.Session),
		"params_id": res.Batch.ParamsID,
		"summary":   toSummaryDTO(res.Summary),
		"skipped":   skipped,
		"trades":    toTradeDTOs(res.Batch.Results),
	})
}

// handleChart serves one chart payload, from the cache when possible.
func (s *Server) handleChart(c *gin.Context) {
	name, chart := c.Param("name"), c.Param("chart")
	if !knownChart(chart) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown chart: " + chart})
		return
	}

	paramsID := c.Query("params_id")
	key := chart
	if paramsID != "" {
		key = chart + "|" + paramsID
	}

	ctx := c.Request.Context()
	if s.cache != nil {
		var cached any
		hit, err := s.cache.Get(ctx, name, key, &cached)
		if err != nil {
			s.logger.Warn("chart cache get", zap.String("session", name), zap.Error(err))
		}
		if hit {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	_, results, err := s.orch.Results(ctx, name, paramsID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	payload, err := s.chartPayload(chart, results)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, name, key, payload); err != nil {
			s.logger.Warn("chart cache set", zap.String("session", name), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, payload)
}

func knownChart(chart string) bool {
	switch chart {
	case ChartEquityCurve, ChartWinLoss, ChartGainDistribution,
		ChartDrawdownDistribution, ChartCoinPerformance, ChartOutcomes:
		return true
	default:
		return false
	}
}

func (s *Server) chartPayload(chart string, results []*domain.TradeResult) (any, error) {
	switch chart {
	case ChartEquityCurve:
		series, err := reporting.EquitySeriesOf(results, s.defaults.InitialBalance, s.defaults.RiskPerTrade)
		if err != nil {
			return nil, err
		}
		return series, nil
	case ChartWinLoss:
		return reporting.SetupCountsOf(results), nil
	case ChartGainDistribution:
		return gin.H{"gains": reporting.GainDistribution(results)}, nil
	case ChartDrawdownDistribution:
		return reporting.DrawdownDistributionOf(results), nil
	case ChartCoinPerformance:
		return reporting.CoinPerformanceOf(results), nil
	case ChartOutcomes:
		return reporting.OutcomeCountsOf(results), nil
	default:
		return nil, fmt.Errorf("%w: unknown chart %s", errBadRequest, chart)
	}
}

// handleSimulate replays caller-supplied gains with SL/TP caps.
func (s *Server) handleSimulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	replay, err := equity.SimulateCapped(req.Gains, equity.CappedParams{
		StopLossPct:     req.StopLossPct,
		TakeProfitPct:   req.TakeProfitPct,
		RiskPerTradePct: req.RiskPerTradePct,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSimulateResponse(replay))
}

// handleOptimize sweeps the grid over a session's stored results.
func (s *Server) handleOptimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	res, err := s.optimize(c, req, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, optimizeResponse{
		RunID:   res.RunID,
		Session: res.Session.Name,
		Results: toOptimizationRows(res.Cells),
	})
}

// optimize fills request defaults and runs the sweep.
func (s *Server) optimize(c *gin.Context, req optimizeRequest, onCell func(domain.OptimizationResult)) (*orchestrator.OptimizeResult, error) {
	if req.Session == "" {
		return nil, fmt.Errorf("%w: session is required", errBadRequest)
	}

	grid := s.defaults.Grid
	if len(req.SLValues) > 0 {
		grid.StopLossPcts = req.SLValues
	}
	if len(req.TPValues) > 0 {
		grid.TakeProfitPcts = req.TPValues
	}
	balance := req.InitialBalance
	if balance == 0 {
		balance = s.defaults.InitialBalance
	}
	risk := req.RiskPerTrade
	if risk == 0 {
		risk = s.defaults.RiskPerTrade
	}

	return s.orch.Optimize(c.Request.Context(), req.Session, grid, orchestrator.OptimizeOptions{
		ParamsID:       req.ParamsID,
		InitialBalance: balance,
		RiskPerTrade:   risk,
		OnCell:         onCell,
	})
}

// invalidate drops the cached charts of a session.
func (s *Server) invalidate(c *gin.Context, session string) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.Invalidate(c.Request.Context(), session)
	if err != nil {
		s.logger.Warn("chart cache invalidate", zap.String("session", session), zap.Error(err))
		return
	}
	s.logger.Debug("chart cache invalidated", zap.String("session", session), zap.Int("keys", n))
}
