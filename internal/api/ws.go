package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
)

const wsWriteTimeout = 10 * time.Second

// handleOptimizeStream runs a sweep and streams each finished cell, then the
// sorted table. Parameters come from the query string:
//
//	/ws/optimize?session=march&sl_values=1,2&tp_values=3,6
func (s *Server) handleOptimizeStream(c *gin.Context) {
	req, err := parseOptimizeQuery(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	// Cells arrive serialized, so the callback is the only writer until
	// Optimize returns.
	writeFailed := false
	onCell := func(cell domain.OptimizationResult) {
		if writeFailed {
			return
		}
		row := toOptimizationRow(cell)
		if err := writeJSON(conn, streamMessage{Type: "cell", Cell: &row}); err != nil {
			writeFailed = true
			s.logger.Debug("websocket write", zap.Error(err))
		}
	}

	res, err := s.optimize(c, req, onCell)
	if err != nil {
		_ = writeJSON(conn, streamMessage{Type: "error", Error: err.Error()})
		closeNormal(conn)
		return
	}

	if err := writeJSON(conn, streamMessage{
		Type:    "done",
		RunID:   res.RunID,
		Results: toOptimizationRows(res.Cells),
	}); err != nil {
		s.logger.Debug("websocket write", zap.Error(err))
		return
	}
	closeNormal(conn)
}

func writeJSON(conn *websocket.Conn, msg streamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

// parseOptimizeQuery reads an optimizeRequest from query parameters.
// Grid axes are comma-separated lists.
func parseOptimizeQuery(c *gin.Context) (optimizeRequest, error) {
	req := optimizeRequest{
		Session:  c.Query("session"),
		ParamsID: c.Query("params_id"),
	}

	var err error
	if req.SLValues, err = parseFloatList(c.Query("sl_values")); err != nil {
		return req, fmt.Errorf("%w: sl_values: %v", errBadRequest, err)
	}
	if req.TPValues, err = parseFloatList(c.Query("tp_values")); err != nil {
		return req, fmt.Errorf("%w: tp_values: %v", errBadRequest, err)
	}
	if v := c.Query("initial_balance"); v != "" {
		if req.InitialBalance, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("%w: initial_balance: %v", errBadRequest, err)
		}
	}
	if v := c.Query("risk_per_trade"); v != "" {
		if req.RiskPerTrade, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("%w: risk_per_trade: %v", errBadRequest, err)
		}
	}
	if req.Session == "" {
		return req, fmt.Errorf("%w: session is required", errBadRequest)
	}
	return req, nil
}

func parseFloatList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
