package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/strategy"
)

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, orchestrator.ErrMixedParams),
		errors.Is(err, strategy.ErrInvalidParams),
		errors.Is(err, equity.ErrEmptyGrid),
		errors.Is(err, equity.ErrInvalidGrid),
		errors.Is(err, equity.ErrInvalidRisk),
		errors.Is(err, equity.ErrInvalidBalance),
		errors.Is(err, equity.ErrInvalidLevels),
		errors.Is(err, equity.ErrInvalidGain):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes {"error": ...}. Internal errors are not echoed.
func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
