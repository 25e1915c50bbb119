// Package api serves the dashboard HTTP API.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/strategy"
)

// ChartCache stores chart payloads per session. Satisfied by *cache.ChartCache.
type ChartCache interface {
	Get(ctx context.Context, session, chart string, dest any) (bool, error)
	Set(ctx context.Context, session, chart string, value any) error
	Invalidate(ctx context.Context, session string) (int, error)
}

// Defaults are applied when a request omits a parameter.
type Defaults struct {
	Params         strategy.Params
	Grid           equity.Grid
	InitialBalance float64
	RiskPerTrade   float64 // fraction of balance
}

// Server holds the API dependencies.
type Server struct {
	orch     *orchestrator.Orchestrator
	cache    ChartCache
	defaults Defaults
	logger   *zap.Logger
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// Options contains configuration for creating a Server.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Cache        ChartCache // optional
	Defaults     Defaults
	Logger       *zap.Logger
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		orch:     opts.Orchestrator,
		cache:    opts.Cache,
		defaults: opts.Defaults,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.tracingMiddleware(), s.metricsMiddleware())
	s.routes(engine)
	s.engine = engine

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	api := r.Group("/api")
	api.GET("/sessions", s.handleSessions)
	api.GET("/session/:name", s.handleSession)
	api.POST("/session/:name/backtest", s.handleBacktest)
	api.GET("/chart/:name/:chart", s.handleChart)
	api.POST("/simulate", s.handleSimulate)
	api.POST("/optimize", s.handleOptimize)

	r.GET("/ws/optimize", s.handleOptimizeStream)
}

// tracingMiddleware wraps each request in a span, continuing an incoming trace.
func (s *Server) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tracer := opentracing.GlobalTracer()
		parent, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(c.Request.Header))

		span := tracer.StartSpan(c.Request.Method+" "+routeOf(c), ext.RPCServerOption(parent))
		defer span.Finish()
		ext.HTTPMethod.Set(span, c.Request.Method)
		ext.HTTPUrl.Set(span, c.Request.URL.Path)

		c.Request = c.Request.WithContext(opentracing.ContextWithSpan(c.Request.Context(), span))
		c.Next()

		status := c.Writer.Status()
		ext.HTTPStatusCode.Set(span, uint16(status))
		if status >= http.StatusInternalServerError {
			ext.Error.Set(span, true)
		}
	}
}

// metricsMiddleware records request counts and latency per route.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		observability.RecordHTTPRequest(routeOf(c), strconv.Itoa(status), elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", routeOf(c)),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", append(fields, zap.Strings("errors", c.Errors.Errors()))...)
			return
		}
		s.logger.Debug("request", fields...)
	}
}

// routeOf returns the matched route pattern, keeping metric labels bounded.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
