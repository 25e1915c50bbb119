// Package tracing installs the Jaeger tracer used by the API and orchestrator.
package tracing

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
	"go.uber.org/zap"
)

// Config describes the Jaeger agent. An empty Host disables tracing.
type Config struct {
	ServiceName string
	Host        string
	Port        int
	SampleRate  float64 // 0 samples nothing, 1 samples every trace
}

// Enabled reports whether a Jaeger agent is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// Init installs a global tracer. When tracing is disabled the opentracing
// no-op tracer stays in place and the returned closer does nothing.
func Init(cfg Config, logger *zap.Logger) (opentracing.Tracer, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		return opentracing.GlobalTracer(), func() {}, nil
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}

	jc := &jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  "probabilistic",
			Param: rate,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LocalAgentHostPort: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		},
	}

	tracer, closer, err := jc.NewTracer(jaegercfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, nil, fmt.Errorf("init jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closeFunc(closer, logger), nil
}

func closeFunc(c io.Closer, logger *zap.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("close jaeger tracer", zap.Error(err))
		}
	}
}
