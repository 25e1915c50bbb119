// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	MessagesSeen    prometheus.Counter
	SignalsIngested *prometheus.CounterVec

	// Pricing metrics
	PriceFetches      *prometheus.CounterVec
	PriceFetchLatency prometheus.Histogram
	WindowsMissing    prometheus.Counter

	// Backtest metrics
	TradesClassified *prometheus.CounterVec
	SignalsSkipped   *prometheus.CounterVec
	BacktestDuration prometheus.Histogram

	// Optimizer metrics
	OptimizerCells    prometheus.Counter
	OptimizerDuration prometheus.Histogram

	// API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBacktest prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_backtest_lab"
	}

	return &Metrics{
		// Ingestion metrics
		MessagesSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "messages_seen_total",
			Help:      "Total number of channel messages inspected",
		}),
		SignalsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_ingested_total",
			Help:      "Total number of signals extracted by direction",
		}, []string{"direction"}),

		// Pricing metrics
		PriceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetches_total",
			Help:      "Total number of price window fetches by status",
		}, []string{"status"}),
		PriceFetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetch_latency_seconds",
			Help:      "Kline fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		WindowsMissing: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "windows_missing_total",
			Help:      "Total number of signals left without a price window",
		}),

		// Backtest metrics
		TradesClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_classified_total",
			Help:      "Total number of trades classified by outcome",
		}, []string{"outcome"}),
		SignalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "signals_skipped_total",
			Help:      "Total number of signals skipped by reason",
		}, []string{"reason"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),

		// Optimizer metrics
		OptimizerCells: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "cells_total",
			Help:      "Total number of SL/TP grid cells evaluated",
		}),
		OptimizerDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "duration_seconds",
			Help:      "Grid sweep duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Chart cache lookups by result",
		}, []string{"result"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulBacktest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordMessageSeen increments the inspected messages counter.
func RecordMessageSeen() {
	DefaultMetrics.MessagesSeen.Inc()
}

// RecordSignalIngested increments the ingested signals counter.
func RecordSignalIngested(direction string) {
	DefaultMetrics.SignalsIngested.WithLabelValues(direction).Inc()
}

// RecordPriceFetch records a price window fetch.
func RecordPriceFetch(seconds float64, err error) {
	DefaultMetrics.PriceFetchLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.PriceFetches.WithLabelValues("error").Inc()
		DefaultMetrics.WindowsMissing.Inc()
		return
	}
	DefaultMetrics.PriceFetches.WithLabelValues("ok").Inc()
}

// RecordTradeClassified increments the classified trades counter.
func RecordTradeClassified(outcome string) {
	DefaultMetrics.TradesClassified.WithLabelValues(outcome).Inc()
}

// RecordSignalSkipped increments the skipped signals counter.
func RecordSignalSkipped(reason string) {
	DefaultMetrics.SignalsSkipped.WithLabelValues(reason).Inc()
}

// RecordBacktestRun records a completed backtest run.
func RecordBacktestRun(durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
	DefaultMetrics.LastSuccessfulBacktest.Set(float64(finishedUnix))
}

// RecordOptimizerRun records a grid sweep.
func RecordOptimizerRun(cells int, durationSeconds float64) {
	DefaultMetrics.OptimizerCells.Add(float64(cells))
	DefaultMetrics.OptimizerDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordCacheLookup records a chart cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		DefaultMetrics.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
