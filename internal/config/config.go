// Package config loads runtime configuration from .env, an optional YAML
// file and SBL_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"signal-backtest-lab/internal/equity"
	"signal-backtest-lab/internal/strategy"
	"signal-backtest-lab/internal/tracing"
)

// EnvPrefix prefixes every environment override (SBL_BACKTEST_STOP_LOSS_PCT).
const EnvPrefix = "SBL"

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full runtime configuration.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	SessionsDir string `mapstructure:"sessions_dir"`

	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Grid       equity.Grid      `mapstructure:"grid"`
	Binance    BinanceConfig    `mapstructure:"binance"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// BacktestConfig holds classifier and account parameters.
type BacktestConfig struct {
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`  // fraction of entry
	RiskReward      float64 `mapstructure:"risk_reward"`
	StartingBalance float64 `mapstructure:"starting_balance"`
	RiskPerTrade    float64 `mapstructure:"risk_per_trade"` // fraction of balance
}

// BinanceConfig configures kline retrieval.
type BinanceConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Interval     string        `mapstructure:"interval"`
	Lookahead    time.Duration `mapstructure:"lookahead"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// TelegramConfig configures channel ingestion.
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	ChannelID   int64         `mapstructure:"channel_id"`
	MonthsBack  int           `mapstructure:"months_back"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// PostgresConfig configures the relational store. Empty DSN disables it.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ClickHouseConfig configures the optimization store. Empty DSN disables it.
// The database is taken from the DSN path and created if missing.
type ClickHouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig configures the chart cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TracingConfig configures the Jaeger agent. Empty Host disables tracing.
type TracingConfig struct {
	Host       string  `mapstructure:"host"`
	Port       int     `mapstructure:"port"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("sessions_dir", "sessions")

	v.SetDefault("backtest.stop_loss_pct", 0.05)
	v.SetDefault("backtest.risk_reward", 3.0)
	v.SetDefault("backtest.starting_balance", 1000.0)
	v.SetDefault("backtest.risk_per_trade", 0.01)

	v.SetDefault("grid.sl_values", []float64{1, 1.5, 2, 2.5, 3})
	v.SetDefault("grid.tp_values", []float64{3, 4.5, 5, 6, 7})

	v.SetDefault("binance.base_url", "https://api.binance.com")
	v.SetDefault("binance.interval", "1m")
	v.SetDefault("binance.lookahead", 6*time.Hour)
	v.SetDefault("binance.request_delay", 300*time.Millisecond)
	v.SetDefault("binance.timeout", 15*time.Second)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.channel_id", 0)
	v.SetDefault("telegram.months_back", 6)
	v.SetDefault("telegram.idle_timeout", 30*time.Second)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("clickhouse.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("tracing.host", "")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Load reads configuration. A missing .env is ignored; a path that does not
// exist is an error, an empty path skips the YAML file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the core would otherwise reject later.
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Backtest.StartingBalance <= 0 {
		return fmt.Errorf("%w: backtest.starting_balance must be > 0", ErrInvalidConfig)
	}
	if c.Backtest.RiskPerTrade <= 0 {
		return fmt.Errorf("%w: backtest.risk_per_trade must be > 0", ErrInvalidConfig)
	}
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: grid: %v", ErrInvalidConfig, err)
	}
	if c.Binance.Lookahead <= 0 {
		return fmt.Errorf("%w: binance.lookahead must be > 0", ErrInvalidConfig)
	}
	return nil
}

// Params returns the classifier parameters.
func (c *Config) Params() (strategy.Params, error) {
	return strategy.NewParams(c.Backtest.StopLossPct, c.Backtest.RiskReward, nil)
}

// OptimizerOptions returns the account settings of a grid sweep.
func (c *Config) OptimizerOptions() equity.OptimizerOptions {
	return equity.OptimizerOptions{
		InitialBalance: c.Backtest.StartingBalance,
		RiskPerTrade:   c.Backtest.RiskPerTrade,
	}
}

// TracerConfig returns the tracer settings for a service.
func (c *Config) TracerConfig(service string) tracing.Config {
	return tracing.Config{
		ServiceName: service,
		Host:        c.Tracing.Host,
		Port:        c.Tracing.Port,
		SampleRate:  c.Tracing.SampleRate,
	}
}

// LoadGrid reads an optimizer grid from a YAML file:
//
//	sl_values: [1, 1.5, 2]
//	tp_values: [3, 4.5]
func LoadGrid(path string) (equity.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return equity.Grid{}, fmt.Errorf("read grid file: %w", err)
	}

	var grid equity.Grid
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&grid); err != nil {
		return equity.Grid{}, fmt.Errorf("decode grid file %s: %w", path, err)
	}
	if err := grid.Validate(); err != nil {
		return equity.Grid{}, err
	}
	return grid, nil
}
