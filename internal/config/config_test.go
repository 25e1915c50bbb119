package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/equity"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Backtest.StopLossPct)
	assert.Equal(t, 3.0, cfg.Backtest.RiskReward)
	assert.Equal(t, 1000.0, cfg.Backtest.StartingBalance)
	assert.Equal(t, 0.01, cfg.Backtest.RiskPerTrade)
	assert.Equal(t, []float64{1, 1.5, 2, 2.5, 3}, cfg.Grid.StopLossPcts)
	assert.Equal(t, []float64{3, 4.5, 5, 6, 7}, cfg.Grid.TakeProfitPcts)
	assert.Equal(t, "1m", cfg.Binance.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Binance.Lookahead)
	assert.Equal(t, 300*time.Millisecond, cfg.Binance.RequestDelay)

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, params.TakeProfitDistance(), 1e-12)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
backtest:
  stop_loss_pct: 0.02
  risk_reward: 2
binance:
  lookahead: 3h
redis:
  addr: localhost:6379
grid:
  sl_values: [1, 2]
  tp_values: [4]
`)
	t.Setenv("SBL_BACKTEST_RISK_REWARD", "4")
	t.Setenv("SBL_HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Backtest.StopLossPct)
	assert.Equal(t, 4.0, cfg.Backtest.RiskReward, "env must override file")
	assert.Equal(t, 3*time.Hour, cfg.Binance.Lookahead)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []float64{1, 2}, cfg.Grid.StopLossPcts)
	assert.Equal(t, []float64{4}, cfg.Grid.TakeProfitPcts)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SBL_BACKTEST_STOP_LOSS_PCT", "0")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadGrid(t *testing.T) {
	path := writeFile(t, "grid.yaml", "sl_values: [1, 1.5]\ntp_values: [3, 6, 9]\n")

	grid, err := LoadGrid(path)
	require.NoError(t, err)
	assert.Equal(t, equity.Grid{StopLossPcts: []float64{1, 1.5}, TakeProfitPcts: []float64{3, 6, 9}}, grid)
	assert.Equal(t, 6, grid.Size())
}

func TestLoadGrid_Invalid(t *testing.T) {
	empty := writeFile(t, "empty.yaml", "sl_values: []\ntp_values: [3]\n")
	_, err := LoadGrid(empty)
	assert.ErrorIs(t, err, equity.ErrEmptyGrid)

	unknown := writeFile(t, "unknown.yaml", "sl: [1]\n")
	_, err = LoadGrid(unknown)
	assert.Error(t, err)
}
