package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
app:
  env: test
  log_level: debug
agent:
  mode: observe
  symbols: [aapl, MSFT]
  risk:
    max_risk_per_trade_usd: 200
    risk_pct_per_trade: 0.02
    max_position_size_usd: 5000
    max_open_positions: 3
    daily_loss_limit_usd: 500
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "observe", cfg.Agent.Mode)
	assert.Equal(t, []string{"aapl", "MSFT"}, cfg.Agent.Symbols)
	assert.Equal(t, 200.0, cfg.Agent.Risk.MaxRiskPerTradeUSD)

	assert.Equal(t, "5m", cfg.Agent.Timeframe)
	assert.Equal(t, 300, cfg.Agent.CycleSeconds)
	assert.Equal(t, 1.5, cfg.Agent.Risk.MinRiskReward)
	assert.Equal(t, 0.20, cfg.Agent.Risk.MaxEquityPct)
	assert.Equal(t, 0.75, cfg.Agent.Psychology.SizeDownMultiplier)
	assert.Equal(t, 0.5, cfg.Agent.Psychology.CoolDownMultiplier)
	assert.Equal(t, 10, cfg.Agent.Psychology.LookbackTrades)
	assert.Equal(t, 60, cfg.Agent.Safety.MarketMaxAgeSeconds)
	assert.Equal(t, 30, cfg.Agent.Safety.AccountMaxAgeSeconds)
	assert.Equal(t, "21:00", cfg.Agent.Safety.SessionCloseUTC)
	assert.Equal(t, ":9982", cfg.App.HTTPAddr)
}

func TestLoadRejectsMissingRiskLimits(t *testing.T) {
	_, err := Load(writeConfig(t, `
agent:
  mode: observe
  symbols: [AAPL]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_risk_per_trade_usd")
	assert.Contains(t, err.Error(), "daily_loss_limit_usd")
}

func TestLoadRejectsBadMode(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\n"))
	require.NoError(t, err)

	_, err = Load(writeConfig(t, `
agent:
  mode: yolo
  symbols: [AAPL]
  risk:
    max_risk_per_trade_usd: 200
    risk_pct_per_trade: 0.02
    max_position_size_usd: 5000
    max_open_positions: 3
    daily_loss_limit_usd: 500
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.mode")
}

func TestLoadSchemaCatchesShapeErrors(t *testing.T) {
	_, err := Load(writeConfig(t, `
agent:
  symbols: not-a-list
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestLiveModeRequiresBridge(t *testing.T) {
	_, err := Load(writeConfig(t, `
agent:
  mode: live
  symbols: [AAPL]
  risk:
    max_risk_per_trade_usd: 200
    risk_pct_per_trade: 0.02
    max_position_size_usd: 5000
    max_open_positions: 3
    daily_loss_limit_usd: 500
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridge.base_url")
}

func TestParseSessionClose(t *testing.T) {
	d, err := ParseSessionClose("21:00")
	require.NoError(t, err)
	assert.Equal(t, 21*time.Hour, d)

	_, err = ParseSessionClose("25:99")
	assert.Error(t, err)
	_, err = ParseSessionClose("")
	assert.Error(t, err)
}

func TestSymbolAllowed(t *testing.T) {
	r := RiskConfig{}
	assert.True(t, r.SymbolAllowed("AAPL"), "empty allow-list permits everything")

	r.AllowedSymbols = []string{"aapl", " msft "}
	assert.True(t, r.SymbolAllowed("AAPL"))
	assert.True(t, r.SymbolAllowed("msft"))
	assert.False(t, r.SymbolAllowed("TSLA"))
}
