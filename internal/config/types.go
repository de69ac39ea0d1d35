package config

import "strings"

// Config is the top-level configuration carrier for the agent.
type Config struct {
	App    AppConfig    `toml:"app"`
	Market MarketConfig `toml:"market"`
	Bridge BridgeConfig `toml:"bridge"`
	Memory MemoryConfig `toml:"memory"`
	Agent  AgentConfig  `toml:"agent"`
	Store  StoreConfig  `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig describes the candle/quote provider.
type MarketConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CandleLimit    int    `toml:"candle_limit"`
}

// BridgeConfig describes the brokerage bridge used for account, position
// and order state.
type BridgeConfig struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MemoryConfig describes the long-term memory collaborators: the vector
// store for corpus snippets and the local playbook rules file.
type MemoryConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	TopK           int    `toml:"top_k"`
	PlaybookPath   string `toml:"playbook_path"`
}

type StoreConfig struct {
	DecisionDBPath string `toml:"decision_db_path"`
	FlagDBPath     string `toml:"flag_db_path"`
}

// AgentConfig groups everything a single decision cycle needs. Risk limits
// are mandatory; loading fails without them.
type AgentConfig struct {
	Mode                string           `toml:"mode"` // observe | paper | live
	Symbols             []string         `toml:"symbols"`
	Timeframe           string           `toml:"timeframe"`
	CycleSeconds        int              `toml:"cycle_seconds"`
	FetchTimeoutSeconds int              `toml:"fetch_timeout_seconds"`
	Risk                RiskConfig       `toml:"risk"`
	Psychology          PsychologyConfig `toml:"psychology"`
	Safety              SafetyConfig     `toml:"safety"`
}

// RiskConfig carries the hard position limits. MaxEquityPct caps notional
// relative to account equity on top of the absolute USD cap.
type RiskConfig struct {
	MaxRiskPerTradeUSD float64  `toml:"max_risk_per_trade_usd"`
	RiskPctPerTrade    float64  `toml:"risk_pct_per_trade"`
	MinRiskReward      float64  `toml:"min_risk_reward"`
	MaxPositionSizeUSD float64  `toml:"max_position_size_usd"`
	MaxEquityPct       float64  `toml:"max_equity_pct"`
	MaxOpenPositions   int      `toml:"max_open_positions"`
	DailyLossLimitUSD  float64  `toml:"daily_loss_limit_usd"`
	AllowedSymbols     []string `toml:"allowed_symbols"`
}

// PsychologyConfig exposes the behavioral sizing multipliers as tunables.
type PsychologyConfig struct {
	SizeDownMultiplier float64 `toml:"size_down_multiplier"`
	CoolDownMultiplier float64 `toml:"cool_down_multiplier"`
	LookbackTrades     int     `toml:"lookback_trades"`
}

// SafetyConfig controls the pre-execution gate thresholds.
type SafetyConfig struct {
	MarketMaxAgeSeconds    int    `toml:"market_max_age_seconds"`
	AccountMaxAgeSeconds   int    `toml:"account_max_age_seconds"`
	AllowOvernight         bool   `toml:"allow_overnight"`
	SessionCloseUTC        string `toml:"session_close_utc"` // "HH:MM"
	OvernightCutoffMinutes int    `toml:"overnight_cutoff_minutes"`
}

// SymbolAllowed reports whether the allow-list permits the symbol. An empty
// list permits everything.
func (r RiskConfig) SymbolAllowed(symbol string) bool {
	if len(r.AllowedSymbols) == 0 {
		return true
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, s := range r.AllowedSymbols {
		if strings.ToUpper(strings.TrimSpace(s)) == symbol {
			return true
		}
	}
	return false
}

// RequiresExecution reports whether the configured mode reaches an
// execution path (paper or live).
func (a AgentConfig) RequiresExecution() bool {
	switch strings.ToLower(strings.TrimSpace(a.Mode)) {
	case "paper", "live":
		return true
	}
	return false
}
