package config

import "strings"

const (
	defaultHTTPAddr         = ":9982"
	defaultTimeframe        = "5m"
	defaultCycleSeconds     = 300
	defaultFetchTimeoutSec  = 10
	defaultCandleLimit      = 120
	defaultMinRiskReward    = 1.5
	defaultMaxEquityPct     = 0.20
	defaultSizeDownMult     = 0.75
	defaultCoolDownMult     = 0.5
	defaultLookbackTrades   = 10
	defaultMarketMaxAgeSec  = 60
	defaultAccountMaxAgeSec = 30
	defaultCutoffMinutes    = 60
	defaultSessionCloseUTC  = "21:00"
	defaultMemoryTopK       = 5
)

// applyDefaults fills unset tunables. Risk limits have no defaults on
// purpose: they must come from the operator.
func (c *Config) applyDefaults() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = "info"
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if c.Market.TimeoutSeconds <= 0 {
		c.Market.TimeoutSeconds = defaultFetchTimeoutSec
	}
	if c.Market.CandleLimit <= 0 {
		c.Market.CandleLimit = defaultCandleLimit
	}
	if c.Bridge.TimeoutSeconds <= 0 {
		c.Bridge.TimeoutSeconds = defaultFetchTimeoutSec
	}
	if c.Memory.TimeoutSeconds <= 0 {
		c.Memory.TimeoutSeconds = defaultFetchTimeoutSec
	}
	if c.Memory.TopK <= 0 {
		c.Memory.TopK = defaultMemoryTopK
	}
	if strings.TrimSpace(c.Store.DecisionDBPath) == "" {
		c.Store.DecisionDBPath = "data/decisions.db"
	}
	if strings.TrimSpace(c.Store.FlagDBPath) == "" {
		c.Store.FlagDBPath = "data/flags.db"
	}

	a := &c.Agent
	if strings.TrimSpace(a.Mode) == "" {
		a.Mode = "observe"
	}
	if strings.TrimSpace(a.Timeframe) == "" {
		a.Timeframe = defaultTimeframe
	}
	if a.CycleSeconds <= 0 {
		a.CycleSeconds = defaultCycleSeconds
	}
	if a.FetchTimeoutSeconds <= 0 {
		a.FetchTimeoutSeconds = defaultFetchTimeoutSec
	}
	if a.Risk.MinRiskReward <= 0 {
		a.Risk.MinRiskReward = defaultMinRiskReward
	}
	if a.Risk.MaxEquityPct <= 0 || a.Risk.MaxEquityPct > 1 {
		a.Risk.MaxEquityPct = defaultMaxEquityPct
	}
	if a.Psychology.SizeDownMultiplier <= 0 || a.Psychology.SizeDownMultiplier > 1 {
		a.Psychology.SizeDownMultiplier = defaultSizeDownMult
	}
	if a.Psychology.CoolDownMultiplier <= 0 || a.Psychology.CoolDownMultiplier > 1 {
		a.Psychology.CoolDownMultiplier = defaultCoolDownMult
	}
	if a.Psychology.LookbackTrades <= 0 {
		a.Psychology.LookbackTrades = defaultLookbackTrades
	}
	if a.Safety.MarketMaxAgeSeconds <= 0 {
		a.Safety.MarketMaxAgeSeconds = defaultMarketMaxAgeSec
	}
	if a.Safety.AccountMaxAgeSeconds <= 0 {
		a.Safety.AccountMaxAgeSeconds = defaultAccountMaxAgeSec
	}
	if a.Safety.OvernightCutoffMinutes <= 0 {
		a.Safety.OvernightCutoffMinutes = defaultCutoffMinutes
	}
	if strings.TrimSpace(a.Safety.SessionCloseUTC) == "" {
		a.Safety.SessionCloseUTC = defaultSessionCloseUTC
	}
}
