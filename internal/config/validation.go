package config

import (
	"fmt"
	"strings"
	"time"
)

// validate rejects configs that cannot run safely. Everything here is a
// startup failure, never a per-request one.
func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	var errs []string

	mode := strings.ToLower(strings.TrimSpace(cfg.Agent.Mode))
	switch mode {
	case "observe", "paper", "live":
	default:
		errs = append(errs, fmt.Sprintf("agent.mode must be observe|paper|live, got %q", cfg.Agent.Mode))
	}

	if len(cfg.Agent.Symbols) == 0 {
		errs = append(errs, "agent.symbols must list at least one instrument")
	}

	r := cfg.Agent.Risk
	if r.MaxRiskPerTradeUSD <= 0 {
		errs = append(errs, "agent.risk.max_risk_per_trade_usd is required and must be > 0")
	}
	if r.RiskPctPerTrade <= 0 || r.RiskPctPerTrade >= 1 {
		errs = append(errs, "agent.risk.risk_pct_per_trade is required and must be in (0,1)")
	}
	if r.MaxPositionSizeUSD <= 0 {
		errs = append(errs, "agent.risk.max_position_size_usd is required and must be > 0")
	}
	if r.MaxOpenPositions <= 0 {
		errs = append(errs, "agent.risk.max_open_positions is required and must be > 0")
	}
	if r.DailyLossLimitUSD <= 0 {
		errs = append(errs, "agent.risk.daily_loss_limit_usd is required and must be > 0")
	}
	if r.MinRiskReward < 1 {
		errs = append(errs, fmt.Sprintf("agent.risk.min_risk_reward must be >= 1, got %v", r.MinRiskReward))
	}

	if _, err := ParseSessionClose(cfg.Agent.Safety.SessionCloseUTC); err != nil {
		errs = append(errs, fmt.Sprintf("agent.safety.session_close_utc: %v", err))
	}

	if mode != "observe" && strings.TrimSpace(cfg.Bridge.BaseURL) == "" {
		errs = append(errs, "bridge.base_url is required when agent.mode needs execution state")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseSessionClose parses an "HH:MM" UTC wall-clock time into a Duration
// offset from midnight.
func ParseSessionClose(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty session close time")
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
