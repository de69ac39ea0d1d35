package safety

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/config"
	"vigil/internal/coordinator"
	"vigil/internal/logger"
	"vigil/internal/worldstate"
)

// Flag categories. Each failed check contributes exactly one flag so
// callers can react categorically without parsing reasons.
const (
	FlagKillSwitch       = "KILL_SWITCH"
	FlagStaleData        = "STALE_DATA"
	FlagRiskLimit        = "RISK_LIMIT"
	FlagSymbolNotAllowed = "SYMBOL_NOT_ALLOWED"
	FlagOvernightBlocked = "OVERNIGHT_BLOCKED"
	FlagDailyLimit       = "DAILY_LIMIT"
)

// KillSwitch reports whether trading has been administratively halted.
type KillSwitch interface {
	Engaged(ctx context.Context) (bool, error)
}

// Result is the gate's verdict. Allowed is true only when every check
// passed; Reasons and Flags are parallel per-failure slices.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Reasons   []string  `json:"reasons,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker is the last gate before a proposal may reach an execution path.
// It holds no state between calls: every check is recomputed fresh, so the
// same proposal re-checked later can get a different answer as data ages.
type Checker struct {
	agent config.AgentConfig
	kill  KillSwitch
	nowFn func() time.Time
}

func NewChecker(agent config.AgentConfig, kill KillSwitch) *Checker {
	return &Checker{agent: agent, kill: kill, nowFn: time.Now}
}

// Check runs every gate check against the proposal. Checks never
// short-circuit: a blocked result lists all failures at once, not just the
// first, so the operator sees the full picture in one pass.
func (c *Checker) Check(ctx context.Context, p *coordinator.TradeProposal, snap *worldstate.Snapshot) Result {
	now := c.nowFn()
	res := Result{CheckedAt: now}
	fail := func(flag, format string, args ...any) {
		res.Flags = append(res.Flags, flag)
		res.Reasons = append(res.Reasons, fmt.Sprintf(format, args...))
	}

	if p == nil || snap == nil {
		fail(FlagRiskLimit, "no proposal or world state to check")
		return res
	}

	c.checkKillSwitch(ctx, fail)
	c.checkFreshness(snap, now, fail)
	c.checkRiskVerdict(p, fail)
	c.checkAllowList(p, fail)
	c.checkOvernight(p, now, fail)
	c.checkDailyHeadroom(p, snap, fail)

	res.Allowed = len(res.Flags) == 0
	if !res.Allowed {
		logger.Warnf("safety gate blocked proposal %s: %v", p.ID, res.Flags)
	}
	return res
}

// checkKillSwitch consults the persisted halt flag. The switch fails
// closed: if its state cannot be read, trading is treated as halted. Modes
// that never execute (observe) skip the check entirely.
func (c *Checker) checkKillSwitch(ctx context.Context, fail func(string, string, ...any)) {
	if !c.agent.RequiresExecution() {
		return
	}
	engaged, err := c.kill.Engaged(ctx)
	if err != nil {
		fail(FlagKillSwitch, "kill switch state unreadable (%v); failing closed", err)
		return
	}
	if engaged {
		fail(FlagKillSwitch, "kill switch is engaged")
	}
}

func (c *Checker) checkFreshness(snap *worldstate.Snapshot, now time.Time, fail func(string, string, ...any)) {
	marketMax := time.Duration(c.agent.Safety.MarketMaxAgeSeconds) * time.Second
	accountMax := time.Duration(c.agent.Safety.AccountMaxAgeSeconds) * time.Second

	if age := snap.System.FeedAge(worldstate.FeedCandles, now); age > marketMax {
		fail(FlagStaleData, "market data is %s old, limit %s", age.Round(time.Second), marketMax)
	}
	if age := snap.System.FeedAge(worldstate.FeedAccount, now); age > accountMax {
		fail(FlagStaleData, "account data is %s old, limit %s", age.Round(time.Second), accountMax)
	}
}

func (c *Checker) checkRiskVerdict(p *coordinator.TradeProposal, fail func(string, string, ...any)) {
	if p.Consensus == coordinator.ConsensusBlocked {
		fail(FlagRiskLimit, "proposal consensus is blocked: %s", p.Explanation)
		return
	}
	if !p.Modules.Risk.Payload.OKToTrade {
		fail(FlagRiskLimit, "risk module did not approve the trade: %s", p.Modules.Risk.Reasoning)
	}
}

func (c *Checker) checkAllowList(p *coordinator.TradeProposal, fail func(string, string, ...any)) {
	if !c.agent.Risk.SymbolAllowed(p.Symbol) {
		fail(FlagSymbolNotAllowed, "%s is outside the configured allow-list", p.Symbol)
	}
}

// checkOvernight blocks new entries inside the cutoff window before the
// session close when overnight holds are disallowed.
func (c *Checker) checkOvernight(p *coordinator.TradeProposal, now time.Time, fail func(string, string, ...any)) {
	if c.agent.Safety.AllowOvernight {
		return
	}
	closeOffset, err := config.ParseSessionClose(c.agent.Safety.SessionCloseUTC)
	if err != nil {
		fail(FlagOvernightBlocked, "session close time unparseable (%v); failing closed", err)
		return
	}
	cutoff := time.Duration(c.agent.Safety.OvernightCutoffMinutes) * time.Minute

	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	sessionClose := midnight.Add(closeOffset)
	windowStart := sessionClose.Add(-cutoff)

	if !utc.Before(windowStart) && utc.Before(sessionClose) {
		fail(FlagOvernightBlocked, "within %s of session close (%s UTC); overnight holds are disabled",
			cutoff, c.agent.Safety.SessionCloseUTC)
	}
}

// checkDailyHeadroom re-verifies the daily loss budget against the
// proposal's own worst case. The risk module already checked this at
// sizing time; the gate checks again because the day's PnL may have moved
// between proposal and execution.
func (c *Checker) checkDailyHeadroom(p *coordinator.TradeProposal, snap *worldstate.Snapshot, fail func(string, string, ...any)) {
	headroom := c.agent.Risk.DailyLossLimitUSD + snap.Account.DailyPnL
	if loss := p.Risk.EstMaxLossUSD; loss > 0 && headroom < loss {
		fail(FlagDailyLimit, "proposal risks $%.2f but only $%.2f of the daily loss budget remains", loss, headroom)
	}
}
