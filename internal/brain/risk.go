package brain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"vigil/internal/config"
	"vigil/internal/worldstate"
)

// AnalyzeRisk sizes and caps the market module's candidate trade. It is the
// only module that looks at account-level limits. Without a candidate it
// blocks immediately: risk math over fabricated prices is worse than no
// trade.
func AnalyzeRisk(snap *worldstate.Snapshot, cfg config.RiskConfig, marketOut Output[MarketData]) Output[RiskData] {
	blocked := func(reason string) Output[RiskData] {
		return newOutput(StateRed, 0, reason, RiskData{OKToTrade: false})
	}

	if snap == nil {
		return blocked("no world state; cannot assess risk")
	}
	cand := marketOut.Payload.Candidate
	if marketOut.State == StateRed || cand == nil {
		return blocked("market module produced no candidate trade; risk sizing impossible")
	}

	stopDistance := math.Abs(cand.Entry - cand.Stop)
	targetDistance := math.Abs(cand.Target - cand.Entry)
	if stopDistance <= 0 {
		return blocked(fmt.Sprintf("degenerate stop distance (entry=%.2f stop=%.2f)", cand.Entry, cand.Stop))
	}

	rr := targetDistance / stopDistance
	if rr < cfg.MinRiskReward {
		return blocked(fmt.Sprintf("reward:risk %.2f below minimum %.2f", rr, cfg.MinRiskReward))
	}

	equity := snap.Account.Equity
	maxRisk := cfg.MaxRiskPerTradeUSD
	if byPct := equity * cfg.RiskPctPerTrade; byPct > 0 && byPct < maxRisk {
		maxRisk = byPct
	}
	if maxRisk <= 0 {
		return blocked("no risk budget configured")
	}

	// Decimal math for sizing: risk budgets must round down, never up.
	size := decimal.NewFromFloat(maxRisk).
		Div(decimal.NewFromFloat(stopDistance)).
		RoundFloor(4)

	notionalCap := cfg.MaxPositionSizeUSD
	if byEquity := equity * cfg.MaxEquityPct; byEquity > 0 && byEquity < notionalCap {
		notionalCap = byEquity
	}

	capApplied := false
	entry := decimal.NewFromFloat(cand.Entry)
	if notionalCap > 0 && size.Mul(entry).GreaterThan(decimal.NewFromFloat(notionalCap)) {
		size = decimal.NewFromFloat(notionalCap).Div(entry).RoundFloor(4)
		capApplied = true
	}

	positionSize, _ := size.Float64()
	notional, _ := size.Mul(entry).Float64()
	maxLoss, _ := size.Mul(decimal.NewFromFloat(stopDistance)).Float64()

	data := RiskData{
		PositionSize: positionSize,
		Notional:     notional,
		MaxLossUSD:   maxLoss,
		RiskReward:   rr,
		CapApplied:   capApplied,
		Bands:        takeProfitBands(cand),
	}
	if equity > 0 {
		data.RiskPctOfEquity = maxLoss / equity
	}

	// Hard blocks, in order. Each names its limit so the operator can see
	// exactly which line was crossed.
	headroom := cfg.DailyLossLimitUSD + snap.Account.DailyPnL
	if headroom < maxRisk {
		return blocked(fmt.Sprintf(
			"daily loss limit: remaining headroom $%.2f is below required risk $%.2f (limit $%.2f, day pnl $%.2f)",
			headroom, maxRisk, cfg.DailyLossLimitUSD, snap.Account.DailyPnL))
	}
	if len(snap.Positions) >= cfg.MaxOpenPositions {
		return blocked(fmt.Sprintf("open positions %d at limit %d", len(snap.Positions), cfg.MaxOpenPositions))
	}
	if !cfg.SymbolAllowed(snap.Ticker) {
		return blocked(fmt.Sprintf("symbol not allowed: %s is outside the allow-list", snap.Ticker))
	}

	data.OKToTrade = true
	confidence := math.Min(rr/3.0, 1.0)

	if capApplied {
		return newOutput(StateAmber, confidence, fmt.Sprintf(
			"position capped at notional $%.2f (size %.4f units, max loss $%.2f, rr %.2f); size was scaled down, not blocked",
			notional, positionSize, maxLoss, rr), data)
	}
	return newOutput(StateGreen, confidence, fmt.Sprintf(
		"risk approved: size %.4f units, notional $%.2f, max loss $%.2f, rr %.2f",
		positionSize, notional, maxLoss, rr), data)
}

// takeProfitBands projects the entry-target leg at 0.5x / 1.0x / 1.5x in
// the trade's direction.
func takeProfitBands(cand *CandidateTrade) TakeProfitBands {
	leg := cand.Target - cand.Entry
	return TakeProfitBands{
		Conservative: cand.Entry + 0.5*leg,
		Moderate:     cand.Entry + leg,
		Aggressive:   cand.Entry + 1.5*leg,
	}
}
