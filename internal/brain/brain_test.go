package brain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vigil/internal/analysis/indicator"
	"vigil/internal/config"
	"vigil/internal/gateway/bridge"
	"vigil/internal/market"
	"vigil/internal/worldstate"
)

func TestWorstLattice(t *testing.T) {
	assert.Equal(t, StateRed, Worst(), "empty verdict set must not read as permission")
	assert.Equal(t, StateGreen, Worst(StateGreen, StateGreen))
	assert.Equal(t, StateAmber, Worst(StateGreen, StateAmber, StateGreen))
	assert.Equal(t, StateRed, Worst(StateGreen, StateAmber, StateRed))
	assert.True(t, StateRed.Worse(StateAmber))
	assert.True(t, StateAmber.Worse(StateGreen))
	assert.False(t, StateGreen.Worse(StateGreen))
}

func TestNewOutputClampsConfidence(t *testing.T) {
	out := newOutput(StateGreen, 1.7, "x", struct{}{})
	assert.Equal(t, 1.0, out.Confidence)
	out = newOutput(StateRed, -0.3, "x", struct{}{})
	assert.Equal(t, 0.0, out.Confidence)
}

func uptrendSnapshot() *worldstate.Snapshot {
	return &worldstate.Snapshot{
		Ticker:    "AAPL",
		Timeframe: "5m",
		CreatedAt: time.Now(),
		Market: worldstate.MarketState{
			Candles: make([]market.Candle, 60),
			Indicators: indicator.Snapshot{
				ATR:           1.5,
				ATRPct:        0.015,
				SMA20:         101,
				SMA50:         99,
				Trend:         indicator.TrendUp,
				TrendStrength: 0.7,
				Regime:        indicator.RegimeNormal,
				LastClose:     100,
			},
			Levels: indicator.Levels{Support: 95, Resistance: 110, Pivot: 100},
		},
		Account: bridge.Account{Balance: 10000, Equity: 10000, DailyPnL: 0},
	}
}

func TestAnalyzeMarketNoCandles(t *testing.T) {
	out := AnalyzeMarket(nil)
	assert.Equal(t, StateRed, out.State)
	assert.Equal(t, 0.0, out.Confidence)

	out = AnalyzeMarket(&worldstate.Snapshot{Ticker: "AAPL"})
	assert.Equal(t, StateRed, out.State)
	assert.Contains(t, out.Reasoning, "no candle data")
}

func TestAnalyzeMarketUptrendCandidate(t *testing.T) {
	out := AnalyzeMarket(uptrendSnapshot())
	assert.Equal(t, StateGreen, out.State)
	if assert.NotNil(t, out.Payload.Candidate) {
		c := out.Payload.Candidate
		assert.Equal(t, DirectionLong, c.Direction)
		assert.Equal(t, 100.0, c.Entry)
		assert.Equal(t, 95.0, c.Stop, "stop anchored at support")
		assert.Equal(t, 110.0, c.Target, "target anchored at resistance")
		assert.InDelta(t, 2.0, c.Ratio, 1e-9)
	}
	assert.InDelta(t, 0.85, out.Confidence, 1e-9)
}

func TestAnalyzeMarketSidewaysIsAmber(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Market.Indicators.Trend = indicator.TrendSideways
	out := AnalyzeMarket(snap)
	assert.Equal(t, StateAmber, out.State)
	assert.Equal(t, DirectionNeutral, out.Payload.Bias)
	assert.Nil(t, out.Payload.Candidate)
}

func TestAnalyzeMarketHighVolRegimeIsAmber(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Market.Indicators.Regime = indicator.RegimeHighVol
	out := AnalyzeMarket(snap)
	assert.Equal(t, StateAmber, out.State)
	assert.NotNil(t, out.Payload.Candidate, "caution scales down, it does not discard the candidate")
}

func riskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxRiskPerTradeUSD: 500,
		MinRiskReward:      1.5,
		MaxPositionSizeUSD: 100000,
		MaxEquityPct:       0.20,
		MaxOpenPositions:   3,
		DailyLossLimitUSD:  2000,
	}
}

func marketOutWith(cand *CandidateTrade) Output[MarketData] {
	return newOutput(StateGreen, 0.8, "ok", MarketData{Candidate: cand, Bias: DirectionLong})
}

func TestAnalyzeRiskHappyPath(t *testing.T) {
	snap := uptrendSnapshot()
	cfg := riskConfig()
	cfg.RiskPctPerTrade = 0.02 // equity 10000 -> $200 beats the $500 absolute cap

	out := AnalyzeRisk(snap, cfg, marketOutWith(&CandidateTrade{
		Direction: DirectionLong, Entry: 100, Stop: 95, Target: 110, Ratio: 2,
	}))

	// $200 budget over a $5 stop sizes 40 units, but 40*100 = $4000 notional
	// exceeds the 20% equity cap of $2000, so size scales down to 20.
	assert.Equal(t, StateAmber, out.State)
	assert.True(t, out.Payload.OKToTrade)
	assert.True(t, out.Payload.CapApplied)
	assert.InDelta(t, 20.0, out.Payload.PositionSize, 1e-9)
	assert.InDelta(t, 2000.0, out.Payload.Notional, 1e-9)
	assert.InDelta(t, 100.0, out.Payload.MaxLossUSD, 1e-9)
	assert.InDelta(t, 2.0, out.Payload.RiskReward, 1e-9)
	assert.InDelta(t, 2.0/3.0, out.Confidence, 1e-9)
	assert.InDelta(t, 105.0, out.Payload.Bands.Conservative, 1e-9)
	assert.InDelta(t, 110.0, out.Payload.Bands.Moderate, 1e-9)
	assert.InDelta(t, 115.0, out.Payload.Bands.Aggressive, 1e-9)
}

func TestAnalyzeRiskUncappedIsGreen(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Account.Equity = 1000000
	out := AnalyzeRisk(snap, riskConfig(), marketOutWith(&CandidateTrade{
		Direction: DirectionLong, Entry: 100, Stop: 95, Target: 110, Ratio: 2,
	}))
	assert.Equal(t, StateGreen, out.State)
	assert.False(t, out.Payload.CapApplied)
	assert.InDelta(t, 100.0, out.Payload.PositionSize, 1e-9, "$500 budget / $5 stop")
	assert.InDelta(t, 500.0, out.Payload.MaxLossUSD, 1e-9)
}

func TestAnalyzeRiskRewardBelowMinimum(t *testing.T) {
	out := AnalyzeRisk(uptrendSnapshot(), riskConfig(), marketOutWith(&CandidateTrade{
		Direction: DirectionLong, Entry: 100, Stop: 95, Target: 104,
	}))
	assert.Equal(t, StateRed, out.State)
	assert.False(t, out.Payload.OKToTrade)
	assert.Contains(t, out.Reasoning, "below minimum")
}

func TestAnalyzeRiskDailyLossHeadroom(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Account.DailyPnL = -1800 // $200 headroom left against a $500 risk ask
	out := AnalyzeRisk(snap, riskConfig(), marketOutWith(&CandidateTrade{
		Direction: DirectionLong, Entry: 100, Stop: 95, Target: 110,
	}))
	assert.Equal(t, StateRed, out.State)
	assert.False(t, out.Payload.OKToTrade)
	assert.Contains(t, out.Reasoning, "daily loss limit")
}

func TestAnalyzeRiskOpenPositionLimit(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Positions = make([]bridge.Position, 3)
	out := AnalyzeRisk(snap, riskConfig(), marketOutWith(&CandidateTrade{
		Direction: DirectionLong, Entry: 100, Stop: 95, Target: 110,
	}))
	assert.Equal(t, StateRed, out.State)
	assert.Contains(t, out.Reasoning, "open positions 3 at limit 3")
}

func TestAnalyzeRiskSymbolAllowList(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Ticker = "MEME"
	cfg := riskConfig()
	cfg.AllowedSymbols = []string{"AAPL", "MSFT"}
	out := AnalyzeRisk(snap, cfg, marketOutWith(&CandidateTrade{
		Direction: DirectionLong, Entry: 100, Stop: 95, Target: 110,
	}))
	assert.Equal(t, StateRed, out.State)
	assert.Contains(t, out.Reasoning, "outside the allow-list")
}

func TestAnalyzeRiskNoCandidate(t *testing.T) {
	out := AnalyzeRisk(uptrendSnapshot(), riskConfig(), marketOutWith(nil))
	assert.Equal(t, StateRed, out.State)
	assert.False(t, out.Payload.OKToTrade)
}

func psychConfig() config.PsychologyConfig {
	return config.PsychologyConfig{
		SizeDownMultiplier: 0.75,
		CoolDownMultiplier: 0.5,
		LookbackTrades:     10,
	}
}

func outcomes(pnls ...float64) []worldstate.TradeOutcome {
	out := make([]worldstate.TradeOutcome, len(pnls))
	for i, p := range pnls {
		out[i] = worldstate.TradeOutcome{
			Symbol:      "AAPL",
			RealizedPnL: p,
			HoldingTime: 45 * time.Minute,
			ClosedAt:    time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestAnalyzePsychologyEmptyHistory(t *testing.T) {
	snap := uptrendSnapshot()
	out := AnalyzePsychology(snap, psychConfig())
	assert.Equal(t, StateGreen, out.State)
	assert.Equal(t, MentalClear, out.Payload.MentalState)
	assert.Equal(t, ActionProceed, out.Payload.RecommendedAction)
	assert.Equal(t, 1.0, out.Payload.SizeMultiplier)
}

func TestAnalyzePsychologyThreeLossesSizesDown(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Memory.Outcomes = outcomes(-50, -30, -80, 120, 60)
	out := AnalyzePsychology(snap, psychConfig())
	assert.Equal(t, StateAmber, out.State)
	assert.Equal(t, MentalTilt, out.Payload.MentalState)
	assert.Equal(t, ActionSizeDown, out.Payload.RecommendedAction)
	assert.Equal(t, 0.75, out.Payload.SizeMultiplier)
	assert.Contains(t, out.Payload.Flags, "loss_streak_3")
}

func TestAnalyzePsychologyFiveLossesPauses(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Memory.Outcomes = outcomes(-10, -20, -30, -40, -50, 100)
	out := AnalyzePsychology(snap, psychConfig())
	assert.Equal(t, StateRed, out.State)
	assert.Equal(t, ActionPause, out.Payload.RecommendedAction)
	assert.Equal(t, 0.0, out.Payload.SizeMultiplier)
}

func TestAnalyzePsychologyWinStreakOverconfidence(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Memory.Outcomes = outcomes(40, 90, 25, 60, -10)
	out := AnalyzePsychology(snap, psychConfig())
	assert.Equal(t, StateAmber, out.State)
	assert.Equal(t, MentalOverconfident, out.Payload.MentalState)
	assert.Equal(t, ActionSizeDown, out.Payload.RecommendedAction)
}

func TestAnalyzePsychologyLongSessionFatigue(t *testing.T) {
	snap := uptrendSnapshot()
	snap.Memory.Outcomes = outcomes(10, -20)
	snap.User.SessionLength = 7 * time.Hour
	out := AnalyzePsychology(snap, psychConfig())
	assert.Equal(t, StateAmber, out.State)
	assert.Equal(t, MentalFatigued, out.Payload.MentalState)
	assert.Equal(t, ActionCoolDown, out.Payload.RecommendedAction)
	assert.Equal(t, 0.5, out.Payload.SizeMultiplier)
}

func TestAnalyzePsychologyLookbackWindow(t *testing.T) {
	snap := uptrendSnapshot()
	// Losses beyond the lookback window must not count toward the streak.
	snap.Memory.Outcomes = outcomes(10, 10, 10, 10, -5, 10, 10, 10, 10, 10, -100, -100, -100, -100, -100)
	out := AnalyzePsychology(snap, psychConfig())
	assert.NotEqual(t, StateRed, out.State)
}
