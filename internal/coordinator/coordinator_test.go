package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/analysis/indicator"
	"vigil/internal/brain"
	"vigil/internal/config"
	"vigil/internal/gateway/bridge"
	"vigil/internal/market"
	"vigil/internal/worldstate"
)

func agentConfig() config.AgentConfig {
	return config.AgentConfig{
		Mode:      "observe",
		Symbols:   []string{"AAPL"},
		Timeframe: "5m",
		Risk: config.RiskConfig{
			MaxRiskPerTradeUSD: 500,
			MinRiskReward:      1.5,
			MaxPositionSizeUSD: 100000,
			MaxEquityPct:       0.20,
			MaxOpenPositions:   3,
			DailyLossLimitUSD:  2000,
		},
		Psychology: config.PsychologyConfig{
			SizeDownMultiplier: 0.75,
			CoolDownMultiplier: 0.5,
			LookbackTrades:     10,
		},
	}
}

func tradableSnapshot() *worldstate.Snapshot {
	return &worldstate.Snapshot{
		Ticker:    "AAPL",
		Timeframe: "5m",
		CreatedAt: time.Now(),
		Market: worldstate.MarketState{
			Candles: make([]market.Candle, 60),
			Indicators: indicator.Snapshot{
				ATR:           1.5,
				SMA20:         101,
				SMA50:         99,
				Trend:         indicator.TrendUp,
				TrendStrength: 0.7,
				Regime:        indicator.RegimeNormal,
				LastClose:     100,
			},
			Levels: indicator.Levels{Support: 95, Resistance: 110, Pivot: 100},
		},
		Account: bridge.Account{Balance: 1000000, Equity: 1000000},
	}
}

func TestCoordinateAllGreen(t *testing.T) {
	c := New(agentConfig())
	p, err := c.Coordinate(context.Background(), tradableSnapshot())
	require.NoError(t, err)

	assert.Equal(t, ConsensusAllowed, p.Consensus)
	assert.Equal(t, AgreementHigh, p.Agreement)
	assert.Equal(t, brain.DirectionLong, p.Side)
	assert.Equal(t, 100.0, p.Entry)
	assert.Equal(t, 95.0, p.Stop)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Actionable())

	// Neutral psychology leaves the risk size untouched.
	assert.Equal(t, 1.0, p.Size.Multiplier)
	assert.InDelta(t, p.Size.BaseSize, p.Size.AdjustedSize, 1e-9)
	assert.InDelta(t, 100.0, p.Size.AdjustedSize, 1e-9, "$500 budget / $5 stop")
	assert.InDelta(t, 500.0, p.Risk.EstMaxLossUSD, 1e-9)
	assert.InDelta(t, 1000.0, p.Risk.EstMaxGainUSD, 1e-9)
	assert.Contains(t, p.Explanation, "allowed")
}

func TestCoordinatePsychologyScalesSize(t *testing.T) {
	snap := tradableSnapshot()
	snap.Memory.Outcomes = []worldstate.TradeOutcome{
		{RealizedPnL: -50, HoldingTime: time.Hour},
		{RealizedPnL: -30, HoldingTime: time.Hour},
		{RealizedPnL: -80, HoldingTime: time.Hour},
		{RealizedPnL: 120, HoldingTime: time.Hour},
	}

	c := New(agentConfig())
	p, err := c.Coordinate(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, ConsensusCaution, p.Consensus)
	assert.Equal(t, "size_down", p.Psychology.RecommendedAction)
	assert.Equal(t, 0.75, p.Size.Multiplier)
	assert.InDelta(t, 75.0, p.Size.AdjustedSize, 1e-9)
	assert.InDelta(t, 375.0, p.Risk.EstMaxLossUSD, 1e-9, "loss estimate follows the adjusted size")
	assert.InDelta(t, 750.0, p.Risk.EstMaxGainUSD, 1e-9)
	assert.Contains(t, p.Explanation, "psychology")
}

func TestCoordinateBlockedNamesRedModules(t *testing.T) {
	snap := tradableSnapshot()
	snap.Market.Candles = nil // market goes red, which also starves risk

	c := New(agentConfig())
	p, err := c.Coordinate(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, ConsensusBlocked, p.Consensus)
	assert.Equal(t, AgreementLow, p.Agreement, "psychology stays green while market and risk are red")
	assert.False(t, p.Actionable())
	assert.Equal(t, brain.DirectionNeutral, p.Side)
	assert.Zero(t, p.Size.AdjustedSize)
	assert.Contains(t, p.Explanation, "blocked")
	assert.Contains(t, p.Explanation, "market:")
	assert.Contains(t, p.Explanation, "risk:")
	assert.NotContains(t, p.Explanation, "psychology:")
}

func TestCoordinateBlockedKeepsModuleOutputs(t *testing.T) {
	snap := tradableSnapshot()
	snap.Market.Candles = nil

	c := New(agentConfig())
	p, err := c.Coordinate(context.Background(), snap)
	require.NoError(t, err)

	// A refusal must still be auditable: every module output survives.
	assert.Equal(t, brain.StateRed, p.Modules.Market.State)
	assert.Equal(t, brain.StateRed, p.Modules.Risk.State)
	assert.Equal(t, brain.StateGreen, p.Modules.Psychology.State)
	assert.NotEmpty(t, p.Modules.Market.Reasoning)
}

func TestCoordinateNilSnapshot(t *testing.T) {
	c := New(agentConfig())
	_, err := c.Coordinate(context.Background(), nil)
	assert.Error(t, err)
}

func TestMergeAgreement(t *testing.T) {
	cases := []struct {
		states    []brain.State
		consensus Consensus
		agreement Agreement
	}{
		{[]brain.State{brain.StateGreen, brain.StateGreen, brain.StateGreen}, ConsensusAllowed, AgreementHigh},
		{[]brain.State{brain.StateGreen, brain.StateAmber, brain.StateGreen}, ConsensusCaution, AgreementMedium},
		{[]brain.State{brain.StateAmber, brain.StateAmber, brain.StateAmber}, ConsensusCaution, AgreementHigh},
		{[]brain.State{brain.StateGreen, brain.StateGreen, brain.StateRed}, ConsensusBlocked, AgreementLow},
		{[]brain.State{brain.StateAmber, brain.StateRed, brain.StateRed}, ConsensusBlocked, AgreementMedium},
	}
	for _, tc := range cases {
		consensus, agreement := merge(tc.states...)
		assert.Equal(t, tc.consensus, consensus, "states %v", tc.states)
		assert.Equal(t, tc.agreement, agreement, "states %v", tc.states)
	}
}
