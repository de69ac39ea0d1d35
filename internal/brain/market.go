package brain

import (
	"fmt"

	"vigil/internal/analysis/indicator"
	"vigil/internal/worldstate"
)

// AnalyzeMarket grades the market picture for the snapshot's instrument and
// derives a candidate entry/stop/target when the trend supports one. It is
// a pure function of the snapshot: no account constraint is consulted here.
func AnalyzeMarket(snap *worldstate.Snapshot) Output[MarketData] {
	if snap == nil || len(snap.Market.Candles) == 0 {
		return newOutput(StateRed, 0,
			fmt.Sprintf("no candle data available for %s; refusing to analyze without prices", tickerOf(snap)),
			MarketData{Bias: DirectionNeutral})
	}

	ind := snap.Market.Indicators
	data := MarketData{
		Trend:         ind.Trend,
		TrendStrength: ind.TrendStrength,
		Regime:        ind.Regime,
		Levels:        snap.Market.Levels,
		Bias:          biasFromTrend(ind.Trend),
	}

	if data.Bias == DirectionNeutral {
		return newOutput(StateAmber, 0.3,
			fmt.Sprintf("%s trend is sideways (strength %.2f); no directional edge", snap.Ticker, ind.TrendStrength),
			data)
	}

	data.Candidate = buildCandidate(data.Bias, ind, snap.Market.Levels)
	if data.Candidate == nil {
		return newOutput(StateAmber, 0.3,
			fmt.Sprintf("%s trend is %s but no clean entry/stop/target structure near current levels", snap.Ticker, ind.Trend),
			data)
	}

	state := StateGreen
	reason := fmt.Sprintf("%s trend %s (strength %.2f), regime %s; candidate %s entry=%.2f stop=%.2f target=%.2f rr=%.2f",
		snap.Ticker, ind.Trend, ind.TrendStrength, ind.Regime,
		data.Candidate.Direction, data.Candidate.Entry, data.Candidate.Stop, data.Candidate.Target, data.Candidate.Ratio)
	if ind.Regime == indicator.RegimeRiskOff || ind.Regime == indicator.RegimeHighVol {
		state = StateAmber
		reason += fmt.Sprintf("; volatility regime %s warrants caution", ind.Regime)
	}

	confidence := 0.5 + ind.TrendStrength/2
	return newOutput(state, confidence, reason, data)
}

func biasFromTrend(trend string) Direction {
	switch trend {
	case indicator.TrendUp:
		return DirectionLong
	case indicator.TrendDown:
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// buildCandidate anchors the stop at the nearest level (or one ATR away
// when no level exists) and the target at the opposing level (or two ATR).
// Returns nil when the geometry is inverted or degenerate.
func buildCandidate(bias Direction, ind indicator.Snapshot, lv indicator.Levels) *CandidateTrade {
	entry := ind.LastClose
	if entry <= 0 || ind.ATR <= 0 {
		return nil
	}
	var stop, target float64
	switch bias {
	case DirectionLong:
		stop = lv.Support
		if stop <= 0 || stop >= entry {
			stop = entry - ind.ATR
		}
		target = lv.Resistance
		if target <= entry {
			target = entry + 2*ind.ATR
		}
	case DirectionShort:
		stop = lv.Resistance
		if stop <= entry {
			stop = entry + ind.ATR
		}
		target = lv.Support
		if target <= 0 || target >= entry {
			target = entry - 2*ind.ATR
		}
	default:
		return nil
	}

	stopDist := abs(entry - stop)
	targetDist := abs(target - entry)
	if stopDist <= 0 || targetDist <= 0 {
		return nil
	}
	return &CandidateTrade{
		Direction: bias,
		Entry:     entry,
		Stop:      stop,
		Target:    target,
		Ratio:     targetDist / stopDist,
	}
}

func tickerOf(snap *worldstate.Snapshot) string {
	if snap == nil {
		return "?"
	}
	return snap.Ticker
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
