package indicator

import (
	"fmt"
	"math"
	"sort"

	"github.com/markcheno/go-talib"

	"vigil/internal/market"
)

// Trend labels derived from recent closes.
const (
	TrendUp       = "UP"
	TrendDown     = "DOWN"
	TrendSideways = "SIDEWAYS"
)

// Volatility regime labels.
const (
	RegimeNormal  = "NORMAL"
	RegimeHighVol = "HIGH_VOL"
	RegimeLowVol  = "LOW_VOL"
	RegimeRiskOff = "RISK_OFF"
)

// Snapshot bundles the locally computed indicators for one symbol+timeframe.
type Snapshot struct {
	ATR           float64 `json:"atr"`
	ATRPct        float64 `json:"atr_pct"`
	SMA20         float64 `json:"sma20"`
	SMA50         float64 `json:"sma50"`
	Trend         string  `json:"trend"`
	TrendStrength float64 `json:"trend_strength"`
	Regime        string  `json:"regime"`
	LastClose     float64 `json:"last_close"`
}

// Levels holds nearest support/resistance plus the classic pivot.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	Pivot      float64 `json:"pivot"`
}

// Compute derives the full indicator snapshot from closed candles.
func Compute(candles []market.Candle) (Snapshot, error) {
	if len(candles) == 0 {
		return Snapshot{}, fmt.Errorf("no candles")
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	lastClose := closes[len(closes)-1]

	snap := Snapshot{LastClose: lastClose}

	atrSeries := sanitize(talib.Atr(highs, lows, closes, 14))
	snap.ATR = last(atrSeries)
	if lastClose > 0 {
		snap.ATRPct = snap.ATR / lastClose * 100
	}
	snap.SMA20 = last(sanitize(talib.Sma(closes, 20)))
	snap.SMA50 = last(sanitize(talib.Sma(closes, 50)))

	snap.Trend, snap.TrendStrength = classifyTrend(closes, snap.SMA20, snap.SMA50)
	snap.Regime = classifyRegime(atrSeries, closes)

	return snap, nil
}

// KeyLevels picks the nearest swing low/high around the last close plus the
// pivot of the most recent candle.
func KeyLevels(candles []market.Candle) (Levels, error) {
	if len(candles) == 0 {
		return Levels{}, fmt.Errorf("no candles")
	}
	window := candles
	if len(window) > 50 {
		window = window[len(window)-50:]
	}
	lastClose := window[len(window)-1].Close
	lv := Levels{}
	for _, c := range window {
		if c.Low < lastClose && c.Low > lv.Support {
			lv.Support = c.Low
		}
		if c.High > lastClose && (lv.Resistance == 0 || c.High < lv.Resistance) {
			lv.Resistance = c.High
		}
	}
	latest := window[len(window)-1]
	lv.Pivot = (latest.High + latest.Low + latest.Close) / 3
	return lv, nil
}

// classifyTrend labels the direction from the SMA cross and scales strength
// by how far price has moved off the slow average.
func classifyTrend(closes []float64, sma20, sma50 float64) (string, float64) {
	if len(closes) < 2 || sma50 == 0 {
		return TrendSideways, 0
	}
	lastClose := closes[len(closes)-1]
	spread := (sma20 - sma50) / sma50
	strength := math.Min(math.Abs(spread)*25, 1)
	switch {
	case spread > 0.002 && lastClose >= sma20:
		return TrendUp, strength
	case spread < -0.002 && lastClose <= sma20:
		return TrendDown, strength
	default:
		return TrendSideways, strength
	}
}

// classifyRegime combines the latest ATR's percentile rank with a 5-candle
// downward bias check.
func classifyRegime(atrSeries, closes []float64) string {
	if len(atrSeries) == 0 {
		return RegimeNormal
	}
	pct := percentileRank(atrSeries, atrSeries[len(atrSeries)-1])
	if pct >= 0.80 && downwardBias(closes, 5) {
		return RegimeRiskOff
	}
	switch {
	case pct >= 0.80:
		return RegimeHighVol
	case pct <= 0.20:
		return RegimeLowVol
	default:
		return RegimeNormal
	}
}

// downwardBias reports whether the majority of the last n closes fell.
func downwardBias(closes []float64, n int) bool {
	if len(closes) < 2 {
		return false
	}
	if n >= len(closes) {
		n = len(closes) - 1
	}
	down := 0
	for i := len(closes) - n; i < len(closes); i++ {
		if closes[i] < closes[i-1] {
			down++
		}
	}
	return down*2 > n
}

func percentileRank(series []float64, v float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	below := sort.SearchFloat64s(sorted, v)
	return float64(below) / float64(len(sorted))
}

func sanitize(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
