package worldstate

import (
	"time"

	"vigil/internal/analysis/indicator"
	"vigil/internal/gateway/bridge"
	"vigil/internal/market"
	"vigil/internal/memory"
)

// Feed names used in SystemState.Feeds.
const (
	FeedCandles   = "candles"
	FeedQuote     = "quote"
	FeedAccount   = "account"
	FeedPositions = "positions"
	FeedOrders    = "orders"
	FeedMemory    = "memory"
	FeedBehavior  = "behavior"
)

// Snapshot is one timestamped aggregation of everything a decision cycle
// may look at. Built once per cycle and never mutated afterwards; every
// analysis module receives the same value.
type Snapshot struct {
	Ticker    string    `json:"ticker"`
	Timeframe string    `json:"timeframe"`
	CreatedAt time.Time `json:"created_at"`

	Market    MarketState       `json:"market"`
	Account   bridge.Account    `json:"account"`
	Positions []bridge.Position `json:"positions"`
	Orders    []bridge.Order    `json:"orders"`
	Memory    MemoryState       `json:"memory"`
	User      UserState         `json:"user"`
	System    SystemState       `json:"system"`
}

// MarketState carries raw candles plus locally derived indicators.
type MarketState struct {
	Candles    []market.Candle    `json:"candles"`
	Quote      market.Quote       `json:"quote"`
	Indicators indicator.Snapshot `json:"indicators"`
	Levels     indicator.Levels   `json:"levels"`
}

// MemoryState carries ranked corpus snippets, matching playbook rules and
// the recent closed-trade history.
type MemoryState struct {
	Snippets []memory.Snippet `json:"snippets,omitempty"`
	Rules    []memory.Rule    `json:"rules,omitempty"`
	Outcomes []TradeOutcome   `json:"outcomes,omitempty"`
}

// TradeOutcome is one closed trade, newest first in MemoryState.Outcomes.
type TradeOutcome struct {
	Symbol      string        `json:"symbol"`
	RealizedPnL float64       `json:"realized_pnl"`
	HoldingTime time.Duration `json:"holding_time"`
	ClosedAt    time.Time     `json:"closed_at"`
}

// Win reports whether the trade closed profitably.
func (t TradeOutcome) Win() bool { return t.RealizedPnL > 0 }

// UserState summarizes session behavior signals.
type UserState struct {
	Approved          int           `json:"approved"`
	Rejected          int           `json:"rejected"`
	Modified          int           `json:"modified"`
	SessionLength     time.Duration `json:"session_length"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	TimeOfDay         string        `json:"time_of_day"`
}

// FeedStatus records whether one upstream fetch succeeded and when.
type FeedStatus struct {
	OK        bool      `json:"ok"`
	FetchedAt time.Time `json:"fetched_at"`
	Err       string    `json:"err,omitempty"`
}

// SystemState carries per-feed freshness plus bridge health flags.
type SystemState struct {
	Feeds               map[string]FeedStatus `json:"feeds"`
	BridgeConnected     bool                  `json:"bridge_connected"`
	BridgeAuthenticated bool                  `json:"bridge_authenticated"`
}

// FeedOK reports whether the named feed fetched successfully.
func (s SystemState) FeedOK(feed string) bool {
	return s.Feeds[feed].OK
}

// FeedAge returns how stale the named feed is at now. A feed that never
// fetched reports an effectively infinite age.
func (s SystemState) FeedAge(feed string, now time.Time) time.Duration {
	st, ok := s.Feeds[feed]
	if !ok || st.FetchedAt.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return now.Sub(st.FetchedAt)
}

// Degraded lists the feeds that failed.
func (s SystemState) Degraded() []string {
	var out []string
	for _, feed := range []string{FeedCandles, FeedQuote, FeedAccount, FeedPositions, FeedOrders, FeedMemory, FeedBehavior} {
		if st, ok := s.Feeds[feed]; ok && !st.OK {
			out = append(out, feed)
		}
	}
	return out
}
