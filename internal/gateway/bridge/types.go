package bridge

// Account is the brokerage account snapshot as reported by the bridge.
type Account struct {
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	BuyingPower   float64 `json:"buying_power"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	DailyPnL      float64 `json:"daily_pnl"`
	OpenRiskPct   float64 `json:"open_risk_pct"`
}

// Position is one open position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	MarketPrice   float64 `json:"market_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Exposure      float64 `json:"exposure"`
}

// Order is one working order.
type Order struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"`
}

// Health reports bridge connectivity and auth state.
type Health struct {
	Connected     bool `json:"connected"`
	Authenticated bool `json:"authenticated"`
}
