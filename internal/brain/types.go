package brain

import "vigil/internal/analysis/indicator"

// Direction of a candidate trade.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// CandidateTrade is the market module's entry/stop/target proposal. It is
// advisory: sizing and account constraints belong to the risk module.
type CandidateTrade struct {
	Direction Direction `json:"direction"`
	Entry     float64   `json:"entry"`
	Stop      float64   `json:"stop"`
	Target    float64   `json:"target"`
	Ratio     float64   `json:"ratio"`
}

// MarketData is the market module payload.
type MarketData struct {
	Trend         string           `json:"trend"`
	TrendStrength float64          `json:"trend_strength"`
	Bias          Direction        `json:"bias"`
	Regime        string           `json:"regime"`
	Levels        indicator.Levels `json:"levels"`
	Candidate     *CandidateTrade  `json:"candidate,omitempty"`
}

// TakeProfitBands are the three exit targets derived from the entry-target
// leg at 0.5x / 1.0x / 1.5x.
type TakeProfitBands struct {
	Conservative float64 `json:"conservative"`
	Moderate     float64 `json:"moderate"`
	Aggressive   float64 `json:"aggressive"`
}

// RiskData is the risk module payload. OKToTrade false always coincides
// with a red state.
type RiskData struct {
	OKToTrade       bool            `json:"ok_to_trade"`
	PositionSize    float64         `json:"position_size"`
	Notional        float64         `json:"notional"`
	MaxLossUSD      float64         `json:"max_loss_usd"`
	RiskReward      float64         `json:"risk_reward"`
	RiskPctOfEquity float64         `json:"risk_pct_of_equity"`
	Bands           TakeProfitBands `json:"bands"`
	CapApplied      bool            `json:"cap_applied"`
}

// Mental state labels.
const (
	MentalClear         = "clear"
	MentalTilt          = "tilt"
	MentalFOMO          = "fomo"
	MentalFear          = "fear"
	MentalOverconfident = "overconfident"
	MentalFatigued      = "fatigued"
)

// Recommended actions, each tied to a sizing multiplier.
const (
	ActionProceed  = "proceed"
	ActionPause    = "pause"
	ActionSizeDown = "size_down"
	ActionCoolDown = "cool_down"
)

// PsychologyData is the behavior module payload.
type PsychologyData struct {
	MentalState       string   `json:"mental_state"`
	RecommendedAction string   `json:"recommended_action"`
	SizeMultiplier    float64  `json:"size_multiplier"`
	Flags             []string `json:"flags,omitempty"`
}
