package coordinator

import (
	"time"

	"vigil/internal/brain"
)

// Consensus is the coordinator's final word on a cycle.
type Consensus string

const (
	ConsensusAllowed Consensus = "allowed" // every module green
	ConsensusCaution Consensus = "caution" // at least one amber, no red
	ConsensusBlocked Consensus = "blocked" // at least one red
)

// Agreement grades how closely the module verdicts cluster.
type Agreement string

const (
	AgreementHigh   Agreement = "high"   // all modules on the same state
	AgreementMedium Agreement = "medium" // states one step apart
	AgreementLow    Agreement = "low"    // green and red in the same cycle
)

// SizeBlock carries the sizing chain: the risk module's base size, the
// psychology multiplier, and the adjusted size actually proposed.
type SizeBlock struct {
	BaseSize     float64 `json:"base_size"`
	Multiplier   float64 `json:"multiplier"`
	AdjustedSize float64 `json:"adjusted_size"`
	Notional     float64 `json:"notional"`
}

// RiskBlock carries the dollar estimates recomputed from the adjusted size.
type RiskBlock struct {
	EstMaxLossUSD float64 `json:"est_max_loss_usd"`
	EstMaxGainUSD float64 `json:"est_max_gain_usd"`
	RiskReward    float64 `json:"risk_reward"`
}

// PsychologyBlock surfaces the behavior module's recommendation on the
// proposal itself so a reader does not have to dig into module payloads.
type PsychologyBlock struct {
	MentalState       string   `json:"mental_state"`
	RecommendedAction string   `json:"recommended_action"`
	Flags             []string `json:"flags,omitempty"`
}

// ModuleOutputs preserves each module's full graded output for the audit
// trail.
type ModuleOutputs struct {
	Market     brain.Output[brain.MarketData]     `json:"market"`
	Risk       brain.Output[brain.RiskData]       `json:"risk"`
	Psychology brain.Output[brain.PsychologyData] `json:"psychology"`
}

// TradeProposal is the coordinator's complete, self-describing output for
// one decision cycle. Blocked proposals still carry every module output so
// the refusal can be audited.
type TradeProposal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	CreatedAt time.Time `json:"created_at"`

	Consensus Consensus `json:"consensus"`
	Agreement Agreement `json:"agreement"`

	Side    brain.Direction       `json:"side"`
	Entry   float64               `json:"entry"`
	Stop    float64               `json:"stop"`
	Targets brain.TakeProfitBands `json:"targets"`

	Size       SizeBlock       `json:"size"`
	Risk       RiskBlock       `json:"risk"`
	Psychology PsychologyBlock `json:"psychology"`

	Modules     ModuleOutputs `json:"modules"`
	Explanation string        `json:"explanation"`
}

// Actionable reports whether the proposal may move toward execution.
func (p *TradeProposal) Actionable() bool {
	return p != nil && p.Consensus != ConsensusBlocked && p.Size.AdjustedSize > 0
}
