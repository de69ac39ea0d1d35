package model

import "gorm.io/datatypes"

// DecisionModel is the audit row for one coordinator proposal. It is
// append-at-proposal and update-in-place afterwards: the user's action and
// the eventual trade outcome land on the same row, so one record tells the
// whole story of a decision.
type DecisionModel struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	ProposalID string `gorm:"column:proposal_id;uniqueIndex"`
	Symbol     string `gorm:"column:symbol;index"`
	Timeframe  string `gorm:"column:timeframe"`
	Consensus  string `gorm:"column:consensus;index"`
	Agreement  string `gorm:"column:agreement"`

	Side          string  `gorm:"column:side"`
	Entry         float64 `gorm:"column:entry"`
	Stop          float64 `gorm:"column:stop"`
	AdjustedSize  float64 `gorm:"column:adjusted_size"`
	EstMaxLossUSD float64 `gorm:"column:est_max_loss_usd"`

	// Proposal holds the full serialized TradeProposal, module outputs
	// included, so a refusal can be replayed without rebuilding state.
	Proposal      datatypes.JSON `gorm:"column:proposal_json;type:TEXT"`
	DegradedFeeds string         `gorm:"column:degraded_feeds"`

	UserAction       string `gorm:"column:user_action;index"`
	UserActionAtUnix int64  `gorm:"column:user_action_at"`

	Executed       int   `gorm:"column:executed"`
	ExecutedAtUnix int64 `gorm:"column:executed_at"`

	Closed         int     `gorm:"column:closed;index"`
	RealizedPnL    float64 `gorm:"column:realized_pnl"`
	ClosedAtUnix   int64   `gorm:"column:closed_at;index"`
	HoldingSeconds int64   `gorm:"column:holding_seconds"`

	CreatedAtUnix int64 `gorm:"column:created_at;index"`
	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (DecisionModel) TableName() string { return "agent_decisions" }
