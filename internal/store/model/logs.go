package model

import "gorm.io/datatypes"

// ActionLogModel is the append-only log of user actions on proposals. The
// decision row keeps only the latest action; this table keeps them all, so
// a modify-then-reject sequence stays visible.
type ActionLogModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	ProposalID string         `gorm:"column:proposal_id;index"`
	Symbol     string         `gorm:"column:symbol;index"`
	Action     string         `gorm:"column:action;index"`
	Details    datatypes.JSON `gorm:"column:details;type:TEXT"`
	Timestamp  int64          `gorm:"column:timestamp;index"`
}

func (ActionLogModel) TableName() string { return "user_action_log" }
