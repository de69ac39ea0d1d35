package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"vigil/internal/coordinator"
	storemodel "vigil/internal/store/model"
	"vigil/internal/worldstate"
)

type decisionModel = storemodel.DecisionModel
type actionLogModel = storemodel.ActionLogModel

// User actions accepted by RecordUserAction.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
	ActionModified = "modified"
)

var ErrNotFound = gorm.ErrRecordNotFound

// DecisionRecord is the read-side view of one audit row.
type DecisionRecord struct {
	ID            int64                     `json:"id"`
	ProposalID    string                    `json:"proposal_id"`
	Symbol        string                    `json:"symbol"`
	Timeframe     string                    `json:"timeframe"`
	Consensus     string                    `json:"consensus"`
	Agreement     string                    `json:"agreement"`
	Side          string                    `json:"side"`
	Entry         float64                   `json:"entry"`
	Stop          float64                   `json:"stop"`
	AdjustedSize  float64                   `json:"adjusted_size"`
	EstMaxLossUSD float64                   `json:"est_max_loss_usd"`
	DegradedFeeds []string                  `json:"degraded_feeds,omitempty"`
	UserAction    string                    `json:"user_action,omitempty"`
	UserActionAt  time.Time                 `json:"user_action_at,omitempty"`
	Executed      bool                      `json:"executed"`
	ExecutedAt    time.Time                 `json:"executed_at,omitempty"`
	Closed        bool                      `json:"closed"`
	RealizedPnL   float64                   `json:"realized_pnl"`
	ClosedAt      time.Time                 `json:"closed_at,omitempty"`
	HoldingTime   time.Duration             `json:"holding_time"`
	CreatedAt     time.Time                 `json:"created_at"`
	Proposal      *coordinator.TradeProposal `json:"proposal,omitempty"`
}

// Store persists decision audit rows in SQLite through Gorm. It doubles as
// the behavior feed for world-state building: closed outcomes and action
// counts come back out of the same tables they were written to.
type Store struct {
	db *gorm.DB
}

var _ worldstate.BehaviorSource = (*Store)(nil)

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: decision db path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&decisionModel{}, &actionLogModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendDecision writes the audit row for a freshly coordinated proposal.
// Every proposal is recorded, blocked ones included.
func (s *Store) AppendDecision(ctx context.Context, p *coordinator.TradeProposal, degradedFeeds []string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("append decision: proposal without an id")
	}
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	now := time.Now()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	m := decisionModel{
		ProposalID:    p.ID,
		Symbol:        strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Timeframe:     p.Timeframe,
		Consensus:     string(p.Consensus),
		Agreement:     string(p.Agreement),
		Side:          string(p.Side),
		Entry:         p.Entry,
		Stop:          p.Stop,
		AdjustedSize:  p.Size.AdjustedSize,
		EstMaxLossUSD: p.Risk.EstMaxLossUSD,
		Proposal:      datatypes.JSON(blob),
		DegradedFeeds: strings.Join(degradedFeeds, ","),
		CreatedAtUnix: created.Unix(),
		UpdatedAtUnix: now.Unix(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// RecordUserAction stores the user's response to a proposal and appends it
// to the action log. Unknown actions are rejected before touching the DB.
func (s *Store) RecordUserAction(ctx context.Context, proposalID, action string, details map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	proposalID = strings.TrimSpace(proposalID)
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case ActionApproved, ActionRejected, ActionModified:
	default:
		return fmt.Errorf("unknown user action %q", action)
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&decisionModel{}).
			Where("proposal_id = ?", proposalID).
			Updates(map[string]any{
				"user_action":    action,
				"user_action_at": now.Unix(),
				"updated_at":     now.Unix(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var symbol string
		if err := tx.Model(&decisionModel{}).
			Where("proposal_id = ?", proposalID).
			Pluck("symbol", &symbol).Error; err != nil {
			return err
		}
		detailBytes, _ := json.Marshal(details)
		return tx.Create(&actionLogModel{
			ProposalID: proposalID,
			Symbol:     symbol,
			Action:     action,
			Details:    datatypes.JSON(detailBytes),
			Timestamp:  now.UnixMilli(),
		}).Error
	})
}

// MarkExecuted stamps the row once the proposal actually reached an
// execution path.
func (s *Store) MarkExecuted(ctx context.Context, proposalID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&decisionModel{}).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Updates(map[string]any{
			"executed":    1,
			"executed_at": now.Unix(),
			"updated_at":  now.Unix(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordOutcome closes the loop on an executed proposal with its realized
// result. Holding time is derived from the row's own creation timestamp.
func (s *Store) RecordOutcome(ctx context.Context, proposalID string, realizedPnL float64, closedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	proposalID = strings.TrimSpace(proposalID)
	if closedAt.IsZero() {
		closedAt = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m decisionModel
		if err := tx.Where("proposal_id = ?", proposalID).First(&m).Error; err != nil {
			return err
		}
		holding := closedAt.Unix() - m.CreatedAtUnix
		if holding < 0 {
			holding = 0
		}
		return tx.Model(&decisionModel{}).
			Where("proposal_id = ?", proposalID).
			Updates(map[string]any{
				"closed":          1,
				"realized_pnl":    realizedPnL,
				"closed_at":       closedAt.Unix(),
				"holding_seconds": holding,
				"updated_at":      time.Now().Unix(),
			}).Error
	})
}

// GetDecision returns one audit row by proposal id.
func (s *Store) GetDecision(ctx context.Context, proposalID string) (DecisionRecord, bool, error) {
	if s == nil || s.db == nil {
		return DecisionRecord{}, false, fmt.Errorf("gorm store not initialized")
	}
	var m decisionModel
	err := s.db.WithContext(ctx).Where("proposal_id = ?", strings.TrimSpace(proposalID)).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DecisionRecord{}, false, nil
		}
		return DecisionRecord{}, false, err
	}
	return modelToRecord(m), true, nil
}

// ListDecisions returns recent audit rows, newest first, optionally
// filtered by symbol.
func (s *Store) ListDecisions(ctx context.Context, symbol string, limit, offset int) ([]DecisionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&decisionModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	var models []decisionModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]DecisionRecord, 0, len(models))
	for _, m := range models {
		out = append(out, modelToRecord(m))
	}
	return out, nil
}

func (s *Store) CountDecisions(ctx context.Context, symbol string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&decisionModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// ------------------------- BehaviorSource -------------------------

// RecentOutcomes returns closed trades newest first for behavioral
// analysis.
func (s *Store) RecentOutcomes(ctx context.Context, limit int) ([]worldstate.TradeOutcome, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var models []decisionModel
	if err := s.db.WithContext(ctx).
		Where("closed = 1").
		Order("closed_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]worldstate.TradeOutcome, 0, len(models))
	for _, m := range models {
		out = append(out, worldstate.TradeOutcome{
			Symbol:      m.Symbol,
			RealizedPnL: m.RealizedPnL,
			HoldingTime: time.Duration(m.HoldingSeconds) * time.Second,
			ClosedAt:    time.Unix(m.ClosedAtUnix, 0),
		})
	}
	return out, nil
}

// ActionCounts tallies user responses since the given time.
func (s *Store) ActionCounts(ctx context.Context, since time.Time) (approved, rejected, modified int, err error) {
	if s == nil || s.db == nil {
		return 0, 0, 0, fmt.Errorf("gorm store not initialized")
	}
	type row struct {
		Action string
		Total  int64
	}
	var rows []row
	if err = s.db.WithContext(ctx).Model(&actionLogModel{}).
		Select("action, COUNT(*) AS total").
		Where("timestamp >= ?", since.UnixMilli()).
		Group("action").
		Scan(&rows).Error; err != nil {
		return 0, 0, 0, err
	}
	for _, r := range rows {
		switch r.Action {
		case ActionApproved:
			approved = int(r.Total)
		case ActionRejected:
			rejected = int(r.Total)
		case ActionModified:
			modified = int(r.Total)
		}
	}
	return approved, rejected, modified, nil
}

func modelToRecord(m decisionModel) DecisionRecord {
	rec := DecisionRecord{
		ID:            m.ID,
		ProposalID:    m.ProposalID,
		Symbol:        m.Symbol,
		Timeframe:     m.Timeframe,
		Consensus:     m.Consensus,
		Agreement:     m.Agreement,
		Side:          m.Side,
		Entry:         m.Entry,
		Stop:          m.Stop,
		AdjustedSize:  m.AdjustedSize,
		EstMaxLossUSD: m.EstMaxLossUSD,
		UserAction:    m.UserAction,
		Executed:      m.Executed != 0,
		Closed:        m.Closed != 0,
		RealizedPnL:   m.RealizedPnL,
		HoldingTime:   time.Duration(m.HoldingSeconds) * time.Second,
		CreatedAt:     time.Unix(m.CreatedAtUnix, 0),
	}
	if m.DegradedFeeds != "" {
		rec.DegradedFeeds = strings.Split(m.DegradedFeeds, ",")
	}
	if m.UserActionAtUnix > 0 {
		rec.UserActionAt = time.Unix(m.UserActionAtUnix, 0)
	}
	if m.ExecutedAtUnix > 0 {
		rec.ExecutedAt = time.Unix(m.ExecutedAtUnix, 0)
	}
	if m.ClosedAtUnix > 0 {
		rec.ClosedAt = time.Unix(m.ClosedAtUnix, 0)
	}
	if len(m.Proposal) > 0 {
		var p coordinator.TradeProposal
		if err := json.Unmarshal(m.Proposal, &p); err == nil {
			rec.Proposal = &p
		}
	}
	return rec
}
