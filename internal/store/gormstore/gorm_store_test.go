package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/brain"
	"vigil/internal/coordinator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleProposal(id string) *coordinator.TradeProposal {
	return &coordinator.TradeProposal{
		ID:        id,
		Symbol:    "AAPL",
		Timeframe: "5m",
		CreatedAt: time.Now(),
		Consensus: coordinator.ConsensusAllowed,
		Agreement: coordinator.AgreementHigh,
		Side:      brain.DirectionLong,
		Entry:     100,
		Stop:      95,
		Size:      coordinator.SizeBlock{BaseSize: 40, Multiplier: 1, AdjustedSize: 40, Notional: 4000},
		Risk:      coordinator.RiskBlock{EstMaxLossUSD: 200, EstMaxGainUSD: 400, RiskReward: 2},
	}
}

func TestAppendAndGetDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendDecision(ctx, sampleProposal("p-1"), []string{"memory"}))

	rec, found, err := s.GetDecision(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "allowed", rec.Consensus)
	assert.Equal(t, []string{"memory"}, rec.DegradedFeeds)
	require.NotNil(t, rec.Proposal, "full proposal survives the round trip")
	assert.Equal(t, 40.0, rec.Proposal.Size.AdjustedSize)

	_, found, err = s.GetDecision(ctx, "no-such")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAppendDecisionRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.AppendDecision(context.Background(), &coordinator.TradeProposal{}, nil))
	assert.Error(t, s.AppendDecision(context.Background(), nil, nil))
}

func TestRecordUserAction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendDecision(ctx, sampleProposal("p-1"), nil))

	require.NoError(t, s.RecordUserAction(ctx, "p-1", "approved", map[string]any{"note": "looks good"}))

	rec, _, err := s.GetDecision(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", rec.UserAction)
	assert.False(t, rec.UserActionAt.IsZero())

	assert.Error(t, s.RecordUserAction(ctx, "p-1", "shredded", nil), "unknown action")
	assert.ErrorIs(t, s.RecordUserAction(ctx, "missing", "rejected", nil), ErrNotFound)
}

func TestRecordOutcomeAndRecentOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"p-1", "p-2", "p-3"} {
		require.NoError(t, s.AppendDecision(ctx, sampleProposal(id), nil))
	}
	require.NoError(t, s.MarkExecuted(ctx, "p-1"))
	require.NoError(t, s.MarkExecuted(ctx, "p-2"))

	base := time.Now()
	require.NoError(t, s.RecordOutcome(ctx, "p-1", -120, base.Add(1*time.Hour)))
	require.NoError(t, s.RecordOutcome(ctx, "p-2", 80, base.Add(2*time.Hour)))

	outcomes, err := s.RecentOutcomes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, outcomes, 2, "open proposal p-3 is excluded")
	assert.Equal(t, 80.0, outcomes[0].RealizedPnL, "newest close first")
	assert.Equal(t, -120.0, outcomes[1].RealizedPnL)
	assert.True(t, outcomes[0].Win())
	assert.False(t, outcomes[1].Win())
	assert.Greater(t, outcomes[0].HoldingTime, time.Duration(0))
}

func TestActionCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, action := range []string{"approved", "approved", "rejected", "modified"} {
		id := sampleProposal("p-" + string(rune('a'+i)))
		require.NoError(t, s.AppendDecision(ctx, id, nil))
		require.NoError(t, s.RecordUserAction(ctx, id.ID, action, nil))
	}

	approved, rejected, modified, err := s.ActionCounts(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, approved)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, modified)

	approved, rejected, modified, err = s.ActionCounts(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, approved+rejected+modified, "future cutoff excludes everything")
}

func TestListDecisionsFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	aapl := sampleProposal("p-aapl")
	msft := sampleProposal("p-msft")
	msft.Symbol = "MSFT"
	require.NoError(t, s.AppendDecision(ctx, aapl, nil))
	require.NoError(t, s.AppendDecision(ctx, msft, nil))

	all, err := s.ListDecisions(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := s.ListDecisions(ctx, "msft", 10, 0)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "MSFT", only[0].Symbol)

	total, err := s.CountDecisions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
