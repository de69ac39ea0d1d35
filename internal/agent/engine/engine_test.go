package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vigil/internal/brain"
	"vigil/internal/config"
	"vigil/internal/coordinator"
	"vigil/internal/worldstate"
)

type mockBuilder struct{ mock.Mock }

func (m *mockBuilder) Build(ctx context.Context, ticker, timeframe string) (*worldstate.Snapshot, error) {
	args := m.Called(ctx, ticker, timeframe)
	if snap := args.Get(0); snap != nil {
		return snap.(*worldstate.Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCoordinator struct{ mock.Mock }

func (m *mockCoordinator) Coordinate(ctx context.Context, snap *worldstate.Snapshot) (*coordinator.TradeProposal, error) {
	args := m.Called(ctx, snap)
	if p := args.Get(0); p != nil {
		return p.(*coordinator.TradeProposal), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) AppendDecision(ctx context.Context, p *coordinator.TradeProposal, degraded []string) error {
	args := m.Called(ctx, p, degraded)
	return args.Error(0)
}

func engineConfig() config.AgentConfig {
	return config.AgentConfig{
		Mode:         "observe",
		Symbols:      []string{"aapl", "MSFT"},
		Timeframe:    "5m",
		CycleSeconds: 300,
	}
}

func degradedSnapshot() *worldstate.Snapshot {
	return &worldstate.Snapshot{
		Ticker:    "AAPL",
		Timeframe: "5m",
		CreatedAt: time.Now(),
		System: worldstate.SystemState{
			Feeds: map[string]worldstate.FeedStatus{
				worldstate.FeedCandles: {OK: true, FetchedAt: time.Now()},
				worldstate.FeedMemory:  {OK: false, Err: "timeout"},
			},
		},
	}
}

func TestRunCycleSuccess(t *testing.T) {
	builder := new(mockBuilder)
	coord := new(mockCoordinator)
	audit := new(mockAuditor)

	snap := degradedSnapshot()
	proposal := &coordinator.TradeProposal{
		ID:        "p-1",
		Symbol:    "AAPL",
		Consensus: coordinator.ConsensusCaution,
		Side:      brain.DirectionLong,
	}
	builder.On("Build", mock.Anything, "AAPL", "5m").Return(snap, nil)
	coord.On("Coordinate", mock.Anything, snap).Return(proposal, nil)
	audit.On("AppendDecision", mock.Anything, proposal, []string{"memory"}).Return(nil)

	e := New(engineConfig(), builder, coord, audit)
	require.NoError(t, e.RunCycle(context.Background(), "aapl"))

	res, ok := e.Latest("AAPL")
	require.True(t, ok)
	assert.Equal(t, proposal, res.Proposal)
	assert.Equal(t, []string{"memory"}, res.DegradedFeeds)
	assert.Empty(t, res.Err)
	builder.AssertExpectations(t)
	coord.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestRunCycleBuildFailure(t *testing.T) {
	builder := new(mockBuilder)
	coord := new(mockCoordinator)
	audit := new(mockAuditor)

	builder.On("Build", mock.Anything, "AAPL", "5m").Return(nil, errors.New("feed down"))

	e := New(engineConfig(), builder, coord, audit)
	err := e.RunCycle(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build snapshot")

	res, ok := e.Latest("AAPL")
	require.True(t, ok, "failed cycles are cached too")
	assert.Nil(t, res.Proposal)
	assert.Contains(t, res.Err, "feed down")
	coord.AssertNotCalled(t, "Coordinate")
	audit.AssertNotCalled(t, "AppendDecision")
}

func TestRunCycleAuditFailure(t *testing.T) {
	builder := new(mockBuilder)
	coord := new(mockCoordinator)
	audit := new(mockAuditor)

	snap := degradedSnapshot()
	proposal := &coordinator.TradeProposal{ID: "p-1", Symbol: "AAPL"}
	builder.On("Build", mock.Anything, "AAPL", "5m").Return(snap, nil)
	coord.On("Coordinate", mock.Anything, snap).Return(proposal, nil)
	audit.On("AppendDecision", mock.Anything, proposal, mock.Anything).Return(errors.New("disk full"))

	e := New(engineConfig(), builder, coord, audit)
	err := e.RunCycle(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit decision")

	// The proposal itself still lands in the cache even when the audit
	// write failed, so the HTTP surface can show it.
	res, _ := e.Latest("AAPL")
	assert.Equal(t, proposal, res.Proposal)
}

func TestStatusView(t *testing.T) {
	builder := new(mockBuilder)
	coord := new(mockCoordinator)
	audit := new(mockAuditor)

	snap := degradedSnapshot()
	proposal := &coordinator.TradeProposal{ID: "p-1", Symbol: "AAPL", Consensus: coordinator.ConsensusAllowed}
	builder.On("Build", mock.Anything, "AAPL", "5m").Return(snap, nil)
	coord.On("Coordinate", mock.Anything, snap).Return(proposal, nil)
	audit.On("AppendDecision", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	e := New(engineConfig(), builder, coord, audit)
	require.NoError(t, e.RunCycle(context.Background(), "AAPL"))

	st := e.Status()
	assert.Equal(t, "observe", st.Mode)
	assert.Equal(t, int64(1), st.Cycles)
	require.Len(t, st.Symbols, 2, "symbols are normalized and sorted")
	assert.Equal(t, "AAPL", st.Symbols[0].Symbol)
	assert.Equal(t, "allowed", st.Symbols[0].LastConsensus)
	assert.Equal(t, "CLOSED", st.Symbols[0].Breaker)
	assert.Equal(t, "MSFT", st.Symbols[1].Symbol)
	assert.Empty(t, st.Symbols[1].LastConsensus)
}

func TestPaperExecutorRejectsNonActionable(t *testing.T) {
	x := NewPaperExecutor()
	_, err := x.Execute(context.Background(), &coordinator.TradeProposal{
		ID:        "p-1",
		Consensus: coordinator.ConsensusBlocked,
	})
	assert.Error(t, err)

	receipt, err := x.Execute(context.Background(), &coordinator.TradeProposal{
		ID:        "p-2",
		Symbol:    "AAPL",
		Consensus: coordinator.ConsensusAllowed,
		Side:      brain.DirectionLong,
		Size:      coordinator.SizeBlock{AdjustedSize: 10},
	})
	require.NoError(t, err)
	assert.True(t, receipt.Paper)
	assert.NotEmpty(t, receipt.OrderID)
	assert.Equal(t, "paper", receipt.Venue)
}
