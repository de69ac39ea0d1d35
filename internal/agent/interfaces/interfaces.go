package interfaces

import (
	"context"

	"vigil/internal/coordinator"
	"vigil/internal/worldstate"
)

// SnapshotBuilder assembles one immutable world snapshot per cycle.
type SnapshotBuilder interface {
	Build(ctx context.Context, ticker, timeframe string) (*worldstate.Snapshot, error)
}

// ProposalCoordinator runs the analysis modules over a snapshot and merges
// their verdicts into a single proposal.
type ProposalCoordinator interface {
	Coordinate(ctx context.Context, snap *worldstate.Snapshot) (*coordinator.TradeProposal, error)
}

// DecisionAuditor records every proposal, blocked ones included.
type DecisionAuditor interface {
	AppendDecision(ctx context.Context, p *coordinator.TradeProposal, degradedFeeds []string) error
}
