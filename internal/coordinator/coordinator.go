package coordinator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vigil/internal/brain"
	"vigil/internal/config"
	"vigil/internal/worldstate"
)

// Coordinator runs the analysis modules over one snapshot and merges their
// verdicts into a single TradeProposal.
type Coordinator struct {
	cfg config.AgentConfig
}

func New(cfg config.AgentConfig) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// Coordinate is one full decision pass. The market module runs first
// because risk sizing depends on its candidate; risk and psychology then
// run concurrently since neither reads the other's output.
func (c *Coordinator) Coordinate(ctx context.Context, snap *worldstate.Snapshot) (*TradeProposal, error) {
	if snap == nil {
		return nil, fmt.Errorf("coordinate: nil snapshot")
	}

	marketOut := brain.AnalyzeMarket(snap)

	var (
		riskOut  brain.Output[brain.RiskData]
		psychOut brain.Output[brain.PsychologyData]
	)
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		riskOut = brain.AnalyzeRisk(snap, c.cfg.Risk, marketOut)
		return nil
	})
	group.Go(func() error {
		psychOut = brain.AnalyzePsychology(snap, c.cfg.Psychology)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return c.assemble(snap, marketOut, riskOut, psychOut), nil
}

func (c *Coordinator) assemble(
	snap *worldstate.Snapshot,
	marketOut brain.Output[brain.MarketData],
	riskOut brain.Output[brain.RiskData],
	psychOut brain.Output[brain.PsychologyData],
) *TradeProposal {
	p := &TradeProposal{
		ID:        uuid.NewString(),
		Symbol:    snap.Ticker,
		Timeframe: snap.Timeframe,
		CreatedAt: snap.CreatedAt,
		Psychology: PsychologyBlock{
			MentalState:       psychOut.Payload.MentalState,
			RecommendedAction: psychOut.Payload.RecommendedAction,
			Flags:             psychOut.Payload.Flags,
		},
		Modules: ModuleOutputs{Market: marketOut, Risk: riskOut, Psychology: psychOut},
	}

	p.Consensus, p.Agreement = merge(marketOut.State, riskOut.State, psychOut.State)

	if cand := marketOut.Payload.Candidate; cand != nil {
		p.Side = cand.Direction
		p.Entry = cand.Entry
		p.Stop = cand.Stop
		p.Targets = riskOut.Payload.Bands
	} else {
		p.Side = brain.DirectionNeutral
	}

	// The psychology multiplier scales the risk module's size; the dollar
	// estimates are then recomputed from the adjusted size so they stay
	// consistent with what would actually be placed.
	base := riskOut.Payload.PositionSize
	mult := psychOut.Payload.SizeMultiplier
	adjusted := base * mult
	if adjusted < 0 {
		adjusted = 0
	}
	p.Size = SizeBlock{
		BaseSize:     base,
		Multiplier:   mult,
		AdjustedSize: adjusted,
		Notional:     adjusted * p.Entry,
	}
	if cand := marketOut.Payload.Candidate; cand != nil && adjusted > 0 {
		stopDist := math.Abs(cand.Entry - cand.Stop)
		targetDist := math.Abs(cand.Target - cand.Entry)
		p.Risk = RiskBlock{
			EstMaxLossUSD: adjusted * stopDist,
			EstMaxGainUSD: adjusted * targetDist,
			RiskReward:    riskOut.Payload.RiskReward,
		}
	}

	p.Explanation = explain(p, marketOut, riskOut, psychOut)
	return p
}

// merge folds the three module states into a consensus plus an agreement
// grade. Any red blocks outright; ambers downgrade to caution.
func merge(states ...brain.State) (Consensus, Agreement) {
	worst := brain.Worst(states...)
	minRank, maxRank := 2, 0
	for _, s := range states {
		r := rank(s)
		if r < minRank {
			minRank = r
		}
		if r > maxRank {
			maxRank = r
		}
	}

	var agreement Agreement
	switch maxRank - minRank {
	case 0:
		agreement = AgreementHigh
	case 1:
		agreement = AgreementMedium
	default:
		agreement = AgreementLow
	}

	switch worst {
	case brain.StateRed:
		return ConsensusBlocked, agreement
	case brain.StateAmber:
		return ConsensusCaution, agreement
	default:
		return ConsensusAllowed, agreement
	}
}

func rank(s brain.State) int {
	switch s {
	case brain.StateRed:
		return 2
	case brain.StateAmber:
		return 1
	default:
		return 0
	}
}

// explain writes the proposal's human-facing summary. Blocked proposals
// name every red module; caution names every amber.
func explain(
	p *TradeProposal,
	marketOut brain.Output[brain.MarketData],
	riskOut brain.Output[brain.RiskData],
	psychOut brain.Output[brain.PsychologyData],
) string {
	type graded struct {
		name  string
		state brain.State
		why   string
	}
	modules := []graded{
		{"market", marketOut.State, marketOut.Reasoning},
		{"risk", riskOut.State, riskOut.Reasoning},
		{"psychology", psychOut.State, psychOut.Reasoning},
	}

	pick := func(want brain.State) []string {
		var out []string
		for _, m := range modules {
			if m.state == want {
				out = append(out, fmt.Sprintf("%s: %s", m.name, m.why))
			}
		}
		return out
	}

	switch p.Consensus {
	case ConsensusBlocked:
		return fmt.Sprintf("blocked: %s", strings.Join(pick(brain.StateRed), "; "))
	case ConsensusCaution:
		return fmt.Sprintf("caution (%s %s, size %.4f after %.2fx adjustment): %s",
			p.Side, p.Symbol, p.Size.AdjustedSize, p.Size.Multiplier,
			strings.Join(pick(brain.StateAmber), "; "))
	default:
		return fmt.Sprintf("allowed: %s %s: entry %.2f stop %.2f, size %.4f risking $%.2f for $%.2f (rr %.2f)",
			p.Side, p.Symbol, p.Entry, p.Stop,
			p.Size.AdjustedSize, p.Risk.EstMaxLossUSD, p.Risk.EstMaxGainUSD, p.Risk.RiskReward)
	}
}
