package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/agent/ports"
	"vigil/internal/coordinator"
	"vigil/internal/logger"
)

// PaperExecutor simulates order placement. It accepts only actionable
// proposals and fabricates nothing: size zero or a blocked consensus is an
// error, same as a live venue would refuse.
type PaperExecutor struct{}

var _ ports.Executor = (*PaperExecutor)(nil)

func NewPaperExecutor() *PaperExecutor { return &PaperExecutor{} }

func (x *PaperExecutor) Execute(ctx context.Context, p *coordinator.TradeProposal) (ports.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ports.Receipt{}, err
	}
	if !p.Actionable() {
		return ports.Receipt{}, fmt.Errorf("paper execute: proposal %s is not actionable (consensus=%s size=%.4f)",
			p.ID, p.Consensus, p.Size.AdjustedSize)
	}
	receipt := ports.Receipt{
		OrderID:     uuid.NewString(),
		Venue:       "paper",
		Paper:       true,
		SubmittedAt: time.Now(),
	}
	logger.Infof("paper execute: %s %s size=%.4f entry=%.2f stop=%.2f order=%s",
		p.Side, p.Symbol, p.Size.AdjustedSize, p.Entry, p.Stop, receipt.OrderID)
	return receipt, nil
}
