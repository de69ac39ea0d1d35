package ports

import (
	"context"
	"time"

	"vigil/internal/coordinator"
)

// Receipt confirms that a proposal was handed to a venue.
type Receipt struct {
	OrderID     string    `json:"order_id"`
	Venue       string    `json:"venue"`
	Paper       bool      `json:"paper"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Executor carries an approved, safety-checked proposal to a venue. The
// decision pipeline never talks to a venue directly: everything that
// places, simulates or forwards orders sits behind this boundary.
type Executor interface {
	Execute(ctx context.Context, p *coordinator.TradeProposal) (Receipt, error)
}
