package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/agent/interfaces"
	"vigil/internal/config"
	"vigil/internal/coordinator"
	"vigil/internal/logger"
	"vigil/internal/pkg/circuit"
	"vigil/internal/scheduler"
)

// CycleResult is the cached output of the most recent cycle for a symbol.
type CycleResult struct {
	Proposal      *coordinator.TradeProposal `json:"proposal,omitempty"`
	DegradedFeeds []string                   `json:"degraded_feeds,omitempty"`
	FinishedAt    time.Time                  `json:"finished_at"`
	Err           string                     `json:"error,omitempty"`
}

// SymbolStatus is the per-symbol slice of the status view.
type SymbolStatus struct {
	Symbol        string    `json:"symbol"`
	Breaker       string    `json:"breaker"`
	LastCycleAt   time.Time `json:"last_cycle_at,omitempty"`
	LastConsensus string    `json:"last_consensus,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Status is the operator-facing view of the running engine.
type Status struct {
	Mode      string         `json:"mode"`
	Timeframe string         `json:"timeframe"`
	StartedAt time.Time      `json:"started_at"`
	Cycles    int64          `json:"cycles"`
	Symbols   []SymbolStatus `json:"symbols"`
}

// Engine drives the decision loop: one aligned scheduler per symbol, each
// tick building a snapshot, coordinating a proposal and appending it to
// the audit log. A failing symbol trips its own breaker without touching
// the others.
type Engine struct {
	cfg     config.AgentConfig
	builder interfaces.SnapshotBuilder
	coord   interfaces.ProposalCoordinator
	audit   interfaces.DecisionAuditor

	mu        sync.RWMutex
	latest    map[string]*CycleResult
	breakers  map[string]*circuit.Breaker
	cycles    int64
	startedAt time.Time
}

func New(cfg config.AgentConfig, builder interfaces.SnapshotBuilder, coord interfaces.ProposalCoordinator, audit interfaces.DecisionAuditor) *Engine {
	e := &Engine{
		cfg:      cfg,
		builder:  builder,
		coord:    coord,
		audit:    audit,
		latest:   make(map[string]*CycleResult),
		breakers: make(map[string]*circuit.Breaker),
	}
	for _, sym := range e.symbols() {
		e.breakers[sym] = circuit.NewBreaker("engine."+sym, 5, 2*time.Minute)
	}
	return e
}

func (e *Engine) symbols() []string {
	out := make([]string, 0, len(e.cfg.Symbols))
	for _, sym := range e.cfg.Symbols {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Run blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	symbols := e.symbols()
	if len(symbols) == 0 {
		logger.Warnf("engine: no symbols configured")
		<-ctx.Done()
		return ctx.Err()
	}

	interval := time.Duration(e.cfg.CycleSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	e.mu.Lock()
	e.startedAt = time.Now()
	e.mu.Unlock()

	logger.Infof("engine: starting per-symbol loops symbols=%d interval=%s mode=%s",
		len(symbols), interval, e.cfg.Mode)

	group, gctx := errgroup.WithContext(ctx)
	for _, sym := range symbols {
		sym := sym
		group.Go(func() error {
			cb := e.breaker(sym)
			sched := scheduler.NewIntervalScheduler(gctx, interval)
			sched.Name = sym
			sched.RunImmediately = true
			sched.Start(func() {
				if !cb.Allow() {
					logger.Warnf("engine: breaker open, skipping cycle symbol=%s", sym)
					return
				}
				if err := e.RunCycle(gctx, sym); err != nil {
					logger.Errorf("engine: cycle error symbol=%s err=%v", sym, err)
					cb.RecordFailure()
					return
				}
				cb.RecordSuccess()
			})
			return nil
		})
	}
	return group.Wait()
}

// RunCycle executes one build-coordinate-audit pass for a symbol. It is
// safe to call directly (e.g. from an HTTP trigger) while the scheduler is
// running; the stores serialize access.
func (e *Engine) RunCycle(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	result := &CycleResult{FinishedAt: time.Now()}
	defer func() {
		result.FinishedAt = time.Now()
		e.mu.Lock()
		e.latest[symbol] = result
		e.cycles++
		e.mu.Unlock()
	}()

	snap, err := e.builder.Build(ctx, symbol, e.cfg.Timeframe)
	if err != nil {
		result.Err = err.Error()
		return fmt.Errorf("build snapshot: %w", err)
	}
	result.DegradedFeeds = snap.System.Degraded()

	proposal, err := e.coord.Coordinate(ctx, snap)
	if err != nil {
		result.Err = err.Error()
		return fmt.Errorf("coordinate: %w", err)
	}
	result.Proposal = proposal

	if err := e.audit.AppendDecision(ctx, proposal, result.DegradedFeeds); err != nil {
		result.Err = err.Error()
		return fmt.Errorf("audit decision: %w", err)
	}

	logger.Infof("engine: cycle done symbol=%s proposal=%s consensus=%s size=%.4f degraded=%v",
		symbol, proposal.ID, proposal.Consensus, proposal.Size.AdjustedSize, result.DegradedFeeds)
	return nil
}

// Latest returns the cached result of the newest cycle for a symbol.
func (e *Engine) Latest(symbol string) (*CycleResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.latest[strings.ToUpper(strings.TrimSpace(symbol))]
	return r, ok
}

// Status reports the engine's operational state for the HTTP surface.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		Mode:      e.cfg.Mode,
		Timeframe: e.cfg.Timeframe,
		StartedAt: e.startedAt,
		Cycles:    e.cycles,
	}
	for _, sym := range e.symbols() {
		ss := SymbolStatus{Symbol: sym}
		if cb, ok := e.breakers[sym]; ok {
			ss.Breaker = cb.State().String()
		}
		if r, ok := e.latest[sym]; ok && r != nil {
			ss.LastCycleAt = r.FinishedAt
			ss.LastError = r.Err
			if r.Proposal != nil {
				ss.LastConsensus = string(r.Proposal.Consensus)
			}
		}
		st.Symbols = append(st.Symbols, ss)
	}
	return st
}

func (e *Engine) breaker(symbol string) *circuit.Breaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.breakers[symbol]
	if !ok {
		cb = circuit.NewBreaker("engine."+symbol, 5, 2*time.Minute)
		e.breakers[symbol] = cb
	}
	return cb
}
