package app

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/agent/engine"
	"vigil/internal/agent/ports"
	"vigil/internal/config"
	"vigil/internal/coordinator"
	"vigil/internal/gateway/bridge"
	"vigil/internal/logger"
	"vigil/internal/market"
	"vigil/internal/memory"
	"vigil/internal/safety"
	"vigil/internal/store/flagstore"
	"vigil/internal/store/gormstore"
	apihttp "vigil/internal/transport/http/api"
	"vigil/internal/worldstate"
)

// AppBuilder assembles every collaborator of the decision pipeline from a
// validated config. Optional feeds (bridge, memory) are only wired when
// configured so the world-state builder degrades them instead of dialing
// nothing.
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil builder config")
	}
	cfg := b.cfg

	source := market.NewBinanceSource(market.BinanceConfig{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		Timeout:     time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
	})

	var bridgeClient worldstate.BridgeClient
	if cfg.Bridge.BaseURL != "" {
		cl, err := bridge.NewClient(bridge.Config{
			BaseURL:  cfg.Bridge.BaseURL,
			APIToken: cfg.Bridge.APIToken,
			Timeout:  time.Duration(cfg.Bridge.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("bridge client: %w", err)
		}
		bridgeClient = cl
	} else {
		logger.Warnf("bridge.base_url not set, account and position feeds disabled")
	}

	var memStore memory.Store
	if cfg.Memory.BaseURL != "" {
		cl, err := memory.NewClient(memory.ClientConfig{
			BaseURL: cfg.Memory.BaseURL,
			Timeout: time.Duration(cfg.Memory.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("memory client: %w", err)
		}
		memStore = cl
	}

	playbook, err := memory.LoadPlaybook(cfg.Memory.PlaybookPath)
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	store, err := gormstore.New(cfg.Store.DecisionDBPath)
	if err != nil {
		return nil, fmt.Errorf("decision store: %w", err)
	}
	flags, err := flagstore.New(cfg.Store.FlagDBPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("flag store: %w", err)
	}

	snapshotBuilder := worldstate.NewBuilder(worldstate.BuilderParams{
		Source:       source,
		Bridge:       bridgeClient,
		Memory:       memStore,
		Playbook:     playbook,
		Behavior:     store,
		FetchTimeout: time.Duration(cfg.Agent.FetchTimeoutSeconds) * time.Second,
		CandleLimit:  cfg.Market.CandleLimit,
		MemoryTopK:   cfg.Memory.TopK,
	})

	coord := coordinator.New(cfg.Agent)
	eng := engine.New(cfg.Agent, snapshotBuilder, coord, store)
	gate := safety.NewChecker(cfg.Agent, flags)

	var executor ports.Executor
	if cfg.Agent.RequiresExecution() {
		executor = engine.NewPaperExecutor()
	}

	httpSrv, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Engine:    eng,
		Store:     store,
		Flags:     flags,
		Gate:      gate,
		Builder:   snapshotBuilder,
		Executor:  executor,
		Timeframe: cfg.Agent.Timeframe,
	})
	if err != nil {
		_ = store.Close()
		_ = flags.Close()
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:     cfg,
		engine:  eng,
		httpSrv: httpSrv,
		store:   store,
		flags:   flags,
		Summary: newStartupSummary(cfg, httpSrv.Addr(), bridgeClient != nil, memStore != nil, executor != nil),
	}, nil
}
