package app

import (
	"fmt"
	"strings"

	"vigil/internal/config"
)

// StartupSummary is the banner printed once on boot so an operator can see
// at a glance which mode, symbols and limits this process runs with.
type StartupSummary struct {
	Mode         string
	Symbols      []string
	Timeframe    string
	CycleSeconds int
	HTTPAddr     string

	MaxRiskPerTradeUSD float64
	MaxPositionSizeUSD float64
	DailyLossLimitUSD  float64
	MinRiskReward      float64
	MaxOpenPositions   int

	BridgeWired   bool
	MemoryWired   bool
	ExecutorWired bool
}

func newStartupSummary(cfg *config.Config, httpAddr string, bridgeWired, memoryWired, executorWired bool) *StartupSummary {
	return &StartupSummary{
		Mode:               cfg.Agent.Mode,
		Symbols:            cfg.Agent.Symbols,
		Timeframe:          cfg.Agent.Timeframe,
		CycleSeconds:       cfg.Agent.CycleSeconds,
		HTTPAddr:           httpAddr,
		MaxRiskPerTradeUSD: cfg.Agent.Risk.MaxRiskPerTradeUSD,
		MaxPositionSizeUSD: cfg.Agent.Risk.MaxPositionSizeUSD,
		DailyLossLimitUSD:  cfg.Agent.Risk.DailyLossLimitUSD,
		MinRiskReward:      cfg.Agent.Risk.MinRiskReward,
		MaxOpenPositions:   cfg.Agent.Risk.MaxOpenPositions,
		BridgeWired:        bridgeWired,
		MemoryWired:        memoryWired,
		ExecutorWired:      executorWired,
	}
}

func (s *StartupSummary) Print() {
	if s == nil {
		return
	}
	fmt.Println(strings.Repeat("=", 64))
	fmt.Println("VIGIL DECISION GATE")
	fmt.Println(strings.Repeat("=", 64))
	fmt.Printf("  mode:       %s\n", s.Mode)
	fmt.Printf("  symbols:    %s\n", formatList(s.Symbols))
	fmt.Printf("  timeframe:  %s  cycle: %ds\n", s.Timeframe, s.CycleSeconds)
	fmt.Printf("  http:       %s\n", s.HTTPAddr)
	fmt.Println("[RISK LIMITS]")
	fmt.Printf("  per-trade:  $%.2f  position cap: $%.2f\n", s.MaxRiskPerTradeUSD, s.MaxPositionSizeUSD)
	fmt.Printf("  daily loss: $%.2f  min R:R: %.1f  max open: %d\n", s.DailyLossLimitUSD, s.MinRiskReward, s.MaxOpenPositions)
	fmt.Println("[FEEDS]")
	fmt.Printf("  bridge: %s  memory: %s  executor: %s\n",
		wiredLabel(s.BridgeWired), wiredLabel(s.MemoryWired), wiredLabel(s.ExecutorWired))
	fmt.Println(strings.Repeat("=", 64))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func wiredLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
