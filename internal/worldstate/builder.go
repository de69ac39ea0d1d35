package worldstate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/analysis/indicator"
	"vigil/internal/gateway/bridge"
	"vigil/internal/logger"
	"vigil/internal/market"
	"vigil/internal/memory"
	"vigil/internal/pkg/circuit"
)

// BridgeClient is the slice of the brokerage bridge the builder needs.
type BridgeClient interface {
	GetAccount(ctx context.Context) (bridge.Account, error)
	GetPositions(ctx context.Context) ([]bridge.Position, error)
	GetOrders(ctx context.Context) ([]bridge.Order, error)
	GetHealth(ctx context.Context) bridge.Health
}

// BehaviorSource reads closed-trade history and user action counts,
// normally backed by the decision store.
type BehaviorSource interface {
	RecentOutcomes(ctx context.Context, limit int) ([]TradeOutcome, error)
	ActionCounts(ctx context.Context, since time.Time) (approved, rejected, modified int, err error)
}

// Builder aggregates all upstream feeds into one Snapshot. It is a pure
// aggregator: nothing is persisted, and a failing feed degrades that one
// field instead of failing the build.
type Builder struct {
	source   market.Source
	bridge   BridgeClient
	memStore memory.Store
	playbook *memory.Playbook
	behavior BehaviorSource

	fetchTimeout time.Duration
	candleLimit  int
	memoryTopK   int
	sessionStart time.Time
	nowFn        func() time.Time

	breakers map[string]*circuit.Breaker
}

type BuilderParams struct {
	Source       market.Source
	Bridge       BridgeClient
	Memory       memory.Store
	Playbook     *memory.Playbook
	Behavior     BehaviorSource
	FetchTimeout time.Duration
	CandleLimit  int
	MemoryTopK   int
}

func NewBuilder(p BuilderParams) *Builder {
	timeout := p.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := p.CandleLimit
	if limit <= 0 {
		limit = 120
	}
	topK := p.MemoryTopK
	if topK <= 0 {
		topK = 5
	}
	breakers := make(map[string]*circuit.Breaker)
	for _, feed := range []string{FeedCandles, FeedQuote, FeedAccount, FeedPositions, FeedOrders, FeedMemory} {
		breakers[feed] = circuit.NewBreaker("worldstate."+feed, 5, 2*time.Minute)
	}
	return &Builder{
		source:       p.Source,
		bridge:       p.Bridge,
		memStore:     p.Memory,
		playbook:     p.Playbook,
		behavior:     p.Behavior,
		fetchTimeout: timeout,
		candleLimit:  limit,
		memoryTopK:   topK,
		sessionStart: time.Now(),
		nowFn:        time.Now,
	}
}

// Build assembles a Snapshot for one ticker+timeframe. All fetches run
// concurrently with independent timeouts; the returned snapshot is complete
// even when every feed failed, with the failures recorded in System.Feeds.
func (b *Builder) Build(ctx context.Context, ticker, timeframe string) (*Snapshot, error) {
	if b == nil {
		return nil, fmt.Errorf("nil builder")
	}
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	var (
		candles   []market.Candle
		quote     market.Quote
		account   bridge.Account
		positions []bridge.Position
		orders    []bridge.Order
		snippets  []memory.Snippet
		outcomes  []TradeOutcome
		user      UserState
		health    bridge.Health

		feeds = struct {
			candles, quote, account, positions, orders, mem, behavior FeedStatus
		}{}
	)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		feeds.candles = b.fetch(gctx, FeedCandles, func(fctx context.Context) error {
			var err error
			candles, err = b.source.GetCandles(fctx, ticker, timeframe, b.candleLimit)
			return err
		})
		return nil
	})
	group.Go(func() error {
		feeds.quote = b.fetch(gctx, FeedQuote, func(fctx context.Context) error {
			var err error
			quote, err = b.source.GetLatestQuote(fctx, ticker)
			return err
		})
		return nil
	})
	group.Go(func() error {
		feeds.account = b.fetch(gctx, FeedAccount, func(fctx context.Context) error {
			if b.bridge == nil {
				return nil
			}
			var err error
			account, err = b.bridge.GetAccount(fctx)
			return err
		})
		return nil
	})
	group.Go(func() error {
		feeds.positions = b.fetch(gctx, FeedPositions, func(fctx context.Context) error {
			if b.bridge == nil {
				return nil
			}
			var err error
			positions, err = b.bridge.GetPositions(fctx)
			return err
		})
		return nil
	})
	group.Go(func() error {
		feeds.orders = b.fetch(gctx, FeedOrders, func(fctx context.Context) error {
			if b.bridge == nil {
				return nil
			}
			var err error
			orders, err = b.bridge.GetOrders(fctx)
			return err
		})
		return nil
	})
	group.Go(func() error {
		feeds.mem = b.fetch(gctx, FeedMemory, func(fctx context.Context) error {
			if b.memStore == nil {
				return nil
			}
			var err error
			snippets, err = b.memStore.Query(fctx, ticker, b.memoryTopK)
			return err
		})
		return nil
	})
	group.Go(func() error {
		feeds.behavior = b.fetch(gctx, FeedBehavior, func(fctx context.Context) error {
			if b.behavior == nil {
				return nil
			}
			var err error
			outcomes, err = b.behavior.RecentOutcomes(fctx, 10)
			if err != nil {
				return err
			}
			dayStart := b.nowFn().UTC().Truncate(24 * time.Hour)
			user.Approved, user.Rejected, user.Modified, err = b.behavior.ActionCounts(fctx, dayStart)
			return err
		})
		return nil
	})
	group.Go(func() error {
		if b.bridge == nil {
			return nil
		}
		hctx, cancel := context.WithTimeout(gctx, b.fetchTimeout)
		defer cancel()
		health = b.bridge.GetHealth(hctx)
		return nil
	})

	_ = group.Wait()

	now := b.nowFn()
	snap := &Snapshot{
		Ticker:    ticker,
		Timeframe: timeframe,
		CreatedAt: now,
		Account:   account,
		Positions: positions,
		Orders:    orders,
		Market: MarketState{
			Candles: candles,
			Quote:   quote,
		},
		Memory: MemoryState{
			Snippets: snippets,
			Rules:    b.playbook.Match(ticker),
			Outcomes: outcomes,
		},
		System: SystemState{
			Feeds: map[string]FeedStatus{
				FeedCandles:   feeds.candles,
				FeedQuote:     feeds.quote,
				FeedAccount:   feeds.account,
				FeedPositions: feeds.positions,
				FeedOrders:    feeds.orders,
				FeedMemory:    feeds.mem,
				FeedBehavior:  feeds.behavior,
			},
			BridgeConnected:     health.Connected,
			BridgeAuthenticated: health.Authenticated,
		},
	}

	if len(candles) > 0 {
		if ind, err := indicator.Compute(candles); err == nil {
			snap.Market.Indicators = ind
		}
		if lv, err := indicator.KeyLevels(candles); err == nil {
			snap.Market.Levels = lv
		}
	}

	user.SessionLength = now.Sub(b.sessionStart)
	user.ConsecutiveLosses = consecutiveLosses(outcomes)
	user.TimeOfDay = timeOfDayBucket(now.UTC())
	snap.User = user

	if degraded := snap.System.Degraded(); len(degraded) > 0 {
		logger.Warnf("world state degraded ticker=%s feeds=%v", ticker, degraded)
	}
	return snap, nil
}

// fetch runs one upstream call behind its breaker with an independent
// timeout and reports the outcome as a FeedStatus.
func (b *Builder) fetch(ctx context.Context, feed string, fn func(context.Context) error) FeedStatus {
	br := b.breakers[feed]
	if br != nil && !br.Allow() {
		return FeedStatus{OK: false, Err: "breaker open"}
	}
	fctx, cancel := context.WithTimeout(ctx, b.fetchTimeout)
	defer cancel()
	err := fn(fctx)
	if err != nil {
		if br != nil {
			br.RecordFailure()
		}
		logger.Debugf("world state fetch failed feed=%s err=%v", feed, err)
		return FeedStatus{OK: false, Err: err.Error()}
	}
	if br != nil {
		br.RecordSuccess()
	}
	return FeedStatus{OK: true, FetchedAt: b.nowFn()}
}

// consecutiveLosses counts losses from the most recent outcome backwards,
// stopping at the first win.
func consecutiveLosses(outcomes []TradeOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Win() {
			break
		}
		n++
	}
	return n
}

func timeOfDayBucket(now time.Time) string {
	switch h := now.Hour(); {
	case h < 6:
		return "overnight"
	case h < 12:
		return "morning"
	case h < 17:
		return "afternoon"
	default:
		return "evening"
	}
}
