package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

const maxCandleLimit = 1500

// BinanceSource implements Source on top of the go-binance futures SDK.
type BinanceSource struct {
	client *futures.Client
}

type BinanceConfig struct {
	RESTBaseURL string
	Timeout     time.Duration
}

func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	client := futures.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	symbol = exchangeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	timeframe = strings.ToLower(strings.TrimSpace(timeframe))
	if timeframe == "" {
		return nil, fmt.Errorf("timeframe is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(timeframe).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		// Drop the still-forming candle so indicators only see closed bars.
		if kl.CloseTime > now {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *BinanceSource) GetLatestQuote(ctx context.Context, symbol string) (Quote, error) {
	clean := exchangeSymbol(symbol)
	if clean == "" {
		return Quote{}, fmt.Errorf("symbol is required")
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(clean).Do(ctx)
	if err != nil {
		return Quote{}, err
	}
	if len(stats) == 0 || stats[0] == nil {
		return Quote{}, fmt.Errorf("no ticker for %s", symbol)
	}
	return Quote{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Price:     parseFloat(stats[0].LastPrice),
		ChangePct: parseFloat(stats[0].PriceChangePercent),
	}, nil
}

// exchangeSymbol strips separators: "ETH/USDT" -> "ETHUSDT".
func exchangeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "", "-", "", ":", "").Replace(symbol)
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
