package market

import "context"

// Source provides raw market data for a single exchange/provider. The
// snapshot builder owns timeouts and degradation; implementations just
// fetch.
type Source interface {
	// GetCandles returns up to limit most recent closed candles.
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)

	// GetLatestQuote returns the latest price for a symbol.
	GetLatestQuote(ctx context.Context, symbol string) (Quote, error)
}
