package agents

import (
	"context"

	"github.com/shopspring/decimal"

	"marketscanner/internal/adapters/marketdata"
)

// Upstream feeds consumed by agents. *marketdata.Client implements all of them.
type (
	CandleFeed interface {
		Candles(ctx context.Context, symbol, exchange, interval string, limit int) ([]marketdata.Candle, error)
	}

	StockCandleFeed interface {
		StockCandles(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Candle, error)
	}

	WhaleFeed interface {
		WhaleTransfers(ctx context.Context, symbol, network string, minUSD decimal.Decimal) ([]marketdata.WhaleTransfer, error)
	}

	NewsFeed interface {
		Headlines(ctx context.Context, symbol string, topics []string) ([]marketdata.Headline, error)
	}

	FearGreedFeed interface {
		FearGreed(ctx context.Context) (*marketdata.FearGreedIndex, error)
	}

	NetworkFeed interface {
		NetworkStats(ctx context.Context, network string) (*marketdata.NetworkStats, error)
	}

	MacroFeed interface {
		MacroIndicators(ctx context.Context, names []string) ([]marketdata.MacroIndicator, error)
	}

	PriceFeed interface {
		Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
	}
)

// Feeds bundles every upstream an agent may need
type Feeds interface {
	CandleFeed
	StockCandleFeed
	WhaleFeed
	NewsFeed
	FearGreedFeed
	NetworkFeed
	MacroFeed
	PriceFeed
}

var _ Feeds = (*marketdata.Client)(nil)
