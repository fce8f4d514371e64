package agents

import (
	"context"
	"strings"
)

const (
	stockFastPeriod = 21
	stockSlowPeriod = 50
	stockLookback   = 120
)

// StockAgent reads equity candles and reports trend from EMA(21) against SMA(50).
type StockAgent struct {
	feed StockCandleFeed
}

func NewStockAgent(feed StockCandleFeed) *StockAgent {
	return &StockAgent{feed: feed}
}

func (a *StockAgent) Name() string { return string(KindStock) }

func (a *StockAgent) Inputs() InputSpec {
	return InputSpec{Required: []string{"symbol"}, Optional: []string{"interval"}}
}

func (a *StockAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	symbol, err := in.String("symbol")
	if err != nil {
		return nil, err
	}
	interval, err := in.StringOr("interval", "1d")
	if err != nil {
		return nil, err
	}

	candles, err := a.feed.StockCandles(ctx, strings.ToUpper(symbol), interval, stockLookback)
	if err != nil {
		return nil, err
	}

	snap, err := analyzeTrend(candles, maEMA, stockFastPeriod, stockSlowPeriod)
	if err != nil {
		return nil, err
	}

	return Output{
		FieldConfidence: snap.confidence(),
		"symbol":        strings.ToUpper(symbol),
		"interval":      interval,
		"trend":         snap.Trend,
		"rsi":           round(snap.RSI, 2),
		"ema":           round(snap.Fast, 6),
		"sma_slow":      round(snap.Slow, 6),
		"last_price":    snap.LastPrice,
		"change_pct":    round(snap.ChangePct, 2),
	}, nil
}
