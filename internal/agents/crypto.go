package agents

import (
	"context"
	"strings"
)

const (
	cryptoFastPeriod = 20
	cryptoSlowPeriod = 50
	cryptoLookback   = 120
)

// CryptoAgent reads crypto candles and reports trend, RSI and SMA crossover state.
type CryptoAgent struct {
	feed CandleFeed
}

func NewCryptoAgent(feed CandleFeed) *CryptoAgent {
	return &CryptoAgent{feed: feed}
}

func (a *CryptoAgent) Name() string { return string(KindCrypto) }

func (a *CryptoAgent) Inputs() InputSpec {
	return InputSpec{Required: []string{"symbol"}, Optional: []string{"exchange", "interval"}}
}

func (a *CryptoAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	symbol, err := in.String("symbol")
	if err != nil {
		return nil, err
	}
	exchange, err := in.StringOr("exchange", "")
	if err != nil {
		return nil, err
	}
	interval, err := in.StringOr("interval", "1h")
	if err != nil {
		return nil, err
	}

	candles, err := a.feed.Candles(ctx, strings.ToUpper(symbol), exchange, interval, cryptoLookback)
	if err != nil {
		return nil, err
	}

	snap, err := analyzeTrend(candles, maSMA, cryptoFastPeriod, cryptoSlowPeriod)
	if err != nil {
		return nil, err
	}

	return Output{
		FieldConfidence: snap.confidence(),
		"symbol":        strings.ToUpper(symbol),
		"interval":      interval,
		"trend":         snap.Trend,
		"rsi":           round(snap.RSI, 2),
		"sma_fast":      round(snap.Fast, 6),
		"sma_slow":      round(snap.Slow, 6),
		"last_price":    snap.LastPrice,
		"change_pct":    round(snap.ChangePct, 2),
	}, nil
}
