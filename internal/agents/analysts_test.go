package agents

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscanner/internal/adapters/marketdata"
	"marketscanner/pkg/errors"
)

// fakeFeeds serves canned upstream data; err, when set, is returned by every feed
type fakeFeeds struct {
	candles    []marketdata.Candle
	transfers  []marketdata.WhaleTransfer
	headlines  []marketdata.Headline
	fearGreed  *marketdata.FearGreedIndex
	network    *marketdata.NetworkStats
	indicators []marketdata.MacroIndicator
	prices     map[string]decimal.Decimal
	err        error

	lastSymbol string
	lastTopics []string
}

func (f *fakeFeeds) Candles(ctx context.Context, symbol, exchange, interval string, limit int) ([]marketdata.Candle, error) {
	f.lastSymbol = symbol
	return f.candles, f.err
}

func (f *fakeFeeds) StockCandles(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Candle, error) {
	f.lastSymbol = symbol
	return f.candles, f.err
}

func (f *fakeFeeds) WhaleTransfers(ctx context.Context, symbol, network string, minUSD decimal.Decimal) ([]marketdata.WhaleTransfer, error) {
	return f.transfers, f.err
}

func (f *fakeFeeds) Headlines(ctx context.Context, symbol string, topics []string) ([]marketdata.Headline, error) {
	f.lastTopics = topics
	return f.headlines, f.err
}

func (f *fakeFeeds) FearGreed(ctx context.Context) (*marketdata.FearGreedIndex, error) {
	return f.fearGreed, f.err
}

func (f *fakeFeeds) NetworkStats(ctx context.Context, network string) (*marketdata.NetworkStats, error) {
	return f.network, f.err
}

func (f *fakeFeeds) MacroIndicators(ctx context.Context, names []string) ([]marketdata.MacroIndicator, error) {
	return f.indicators, f.err
}

func (f *fakeFeeds) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	return f.prices, f.err
}

// linearCandles builds n candles closing at start, start+step, ...
func linearCandles(n int, start, step float64) []marketdata.Candle {
	out := make([]marketdata.Candle, n)
	for i := range out {
		c := start + step*float64(i)
		out[i] = marketdata.Candle{Time: int64(i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestCryptoAgent_Uptrend(t *testing.T) {
	feeds := &fakeFeeds{candles: linearCandles(120, 1, 1)}

	out, err := Run(context.Background(), NewCryptoAgent(feeds), Input{"symbol": "btc"})
	require.NoError(t, err)

	assert.Equal(t, "BTC", feeds.lastSymbol)
	assert.Equal(t, trendUp, out["trend"])
	assert.Equal(t, 120.0, out["last_price"])
	assert.InDelta(t, 110.5, out["sma_fast"], 1e-6)
	assert.InDelta(t, 95.5, out["sma_slow"], 1e-6)
	// saturated strength, overbought RSI pulls it back
	assert.InDelta(t, 0.7, out[FieldConfidence], 1e-9)
}

func TestCryptoAgent_Downtrend(t *testing.T) {
	feeds := &fakeFeeds{candles: linearCandles(120, 120, -1)}

	out, err := Run(context.Background(), NewCryptoAgent(feeds), Input{"symbol": "ETH"})
	require.NoError(t, err)
	assert.Equal(t, trendDown, out["trend"])
	assert.Less(t, out["change_pct"].(float64), 0.0)
}

func TestCryptoAgent_InsufficientHistory(t *testing.T) {
	feeds := &fakeFeeds{candles: linearCandles(10, 1, 1)}

	_, err := Run(context.Background(), NewCryptoAgent(feeds), Input{"symbol": "BTC"})
	assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
}

func TestCryptoAgent_UpstreamFailure(t *testing.T) {
	feeds := &fakeFeeds{err: errors.Wrap(errors.ErrUpstreamUnavailable, "candles: status 503")}

	_, err := Run(context.Background(), NewCryptoAgent(feeds), Input{"symbol": "BTC"})
	assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
}

func TestStockAgent(t *testing.T) {
	feeds := &fakeFeeds{candles: linearCandles(120, 50, 0.5)}

	out, err := Run(context.Background(), NewStockAgent(feeds), Input{"symbol": "aapl"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out["symbol"])
	assert.Equal(t, "1d", out["interval"])
	assert.Equal(t, trendUp, out["trend"])
	assert.Contains(t, out, "ema")
}

func TestWhaleAgent(t *testing.T) {
	feeds := &fakeFeeds{transfers: []marketdata.WhaleTransfer{
		{AmountUSD: decimal.NewFromInt(3_000_000), Direction: marketdata.DirectionToExchange},
		{AmountUSD: decimal.NewFromInt(1_000_000), Direction: marketdata.DirectionFromExchange},
		{AmountUSD: decimal.NewFromInt(5_000_000), Direction: "wallet"},
	}}

	out, err := Run(context.Background(), NewWhaleAgent(feeds), Input{"symbol": "ETH", "min_usd": "500000"})
	require.NoError(t, err)
	assert.Equal(t, "2000000.00", out["net_exchange_flow_usd"])
	assert.Equal(t, "5000000.00", out["largest_transfer_usd"])
	assert.Equal(t, 3, out["transfers"])
	assert.Equal(t, BiasBearish, out["bias"])
	assert.InDelta(t, 0.6, out[FieldConfidence], 1e-9)
}

func TestWhaleAgent_NoTransfers(t *testing.T) {
	out, err := Run(context.Background(), NewWhaleAgent(&fakeFeeds{}), Input{"symbol": "ETH"})
	require.NoError(t, err)
	assert.Equal(t, BiasNeutral, out["bias"])
	assert.Equal(t, 0.2, out[FieldConfidence])
}

func TestWhaleAgent_BadMinUSD(t *testing.T) {
	_, err := Run(context.Background(), NewWhaleAgent(&fakeFeeds{}), Input{"symbol": "ETH", "min_usd": "a lot"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestNewsAgent(t *testing.T) {
	feeds := &fakeFeeds{headlines: []marketdata.Headline{
		{Title: "ETF inflows surge", Sentiment: 0.5},
		{Title: "Exchange lists token", Sentiment: 0.4},
		{Title: "Regulator comments", Sentiment: -0.1},
	}}

	out, err := Run(context.Background(), NewNewsAgent(feeds), Input{"symbol": "BTC", "topics": "etf,regulation"})
	require.NoError(t, err)
	assert.Equal(t, []string{"etf", "regulation"}, feeds.lastTopics)
	assert.Equal(t, BiasBullish, out["bias"])
	assert.InDelta(t, 0.267, out["score"], 1e-9)
	assert.InDelta(t, 0.2+0.7*(2.0/3.0)*0.3, out[FieldConfidence], 1e-9)
	assert.Len(t, out["headlines"], 3)
}

func TestNewsAgent_NoHeadlines(t *testing.T) {
	out, err := Run(context.Background(), NewNewsAgent(&fakeFeeds{}), Input{"symbol": "BTC"})
	require.NoError(t, err)
	assert.Equal(t, BiasNeutral, out["bias"])
	assert.Equal(t, 0.1, out[FieldConfidence])
}

func TestSentimentAgent(t *testing.T) {
	feeds := &fakeFeeds{fearGreed: &marketdata.FearGreedIndex{
		Value:     20,
		Rating:    "extreme_fear",
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}}

	out, err := Run(context.Background(), NewSentimentAgent(feeds), nil)
	require.NoError(t, err)
	assert.Equal(t, BiasBearish, out["bias"])
	assert.Equal(t, "extreme_fear", out["rating"])
	assert.InDelta(t, 0.66, out[FieldConfidence], 1e-9)
	assert.Equal(t, "2023-11-14T22:13:20Z", out["timestamp"])
}

func TestOnChainAgent(t *testing.T) {
	feeds := &fakeFeeds{network: &marketdata.NetworkStats{
		Network:                 "ethereum",
		ActiveAddresses:         1200,
		ActiveAddressesBaseline: 1000,
		TxCount:                 1100,
		TxCountBaseline:         1000,
		AvgFeeUSD:               1.23456,
	}}

	out, err := Run(context.Background(), NewOnChainAgent(feeds), Input{"network": "Ethereum"})
	require.NoError(t, err)
	assert.Equal(t, activityExpanding, out["activity"])
	assert.InDelta(t, 15.0, out["growth_pct"], 1e-9)
	assert.InDelta(t, 0.65, out[FieldConfidence], 1e-9)
}

func TestOnChainAgent_NoBaseline(t *testing.T) {
	feeds := &fakeFeeds{network: &marketdata.NetworkStats{Network: "solana", ActiveAddresses: 10}}

	out, err := Run(context.Background(), NewOnChainAgent(feeds), Input{"network": "solana"})
	require.NoError(t, err)
	assert.Equal(t, activityUnknown, out["activity"])
	assert.Equal(t, 0.3, out[FieldConfidence])
}

func TestOnChainAgent_RequiresNetwork(t *testing.T) {
	_, err := Run(context.Background(), NewOnChainAgent(&fakeFeeds{}), Input{"symbol": "ETH"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestMacroAgent(t *testing.T) {
	feeds := &fakeFeeds{indicators: []marketdata.MacroIndicator{
		{Name: "VIX", Value: 20, Previous: 25},
		{Name: "dxy", Value: 104, Previous: 103},
		{Name: "spx", Value: 5000, Previous: 4900},
		{Name: "cpi", Value: 3.1, Previous: 3.2},
	}}

	out, err := Run(context.Background(), NewMacroAgent(feeds), Input{"indicators": []interface{}{"VIX", "dxy", "spx", "cpi"}})
	require.NoError(t, err)
	assert.Equal(t, regimeRiskOn, out["risk_regime"])
	assert.Equal(t, 3, out["signals"])
	assert.InDelta(t, 0.5, out[FieldConfidence], 1e-9)
	assert.Len(t, out["indicators"], 4)
}

func TestMacroAgent_NoSignals(t *testing.T) {
	out, err := Run(context.Background(), NewMacroAgent(&fakeFeeds{}), nil)
	require.NoError(t, err)
	assert.Equal(t, regimeNeutral, out["risk_regime"])
	assert.Equal(t, 0.2, out[FieldConfidence])
}

func TestPortfolioAgent(t *testing.T) {
	feeds := &fakeFeeds{prices: map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(60000),
		"ETH": decimal.NewFromInt(3000),
	}}

	out, err := Run(context.Background(), NewPortfolioAgent(feeds), Input{
		"holdings": map[string]interface{}{"BTC": 1.0, "ETH": 10.0, "DOGE": 100.0},
	})
	require.NoError(t, err)

	assert.Equal(t, "90000.00", out["total_value_usd"])
	alloc := out["allocations"].(map[string]float64)
	assert.InDelta(t, 0.6667, alloc["BTC"], 1e-9)
	assert.InDelta(t, 0.3333, alloc["ETH"], 1e-9)
	assert.InDelta(t, 0.6667, out["concentration"], 1e-9)
	assert.InDelta(t, 0.4444, out["diversification"], 1e-9)
	assert.Equal(t, []string{"DOGE"}, out["unpriced"])
	assert.InDelta(t, 0.5+0.4*2.0/3.0, out[FieldConfidence], 1e-9)
}

func TestPortfolioAgent_NothingPriced(t *testing.T) {
	feeds := &fakeFeeds{prices: map[string]decimal.Decimal{}}

	_, err := Run(context.Background(), NewPortfolioAgent(feeds), Input{"holdings": map[string]interface{}{"XYZ": 1.0}})
	assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
}

func TestPortfolioAgent_MissingHoldings(t *testing.T) {
	_, err := Run(context.Background(), NewPortfolioAgent(&fakeFeeds{}), Input{"symbol": "BTC"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
