package marketdata

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketscanner/pkg/errors"
)

// Candle is one OHLCV bar
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// WhaleTransfer is a large on-chain transfer. Direction is "to_exchange",
// "from_exchange" or "wallet" (wallet to wallet).
type WhaleTransfer struct {
	Hash      string          `json:"hash"`
	Symbol    string          `json:"symbol"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Direction string          `json:"direction"`
	Timestamp int64           `json:"timestamp"`
}

const (
	DirectionToExchange   = "to_exchange"
	DirectionFromExchange = "from_exchange"
)

// Headline is a news item with an upstream sentiment score in [-1, 1]
type Headline struct {
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	URL         string  `json:"url"`
	PublishedAt int64   `json:"published_at"`
	Sentiment   float64 `json:"sentiment"`
}

// FearGreedIndex is the Alternative.me crypto fear & greed reading
type FearGreedIndex struct {
	Value     int       `json:"value"`
	Rating    string    `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkStats are daily activity metrics for one chain
type NetworkStats struct {
	Network         string  `json:"network"`
	ActiveAddresses int64   `json:"active_addresses"`
	TxCount         int64   `json:"tx_count"`
	AvgFeeUSD       float64 `json:"avg_fee_usd"`
	// Baselines are trailing 30 day averages
	ActiveAddressesBaseline int64 `json:"active_addresses_baseline"`
	TxCountBaseline         int64 `json:"tx_count_baseline"`
}

// MacroIndicator is a named macro series reading with its previous value
type MacroIndicator struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Previous float64 `json:"previous"`
}

// Candles returns crypto OHLCV bars oldest first
func (c *Client) Candles(ctx context.Context, symbol, exchange, interval string, limit int) ([]Candle, error) {
	q := url.Values{"symbol": {symbol}, "interval": {interval}, "limit": {strconv.Itoa(limit)}}
	if exchange != "" {
		q.Set("exchange", exchange)
	}

	var candles []Candle
	if err := c.getJSON(ctx, "candles", c.cfg.CandlesURL, q, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// StockCandles returns equity OHLCV bars oldest first
func (c *Client) StockCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	q := url.Values{"symbol": {symbol}, "interval": {interval}, "limit": {strconv.Itoa(limit)}}

	var candles []Candle
	if err := c.getJSON(ctx, "stock_candles", c.cfg.StockCandlesURL, q, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// WhaleTransfers returns recent transfers at or above minUSD
func (c *Client) WhaleTransfers(ctx context.Context, symbol, network string, minUSD decimal.Decimal) ([]WhaleTransfer, error) {
	q := url.Values{"symbol": {symbol}, "min_usd": {minUSD.String()}}
	if network != "" {
		q.Set("network", network)
	}

	var transfers []WhaleTransfer
	if err := c.getJSON(ctx, "whales", c.cfg.WhaleURL, q, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// Headlines returns recent headlines mentioning symbol, optionally narrowed to topics
func (c *Client) Headlines(ctx context.Context, symbol string, topics []string) ([]Headline, error) {
	q := url.Values{"symbol": {symbol}}
	if len(topics) > 0 {
		q.Set("topics", strings.Join(topics, ","))
	}

	var headlines []Headline
	if err := c.getJSON(ctx, "news", c.cfg.NewsURL, q, &headlines); err != nil {
		return nil, err
	}
	return headlines, nil
}

// Alternative.me API response structure
type fearGreedAPIResponse struct {
	Data     []fearGreedDataItem `json:"data"`
	Metadata struct {
		Error string `json:"error"`
	} `json:"metadata"`
}

type fearGreedDataItem struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
}

// FearGreed fetches the latest crypto Fear & Greed index
func (c *Client) FearGreed(ctx context.Context) (*FearGreedIndex, error) {
	var resp fearGreedAPIResponse
	if err := c.getJSON(ctx, "feargreed", c.cfg.FearGreedURL, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Metadata.Error != "" {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "feargreed: api error: %s", resp.Metadata.Error)
	}
	if len(resp.Data) == 0 {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable, "feargreed: no data in response")
	}

	item := resp.Data[0]

	value, err := strconv.Atoi(item.Value)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "feargreed: parse value %q", item.Value)
	}

	ts, err := strconv.ParseInt(item.Timestamp, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "feargreed: parse timestamp %q", item.Timestamp)
	}

	return &FearGreedIndex{
		Value:     value,
		Rating:    ratingFromClassification(item.ValueClassification, value),
		Timestamp: time.Unix(ts, 0).UTC(),
	}, nil
}

// ratingFromClassification maps "Extreme Fear".."Extreme Greed" to snake case,
// falling back to value bands when the label is unfamiliar
func ratingFromClassification(classification string, value int) string {
	switch classification {
	case "Extreme Fear":
		return "extreme_fear"
	case "Fear":
		return "fear"
	case "Neutral":
		return "neutral"
	case "Greed":
		return "greed"
	case "Extreme Greed":
		return "extreme_greed"
	}

	switch {
	case value <= 24:
		return "extreme_fear"
	case value <= 44:
		return "fear"
	case value <= 55:
		return "neutral"
	case value <= 74:
		return "greed"
	default:
		return "extreme_greed"
	}
}

// NetworkStats fetches activity metrics for a chain
func (c *Client) NetworkStats(ctx context.Context, network string) (*NetworkStats, error) {
	var stats NetworkStats
	if err := c.getJSON(ctx, "network", c.cfg.NetworkURL, url.Values{"network": {network}}, &stats); err != nil {
		return nil, err
	}
	if stats.Network == "" {
		stats.Network = network
	}
	return &stats, nil
}

// MacroIndicators fetches the named indicators, or the feed's default set when names is empty
func (c *Client) MacroIndicators(ctx context.Context, names []string) ([]MacroIndicator, error) {
	var q url.Values
	if len(names) > 0 {
		q = url.Values{"names": {strings.Join(names, ",")}}
	}

	var indicators []MacroIndicator
	if err := c.getJSON(ctx, "macro", c.cfg.MacroURL, q, &indicators); err != nil {
		return nil, err
	}
	return indicators, nil
}

// Prices returns USD spot prices keyed by upper-case symbol
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	var prices map[string]decimal.Decimal
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if err := c.getJSON(ctx, "prices", c.cfg.PricesURL, q, &prices); err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		out[strings.ToUpper(k)] = v
	}
	return out, nil
}
