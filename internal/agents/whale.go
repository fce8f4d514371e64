package agents

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"marketscanner/internal/adapters/marketdata"
)

var defaultWhaleMinUSD = decimal.NewFromInt(1_000_000)

// WhaleAgent weighs large transfers into and out of exchanges.
// Net inflow to exchanges reads as sell pressure (bearish), net outflow as accumulation.
type WhaleAgent struct {
	feed WhaleFeed
}

func NewWhaleAgent(feed WhaleFeed) *WhaleAgent {
	return &WhaleAgent{feed: feed}
}

func (a *WhaleAgent) Name() string { return string(KindWhale) }

func (a *WhaleAgent) Inputs() InputSpec {
	return InputSpec{Required: []string{"symbol"}, Optional: []string{"network", "min_usd"}}
}

func (a *WhaleAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	symbol, err := in.String("symbol")
	if err != nil {
		return nil, err
	}
	network, err := in.StringOr("network", "")
	if err != nil {
		return nil, err
	}
	minUSD, err := in.DecimalOr("min_usd", defaultWhaleMinUSD)
	if err != nil {
		return nil, err
	}

	transfers, err := a.feed.WhaleTransfers(ctx, strings.ToUpper(symbol), network, minUSD)
	if err != nil {
		return nil, err
	}

	inflow, outflow, largest := decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range transfers {
		switch t.Direction {
		case marketdata.DirectionToExchange:
			inflow = inflow.Add(t.AmountUSD)
		case marketdata.DirectionFromExchange:
			outflow = outflow.Add(t.AmountUSD)
		}
		if t.AmountUSD.GreaterThan(largest) {
			largest = t.AmountUSD
		}
	}

	net := inflow.Sub(outflow)
	gross := inflow.Add(outflow)

	bias := BiasNeutral
	confidence := 0.2
	if gross.IsPositive() {
		imbalance, _ := net.Abs().Div(gross).Float64()
		confidence = 0.3 + 0.6*imbalance
		// under 10% imbalance is noise
		if imbalance >= 0.1 {
			if net.IsPositive() {
				bias = BiasBearish
			} else {
				bias = BiasBullish
			}
		}
	}

	return Output{
		FieldConfidence:         confidence,
		"symbol":                strings.ToUpper(symbol),
		"transfers":             len(transfers),
		"exchange_inflow_usd":   inflow.StringFixed(2),
		"exchange_outflow_usd":  outflow.StringFixed(2),
		"net_exchange_flow_usd": net.StringFixed(2),
		"largest_transfer_usd":  largest.StringFixed(2),
		"bias":                  bias,
	}, nil
}
