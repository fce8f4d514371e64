package agents

import (
	"context"

	"github.com/shopspring/decimal"

	"marketscanner/pkg/errors"
)

// PortfolioAgent values holdings at spot and reports allocation and concentration.
type PortfolioAgent struct {
	feed PriceFeed
}

func NewPortfolioAgent(feed PriceFeed) *PortfolioAgent {
	return &PortfolioAgent{feed: feed}
}

func (a *PortfolioAgent) Name() string { return string(KindPortfolio) }

func (a *PortfolioAgent) Inputs() InputSpec {
	return InputSpec{Required: []string{"holdings"}}
}

func (a *PortfolioAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	holdings, err := in.Holdings("holdings")
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}

	prices, err := a.feed.Prices(ctx, symbols)
	if err != nil {
		return nil, err
	}

	type position struct {
		symbol string
		value  decimal.Decimal
	}

	var (
		positions []position
		unpriced  []string
		total     = decimal.Zero
	)
	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		if !ok {
			unpriced = append(unpriced, h.Symbol)
			continue
		}
		v := h.Amount.Mul(price)
		positions = append(positions, position{symbol: h.Symbol, value: v})
		total = total.Add(v)
	}

	if len(positions) == 0 {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "no prices for %v", unpriced)
	}

	allocations := make(map[string]float64, len(positions))
	var concentration, hhi float64
	if total.IsPositive() {
		for _, p := range positions {
			w, _ := p.value.Div(total).Float64()
			allocations[p.symbol] = round(w, 4)
			hhi += w * w
			if w > concentration {
				concentration = w
			}
		}
	}

	coverage := float64(len(positions)) / float64(len(holdings))
	if unpriced == nil {
		unpriced = []string{}
	}

	return Output{
		FieldConfidence:   0.5 + 0.4*coverage,
		"total_value_usd": total.StringFixed(2),
		"allocations":     allocations,
		"concentration":   round(concentration, 4),
		"diversification": round(1-hhi, 4),
		"positions":       len(positions),
		"unpriced":        unpriced,
	}, nil
}
