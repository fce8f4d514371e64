package agents

import (
	"context"
	"math"
	"strings"
)

const (
	regimeRiskOn  = "risk_on"
	regimeRiskOff = "risk_off"
	regimeNeutral = "neutral"
)

// riskOffWhenRising lists indicators whose increase signals tightening or stress
var riskOffWhenRising = map[string]bool{
	"vix":       true,
	"dxy":       true,
	"us10y":     true,
	"us2y":      true,
	"fed_funds": true,
}

// riskOnWhenRising lists indicators whose increase signals easing or appetite
var riskOnWhenRising = map[string]bool{
	"spx": true,
	"ndx": true,
	"m2":  true,
}

// MacroAgent votes a risk regime from the direction of macro indicators.
type MacroAgent struct {
	feed MacroFeed
}

func NewMacroAgent(feed MacroFeed) *MacroAgent {
	return &MacroAgent{feed: feed}
}

func (a *MacroAgent) Name() string { return string(KindMacro) }

func (a *MacroAgent) Inputs() InputSpec {
	return InputSpec{Optional: []string{"indicators"}}
}

func (a *MacroAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	names, err := in.Strings("indicators")
	if err != nil {
		return nil, err
	}
	for i := range names {
		names[i] = strings.ToLower(names[i])
	}

	indicators, err := a.feed.MacroIndicators(ctx, names)
	if err != nil {
		return nil, err
	}

	var votes, counted int
	items := make([]map[string]interface{}, 0, len(indicators))
	for _, ind := range indicators {
		name := strings.ToLower(ind.Name)
		change := ind.Value - ind.Previous

		items = append(items, map[string]interface{}{
			"name":     name,
			"value":    ind.Value,
			"previous": ind.Previous,
			"change":   round(change, 4),
		})

		if change == 0 {
			continue
		}
		switch {
		case riskOffWhenRising[name]:
			counted++
			if change > 0 {
				votes--
			} else {
				votes++
			}
		case riskOnWhenRising[name]:
			counted++
			if change > 0 {
				votes++
			} else {
				votes--
			}
		}
	}

	regime := regimeNeutral
	confidence := 0.2
	if counted > 0 {
		switch {
		case votes > 0:
			regime = regimeRiskOn
		case votes < 0:
			regime = regimeRiskOff
		}
		confidence = 0.3 + 0.6*math.Abs(float64(votes))/float64(counted)
	}

	return Output{
		FieldConfidence: confidence,
		"indicators":    items,
		"risk_regime":   regime,
		"signals":       counted,
	}, nil
}
