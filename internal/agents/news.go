package agents

import (
	"context"
	"math"
	"strings"
)

const (
	newsBiasThreshold = 0.15
	newsTopHeadlines  = 5
)

// NewsAgent scores headline sentiment for a symbol.
type NewsAgent struct {
	feed NewsFeed
}

func NewNewsAgent(feed NewsFeed) *NewsAgent {
	return &NewsAgent{feed: feed}
}

func (a *NewsAgent) Name() string { return string(KindNews) }

func (a *NewsAgent) Inputs() InputSpec {
	return InputSpec{Required: []string{"symbol"}, Optional: []string{"topics"}}
}

func (a *NewsAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	symbol, err := in.String("symbol")
	if err != nil {
		return nil, err
	}
	topics, err := in.Strings("topics")
	if err != nil {
		return nil, err
	}

	headlines, err := a.feed.Headlines(ctx, strings.ToUpper(symbol), topics)
	if err != nil {
		return nil, err
	}

	if len(headlines) == 0 {
		return Output{
			FieldConfidence: 0.1,
			"symbol":        strings.ToUpper(symbol),
			"headlines":     []map[string]interface{}{},
			"score":         0.0,
			"bias":          BiasNeutral,
		}, nil
	}

	var sum float64
	for _, h := range headlines {
		sum += h.Sentiment
	}
	score := sum / float64(len(headlines))

	bias := BiasNeutral
	switch {
	case score > newsBiasThreshold:
		bias = BiasBullish
	case score < -newsBiasThreshold:
		bias = BiasBearish
	}

	// agreement: share of headlines leaning the same way as the aggregate
	agree := 0
	for _, h := range headlines {
		switch bias {
		case BiasBullish:
			if h.Sentiment > 0 {
				agree++
			}
		case BiasBearish:
			if h.Sentiment < 0 {
				agree++
			}
		default:
			if math.Abs(h.Sentiment) <= newsBiasThreshold {
				agree++
			}
		}
	}
	agreement := float64(agree) / float64(len(headlines))
	coverage := math.Min(float64(len(headlines))/10, 1)

	top := headlines
	if len(top) > newsTopHeadlines {
		top = top[:newsTopHeadlines]
	}
	items := make([]map[string]interface{}, 0, len(top))
	for _, h := range top {
		items = append(items, map[string]interface{}{
			"title":     h.Title,
			"source":    h.Source,
			"url":       h.URL,
			"sentiment": round(h.Sentiment, 3),
		})
	}

	return Output{
		FieldConfidence: 0.2 + 0.7*agreement*coverage,
		"symbol":        strings.ToUpper(symbol),
		"headlines":     items,
		"count":         len(headlines),
		"score":         round(score, 3),
		"bias":          bias,
	}, nil
}
