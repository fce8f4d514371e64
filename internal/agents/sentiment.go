package agents

import (
	"context"
	"math"
	"time"
)

// SentimentAgent reports the crypto Fear & Greed index. It takes no inputs.
type SentimentAgent struct {
	feed FearGreedFeed
}

func NewSentimentAgent(feed FearGreedFeed) *SentimentAgent {
	return &SentimentAgent{feed: feed}
}

func (a *SentimentAgent) Name() string { return string(KindSentiment) }

func (a *SentimentAgent) Inputs() InputSpec { return InputSpec{} }

func (a *SentimentAgent) Analyze(ctx context.Context, _ Input) (Output, error) {
	idx, err := a.feed.FearGreed(ctx)
	if err != nil {
		return nil, err
	}

	bias := BiasNeutral
	switch {
	case idx.Value <= 44:
		bias = BiasBearish
	case idx.Value >= 56:
		bias = BiasBullish
	}

	// readings near 50 carry little signal; extremes carry the most
	distance := math.Abs(float64(idx.Value)-50) / 50

	return Output{
		FieldConfidence: 0.3 + 0.6*distance,
		"value":         idx.Value,
		"rating":        idx.Rating,
		"bias":          bias,
		"timestamp":     idx.Timestamp.Format(time.RFC3339),
	}, nil
}
