package agents

import (
	"math"

	"github.com/markcheno/go-talib"

	"marketscanner/internal/adapters/marketdata"
	"marketscanner/pkg/errors"
)

const (
	rsiPeriod     = 14
	rsiOverbought = 70.0
	rsiOversold   = 30.0

	trendUp       = "up"
	trendDown     = "down"
	trendSideways = "sideways"
)

// trendSnapshot is the indicator state at the last closed candle
type trendSnapshot struct {
	Trend     string
	RSI       float64
	Fast      float64
	Slow      float64
	LastPrice float64
	ChangePct float64
}

// maKind selects the fast moving average flavour
type maKind int

const (
	maSMA maKind = iota
	maEMA
)

// analyzeTrend classifies trend from price vs fast/slow moving averages and RSI.
// At least slowPeriod+1 candles are needed; fewer is treated as an upstream gap.
func analyzeTrend(candles []marketdata.Candle, fast maKind, fastPeriod, slowPeriod int) (*trendSnapshot, error) {
	if len(candles) < slowPeriod+1 {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable,
			"insufficient history: got %d candles, need %d", len(candles), slowPeriod+1)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	var fastSeries []float64
	if fast == maEMA {
		fastSeries = talib.Ema(closes, fastPeriod)
	} else {
		fastSeries = talib.Sma(closes, fastPeriod)
	}
	slowSeries := talib.Sma(closes, slowPeriod)
	rsiSeries := talib.Rsi(closes, rsiPeriod)

	last := len(closes) - 1
	snap := &trendSnapshot{
		RSI:       rsiSeries[last],
		Fast:      fastSeries[last],
		Slow:      slowSeries[last],
		LastPrice: closes[last],
	}
	if closes[0] != 0 {
		snap.ChangePct = (closes[last] - closes[0]) / closes[0] * 100
	}

	switch {
	case snap.LastPrice > snap.Fast && snap.Fast > snap.Slow:
		snap.Trend = trendUp
	case snap.LastPrice < snap.Fast && snap.Fast < snap.Slow:
		snap.Trend = trendDown
	default:
		snap.Trend = trendSideways
	}

	return snap, nil
}

// confidence grows with MA separation and is nudged by RSI: confirming
// momentum adds, an exhausted move (overbought uptrend, oversold downtrend) subtracts.
func (s *trendSnapshot) confidence() float64 {
	if s.Trend == trendSideways || s.Slow == 0 {
		return 0.4
	}

	// 5% separation between fast and slow saturates strength
	strength := math.Min(math.Abs(s.Fast-s.Slow)/s.Slow*20, 1)
	c := 0.5 + 0.3*strength

	switch s.Trend {
	case trendUp:
		if s.RSI >= rsiOverbought {
			c -= 0.1
		} else if s.RSI > 50 {
			c += 0.1
		}
	case trendDown:
		if s.RSI <= rsiOversold {
			c -= 0.1
		} else if s.RSI < 50 {
			c += 0.1
		}
	}

	return ClampConfidence(c)
}
