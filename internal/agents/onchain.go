package agents

import (
	"context"
	"math"
	"strings"
)

const (
	activityExpanding   = "expanding"
	activityContracting = "contracting"
	activityStable      = "stable"
	activityUnknown     = "unknown"
)

// OnChainAgent compares current network activity with its 30 day baseline.
type OnChainAgent struct {
	feed NetworkFeed
}

func NewOnChainAgent(feed NetworkFeed) *OnChainAgent {
	return &OnChainAgent{feed: feed}
}

func (a *OnChainAgent) Name() string { return string(KindOnChain) }

func (a *OnChainAgent) Inputs() InputSpec {
	return InputSpec{Required: []string{"network"}}
}

func (a *OnChainAgent) Analyze(ctx context.Context, in Input) (Output, error) {
	network, err := in.String("network")
	if err != nil {
		return nil, err
	}

	stats, err := a.feed.NetworkStats(ctx, strings.ToLower(network))
	if err != nil {
		return nil, err
	}

	out := Output{
		"network":          stats.Network,
		"active_addresses": stats.ActiveAddresses,
		"tx_count":         stats.TxCount,
		"fee_usd":          round(stats.AvgFeeUSD, 4),
	}

	if stats.ActiveAddressesBaseline <= 0 || stats.TxCountBaseline <= 0 {
		out[FieldConfidence] = 0.3
		out["activity"] = activityUnknown
		return out, nil
	}

	addrGrowth := float64(stats.ActiveAddresses)/float64(stats.ActiveAddressesBaseline) - 1
	txGrowth := float64(stats.TxCount)/float64(stats.TxCountBaseline) - 1
	growth := (addrGrowth + txGrowth) / 2

	activity := activityStable
	switch {
	case growth > 0.1:
		activity = activityExpanding
	case growth < -0.1:
		activity = activityContracting
	}

	// both series moving the same way is a stronger read
	agreement := 0.0
	if addrGrowth*txGrowth > 0 {
		agreement = 0.1
	}

	out[FieldConfidence] = 0.4 + math.Min(math.Abs(growth), 0.4) + agreement
	out["activity"] = activity
	out["growth_pct"] = round(growth*100, 2)
	return out, nil
}
