package agents

import (
	"marketscanner/pkg/errors"
)

// constructors maps every supported kind to its builder
var constructors = map[Kind]func(Feeds) Agent{
	KindCrypto:    func(f Feeds) Agent { return NewCryptoAgent(f) },
	KindStock:     func(f Feeds) Agent { return NewStockAgent(f) },
	KindWhale:     func(f Feeds) Agent { return NewWhaleAgent(f) },
	KindNews:      func(f Feeds) Agent { return NewNewsAgent(f) },
	KindSentiment: func(f Feeds) Agent { return NewSentimentAgent(f) },
	KindOnChain:   func(f Feeds) Agent { return NewOnChainAgent(f) },
	KindMacro:     func(f Feeds) Agent { return NewMacroAgent(f) },
	KindPortfolio: func(f Feeds) Agent { return NewPortfolioAgent(f) },
}

// New builds the agent for kind on top of the given feeds.
func New(kind Kind, feeds Feeds) (Agent, error) {
	build, ok := constructors[kind]
	if !ok {
		return nil, errors.Newf("unknown agent kind %q", kind)
	}
	if feeds == nil {
		return nil, errors.New("market data feeds are required")
	}
	return build(feeds), nil
}

// NewRegistryWithAll builds one agent of every supported kind.
func NewRegistryWithAll(feeds Feeds) (*Registry, error) {
	reg := NewRegistry()
	for kind := range constructors {
		ag, err := New(kind, feeds)
		if err != nil {
			return nil, err
		}
		reg.Register(kind, ag)
	}
	return reg, nil
}
