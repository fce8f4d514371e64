package agents

// Kind enumerates supported worker agent specializations.
type Kind string

const (
	KindCrypto    Kind = "crypto"
	KindStock     Kind = "stock"
	KindWhale     Kind = "whale"
	KindNews      Kind = "news"
	KindSentiment Kind = "sentiment"
	KindOnChain   Kind = "onchain"
	KindMacro     Kind = "macro"
	KindPortfolio Kind = "portfolio"
)

// Input is the flat set of named parameters an agent receives on POST /task.
type Input map[string]interface{}

// Output is an agent's analysis. It always carries FieldConfidence in [0, 1]
// next to the domain specific fields.
type Output map[string]interface{}

// FieldConfidence is the output key every agent must populate.
const FieldConfidence = "confidence"

// InputSpec declares which request fields an agent consumes.
type InputSpec struct {
	Required []string `json:"required" yaml:"required"`
	Optional []string `json:"optional" yaml:"optional"`
}

// Fields returns required followed by optional field names.
func (s InputSpec) Fields() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

// Directional bias labels shared by several agents.
const (
	BiasBullish = "bullish"
	BiasBearish = "bearish"
	BiasNeutral = "neutral"
)
