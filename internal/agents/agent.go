package agents

import (
	"context"
	"math"

	"marketscanner/pkg/errors"
)

// Agent is a stateless analysis unit. Analyze may be called concurrently and
// must not rely on anything remembered from a previous call.
type Agent interface {
	Name() string
	Inputs() InputSpec
	Analyze(ctx context.Context, in Input) (Output, error)
}

// Validate checks that every required field is present and non-empty.
func (s InputSpec) Validate(in Input) error {
	for _, field := range s.Required {
		v, ok := in[field]
		if !ok || v == nil {
			return errors.NewValidationError(field, "required field is missing", nil)
		}
		if str, isStr := v.(string); isStr && str == "" {
			return errors.NewValidationError(field, "required field is empty", v)
		}
	}
	return nil
}

// Run validates the input, executes the agent and normalizes its confidence.
// An agent that returns no confidence is treated as an internal error.
func Run(ctx context.Context, a Agent, in Input) (Output, error) {
	if in == nil {
		in = Input{}
	}

	if err := a.Inputs().Validate(in); err != nil {
		return nil, err
	}

	out, err := a.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	raw, ok := out[FieldConfidence]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInternal, "agent %s returned no confidence", a.Name())
	}
	c, ok := toFloat(raw)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInternal, "agent %s returned non-numeric confidence", a.Name())
	}
	out[FieldConfidence] = ClampConfidence(c)

	return out, nil
}

// ClampConfidence forces c into [0, 1]; NaN becomes 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// round rounds to n decimal places for stable, readable payloads
func round(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}
