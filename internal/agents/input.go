package agents

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"marketscanner/pkg/errors"
)

// String returns a string field. Numbers are not coerced.
func (in Input) String(key string) (string, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return "", errors.NewValidationError(key, "required field is missing", nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(key, "must be a string", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.NewValidationError(key, "must not be empty", v)
	}
	return s, nil
}

// StringOr returns a string field or def when the field is absent.
// A present field of the wrong type is still an input error.
func (in Input) StringOr(key, def string) (string, error) {
	if v, ok := in[key]; !ok || v == nil {
		return def, nil
	}
	return in.String(key)
}

// Strings accepts either a JSON array of strings or a comma separated string.
// A missing field yields nil.
func (in Input) Strings(key string) ([]string, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return nil, nil
	}

	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []interface{}:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewValidationError(key, "must contain only strings", item)
			}
			parts = append(parts, s)
		}
	default:
		return nil, errors.NewValidationError(key, "must be a list of strings", v)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// DecimalOr returns a numeric field as a decimal, or def when absent.
func (in Input) DecimalOr(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return def, nil
	}
	d, ok := toDecimal(v)
	if !ok {
		return decimal.Zero, errors.NewValidationError(key, "must be a number", v)
	}
	return d, nil
}

// Holding is one position of a portfolio
type Holding struct {
	Symbol string
	Amount decimal.Decimal
}

// Holdings parses the "holdings" field. Two shapes are accepted:
//
//	{"BTC": 0.5, "ETH": "2"}
//	[{"symbol": "BTC", "amount": 0.5}, ...]
//
// Symbols are upper-cased; duplicate symbols are summed. Result order follows
// the list order, or symbol order for the map shape.
func (in Input) Holdings(key string) ([]Holding, error) {
	v, ok := in[key]
	if !ok || v == nil {
		return nil, errors.NewValidationError(key, "required field is missing", nil)
	}

	var raw []Holding
	switch t := v.(type) {
	case map[string]interface{}:
		for sym, amt := range t {
			d, ok := toDecimal(amt)
			if !ok {
				return nil, errors.NewValidationError(key+"."+sym, "amount must be a number", amt)
			}
			raw = append(raw, Holding{Symbol: sym, Amount: d})
		}
		sortHoldings(raw)
	case []interface{}:
		for i, item := range t {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.NewValidationError(key, "entries must be objects", i)
			}
			sym, _ := obj["symbol"].(string)
			if strings.TrimSpace(sym) == "" {
				return nil, errors.NewValidationError(key, "entry symbol is required", i)
			}
			d, ok := toDecimal(obj["amount"])
			if !ok {
				return nil, errors.NewValidationError(key+"."+sym, "amount must be a number", obj["amount"])
			}
			raw = append(raw, Holding{Symbol: sym, Amount: d})
		}
	default:
		return nil, errors.NewValidationError(key, "must be an object or a list", v)
	}

	if len(raw) == 0 {
		return nil, errors.NewValidationError(key, "must not be empty", nil)
	}

	index := make(map[string]int, len(raw))
	out := make([]Holding, 0, len(raw))
	for _, h := range raw {
		sym := strings.ToUpper(strings.TrimSpace(h.Symbol))
		if h.Amount.IsNegative() {
			return nil, errors.NewValidationError(key+"."+sym, "amount must not be negative", h.Amount.String())
		}
		if i, seen := index[sym]; seen {
			out[i].Amount = out[i].Amount.Add(h.Amount)
			continue
		}
		index[sym] = len(out)
		out = append(out, Holding{Symbol: sym, Amount: h.Amount})
	}
	return out, nil
}

func sortHoldings(h []Holding) {
	sort.Slice(h, func(i, j int) bool { return h[i].Symbol < h[j].Symbol })
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	case decimal.Decimal:
		return t, true
	default:
		return decimal.Zero, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
