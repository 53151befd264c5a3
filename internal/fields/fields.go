// Package fields resolves values out of heterogeneous broker responses.
//
// The broker returns the same logical attribute under different keys
// depending on endpoint and response generation (a last price may arrive
// as "last_price", "ltp", "last_traded_price" or "lp"). Each logical
// attribute is declared once as an ordered Alias list and resolved by
// first-present-wins, so the alias sets stay auditable in one place
// instead of being scattered across ad-hoc branches.
package fields

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Alias is an ordered list of candidate keys for one logical attribute.
// Earlier keys take priority over later ones.
type Alias []string

// Lookup returns the first value present in m, in declaration order.
func (a Alias) Lookup(m map[string]any) (any, bool) {
	for _, key := range a {
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String resolves the attribute as a string. Non-string scalars are
// formatted; absent resolves to ("", false).
func (a Alias) String(m map[string]any) (string, bool) {
	v, ok := a.Lookup(m)
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// StringOr resolves the attribute as a string with a default.
func (a Alias) StringOr(m map[string]any, def string) string {
	if s, ok := a.String(m); ok && s != "" {
		return s
	}
	return def
}

// Float resolves the attribute as a float64. Present-but-unparsable
// values resolve to (0, false) so callers can treat malformed the same
// as absent: the field stays unset rather than becoming a spurious zero.
func (a Alias) Float(m map[string]any) (float64, bool) {
	v, ok := a.Lookup(m)
	if !ok {
		return 0, false
	}
	return Coerce(v)
}

// FloatOr resolves the attribute as a float64 with a default. Used for
// aggregate numeric fields where a single malformed value must not fail
// the batch.
func (a Alias) FloatOr(m map[string]any, def float64) float64 {
	if f, ok := a.Float(m); ok {
		return f
	}
	return def
}

// IntOr resolves the attribute as an int with a default. Values like
// "100.0" are accepted and truncated, matching broker quantity fields
// that arrive as decimal strings.
func (a Alias) IntOr(m map[string]any, def int) int {
	if f, ok := a.Float(m); ok {
		return int(f)
	}
	return def
}

// Coerce converts a dynamically typed scalar to float64. It accepts
// the numeric types produced by encoding/json plus numeric strings.
func Coerce(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify renders a scalar the way the broker's string fields are
// consumed: numbers without exponent notation, everything else via
// the default formatting.
func Stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
