package provider

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ExtractValue normalizes a numeric value from the shapes the provider uses.
//
// Stat fields arrive as JSON numbers, numeric strings ("12", ".312", "6.2"),
// or nested objects like {"value": 15} / {"total": 15}. Empty strings and
// "-" placeholders are treated as absent.
//
// Returns the scalar float64 value, and ok=false if not extractable.
func ExtractValue(val any) (float64, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" || s == "-" || s == "--" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		return 0, false
	case map[string]any:
		for _, key := range []string{"value", "total", "all", "count"} {
			if inner, exists := v[key]; exists && inner != nil {
				return ExtractValue(inner)
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// ToString renders a scalar as a string. Integral floats lose their decimal
// point so numeric ids read the same whether they arrived as 123 or "123".
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
