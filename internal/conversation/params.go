package conversation

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vaidashi/phone-order-api/internal/models"
)

// Params are the arguments of a voice function call as decoded from JSON
type Params map[string]interface{}

// String returns the first non-empty value among keys, formatted as text
func (p Params) String(keys ...string) string {
	for _, key := range keys {
		if s := toString(p[key]); s != "" {
			return s
		}
	}
	return ""
}

// StringOr is String with a default
func (p Params) StringOr(def string, keys ...string) string {
	if s := p.String(keys...); s != "" {
		return s
	}
	return def
}

// Bool reports a JSON boolean value; ok is false for any other type
func (p Params) Bool(key string) (value, ok bool) {
	b, ok := p[key].(bool)
	return b, ok
}

// Float returns the first numeric value among keys. Numeric strings are accepted.
func (p Params) Float(keys ...string) (float64, bool) {
	for _, key := range keys {
		if f, ok := toFloat(p[key]); ok {
			return f, true
		}
	}
	return 0, false
}

// Money reads a dollar amount
func (p Params) Money(keys ...string) models.Money {
	f, _ := p.Float(keys...)
	return models.NewMoney(f)
}

// List returns the first array value among keys as objects. Bare strings become {"name": s}.
func (p Params) List(keys ...string) []map[string]interface{} {
	for _, key := range keys {
		raw, ok := p[key].([]interface{})
		if !ok || len(raw) == 0 {
			continue
		}

		out := make([]map[string]interface{}, 0, len(raw))
		for _, entry := range raw {
			switch v := entry.(type) {
			case map[string]interface{}:
				out = append(out, v)
			case string:
				out = append(out, map[string]interface{}{"name": v})
			}
		}
		return out
	}
	return nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(t), "$"), 64)
		return f, err == nil
	}
	return 0, false
}

func quantity(v interface{}) int {
	f, ok := toFloat(v)
	if !ok || f < 1 {
		return 1
	}
	// anything above the cap stays above it so validation rejects the line
	if f > models.MaxItemQuantity {
		return models.MaxItemQuantity + 1
	}
	return int(f)
}
