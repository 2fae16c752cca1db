package task

import (
	"math"
	"strings"
	"unicode/utf8"

	"TaskAgent/backend/go/internal/models"
)

// Limits bounds the size of an accepted descriptor.
type Limits struct {
	MaxIDLength     int
	MaxPayloadKeys  int
	MaxDepth        int
	MaxStringLength int
	MaxListLength   int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxIDLength:     128,
		MaxPayloadKeys:  32,
		MaxDepth:        4,
		MaxStringLength: 1024,
		MaxListLength:   64,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxIDLength <= 0 {
		l.MaxIDLength = d.MaxIDLength
	}
	if l.MaxPayloadKeys <= 0 {
		l.MaxPayloadKeys = d.MaxPayloadKeys
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxListLength <= 0 {
		l.MaxListLength = d.MaxListLength
	}
	return l
}

// NormalizePayload converts an untyped payload and applies the limits.
// The payload map itself sits at depth 0; any map or list reached at
// MaxDepth is replaced by an empty container of the same type. Strings are
// trimmed and cut to MaxStringLength runes, lists to MaxListLength items,
// and nested maps keep their first MaxPayloadKeys keys in sorted order.
// Applying it to its own output yields the same payload.
func (l Limits) NormalizePayload(kind Kind, raw map[string]interface{}) (map[string]models.Value, error) {
	l = l.withDefaults()
	if len(raw) > l.MaxPayloadKeys {
		return nil, invalidField(kind, "payload", "too many keys")
	}
	out := make(map[string]models.Value, len(raw))
	for k, v := range raw {
		out[k] = l.normalize(models.ValueOf(v), 1)
	}
	return out, nil
}

func (l Limits) normalize(v models.Value, depth int) models.Value {
	switch v.Kind() {
	case models.StringValue:
		s, _ := v.AsString()
		return models.String(l.clip(s))
	case models.NumberValue:
		n, _ := v.AsNumber()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return models.Null()
		}
		return v
	case models.ListValue:
		if depth >= l.MaxDepth {
			return models.List()
		}
		items, _ := v.AsList()
		if len(items) > l.MaxListLength {
			items = items[:l.MaxListLength]
		}
		out := make([]models.Value, len(items))
		for i, item := range items {
			out[i] = l.normalize(item, depth+1)
		}
		return models.List(out...)
	case models.MapValue:
		if depth >= l.MaxDepth {
			return models.Map(nil)
		}
		m, _ := v.AsMap()
		keys := models.SortedKeys(m)
		if len(keys) > l.MaxPayloadKeys {
			keys = keys[:l.MaxPayloadKeys]
		}
		out := make(map[string]models.Value, len(keys))
		for _, k := range keys {
			out[k] = l.normalize(m[k], depth+1)
		}
		return models.Map(out)
	default:
		return v
	}
}

func (l Limits) clip(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= l.MaxStringLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:l.MaxStringLength]))
}
