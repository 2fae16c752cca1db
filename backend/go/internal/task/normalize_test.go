package task

import (
	"strings"
	"testing"

	"TaskAgent/backend/go/internal/models"
)

func nested(levels int) map[string]interface{} {
	leaf := map[string]interface{}{"leaf": 1}
	for i := 0; i < levels; i++ {
		leaf = map[string]interface{}{"n": leaf}
	}
	return leaf
}

func depthOf(v models.Value) int {
	m, ok := v.AsMap()
	if !ok || len(m) == 0 {
		return 0
	}
	max := 0
	for _, child := range m {
		if d := depthOf(child); d > max {
			max = d
		}
	}
	return max + 1
}

func TestNormalizePayload_DepthTruncation(t *testing.T) {
	limits := DefaultLimits()
	out, err := limits.NormalizePayload(KindRaw, nested(6))
	if err != nil {
		t.Fatalf("NormalizePayload failed: %v", err)
	}
	if got := depthOf(models.Map(out)); got != limits.MaxDepth {
		t.Errorf("Expected %d non-empty levels, got %d", limits.MaxDepth, got)
	}

	// Walk down to the excess level and check it became an empty map.
	v := models.Map(out)
	for i := 0; i < limits.MaxDepth; i++ {
		m, _ := v.AsMap()
		v = m["n"]
	}
	if m, ok := v.AsMap(); !ok || len(m) != 0 {
		t.Errorf("Expected an empty map at the excess depth, got %v", v.Interface())
	}
}

func TestNormalizePayload_Idempotent(t *testing.T) {
	limits := DefaultLimits()
	raw := map[string]interface{}{
		"deep":  nested(8),
		"list":  []interface{}{[]interface{}{[]interface{}{[]interface{}{[]interface{}{"x"}}}}},
		"text":  "  padded " + strings.Repeat("é", 2000),
		"other": struct{ A string }{A: "b"},
	}
	once, err := limits.NormalizePayload(KindRaw, raw)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	twice, err := limits.NormalizePayload(KindRaw, models.MapInterface(once))
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if !models.Map(once).Equal(models.Map(twice)) {
		t.Errorf("Expected normalization to be idempotent")
	}

	s, _ := once["text"].AsString()
	if n := len([]rune(s)); n != limits.MaxStringLength {
		t.Errorf("Expected text cut to %d runes, got %d", limits.MaxStringLength, n)
	}
	if strings.HasPrefix(s, " ") {
		t.Errorf("Expected text to be trimmed")
	}
	if other, _ := once["other"].AsString(); other != "{b}" {
		t.Errorf("Expected stringified leaf, got %q", other)
	}
}

func TestNormalizePayload_NestedMapKeyLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPayloadKeys = 2
	out, err := limits.NormalizePayload(KindRaw, map[string]interface{}{
		"m": map[string]interface{}{"c": 3, "a": 1, "b": 2},
	})
	if err != nil {
		t.Fatalf("NormalizePayload failed: %v", err)
	}
	m, _ := out["m"].AsMap()
	if len(m) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(m))
	}
	if _, ok := m["c"]; ok {
		t.Errorf("Expected the first keys in sorted order to be kept")
	}
}
