package schema

import "testing"

func TestNormalizeStrict_ClosesObjectAndMakesOptionalNullable(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string"},
			"recursive": map[string]any{"type": "boolean"},
		},
		"required": []any{"path"},
	}
	got := NormalizeStrict(params)

	if got["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v, want false", got["additionalProperties"])
	}
	required, _ := got["required"].([]any)
	if len(required) != 2 {
		t.Fatalf("required = %v, want both properties listed", required)
	}
	props := got["properties"].(map[string]any)
	recursive := props["recursive"].(map[string]any)
	rt, _ := recursive["type"].([]any)
	if len(rt) != 2 || rt[0] != "boolean" || rt[1] != "null" {
		t.Errorf("recursive.type = %v, want [boolean null]", recursive["type"])
	}
}

func TestNormalizeStrict_DoesNotMutateInput(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
	_ = NormalizeStrict(params)

	if _, ok := params["additionalProperties"]; ok {
		t.Errorf("NormalizeStrict mutated the caller's schema: %v", params)
	}
}

func TestNormalizeStrict_EmptyIsNoop(t *testing.T) {
	if got := NormalizeStrict(nil); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}
}
