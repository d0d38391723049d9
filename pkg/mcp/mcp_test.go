package mcp

import "testing"

func TestContentResultFromJSON_JoinsTextBlocks(t *testing.T) {
	raw := []byte(`{"isError":false,"content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}`)
	result := contentResultFromJSON(raw)
	if result.Output != "first\nsecond" {
		t.Errorf("unexpected output: %q", result.Output)
	}
	if result.IsError {
		t.Error("expected IsError false")
	}
}

func TestContentResultFromJSON_SkipsNonTextBlocks(t *testing.T) {
	raw := []byte(`{"isError":false,"content":[{"type":"image","data":"base64=="},{"type":"text","text":"only this"}]}`)
	result := contentResultFromJSON(raw)
	if result.Output != "only this" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestContentResultFromJSON_PropagatesIsError(t *testing.T) {
	raw := []byte(`{"isError":true,"content":[{"type":"text","text":"boom"}]}`)
	result := contentResultFromJSON(raw)
	if !result.IsError {
		t.Error("expected IsError true")
	}
	if result.Output != "boom" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestConvertSchemaJSON_PatchesInMissingType(t *testing.T) {
	raw := []byte(`{"properties":{"x":{"type":"string"}}}`)
	result := convertSchemaJSON(raw)
	if result["type"] != "object" {
		t.Errorf("expected type to be patched to object, got %v", result["type"])
	}
}

func TestConvertSchemaJSON_PreservesExistingType(t *testing.T) {
	raw := []byte(`{"type":"object","properties":{"x":{"type":"string"}}}`)
	result := convertSchemaJSON(raw)
	if result["type"] != "object" {
		t.Errorf("unexpected type: %v", result["type"])
	}
	props, ok := result["properties"].(map[string]any)
	if !ok || len(props) != 1 {
		t.Errorf("expected properties to survive round-trip, got %v", result["properties"])
	}
}
