package schema

import "testing"

func readSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "string"},
			"offset": map[string]any{"type": "integer"},
		},
		"required": []string{"path"},
	}
}

func TestValidateToolInput_AcceptsValidArgs(t *testing.T) {
	v := NewValidator()
	err := v.ValidateToolInput("read", readSchema(), []byte(`{"path":"foo.go"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateToolInput_RejectsMissingRequired(t *testing.T) {
	v := NewValidator()
	err := v.ValidateToolInput("read", readSchema(), []byte(`{"offset":3}`))
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
}

func TestValidateToolInput_RejectsWrongType(t *testing.T) {
	v := NewValidator()
	err := v.ValidateToolInput("read", readSchema(), []byte(`{"path":"foo.go","offset":"not a number"}`))
	if err == nil {
		t.Fatal("expected error for wrong type")
	}
}

func TestValidateToolInput_SkipsEmptySchema(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateToolInput("noop", nil, []byte(`{"anything":true}`)); err != nil {
		t.Fatalf("expected no validation for an empty schema, got %v", err)
	}
}

func TestValidateToolInput_CachesCompiledSchema(t *testing.T) {
	v := NewValidator()
	sch := readSchema()
	if err := v.ValidateToolInput("read", sch, []byte(`{"path":"a"}`)); err != nil {
		t.Fatal(err)
	}
	// Second call with the same tool name reuses the cached schema even if
	// the map argument is mutated afterward.
	sch["required"] = []string{"path", "offset"}
	if err := v.ValidateToolInput("read", sch, []byte(`{"path":"a"}`)); err != nil {
		t.Fatalf("expected cached schema to still only require path, got %v", err)
	}
}
