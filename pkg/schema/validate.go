package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles tool input schemas once and validates call arguments
// against them, producing a ToolInput error the caller can surface as a
// tool-result error rather than a Go error (a validation failure is the
// model's mistake, not ours).
type Validator struct {
	mu     sync.Mutex
	schema map[string]*jsonschema.Schema
}

// NewValidator creates an empty Validator; schemas are compiled lazily on
// first use and cached by tool name.
func NewValidator() *Validator {
	return &Validator{schema: make(map[string]*jsonschema.Schema)}
}

// ValidateToolInput checks argsJSON against toolSchema (a parsed JSON
// Schema document, as stored on tool.Tool.Schema), returning a ToolInput
// error describing the first violation. toolName keys the compiled-schema
// cache so repeated calls to the same tool skip recompilation.
func (v *Validator) ValidateToolInput(toolName string, toolSchema map[string]any, argsJSON []byte) error {
	if len(toolSchema) == 0 {
		return nil
	}

	v.mu.Lock()
	sch, ok := v.schema[toolName]
	v.mu.Unlock()

	if !ok {
		compiled, err := compile(toolName, toolSchema)
		if err != nil {
			return fmt.Errorf("schema: compile %s: %w", toolName, err)
		}
		v.mu.Lock()
		v.schema[toolName] = compiled
		v.mu.Unlock()
		sch = compiled
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(argsJSON))
	if err != nil {
		return &ToolInputError{Tool: toolName, Err: fmt.Errorf("invalid json: %w", err)}
	}
	if err := sch.Validate(inst); err != nil {
		return &ToolInputError{Tool: toolName, Err: err}
	}
	return nil
}

// compile round-trips toolSchema through JSON so every nested value has the
// exact types jsonschema.UnmarshalJSON would have produced (e.g. a Go
// []string "required" list becomes []any of strings) — tool.Tool.Schema is
// assembled by hand in Go, not parsed from JSON, so it cannot be handed to
// the compiler as-is.
func compile(toolName string, toolSchema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(toolSchema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	id := "tool:" + toolName
	if err := c.AddResource(id, doc); err != nil {
		return nil, err
	}
	return c.Compile(id)
}

// ToolInputError wraps a schema validation failure for one tool call.
type ToolInputError struct {
	Tool string
	Err  error
}

func (e *ToolInputError) Error() string {
	return fmt.Sprintf("%s: invalid arguments: %v", e.Tool, e.Err)
}

func (e *ToolInputError) Unwrap() error {
	return e.Err
}
