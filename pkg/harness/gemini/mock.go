package gemini

import (
	"coreagent/pkg/harness"
)

// MockOption configures a Gemini-specific mock harness.
type MockOption func(*harness.MockConfig)

// NewMock creates a mock harness pre-configured with Gemini defaults.
func NewMock(opts ...MockOption) *harness.Mock {
	cfg := harness.MockConfig{
		HarnessName: "gemini",
		Record:      true,
		Models: []harness.ModelInfo{
			{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "gemini"},
			{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: "gemini"},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return harness.NewMock(cfg)
}

// WithThinkingFlow adds a scripted thinking-then-text sequence.
func WithThinkingFlow(thinking, text string) MockOption {
	return func(cfg *harness.MockConfig) {
		cfg.Responses = append(cfg.Responses, []harness.Event{
			harness.NewThinkingEvent(thinking),
			harness.NewTextEvent(text),
			harness.NewUsageEvent(500, 100),
		})
	}
}

// WithFunctionCallFlow adds a scripted function call + result sequence.
func WithFunctionCallFlow(toolName, toolArgs, responseText string) MockOption {
	return func(cfg *harness.MockConfig) {
		cfg.Responses = append(cfg.Responses, []harness.Event{
			harness.NewToolCallEvent("gemini_call_1", toolName, toolArgs),
		})
		cfg.Responses = append(cfg.Responses, []harness.Event{
			harness.NewTextEvent(responseText),
			harness.NewUsageEvent(600, 120),
		})
	}
}

// WithTextResponse adds a simple text response sequence.
func WithTextResponse(text string) MockOption {
	return func(cfg *harness.MockConfig) {
		cfg.Responses = append(cfg.Responses, []harness.Event{
			harness.NewTextEvent(text),
			harness.NewUsageEvent(200, 50),
		})
	}
}

// WithErrorResponse adds a scripted error response.
func WithErrorResponse(message string) MockOption {
	return func(cfg *harness.MockConfig) {
		cfg.Responses = append(cfg.Responses, []harness.Event{
			harness.NewErrorEvent(message),
		})
	}
}
