// Package claude implements the Family A (Claude/Anthropic-shaped) provider
// adapter: native tool-use content blocks and cache_control breakpoints.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"coreagent/pkg/harness"
)

// ClientWrapper wraps the Anthropic SDK client with the API key resolved at
// construction time, giving the harness package direct access to the
// Messages API without depending on the OAuth refresh flow.
type ClientWrapper struct {
	apiKey string
	cfg    ClientConfig
}

// ClientConfig holds configuration for the Claude client wrapper.
type ClientConfig struct {
	// DefaultMaxTokens is set to 16384 by NewClientWrapper when unset. The
	// wrapper does not apply it to requests; max_tokens comes from the
	// request params it is given.
	DefaultMaxTokens int

	// DefaultThinkingBudget is set to 10000 by NewClientWrapper when unset.
	// The wrapper does not apply it to requests either.
	DefaultThinkingBudget int

	// BaseURL overrides the Anthropic API base URL (for gateways/mocks).
	BaseURL string
}

// NewClientWrapper creates a wrapper around the Anthropic SDK client using
// the given API key.
func NewClientWrapper(apiKey string, cfg ClientConfig) *ClientWrapper {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 16384
	}
	if cfg.DefaultThinkingBudget <= 0 {
		cfg.DefaultThinkingBudget = 10000
	}
	return &ClientWrapper{apiKey: apiKey, cfg: cfg}
}

func (w *ClientWrapper) sdkClient(ctx context.Context) anthropic.Client {
	key := w.apiKey
	if override, ok := harness.ProviderKey(ctx); ok {
		key = override
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if w.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(w.cfg.BaseURL))
	}
	return anthropic.NewClient(opts...)
}

// StreamMessages starts a streaming Messages API call and invokes onEvent for
// each raw Anthropic stream event. A harness.WithProviderKey override on ctx
// takes the call's key over the one the wrapper was constructed with, for
// callers juggling multiple accounts on one harness instance.
func (w *ClientWrapper) StreamMessages(ctx context.Context, params anthropic.MessageNewParams, onEvent func(anthropic.MessageStreamEventUnion) error) error {
	client := w.sdkClient(ctx)
	stream := client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		if err := onEvent(stream.Current()); err != nil {
			return err
		}
	}
	return stream.Err()
}

// ListModels returns available Claude models.
func (w *ClientWrapper) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	client := w.sdkClient(ctx)
	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var models []harness.ModelInfo
	for _, m := range page.Data {
		models = append(models, harness.ModelInfo{
			ID:       m.ID,
			Name:     m.DisplayName,
			Provider: "claude",
		})
	}
	return models, nil
}
