// Package openai implements the Family C (OpenAI/OpenRouter-shaped,
// tool_calls/tool_call_id, Chat Completions) provider adapter.
package openai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"coreagent/pkg/harness"
)

// ClientWrapper wraps the go-openai client, configured with an API key and
// optional base URL override (for OpenRouter / local-model gateways that
// speak the same Chat Completions wire format).
type ClientWrapper struct {
	inner *openai.Client
	cfg   ClientConfig
}

// ClientConfig configures the underlying go-openai client.
type ClientConfig struct {
	APIKey  string
	BaseURL string // override for OpenRouter/local gateways; empty uses the OpenAI default
}

// NewClientWrapper creates a client wrapper from config.
func NewClientWrapper(cfg ClientConfig) *ClientWrapper {
	return &ClientWrapper{inner: openai.NewClientWithConfig(oaiConfig(cfg)), cfg: cfg}
}

func oaiConfig(cfg ClientConfig) openai.ClientConfig {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	return oaiCfg
}

// clientFor returns the cached client, unless ctx carries a
// harness.WithProviderKey override, in which case it builds a transient
// client scoped to this one call.
func (w *ClientWrapper) clientFor(ctx context.Context) *openai.Client {
	override, ok := harness.ProviderKey(ctx)
	if !ok {
		return w.inner
	}
	cfg := w.cfg
	cfg.APIKey = override
	return openai.NewClientWithConfig(oaiConfig(cfg))
}

// StreamChat streams a Chat Completions request and invokes onChunk for
// every SSE delta.
func (w *ClientWrapper) StreamChat(ctx context.Context, req openai.ChatCompletionRequest, onChunk func(openai.ChatCompletionStreamResponse) error) error {
	req.Stream = true
	stream, err := w.clientFor(ctx).CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := onChunk(resp); err != nil {
			return err
		}
	}
}

// ListModels returns the provider's available models.
func (w *ClientWrapper) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	list, err := w.clientFor(ctx).ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]harness.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, harness.ModelInfo{ID: m.ID, Provider: "openai"})
	}
	return out, nil
}
