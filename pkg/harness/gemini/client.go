// Package gemini implements the Family B (Gemini-shaped) provider adapter:
// user/model roles, function-call/function-response parts, and an optional
// TTL'd server-side cached-content object in place of per-message cache
// hints.
package gemini

import (
	"context"

	"google.golang.org/genai"

	"coreagent/pkg/harness"
)

// ClientWrapper wraps the genai SDK client with the streaming/listing shape
// the harness needs.
type ClientWrapper struct {
	inner *genai.Client
	cfg   ClientConfig
}

// ClientConfig configures the underlying genai client.
type ClientConfig struct {
	APIKey string
}

// NewClientWrapper creates a client wrapper. Client construction is
// network-free, so a bad key only surfaces on the first call.
func NewClientWrapper(ctx context.Context, cfg ClientConfig) (*ClientWrapper, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return &ClientWrapper{inner: client, cfg: cfg}, nil
}

// clientFor returns the cached client, unless ctx carries a
// harness.WithProviderKey override, in which case it builds a transient
// client scoped to this one call.
func (w *ClientWrapper) clientFor(ctx context.Context) (*genai.Client, error) {
	override, ok := harness.ProviderKey(ctx)
	if !ok {
		return w.inner, nil
	}
	return genai.NewClient(ctx, &genai.ClientConfig{APIKey: override})
}

// StreamGenerate streams a GenerateContent call and invokes onChunk for each
// response chunk.
func (w *ClientWrapper) StreamGenerate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, onChunk func(*genai.GenerateContentResponse) error) error {
	client, err := w.clientFor(ctx)
	if err != nil {
		return err
	}
	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return err
		}
		if err := onChunk(resp); err != nil {
			return err
		}
	}
	return nil
}

// ListModels returns the provider's available models.
func (w *ClientWrapper) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	client, err := w.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	out := []harness.ModelInfo{}
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, harness.ModelInfo{ID: m.Name, Provider: "gemini"})
	}
	return out, nil
}
