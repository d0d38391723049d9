package main

import (
	"context"
	"fmt"

	"coreagent/pkg/config"
	"coreagent/pkg/harness"
	"coreagent/pkg/harness/claude"
	"coreagent/pkg/harness/gemini"
	"coreagent/pkg/harness/openai"
	"coreagent/pkg/metrics"
	"coreagent/pkg/session"
)

// buildRouter constructs a harness for every provider with a configured
// credential and registers each into a Router. At least one provider must
// be available or the CLI has nothing to talk to.
func buildRouter(ctx context.Context, creds *session.CredentialStore, logging config.LoggingConfig, collector *metrics.Collector) (*harness.Router, error) {
	router := harness.NewRouter("claude")
	registered := 0

	wrap := func(h harness.Harness) harness.Harness {
		if collector != nil {
			h = harness.WithMetrics(h, collector)
		}
		if logging.TurnLogDir != "" {
			h = harness.WithLogger(h, harness.LoggerConfig{Dir: logging.TurnLogDir, Redact: logging.RedactTurnLog})
		}
		return h
	}

	if key, err := creds.Key("anthropic"); err == nil {
		router.Register("claude", wrap(claude.New(claude.Config{
			Client:           claude.NewClientWrapper(key, claude.ClientConfig{}),
			DefaultModel:     "claude-sonnet-4-20250514",
			DefaultMaxTokens: 8192,
		})))
		registered++
	}

	if key, err := creds.Key("openai"); err == nil {
		router.Register("openai", wrap(openai.New(openai.Config{
			Client:       openai.NewClientWrapper(openai.ClientConfig{APIKey: key}),
			DefaultModel: "gpt-4o",
		})))
		registered++
	}

	if key, err := creds.Key("gemini"); err == nil {
		client, err := gemini.NewClientWrapper(ctx, gemini.ClientConfig{APIKey: key})
		if err != nil {
			return nil, fmt.Errorf("coreagent: gemini client: %w", err)
		}
		router.Register("gemini", wrap(gemini.New(gemini.Config{
			Client:       client,
			DefaultModel: "gemini-2.0-flash",
		})))
		registered++
	}

	if registered == 0 {
		return nil, fmt.Errorf("coreagent: no provider credentials configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY)")
	}
	return router, nil
}
