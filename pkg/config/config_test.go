package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.Model != "claude-opus-4-6" {
		t.Errorf("Agent.Model = %q, want %q", cfg.Agent.Model, "claude-opus-4-6")
	}
	if cfg.Agent.Timeout != 90*time.Second {
		t.Errorf("Agent.Timeout = %v, want %v", cfg.Agent.Timeout, 90*time.Second)
	}
	if cfg.Agent.MaxTurns != 10 {
		t.Errorf("Agent.MaxTurns = %d, want 10", cfg.Agent.MaxTurns)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestDefaultPath(t *testing.T) {
	origEnv := os.Getenv("COREAGENT_CONFIG")
	origHome := os.Getenv("HOME")
	defer func() {
		os.Setenv("COREAGENT_CONFIG", origEnv)
		os.Setenv("HOME", origHome)
	}()

	os.Setenv("COREAGENT_CONFIG", "/custom/path/config.yaml")
	if got := DefaultPath(); got != "/custom/path/config.yaml" {
		t.Errorf("DefaultPath() with COREAGENT_CONFIG = %q, want %q", got, "/custom/path/config.yaml")
	}

	os.Unsetenv("COREAGENT_CONFIG")
	tmpHome := t.TempDir()
	os.Setenv("HOME", tmpHome)
	expected := filepath.Join(tmpHome, ".config", "coreagent", "config.yaml")
	if got := DefaultPath(); got != expected {
		t.Errorf("DefaultPath() = %q, want %q", got, expected)
	}
}

func TestLoadFrom(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configYAML := `
agent:
  model: custom-model
  timeout: 120s
tools:
  enabled: [read, list]
mcp:
  - name: fs
    command: mcp-server-fs
    args: ["--root", "/tmp"]
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadFrom(configPath)

	if cfg.Agent.Model != "custom-model" {
		t.Errorf("Agent.Model = %q, want %q", cfg.Agent.Model, "custom-model")
	}
	if cfg.Agent.Timeout != 120*time.Second {
		t.Errorf("Agent.Timeout = %v, want %v", cfg.Agent.Timeout, 120*time.Second)
	}
	if len(cfg.Tools.Enabled) != 2 || cfg.Tools.Enabled[0] != "read" {
		t.Errorf("Tools.Enabled = %v", cfg.Tools.Enabled)
	}
	if len(cfg.MCP) != 1 || cfg.MCP[0].Name != "fs" || cfg.MCP[0].Command != "mcp-server-fs" {
		t.Errorf("MCP = %+v", cfg.MCP)
	}

	// Defaults preserved for unset values.
	if cfg.Agent.MaxTurns != 10 {
		t.Errorf("Agent.MaxTurns should default to 10, got %d", cfg.Agent.MaxTurns)
	}
}

func TestLoadFromMissing(t *testing.T) {
	cfg := LoadFrom("/nonexistent/path/config.yaml")
	if cfg.Agent.Model != "claude-opus-4-6" {
		t.Errorf("should return defaults for missing file, got Agent.Model = %q", cfg.Agent.Model)
	}
}

func TestLoadFromEmpty(t *testing.T) {
	cfg := LoadFrom("")
	if cfg.Agent.Model != "claude-opus-4-6" {
		t.Errorf("should return defaults for empty path, got Agent.Model = %q", cfg.Agent.Model)
	}
}

func TestApplyEnv(t *testing.T) {
	envVars := []string{
		"COREAGENT_MODEL",
		"COREAGENT_TIMEOUT",
		"COREAGENT_MAX_TURNS",
		"COREAGENT_MOCK",
	}
	origValues := make(map[string]string)
	for _, v := range envVars {
		origValues[v] = os.Getenv(v)
	}
	defer func() {
		for k, v := range origValues {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	os.Setenv("COREAGENT_MODEL", "env-model")
	os.Setenv("COREAGENT_TIMEOUT", "30s")
	os.Setenv("COREAGENT_MAX_TURNS", "3")
	os.Setenv("COREAGENT_MOCK", "true")

	cfg := DefaultConfig()
	ApplyEnv(&cfg)

	if cfg.Agent.Model != "env-model" {
		t.Errorf("Agent.Model = %q, want %q", cfg.Agent.Model, "env-model")
	}
	if cfg.Agent.Timeout != 30*time.Second {
		t.Errorf("Agent.Timeout = %v, want %v", cfg.Agent.Timeout, 30*time.Second)
	}
	if cfg.Agent.MaxTurns != 3 {
		t.Errorf("Agent.MaxTurns = %d, want 3", cfg.Agent.MaxTurns)
	}
	if !cfg.Agent.Mock {
		t.Error("Agent.Mock should be true")
	}
}

func TestApplyEnvInvalidDuration(t *testing.T) {
	origTimeout := os.Getenv("COREAGENT_TIMEOUT")
	defer os.Setenv("COREAGENT_TIMEOUT", origTimeout)

	os.Setenv("COREAGENT_TIMEOUT", "invalid")

	cfg := DefaultConfig()
	ApplyEnv(&cfg)

	if cfg.Agent.Timeout != 90*time.Second {
		t.Errorf("Agent.Timeout = %v, want default %v", cfg.Agent.Timeout, 90*time.Second)
	}
}

func TestConfigYAMLRoundtrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configYAML := `
agent:
  model: test-model
  instructions: "Custom instructions"
  reasoning_effort: high
tools:
  enabled: [read, write, shell]
  shell:
    interrupt_enabled: true
    interrupt_threshold: 50
session:
  dir: /tmp/sessions
logging:
  level: debug
  format: json
aliases:
  custom: custom-model-id
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadFrom(configPath)

	if cfg.Agent.Instructions != "Custom instructions" {
		t.Errorf("Agent.Instructions = %q", cfg.Agent.Instructions)
	}
	if cfg.Agent.ReasoningEffort != "high" {
		t.Errorf("Agent.ReasoningEffort = %q", cfg.Agent.ReasoningEffort)
	}
	if !cfg.Tools.Shell.InterruptEnabled {
		t.Error("Tools.Shell.InterruptEnabled should be true")
	}
	if cfg.Tools.Shell.InterruptThreshold != 50 {
		t.Errorf("Tools.Shell.InterruptThreshold = %d", cfg.Tools.Shell.InterruptThreshold)
	}
	if cfg.Session.Dir != "/tmp/sessions" {
		t.Errorf("Session.Dir = %q", cfg.Session.Dir)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q", cfg.Logging.Format)
	}
	if cfg.Aliases["custom"] != "custom-model-id" {
		t.Errorf("Aliases[custom] = %q", cfg.Aliases["custom"])
	}
}

func TestApplyEnv_TurnLogDir(t *testing.T) {
	t.Setenv("COREAGENT_TURN_LOG_DIR", "/tmp/turns")
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	if cfg.Logging.TurnLogDir != "/tmp/turns" {
		t.Errorf("Logging.TurnLogDir = %q", cfg.Logging.TurnLogDir)
	}
}

func TestApplyEnv_Metrics(t *testing.T) {
	t.Setenv("COREAGENT_METRICS", "true")
	t.Setenv("COREAGENT_METRICS_PATH", "/tmp/metrics.jsonl")
	t.Setenv("COREAGENT_METRICS_PROMETHEUS_ADDR", ":9090")
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Path != "/tmp/metrics.jsonl" {
		t.Errorf("Metrics.Path = %q", cfg.Metrics.Path)
	}
	if cfg.Metrics.PrometheusAddr != ":9090" {
		t.Errorf("Metrics.PrometheusAddr = %q", cfg.Metrics.PrometheusAddr)
	}
}
