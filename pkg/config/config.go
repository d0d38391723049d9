// Package config loads the on-disk YAML configuration for the agent
// runtime: default model and prompt, enabled built-in tools, configured MCP
// servers, and the session store location. Values set via environment
// variables (COREAGENT_*) override the file; file values override the
// built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level on-disk shape.
type Config struct {
	Agent   AgentConfig       `yaml:"agent"`
	Tools   ToolsConfig       `yaml:"tools"`
	MCP     []MCPServerConfig `yaml:"mcp"`
	Session SessionConfig     `yaml:"session"`
	Logging LoggingConfig     `yaml:"logging"`
	Metrics MetricsConfig     `yaml:"metrics"`
	// Aliases maps short model aliases (e.g. "opus") to the concrete model
	// id pkg/aliases last resolved them to. Updated in place by
	// UpdateAliases rather than through the normal load path.
	Aliases map[string]string `yaml:"aliases"`
}

// MetricsConfig configures pkg/metrics' per-backend request collector and
// its optional Prometheus export.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is the JSON-lines request log pkg/metrics.Collector appends to.
	// Empty disables the on-disk log even when Enabled is true.
	Path string `yaml:"path"`
	// PrometheusAddr, if set, serves /metrics on this address via
	// promhttp.HandlerFor over a registry holding a PrometheusCollector.
	PrometheusAddr string `yaml:"prometheus_addr"`
}

// AgentConfig configures the default agent loop (§4.5).
type AgentConfig struct {
	Model            string        `yaml:"model"`
	Instructions     string        `yaml:"instructions"`
	AppendSystem     string        `yaml:"append_system_prompt"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxTurns         int           `yaml:"max_turns"`
	ReasoningEffort  string        `yaml:"reasoning_effort"`
	ReasoningBudget  int           `yaml:"reasoning_budget"`
	CompactionRatio  float64       `yaml:"compaction_ratio"`
	CompactionOff    bool          `yaml:"compaction_off"`
	Mock             bool          `yaml:"mock"`
}

// ToolsConfig controls which built-in tools an agent loop starts with and
// their per-tool settings.
type ToolsConfig struct {
	// Enabled lists built-in tool names to register (read, write, patch,
	// list, fetch, shell, task). Empty means every built-in.
	Enabled []string    `yaml:"enabled"`
	Shell   ShellConfig `yaml:"shell"`
	Fetch   FetchConfig `yaml:"fetch"`
}

// ShellConfig configures the shell tool's output-interrupt policy.
type ShellConfig struct {
	InterruptEnabled   bool `yaml:"interrupt_enabled"`
	InterruptThreshold int  `yaml:"interrupt_threshold"`
}

// FetchConfig configures the fetch tool's optional summarization.
type FetchConfig struct {
	SummarizeEnabled bool   `yaml:"summarize_enabled"`
	SummaryModel     string `yaml:"summary_model"`
}

// MCPServerConfig describes one MCP server to launch and register tools
// from at startup, matching pkg/mcp.Config's shape.
type MCPServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// SessionConfig overrides the session store location.
type SessionConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures both the process-wide structured logger and the
// optional per-turn JSONL event log (pkg/harness.WithLogger).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	// TurnLogDir, if set, wraps every harness with pkg/harness.WithLogger,
	// writing one JSONL file per turn under this directory.
	TurnLogDir    string `yaml:"turn_log_dir"`
	RedactTurnLog bool   `yaml:"redact_turn_log"`
}

func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Model:           "claude-opus-4-6",
			Instructions:    "You are a helpful assistant.",
			Timeout:         90 * time.Second,
			MaxTurns:        10,
			ReasoningEffort: "medium",
			CompactionRatio: 0,
		},
		Tools: ToolsConfig{
			Shell: ShellConfig{
				InterruptEnabled:   false,
				InterruptThreshold: 200,
			},
		},
		Session: SessionConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func DefaultPath() string {
	if v := strings.TrimSpace(os.Getenv("COREAGENT_CONFIG")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "coreagent", "config.yaml")
}

func Load() Config {
	return LoadFrom(DefaultPath())
}

func LoadFrom(path string) Config {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		if buf, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(buf, &cfg)
		}
	}
	ApplyEnv(&cfg)
	return cfg
}

// ApplyEnv overrides cfg with any set COREAGENT_* environment variables.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("COREAGENT_MODEL")); v != "" {
		cfg.Agent.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_INSTRUCTIONS")); v != "" {
		cfg.Agent.Instructions = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_APPEND_SYSTEM_PROMPT")); v != "" {
		cfg.Agent.AppendSystem = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agent.Timeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_MAX_TURNS")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Agent.MaxTurns = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_REASONING_EFFORT")); v != "" {
		cfg.Agent.ReasoningEffort = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_MOCK")); v != "" {
		cfg.Agent.Mock = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_SESSION_DIR")); v != "" {
		cfg.Session.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_LOG_FORMAT")); v != "" {
		cfg.Logging.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_TURN_LOG_DIR")); v != "" {
		cfg.Logging.TurnLogDir = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_METRICS")); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_METRICS_PATH")); v != "" {
		cfg.Metrics.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("COREAGENT_METRICS_PROMETHEUS_ADDR")); v != "" {
		cfg.Metrics.PrometheusAddr = v
	}
}

func parseInt(val string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(val))
}

func parseBool(val string) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	return val == "1" || val == "true" || val == "yes"
}
