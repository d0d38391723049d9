package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coreagent/pkg/agent"
	"coreagent/pkg/agent/compaction"
	"coreagent/pkg/agent/tokens"
	"coreagent/pkg/config"
	"coreagent/pkg/harness"
	"coreagent/pkg/mcp"
	"coreagent/pkg/orchestrator"
	"coreagent/pkg/session"
	"coreagent/pkg/subprocess"
	"coreagent/pkg/tool"
	"coreagent/pkg/tool/builtin"
)

var (
	flagModel       string
	flagSystem      string
	flagResume      bool
	flagSession     string
	flagProviderKey string
)

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coreagent [query]",
		Short: "A terminal-hosted AI assistant runtime",
		Long: `coreagent drives a single agent loop against Anthropic, OpenAI, or
Gemini, with a built-in tool set (read/write/patch/list/fetch/shell) and
optional MCP-discovered tools.

With a QUERY argument, coreagent runs one turn non-interactively and prints
the result. With no arguments, it starts an interactive REPL.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
	root.Flags().StringVar(&flagModel, "model", "", `model to use, optionally prefixed "provider/"`)
	root.Flags().StringVar(&flagSystem, "system", "", "override the system instructions")
	root.Flags().BoolVar(&flagResume, "resume", false, "resume the last-active session")
	root.Flags().StringVar(&flagSession, "session", "", "load a specific saved session id instead of the last-active one")
	root.Flags().StringVar(&flagProviderKey, "provider-key", "", "override the resolved provider API key for this run only")
	root.AddCommand(buildAliasesCmd())
	root.AddCommand(buildReplayCmd())
	return root
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.Logging)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flagProviderKey != "" {
		ctx = harness.WithProviderKey(ctx, flagProviderKey)
	}

	credsPath, err := session.DefaultCredentialsPath()
	if err != nil {
		return err
	}
	creds, err := session.LoadCredentials(credsPath)
	if err != nil {
		return err
	}

	collector, err := setupMetrics(cfg.Metrics)
	if err != nil {
		return err
	}
	if collector != nil {
		defer collector.Close()
	}

	router, err := buildRouter(ctx, creds, cfg.Logging, collector)
	if err != nil {
		return err
	}

	modelArg := strings.TrimSpace(flagModel)
	if modelArg == "" {
		modelArg = cfg.Agent.Model
	}
	if resolved, ok := cfg.Aliases[modelArg]; ok {
		modelArg = resolved
	}
	h, bareModel, err := router.Resolve(modelArg)
	if err != nil {
		return usageError(err)
	}

	registry := tool.NewRegistry()
	opts := builtin.Options{ShellInterrupt: shellInterruptFor(cfg.Tools.Shell)}
	if cfg.Tools.Fetch.SummarizeEnabled {
		opts.Summarizer = h
		opts.SummaryModel = cfg.Tools.Fetch.SummaryModel
		if opts.SummaryModel == "" {
			opts.SummaryModel = bareModel
		}
	}
	builtin.RegisterAll(registry, opts)
	registry = filterEnabled(registry, cfg.Tools.Enabled)
	for _, m := range cfg.MCP {
		client := mcp.New(mcp.Config{Name: m.Name, Command: m.Command, Args: m.Args, Env: m.Env})
		if err := client.DiscoverAndRegister(ctx, registry); err != nil {
			return fmt.Errorf("coreagent: mcp server %s: %w", m.Name, err)
		}
	}

	instructions := cfg.Agent.Instructions
	if flagSystem != "" {
		instructions = flagSystem
	}
	if cfg.Agent.AppendSystem != "" {
		instructions = strings.TrimSpace(instructions + "\n\n" + cfg.Agent.AppendSystem)
	}

	loopCfg := agent.Config{
		Model:        bareModel,
		Instructions: instructions,
		MaxTurns:     cfg.Agent.MaxTurns,
		Reasoning:    reasoningFor(cfg.Agent),
	}

	orch := orchestrator.New(h, bareModel, nil)
	var root *orchestrator.Node
	if counter, window := compactionFor(cfg, h, bareModel); counter != nil {
		loopCfg.Compaction = compaction.Options{
			ContextWindow:  window,
			ThresholdRatio: cfg.Agent.CompactionRatio,
			SummaryModel:   bareModel,
		}
		loopCfg.SummaryHarness = h
		root = orch.NewRootWithCounter(registry, counter, loopCfg)
	} else {
		root = orch.NewRoot(registry, loopCfg)
	}

	sessionDir := cfg.Session.Dir
	if sessionDir == "" {
		sessionDir, err = session.DefaultSessionsDir()
		if err != nil {
			return err
		}
	}
	store, err := session.NewStore(sessionDir)
	if err != nil {
		return err
	}

	doc, err := loadOrCreateDocument(store, bareModel)
	if err != nil {
		return err
	}
	if len(doc.Messages) > 0 {
		if err := root.Loop.Restore(doc.Messages); err != nil {
			return err
		}
	}
	sess := session.NewSession(store, root.Loop, doc)
	sess.SwitchModel(bareModel)

	if len(args) > 0 {
		return runOnce(ctx, sess, root, strings.Join(args, " "))
	}
	return runREPL(ctx, sess, root, harnessNamesOf(router))
}

// compactionFor builds a token counter and context window for bareModel
// when compaction is enabled and the harness family has a known budget; nil
// counter means compaction stays off.
func compactionFor(cfg config.Config, h harness.Harness, bareModel string) (*tokens.Counter, int) {
	if cfg.Agent.CompactionOff {
		return nil, 0
	}
	window := contextWindowFor(h.Name())
	if window <= 0 {
		return nil, 0
	}
	counter, err := tokens.NewCounter(bareModel)
	if err != nil {
		return nil, 0
	}
	return counter, window
}

func loadOrCreateDocument(store *session.Store, model string) (*session.Document, error) {
	switch {
	case flagSession != "":
		return store.Load(flagSession)
	case flagResume:
		doc, err := store.ResumeLast()
		if err == nil {
			return doc, nil
		}
		if err != session.ErrNotFound {
			return nil, err
		}
	}
	return session.New(model, "", ""), nil
}

func runOnce(ctx context.Context, sess *session.Session, root *orchestrator.Node, query string) error {
	result, err := root.Loop.Submit(ctx, query)
	if result != nil {
		sess.RecordUsage(result)
		fmt.Println(result.FinalText)
	}
	if saveErr := sess.Save(); saveErr != nil && err == nil {
		err = saveErr
	}
	return err
}

func shellInterruptFor(cfg config.ShellConfig) *subprocess.Interrupt {
	if !cfg.InterruptEnabled {
		return nil
	}
	threshold := cfg.InterruptThreshold
	if threshold <= 0 {
		threshold = 200
	}
	return &subprocess.Interrupt{
		Threshold: threshold,
		Classify:  subprocess.LineCountClassifier(threshold),
	}
}

func reasoningFor(cfg config.AgentConfig) *harness.ReasoningConfig {
	if cfg.ReasoningEffort == "" && cfg.ReasoningBudget == 0 {
		return nil
	}
	return &harness.ReasoningConfig{Effort: cfg.ReasoningEffort, Budget: cfg.ReasoningBudget}
}

// filterEnabled prunes reg down to the named built-ins when enabled is
// non-empty; an empty list keeps every registered tool.
func filterEnabled(reg *tool.Registry, enabled []string) *tool.Registry {
	if len(enabled) == 0 {
		return reg
	}
	out := tool.NewRegistry()
	for _, t := range reg.Subset(enabled) {
		out.Register(t)
	}
	return out
}

func harnessNamesOf(router *harness.Router) []string {
	all := router.All()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	return names
}
