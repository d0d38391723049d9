package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coreagent/pkg/aliases"
	"coreagent/pkg/config"
	"coreagent/pkg/session"
)

// buildAliasesCmd wires pkg/aliases into the CLI as a refresh subcommand:
// query every configured provider's ListModels and rewrite the on-disk
// alias map (§9's "opus"/"sonnet"/"flash"-style shorthands) to the latest
// matching concrete model id.
func buildAliasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Manage model alias shorthands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Re-resolve alias shorthands (opus, sonnet, flash, ...) against live provider models",
		RunE:  runAliasesRefresh,
	})
	return cmd
}

func runAliasesRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	credsPath, err := session.DefaultCredentialsPath()
	if err != nil {
		return err
	}
	creds, err := session.LoadCredentials(credsPath)
	if err != nil {
		return err
	}

	router, err := buildRouter(ctx, creds, cfg.Logging, nil)
	if err != nil {
		return err
	}

	resolutions := aliases.Resolve(ctx, router.All(), cfg.Aliases, nil)
	updated := map[string]string{}
	for k, v := range cfg.Aliases {
		updated[k] = v
	}
	changed := aliases.ApplyResolutions(updated, resolutions)

	for _, r := range resolutions {
		switch {
		case r.Error != "":
			fmt.Printf("%-8s error: %s\n", r.Alias, r.Error)
		case r.Changed:
			fmt.Printf("%-8s %s -> %s\n", r.Alias, r.Previous, r.Resolved)
		default:
			fmt.Printf("%-8s unchanged (%s)\n", r.Alias, r.Resolved)
		}
	}
	if changed == 0 {
		return nil
	}
	return config.UpdateAliases(config.DefaultPath(), updated)
}
