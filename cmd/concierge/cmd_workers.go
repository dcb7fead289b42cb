package main

import (
	"fmt"

	"concierge/internal/capability"
	"concierge/internal/prompt"
	"concierge/internal/worker"

	"github.com/spf13/cobra"
)

// workersCmd lists the routable worker kinds
var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List registered worker kinds",
	Long: `Lists every routable worker kind: the built-in capabilities plus any
worker synthesized by earlier runs (those persist as templates and are
re-registered on startup).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := prompt.NewDirStore(inWorkspace(cfg.Paths.Templates))
		caps := capability.NewFileRegistry(inWorkspace(cfg.Paths.Capabilities))
		kinds := worker.NewRegistry(store)

		loaded, err := caps.Load()
		if err != nil {
			return err
		}
		if err := kinds.SeedBuiltins(loaded); err != nil {
			return err
		}

		all := kinds.Kinds()
		if len(all) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No worker kinds registered.")
			return nil
		}
		for _, k := range all {
			desc := k.Description
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-12s %s\n", k.Name, k.Origin, desc)
		}
		return nil
	},
}
