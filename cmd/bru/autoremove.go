package main

import (
	"github.com/spf13/cobra"
)

var autoremoveDryRun bool

var autoremoveCmd = &cobra.Command{
	Use:   "autoremove",
	Short: "Remove formulae that were installed only as dependencies and are no longer needed",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		removed, err := a.orch.Autoremove(globalCtx, autoremoveDryRun)
		if err != nil {
			fail(err, "")
		}

		if len(removed) == 0 {
			printInfo("Nothing to remove.")
			return
		}
		for _, name := range removed {
			if autoremoveDryRun {
				printInfof("Would remove %s\n", name)
			} else {
				printInfof("==> Removed %s\n", name)
			}
		}
	},
}

func init() {
	autoremoveCmd.Flags().BoolVar(&autoremoveDryRun, "dry-run", false, "Show what would be removed without removing")
}
