package main

import (
	"github.com/spf13/cobra"
)

var outdatedCmd = &cobra.Command{
	Use:   "outdated",
	Short: "List installed formulae with a newer version available",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		candidates, err := a.orch.Outdated(globalCtx)
		if err != nil {
			fail(err, "")
		}

		for _, c := range candidates {
			printInfof("%s (%s) < %s\n", c.Name, c.OldVersion, c.NewVersion)
		}
	},
}
