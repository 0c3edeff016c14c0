package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/cellar"
)

var unpinCmd = &cobra.Command{
	Use:   "unpin <formula> [...]",
	Short: "Unpin a formula, allowing it to be upgraded again",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		for _, name := range args {
			if err := cellar.Unpin(a.cfg, name); err != nil {
				fail(err, name)
			}
			printInfof("==> Unpinned %s\n", name)
		}
	},
}
