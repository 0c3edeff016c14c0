package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/cellar"
)

var leavesCmd = &cobra.Command{
	Use:   "leaves",
	Short: "List installed formulae that aren't a dependency of another installed formula",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		names, err := cellar.Leaves(a.cfg)
		if err != nil {
			fail(err, "")
		}

		for _, name := range names {
			printInfo(name)
		}
	},
}
