package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/prefix"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed formulae",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		entries, err := prefix.ListInstalled(a.cfg)
		if err != nil {
			fail(err, "")
		}

		for _, e := range entries {
			printInfof("%-25s %s\n", e.Name, e.Version)
		}
	},
}
