package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/tap"
)

var untapCmd = &cobra.Command{
	Use:   "untap <owner>/<repo>",
	Short: "Remove a tapped repository",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		name, err := tap.Parse(args[0])
		if err != nil {
			fail(err, args[0])
		}
		if err := tap.Untap(a.cfg, name); err != nil {
			fail(err, args[0])
		}
		printInfof("==> Untapped %s\n", name.String())
	},
}
