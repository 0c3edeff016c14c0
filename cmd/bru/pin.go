package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/cellar"
)

var pinCmd = &cobra.Command{
	Use:   "pin <formula> [...]",
	Short: "Pin a formula to its current version, excluding it from upgrade",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		for _, name := range args {
			warned, err := cellar.Pin(a.cfg, name)
			if err != nil {
				fail(err, name)
			}
			if warned {
				printInfof("Warning: %s is not installed\n", name)
				continue
			}
			printInfof("==> Pinned %s\n", name)
		}
	},
}
