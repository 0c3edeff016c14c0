package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/tap"
)

var tapCmd = &cobra.Command{
	Use:   "tap [<owner>/<repo>]",
	Short: "Tap a third-party repository, or list tapped repositories",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		if len(args) == 0 {
			taps, err := tap.ListTaps(a.cfg)
			if err != nil {
				fail(err, "")
			}
			for _, t := range taps {
				printInfo(t.String())
			}
			return
		}

		name, err := tap.Parse(args[0])
		if err != nil {
			fail(err, args[0])
		}
		if err := tap.Tap(globalCtx, a.cfg, a.logger, name); err != nil {
			fail(err, args[0])
		}
		printInfof("==> Tapped %s\n", name.String())
	},
}
