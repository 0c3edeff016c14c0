package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/tap"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch the latest formula/cask index and pull every tapped repository",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		if err := a.client.ClearCaches(); err != nil {
			fail(err, "")
		}
		if _, err := a.client.FetchAllFormulae(globalCtx); err != nil {
			fail(err, "")
		}
		if _, err := a.client.FetchAllCasks(globalCtx); err != nil {
			fail(err, "")
		}
		printInfo("==> Updated Homebrew formula and cask index.")

		taps, err := tap.ListTaps(a.cfg)
		if err != nil {
			fail(err, "")
		}

		tapped := make(map[string]bool, len(taps))
		for _, name := range taps {
			tapped[name.String()] = true
		}
		if prefs, err := config.LoadUserPrefs(); err == nil {
			for _, spec := range prefs.DefaultTaps {
				if tapped[spec] {
					continue
				}
				name, err := tap.Parse(spec)
				if err != nil {
					printError(err, spec)
					continue
				}
				if err := tap.Tap(globalCtx, a.cfg, a.logger, name); err != nil {
					printError(err, spec)
					continue
				}
				printInfof("==> Tapped %s\n", name.String())
				taps = append(taps, name)
			}
		}

		for _, name := range taps {
			unchanged, err := tap.Update(globalCtx, a.cfg, name)
			if err != nil {
				printError(err, name.String())
				continue
			}
			if unchanged {
				continue
			}
			printInfof("==> Updated %s\n", name.String())
		}
	},
}
