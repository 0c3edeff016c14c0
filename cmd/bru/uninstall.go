package main

import (
	"github.com/spf13/cobra"
)

var uninstallForce bool

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <formula> [...]",
	Aliases: []string{"remove", "rm"},
	Short:   "Uninstall a formula",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		if err := a.orch.Uninstall(globalCtx, args, uninstallForce); err != nil {
			fail(err, args[0])
		}

		for _, name := range args {
			printInfof("==> Uninstalled %s\n", name)
		}
	},
}

func init() {
	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "Uninstall even if other formulae depend on it")
}
