package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/orchestrator"
)

var (
	installForce  bool
	installDryRun bool
)

var installCmd = &cobra.Command{
	Use:   "install <formula|cask> [...]",
	Short: "Install a formula or cask",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		opts := orchestrator.InstallOptions{Force: installForce, DryRun: installDryRun}
		result, err := a.orch.Install(globalCtx, args, opts)
		if err != nil {
			fail(err, args[0])
		}

		for _, name := range result.Installed {
			printInfof("==> Installed %s\n", name)
		}
		for _, name := range result.Skipped {
			printInfof("==> %s is already installed\n", name)
		}
		for _, name := range result.Delegated {
			printInfof("==> %s was installed via brew\n", name)
		}
	},
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Reinstall even if already installed")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "Show what would be installed without installing")
}
