package main

import (
	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/orchestrator"
)

var (
	upgradeForce  bool
	upgradeDryRun bool
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [formula ...]",
	Short: "Upgrade outdated formulae, or all of them if none are named",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		opts := orchestrator.UpgradeOptions{Force: upgradeForce, DryRun: upgradeDryRun}
		result, err := a.orch.Upgrade(globalCtx, args, opts)
		if err != nil {
			fail(err, "")
		}

		if len(result.Upgraded) == 0 {
			printInfo("Already up to date.")
			return
		}
		for _, c := range result.Upgraded {
			if c.Tap != "" {
				printInfof("==> Upgrading %s %s -> %s (delegated to brew, tap %s)\n", c.Name, c.OldVersion, c.NewVersion, c.Tap)
				continue
			}
			printInfof("==> Upgrading %s %s -> %s\n", c.Name, c.OldVersion, c.NewVersion)
		}
	},
}

func init() {
	upgradeCmd.Flags().BoolVarP(&upgradeForce, "force", "f", false, "Upgrade even pinned or conflicting formulae")
	upgradeCmd.Flags().BoolVar(&upgradeDryRun, "dry-run", false, "Show what would be upgraded without upgrading")
}
