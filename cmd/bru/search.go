package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search formula and cask names and descriptions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		results, err := a.client.Search(globalCtx, args[0])
		if err != nil {
			fail(err, "")
		}

		if len(results) == 0 {
			printInfo("No formula or cask found for", args[0])
			return
		}

		for _, r := range results {
			switch {
			case r.Formula != nil:
				printInfof("%-25s %s\n", r.Formula.Name, r.Formula.Desc)
			case r.Cask != nil:
				printInfof("%-25s %s\n", r.Cask.Token, strings.Join(r.Cask.Name, ", "))
			}
		}
	},
}
