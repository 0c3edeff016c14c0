package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/formula"
)

var infoCmd = &cobra.Command{
	Use:   "info <formula|cask>",
	Short: "Show metadata for a formula or cask",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail(err, "")
		}

		name := args[0]
		f, err := a.client.FetchFormula(globalCtx, name)
		if err == nil {
			printFormulaInfo(f)
			return
		}

		var bruErr *brerrors.Error
		if !errors.As(err, &bruErr) || bruErr.Kind != brerrors.KindNotFound {
			fail(err, name)
		}

		c, err := a.client.FetchCask(globalCtx, name)
		if err != nil {
			fail(err, name)
		}
		printCaskInfo(c)
	},
}

func printFormulaInfo(f *formula.Formula) {
	printInfof("%s: %s\n", f.Name, f.Versions.Stable)
	if f.Desc != "" {
		printInfo(f.Desc)
	}
	if f.Homepage != "" {
		printInfo(f.Homepage)
	}
	if f.KegOnly {
		printInfo("This formula is keg-only and was not symlinked into the prefix.")
	}
	if len(f.Dependencies) > 0 {
		printInfo("Dependencies:", strings.Join(f.Dependencies, ", "))
	}
}

func printCaskInfo(c *formula.Cask) {
	printInfof("%s: %s\n", c.Token, c.Version)
	if len(c.Name) > 0 {
		printInfo(strings.Join(c.Name, ", "))
	}
	if c.Desc != "" {
		printInfo(c.Desc)
	}
	if c.Homepage != "" {
		printInfo(c.Homepage)
	}
}
